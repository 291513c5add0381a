package transport

import (
	"context"
	"errors"

	"github.com/taskmcp/mcp-sdk-go/protocol"
)

var ErrConnectionClosed = errors.New("connection closed")

// Transport creates a bidirectional connection between client and server
type Transport interface {
	// Connect returns a logical JSON-RPC connection.
	// It is called exactly once, by Server.Connect or Client.Connect.
	Connect(ctx context.Context) (Connection, error)
}

// Connection is a logical bidirectional JSON-RPC connection
type Connection interface {
	// Read reads the next message to process from the connection.
	//
	// Connections must allow Read to be called concurrently with Close.
	// In particular, calling Close should unblock a Read waiting for input.
	Read(ctx context.Context) (*protocol.JSONRPCMessage, error)

	// Write writes a new message to the connection.
	//
	// Write may be called concurrently, since calls and responses can happen
	// concurrently in user code.
	Write(ctx context.Context, msg *protocol.JSONRPCMessage) error

	// Close closes the connection.
	// It is called implicitly when Read or Write fails.
	//
	// Close may be called multiple times, possibly concurrently.
	Close() error

	// SessionID returns the session id, or the empty string if there is none
	SessionID() string
}
