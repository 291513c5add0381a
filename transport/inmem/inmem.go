// Package inmem provides an in-process transport that connects a client and
// a server through paired channels. It is mainly useful in tests and
// examples.
package inmem

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/taskmcp/mcp-sdk-go/protocol"
	"github.com/taskmcp/mcp-sdk-go/transport"
)

const pipeBuffer = 32

// NewPipe returns two connected transports. Messages written on one side are
// read on the other. Closing either side closes both.
func NewPipe() (clientSide, serverSide transport.Transport) {
	state := &pipeState{
		sessionID: uuid.NewString(),
		done:      make(chan struct{}),
	}

	clientToServer := make(chan *protocol.JSONRPCMessage, pipeBuffer)
	serverToClient := make(chan *protocol.JSONRPCMessage, pipeBuffer)

	client := &Conn{in: serverToClient, out: clientToServer, state: state}
	server := &Conn{in: clientToServer, out: serverToClient, state: state}

	return &Transport{conn: client}, &Transport{conn: server}
}

type Transport struct {
	conn *Conn
}

func (t *Transport) Connect(ctx context.Context) (transport.Connection, error) {
	return t.conn, nil
}

// pipeState is shared by both ends of a pipe.
type pipeState struct {
	sessionID string
	closeOnce sync.Once
	done      chan struct{}
}

type Conn struct {
	in    <-chan *protocol.JSONRPCMessage
	out   chan<- *protocol.JSONRPCMessage
	state *pipeState
}

func (c *Conn) Read(ctx context.Context) (*protocol.JSONRPCMessage, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.state.done:
		return nil, transport.ErrConnectionClosed
	case msg := <-c.in:
		return msg, nil
	}
}

func (c *Conn) Write(ctx context.Context, msg *protocol.JSONRPCMessage) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.state.done:
		return transport.ErrConnectionClosed
	case c.out <- msg:
		return nil
	}
}

func (c *Conn) Close() error {
	c.state.closeOnce.Do(func() {
		close(c.state.done)
	})
	return nil
}

func (c *Conn) SessionID() string {
	return c.state.sessionID
}
