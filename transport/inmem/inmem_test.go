package inmem

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/taskmcp/mcp-sdk-go/protocol"
	"github.com/taskmcp/mcp-sdk-go/transport"
)

func TestPipeRoundTrip(t *testing.T) {
	ctx := context.Background()

	clientSide, serverSide := NewPipe()
	cc, err := clientSide.Connect(ctx)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	sc, err := serverSide.Connect(ctx)
	if err != nil {
		t.Fatalf("server connect: %v", err)
	}

	if cc.SessionID() != sc.SessionID() {
		t.Errorf("session ids differ: %q vs %q", cc.SessionID(), sc.SessionID())
	}
	if cc.SessionID() == "" {
		t.Error("empty session id")
	}

	out := &protocol.JSONRPCMessage{JSONRPC: protocol.JSONRPCVersion, Method: "ping"}
	if err := cc.Write(ctx, out); err != nil {
		t.Fatalf("client write: %v", err)
	}
	in, err := sc.Read(ctx)
	if err != nil {
		t.Fatalf("server read: %v", err)
	}
	if in.Method != "ping" {
		t.Errorf("method = %q, want ping", in.Method)
	}

	back := &protocol.JSONRPCMessage{JSONRPC: protocol.JSONRPCVersion, Method: "pong"}
	if err := sc.Write(ctx, back); err != nil {
		t.Fatalf("server write: %v", err)
	}
	in, err = cc.Read(ctx)
	if err != nil {
		t.Fatalf("client read: %v", err)
	}
	if in.Method != "pong" {
		t.Errorf("method = %q, want pong", in.Method)
	}
}

func TestPipeCloseUnblocksPeer(t *testing.T) {
	ctx := context.Background()

	clientSide, serverSide := NewPipe()
	cc, _ := clientSide.Connect(ctx)
	sc, _ := serverSide.Connect(ctx)

	errCh := make(chan error, 1)
	go func() {
		_, err := sc.Read(ctx)
		errCh <- err
	}()

	if err := cc.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	select {
	case err := <-errCh:
		if !errors.Is(err, transport.ErrConnectionClosed) {
			t.Errorf("read after close = %v, want ErrConnectionClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("read did not return after close")
	}

	// Both ends are closed.
	if err := sc.Write(ctx, &protocol.JSONRPCMessage{}); !errors.Is(err, transport.ErrConnectionClosed) {
		t.Errorf("write after close = %v, want ErrConnectionClosed", err)
	}
}

func TestPipeReadHonorsContext(t *testing.T) {
	clientSide, _ := NewPipe()
	cc, _ := clientSide.Connect(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := cc.Read(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("read = %v, want deadline exceeded", err)
	}
}
