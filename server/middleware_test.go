package server_test

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/taskmcp/mcp-sdk-go/protocol"
	"github.com/taskmcp/mcp-sdk-go/server"
)

func TestUseAppliesMiddlewareInOrder(t *testing.T) {
	ctx := context.Background()

	var mu sync.Mutex
	var order []string
	tag := func(name string) server.Middleware {
		return func(next server.ToolHandler) server.ToolHandler {
			return func(ctx context.Context, req *server.CallToolRequest) (*protocol.CallToolResult, error) {
				mu.Lock()
				order = append(order, name)
				mu.Unlock()
				return next(ctx, req)
			}
		}
	}

	srv := server.NewServer(&protocol.ServerInfo{Name: "mw-test", Version: "0.1.0"}, nil)
	srv.AddTool(&protocol.Tool{
		Name:        "echo",
		Description: "echoes back",
		InputSchema: protocol.JSONSchema{"type": "object"},
	}, func(ctx context.Context, req *server.CallToolRequest) (*protocol.CallToolResult, error) {
		mu.Lock()
		order = append(order, "handler")
		mu.Unlock()
		return server.TextResult("ok"), nil
	})

	// Registered after AddTool: Use rewraps already-registered tools.
	srv.Use(tag("outer"), tag("inner"))

	cs := connectPair(t, srv, nil)

	res, err := cs.CallTool(ctx, &protocol.CallToolParams{Name: "echo"})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if res.IsError {
		t.Fatalf("result flagged as error: %+v", res)
	}

	mu.Lock()
	got := order
	mu.Unlock()
	if diff := cmp.Diff([]string{"outer", "inner", "handler"}, got); diff != "" {
		t.Errorf("call order mismatch (-want +got):\n%s", diff)
	}
}

func TestRecoveryMiddlewareKeepsSessionAlive(t *testing.T) {
	ctx := context.Background()

	srv := server.NewServer(&protocol.ServerInfo{Name: "mw-test", Version: "0.1.0"}, nil)
	srv.AddTool(&protocol.Tool{
		Name:        "panics",
		Description: "always panics",
		InputSchema: protocol.JSONSchema{"type": "object"},
	}, func(ctx context.Context, req *server.CallToolRequest) (*protocol.CallToolResult, error) {
		panic("kaboom")
	})
	srv.AddTool(&protocol.Tool{
		Name:        "echo",
		Description: "echoes back",
		InputSchema: protocol.JSONSchema{"type": "object"},
	}, func(ctx context.Context, req *server.CallToolRequest) (*protocol.CallToolResult, error) {
		return server.TextResult("ok"), nil
	})
	srv.Use(server.RecoveryMiddleware())

	cs := connectPair(t, srv, nil)

	_, err := cs.CallTool(ctx, &protocol.CallToolParams{Name: "panics"})
	if err == nil {
		t.Fatal("panicking tool call succeeded")
	}
	if !strings.Contains(err.Error(), "panic") {
		t.Errorf("error = %q, want it to mention the recovered panic", err)
	}

	// The panic stayed inside the handler; the session still serves calls.
	res, err := cs.CallTool(ctx, &protocol.CallToolParams{Name: "echo"})
	if err != nil {
		t.Fatalf("CallTool after panic: %v", err)
	}
	if res.Content[0].(protocol.TextContent).Text != "ok" {
		t.Errorf("result = %+v", res)
	}
}
