// Package websocket provides a JSON-RPC transport over WebSocket, with a
// dialing client side and an http.Server based accepting side.
package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/taskmcp/mcp-sdk-go/protocol"
	"github.com/taskmcp/mcp-sdk-go/transport"
)

// sessionIDHeader carries the session id from the accepting side to the
// dialing side during the handshake.
const sessionIDHeader = "Mcp-Session-Id"

// Transport dials a WebSocket endpoint.
type Transport struct {
	url              string
	handshakeTimeout time.Duration
}

type Option func(*Transport)

func WithHandshakeTimeout(timeout time.Duration) Option {
	return func(t *Transport) {
		t.handshakeTimeout = timeout
	}
}

func New(url string, options ...Option) *Transport {
	t := &Transport{
		url:              url,
		handshakeTimeout: 10 * time.Second,
	}

	for _, option := range options {
		option(t)
	}

	return t
}

func (t *Transport) Connect(ctx context.Context) (transport.Connection, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: t.handshakeTimeout,
	}

	ws, resp, err := dialer.DialContext(ctx, t.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to WebSocket server: %w", err)
	}

	sessionID := ""
	if resp != nil {
		sessionID = resp.Header.Get(sessionIDHeader)
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	return newConn(ws, sessionID), nil
}

type conn struct {
	ws        *websocket.Conn
	sessionID string

	readMu  sync.Mutex
	writeMu sync.Mutex

	closeOnce sync.Once
	closed    chan struct{}
	closeErr  error
}

func newConn(ws *websocket.Conn, sessionID string) *conn {
	return &conn{
		ws:        ws,
		sessionID: sessionID,
		closed:    make(chan struct{}),
	}
}

type readResult struct {
	data []byte
	err  error
}

func (c *conn) Read(ctx context.Context) (*protocol.JSONRPCMessage, error) {
	ch := make(chan readResult, 1)
	go func() {
		c.readMu.Lock()
		defer c.readMu.Unlock()
		_, data, err := c.ws.ReadMessage()
		ch <- readResult{data: data, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.closed:
		return nil, transport.ErrConnectionClosed
	case res := <-ch:
		if res.err != nil {
			select {
			case <-c.closed:
				return nil, transport.ErrConnectionClosed
			default:
			}
			return nil, res.err
		}
		var msg protocol.JSONRPCMessage
		if err := json.Unmarshal(res.data, &msg); err != nil {
			return nil, fmt.Errorf("invalid JSON-RPC message: %w", err)
		}
		return &msg, nil
	}
}

func (c *conn) Write(ctx context.Context, msg *protocol.JSONRPCMessage) error {
	select {
	case <-c.closed:
		return transport.ErrConnectionClosed
	default:
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func (c *conn) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)

		c.writeMu.Lock()
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()

		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}

func (c *conn) SessionID() string {
	return c.sessionID
}

// ConnHandler receives each accepted connection, wrapped as a Transport
// suitable for (*server.Server).Connect. It should not return until the
// session is over.
type ConnHandler func(ctx context.Context, t transport.Transport)

// Server accepts WebSocket connections and hands each one to a ConnHandler.
type Server struct {
	httpServer *http.Server
	handler    ConnHandler
	upgrader   websocket.Upgrader
}

func NewServer(addr string, handler ConnHandler) *Server {
	s := &Server{
		handler: handler,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleWebSocket)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	return s
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := uuid.NewString()

	ws, err := s.upgrader.Upgrade(w, r, http.Header{sessionIDHeader: {sessionID}})
	if err != nil {
		return
	}

	conn := newConn(ws, sessionID)
	defer conn.Close()

	s.handler(r.Context(), NewSingleConn(conn))
}

func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.httpServer.Shutdown(context.Background())
	}()

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// NewSingleConn wraps an already established connection as a Transport.
func NewSingleConn(conn transport.Connection) transport.Transport {
	return singleConnTransport{conn: conn}
}

type singleConnTransport struct {
	conn transport.Connection
}

func (t singleConnTransport) Connect(ctx context.Context) (transport.Connection, error) {
	return t.conn, nil
}
