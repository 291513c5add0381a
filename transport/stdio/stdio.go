// Package stdio provides a line-delimited JSON-RPC transport over standard
// input/output, plus a variant that spawns a subprocess and speaks over its
// pipes.
package stdio

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/google/uuid"

	"github.com/taskmcp/mcp-sdk-go/protocol"
	"github.com/taskmcp/mcp-sdk-go/transport"
)

// maxLineSize bounds a single JSON-RPC message on the wire.
const maxLineSize = 10 * 1024 * 1024

type Transport struct {
	cmd       *exec.Cmd
	reader    io.Reader
	writer    io.Writer
	sessionID string
}

// New returns a transport over the current process's stdin and stdout.
// This is the server side of a stdio deployment.
func New() *Transport {
	return &Transport{
		reader:    os.Stdin,
		writer:    os.Stdout,
		sessionID: uuid.NewString(),
	}
}

// NewCommand starts command and returns a transport over its pipes.
// Closing the connection terminates the subprocess.
func NewCommand(command string, args ...string) (*Transport, error) {
	cmd := exec.Command(command, args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to get stdin pipe: %w", err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to get stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start command: %w", err)
	}

	return &Transport{
		cmd:       cmd,
		reader:    stdout,
		writer:    stdin,
		sessionID: uuid.NewString(),
	}, nil
}

func (t *Transport) Connect(ctx context.Context) (transport.Connection, error) {
	scanner := bufio.NewScanner(t.reader)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &conn{
		t:       t,
		scanner: scanner,
		closed:  make(chan struct{}),
	}, nil
}

type conn struct {
	t       *Transport
	scanner *bufio.Scanner

	readMu  sync.Mutex
	writeMu sync.Mutex

	closeOnce sync.Once
	closed    chan struct{}
	closeErr  error
}

type scanResult struct {
	line []byte
	err  error
}

func (c *conn) Read(ctx context.Context) (*protocol.JSONRPCMessage, error) {
	for {
		ch := make(chan scanResult, 1)
		go func() {
			c.readMu.Lock()
			defer c.readMu.Unlock()
			if c.scanner.Scan() {
				line := make([]byte, len(c.scanner.Bytes()))
				copy(line, c.scanner.Bytes())
				ch <- scanResult{line: line}
				return
			}
			err := c.scanner.Err()
			if err == nil {
				err = io.EOF
			}
			ch <- scanResult{err: err}
		}()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-c.closed:
			return nil, transport.ErrConnectionClosed
		case res := <-ch:
			if res.err != nil {
				return nil, res.err
			}
			line := bytes.TrimSpace(res.line)
			if len(line) == 0 {
				continue
			}
			var msg protocol.JSONRPCMessage
			if err := json.Unmarshal(line, &msg); err != nil {
				return nil, fmt.Errorf("invalid JSON-RPC message: %w", err)
			}
			return &msg, nil
		}
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

	if _, err := fmt.Fprintf(c.t.writer, "%s\n", data); err != nil {
		return err
	}
	return nil
}

func (c *conn) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)

		if c.t.cmd != nil {
			if wc, ok := c.t.writer.(io.Closer); ok {
				wc.Close()
			}
			c.closeErr = c.t.cmd.Wait()
		}
	})
	return c.closeErr
}

func (c *conn) SessionID() string {
	return c.t.sessionID
}
