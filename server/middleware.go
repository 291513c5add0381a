package server

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/taskmcp/mcp-sdk-go/protocol"
)

type Middleware func(ToolHandler) ToolHandler

// Use adds middleware to the Server. Middleware runs in the order it was
// added, each wrapping the next.
func (s *Server) Use(middleware ...Middleware) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.middlewares = append(s.middlewares, middleware...)

	for name, st := range s.tools {
		wrappedHandler := applyMiddleware(st.handler, middleware)
		s.tools[name].handler = wrappedHandler
	}
}

// applyMiddleware applies the middleware chain
func applyMiddleware(handler ToolHandler, middlewares []Middleware) ToolHandler {
	// Applied back to front, so the first middleware is outermost
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return handler
}

// LoggingMiddleware logs every tool call with its duration and outcome
func LoggingMiddleware(logger *slog.Logger) Middleware {
	return func(next ToolHandler) ToolHandler {
		return func(ctx context.Context, req *CallToolRequest) (*protocol.CallToolResult, error) {
			start := time.Now()
			toolName := req.Params.Name

			logger.Info("tool call started",
				slog.String("tool", toolName),
				slog.Any("arguments", req.Params.Arguments),
			)

			result, err := next(ctx, req)

			duration := time.Since(start)

			if err != nil {
				logger.Error("tool call failed",
					slog.String("tool", toolName),
					slog.Duration("duration", duration),
					slog.String("error", err.Error()),
				)
			} else {
				isError := result != nil && result.IsError
				logger.Info("tool call completed",
					slog.String("tool", toolName),
					slog.Duration("duration", duration),
					slog.Bool("isError", isError),
				)
			}

			return result, err
		}
	}
}

// RecoveryMiddleware turns handler panics into error results
func RecoveryMiddleware() Middleware {
	return func(next ToolHandler) ToolHandler {
		return func(ctx context.Context, req *CallToolRequest) (result *protocol.CallToolResult, err error) {
			defer func() {
				if r := recover(); r != nil {
					stack := debug.Stack()
					err = fmt.Errorf("panic recovered: %v\n%s", r, stack)
					result = ErrorResult("Internal server error", err)
				}
			}()

			return next(ctx, req)
		}
	}
}

// TimeoutMiddleware bounds the execution time of a tool call
func TimeoutMiddleware(timeout time.Duration) Middleware {
	return func(next ToolHandler) ToolHandler {
		return func(ctx context.Context, req *CallToolRequest) (*protocol.CallToolResult, error) {
			timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			resultCh := make(chan struct {
				result *protocol.CallToolResult
				err    error
			}, 1)

			go func() {
				result, err := next(timeoutCtx, req)
				resultCh <- struct {
					result *protocol.CallToolResult
					err    error
				}{result, err}
			}()

			select {
			case res := <-resultCh:
				return res.result, res.err
			case <-timeoutCtx.Done():
				return nil, TimeoutError(
					fmt.Sprintf("tool execution exceeded %v", timeout),
					WithDetail("tool", req.Params.Name),
				)
			}
		}
	}
}

// MetricsMiddleware records call metrics through the given collector
func MetricsMiddleware(collector MetricsCollector) Middleware {
	return func(next ToolHandler) ToolHandler {
		return func(ctx context.Context, req *CallToolRequest) (*protocol.CallToolResult, error) {
			start := time.Now()
			toolName := req.Params.Name

			result, err := next(ctx, req)

			duration := time.Since(start)

			collector.RecordToolCall(toolName, duration, err == nil)

			return result, err
		}
	}
}

// MetricsCollector receives per-call metrics
type MetricsCollector interface {
	RecordToolCall(tool string, duration time.Duration, success bool)
}

// RateLimitMiddleware rejects calls the limiter does not allow
func RateLimitMiddleware(limiter RateLimiter) Middleware {
	return func(next ToolHandler) ToolHandler {
		return func(ctx context.Context, req *CallToolRequest) (*protocol.CallToolResult, error) {
			toolName := req.Params.Name

			if !limiter.Allow(toolName) {
				return nil, NewToolError(
					ErrTooManyRequest,
					fmt.Sprintf("rate limit exceeded for tool %s", toolName),
					WithDetail("tool", toolName),
				)
			}

			return next(ctx, req)
		}
	}
}

// RateLimiter decides whether a tool call may proceed
type RateLimiter interface {
	Allow(tool string) bool
}

// AuthMiddleware validates the caller before dispatching the tool call
func AuthMiddleware(validator AuthValidator) Middleware {
	return func(next ToolHandler) ToolHandler {
		return func(ctx context.Context, req *CallToolRequest) (*protocol.CallToolResult, error) {
			authInfo := extractAuthInfo(ctx, req)

			if !validator.Validate(authInfo, req.Params.Name) {
				return nil, UnauthorizedError(
					fmt.Sprintf("not authorized to call tool %s", req.Params.Name),
					WithDetail("tool", req.Params.Name),
				)
			}

			return next(ctx, req)
		}
	}
}

// AuthValidator validates auth info against a tool name
type AuthValidator interface {
	Validate(authInfo interface{}, tool string) bool
}

// extractAuthInfo pulls auth info from the request metadata
func extractAuthInfo(ctx context.Context, req *CallToolRequest) interface{} {
	if req.Params.Meta != nil {
		if auth, ok := req.Params.Meta["auth"]; ok {
			return auth
		}
	}
	return nil
}

// RetryMiddleware retries failed calls with linear backoff
func RetryMiddleware(maxRetries int, shouldRetry func(error) bool) Middleware {
	return func(next ToolHandler) ToolHandler {
		return func(ctx context.Context, req *CallToolRequest) (*protocol.CallToolResult, error) {
			var lastErr error
			var result *protocol.CallToolResult

			for attempt := 0; attempt <= maxRetries; attempt++ {
				result, lastErr = next(ctx, req)

				if lastErr == nil || !shouldRetry(lastErr) {
					return result, lastErr
				}

				if attempt < maxRetries {
					select {
					case <-ctx.Done():
						return nil, ctx.Err()
					case <-time.After(time.Duration(attempt+1) * 100 * time.Millisecond):
					}
				}
			}

			return result, lastErr
		}
	}
}

// ValidationMiddleware validates arguments before dispatching the tool call
func ValidationMiddleware(validator ParamsValidator) Middleware {
	return func(next ToolHandler) ToolHandler {
		return func(ctx context.Context, req *CallToolRequest) (*protocol.CallToolResult, error) {
			if err := validator.Validate(req.Params.Name, req.Params.Arguments); err != nil {
				return nil, InvalidParamsError(
					err.Error(),
					WithDetail("tool", req.Params.Name),
				)
			}

			return next(ctx, req)
		}
	}
}

type ParamsValidator interface {
	Validate(tool string, arguments map[string]any) error
}
