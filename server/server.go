package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/taskmcp/mcp-sdk-go/protocol"
	"github.com/taskmcp/mcp-sdk-go/tasks"
	"github.com/taskmcp/mcp-sdk-go/transport"
)

// Server represents an MCP server instance that can serve one or more MCP sessions
type Server struct {
	impl *protocol.ServerInfo
	opts ServerOptions

	sweepOnce   sync.Once
	sweepCancel context.CancelFunc

	mu                    sync.Mutex
	middlewares           []Middleware // Middleware chain
	tools                 map[string]*serverTool
	resources             map[string]*serverResource
	resourceTemplates     map[string]*serverResourceTemplate
	prompts               map[string]*serverPrompt
	sessions              []*ServerSession
	resourceSubscriptions map[string]map[*ServerSession]bool // uri -> session -> bool
}

type ServerOptions struct {
	// Optional client instructions
	Instructions string

	// Initialized handler function
	InitializedHandler func(context.Context, *ServerSession)

	// Progress notification handler function
	ProgressNotificationHandler func(context.Context, *ServerSession, *protocol.ProgressNotificationParams)

	// Logging level setting handler function
	LoggingSetLevelHandler func(context.Context, *ServerSession, protocol.LoggingLevel) error

	// Resource subscribe/unsubscribe handler functions
	SubscribeHandler   func(context.Context, *protocol.SubscribeParams) error
	UnsubscribeHandler func(context.Context, *protocol.UnsubscribeParams) error

	// KeepAlive defines the interval for periodic "ping" requests
	// If the peer fails to respond to a keepalive ping, the session will be closed automatically
	KeepAlive time.Duration

	// Tasks wires the background task subsystem (MCP 2025-11-25).
	// When nil, task-augmented requests degrade to synchronous execution.
	Tasks *TaskOptions
}

// TaskOptions configures background task execution.
type TaskOptions struct {
	// Queue executes task-augmented requests and owns the task store.
	Queue tasks.Queue

	// Mappings resolves client-visible task ids to routing keys.
	Mappings tasks.MappingStore

	// Store is swept periodically for expired task records. Optional; when
	// nil no sweep loop runs.
	Store tasks.Store

	// ResultTTL is the default retention of task results after the terminal
	// state. Task metadata on a request may override it. Defaults to 1 minute.
	ResultTTL time.Duration

	// PollInterval is the poll cadence suggested to clients and used by the
	// status relay. Defaults to 1 second.
	PollInterval time.Duration

	// SweepInterval is how often expired records are swept. Defaults to
	// 1 minute.
	SweepInterval time.Duration
}

const (
	defaultResultTTL     = time.Minute
	defaultPollInterval  = time.Second
	defaultSweepInterval = time.Minute
)

func (o *TaskOptions) resultTTL() time.Duration {
	if o.ResultTTL > 0 {
		return o.ResultTTL
	}
	return defaultResultTTL
}

func (o *TaskOptions) pollInterval() time.Duration {
	if o.PollInterval > 0 {
		return o.PollInterval
	}
	return defaultPollInterval
}

type serverTool struct {
	tool    *protocol.Tool
	handler ToolHandler
}

type serverResource struct {
	resource *protocol.Resource
	handler  ResourceHandler
}

type serverResourceTemplate struct {
	template *protocol.ResourceTemplate
	handler  ResourceHandler
}

type serverPrompt struct {
	prompt  *protocol.Prompt
	handler PromptHandler
}

type ResourceHandler func(ctx context.Context, req *ReadResourceRequest) (*protocol.ReadResourceResult, error)
type PromptHandler func(ctx context.Context, req *GetPromptRequest) (*protocol.GetPromptResult, error)

type ReadResourceRequest struct {
	Session *ServerSession
	Params  *protocol.ReadResourceParams
}

type GetPromptRequest struct {
	Session *ServerSession
	Params  *protocol.GetPromptParams
}

func NewServer(impl *protocol.ServerInfo, opts *ServerOptions) *Server {
	s := &Server{
		impl:                  impl,
		tools:                 make(map[string]*serverTool),
		resources:             make(map[string]*serverResource),
		resourceTemplates:     make(map[string]*serverResourceTemplate),
		prompts:               make(map[string]*serverPrompt),
		sessions:              make([]*ServerSession, 0),
		resourceSubscriptions: make(map[string]map[*ServerSession]bool),
	}
	if opts != nil {
		s.opts = *opts
	}
	return s
}

// AddTool adds a tool to the server, or replaces a tool with the same name (low-level API).
// The Tool parameter must not be modified after this call.
//
// The tool's input schema must be non-nil and have type "object". For tools that accept
// no input or any input, set [Tool.InputSchema] to `{"type": "object"}` using your
// preferred library or `json.RawMessage`.
//
// If [Tool.OutputSchema] exists, it must also have type "object".
//
// It is the caller's responsibility to deserialize arguments and validate them
// against the input schema, and to validate the result against the output
// schema (if any).
//
// Most users should use the top-level function [AddTool], which handles all
// these responsibilities.
func (s *Server) AddTool(t *protocol.Tool, h ToolHandler) {
	if t.InputSchema == nil {
		panic(fmt.Errorf("AddTool %q: missing input schema", t.Name))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Apply middleware
	wrappedHandler := applyMiddleware(h, s.middlewares)

	s.tools[t.Name] = &serverTool{
		tool:    t,
		handler: wrappedHandler,
	}

	// Notify all sessions that the tool list has changed
	s.notifyToolListChanged()
}

func (s *Server) RemoveTool(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tools[name]; exists {
		delete(s.tools, name)
		s.notifyToolListChanged()
	}
}

func (s *Server) AddResource(r *protocol.Resource, h ResourceHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.resources[r.URI] = &serverResource{
		resource: r,
		handler:  h,
	}

	s.notifyResourceListChanged()
}

func (s *Server) RemoveResource(uri string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.resources[uri]; exists {
		delete(s.resources, uri)
		s.notifyResourceListChanged()
	}
}

func (s *Server) AddResourceTemplate(t *protocol.ResourceTemplate, h ResourceHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.resourceTemplates[t.URITemplate] = &serverResourceTemplate{
		template: t,
		handler:  h,
	}

	s.notifyResourceTemplateListChanged()
}

func (s *Server) RemoveResourceTemplate(uriTemplate string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.resourceTemplates[uriTemplate]; exists {
		delete(s.resourceTemplates, uriTemplate)
		s.notifyResourceTemplateListChanged()
	}
}

func (s *Server) AddPrompt(p *protocol.Prompt, h PromptHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.prompts[p.Name] = &serverPrompt{
		prompt:  p,
		handler: h,
	}

	s.notifyPromptListChanged()
}

func (s *Server) RemovePrompt(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.prompts[name]; exists {
		delete(s.prompts, name)
		s.notifyPromptListChanged()
	}
}

// Run runs the server on the given transport.
// This is a convenience method for handling a single session (or one session at a time).
//
// Run blocks until the client terminates the connection or the provided context is cancelled.
// If the context is cancelled, Run will close the connection.
func (s *Server) Run(ctx context.Context, t transport.Transport) error {
	ss, err := s.Connect(ctx, t, nil)
	if err != nil {
		return err
	}

	ssClosed := make(chan error)
	go func() {
		ssClosed <- ss.Wait()
	}()

	select {
	case <-ctx.Done():
		ss.Close()
		<-ssClosed // Wait for goroutine to finish
		return ctx.Err()
	case err := <-ssClosed:
		return err
	}
}

// Connect connects the MCP server via the given transport and starts processing messages.
//
// It returns a connection object that can be used to terminate the connection (using Close)
// or wait for the client to terminate (using Wait).
func (s *Server) Connect(ctx context.Context, t transport.Transport, opts *ServerSessionOptions) (*ServerSession, error) {
	conn, err := t.Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("transport connect failed: %w", err)
	}

	sessCtx, sessCancel := context.WithCancel(ctx)
	ss := &ServerSession{
		server:          s,
		conn:            newConnAdapter(conn),
		ctx:             sessCtx,
		cancel:          sessCancel,
		waitErr:         make(chan error, 1),
		pendingRequests: make(map[string]context.CancelFunc),
	}

	if opts != nil && opts.State != nil {
		ss.state = *opts.State
	}

	if opts != nil && opts.onClose != nil {
		ss.onClose = opts.onClose
	}

	s.mu.Lock()
	s.sessions = append(s.sessions, ss)
	s.mu.Unlock()

	s.startSweeper()

	// Start message processing loop
	go func() {
		err := s.handleConnection(sessCtx, ss, ss.conn)
		ss.waitErr <- err
		close(ss.waitErr)
	}()

	return ss, nil
}

// startSweeper runs the expired-record sweep loop for the task store.
func (s *Server) startSweeper() {
	if s.opts.Tasks == nil || s.opts.Tasks.Store == nil {
		return
	}
	s.sweepOnce.Do(func() {
		interval := s.opts.Tasks.SweepInterval
		if interval <= 0 {
			interval = defaultSweepInterval
		}
		ctx, cancel := context.WithCancel(context.Background())
		s.sweepCancel = cancel

		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if _, err := s.opts.Tasks.Store.SweepExpired(ctx); err != nil {
						taskLog.Error("sweep expired task records", "error", err)
					}
				}
			}
		}()
	})
}

// Close stops background work and closes all active sessions.
func (s *Server) Close() error {
	if s.sweepCancel != nil {
		s.sweepCancel()
	}

	s.mu.Lock()
	sessions := make([]*ServerSession, len(s.sessions))
	copy(sessions, s.sessions)
	s.mu.Unlock()

	var firstErr error
	for _, ss := range sessions {
		if err := ss.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// handleConnection handles the message loop for a connection
func (s *Server) handleConnection(ctx context.Context, ss *ServerSession, conn Connection) error {
	defer func() {
		s.disconnect(ss)
		ss.cancel()
		conn.Close()
	}()

	// Get the underlying connAdapter for handling response messages
	adapter, ok := conn.(*connAdapter)
	if !ok {
		return fmt.Errorf("invalid connection type")
	}

	for {
		// Explicitly check context cancellation
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		msg, err := adapter.conn.Read(ctx)
		if err != nil {
			return err
		}

		// If it's a response message, route to connAdapter
		if msg.Method == "" && msg.ID != nil {
			adapter.handleResponse(msg)
			continue
		}

		response := s.handleMessage(ctx, ss, msg)
		if response != nil {
			if err := adapter.conn.Write(ctx, response); err != nil {
				return err
			}
		}
	}
}

// handleMessage handles a single JSON-RPC message
func (s *Server) handleMessage(ctx context.Context, ss *ServerSession, msg *protocol.JSONRPCMessage) *protocol.JSONRPCMessage {
	if msg.ID != nil {
		// Request - needs response
		// Create cancellable context and track request
		requestID := protocol.IDToString(msg.ID)
		requestCtx, cancel := context.WithCancel(ctx)

		ss.mu.Lock()
		ss.pendingRequests[requestID] = cancel
		ss.mu.Unlock()

		// Ensure request is cleaned up after completion
		defer func() {
			ss.mu.Lock()
			delete(ss.pendingRequests, requestID)
			ss.mu.Unlock()
			cancel()
		}()

		result, err := s.handleRequest(requestCtx, ss, msg.Method, msg.Params)
		if err != nil {
			code := protocol.InternalError
			var mcpErr *protocol.MCPError
			if errors.As(err, &mcpErr) {
				code = mcpErr.Code
			}
			return &protocol.JSONRPCMessage{
				JSONRPC: "2.0",
				ID:      msg.ID,
				Error: &protocol.JSONRPCError{
					Code:    code,
					Message: err.Error(),
				},
			}
		}

		// Serialize result
		resultBytes, err := json.Marshal(result)
		if err != nil {
			return &protocol.JSONRPCMessage{
				JSONRPC: "2.0",
				ID:      msg.ID,
				Error: &protocol.JSONRPCError{
					Code:    protocol.InternalError,
					Message: fmt.Sprintf("failed to marshal result: %v", err),
				},
			}
		}

		return &protocol.JSONRPCMessage{
			JSONRPC: "2.0",
			ID:      msg.ID,
			Result:  json.RawMessage(resultBytes),
		}
	} else {
		// Notification - no response needed
		_ = s.handleNotification(ctx, ss, msg.Method, msg.Params)
		return nil
	}
}

func (s *Server) disconnect(ss *ServerSession) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, session := range s.sessions {
		if session == ss {
			s.sessions = append(s.sessions[:i], s.sessions[i+1:]...)
			break
		}
	}

	for _, subscribedSessions := range s.resourceSubscriptions {
		delete(subscribedSessions, ss)
	}
}

type ServerSessionOptions struct {
	State   *ServerSessionState
	onClose func()
}

// notifyToolListChanged notifies all sessions that the tool list has changed
func (s *Server) notifyToolListChanged() {
	for _, ss := range s.sessions {
		_ = ss.conn.SendNotification(context.Background(), protocol.NotificationToolsListChanged, &protocol.ToolListChangedParams{})
	}
}

// notifyResourceListChanged notifies all sessions that the resource list has changed
func (s *Server) notifyResourceListChanged() {
	for _, ss := range s.sessions {
		_ = ss.conn.SendNotification(context.Background(), protocol.NotificationResourcesListChanged, &protocol.ResourceListChangedParams{})
	}
}

// notifyResourceTemplateListChanged notifies all sessions that the resource template list has changed
func (s *Server) notifyResourceTemplateListChanged() {
	for _, ss := range s.sessions {
		_ = ss.conn.SendNotification(context.Background(), protocol.NotificationResourcesTemplatesListChanged, &protocol.ResourceTemplateListChangedParams{})
	}
}

// notifyPromptListChanged notifies all sessions that the prompt list has changed
func (s *Server) notifyPromptListChanged() {
	for _, ss := range s.sessions {
		_ = ss.conn.SendNotification(context.Background(), protocol.NotificationPromptsListChanged, &protocol.PromptListChangedParams{})
	}
}

// NotifyResourceUpdated notifies all sessions subscribed to the specified resource that it has been updated.
// Only clients that have previously called resources/subscribe to subscribe to this URI will receive the notification.
func (s *Server) NotifyResourceUpdated(uri string) {
	s.mu.Lock()
	subscribedSessions, exists := s.resourceSubscriptions[uri]
	if !exists || len(subscribedSessions) == 0 {
		s.mu.Unlock()
		return
	}

	// Copy session list to avoid holding lock for too long
	sessions := make([]*ServerSession, 0, len(subscribedSessions))
	for ss := range subscribedSessions {
		sessions = append(sessions, ss)
	}
	s.mu.Unlock()

	// Send notifications
	params := &protocol.ResourceUpdatedNotificationParams{
		URI: uri,
	}
	for _, ss := range sessions {
		if ss.conn != nil {
			_ = ss.conn.SendNotification(context.Background(), protocol.NotificationResourcesUpdated, params)
		}
	}
}

// handleRequest handles requests from the client
func (s *Server) handleRequest(ctx context.Context, ss *ServerSession, method string, params json.RawMessage) (interface{}, error) {
	switch method {
	case protocol.MethodInitialize:
		return s.handleInitialize(ctx, ss, params)
	case protocol.MethodToolsList:
		return s.handleListTools(ctx, ss, params)
	case protocol.MethodToolsCall:
		return s.handleCallTool(ctx, ss, params)
	case protocol.MethodResourcesList:
		return s.handleListResources(ctx, ss, params)
	case protocol.MethodResourcesRead:
		return s.handleReadResource(ctx, ss, params)
	case protocol.MethodResourcesTemplatesList:
		return s.handleListResourceTemplates(ctx, ss, params)
	case protocol.MethodResourcesSubscribe:
		return s.handleSubscribe(ctx, ss, params)
	case protocol.MethodResourcesUnsubscribe:
		return s.handleUnsubscribe(ctx, ss, params)
	case protocol.MethodPromptsList:
		return s.handleListPrompts(ctx, ss, params)
	case protocol.MethodPromptsGet:
		return s.handleGetPrompt(ctx, ss, params)
	case protocol.MethodPing:
		return &protocol.EmptyResult{}, nil
	case protocol.MethodLoggingSetLevel:
		return s.handleSetLoggingLevel(ctx, ss, params)
	case protocol.MethodTasksGet:
		return s.handleTasksGet(ctx, ss, params)
	case protocol.MethodTasksResult:
		return s.handleTasksResult(ctx, ss, params)
	case protocol.MethodTasksList:
		return s.handleTasksList(ctx, ss, params)
	case protocol.MethodTasksCancel:
		return s.handleTasksCancel(ctx, ss, params)
	case protocol.MethodTasksDelete:
		return s.handleTasksDelete(ctx, ss, params)
	default:
		return nil, protocol.NewMCPError(protocol.MethodNotFound, fmt.Sprintf("unknown method: %s", method), nil)
	}
}

// handleNotification handles notifications from the client
func (s *Server) handleNotification(ctx context.Context, ss *ServerSession, method string, params json.RawMessage) error {
	switch method {
	case protocol.NotificationInitialized:
		return s.handleInitialized(ctx, ss, params)
	case protocol.NotificationCancelled:
		return s.handleCancelled(ctx, ss, params)
	case protocol.NotificationProgress:
		return s.handleProgress(ctx, ss, params)
	case protocol.NotificationRootsListChanged:
		return s.handleRootsListChanged(ctx, ss, params)
	default:
		return fmt.Errorf("unknown notification: %s", method)
	}
}

// handleInitialize handles the initialize request
func (s *Server) handleInitialize(ctx context.Context, ss *ServerSession, params json.RawMessage) (*protocol.InitializeResult, error) {
	var req protocol.InitializeParams
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, fmt.Errorf("invalid initialize params: %w", err)
	}

	if !protocol.IsVersionSupported(req.ProtocolVersion) {
		return nil, fmt.Errorf("unsupported protocol version: %s (supported: %v)",
			req.ProtocolVersion, protocol.GetSupportedVersions())
	}

	ss.updateState(func(state *ServerSessionState) {
		state.InitializeParams = &req
	})

	capabilities := protocol.ServerCapabilities{}

	s.mu.Lock()
	if len(s.tools) > 0 {
		capabilities.Tools = &protocol.ToolsCapability{ListChanged: true}
	}
	if len(s.resources) > 0 {
		capabilities.Resources = &protocol.ResourcesCapability{
			ListChanged: true,
			Subscribe:   true,
		}
	}
	if len(s.prompts) > 0 {
		capabilities.Prompts = &protocol.PromptsCapability{ListChanged: true}
	}
	s.mu.Unlock()

	capabilities.Logging = &protocol.LoggingCapability{}

	if s.opts.Tasks != nil {
		capabilities.Tasks = &protocol.TasksCapability{
			List:   &struct{}{},
			Cancel: &struct{}{},
			Requests: &protocol.ServerTaskRequestsCapability{
				Tools:     &protocol.ToolsTaskCapability{Call: &struct{}{}},
				Prompts:   &protocol.PromptsTaskCapability{Get: &struct{}{}},
				Resources: &protocol.ResourcesTaskCapability{Read: &struct{}{}},
			},
		}
	}

	return &protocol.InitializeResult{
		ProtocolVersion: req.ProtocolVersion,
		Capabilities:    capabilities,
		ServerInfo:      *s.impl,
		Instructions:    s.opts.Instructions,
	}, nil
}

// handleInitialized handles the initialized notification
func (s *Server) handleInitialized(ctx context.Context, ss *ServerSession, params json.RawMessage) error {
	var req protocol.InitializedParams
	if err := json.Unmarshal(params, &req); err != nil {
		return fmt.Errorf("invalid initialized params: %w", err)
	}

	ss.updateState(func(state *ServerSessionState) {
		state.InitializedParams = &req
	})

	// Start keepalive
	if s.opts.KeepAlive > 0 {
		ss.startKeepalive(s.opts.KeepAlive)
	}

	if s.opts.InitializedHandler != nil {
		s.opts.InitializedHandler(ctx, ss)
	}

	return nil
}

// handleListTools handles the tools/list request
func (s *Server) handleListTools(ctx context.Context, ss *ServerSession, params json.RawMessage) (*protocol.ListToolsResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tools := make([]protocol.Tool, 0, len(s.tools))
	for _, st := range s.tools {
		tools = append(tools, *st.tool)
	}

	return &protocol.ListToolsResult{
		Tools: tools,
	}, nil
}

// taskMode returns the declared task support of a component, defaulting to
// forbidden when nothing is declared.
func taskMode(exec *protocol.ToolExecution) protocol.TaskSupport {
	if exec == nil || exec.TaskSupport == "" {
		return protocol.TaskSupportForbidden
	}
	return exec.TaskSupport
}

// checkTaskMode enforces the component's task support against the request.
// It returns true when the request should run as a background task.
func (s *Server) checkTaskMode(kind tasks.Kind, component string, exec *protocol.ToolExecution, meta *protocol.TaskMetadata) (bool, error) {
	mode := taskMode(exec)

	if meta != nil {
		if mode == protocol.TaskSupportForbidden {
			return false, protocol.NewMCPError(protocol.InvalidParams,
				fmt.Sprintf("%s %q does not support task execution", kind, component), nil)
		}
		// Without a configured subsystem the request degrades to synchronous
		// execution; the immediate result is still valid for the caller.
		if s.opts.Tasks == nil {
			return false, nil
		}
		return true, nil
	}

	if mode == protocol.TaskSupportRequired && s.opts.Tasks != nil {
		return false, protocol.NewMCPError(protocol.InvalidParams,
			fmt.Sprintf("%s %q requires task execution; include task metadata in the request", kind, component), nil)
	}
	return false, nil
}

// handleCallTool handles the tools/call request
func (s *Server) handleCallTool(ctx context.Context, ss *ServerSession, params json.RawMessage) (*protocol.CallToolResult, error) {
	var req protocol.CallToolParams
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, fmt.Errorf("invalid call tool params: %w", err)
	}

	s.mu.Lock()
	st, exists := s.tools[req.Name]
	s.mu.Unlock()

	if !exists {
		return protocol.NewToolResultError(fmt.Sprintf("tool not found: %s", req.Name)), nil
	}

	asTask, err := s.checkTaskMode(tasks.KindTool, req.Name, st.tool.Execution, req.Task)
	if err != nil {
		return nil, err
	}
	if asTask {
		return s.submitToolTask(ctx, ss, st, &req)
	}

	toolReq := &CallToolRequest{
		Session: ss,
		Params:  &req,
	}

	return st.handler(ctx, toolReq)
}

// handleListResources handles the resources/list request
func (s *Server) handleListResources(ctx context.Context, ss *ServerSession, params json.RawMessage) (*protocol.ListResourcesResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	resources := make([]protocol.Resource, 0, len(s.resources))
	for _, sr := range s.resources {
		resources = append(resources, *sr.resource)
	}

	return &protocol.ListResourcesResult{
		Resources: resources,
	}, nil
}

// handleListResourceTemplates handles the resources/templates/list request
func (s *Server) handleListResourceTemplates(ctx context.Context, ss *ServerSession, params json.RawMessage) (*protocol.ListResourceTemplatesResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	templates := make([]protocol.ResourceTemplate, 0, len(s.resourceTemplates))
	for _, srt := range s.resourceTemplates {
		templates = append(templates, *srt.template)
	}

	return &protocol.ListResourceTemplatesResult{
		ResourceTemplates: templates,
	}, nil
}

// handleReadResource handles the resources/read request
func (s *Server) handleReadResource(ctx context.Context, ss *ServerSession, params json.RawMessage) (*protocol.ReadResourceResult, error) {
	var req protocol.ReadResourceParams
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, fmt.Errorf("invalid read resource params: %w", err)
	}

	s.mu.Lock()
	sr, exists := s.resources[req.URI]
	s.mu.Unlock()

	if !exists {
		return nil, protocol.NewMCPError(protocol.ResourceNotFound, fmt.Sprintf("resource not found: %s", req.URI), nil)
	}

	asTask, err := s.checkTaskMode(tasks.KindResource, req.URI, sr.resource.Execution, req.Task)
	if err != nil {
		return nil, err
	}
	if asTask {
		return s.submitResourceTask(ctx, ss, sr, &req)
	}

	resourceReq := &ReadResourceRequest{
		Session: ss,
		Params:  &req,
	}

	return sr.handler(ctx, resourceReq)
}

// handleSubscribe handles the resources/subscribe request
func (s *Server) handleSubscribe(ctx context.Context, ss *ServerSession, params json.RawMessage) (*protocol.EmptyResult, error) {
	if s.opts.SubscribeHandler == nil {
		return nil, fmt.Errorf("resource subscription not supported")
	}

	var req protocol.SubscribeParams
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, fmt.Errorf("invalid subscribe params: %w", err)
	}

	if err := s.opts.SubscribeHandler(ctx, &req); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.resourceSubscriptions[req.URI] == nil {
		s.resourceSubscriptions[req.URI] = make(map[*ServerSession]bool)
	}
	s.resourceSubscriptions[req.URI][ss] = true
	s.mu.Unlock()

	return &protocol.EmptyResult{}, nil
}

// handleUnsubscribe handles the resources/unsubscribe request
func (s *Server) handleUnsubscribe(ctx context.Context, ss *ServerSession, params json.RawMessage) (*protocol.EmptyResult, error) {
	if s.opts.UnsubscribeHandler == nil {
		return nil, fmt.Errorf("resource unsubscription not supported")
	}

	var req protocol.UnsubscribeParams
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, fmt.Errorf("invalid unsubscribe params: %w", err)
	}

	if err := s.opts.UnsubscribeHandler(ctx, &req); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.resourceSubscriptions[req.URI] != nil {
		delete(s.resourceSubscriptions[req.URI], ss)
	}
	s.mu.Unlock()

	return &protocol.EmptyResult{}, nil
}

// handleListPrompts handles the prompts/list request
func (s *Server) handleListPrompts(ctx context.Context, ss *ServerSession, params json.RawMessage) (*protocol.ListPromptsResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prompts := make([]protocol.Prompt, 0, len(s.prompts))
	for _, sp := range s.prompts {
		prompts = append(prompts, *sp.prompt)
	}

	return &protocol.ListPromptsResult{
		Prompts: prompts,
	}, nil
}

// handleGetPrompt handles the prompts/get request
func (s *Server) handleGetPrompt(ctx context.Context, ss *ServerSession, params json.RawMessage) (*protocol.GetPromptResult, error) {
	var req protocol.GetPromptParams
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, fmt.Errorf("invalid get prompt params: %w", err)
	}

	s.mu.Lock()
	sp, exists := s.prompts[req.Name]
	s.mu.Unlock()

	if !exists {
		return nil, protocol.NewMCPError(protocol.PromptNotFound, fmt.Sprintf("prompt not found: %s", req.Name), nil)
	}

	asTask, err := s.checkTaskMode(tasks.KindPrompt, req.Name, sp.prompt.Execution, req.Task)
	if err != nil {
		return nil, err
	}
	if asTask {
		return s.submitPromptTask(ctx, ss, sp, &req)
	}

	promptReq := &GetPromptRequest{
		Session: ss,
		Params:  &req,
	}

	return sp.handler(ctx, promptReq)
}

// handleCancelled handles the notifications/cancelled notification
func (s *Server) handleCancelled(ctx context.Context, ss *ServerSession, params json.RawMessage) error {
	var req protocol.CancelledNotificationParams
	if err := json.Unmarshal(params, &req); err != nil {
		return fmt.Errorf("invalid cancelled params: %w", err)
	}

	requestID := ""
	switch v := req.RequestID.(type) {
	case string:
		requestID = v
	case float64:
		requestID = fmt.Sprintf("%.0f", v)
	case json.Number:
		requestID = v.String()
	default:
		return fmt.Errorf("invalid requestId type: %T", req.RequestID)
	}

	ss.mu.Lock()
	cancel, exists := ss.pendingRequests[requestID]
	ss.mu.Unlock()

	if exists {
		cancel()
	}

	// Return nil even if request doesn't exist, as the request may have already completed
	return nil
}

// handleProgress handles the notifications/progress notification
func (s *Server) handleProgress(ctx context.Context, ss *ServerSession, params json.RawMessage) error {
	if s.opts.ProgressNotificationHandler == nil {
		return nil
	}

	var req protocol.ProgressNotificationParams
	if err := json.Unmarshal(params, &req); err != nil {
		return fmt.Errorf("invalid progress params: %w", err)
	}

	s.opts.ProgressNotificationHandler(ctx, ss, &req)
	return nil
}

// handleRootsListChanged handles the notifications/roots/list_changed notification
func (s *Server) handleRootsListChanged(ctx context.Context, ss *ServerSession, params json.RawMessage) error {
	// Client notifies that the root list has changed, server can choose to re-query
	return nil
}

// handleSetLoggingLevel handles the logging/setLevel request
func (s *Server) handleSetLoggingLevel(ctx context.Context, ss *ServerSession, params json.RawMessage) (*protocol.EmptyResult, error) {
	var req protocol.SetLoggingLevelParams
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, fmt.Errorf("invalid set level params: %w", err)
	}

	ss.updateState(func(state *ServerSessionState) {
		state.LogLevel = req.Level
	})

	if s.opts.LoggingSetLevelHandler != nil {
		if err := s.opts.LoggingSetLevelHandler(ctx, ss, req.Level); err != nil {
			return nil, err
		}
	}

	return &protocol.EmptyResult{}, nil
}
