package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/flitsinc/go-lms/content"
	"github.com/flitsinc/go-lms/tools"
)

const maxMessageSize = 4 << 20

// ErrResourceNotFound is returned by a ResourceProvider for an unknown URI.
var ErrResourceNotFound = errors.New("resource not found")

// ResourceProvider backs resources/list and resources/read.
type ResourceProvider interface {
	ListResources(ctx context.Context) ([]Resource, error)
	ReadResource(ctx context.Context, uri string) ([]ResourceContents, error)
}

// Server answers MCP requests by dispatching tool calls to a toolbox. It is
// independent of the transport: Handle serves one decoded request and Serve
// adapts it to newline-delimited JSON streams such as stdio.
type Server struct {
	info         ServerInfo
	instructions string
	toolbox      *tools.Toolbox
	resources    ResourceProvider
	logger       *slog.Logger

	schemasOnce sync.Once
	schemas     []Tool
}

func NewServer(name, version string, toolbox *tools.Toolbox) *Server {
	return &Server{
		info:    ServerInfo{Name: name, Version: version},
		toolbox: toolbox,
		logger:  slog.Default(),
	}
}

func (s *Server) WithLogger(logger *slog.Logger) *Server {
	s.logger = logger
	return s
}

// WithInstructions sets the usage hint returned from initialize.
func (s *Server) WithInstructions(instructions string) *Server {
	s.instructions = instructions
	return s
}

// WithResources enables the resources capability, served by p.
func (s *Server) WithResources(p ResourceProvider) *Server {
	s.resources = p
	return s
}

// Serve reads one JSON-RPC message per line from r and writes responses to w
// until r is exhausted or ctx is done. Requests are handled in order.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxMessageSize)
	enc := json.NewEncoder(w)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		resp := s.HandleMessage(ctx, line)
		if resp == nil {
			continue
		}
		if err := enc.Encode(resp); err != nil {
			return fmt.Errorf("failed to write response: %w", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read request: %w", err)
	}
	return nil
}

// HandleMessage decodes and handles one raw message. It returns nil when no
// response is due.
func (s *Server) HandleMessage(ctx context.Context, data []byte) *JSONRPCResponse {
	var req JSONRPCRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.logger.Warn("invalid JSON-RPC message", "error", err)
		return errorResponse(NullID(), CodeParseError, "Parse error: "+err.Error())
	}
	return s.Handle(ctx, req)
}

// Handle serves one request. Notifications never produce a response.
func (s *Server) Handle(ctx context.Context, req JSONRPCRequest) (resp *JSONRPCResponse) {
	id := NullID()
	if req.ID != nil {
		id = *req.ID
	}
	defer func() {
		if v := recover(); v != nil {
			s.logger.Error("panic while handling request", "method", req.Method, "panic", v)
			resp = errorResponse(id, CodeInternalError, fmt.Sprintf("Internal error: %v", v))
			if req.IsNotification() {
				resp = nil
			}
		}
	}()

	if req.JSONRPC != "2.0" || req.Method == "" {
		if req.IsNotification() {
			return nil
		}
		return errorResponse(id, CodeInvalidRequest, "Invalid request")
	}
	s.logger.Debug("handling request", "method", req.Method, "id", id.String())

	var result any
	var rpcErr *JSONRPCError
	switch req.Method {
	case "initialize":
		result = s.initialize()
	case "notifications/initialized", "notifications/cancelled":
		return nil
	case "ping":
		result = struct{}{}
	case "tools/list":
		result = ListToolsResponse{Tools: s.listTools()}
	case "tools/call":
		result, rpcErr = s.callTool(ctx, req.Params)
	case "resources/list":
		result, rpcErr = s.listResources(ctx)
	case "resources/read":
		result, rpcErr = s.readResource(ctx, req.Params)
	case "prompts/list":
		result = map[string]any{"prompts": []any{}}
	default:
		rpcErr = &JSONRPCError{Code: CodeMethodNotFound, Message: "Method not found: " + req.Method}
	}

	if req.IsNotification() {
		return nil
	}
	if rpcErr != nil {
		return &JSONRPCResponse{JSONRPC: "2.0", ID: id, Error: rpcErr}
	}
	data, err := json.Marshal(result)
	if err != nil {
		return errorResponse(id, CodeInternalError, "Internal error: "+err.Error())
	}
	return &JSONRPCResponse{JSONRPC: "2.0", ID: id, Result: data}
}

func (s *Server) initialize() InitializeResponse {
	capabilities := map[string]any{
		"tools": map[string]any{},
	}
	if s.resources != nil {
		capabilities["resources"] = map[string]any{}
	}
	return InitializeResponse{
		ProtocolVersion: ProtocolVersion,
		Capabilities:    capabilities,
		ServerInfo:      s.info,
		Instructions:    s.instructions,
	}
}

func (s *Server) listTools() []Tool {
	s.schemasOnce.Do(func() {
		s.schemas = []Tool{}
		for _, t := range s.toolbox.All() {
			s.schemas = append(s.schemas, Tool{
				Name:        t.FuncName(),
				Description: t.Description(),
				InputSchema: inputSchema(t.Schema().Parameters),
			})
		}
	})
	return s.schemas
}

func (s *Server) callTool(ctx context.Context, params json.RawMessage) (any, *JSONRPCError) {
	var req CallToolRequest
	if err := json.Unmarshal(params, &req); err != nil || req.Name == "" {
		return nil, &JSONRPCError{Code: CodeInvalidParams, Message: "Invalid params: tools/call requires a tool name"}
	}
	if s.toolbox.Get(req.Name) == nil {
		return nil, &JSONRPCError{Code: CodeInvalidParams, Message: "Unknown tool: " + req.Name}
	}

	logger := s.logger.With("tool", req.Name)
	start := time.Now()
	result := s.toolbox.Run(tools.LogRunner(ctx, s.toolbox, s.logger, req.Name), req.Name, req.Arguments)
	if err := result.Error(); err != nil {
		logger.Warn("tool failed", "error", err, "duration", time.Since(start))
		return CallToolResponse{
			Content: []Content{{Type: "text", Text: errorText(result.Label(), err)}},
			IsError: true,
		}, nil
	}
	logger.Info("tool succeeded", "label", result.Label(), "duration", time.Since(start))
	return CallToolResponse{Content: textContent(result.Content())}, nil
}

func (s *Server) listResources(ctx context.Context) (any, *JSONRPCError) {
	if s.resources == nil {
		return ListResourcesResponse{Resources: []Resource{}}, nil
	}
	resources, err := s.resources.ListResources(ctx)
	if err != nil {
		s.logger.Warn("failed to list resources", "error", err)
		return nil, &JSONRPCError{Code: CodeInternalError, Message: "Internal error: " + err.Error()}
	}
	if resources == nil {
		resources = []Resource{}
	}
	return ListResourcesResponse{Resources: resources}, nil
}

func (s *Server) readResource(ctx context.Context, params json.RawMessage) (any, *JSONRPCError) {
	var req ReadResourceRequest
	if err := json.Unmarshal(params, &req); err != nil || req.URI == "" {
		return nil, &JSONRPCError{Code: CodeInvalidParams, Message: "Invalid params: resources/read requires a uri"}
	}
	if s.resources == nil {
		return nil, &JSONRPCError{Code: CodeResourceNotFound, Message: "Resource not found: " + req.URI}
	}
	contents, err := s.resources.ReadResource(ctx, req.URI)
	switch {
	case errors.Is(err, ErrResourceNotFound):
		return nil, &JSONRPCError{Code: CodeResourceNotFound, Message: "Resource not found: " + req.URI}
	case err != nil:
		s.logger.Warn("failed to read resource", "uri", req.URI, "error", err)
		return nil, &JSONRPCError{Code: CodeInternalError, Message: "Internal error: " + err.Error()}
	}
	return ReadResourceResponse{Contents: contents}, nil
}

// textContent renders result content as MCP text items; JSON items become
// their raw JSON text.
func textContent(c content.Content) []Content {
	out := []Content{}
	for _, text := range c.Strings() {
		out = append(out, Content{Type: "text", Text: text})
	}
	return out
}

func errorText(label string, err error) string {
	msg := err.Error()
	if label == "" || strings.Contains(label, msg) {
		return msg
	}
	return label + "\n" + msg
}

func inputSchema(schema tools.ValueSchema) map[string]any {
	data, err := json.Marshal(schema)
	if err != nil {
		return map[string]any{"type": "object"}
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return map[string]any{"type": "object"}
	}
	return m
}

func errorResponse(id MCPID, code int, message string) *JSONRPCResponse {
	return &JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &JSONRPCError{Code: code, Message: message},
	}
}
