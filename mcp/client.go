package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// ErrClosed is returned for calls on a client whose connection has ended.
var ErrClosed = errors.New("mcp: connection closed")

// Client represents an MCP client connection to a server
type Client struct {
	transport Transport
	nextID    int64
	pending   map[string]chan JSONRPCResponse
	mu        sync.RWMutex
	done      chan struct{}
	closeOnce sync.Once

	// Connection state
	initialized bool
	serverInfo  ServerInfo
	toolsCache  map[string]Tool

	// Configuration
	clientInfo ClientInfo
	timeout    time.Duration
}

// NewClient creates a new MCP client with the given transport and starts
// reading responses from it.
func NewClient(transport Transport) *Client {
	c := &Client{
		transport:  transport,
		pending:    make(map[string]chan JSONRPCResponse),
		done:       make(chan struct{}),
		toolsCache: make(map[string]Tool),
		clientInfo: ClientInfo{
			Name:    "go-lms",
			Version: "1.0.0",
		},
		timeout: 30 * time.Second,
	}
	go c.receiveLoop()
	return c
}

// Initialize performs the MCP initialization handshake
func (c *Client) Initialize(ctx context.Context) error {
	c.mu.RLock()
	initialized := c.initialized
	c.mu.RUnlock()
	if initialized {
		return nil
	}

	req := InitializeRequest{
		ProtocolVersion: ProtocolVersion,
		Capabilities: map[string]any{
			"tools": map[string]any{},
		},
		ClientInfo: c.clientInfo,
	}

	var resp InitializeResponse
	if err := c.call(ctx, "initialize", req, &resp); err != nil {
		return fmt.Errorf("failed to initialize MCP connection: %w", err)
	}

	notif := JSONRPCNotification{
		JSONRPC: "2.0",
		Method:  "notifications/initialized",
	}
	if err := c.transport.SendNotification(notif); err != nil {
		return fmt.Errorf("failed to send initialized notification: %w", err)
	}

	c.mu.Lock()
	c.serverInfo = resp.ServerInfo
	c.initialized = true
	c.mu.Unlock()
	return nil
}

// ListTools retrieves all available tools from the MCP server
func (c *Client) ListTools(ctx context.Context) ([]Tool, error) {
	if err := c.Initialize(ctx); err != nil {
		return nil, err
	}

	var resp ListToolsResponse
	if err := c.call(ctx, "tools/list", struct{}{}, &resp); err != nil {
		return nil, fmt.Errorf("failed to list tools: %w", err)
	}

	c.mu.Lock()
	c.toolsCache = make(map[string]Tool)
	for _, tool := range resp.Tools {
		c.toolsCache[tool.Name] = tool
	}
	c.mu.Unlock()

	return resp.Tools, nil
}

// CallTool executes a tool with the given JSON arguments. A tool failure is
// reported through CallToolResponse.IsError, not as an error.
func (c *Client) CallTool(ctx context.Context, name string, args json.RawMessage) (*CallToolResponse, error) {
	if err := c.Initialize(ctx); err != nil {
		return nil, err
	}

	req := CallToolRequest{
		Name:      name,
		Arguments: args,
	}

	var resp CallToolResponse
	if err := c.call(ctx, "tools/call", req, &resp); err != nil {
		return nil, fmt.Errorf("failed to call tool %s: %w", name, err)
	}

	return &resp, nil
}

// ListResources retrieves the resources the server currently offers.
func (c *Client) ListResources(ctx context.Context) ([]Resource, error) {
	if err := c.Initialize(ctx); err != nil {
		return nil, err
	}

	var resp ListResourcesResponse
	if err := c.call(ctx, "resources/list", struct{}{}, &resp); err != nil {
		return nil, fmt.Errorf("failed to list resources: %w", err)
	}
	return resp.Resources, nil
}

// ReadResource fetches the contents of one resource.
func (c *Client) ReadResource(ctx context.Context, uri string) ([]ResourceContents, error) {
	if err := c.Initialize(ctx); err != nil {
		return nil, err
	}

	var resp ReadResourceResponse
	if err := c.call(ctx, "resources/read", ReadResourceRequest{URI: uri}, &resp); err != nil {
		return nil, fmt.Errorf("failed to read resource %s: %w", uri, err)
	}
	return resp.Contents, nil
}

// GetTool returns a cached tool by name
func (c *Client) GetTool(name string) (Tool, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	tool, exists := c.toolsCache[name]
	return tool, exists
}

// Close closes the MCP client connection. Pending calls fail with ErrClosed.
func (c *Client) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	return c.transport.Close()
}

// call performs a JSON-RPC method call
func (c *Client) call(ctx context.Context, method string, params any, result any) error {
	idNum := atomic.AddInt64(&c.nextID, 1)
	id := NewNumberID(float64(idNum))

	rawParams, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("failed to marshal params: %w", err)
	}
	req := JSONRPCRequest{
		JSONRPC: "2.0",
		ID:      &id,
		Method:  method,
		Params:  rawParams,
	}

	respChan := make(chan JSONRPCResponse, 1)
	c.mu.Lock()
	c.pending[id.String()] = respChan
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, id.String())
		c.mu.Unlock()
	}()

	if err := c.transport.Send(req); err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case resp := <-respChan:
		if resp.Error != nil {
			return resp.Error
		}
		if result != nil && len(resp.Result) > 0 {
			if err := json.Unmarshal(resp.Result, result); err != nil {
				return fmt.Errorf("failed to unmarshal result: %w", err)
			}
		}
		return nil

	case <-c.done:
		return ErrClosed

	case <-ctx.Done():
		return ctx.Err()

	case <-timer.C:
		return fmt.Errorf("request timeout after %v", c.timeout)
	}
}

// receiveLoop routes responses to waiting calls until the transport fails.
func (c *Client) receiveLoop() {
	defer c.closeOnce.Do(func() { close(c.done) })
	for {
		resp, err := c.transport.Receive()
		if err != nil {
			return
		}

		c.mu.RLock()
		respChan, exists := c.pending[resp.ID.String()]
		c.mu.RUnlock()

		if exists {
			select {
			case respChan <- resp:
			default:
			}
		}
	}
}

// SetTimeout sets the request timeout
func (c *Client) SetTimeout(timeout time.Duration) {
	c.timeout = timeout
}

// ServerInfo returns information about the connected MCP server
func (c *Client) ServerInfo() ServerInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.serverInfo
}
