package mcp

import (
	"encoding/json"
	"fmt"
)

// ProtocolVersion is the MCP revision this package speaks.
const ProtocolVersion = "2024-11-05"

// JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603

	CodeResourceNotFound = -32002
)

// MCPID represents a JSON-RPC ID that can be a string, a number or null.
type MCPID struct {
	isString bool
	isNull   bool
	strVal   string
	numVal   float64
}

// NewStringID creates an MCPID from a string
func NewStringID(s string) MCPID {
	return MCPID{isString: true, strVal: s}
}

// NewNumberID creates an MCPID from a number
func NewNumberID(n float64) MCPID {
	return MCPID{isString: false, numVal: n}
}

// NullID is the id of responses to requests whose id could not be read.
func NullID() MCPID {
	return MCPID{isNull: true}
}

// String returns a string representation for use as a map key
func (id MCPID) String() string {
	switch {
	case id.isNull:
		return "null"
	case id.isString:
		return id.strVal
	}
	return fmt.Sprintf("%.0f", id.numVal)
}

// MarshalJSON implements json.Marshaler
func (id MCPID) MarshalJSON() ([]byte, error) {
	switch {
	case id.isNull:
		return []byte("null"), nil
	case id.isString:
		return json.Marshal(id.strVal)
	}
	return json.Marshal(id.numVal)
}

// UnmarshalJSON implements json.Unmarshaler
func (id *MCPID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*id = NullID()
		return nil
	}

	var strVal string
	if err := json.Unmarshal(data, &strVal); err == nil {
		*id = NewStringID(strVal)
		return nil
	}

	var numVal float64
	if err := json.Unmarshal(data, &numVal); err == nil {
		*id = NewNumberID(numVal)
		return nil
	}

	return fmt.Errorf("ID must be string, number or null")
}

// JSONRPCRequest is a request or, when ID is nil, a notification.
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *MCPID          `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IsNotification reports whether the request expects no response.
func (r JSONRPCRequest) IsNotification() bool {
	return r.ID == nil
}

// JSONRPCNotification is a message without an id; no response is sent.
type JSONRPCNotification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type JSONRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      MCPID           `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *JSONRPCError   `json:"error,omitempty"`
}

type JSONRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *JSONRPCError) Error() string {
	return fmt.Sprintf("JSON-RPC error %d: %s", e.Code, e.Message)
}

// MCP Protocol types
type InitializeRequest struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ClientInfo      ClientInfo     `json:"clientInfo"`
}

type InitializeResponse struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ServerInfo      ServerInfo     `json:"serverInfo"`
	Instructions    string         `json:"instructions,omitempty"`
}

type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type ListToolsResponse struct {
	Tools []Tool `json:"tools"`
}

type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"inputSchema"`
}

type CallToolRequest struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

type CallToolResponse struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError,omitempty"`
}

type Content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Resource describes one readable resource in resources/list.
type Resource struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

type ListResourcesResponse struct {
	Resources []Resource `json:"resources"`
}

type ReadResourceRequest struct {
	URI string `json:"uri"`
}

type ResourceContents struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType,omitempty"`
	Text     string `json:"text"`
}

type ReadResourceResponse struct {
	Contents []ResourceContents `json:"contents"`
}

// Transport carries JSON-RPC messages between a client and a server.
type Transport interface {
	Send(request JSONRPCRequest) error
	SendNotification(notification JSONRPCNotification) error
	Receive() (JSONRPCResponse, error)
	Close() error
}

// TransportConfig holds configuration for connecting to MCP servers
type TransportConfig struct {
	Type string // "stdio"

	Command string
	Args    []string
	Env     map[string]string
}

// MCPConfig is the client configuration file format understood by MCP hosts.
type MCPConfig struct {
	MCPServers map[string]MCPServerConfig `json:"mcpServers"`
}

// MCPServerConfig describes how a host launches one stdio server.
type MCPServerConfig struct {
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}
