package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/flitsinc/go-lms/content"
	"github.com/flitsinc/go-lms/tools"
)

// RemoteTool makes a tool served by an MCP server usable as a tools.Tool.
type RemoteTool struct {
	client *Client
	tool   Tool
	schema *tools.FunctionSchema
}

func NewRemoteTool(client *Client, tool Tool) *RemoteTool {
	return &RemoteTool{
		client: client,
		tool:   tool,
		schema: convertMCPSchemaToFunctionSchema(tool),
	}
}

func (t *RemoteTool) Label() string {
	if t.tool.Description != "" {
		return t.tool.Description
	}
	return t.tool.Name
}

func (t *RemoteTool) Description() string {
	return t.tool.Description
}

func (t *RemoteTool) FuncName() string {
	return t.tool.Name
}

// Run calls the tool on the server. Text items that hold a JSON object or
// array come back as JSON content.
func (t *RemoteTool) Run(r tools.Runner, params json.RawMessage) tools.Result {
	if len(params) > 0 && !json.Valid(params) {
		return tools.ErrorWithLabel("Invalid arguments", fmt.Errorf("arguments for %s are not valid JSON", t.tool.Name))
	}

	resp, err := t.client.CallTool(r.Context(), t.tool.Name, params)
	if err != nil {
		return tools.ErrorWithLabel("MCP tool execution failed", err)
	}

	if resp.IsError {
		msg := "MCP tool returned error"
		if len(resp.Content) > 0 {
			msg = resp.Content[0].Text
		}
		return tools.ErrorWithLabel("MCP tool error", errors.New(msg))
	}

	var c content.Content
	label := t.tool.Name
	for i, item := range resp.Content {
		text := strings.TrimSpace(item.Text)
		if (strings.HasPrefix(text, "{") || strings.HasPrefix(text, "[")) && json.Valid([]byte(text)) {
			c = append(c, content.FromRawJSON(json.RawMessage(text))...)
			continue
		}
		if i == 0 && text != "" {
			label = strings.SplitN(text, "\n", 2)[0]
		}
		c = append(c, content.FromText(item.Text)...)
	}
	return tools.SuccessWithContent(label, c)
}

func (t *RemoteTool) Schema() *tools.FunctionSchema {
	return t.schema
}

// convertMCPSchemaToFunctionSchema converts an MCP tool schema to tools.FunctionSchema
func convertMCPSchemaToFunctionSchema(mcpTool Tool) *tools.FunctionSchema {
	return &tools.FunctionSchema{
		Name:        mcpTool.Name,
		Description: mcpTool.Description,
		Parameters:  convertMCPInputSchemaToValueSchema(mcpTool.InputSchema),
	}
}

// convertMCPInputSchemaToValueSchema converts MCP input schema to tools.ValueSchema
func convertMCPInputSchemaToValueSchema(inputSchema map[string]any) tools.ValueSchema {
	schemaType := "object"
	if t, ok := inputSchema["type"].(string); ok {
		schemaType = t
	}

	schema := tools.ValueSchema{
		Type: schemaType,
	}
	if desc, ok := inputSchema["description"].(string); ok {
		schema.Description = desc
	}
	if minimum, ok := inputSchema["minimum"].(float64); ok {
		schema.Minimum = &minimum
	}

	switch schemaType {
	case "object":
		properties := make(map[string]tools.ValueSchema)
		if props, ok := inputSchema["properties"].(map[string]any); ok {
			for name, propSchema := range props {
				if propMap, ok := propSchema.(map[string]any); ok {
					properties[name] = convertMCPInputSchemaToValueSchema(propMap)
				}
			}
		}
		schema.Properties = &properties

		if req, ok := inputSchema["required"].([]any); ok {
			required := make([]string, 0, len(req))
			for _, r := range req {
				if s, ok := r.(string); ok {
					required = append(required, s)
				}
			}
			schema.Required = required
		}
		switch ap := inputSchema["additionalProperties"].(type) {
		case bool:
			schema.AdditionalProperties = ap
		case map[string]any:
			schema.AdditionalProperties = convertMCPInputSchemaToValueSchema(ap)
		}
	case "array":
		if items, ok := inputSchema["items"].(map[string]any); ok {
			itemSchema := convertMCPInputSchemaToValueSchema(items)
			schema.Items = &itemSchema
		}
	}

	return schema
}

// ConnectServer connects to an MCP server and returns its tools. The caller
// closes the client.
func ConnectServer(ctx context.Context, config TransportConfig) (*Client, []tools.Tool, error) {
	client, err := ConnectClient(ctx, config)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to MCP server: %w", err)
	}
	mcpTools, err := client.ListTools(ctx)
	if err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("failed to list MCP tools: %w", err)
	}
	toolsList := make([]tools.Tool, 0, len(mcpTools))
	for _, mcpTool := range mcpTools {
		toolsList = append(toolsList, NewRemoteTool(client, mcpTool))
	}
	return client, toolsList, nil
}
