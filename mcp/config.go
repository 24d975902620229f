package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/flitsinc/go-lms/tools"
)

// NewConfig returns a host configuration with a single stdio server.
func NewConfig(name string, server MCPServerConfig) MCPConfig {
	return MCPConfig{MCPServers: map[string]MCPServerConfig{name: server}}
}

// Marshal renders the configuration the way MCP hosts store it.
func (c MCPConfig) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal MCP config: %w", err)
	}
	return append(data, '\n'), nil
}

// LoadConfig reads an MCP host configuration file.
func LoadConfig(path string) (MCPConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return MCPConfig{}, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseConfig(data)
}

func ParseConfig(data []byte) (MCPConfig, error) {
	var config MCPConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return MCPConfig{}, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if len(config.MCPServers) == 0 {
		return MCPConfig{}, fmt.Errorf("config has no mcpServers")
	}
	return config, nil
}

// ServerNames returns the configured server names in sorted order.
func (c MCPConfig) ServerNames() []string {
	names := make([]string, 0, len(c.MCPServers))
	for name := range c.MCPServers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// convertToTransportConfig converts an MCPServerConfig to a TransportConfig
func convertToTransportConfig(config MCPServerConfig) (TransportConfig, error) {
	if config.Command == "" {
		return TransportConfig{}, fmt.Errorf("server config must specify a command")
	}
	return TransportConfig{
		Type:    "stdio",
		Command: config.Command,
		Args:    config.Args,
		Env:     config.Env,
	}, nil
}

// Connection is a connected server and the tools it offers.
type Connection struct {
	Client *Client
	Tools  []tools.Tool
}

// ConnectAll launches every configured server concurrently and lists its
// tools. On failure, connections already made are closed.
func ConnectAll(ctx context.Context, config MCPConfig) (map[string]Connection, error) {
	result := make(map[string]Connection)
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)

	for serverName, serverConfig := range config.MCPServers {
		g.Go(func() error {
			transportConfig, err := convertToTransportConfig(serverConfig)
			if err != nil {
				return fmt.Errorf("invalid config for server %s: %w", serverName, err)
			}
			client, toolsList, err := ConnectServer(gctx, transportConfig)
			if err != nil {
				return fmt.Errorf("failed to connect to server %s: %w", serverName, err)
			}
			mu.Lock()
			result[serverName] = Connection{Client: client, Tools: toolsList}
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		for _, conn := range result {
			conn.Client.Close()
		}
		return nil, err
	}
	return result, nil
}
