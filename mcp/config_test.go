package mcp

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfig(t *testing.T) {
	data := []byte(`{
		"mcpServers": {
			"lms": {
				"command": "/usr/local/bin/lms-mcp",
				"args": ["serve"],
				"env": {"LMS_BASE_URL": "https://learn.mywhitecliffe.com"}
			},
			"archive": {"command": "archive-mcp"}
		}
	}`)

	config, err := ParseConfig(data)
	require.NoError(t, err)
	assert.Equal(t, []string{"archive", "lms"}, config.ServerNames())

	lms := config.MCPServers["lms"]
	assert.Equal(t, "/usr/local/bin/lms-mcp", lms.Command)
	assert.Equal(t, []string{"serve"}, lms.Args)
	assert.Equal(t, "https://learn.mywhitecliffe.com", lms.Env["LMS_BASE_URL"])
	assert.Empty(t, config.MCPServers["archive"].Args)
}

func TestParseConfigErrors(t *testing.T) {
	_, err := ParseConfig([]byte(`{"mcpServers":`))
	assert.ErrorContains(t, err, "failed to parse config JSON")

	_, err = ParseConfig([]byte(`{"mcpServers":{}}`))
	assert.ErrorContains(t, err, "no mcpServers")
}

func TestConfigMarshalRoundTrip(t *testing.T) {
	config := NewConfig("lms", MCPServerConfig{
		Command: "lms-mcp",
		Args:    []string{"serve", "--config", "/etc/lms.yaml"},
	})

	data, err := config.Marshal()
	require.NoError(t, err)
	assert.Equal(t, byte('\n'), data[len(data)-1])
	assert.NotContains(t, string(data), `"env"`)

	path := filepath.Join(t.TempDir(), "mcp.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, config, loaded)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorContains(t, err, "failed to read config file")
}

func TestConvertToTransportConfig(t *testing.T) {
	tc, err := convertToTransportConfig(MCPServerConfig{
		Command: "lms-mcp",
		Args:    []string{"serve"},
		Env:     map[string]string{"LMS_LOG_LEVEL": "debug"},
	})
	require.NoError(t, err)
	assert.Equal(t, TransportConfig{
		Type:    "stdio",
		Command: "lms-mcp",
		Args:    []string{"serve"},
		Env:     map[string]string{"LMS_LOG_LEVEL": "debug"},
	}, tc)

	_, err = convertToTransportConfig(MCPServerConfig{Args: []string{"serve"}})
	assert.ErrorContains(t, err, "must specify a command")
}

func TestConnectAllFailsOnBadServer(t *testing.T) {
	config := MCPConfig{MCPServers: map[string]MCPServerConfig{
		"good":   helperConfig(),
		"broken": {Command: filepath.Join(t.TempDir(), "does-not-exist")},
	}}

	conns, err := ConnectAll(context.Background(), config)
	assert.Nil(t, conns)
	assert.ErrorContains(t, err, "broken")
}

func TestConnectTransportUnsupported(t *testing.T) {
	_, err := ConnectTransport(TransportConfig{Type: "sse", Command: "x"})
	assert.ErrorContains(t, err, "unsupported transport type")

	_, err = ConnectTransport(TransportConfig{Type: "stdio"})
	assert.ErrorContains(t, err, "command is required")
}
