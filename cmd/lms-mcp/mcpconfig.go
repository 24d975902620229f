package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/flitsinc/go-lms/mcp"
	"github.com/flitsinc/go-lms/tools"
)

func newMCPConfigCmd(a *app) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "mcp-config",
		Short: "Print an MCP host configuration that launches this server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			exe, err := os.Executable()
			if err != nil {
				return fmt.Errorf("failed to locate executable: %w", err)
			}
			args := []string{"serve"}
			if a.configPath != "" {
				path, err := filepath.Abs(a.configPath)
				if err != nil {
					return err
				}
				args = append(args, "--config", path)
			}
			data, err := mcp.NewConfig(name, mcp.MCPServerConfig{
				Command: exe,
				Args:    args,
				Env:     map[string]string{"LMS_BASE_URL": a.cfg.BaseURL},
			}).Marshal()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().StringVar(&name, "name", "lms", "server name in the configuration")
	return cmd
}

// newCheckCmd connects to every server in an MCP host configuration, lists
// its tools and asks LMS servers for their session status.
func newCheckCmd(a *app) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "check MCP_CONFIG",
		Short: "Start the servers of an MCP host configuration and list their tools",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := mcp.LoadConfig(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			conns, err := mcp.ConnectAll(ctx, config)
			if err != nil {
				return err
			}
			defer func() {
				for _, conn := range conns {
					conn.Client.Close()
				}
			}()

			out := cmd.OutOrStdout()
			for _, serverName := range config.ServerNames() {
				conn := conns[serverName]
				info := conn.Client.ServerInfo()
				fmt.Fprintf(out, "%s (%s %s): %d tools\n", serverName, info.Name, info.Version, len(conn.Tools))
				for _, t := range conn.Tools {
					fmt.Fprintf(out, "  - %s: %s\n", t.FuncName(), t.Description())
					if t.FuncName() != "session_status" {
						continue
					}
					result := t.Run(tools.NewRunner(ctx, nil, nil), json.RawMessage(`{}`))
					if err := result.Error(); err != nil {
						a.logger.Warn("session status failed", "server", serverName, "error", err)
						continue
					}
					fmt.Fprintf(out, "    %s\n", result.Label())
				}
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "time allowed to start the servers")
	return cmd
}
