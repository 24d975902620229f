package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/flitsinc/go-lms/mcp"
)

const instructions = "Tools for a student's Canvas LMS account. Call authenticate_student " +
	"with the student's username and password before any other tool, unless " +
	"session_status already reports an authenticated session."

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the LMS tools over MCP on stdin and stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			b, err := a.backend(ctx, false)
			if err != nil {
				return err
			}
			defer b.Close()

			server := mcp.NewServer("lms-mcp", Version, b.toolbox).
				WithLogger(a.logger).
				WithInstructions(instructions).
				WithResources(b.resources)

			a.logger.Info("serving MCP on stdio", "base_url", b.fetcher.BaseURL(), "tools", len(b.toolbox.All()))
			done := make(chan error, 1)
			go func() { done <- server.Serve(ctx, os.Stdin, os.Stdout) }()
			select {
			case err := <-done:
				return err
			case <-ctx.Done():
				a.logger.Info("shutting down")
				if ctx.Err() == context.Canceled {
					return nil
				}
				return ctx.Err()
			}
		},
	}
}
