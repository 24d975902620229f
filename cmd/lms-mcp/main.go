// Command lms-mcp serves LMS student tools over MCP stdio and offers the same
// operations as one-shot commands.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/flitsinc/go-lms/config"
	"github.com/flitsinc/go-lms/lms"
	"github.com/flitsinc/go-lms/lmstools"
	"github.com/flitsinc/go-lms/logging"
	"github.com/flitsinc/go-lms/login"
	"github.com/flitsinc/go-lms/tools"
)

// Version is set at build time.
var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// app is the state shared by all commands, built before any of them runs.
type app struct {
	configPath string
	cfg        *config.Config
	logger     *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	rootCmd := &cobra.Command{
		Use:           "lms-mcp",
		Short:         "Canvas LMS student tools for AI assistants",
		Version:       Version,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup()
		},
	}
	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "", "path to a YAML config file")

	rootCmd.AddCommand(
		newServeCmd(a),
		newMCPConfigCmd(a),
		newCheckCmd(a),
	)
	rootCmd.AddCommand(newFetchCmds(a)...)
	return rootCmd
}

func (a *app) setup() error {
	// Put credentials in .env to keep them out of shell history.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}

func (a *app) fetcher() (*lms.Fetcher, error) {
	f, err := lms.NewFetcher(a.cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	f = f.WithTimeout(time.Duration(a.cfg.RequestTimeout)).
		WithLogger(a.logger).
		WithMaxPages(a.cfg.MaxPages).
		WithRateLimit(a.cfg.RateLimitPerMinute).
		WithCache(time.Duration(a.cfg.CacheTTL))
	if len(a.cfg.FallbackStatuses) > 0 {
		f = f.WithFallbackPolicy(lms.FallbackOnStatus(a.cfg.FallbackStatuses...))
	}
	return f, nil
}

func (a *app) authenticator() *lms.Authenticator {
	var driver lms.LoginDriver
	switch a.cfg.LoginDriver {
	case config.DriverForm:
		driver = login.NewForm(a.cfg.BaseURL)
	default:
		driver = login.NewBrowser(a.cfg.BaseURL).
			WithHeadless(a.cfg.Headless).
			WithNavigationTimeout(time.Duration(a.cfg.RequestTimeout))
	}
	return lms.NewAuthenticator(driver).
		WithOutcomeTimeout(time.Duration(a.cfg.LoginTimeout)).
		WithLogger(a.logger)
}

// preauthenticate fills holder from the configured access token, or from the
// configured credentials when useCredentials is set. It leaves holder empty when
// neither is configured.
func (a *app) preauthenticate(ctx context.Context, f *lms.Fetcher, holder *lmstools.SessionHolder, useCredentials bool) error {
	switch {
	case a.cfg.AccessToken != "":
		sess, err := f.AuthenticateToken(ctx, a.cfg.AccessToken)
		if err != nil {
			return err
		}
		holder.Set(sess)
	case useCredentials && a.cfg.HasCredentials():
		sess, err := a.authenticator().Authenticate(ctx, a.cfg.Username, a.cfg.Password)
		if err != nil {
			return err
		}
		holder.Set(sess)
	}
	return nil
}

// backend is the LMS tool surface shared by the serve and fetch commands.
type backend struct {
	toolbox   *tools.Toolbox
	resources *lmstools.Resources
	fetcher   *lms.Fetcher
}

func (b *backend) Close() {
	b.fetcher.Close()
}

// backend builds the LMS tools and resources against the configured LMS.
func (a *app) backend(ctx context.Context, useCredentials bool) (*backend, error) {
	f, err := a.fetcher()
	if err != nil {
		return nil, err
	}
	holder := &lmstools.SessionHolder{}
	if err := a.preauthenticate(ctx, f, holder, useCredentials); err != nil {
		f.Close()
		return nil, err
	}
	if sess := holder.Get(); sess.Authenticated {
		a.logger.Info("session ready", "identity", sess.Identity)
	}
	return &backend{
		toolbox:   lmstools.New(a.authenticator(), f, holder),
		resources: lmstools.NewResources(f, holder).WithLogger(a.logger),
		fetcher:   f,
	}, nil
}
