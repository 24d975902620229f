package tools

import (
	"context"
	"log/slog"
)

// NopRunner runs tools with a background context and drops status reports.
// Tests and one-off calls use it.
var NopRunner = NewRunner(context.Background(), nil, nil)

// Runner is what a tool sees of the call that invoked it. Context is the MCP
// request or CLI command context, so a client hanging up cancels LMS fetches
// in flight. Report carries progress such as "Logging in as ..." back to the
// caller.
type Runner interface {
	Context() context.Context
	Toolbox() *Toolbox
	Report(status string)
}

type runner struct {
	ctx     context.Context
	toolbox *Toolbox
	report  func(status string)
}

// NewRunner returns a Runner that passes status reports to report, which may
// be nil.
func NewRunner(ctx context.Context, toolbox *Toolbox, report func(status string)) Runner {
	if ctx == nil {
		ctx = context.Background()
	}
	if report == nil {
		report = func(string) {}
	}
	return &runner{ctx: ctx, toolbox: toolbox, report: report}
}

// LogRunner returns a Runner that logs status reports at debug level under
// the tool's name.
func LogRunner(ctx context.Context, toolbox *Toolbox, logger *slog.Logger, funcName string) Runner {
	logger = logger.With("tool", funcName)
	return NewRunner(ctx, toolbox, func(status string) {
		logger.Debug("tool status", "status", status)
	})
}

func (r *runner) Context() context.Context { return r.ctx }

func (r *runner) Toolbox() *Toolbox { return r.toolbox }

func (r *runner) Report(status string) { r.report(status) }
