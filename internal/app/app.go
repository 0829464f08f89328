// Package app wires the dualdex dependencies from configuration and runs the
// CLI commands against them.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/alanyoungcy/dualdex/internal/config"
)

// App is the root application object. It owns the configuration, logger, and a
// list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	out     io.Writer
	status  io.Writer
	closers []func()
}

// New creates a new App from the given configuration and logger. Results go
// to stdout and wait progress to stderr.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
		out:    os.Stdout,
		status: os.Stderr,
	}
}

// WithOutput redirects command results and progress lines.
func (a *App) WithOutput(out, status io.Writer) *App {
	a.out = out
	a.status = status
	return a
}

// Run executes one command. Commands that touch the exchange wire their
// dependencies first.
func (a *App) Run(ctx context.Context, name string, args []string) error {
	cmd, ok := commands[name]
	if !ok {
		return fmt.Errorf("app: unknown command %q (valid: %s)", name, commandNames())
	}

	var deps *Dependencies
	if cmd.needsDeps {
		d, cleanup, err := Wire(ctx, a.cfg, WireOptions{
			Logger:   a.logger,
			Progress: &lineProgress{w: a.status},
		})
		if err != nil {
			return fmt.Errorf("app: wire dependencies: %w", err)
		}
		a.closers = append(a.closers, cleanup)
		deps = d
	}

	a.logger.DebugContext(ctx, "running command", slog.String("command", name))
	if err := cmd.run(ctx, a, deps, args); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// Close tears down all resources in reverse registration order. It is safe to
// call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// lineProgress prints one line per indexer poll.
type lineProgress struct {
	w io.Writer
}

func (p *lineProgress) Waiting(txID string, attempt int) {
	if attempt == 1 {
		fmt.Fprintf(p.w, "awaiting transaction %s\n", txID)
		return
	}
	fmt.Fprintf(p.w, "awaiting transaction %s (attempt %d)\n", txID, attempt)
}

func (p *lineProgress) Done(txID string) {
	fmt.Fprintf(p.w, "transaction %s indexed\n", txID)
}
