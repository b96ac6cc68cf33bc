// Package supervisor owns the messaging client child process: it
// provisions and launches it, feeds its output to the parser and stops it
// gracefully on shutdown.
package supervisor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"pairwatch/internal/config"
	"pairwatch/internal/metrics"
	"pairwatch/internal/parser"
	"pairwatch/internal/status"
)

const defaultDrainTimeout = 2 * time.Second

// Supervisor runs exactly one child process and is the only writer of the
// status store while it runs.
type Supervisor struct {
	cfg     *config.Config
	store   *status.Store
	logger  *slog.Logger
	console io.Writer

	// drainTimeout bounds how long output may stay open after the child
	// exits, e.g. when a grandchild inherited the pipe.
	drainTimeout time.Duration
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithConsole sets where child output lines are echoed. nil disables the
// echo.
func WithConsole(w io.Writer) Option {
	return func(s *Supervisor) {
		s.console = w
	}
}

// WithDrainTimeout overrides the post-exit output drain timeout.
func WithDrainTimeout(d time.Duration) Option {
	return func(s *Supervisor) {
		s.drainTimeout = d
	}
}

// New creates a Supervisor for cfg.Child writing into store.
func New(cfg *config.Config, store *status.Store, logger *slog.Logger, opts ...Option) *Supervisor {
	s := &Supervisor{
		cfg:          cfg,
		store:        store,
		logger:       logger,
		console:      os.Stdout,
		drainTimeout: defaultDrainTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run launches the child and parses its output until it exits or ctx is
// cancelled, in which case the child is terminated gracefully. Launch and
// provisioning failures are recorded in the status store; Run itself
// always returns nil so the API keeps serving the failure.
func (s *Supervisor) Run(ctx context.Context) error {
	proc, err := s.start(ctx)
	if err != nil {
		s.logger.Error("client failed to start", "error", err)
		s.fail(err)
		return nil
	}
	defer proc.Close()

	s.logger.Info("client started", "command", proc.Name, "pid", proc.PID())

	p := parser.New(s.store, s.logger, s.console)
	parsed := make(chan int, 1)
	go func() {
		parsed <- p.Run(proc.Lines())
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("stopping client", "pid", proc.PID(), "grace", s.cfg.Child.GraceTimeout())
		if err := proc.Terminate(s.cfg.Child.GraceTimeout()); err != nil {
			s.logger.Error("failed to stop client", "error", err)
		}
	case <-proc.Done():
	}

	timer := time.NewTimer(s.drainTimeout)
	defer timer.Stop()

	var lines int
	select {
	case lines = <-parsed:
	case <-timer.C:
		s.logger.Warn("client output still open after exit, closing it")
		_ = proc.Close()
		lines = <-parsed
	}

	exit := proc.Wait()
	metrics.RecordChildExit(exitLabel(exit))
	s.logger.Info("client exited", "exit", exit.String(), "lines", lines, "uptime", time.Since(proc.Started).Round(time.Millisecond))

	p.Finish(fmt.Sprintf(status.MessageExitedFmt, exit))
	return nil
}

func (s *Supervisor) start(ctx context.Context) (*Process, error) {
	child := s.cfg.Child
	s.progress(status.MessageLaunching)

	if child.Entrypoint != "" {
		entry := filepath.Join(child.Dir, child.Entrypoint)
		if _, err := os.Stat(entry); err != nil {
			return nil, &LaunchError{
				Command: commandLine(child.Command, child.Args),
				Reason:  child.Entrypoint + " not found, run from the client directory",
				Err:     err,
			}
		}
	}

	if NeedsProvision(child.Dir, s.cfg.Provision) {
		s.progress(status.MessageProvisioning)
		if err := Provision(ctx, child.Dir, s.cfg.Provision, s.logger); err != nil {
			return nil, err
		}
	}

	env := []string{"PORT=" + strconv.Itoa(s.cfg.Dashboard.Port)}
	proc, err := Launch(child.Command, child.Args, child.Dir, env)
	if err != nil {
		return nil, err
	}

	s.progress(status.MessageWaitingArtifact)
	return proc, nil
}

func (s *Supervisor) progress(message string) {
	if _, err := s.store.Progress(message); err != nil {
		s.logger.Debug("progress not recorded", "message", message, "error", err)
	}
}

func (s *Supervisor) fail(err error) {
	if _, ferr := s.store.Fail(fmt.Sprintf(status.MessageErrorFmt, err)); ferr != nil {
		s.logger.Debug("failure not recorded", "error", ferr)
	}
}

func exitLabel(exit ExitStatus) string {
	if exit.Signal != "" {
		return exit.Signal
	}
	return strconv.Itoa(exit.Code)
}
