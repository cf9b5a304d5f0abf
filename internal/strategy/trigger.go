package strategy

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/loykin/krishid/internal/launcher"
	"github.com/loykin/krishid/internal/status"
)

// DefaultRecheckDelay is how long the trigger waits before re-checking.
const DefaultRecheckDelay = 3 * time.Second

// Checker is the availability probe the trigger re-runs.
type Checker interface {
	Check(ctx context.Context) bool
}

// FireFunc starts something and does not wait for it.
type FireFunc func(ctx context.Context) error

// Trigger fires a local launcher (a script or batch file) and infers success
// by probing again after a delay. A true result is an inference only: the
// service may have been started by someone else in the meantime.
type Trigger struct {
	fire   FireFunc
	check  Checker
	delay  time.Duration
	logger *slog.Logger
}

func NewTrigger(fire FireFunc, check Checker, delay time.Duration, logger *slog.Logger) *Trigger {
	if delay <= 0 {
		delay = DefaultRecheckDelay
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Trigger{fire: fire, check: check, delay: delay, logger: logger}
}

// CommandFire returns a FireFunc that runs command detached in workDir.
func CommandFire(command, workDir string, logger *slog.Logger) FireFunc {
	return func(ctx context.Context) error {
		if command == "" {
			return status.ErrNotApplicable
		}
		pid, err := launcher.Detach(command, workDir)
		if err != nil {
			return err
		}
		if logger != nil {
			logger.Info("launcher triggered", "command", command, "pid", pid)
		}
		return nil
	}
}

func (t *Trigger) ID() string { return IDTrigger }

func (t *Trigger) Start(ctx context.Context) bool {
	if t.fire == nil || t.check == nil {
		return false
	}
	if err := t.fire(ctx); err != nil {
		if errors.Is(err, status.ErrNotApplicable) {
			return false
		}
		t.logger.Debug("trigger failed", "error", err)
	}
	timer := time.NewTimer(t.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
	}
	return t.check.Check(ctx)
}
