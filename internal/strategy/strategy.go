// Package strategy holds the ordered list of ways krishid tries to get the
// backend running. Every strategy is best-effort: failures are reported as
// false, never as errors.
package strategy

import (
	"context"
	"log/slog"

	"github.com/loykin/krishid/internal/metrics"
	"github.com/loykin/krishid/internal/status"
)

// Strategy IDs in chain order.
const (
	IDManagement = "management"
	IDHandler    = "handler"
	IDTrigger    = "trigger"
)

// Strategy is one way of starting the service.
type Strategy interface {
	ID() string
	Start(ctx context.Context) bool
}

// Observer is notified after each strategy runs.
type Observer func(id string, ok bool)

// Chain runs strategies in a fixed order and stops at the first success.
type Chain struct {
	strategies []Strategy
	logger     *slog.Logger
	observer   Observer
}

// NewChain orders management, handler and trigger; nil entries are skipped.
func NewChain(mgmt *Management, handler *Handler, trigger *Trigger, logger *slog.Logger) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Chain{logger: logger.With("component", "strategy")}
	if mgmt != nil {
		c.strategies = append(c.strategies, mgmt)
	}
	if handler != nil {
		c.strategies = append(c.strategies, handler)
	}
	if trigger != nil {
		c.strategies = append(c.strategies, trigger)
	}
	return c
}

// SetObserver installs a per-strategy callback (history events).
func (c *Chain) SetObserver(o Observer) { c.observer = o }

// IDs returns the strategy ids in run order.
func (c *Chain) IDs() []string {
	ids := make([]string, 0, len(c.strategies))
	for _, s := range c.strategies {
		ids = append(ids, s.ID())
	}
	return ids
}

// Run tries each strategy in order. When all fail the result carries
// status.StrategyExhausted.
func (c *Chain) Run(ctx context.Context) status.StrategyResult {
	for _, s := range c.strategies {
		if ctx.Err() != nil {
			break
		}
		ok := s.Start(ctx)
		metrics.IncStartAttempt(s.ID(), ok)
		if c.observer != nil {
			c.observer(s.ID(), ok)
		}
		if ok {
			c.logger.Info("start strategy succeeded", "strategy", s.ID())
			return status.StrategyResult{Succeeded: true, StrategyID: s.ID()}
		}
		c.logger.Debug("start strategy failed", "strategy", s.ID())
	}
	c.logger.Warn("start strategies exhausted", "error", status.ErrStrategyExhausted)
	return status.StrategyResult{StrategyID: status.StrategyExhausted}
}
