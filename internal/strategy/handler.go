package strategy

import (
	"context"
	"log/slog"
	"sync"

	"github.com/loykin/krishid/internal/status"
)

// Starter is an in-process component able to start the service, such as the
// launcher. Its boolean result is trusted.
type Starter interface {
	Start(ctx context.Context) bool
}

// StarterFunc adapts a function to Starter.
type StarterFunc func(ctx context.Context) bool

func (f StarterFunc) Start(ctx context.Context) bool { return f(ctx) }

// Handler hands off to a registered Starter. With none registered the
// strategy is not applicable and fails.
type Handler struct {
	mu      sync.RWMutex
	starter Starter
	logger  *slog.Logger
}

func NewHandler(s Starter, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{starter: s, logger: logger}
}

// Register replaces the starter; nil unregisters.
func (h *Handler) Register(s Starter) {
	h.mu.Lock()
	h.starter = s
	h.mu.Unlock()
}

func (h *Handler) ID() string { return IDHandler }

func (h *Handler) Start(ctx context.Context) bool {
	h.mu.RLock()
	s := h.starter
	h.mu.RUnlock()
	if s == nil {
		h.logger.Debug("no start handler registered", "error", status.ErrNotApplicable)
		return false
	}
	return s.Start(ctx)
}
