package guidance

import (
	"context"
	"log/slog"

	"github.com/loykin/krishid/internal/store"
)

// Notifier shows the "service offline" notice at most once per session.
// The session store should be scoped to the session (store.Memory for the
// daemon's lifetime).
type Notifier struct {
	session  store.Prefs
	renderer Renderer
	logger   *slog.Logger
}

func NewNotifier(session store.Prefs, r Renderer, logger *slog.Logger) *Notifier {
	if session == nil {
		session = store.NewMemory()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{session: session, renderer: r, logger: logger}
}

// Notify renders the notice unless it was already shown. It reports whether
// the notice was rendered now.
func (n *Notifier) Notify(ctx context.Context, url string) bool {
	if store.GetBool(ctx, n.session, store.KeyServiceNotified) {
		return false
	}
	if n.renderer != nil {
		if err := n.renderer.Render(ctx, Notice(url)); err != nil {
			n.logger.Debug("render notice", "error", err)
		}
	}
	if err := store.SetBool(ctx, n.session, store.KeyServiceNotified, true); err != nil {
		n.logger.Debug("remember notice", "error", err)
	}
	return true
}

// Reset starts a new session.
func (n *Notifier) Reset(ctx context.Context) error {
	return n.session.Delete(ctx, store.KeyServiceNotified)
}
