package strategy

import (
	"context"
	"log/slog"

	"github.com/loykin/krishid/pkg/client"
)

// Management asks the local management server to start the service via
// GET /start. Only a decoded {"success": true} counts.
type Management struct {
	client *client.Client
	logger *slog.Logger
}

func NewManagement(c *client.Client, logger *slog.Logger) *Management {
	if logger == nil {
		logger = slog.Default()
	}
	return &Management{client: c, logger: logger}
}

func (m *Management) ID() string { return IDManagement }

func (m *Management) Start(ctx context.Context) bool {
	if m == nil || m.client == nil {
		return false
	}
	resp, err := m.client.Start(ctx)
	if err != nil {
		m.logger.Debug("management server start failed", "url", m.client.BaseURL(), "error", err)
		return false
	}
	if !resp.Success {
		m.logger.Debug("management server declined start", "message", resp.Message, "error", resp.Error)
	}
	return resp.Success
}
