package monitor

import (
	"context"
	"time"
)

// Initialize runs the first check and starts periodic monitoring. When the
// service is down it shows the session notice and schedules exactly one
// automatic start attempt after NotifyDelay. Calling it twice is a no-op.
func (m *Monitor) Initialize(ctx context.Context) {
	m.mu.Lock()
	if m.state != Idle {
		m.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.state = Monitoring
	m.mu.Unlock()

	if m.CheckAvailability(runCtx) {
		m.logger.Info("service is running")
	} else {
		m.logger.Warn("service is not running")
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			if !sleep(runCtx, m.cfg.NotifyDelay) {
				return
			}
			if m.notifier != nil {
				m.notifier.Notify(runCtx, m.cfg.Endpoint)
			}
			if m.cfg.AutoStart && m.Attempts().AttemptsMade == 0 {
				m.AttemptStart(runCtx)
			}
		}()
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.cfg.MonitorInterval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				m.CheckAvailability(runCtx)
			}
		}
	}()
}

// Run initializes the monitor and blocks until ctx is done, then closes it.
func (m *Monitor) Run(ctx context.Context) error {
	m.Initialize(ctx)
	<-ctx.Done()
	m.Close()
	return nil
}

// Close stops periodic checks, waits for background work and removes every
// indicator from the page.
func (m *Monitor) Close() {
	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	m.state = Idle
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
	if m.page != nil {
		m.page.Cleanup()
	}
}

// sleep waits d or until ctx is done; it reports whether d elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
