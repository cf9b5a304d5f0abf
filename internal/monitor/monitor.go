// Package monitor watches the disease-prediction backend, starts it when it is
// down, and keeps page indicators and guidance in step with its status.
package monitor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/loykin/krishid/internal/guidance"
	"github.com/loykin/krishid/internal/history"
	"github.com/loykin/krishid/internal/indicator"
	"github.com/loykin/krishid/internal/metrics"
	"github.com/loykin/krishid/internal/probe"
	"github.com/loykin/krishid/internal/status"
	"github.com/loykin/krishid/internal/strategy"
	"github.com/loykin/krishid/pkg/client"
)

// State is the monitor lifecycle state.
type State int

const (
	Idle State = iota
	Monitoring
)

func (s State) String() string {
	if s == Monitoring {
		return "monitoring"
	}
	return "idle"
}

// Prober runs one availability check.
type Prober interface {
	Probe(ctx context.Context) probe.Result
}

// Runner runs the start strategies.
type Runner interface {
	Run(ctx context.Context) status.StrategyResult
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context) status.StrategyResult

func (f RunnerFunc) Run(ctx context.Context) status.StrategyResult { return f(ctx) }

// Monitor owns the endpoint status and the start bookkeeping for one endpoint.
type Monitor struct {
	cfg      Config
	prober   Prober
	observed bool // prober reports to Observe itself
	chain    Runner
	renderer guidance.Renderer
	notifier *guidance.Notifier
	page     *indicator.Page
	recorder *history.Recorder
	guard    *Guard
	clock    Clock
	logger   *slog.Logger

	mu          sync.Mutex
	status      status.EndpointStatus
	attempts    int
	inProgress  bool
	state       State
	lastResult  status.StrategyResult
	lastChecked time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option customizes a Monitor.
type Option func(*Monitor)

func WithProber(p Prober) Option { return func(m *Monitor) { m.prober = p } }
func WithChain(r Runner) Option  { return func(m *Monitor) { m.chain = r } }
func WithRenderer(r guidance.Renderer) Option {
	return func(m *Monitor) { m.renderer = r }
}
func WithNotifier(n *guidance.Notifier) Option { return func(m *Monitor) { m.notifier = n } }
func WithPage(p *indicator.Page) Option        { return func(m *Monitor) { m.page = p } }
func WithRecorder(r *history.Recorder) Option  { return func(m *Monitor) { m.recorder = r } }
func WithGuard(g *Guard) Option                { return func(m *Monitor) { m.guard = g } }
func WithClock(c Clock) Option                 { return func(m *Monitor) { m.clock = c } }
func WithLogger(l *slog.Logger) Option         { return func(m *Monitor) { m.logger = l } }

// New builds a monitor. Without WithProber it probes cfg.Endpoint over HTTP;
// without WithGuard it uses the process-wide guard.
func New(cfg Config, opts ...Option) *Monitor {
	m := &Monitor{cfg: cfg.withDefaults(), clock: realClock{}}
	for _, o := range opts {
		o(m)
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	m.logger = m.logger.With("component", "monitor", "endpoint", m.cfg.Endpoint)
	if m.renderer == nil {
		m.renderer = guidance.LogRenderer{Logger: m.logger}
	}
	if m.guard == nil {
		m.guard = ProcessGuard()
	}
	if m.prober == nil {
		m.prober = probe.New(probe.Config{
			URL:        m.cfg.Endpoint,
			Timeout:    m.cfg.CheckTimeout,
			Production: m.cfg.Production,
		}, probe.WithObserver(m), probe.WithLogger(m.logger))
		m.observed = true
	}
	if c, ok := m.chain.(*strategy.Chain); ok {
		c.SetObserver(m.recordStrategy)
	}
	return m
}

// SetChain installs the start strategies after construction; the trigger
// strategy usually needs the monitor itself as its checker.
func (m *Monitor) SetChain(r Runner) {
	if c, ok := r.(*strategy.Chain); ok {
		c.SetObserver(m.recordStrategy)
	}
	m.mu.Lock()
	m.chain = r
	m.mu.Unlock()
}

func (m *Monitor) Config() Config { return m.cfg }

// Endpoint returns the service URL users are sent to.
func (m *Monitor) Endpoint() string { return m.cfg.Endpoint }

// Observe records a probe result: status, indicators, metrics and history.
func (m *Monitor) Observe(r probe.Result) {
	m.mu.Lock()
	prev := m.status
	m.status = r.Status
	m.lastChecked = r.CheckedAt
	m.mu.Unlock()

	metrics.SetEndpointStatus(r.Status)
	if m.page != nil {
		m.page.Render(r.Status)
	}
	ev := history.Event{
		Type:      history.EventCheck,
		Endpoint:  m.cfg.Endpoint,
		Status:    r.Status.String(),
		Success:   r.Status.Running(),
		LatencyMS: float64(r.Latency.Microseconds()) / 1000,
	}
	if r.Err != nil {
		ev.Detail = r.Err.Error()
	}
	m.recorder.Record(ev)
	if prev != r.Status {
		m.logger.Info("endpoint status changed", "from", prev, "to", r.Status)
		m.recorder.Record(history.Event{
			Type:     history.EventStatusChange,
			Endpoint: m.cfg.Endpoint,
			Status:   r.Status.String(),
			Success:  r.Status.Running(),
			Detail:   prev.String(),
		})
	}
}

// CheckAvailability probes the endpoint once and updates status and indicators.
func (m *Monitor) CheckAvailability(ctx context.Context) bool {
	r := m.prober.Probe(ctx)
	if !m.observed {
		m.Observe(r)
	}
	return r.Status.Running()
}

// Check makes the monitor usable as the trigger strategy's checker.
func (m *Monitor) Check(ctx context.Context) bool { return m.CheckAvailability(ctx) }

// Status returns the last observed endpoint status.
func (m *Monitor) Status() status.EndpointStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Attempts returns the start bookkeeping.
func (m *Monitor) Attempts() status.AttemptState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return status.AttemptState{AttemptsMade: m.attempts, MaxAttempts: m.cfg.MaxAttempts, InProgress: m.inProgress}
}

// AttemptStart runs one start sequence. It returns false at once, without any
// network call, when a start is already in flight or attempts are used up.
func (m *Monitor) AttemptStart(ctx context.Context) bool {
	started, _ := m.attemptStart(ctx)
	return started
}

// attemptStart is AttemptStart that also reports whether it was turned away
// because a start was already in flight.
func (m *Monitor) attemptStart(ctx context.Context) (started, busy bool) {
	m.mu.Lock()
	if m.inProgress {
		m.mu.Unlock()
		m.logger.Debug("start already in progress")
		return false, true
	}
	if m.attempts >= m.cfg.MaxAttempts {
		m.mu.Unlock()
		m.logger.Info("start attempts exhausted", "max_attempts", m.cfg.MaxAttempts)
		m.guide(ctx, guidance.Manual(m.cfg.Endpoint))
		return false, false
	}
	if !m.guard.TryAcquire() {
		m.mu.Unlock()
		m.logger.Debug("another monitor is starting the service")
		return false, true
	}
	m.inProgress = true
	m.attempts++
	attempt := m.attempts
	chain := m.chain
	m.mu.Unlock()

	defer func() {
		if m.page != nil {
			m.page.HideStartup()
		}
		m.mu.Lock()
		m.inProgress = false
		m.mu.Unlock()
		m.guard.Release()
	}()

	m.logger.Info("attempting to start service", "attempt", attempt, "max_attempts", m.cfg.MaxAttempts)
	if m.page != nil {
		m.page.ShowStartup()
	}
	m.render(ctx, guidance.Starting())

	res := status.StrategyResult{StrategyID: status.StrategyExhausted}
	if chain != nil {
		res = chain.Run(ctx)
	}
	m.mu.Lock()
	m.lastResult = res
	m.mu.Unlock()
	m.recorder.Record(history.Event{
		Type:     history.EventStartAttempt,
		Endpoint: m.cfg.Endpoint,
		Strategy: res.StrategyID,
		Success:  res.Succeeded,
		Attempt:  attempt,
	})

	if !res.Succeeded {
		m.logger.Warn("failed to start service", "attempt", attempt, "error", status.ErrStrategyExhausted)
		m.guide(ctx, guidance.Manual(m.cfg.Endpoint))
		return false, false
	}
	if !m.WaitUntilReady(ctx, m.cfg.ReadyTimeout) {
		m.logger.Warn("service started but not responding", "strategy", res.StrategyID, "timeout", m.cfg.ReadyTimeout)
		m.guide(ctx, guidance.Manual(m.cfg.Endpoint))
		return false, false
	}
	m.logger.Info("service started", "strategy", res.StrategyID)
	m.render(ctx, guidance.Ready(m.cfg.Endpoint))
	return true, false
}

// WaitUntilReady polls every PollInterval until the endpoint answers or
// timeout elapses. Timeout and cancellation both yield false.
func (m *Monitor) WaitUntilReady(ctx context.Context, timeout time.Duration) bool {
	if timeout <= 0 {
		timeout = m.cfg.ReadyTimeout
	}
	start := m.clock.Now()
	defer func() { metrics.ObserveReadyWait(m.clock.Now().Sub(start).Seconds()) }()
	for m.clock.Now().Sub(start) < timeout {
		if m.CheckAvailability(ctx) {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-m.clock.After(m.cfg.PollInterval):
		}
	}
	return false
}

func (m *Monitor) guide(ctx context.Context, msg guidance.Message) {
	m.render(ctx, msg)
	m.recorder.Record(history.Event{
		Type:     history.EventGuidance,
		Endpoint: m.cfg.Endpoint,
		Detail:   msg.Title,
	})
}

func (m *Monitor) render(ctx context.Context, msg guidance.Message) {
	metrics.IncGuidance(string(msg.Kind))
	if err := m.renderer.Render(ctx, msg); err != nil {
		m.logger.Debug("guidance render failed", "kind", msg.Kind, "error", err)
	}
}

func (m *Monitor) recordStrategy(id string, ok bool) {
	m.mu.Lock()
	attempt := m.attempts
	m.mu.Unlock()
	m.recorder.Record(history.Event{
		Type:     history.EventStartAttempt,
		Endpoint: m.cfg.Endpoint,
		Strategy: id,
		Success:  ok,
		Attempt:  attempt,
		Detail:   "strategy",
	})
}

// Snapshot describes the monitor for status endpoints.
func (m *Monitor) Snapshot() client.MonitorInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return client.MonitorInfo{
		Endpoint:      m.cfg.Endpoint,
		Status:        m.status.String(),
		State:         m.state.String(),
		AttemptsMade:  m.attempts,
		MaxAttempts:   m.cfg.MaxAttempts,
		InProgress:    m.inProgress,
		LastStrategy:  m.lastResult.StrategyID,
		LastCheckedAt: m.lastChecked,
	}
}

// State returns the lifecycle state.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}
