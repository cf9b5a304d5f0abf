package monitor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loykin/krishid/internal/guidance"
	"github.com/loykin/krishid/internal/indicator"
	"github.com/loykin/krishid/internal/probe"
	"github.com/loykin/krishid/internal/status"
	"github.com/loykin/krishid/internal/store"
	"github.com/loykin/krishid/internal/strategy"
	"github.com/loykin/krishid/pkg/client"
)

// fakeProber returns whatever up() says and counts calls.
type fakeProber struct {
	calls atomic.Int32
	up    func() bool
}

func (p *fakeProber) Probe(context.Context) probe.Result {
	p.calls.Add(1)
	st := status.Stopped
	if p.up != nil && p.up() {
		st = status.Running
	}
	return probe.Result{Status: st, CheckedAt: time.Now()}
}

func staticProber(up bool) *fakeProber {
	return &fakeProber{up: func() bool { return up }}
}

// fakeRunner is a start chain with a fixed result; block, when set, holds Run open.
type fakeRunner struct {
	result  status.StrategyResult
	calls   atomic.Int32
	entered chan struct{}
	block   chan struct{}
}

func (r *fakeRunner) Run(ctx context.Context) status.StrategyResult {
	r.calls.Add(1)
	if r.result.StrategyID == "" {
		r.result.StrategyID = status.StrategyExhausted
	}
	if r.entered != nil {
		r.entered <- struct{}{}
	}
	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
		}
	}
	return r.result
}

type recordingRenderer struct {
	mu   sync.Mutex
	msgs []guidance.Message
}

func (r *recordingRenderer) Render(_ context.Context, m guidance.Message) error {
	r.mu.Lock()
	r.msgs = append(r.msgs, m)
	r.mu.Unlock()
	return nil
}

func (r *recordingRenderer) kinds() []guidance.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]guidance.Kind, 0, len(r.msgs))
	for _, m := range r.msgs {
		out = append(out, m.Kind)
	}
	return out
}

func (r *recordingRenderer) count(k guidance.Kind) int {
	n := 0
	for _, got := range r.kinds() {
		if got == k {
			n++
		}
	}
	return n
}

// fakeClock advances by the requested duration whenever After is called.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{now: time.Unix(1_700_000_000, 0)} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	c.mu.Unlock()
	ch := make(chan time.Time, 1)
	ch <- now
	return ch
}

func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.PollInterval = 10 * time.Millisecond
	cfg.ReadyTimeout = 50 * time.Millisecond
	cfg.SettleDelay = 0
	cfg.NotifyDelay = 0
	cfg.MonitorInterval = time.Hour
	return cfg
}

const page = `<html><body>
<a href="http://127.0.0.1:5000">Disease AI</a>
<span class="flask-service-status">?</span>
</body></html>`

func newPage(t *testing.T) *indicator.Page {
	t.Helper()
	p, err := indicator.Parse(strings.NewReader(page))
	require.NoError(t, err)
	return p
}

func pageHTML(t *testing.T, p *indicator.Page) string {
	t.Helper()
	s, err := p.HTML()
	require.NoError(t, err)
	return s
}

func TestWaitUntilReadyBecomesAvailable(t *testing.T) {
	clock := newFakeClock()
	start := clock.Now()
	prober := &fakeProber{up: func() bool { return clock.Now().Sub(start) >= 5*time.Second }}
	cfg := DefaultConfig() // 2s poll interval
	m := New(cfg, WithProber(prober), WithClock(clock), WithGuard(NewGuard()))

	assert.True(t, m.WaitUntilReady(context.Background(), 10*time.Second))
	assert.Equal(t, 6*time.Second, clock.Now().Sub(start))
	assert.Equal(t, int32(4), prober.calls.Load())
	assert.Equal(t, status.Running, m.Status())
}

func TestWaitUntilReadyTimesOut(t *testing.T) {
	clock := newFakeClock()
	start := clock.Now()
	prober := staticProber(false)
	m := New(DefaultConfig(), WithProber(prober), WithClock(clock), WithGuard(NewGuard()))

	assert.False(t, m.WaitUntilReady(context.Background(), 4*time.Second))
	elapsed := clock.Now().Sub(start)
	assert.GreaterOrEqual(t, elapsed, 4*time.Second)
	assert.LessOrEqual(t, elapsed, 4*time.Second+DefaultPollInterval)
}

func TestWaitUntilReadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cfg := DefaultConfig()
	cfg.PollInterval = time.Hour
	m := New(cfg, WithProber(staticProber(false)), WithGuard(NewGuard()))
	assert.False(t, m.WaitUntilReady(ctx, time.Hour))
}

func TestInitializeOnlineMakesNoAttempt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := fastConfig()
	cfg.Endpoint = srv.URL
	runner := &fakeRunner{}
	p := newPage(t)
	m := New(cfg, WithChain(runner), WithPage(p), WithGuard(NewGuard()))

	m.Initialize(context.Background())
	defer m.Close()

	assert.Equal(t, status.Running, m.Status())
	assert.Equal(t, Monitoring, m.State())
	assert.Zero(t, m.Attempts().AttemptsMade)
	assert.Zero(t, runner.calls.Load())
	assert.Contains(t, pageHTML(t, p), "AI Service: Online")
}

func TestManagementDeclinedWithoutHandlerGivesGuidance(t *testing.T) {
	mgmt := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success": false}`))
	}))
	defer mgmt.Close()

	chain := strategy.NewChain(
		strategy.NewManagement(client.New(client.Config{BaseURL: mgmt.URL, Timeout: time.Second}), nil),
		strategy.NewHandler(nil, nil),
		nil, nil)
	rec := &recordingRenderer{}
	m := New(fastConfig(), WithProber(staticProber(false)), WithChain(chain),
		WithRenderer(rec), WithGuard(NewGuard()))

	assert.False(t, m.AttemptStart(context.Background()))
	st := m.Attempts()
	assert.Equal(t, 1, st.AttemptsMade)
	assert.False(t, st.InProgress)
	assert.Equal(t, 1, rec.count(guidance.KindGuidance))
	assert.Equal(t, status.StrategyExhausted, m.Snapshot().LastStrategy)
}

func TestAttemptStartSuccessWaitsForReady(t *testing.T) {
	var up atomic.Bool
	runner := &fakeRunner{result: status.StrategyResult{Succeeded: true, StrategyID: strategy.IDHandler}}
	rec := &recordingRenderer{}
	p := newPage(t)
	m := New(fastConfig(), WithProber(&fakeProber{up: up.Load}), WithChain(RunnerFunc(func(ctx context.Context) status.StrategyResult {
		up.Store(true)
		return runner.Run(ctx)
	})), WithRenderer(rec), WithPage(p), WithGuard(NewGuard()))

	assert.True(t, m.AttemptStart(context.Background()))
	assert.Equal(t, []guidance.Kind{guidance.KindStartup, guidance.KindSuccess}, rec.kinds())
	assert.Equal(t, status.Running, m.Status())
	html := pageHTML(t, p)
	assert.NotContains(t, html, indicator.StartupID)
	assert.Contains(t, html, "AI Service: Online")
}

func TestAttemptStartNotReadyGivesGuidance(t *testing.T) {
	runner := &fakeRunner{result: status.StrategyResult{Succeeded: true, StrategyID: strategy.IDTrigger}}
	rec := &recordingRenderer{}
	m := New(fastConfig(), WithProber(staticProber(false)), WithChain(runner),
		WithRenderer(rec), WithGuard(NewGuard()))

	assert.False(t, m.AttemptStart(context.Background()))
	assert.Equal(t, 1, rec.count(guidance.KindGuidance))
	assert.Zero(t, rec.count(guidance.KindSuccess))
}

func TestAttemptStartReentrancy(t *testing.T) {
	runner := &fakeRunner{entered: make(chan struct{}, 1), block: make(chan struct{})}
	prober := staticProber(false)
	p := newPage(t)
	m := New(fastConfig(), WithProber(prober), WithChain(runner), WithPage(p), WithGuard(NewGuard()))

	done := make(chan bool)
	go func() { done <- m.AttemptStart(context.Background()) }()
	<-runner.entered

	assert.True(t, m.Attempts().InProgress)
	assert.Contains(t, pageHTML(t, p), indicator.StartupID)
	before := prober.calls.Load()
	assert.False(t, m.AttemptStart(context.Background()))
	assert.Equal(t, before, prober.calls.Load(), "second call must not probe")
	assert.Equal(t, int32(1), runner.calls.Load())

	close(runner.block)
	assert.False(t, <-done)
	assert.False(t, m.Attempts().InProgress)
	assert.Equal(t, 1, m.Attempts().AttemptsMade)
	assert.NotContains(t, pageHTML(t, p), indicator.StartupID)
}

func TestSharedGuardAcrossMonitors(t *testing.T) {
	g := NewGuard()
	runner := &fakeRunner{entered: make(chan struct{}, 1), block: make(chan struct{})}
	other := &fakeRunner{}
	a := New(fastConfig(), WithProber(staticProber(false)), WithChain(runner), WithGuard(g))
	b := New(fastConfig(), WithProber(staticProber(false)), WithChain(other), WithGuard(g))

	done := make(chan bool)
	go func() { done <- a.AttemptStart(context.Background()) }()
	<-runner.entered

	assert.False(t, b.AttemptStart(context.Background()))
	assert.Zero(t, other.calls.Load())
	assert.Zero(t, b.Attempts().AttemptsMade)

	close(runner.block)
	<-done
	assert.False(t, g.Busy())
}

func TestAttemptStartReportsBusy(t *testing.T) {
	g := NewGuard()
	require.True(t, g.TryAcquire())
	runner := &fakeRunner{}
	rec := &recordingRenderer{}
	m := New(fastConfig(), WithProber(staticProber(false)), WithChain(runner), WithRenderer(rec), WithGuard(g))

	started, busy := m.attemptStart(context.Background())
	assert.False(t, started)
	assert.True(t, busy, "held guard means another start is in flight")
	assert.Zero(t, rec.count(guidance.KindGuidance), "busy is not a failure")
	assert.Zero(t, m.Attempts().AttemptsMade)

	g.Release()
	started, busy = m.attemptStart(context.Background())
	assert.False(t, started)
	assert.False(t, busy)
	assert.Equal(t, int32(1), runner.calls.Load())

	cfg := fastConfig()
	cfg.MaxAttempts = 1
	m = New(cfg, WithProber(staticProber(false)), WithChain(runner), WithGuard(NewGuard()))
	m.AttemptStart(context.Background())
	started, busy = m.attemptStart(context.Background())
	assert.False(t, started)
	assert.False(t, busy, "exhausted attempts lead to guidance, not busy")
}

func TestAttemptCap(t *testing.T) {
	runner := &fakeRunner{}
	rec := &recordingRenderer{}
	m := New(fastConfig(), WithProber(staticProber(false)), WithChain(runner),
		WithRenderer(rec), WithGuard(NewGuard()))

	for i := 0; i < 5; i++ {
		assert.False(t, m.AttemptStart(context.Background()))
	}
	assert.Equal(t, 3, m.Attempts().AttemptsMade)
	assert.Equal(t, int32(3), runner.calls.Load())
	assert.Equal(t, 5, rec.count(guidance.KindGuidance))
	assert.True(t, m.Attempts().Exhausted())
}

func TestInitializeSchedulesOneAutoStart(t *testing.T) {
	runner := &fakeRunner{}
	rec := &recordingRenderer{}
	session := store.NewMemory()
	m := New(fastConfig(), WithProber(staticProber(false)), WithChain(runner),
		WithRenderer(rec), WithNotifier(guidance.NewNotifier(session, rec, nil)), WithGuard(NewGuard()))

	m.Initialize(context.Background())
	m.Initialize(context.Background())
	require.Eventually(t, func() bool { return runner.calls.Load() == 1 && !m.Attempts().InProgress },
		2*time.Second, 5*time.Millisecond)
	m.Close()

	assert.Equal(t, int32(1), runner.calls.Load())
	assert.Equal(t, 1, rec.count(guidance.KindNotice))
	assert.True(t, store.GetBool(context.Background(), session, store.KeyServiceNotified))
	assert.Equal(t, Idle, m.State())
}

func TestIntervalRechecks(t *testing.T) {
	prober := staticProber(true)
	cfg := fastConfig()
	cfg.MonitorInterval = 10 * time.Millisecond
	m := New(cfg, WithProber(prober), WithGuard(NewGuard()))
	m.Initialize(context.Background())
	require.Eventually(t, func() bool { return prober.calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	m.Close()

	n := prober.calls.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, n, prober.calls.Load(), "no checks after Close")
}

func TestCloseRemovesIndicators(t *testing.T) {
	p := newPage(t)
	m := New(fastConfig(), WithProber(staticProber(false)), WithPage(p), WithGuard(NewGuard()))
	m.CheckAvailability(context.Background())
	assert.Contains(t, pageHTML(t, p), indicator.IndicatorClass)
	m.Close()
	assert.NotContains(t, pageHTML(t, p), indicator.IndicatorClass)
}

func TestRunStopsOnCancel(t *testing.T) {
	m := New(fastConfig(), WithProber(staticProber(true)), WithGuard(NewGuard()))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- m.Run(ctx) }()
	require.Eventually(t, func() bool { return m.State() == Monitoring }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
	assert.Equal(t, Idle, m.State())
}

func TestOpen(t *testing.T) {
	t.Run("running opens directly", func(t *testing.T) {
		runner := &fakeRunner{}
		m := New(fastConfig(), WithProber(staticProber(true)), WithChain(runner), WithGuard(NewGuard()))
		d := m.Open(context.Background())
		assert.Equal(t, OpenDecision{Action: ActionOpen, URL: DefaultEndpoint}, d)
		assert.Zero(t, runner.calls.Load())
	})

	t.Run("down then started", func(t *testing.T) {
		var up atomic.Bool
		m := New(fastConfig(), WithProber(&fakeProber{up: up.Load}), WithChain(RunnerFunc(func(context.Context) status.StrategyResult {
			up.Store(true)
			return status.StrategyResult{Succeeded: true, StrategyID: strategy.IDManagement}
		})), WithGuard(NewGuard()))
		d := m.Open(context.Background())
		assert.Equal(t, ActionOpen, d.Action)
		assert.True(t, d.Started)
	})

	t.Run("start fails", func(t *testing.T) {
		m := New(fastConfig(), WithProber(staticProber(false)), WithChain(&fakeRunner{}), WithGuard(NewGuard()))
		assert.Equal(t, ActionGuidance, m.Open(context.Background()).Action)
	})

	t.Run("attempts exhausted guides without starting", func(t *testing.T) {
		runner := &fakeRunner{}
		rec := &recordingRenderer{}
		cfg := fastConfig()
		cfg.MaxAttempts = 1
		m := New(cfg, WithProber(staticProber(false)), WithChain(runner), WithRenderer(rec), WithGuard(NewGuard()))
		m.AttemptStart(context.Background())
		d := m.Open(context.Background())
		assert.Equal(t, ActionGuidance, d.Action)
		assert.Equal(t, int32(1), runner.calls.Load())
		assert.Equal(t, 2, rec.count(guidance.KindGuidance))
	})

	t.Run("busy elsewhere", func(t *testing.T) {
		g := NewGuard()
		require.True(t, g.TryAcquire())
		defer g.Release()
		m := New(fastConfig(), WithProber(staticProber(false)), WithChain(&fakeRunner{}), WithGuard(g))
		assert.Equal(t, ActionBusy, m.Open(context.Background()).Action)
	})
}

func TestSnapshot(t *testing.T) {
	m := New(fastConfig(), WithProber(staticProber(false)), WithChain(&fakeRunner{}), WithGuard(NewGuard()))
	m.AttemptStart(context.Background())
	s := m.Snapshot()
	assert.Equal(t, DefaultEndpoint, s.Endpoint)
	assert.Equal(t, "unknown", s.Status)
	assert.Equal(t, "idle", s.State)
	assert.Equal(t, 1, s.AttemptsMade)
	assert.Equal(t, 3, s.MaxAttempts)
	assert.False(t, s.InProgress)
	assert.Equal(t, status.StrategyExhausted, s.LastStrategy)
}

func TestConfigDefaultsAndValidate(t *testing.T) {
	c := Config{}.withDefaults()
	assert.Equal(t, DefaultEndpoint, c.Endpoint)
	assert.Equal(t, DefaultPollInterval, c.PollInterval)
	assert.Equal(t, DefaultMaxAttempts, c.MaxAttempts)

	bad := DefaultConfig()
	bad.PollInterval = time.Minute
	assert.Error(t, bad.Validate())
	assert.NoError(t, DefaultConfig().Validate())
}
