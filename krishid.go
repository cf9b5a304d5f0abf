// Package krishid keeps the KrishiVaani disease-prediction backend reachable:
// it watches the endpoint, starts the backend when it is down and tells users
// how to start it by hand when automatic attempts run out.
package krishid

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/loykin/krishid/internal/config"
	"github.com/loykin/krishid/internal/guidance"
	"github.com/loykin/krishid/internal/history"
	hfactory "github.com/loykin/krishid/internal/history/factory"
	"github.com/loykin/krishid/internal/i18n"
	"github.com/loykin/krishid/internal/launcher"
	"github.com/loykin/krishid/internal/logger"
	"github.com/loykin/krishid/internal/metrics"
	"github.com/loykin/krishid/internal/monitor"
	"github.com/loykin/krishid/internal/server"
	"github.com/loykin/krishid/internal/store"
	sfactory "github.com/loykin/krishid/internal/store/factory"
	"github.com/loykin/krishid/internal/strategy"
	servertls "github.com/loykin/krishid/internal/tls"
	"github.com/loykin/krishid/pkg/client"
)

// Re-export core types for external consumers.

type Config = config.Config

type Spec = launcher.Spec

type MonitorConfig = monitor.Config

type OpenDecision = monitor.OpenDecision

type HistorySink = history.Sink

func LoadConfig(path string) (*Config, error) { return config.Load(path) }

func DefaultConfig() *Config { return config.Default() }

// SampleInterval is how often the launched backend's CPU and memory are sampled.
const SampleInterval = 15 * time.Second

// App is a fully wired krishid instance.
type App struct {
	cfg        *Config
	logger     *slog.Logger
	logCloser  io.Closer
	prefs      store.Prefs
	session    store.Prefs
	translator *i18n.Translator
	recorder   *history.Recorder
	launcher   *launcher.Launcher
	monitor    *monitor.Monitor
	chain      *strategy.Chain
	html       *guidance.HTMLRenderer
	sinks      []history.Sink
}

// Option customizes New.
type Option func(*App)

// WithLogger replaces the logger built from the log section.
func WithLogger(l *slog.Logger) Option { return func(a *App) { a.logger = l } }

// WithSinks adds history sinks beyond those named in the config.
func WithSinks(sinks ...HistorySink) Option {
	return func(a *App) { a.sinks = append(a.sinks, sinks...) }
}

// New builds the stores, translator, launcher, monitor and start chain.
func New(ctx context.Context, cfg *Config, opts ...Option) (*App, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	a := &App{cfg: cfg}
	for _, o := range opts {
		if o != nil {
			o(a)
		}
	}
	if err := a.init(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	cfg := a.cfg
	if a.logger == nil {
		l, closer, err := logger.New(cfg.Log)
		if err != nil {
			return fmt.Errorf("logger: %w", err)
		}
		a.logger, a.logCloser = l, closer
	}

	var err error
	if a.prefs, err = openPrefs(ctx, cfg.Store.DSN); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if a.session, err = openPrefs(ctx, cfg.Session.DSN); err != nil {
		return fmt.Errorf("session store: %w", err)
	}
	if a.translator, err = i18n.New(a.prefs, a.logger); err != nil {
		return fmt.Errorf("translations: %w", err)
	}
	if err := a.translator.Load(ctx); err != nil {
		a.logger.Warn("saved language not restored", "error", err)
	}

	if cfg.History.Enabled || len(a.sinks) > 0 {
		sinks := a.sinks
		for _, dsn := range cfg.History.Sinks {
			s, err := hfactory.NewSinkFromDSN(dsn)
			if err != nil {
				return fmt.Errorf("history sink: %w", err)
			}
			sinks = append(sinks, s)
		}
		a.recorder = history.NewRecorder(a.logger, sinks...)
	}

	spec, err := cfg.LauncherSpec()
	if err != nil {
		return fmt.Errorf("launcher: %w", err)
	}
	a.launcher = launcher.New(spec, a.logger)

	a.html = guidance.NewHTMLRenderer()
	renderer := guidance.Multi{guidance.LogRenderer{Logger: a.logger}, a.html}
	a.monitor = monitor.New(cfg.Monitor,
		monitor.WithRenderer(renderer),
		monitor.WithNotifier(guidance.NewNotifier(a.session, renderer, a.logger)),
		monitor.WithRecorder(a.recorder),
		monitor.WithLogger(a.logger),
	)

	// The in-process handler is only offered when the launcher is enabled.
	var starter strategy.Starter
	if cfg.Launcher.Enabled {
		starter = a.launcher
	}
	mgmt := client.New(client.Config{BaseURL: cfg.Monitor.ManagementURL, Logger: a.logger, Timeout: client.DefaultConfig().Timeout})
	a.chain = strategy.NewChain(
		strategy.NewManagement(mgmt, a.logger),
		strategy.NewHandler(starter, a.logger),
		strategy.NewTrigger(
			strategy.CommandFire(cfg.Monitor.TriggerCommand, cfg.Monitor.TriggerWorkDir, a.logger),
			a.monitor, cfg.Monitor.TriggerDelay, a.logger),
		a.logger,
	)
	a.monitor.SetChain(a.chain)
	return nil
}

func openPrefs(ctx context.Context, dsn string) (store.Prefs, error) {
	p, err := sfactory.NewFromDSN(dsn)
	if err != nil {
		return nil, err
	}
	if err := p.EnsureSchema(ctx); err != nil {
		_ = p.Close()
		return nil, err
	}
	return p, nil
}

func (a *App) Config() *Config                  { return a.cfg }
func (a *App) Logger() *slog.Logger             { return a.logger }
func (a *App) Monitor() *monitor.Monitor        { return a.monitor }
func (a *App) Launcher() *launcher.Launcher     { return a.launcher }
func (a *App) Translator() *i18n.Translator     { return a.translator }
func (a *App) Chain() *strategy.Chain           { return a.chain }
func (a *App) Guidance() *guidance.HTMLRenderer { return a.html }

// ServerOptions returns the management router options for this app.
func (a *App) ServerOptions() server.Options {
	var svc server.Service = a.launcher
	if !a.cfg.Launcher.Enabled {
		svc = disabledService{a.launcher}
	}
	opts := server.Options{
		BasePath:   a.cfg.Server.BasePath,
		Service:    svc,
		Monitor:    a.monitor,
		Translator: a.translator,
		Logger:     a.logger,
		StopWait:   a.cfg.Launcher.StopWait,
	}
	if a.cfg.Metrics.Enabled {
		opts.MetricsPath = a.cfg.Metrics.Path
	}
	return opts
}

// ErrLauncherDisabled is returned by the management routes that would spawn
// or signal the service when launcher.enabled is false.
var ErrLauncherDisabled = errors.New("launcher disabled in configuration")

// disabledService reports the detected service but refuses to control it.
type disabledService struct{ l *launcher.Launcher }

func (disabledService) Launch(context.Context) (bool, error)         { return false, ErrLauncherDisabled }
func (disabledService) Stop(time.Duration) error                     { return ErrLauncherDisabled }
func (disabledService) Restart(context.Context, time.Duration) error { return ErrLauncherDisabled }
func (d disabledService) Status() client.ServiceStatus               { return d.l.Status() }

// Serve runs the management server, the monitor and the usage sampler until
// ctx is done.
func (a *App) Serve(ctx context.Context) error {
	if a.cfg.Metrics.Enabled {
		if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
			a.logger.Warn("metrics registration failed", "error", err)
		}
	}
	opts := a.ServerOptions()
	tlsCfg, err := servertls.Setup(a.cfg.Server.TLS)
	if err != nil {
		return fmt.Errorf("management server tls: %w", err)
	}
	opts.TLS = tlsCfg
	srv, err := server.NewServer(a.cfg.Server.Listen, opts)
	if err != nil {
		return fmt.Errorf("management server: %w", err)
	}
	if pf := a.cfg.Server.PidFile; pf != "" {
		if err := os.WriteFile(pf, []byte(strconv.Itoa(os.Getpid())), 0o600); err != nil {
			a.logger.Warn("pidfile not written", "path", pf, "error", err)
		} else {
			defer func() { _ = os.Remove(pf) }()
		}
	}
	a.logger.Info("management server listening", "addr", a.cfg.Server.Listen, "base_path", a.cfg.Server.BasePath, "tls", tlsCfg != nil)

	go a.sample(ctx)
	err = a.monitor.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if serr := srv.Shutdown(shutdownCtx); serr != nil && !errors.Is(serr, http.ErrServerClosed) {
		err = errors.Join(err, serr)
	}
	return err
}

func (a *App) sample(ctx context.Context) {
	t := time.NewTicker(SampleInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			st := a.launcher.Status()
			pid := 0
			if st.Running {
				pid = st.PID
			}
			if _, err := metrics.SampleProcess(pid); err != nil {
				a.logger.Debug("usage sample failed", "pid", pid, "error", err)
			}
		}
	}
}

// Close releases stores, history sinks and the log file.
func (a *App) Close() error {
	var errs []error
	if a.recorder != nil {
		errs = append(errs, a.recorder.Close())
	}
	for _, p := range []store.Prefs{a.prefs, a.session} {
		if p != nil {
			errs = append(errs, p.Close())
		}
	}
	if a.logCloser != nil {
		errs = append(errs, a.logCloser.Close())
	}
	return errors.Join(errs...)
}
