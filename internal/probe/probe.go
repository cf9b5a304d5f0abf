// Package probe answers one question: is the monitored endpoint reachable right now.
package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/loykin/krishid/internal/metrics"
	"github.com/loykin/krishid/internal/status"
)

const (
	DefaultTimeout = 3 * time.Second
	HealthPath     = "/api/health"
)

// Config describes the endpoint to probe.
type Config struct {
	URL        string        // endpoint root, e.g. http://127.0.0.1:5000
	Timeout    time.Duration // per-check bound (default 3s)
	Method     string        // HEAD (default) or GET
	Production bool          // probe <origin>/api/health instead of the root
}

// Result is the outcome of one probe. Err is nil only for Running.
type Result struct {
	URL       string                `json:"url"`
	Status    status.EndpointStatus `json:"status"`
	Code      int                   `json:"code,omitempty"`
	Latency   time.Duration         `json:"latency"`
	Err       error                 `json:"-"`
	CheckedAt time.Time             `json:"checked_at"`
}

// Observer receives every probe result; the monitor uses it to update status and indicators.
type Observer interface {
	Observe(Result)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Result)

func (f ObserverFunc) Observe(r Result) { f(r) }

// Checker performs availability checks. It never retries; retry policy lives in the caller.
type Checker struct {
	cfg      Config
	target   string
	client   *http.Client
	observer Observer
	logger   *slog.Logger
}

// Option customizes a Checker.
type Option func(*Checker)

func WithHTTPClient(c *http.Client) Option { return func(ch *Checker) { ch.client = c } }
func WithObserver(o Observer) Option       { return func(ch *Checker) { ch.observer = o } }
func WithLogger(l *slog.Logger) Option     { return func(ch *Checker) { ch.logger = l } }

func New(cfg Config, opts ...Option) *Checker {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	cfg.Method = strings.ToUpper(strings.TrimSpace(cfg.Method))
	if cfg.Method != http.MethodGet {
		cfg.Method = http.MethodHead
	}
	c := &Checker{
		cfg:    cfg,
		target: TargetURL(cfg.URL, cfg.Production),
		client: &http.Client{},
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// TargetURL returns the URL actually probed: the endpoint itself, or its
// origin's health route in production mode.
func TargetURL(endpoint string, production bool) string {
	if !production {
		return endpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return strings.TrimRight(endpoint, "/") + HealthPath
	}
	return u.Scheme + "://" + u.Host + HealthPath
}

// URL returns the probed URL.
func (c *Checker) URL() string { return c.target }

// SetObserver replaces the observer. Not safe to call concurrently with Check.
func (c *Checker) SetObserver(o Observer) { c.observer = o }

// Check reports whether the endpoint answered 2xx within the timeout. It never
// returns an error: every failure is downgraded to false.
func (c *Checker) Check(ctx context.Context) bool {
	return c.Probe(ctx).Status.Running()
}

// Probe runs one check and returns the full result.
func (c *Checker) Probe(ctx context.Context) Result {
	start := time.Now()
	// one deadline covers the GET retry too
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()
	res := c.probe(ctx, c.cfg.Method)
	if res.Code == http.StatusMethodNotAllowed && c.cfg.Method == http.MethodHead {
		res = c.probe(ctx, http.MethodGet)
	}
	res.Latency = time.Since(start)
	res.CheckedAt = start

	metrics.ObserveCheck(res.Status, res.Latency.Seconds())
	if res.Err != nil {
		c.logger.Debug("endpoint check failed", "url", c.target, "status", res.Status, "error", res.Err)
	} else {
		c.logger.Debug("endpoint check ok", "url", c.target, "code", res.Code, "latency", res.Latency)
	}
	if c.observer != nil {
		c.observer.Observe(res)
	}
	return res
}

func (c *Checker) probe(ctx context.Context, method string) Result {
	res := Result{URL: c.target}
	req, err := http.NewRequestWithContext(ctx, method, c.target, nil)
	if err != nil {
		res.Status = status.Stopped
		res.Err = fmt.Errorf("%w: %v", status.ErrNetworkUnreachable, err)
		return res
	}
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.client.Do(req)
	if err != nil {
		res.Status = status.Stopped
		res.Err = classify(err)
		return res
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	res.Code = resp.StatusCode
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		res.Status = status.Running
		return res
	}
	res.Status = status.Error
	res.Err = fmt.Errorf("unexpected status %d", resp.StatusCode)
	return res
}

func classify(err error) error {
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return fmt.Errorf("%w: %v", status.ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", status.ErrNetworkUnreachable, err)
}
