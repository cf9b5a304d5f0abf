package server

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/loykin/krishid/internal/i18n"
	"github.com/loykin/krishid/internal/metrics"
	"github.com/loykin/krishid/internal/monitor"
	"github.com/loykin/krishid/pkg/client"
)

// Service is the backend the management endpoints control; *launcher.Launcher
// implements it.
type Service interface {
	Launch(ctx context.Context) (already bool, err error)
	Stop(wait time.Duration) error
	Restart(ctx context.Context, wait time.Duration) error
	Status() client.ServiceStatus
}

// Options wires the router. Only Service is required; routes backed by a nil
// Monitor or Translator answer 503.
type Options struct {
	BasePath    string
	Service     Service
	Monitor     *monitor.Monitor
	Translator  *i18n.Translator
	Logger      *slog.Logger
	StopWait    time.Duration
	MetricsPath string      // empty disables GET /metrics
	TLS         *tls.Config // nil serves plain HTTP
}

// Router provides embeddable HTTP handlers for the management server.
// Endpoints:
//
//	GET  {basePath}/start       start the backend
//	GET  {basePath}/stop        query: wait=5s (optional)
//	GET  {basePath}/status      backend status plus monitor snapshot
//	GET  {basePath}/health      liveness of the management server itself
//	POST {basePath}/service     body: {"action": "start|stop|restart|status"}
//	GET  {basePath}/open        302 to the service, or a guidance page
//	GET  {basePath}/i18n        current language and catalog
//	POST {basePath}/i18n/:lang  switch language
//	POST {basePath}/page/render translate and decorate an HTML page
//
// basePath may be empty or start with '/'; no trailing slash.
type Router struct {
	opts     Options
	basePath string
	logger   *slog.Logger
}

// NewRouter constructs a new Router.
func NewRouter(opts Options) *Router {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.StopWait <= 0 {
		opts.StopWait = 5 * time.Second
	}
	return &Router{
		opts:     opts,
		basePath: sanitizeBase(opts.BasePath),
		logger:   opts.Logger.With("component", "server"),
	}
}

// Handler returns an http.Handler powered by gin that can be mounted in any server/mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery(), r.accessLog(), cors())
	r.Mount(g.Group(r.basePath))
	return g
}

// Mount registers the routes on an existing gin group.
func (r *Router) Mount(group *gin.RouterGroup) {
	group.GET("/start", r.handleStart)
	group.GET("/stop", r.handleStop)
	group.GET("/status", r.handleStatus)
	group.GET("/health", r.handleHealth)
	group.POST("/service", r.handleService)
	group.GET("/open", r.handleOpen)
	group.GET("/i18n", r.handleI18n)
	group.POST("/i18n/:lang", r.handleSwitchLanguage)
	group.POST("/page/render", r.handleRenderPage)
	if r.opts.MetricsPath != "" {
		group.GET(r.opts.MetricsPath, gin.WrapH(metrics.Handler()))
	}
}

// accessLog logs every request except health checks at debug level.
func (r *Router) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if c.FullPath() == r.basePath+"/health" {
			return
		}
		r.logger.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

// NewServer listens on addr and serves the router in the background. Listen
// errors are returned; serve errors after that are logged.
func NewServer(addr string, opts Options) (*http.Server, error) {
	r := NewRouter(opts)
	// WriteTimeout covers /open waiting through a full start sequence.
	server := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	if opts.TLS != nil {
		server.TLSConfig = opts.TLS
		ln = tls.NewListener(ln, opts.TLS)
	}
	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.logger.Error("management server stopped", "error", err)
		}
	}()
	return server, nil
}
