package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/vector-ai/vector-mcp-server/internal/catalog"
	"github.com/vector-ai/vector-mcp-server/internal/config"
	"github.com/vector-ai/vector-mcp-server/internal/mcp"
	"github.com/vector-ai/vector-mcp-server/internal/metrics"
	"github.com/vector-ai/vector-mcp-server/internal/upstream"
	"github.com/vector-ai/vector-mcp-server/internal/version"
)

// mcpPrefix is where the MCP transport is mounted.
const mcpPrefix = "/mcp"

const shutdownTimeout = 10 * time.Second

// App is the wired bridge: configuration, registry, upstream client,
// dispatcher and transports.
type App struct {
	cfg       config.Config
	log       *logrus.Entry
	registry  *prometheus.Registry
	toolbox   *mcp.Toolbox
	upstream  *upstream.Client
	server    *mcp.Server
	transport *mcp.HTTPTransport
}

// Option customizes New.
type Option func(*options)

type options struct {
	tools      []catalog.Tool
	httpClient *http.Client
}

// WithTools replaces the embedded catalog.
func WithTools(tools ...catalog.Tool) Option {
	return func(o *options) { o.tools = tools }
}

// WithHTTPClient sets the client used for Resource API calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

// New builds the bridge from cfg. It fails when the tool catalog is invalid.
func New(cfg config.Config, log *logrus.Entry, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.tools == nil {
		tools, err := catalog.Default()
		if err != nil {
			return nil, fmt.Errorf("load catalog: %w", err)
		}
		o.tools = tools
	}

	toolbox, err := mcp.NewToolbox(o.tools...)
	if err != nil {
		return nil, fmt.Errorf("build toolbox: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	clientOpts := []upstream.Option{
		upstream.WithMetrics(m),
		upstream.WithUserAgent(version.UserAgent(cfg.ServerName)),
	}
	if o.httpClient != nil {
		clientOpts = append(clientOpts, upstream.WithHTTPClient(o.httpClient))
	}
	client := upstream.NewClient(cfg.UpstreamURL, cfg.UpstreamTimeout, log.WithField("component", "upstream"), clientOpts...)

	executor := mcp.NewExecutor(toolbox, client, log.WithField("component", "executor"))
	server := mcp.NewServer(mcp.Info{
		Name:            cfg.ServerName,
		Version:         version.Get().Version,
		ProtocolVersion: cfg.ProtocolVersion,
	}, toolbox, executor, log.WithField("component", "dispatcher"), m)

	return &App{
		cfg:       cfg,
		log:       log,
		registry:  reg,
		toolbox:   toolbox,
		upstream:  client,
		server:    server,
		transport: mcp.NewHTTPTransport(server, mcpPrefix, log.WithField("component", "http")),
	}, nil
}

// Server returns the dispatcher shared by all connections.
func (a *App) Server() *mcp.Server {
	return a.server
}

// Router builds the HTTP handler: MCP transport, auxiliary endpoints and metrics.
func (a *App) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(a.log.WithField("component", "http")))

	r.GET("/", a.handleRoot)
	r.GET("/health", a.handleHealth)
	r.GET("/tools", a.handleTools)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})))
	a.transport.Register(r)
	return r
}

// RunHTTP serves the router on the configured address until ctx is done.
func (a *App) RunHTTP(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		// Request contexts end with ctx so open SSE streams close on shutdown.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.log.WithFields(logrus.Fields{"addr": a.cfg.HTTPAddr, "upstream": a.cfg.UpstreamURL}).Info("MCP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("mcp server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.log.Info("shutting down MCP server")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// RunStdio serves one MCP connection over in and out.
func (a *App) RunStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	a.log.WithField("upstream", a.cfg.UpstreamURL).Info("MCP server on stdio")
	return mcp.ServeStdio(ctx, a.server, in, out)
}

func (a *App) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message":        "Vector AI MCP Server está rodando",
		"version":        version.Get().Version,
		"mcp_endpoint":   mcpPrefix + "/sse (SSE)",
		"tools_count":    a.toolbox.Len(),
		"vector_api_url": a.upstream.BaseURL(),
		"status":         "online",
	})
}

func (a *App) handleHealth(c *gin.Context) {
	apiStatus := "ok"
	if out := a.upstream.Call(c.Request.Context(), upstream.Request{Method: http.MethodGet, Path: "/health"}); !out.OK() {
		apiStatus = "error"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":          "healthy",
		"mcp_server":      "ready",
		"vector_api":      apiStatus,
		"tools_available": a.toolbox.Len(),
	})
}

func (a *App) handleTools(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tools": a.toolbox.Names(), "total": a.toolbox.Len()})
}

func requestLogger(log *logrus.Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(logrus.Fields{
			"http_method": c.Request.Method,
			"path":        c.Request.URL.Path,
			"status":      c.Writer.Status(),
			"elapsed":     time.Since(start).String(),
		}).Debug("http request")
	}
}
