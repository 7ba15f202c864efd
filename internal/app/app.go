package app

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/langflow-mcp/langflow-mcp/internal/client"
	"github.com/langflow-mcp/langflow-mcp/internal/config"
	"github.com/langflow-mcp/langflow-mcp/internal/logger"
	"github.com/langflow-mcp/langflow-mcp/internal/mcp/langflowserver"
	"github.com/langflow-mcp/langflow-mcp/internal/session"
	"github.com/langflow-mcp/langflow-mcp/internal/telemetry"
	"github.com/langflow-mcp/langflow-mcp/internal/version"
)

const probeTimeout = 5 * time.Second

// Options configures an App.
type Options struct {
	Config *config.Config
	Logger zerolog.Logger
	// Transport replaces the configured transport, e.g. with an in-memory one.
	Transport mcp.Transport
	// ClientOptions are applied to every Langflow client after the configured ones.
	ClientOptions []client.Option
}

// App runs the MCP server over one transport until its context is cancelled or
// the peer goes away.
type App struct {
	cfg        *config.Config
	logger     zerolog.Logger
	transport  mcp.Transport
	clientOpts []client.Option
	lifecycle  Lifecycle
}

// New validates the configuration. Invalid configuration is a configuration
// error and the process should exit.
func New(opts Options) (*App, error) {
	if opts.Config == nil {
		var err error
		if opts.Config, err = config.Load(""); err != nil {
			return nil, err
		}
	}
	if err := opts.Config.Validate(); err != nil {
		return nil, err
	}
	return &App{
		cfg:        opts.Config,
		logger:     opts.Logger,
		transport:  opts.Transport,
		clientOpts: opts.ClientOptions,
	}, nil
}

func (a *App) State() State { return a.lifecycle.State() }

// Run blocks until ctx is cancelled or the transport closes. In-flight tool
// calls are drained for up to the configured shutdown timeout.
func (a *App) Run(ctx context.Context) error {
	if err := a.lifecycle.start(); err != nil {
		return err
	}
	defer a.lifecycle.stop()
	log := logger.Component(a.logger, "app")
	log.Info().Str("version", version.Version).Str("commit", version.GitCommit).Msg("starting langflow-mcp")

	var metrics *telemetry.Metrics
	shutdownTelemetry := telemetry.ShutdownFunc(func(context.Context) error { return nil })
	if a.cfg.MetricsAddr != "" {
		var err error
		if shutdownTelemetry, metrics, err = telemetry.InitMetrics(version.Version); err != nil {
			return err
		}
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			log.Warn().Err(err).Msg("failed to shut down telemetry")
		}
	}()

	factory := a.clientFactory(metrics)
	sessions := session.NewManager(session.Credentials{
		BaseURL: a.cfg.LangflowBaseURL,
		APIKey:  a.cfg.LangflowAPIKey,
	}, factory, logger.Component(a.logger, "session"))
	defer sessions.Close()

	server, err := langflowserver.NewServer(langflowserver.Options{
		Sessions: sessions,
		Gate:     &a.lifecycle,
		Metrics:  metrics,
		Logger:   logger.Component(a.logger, "dispatcher"),
	})
	if err != nil {
		return err
	}

	a.probeVersion(ctx, factory, log)

	// Ready before the transport accepts its first request.
	if err := a.lifecycle.ready(); err != nil {
		return err
	}
	log.Info().Str("transport", a.transportName()).Msg("ready")

	// The serving context outlives ctx so drained calls can still write their results.
	serveCtx, cancelServe := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelServe()

	var g errgroup.Group
	served := make(chan error, 1)
	var httpServer *http.Server
	switch {
	case a.transport != nil:
		g.Go(func() error {
			served <- server.Run(serveCtx, a.transport)
			return nil
		})
	case a.cfg.Transport == config.TransportHTTP:
		httpServer = a.newHTTPServer(server)
		g.Go(func() error {
			log.Info().Str("addr", httpServer.Addr).Msg("MCP HTTP server starting")
			err := httpServer.ListenAndServe()
			if errors.Is(err, http.ErrServerClosed) {
				err = nil
			}
			served <- err
			return nil
		})
	default:
		g.Go(func() error {
			served <- server.Run(serveCtx, &mcp.StdioTransport{})
			return nil
		})
	}

	var metricsServer *http.Server
	if metrics != nil {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.PrometheusHandler())
		metricsServer = &http.Server{Addr: a.cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
		g.Go(func() error {
			log.Info().Str("addr", metricsServer.Addr).Msg("metrics server starting")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("metrics server failed")
			}
			return nil
		})
	}

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	case serveErr = <-served:
		log.Info().Msg("transport closed")
	}

	drainCtx, cancelDrain := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancelDrain()
	if err := a.lifecycle.Drain(drainCtx); err != nil {
		log.Warn().Err(err).Msg("in-flight tool calls did not finish before the shutdown timeout")
	}

	cancelServe()
	for _, srv := range []*http.Server{httpServer, metricsServer} {
		if srv == nil {
			continue
		}
		if err := srv.Shutdown(drainCtx); err != nil {
			log.Warn().Err(err).Str("addr", srv.Addr).Msg("server forced to shut down")
			_ = srv.Close()
		}
	}
	_ = g.Wait()

	log.Info().Msg("stopped")
	if serveErr == nil || errors.Is(serveErr, context.Canceled) || errors.Is(serveErr, io.EOF) {
		return nil
	}
	return serveErr
}

func (a *App) clientFactory(metrics *telemetry.Metrics) session.Factory {
	clientLog := logger.Component(a.logger, "client")
	return func(baseURL, apiKey string) (client.API, error) {
		opts := []client.Option{
			client.WithTimeout(a.cfg.Timeout),
			client.WithRetries(a.cfg.MaxRetries, a.cfg.RetryBackoff),
			client.WithRateLimit(a.cfg.RateLimit, a.cfg.RateBurst),
			client.WithObserver(metrics.RecordAPIRequest),
			client.WithLogger(clientLog),
		}
		return client.NewClient(baseURL, apiKey, append(opts, a.clientOpts...)...)
	}
}

// probeVersion logs the Langflow version. Failures are logged and never fatal:
// sessions may bring their own credentials.
func (a *App) probeVersion(ctx context.Context, factory session.Factory, log zerolog.Logger) {
	api, err := factory(a.cfg.LangflowBaseURL, a.cfg.LangflowAPIKey)
	if err != nil {
		log.Warn().Err(err).Msg("langflow version probe skipped")
		return
	}
	defer func() { _ = api.Close() }()

	pctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	v, err := api.GetVersion(pctx)
	if err != nil {
		log.Warn().Err(err).Str("langflow_url", a.cfg.LangflowBaseURL).Msg("langflow is not reachable yet")
		return
	}
	log.Info().Str("langflow_url", a.cfg.LangflowBaseURL).Str("langflow_version", v.Version).Msg("connected to langflow")
}

func (a *App) newHTTPServer(server *mcp.Server) *http.Server {
	handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return server
	}, &mcp.StreamableHTTPOptions{})

	c := cors.New(cors.Options{
		AllowedOrigins: a.cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"Mcp-Session-Id"},
	})
	return &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           c.Handler(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func (a *App) transportName() string {
	if a.transport != nil {
		return "injected"
	}
	return a.cfg.Transport
}
