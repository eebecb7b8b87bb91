// ABOUTME: Gateway assembly and lifecycle for the edge-gateway server
// ABOUTME: Wires the certificate store, registry, transports, and control API together

package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/autonomy-edge/edge-gateway/internal/certauth"
	"github.com/autonomy-edge/edge-gateway/internal/certstore"
	"github.com/autonomy-edge/edge-gateway/internal/config"
	"github.com/autonomy-edge/edge-gateway/internal/events"
	"github.com/autonomy-edge/edge-gateway/internal/metrics"
	"github.com/autonomy-edge/edge-gateway/internal/protocol"
	"github.com/autonomy-edge/edge-gateway/internal/registry"
	"github.com/autonomy-edge/edge-gateway/internal/transport"
)

// Gateway owns every long-lived component of the server: the pinned
// certificate store, the session registry, both agent transports, the
// fleet event publisher, and the HTTP control API.
type Gateway struct {
	config    *config.Config
	logger    *slog.Logger
	store     certstore.Store
	registry  *registry.Registry
	proto     *protocol.Handler
	publisher events.Publisher
	metrics   *metrics.Metrics

	httpServer *http.Server
}

// New creates a Gateway from the given configuration.
// The returned Gateway is fully wired but not yet listening; call Run.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	store, err := certstore.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening certificate store: %w", err)
	}

	m := metrics.New()

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.NATS.Enabled {
		np, err := events.NewNATSPublisher(cfg.NATS.URL, cfg.NATS.SubjectPrefix, logger, func() {
			m.EventPublishErrors.Inc()
		})
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("connecting to NATS: %w", err)
		}
		publisher = np
	}

	reg := registry.New(logger)
	auth := certauth.NewAuthenticator(store, cfg.Auth.RequireClientCert, logger)
	proto := protocol.NewHandler(reg, m, publisher, logger)

	gw := &Gateway{
		config:    cfg,
		logger:    logger,
		store:     store,
		registry:  reg,
		proto:     proto,
		publisher: publisher,
		metrics:   m,
	}

	mux := http.NewServeMux()

	// Agent transports are authenticated by client certificate, never by API key.
	mux.Handle("/ws", transport.NewWSHandler(auth, proto, m, logger))
	mux.Handle("/events", transport.NewEventsHandler(auth, proto, m, logger))

	// Health endpoints - no auth required
	mux.HandleFunc("/health", gw.handleHealth)
	mux.HandleFunc("/health/ready", gw.handleReady)

	if cfg.Metrics.Enabled {
		path := cfg.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		mux.Handle(path, promhttp.HandlerFor(m.Gatherer(), promhttp.HandlerOpts{}))
	}

	// Control API - API key required when one is configured
	apiAuth := apiKeyMiddleware(cfg.Auth.APIKey, logger)
	cors := corsMiddleware(cfg.CORS.AllowedOrigins)
	mux.Handle("/api/certificates", cors(apiAuth(http.HandlerFunc(gw.handleRegisterCertificate))))
	mux.Handle("/api/agents", cors(apiAuth(http.HandlerFunc(gw.handleListAgents))))
	mux.Handle("/hello-world", cors(apiAuth(http.HandlerFunc(gw.handleHelloWorld))))

	gw.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return gw, nil
}

// Handler returns the gateway's HTTP handler. Used by tests to serve the
// gateway through httptest without binding a real listener.
func (g *Gateway) Handler() http.Handler {
	return g.httpServer.Handler
}

// Run starts the HTTP server and blocks until the context is canceled.
// Returns nil on graceful shutdown, or an error if the server fails.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on HTTP address: %w", err)
	}

	if g.config.Agents.SessionTTL > 0 {
		interval := g.config.Agents.SweepInterval
		if interval <= 0 {
			interval = g.config.Agents.SessionTTL / 2
		}
		go g.registry.StartSweeper(ctx, g.config.Agents.SessionTTL, interval, g.proto.Evicted)
	}

	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := g.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		g.logger.Error("server error", "error", serverErr)
	}

	shutdownErr := g.gracefulShutdown()
	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// Uses context.Background() intentionally since the original context is already canceled.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.Shutdown(ctx)
}

// Shutdown stops the HTTP server and releases the store and publisher.
func (g *Gateway) Shutdown(ctx context.Context) error {
	var firstErr error
	if err := g.httpServer.Shutdown(ctx); err != nil {
		firstErr = fmt.Errorf("shutting down HTTP server: %w", err)
	}
	if err := g.publisher.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("closing event publisher: %w", err)
	}
	if err := g.store.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("closing certificate store: %w", err)
	}
	return firstErr
}

// handleHealth returns 200 OK if the server is alive.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady returns 200 OK if at least one agent session is connected.
func (g *Gateway) handleReady(w http.ResponseWriter, r *http.Request) {
	count := g.registry.Count()
	if count == 0 {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("no agents connected"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "ready (%d agents)", count)
}
