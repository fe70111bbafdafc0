package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/aishgopalia-innov/sse-poc/internal/auth"
	"github.com/aishgopalia-innov/sse-poc/internal/config"
	"github.com/aishgopalia-innov/sse-poc/internal/limits"
	"github.com/aishgopalia-innov/sse-poc/internal/metrics"
	"github.com/aishgopalia-innov/sse-poc/internal/platform"
	"github.com/aishgopalia-innov/sse-poc/internal/session"
)

// Server is the gateway's HTTP surface: the SSE subscribe endpoint, the
// authenticated publish endpoint, and the health/admin/metrics documents.
type Server struct {
	cfg      *config.Config
	logger   zerolog.Logger
	registry *session.Registry

	resolver    auth.PrincipalResolver
	serviceAuth auth.ServiceAuthenticator

	metrics     *metrics.Registry
	rateLimiter *limits.ConnectionRateLimiter
	monitor     *platform.SystemMonitor

	httpServer *http.Server
	listener   net.Listener

	// baseCtx is cancelled on shutdown; every writer selects on it.
	baseCtx context.Context
	cancel  context.CancelFunc

	wg           sync.WaitGroup
	shuttingDown int32
	dropLogCount int64
}

// NewServer wires the gateway together. All collaborators are required
// except rateLimiter and monitor, which may be nil when disabled.
func NewServer(
	cfg *config.Config,
	logger zerolog.Logger,
	registry *session.Registry,
	resolver auth.PrincipalResolver,
	serviceAuth auth.ServiceAuthenticator,
	metricsRegistry *metrics.Registry,
	rateLimiter *limits.ConnectionRateLimiter,
	monitor *platform.SystemMonitor,
) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:         cfg,
		logger:      logger.With().Str("component", "transport").Logger(),
		registry:    registry,
		resolver:    resolver,
		serviceAuth: serviceAuth,
		metrics:     metricsRegistry,
		rateLimiter: rateLimiter,
		monitor:     monitor,
		baseCtx:     ctx,
		cancel:      cancel,
	}
}

// Handler builds the route table. Exposed for httptest use.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/admin/logs/stats", s.handleStats)
	mux.HandleFunc("/api/logs/stream", s.handleStream)
	mux.HandleFunc("/api/logs/publish", s.handlePublish)
	mux.HandleFunc("/test/logs", s.handleTestLogs)
	mux.Handle("/metrics", s.metrics.Handler())
	return s.withCORS(mux)
}

// Start begins listening and serving. Non-blocking; errors from the accept
// loop are logged.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	s.listener = listener

	s.httpServer = &http.Server{
		Handler: s.Handler(),
		// No WriteTimeout: subscriber streams are intentionally long-lived.
		ReadTimeout:    10 * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	s.logger.Info().
		Str("addr", s.cfg.Addr).
		Msg("Gateway listening")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Server accept loop error")
		}
	}()

	return nil
}

// Shutdown stops accepting requests, signals every writer, and waits for
// in-flight handlers. Publishers in flight complete normally; closed
// connections count as drops.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("Initiating graceful shutdown")
	atomic.StoreInt32(&s.shuttingDown, 1)

	// Writers exit immediately; their handlers unregister on the way out.
	s.cancel()
	s.registry.CloseAll()

	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}

	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}
	if s.monitor != nil {
		s.monitor.Stop()
	}

	s.wg.Wait()
	s.logger.Info().Msg("Graceful shutdown completed")
	return err
}

func (s *Server) isShuttingDown() bool {
	return atomic.LoadInt32(&s.shuttingDown) == 1
}

// writeJSON writes a JSON document with the given status.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError writes the error taxonomy body: a short machine-readable
// reason token, nothing else.
func writeError(w http.ResponseWriter, status int, reason string) {
	writeJSON(w, status, map[string]string{"error": reason})
}

// getClientIP extracts the client IP, honoring X-Forwarded-For from load
// balancers before falling back to RemoteAddr.
func getClientIP(r *http.Request) string {
	forwarded := r.Header.Get("X-Forwarded-For")
	if forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
