package transport

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aishgopalia-innov/sse-poc/internal/channel"
	"github.com/aishgopalia-innov/sse-poc/internal/session"
)

// handleStream is the subscribe endpoint: GET /api/logs/stream?channels=…
//
// The channels parameter may be repeated, comma-separated, or both.
// Malformed names and channels outside the principal's workspaces are
// silently dropped; a connection with zero authorized channels is still
// accepted and receives only the handshake record and heartbeats.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "bad_request")
		return
	}

	clientIP := getClientIP(r)

	if s.isShuttingDown() {
		writeError(w, http.StatusServiceUnavailable, "shutting_down")
		return
	}

	if s.rateLimiter != nil && !s.rateLimiter.Allow(clientIP) {
		s.logger.Warn().
			Str("client_ip", clientIP).
			Msg("Subscribe rejected: connection rate limit exceeded")
		writeError(w, http.StatusTooManyRequests, "rate_limited")
		return
	}

	if current, _ := s.registry.Counts(); current >= s.cfg.MaxConnections {
		s.logger.Warn().
			Str("client_ip", clientIP).
			Int("current_connections", current).
			Int("max_connections", s.cfg.MaxConnections).
			Msg("Subscribe rejected: connection cap reached")
		s.metrics.Connections.Rejected.Inc()
		writeError(w, http.StatusServiceUnavailable, "server_overloaded")
		return
	}

	principal, err := s.resolver.Resolve(r)
	if err != nil {
		s.logger.Debug().
			Err(err).
			Str("client_ip", clientIP).
			Msg("Subscribe rejected: unauthenticated")
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	authorized := s.authorizedChannels(r.URL.Query()["channels"], principal.InWorkspace)

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "internal")
		return
	}

	// SSE handshake headers. X-Accel-Buffering disables proxy buffering
	// that would otherwise hold records back from the client.
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache, no-transform")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// Registration queues the handshake record ahead of any fan-out
	// envelope, so the client always sees it first.
	conn := s.registry.Register(principal, authorized)
	s.metrics.Connections.Total.Inc()
	s.metrics.Connections.Active.Inc()
	defer func() {
		s.registry.Unregister(conn.ID)
		s.metrics.Connections.Active.Dec()
	}()

	s.logger.Info().
		Str("connection_id", conn.ID).
		Str("user_id", principal.UserID).
		Str("client_ip", clientIP).
		Strs("channels", authorized).
		Msg("Subscriber connected")

	s.writePump(r.Context(), conn, w, flusher)

	s.logger.Info().
		Str("connection_id", conn.ID).
		Int64("messages_sent", conn.MessagesSent()).
		Msg("Subscriber disconnected")
}

// authorizedChannels parses, dedupes, and workspace-filters the requested
// channel list. Order of first appearance is preserved; the result is
// never nil.
func (s *Server) authorizedChannels(raw []string, inWorkspace func(string) bool) []string {
	names := make([]string, 0, len(raw))
	for _, param := range raw {
		for _, name := range strings.Split(param, ",") {
			if trimmed := strings.TrimSpace(name); trimmed != "" {
				names = append(names, trimmed)
			}
		}
	}

	authorized := make([]string, 0, len(names))
	for _, name := range channel.Dedupe(names) {
		ch, err := channel.Parse(name)
		if err != nil {
			// Malformed names are dropped, not reported.
			continue
		}
		if !inWorkspace(ch.Workspace) {
			// Partial authorization is silent: the connection proceeds
			// with whatever subset the principal may read.
			continue
		}
		authorized = append(authorized, name)
	}
	return authorized
}

// writePump is the per-connection writer: the sole consumer of the send
// queue. It serializes envelopes onto the response in FIFO order and emits
// a heartbeat comment whenever the stream has been idle for a full
// interval. It exits on client disconnect, server shutdown, or the first
// write error; the caller unregisters the connection afterwards.
func (s *Server) writePump(ctx context.Context, conn *session.Connection, w io.Writer, flusher http.Flusher) {
	ticker := time.NewTicker(s.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Client went away.
			return

		case <-s.baseCtx.Done():
			// Server shutdown: close immediately, drain nothing.
			return

		case env := <-conn.Queue():
			if _, err := w.Write(env.Frame()); err != nil {
				s.metrics.Stream.WriteErrors.Inc()
				s.logger.Debug().
					Err(err).
					Str("connection_id", conn.ID).
					Msg("Stream write failed")
				return
			}
			flusher.Flush()
			conn.RecordSent()
			ticker.Reset(s.cfg.HeartbeatInterval)

		case <-ticker.C:
			if _, err := w.Write(session.HeartbeatFrame); err != nil {
				s.metrics.Stream.WriteErrors.Inc()
				return
			}
			flusher.Flush()
			s.metrics.Stream.Heartbeats.Inc()
		}
	}
}
