package transport

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/aishgopalia-innov/sse-poc/internal/channel"
	"github.com/aishgopalia-innov/sse-poc/internal/session"
)

// ServiceTokenHeader carries the publisher's service credential.
const ServiceTokenHeader = "X-Service-Token"

// publishRequest is the publish endpoint body. LogData is opaque: the
// broker fans it out verbatim and never inspects it.
type publishRequest struct {
	Service     string          `json:"service"`
	WorkspaceID string          `json:"workspace_id"`
	WorkflowID  string          `json:"workflow_id,omitempty"`
	FunctionID  string          `json:"function_id,omitempty"`
	LogData     json.RawMessage `json:"logData"`
}

type publishResponse struct {
	Success   bool   `json:"success"`
	Channel   string `json:"channel"`
	Delivered int    `json:"delivered"`
	Timestamp int64  `json:"timestamp"`
}

// handlePublish is POST /api/logs/publish.
//
// The target channel is derived from the body (function_id over
// workflow_id over workspace-wide), the declared service must match the
// channel's service component, and the service authenticator must accept
// the token. Fan-out never blocks on a subscriber.
func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "bad_request")
		return
	}

	var req publishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request")
		return
	}
	if req.Service == "" || req.WorkspaceID == "" || len(req.LogData) == 0 {
		writeError(w, http.StatusBadRequest, "bad_request")
		return
	}

	name := channel.Derive(req.Service, req.WorkspaceID, req.WorkflowID, req.FunctionID)
	ch, err := channel.Parse(name)
	if err != nil || ch.Workspace != req.WorkspaceID {
		// Component values that smuggle separators would derive a channel
		// that reads back differently; reject rather than misroute.
		writeError(w, http.StatusBadRequest, "bad_request")
		return
	}

	if ch.Service != req.Service {
		s.logger.Warn().
			Str("declared_service", req.Service).
			Str("channel", name).
			Msg("Publish rejected: declared service does not match channel")
		s.metrics.Publishes.Unauthorized.Inc()
		writeError(w, http.StatusForbidden, "unauthorized_service")
		return
	}
	if err := s.serviceAuth.Authorize(r.Header.Get(ServiceTokenHeader), req.Service, name); err != nil {
		s.logger.Warn().
			Err(err).
			Str("service", req.Service).
			Str("channel", name).
			Msg("Publish rejected by service authenticator")
		s.metrics.Publishes.Unauthorized.Inc()
		writeError(w, http.StatusForbidden, "unauthorized_service")
		return
	}

	delivered := s.publish(name, req.LogData)

	writeJSON(w, http.StatusOK, publishResponse{
		Success:   true,
		Channel:   name,
		Delivered: delivered,
		Timestamp: time.Now().UnixMilli(),
	})
}

// publish mints an envelope and fans it out to the channel's current
// subscriber snapshot. Returns the number of successful enqueues.
func (s *Server) publish(name string, payload json.RawMessage) int {
	env := session.NewEnvelope(name, payload)

	var delivered, droppedFull, droppedClosed int64
	for _, conn := range s.registry.Subscribers(name) {
		switch conn.TryEnqueue(env) {
		case session.Delivered:
			delivered++
		case session.DroppedFull:
			droppedFull++
			// Sampled: a persistently slow subscriber would otherwise flood
			// the log at publish rate.
			if n := atomic.AddInt64(&s.dropLogCount, 1); n%100 == 1 {
				s.logger.Warn().
					Str("channel", name).
					Str("connection_id", conn.ID).
					Int64("total_drops", n).
					Msg("Envelope dropped: send queue full (sampled)")
			}
		case session.DroppedClosed:
			droppedClosed++
		}
	}

	stats := s.registry.Stats()
	stats.RecordPublish()
	stats.RecordFanOut(delivered, droppedFull, droppedClosed)

	s.metrics.Publishes.Total.Inc()
	s.metrics.Publishes.Delivered.Add(float64(delivered))
	if droppedFull > 0 {
		s.metrics.Publishes.Dropped.WithLabelValues("full").Add(float64(droppedFull))
	}
	if droppedClosed > 0 {
		s.metrics.Publishes.Dropped.WithLabelValues("closed").Add(float64(droppedClosed))
	}

	s.logger.Debug().
		Str("channel", name).
		Str("envelope_id", env.ID).
		Int64("delivered", delivered).
		Int64("dropped_full", droppedFull).
		Int64("dropped_closed", droppedClosed).
		Msg("Publish fanned out")

	return int(delivered)
}

// handleTestLogs is POST /test/logs: the development helper. It runs the
// real channel derivation and fan-out but needs no service token, and any
// missing body field falls back to a synthesized ETL-style record.
func (s *Server) handleTestLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "bad_request")
		return
	}

	var req publishRequest
	if r.Body != nil {
		// A missing or empty body is fine here; defaults cover everything.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	if req.Service == "" {
		req.Service = "etl"
	}
	if req.WorkspaceID == "" {
		req.WorkspaceID = "test-workspace"
	}
	if len(req.LogData) == 0 {
		req.LogData = synthesizeLogEntry()
	}

	name := channel.Derive(req.Service, req.WorkspaceID, req.WorkflowID, req.FunctionID)
	if _, err := channel.Parse(name); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request")
		return
	}

	delivered := s.publish(name, req.LogData)

	writeJSON(w, http.StatusOK, publishResponse{
		Success:   true,
		Channel:   name,
		Delivered: delivered,
		Timestamp: time.Now().UnixMilli(),
	})
}
