package transport

import (
	"net/http"
	"time"

	"github.com/aishgopalia-innov/sse-poc/internal/platform"
	"github.com/aishgopalia-innov/sse-poc/internal/session"
)

// handleRoot serves the welcome document. The catch-all pattern also makes
// this the 404 path for every route the mux does not know.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Log streaming gateway is running",
		"endpoints": map[string]string{
			"health":       "/health",
			"logs_stream":  "/api/logs/stream",
			"logs_publish": "/api/logs/publish",
			"admin_stats":  "/admin/logs/stats",
			"test_logs":    "/test/logs",
			"metrics":      "/metrics",
		},
	})
}

type healthResponse struct {
	Status      string                  `json:"status"`
	Connections int                     `json:"connections"`
	Channels    int                     `json:"channels"`
	UptimeMs    int64                   `json:"uptime"`
	Stats       session.StatsSnapshot   `json:"stats"`
	System      platform.ResourceSample `json:"system"`
	Timestamp   int64                   `json:"timestamp"`
}

// handleHealth is the liveness document: cheap counter reads plus the
// monitor's cached resource sample. It never touches a connection.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "bad_request")
		return
	}

	connections, channels := s.registry.Counts()
	resp := healthResponse{
		Status:      "healthy",
		Connections: connections,
		Channels:    channels,
		UptimeMs:    s.registry.Stats().Uptime(),
		Stats:       s.registry.Stats().Snapshot(),
		Timestamp:   time.Now().UnixMilli(),
	}
	if s.monitor != nil {
		resp.System = s.monitor.Last()
	}
	writeJSON(w, http.StatusOK, resp)
}

type statsResponse struct {
	Connections int                    `json:"connections"`
	Channels    []session.ChannelStats `json:"channels"`
	Stats       session.StatsSnapshot  `json:"stats"`
	UptimeMs    int64                  `json:"uptime"`
	Timestamp   int64                  `json:"timestamp"`
}

// handleStats is the admin introspection document: per-channel subscriber
// detail plus the global counters.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "bad_request")
		return
	}

	connections, _ := s.registry.Counts()
	writeJSON(w, http.StatusOK, statsResponse{
		Connections: connections,
		Channels:    s.registry.ChannelView(),
		Stats:       s.registry.Stats().Snapshot(),
		UptimeMs:    s.registry.Stats().Uptime(),
		Timestamp:   time.Now().UnixMilli(),
	})
}
