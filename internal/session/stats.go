package session

import (
	"sync/atomic"
	"time"
)

// Stats tracks process-wide broker counters. All fields are updated with
// atomic operations; Snapshot reads never block the publish or write paths.
type Stats struct {
	StartTime time.Time

	totalConnections       int64
	publishesAccepted      int64
	envelopesDelivered     int64
	envelopesDroppedFull   int64
	envelopesDroppedClosed int64
}

// StatsSnapshot is a consistent-enough copy of the counters for the health
// and admin documents.
type StatsSnapshot struct {
	TotalConnections       int64 `json:"totalConnections"`
	PublishesAccepted      int64 `json:"publishesAccepted"`
	EnvelopesDelivered     int64 `json:"envelopesDelivered"`
	EnvelopesDroppedFull   int64 `json:"envelopesDroppedFull"`
	EnvelopesDroppedClosed int64 `json:"envelopesDroppedClosed"`
}

func (s *Stats) recordConnection() {
	atomic.AddInt64(&s.totalConnections, 1)
}

// RecordPublish counts an accepted publish request.
func (s *Stats) RecordPublish() {
	atomic.AddInt64(&s.publishesAccepted, 1)
}

// RecordFanOut accumulates the per-publish enqueue outcomes.
func (s *Stats) RecordFanOut(delivered, droppedFull, droppedClosed int64) {
	atomic.AddInt64(&s.envelopesDelivered, delivered)
	atomic.AddInt64(&s.envelopesDroppedFull, droppedFull)
	atomic.AddInt64(&s.envelopesDroppedClosed, droppedClosed)
}

// Snapshot returns a copy of the counters.
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		TotalConnections:       atomic.LoadInt64(&s.totalConnections),
		PublishesAccepted:      atomic.LoadInt64(&s.publishesAccepted),
		EnvelopesDelivered:     atomic.LoadInt64(&s.envelopesDelivered),
		EnvelopesDroppedFull:   atomic.LoadInt64(&s.envelopesDroppedFull),
		EnvelopesDroppedClosed: atomic.LoadInt64(&s.envelopesDroppedClosed),
	}
}

// Uptime returns process uptime in milliseconds.
func (s *Stats) Uptime() int64 {
	return time.Since(s.StartTime).Milliseconds()
}
