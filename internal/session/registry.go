package session

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aishgopalia-innov/sse-poc/internal/auth"
)

// Registry is the process-wide connection state: a primary index keyed by
// connection id and a reverse index from channel name to the subscriber
// set. The registry is the only component that mutates either index, and
// it does so under a single mutex.
//
// The reverse index stores immutable slices: every mutation builds a fresh
// slice, so Subscribers can hand its result to a fan-out loop that iterates
// outside the lock while registrations come and go.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*Connection
	index map[string][]*Connection

	queueSize int
	logger    zerolog.Logger
	stats     *Stats
}

// NewRegistry creates an empty registry. queueSize is the per-connection
// send queue capacity Q.
func NewRegistry(queueSize int, logger zerolog.Logger) *Registry {
	return &Registry{
		conns:     make(map[string]*Connection),
		index:     make(map[string][]*Connection),
		queueSize: queueSize,
		logger:    logger.With().Str("component", "registry").Logger(),
		stats:     &Stats{StartTime: time.Now()},
	}
}

// Register inserts a new open connection subscribed to the given channels
// and indexes it under each of them. Connection ids are uuids and are
// never reused.
//
// The connection-established record is queued before the connection enters
// the reverse index, so no fan-out envelope can precede it and the fresh
// queue guarantees the offer succeeds.
func (r *Registry) Register(principal auth.Principal, channels []string) *Connection {
	conn := newConnection(uuid.NewString(), principal, channels, r.queueSize)

	if res := conn.TryEnqueue(NewHandshakeEnvelope(channels, principal.UserID, conn.ID)); res != Delivered {
		r.logger.Error().
			Str("connection_id", conn.ID).
			Str("result", res.String()).
			Msg("Handshake enqueue failed on fresh connection")
	}

	r.mu.Lock()
	r.conns[conn.ID] = conn
	for _, ch := range channels {
		existing := r.index[ch]
		next := make([]*Connection, len(existing)+1)
		copy(next, existing)
		next[len(existing)] = conn
		r.index[ch] = next
	}
	r.mu.Unlock()

	r.stats.recordConnection()

	r.logger.Debug().
		Str("connection_id", conn.ID).
		Str("user_id", principal.UserID).
		Strs("channels", channels).
		Msg("Connection registered")

	return conn
}

// Unregister transitions the connection out of the open state, removes it
// from both indexes, and retires its id. Idempotent: the writer and the
// disconnect path may both request it.
func (r *Registry) Unregister(connectionID string) {
	r.mu.Lock()
	conn, ok := r.conns[connectionID]
	if !ok {
		r.mu.Unlock()
		return
	}

	// Index removal is the first step of draining: once the lock drops,
	// no fan-out snapshot taken afterwards can include this connection.
	conn.beginDraining()
	delete(r.conns, connectionID)
	for _, ch := range conn.Channels {
		existing := r.index[ch]
		next := make([]*Connection, 0, len(existing))
		for _, c := range existing {
			if c.ID != connectionID {
				next = append(next, c)
			}
		}
		if len(next) == 0 {
			delete(r.index, ch)
		} else {
			r.index[ch] = next
		}
	}
	r.mu.Unlock()

	conn.markClosed()

	r.logger.Debug().
		Str("connection_id", connectionID).
		Int64("messages_sent", conn.MessagesSent()).
		Dur("connected_for", time.Since(conn.ConnectedAt)).
		Msg("Connection unregistered")
}

// Subscribers returns the subscriber snapshot for a channel. The returned
// slice is immutable; it stays stable for the duration of a fan-out even
// as other connections register or unregister.
func (r *Registry) Subscribers(channel string) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.index[channel]
}

// Counts returns the current connection and channel counts.
func (r *Registry) Counts() (connections, channels int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns), len(r.index)
}

// Stats exposes the global counters.
func (r *Registry) Stats() *Stats {
	return r.stats
}

// SubscriberStats describes one live connection in the admin document.
type SubscriberStats struct {
	ConnectionID string `json:"connectionId"`
	UserID       string `json:"userId"`
	ConnectedAt  int64  `json:"connectedAt"`
	LogsSent     int64  `json:"logsSent"`
}

// ChannelStats describes one channel's subscriber set.
type ChannelStats struct {
	Channel         string            `json:"channel"`
	SubscriberCount int               `json:"subscriberCount"`
	Subscribers     []SubscriberStats `json:"subscribers"`
}

// ChannelView produces the per-channel admin statistics, sorted by channel
// name for stable output. The read holds the lock only long enough to copy
// the index references.
func (r *Registry) ChannelView() []ChannelStats {
	r.mu.RLock()
	snapshot := make(map[string][]*Connection, len(r.index))
	for ch, conns := range r.index {
		snapshot[ch] = conns
	}
	r.mu.RUnlock()

	view := make([]ChannelStats, 0, len(snapshot))
	for ch, conns := range snapshot {
		cs := ChannelStats{
			Channel:         ch,
			SubscriberCount: len(conns),
			Subscribers:     make([]SubscriberStats, 0, len(conns)),
		}
		for _, c := range conns {
			cs.Subscribers = append(cs.Subscribers, SubscriberStats{
				ConnectionID: c.ID,
				UserID:       c.Principal.UserID,
				ConnectedAt:  c.ConnectedAt.UnixMilli(),
				LogsSent:     c.MessagesSent(),
			})
		}
		view = append(view, cs)
	}
	sort.Slice(view, func(i, j int) bool { return view[i].Channel < view[j].Channel })
	return view
}

// CloseAll unregisters every connection. Used during server shutdown after
// the writers have been signalled; in-flight publishes observe the closed
// state and count drops instead of deliveries.
func (r *Registry) CloseAll() {
	r.mu.RLock()
	ids := make([]string, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	for _, id := range ids {
		r.Unregister(id)
	}
}
