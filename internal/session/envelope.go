package session

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Envelope is the immutable unit fanned out to subscribers. One envelope
// may sit in many send queues at once; the SSE frame bytes are rendered
// exactly once, at mint time, and shared across every subscriber.
type Envelope struct {
	Channel     string
	ID          string
	Payload     json.RawMessage
	PublishedAt int64 // Unix milliseconds

	frame []byte
}

// NewEnvelope mints a data envelope for a publish. The payload is carried
// verbatim; the broker does not reshape it.
//
// Wire frame:
//
//	id: <envelope-id>
//	data: {"channel":"<name>","data":<payload>,"timestamp":<ms>,"id":"<id>"}
//
// followed by the blank-line record terminator.
//
// The frame is built by hand rather than with json.Marshal: the payload is
// already JSON, and the fan-out path renders each frame once per publish,
// not once per subscriber.
func NewEnvelope(channel string, payload json.RawMessage) *Envelope {
	e := &Envelope{
		Channel:     channel,
		ID:          uuid.NewString(),
		Payload:     payload,
		PublishedAt: time.Now().UnixMilli(),
	}

	// Channel components are opaque bytes. A quote or newline inside one
	// must not break the JSON document or split the record, so the channel
	// string is JSON-encoded rather than spliced raw.
	channelJSON, _ := json.Marshal(channel)

	buf := make([]byte, 0, 128+len(channelJSON)+len(payload))
	buf = append(buf, "id: "...)
	buf = append(buf, e.ID...)
	buf = append(buf, "\ndata: {\"channel\":"...)
	buf = append(buf, channelJSON...)
	buf = append(buf, ",\"data\":"...)
	buf = append(buf, payload...)
	buf = append(buf, ",\"timestamp\":"...)
	buf = strconv.AppendInt(buf, e.PublishedAt, 10)
	buf = append(buf, ",\"id\":\""...)
	buf = append(buf, e.ID...)
	buf = append(buf, "\"}\n\n"...)
	e.frame = buf

	return e
}

// handshakePayload is the synthetic first record announcing the effective
// subscription to the client.
type handshakePayload struct {
	Type         string   `json:"type"`
	Status       string   `json:"status"`
	Channels     []string `json:"channels"`
	UserID       string   `json:"userId"`
	ConnectionID string   `json:"connectionId"`
	Timestamp    int64    `json:"timestamp"`
}

// NewHandshakeEnvelope builds the connection-established record enqueued
// immediately after registration, bypassing the publish flow. It carries a
// bare data: line (no id:), matching what existing stream clients parse.
func NewHandshakeEnvelope(channels []string, userID, connectionID string) *Envelope {
	if channels == nil {
		channels = []string{}
	}
	payload, _ := json.Marshal(handshakePayload{
		Type:         "connection",
		Status:       "connected",
		Channels:     channels,
		UserID:       userID,
		ConnectionID: connectionID,
		Timestamp:    time.Now().UnixMilli(),
	})

	buf := make([]byte, 0, len(payload)+16)
	buf = append(buf, "data: "...)
	buf = append(buf, payload...)
	buf = append(buf, "\n\n"...)

	return &Envelope{
		ID:          connectionID,
		Payload:     payload,
		PublishedAt: time.Now().UnixMilli(),
		frame:       buf,
	}
}

// Frame returns the pre-rendered SSE record bytes, terminator included.
// The returned slice is shared; callers must not modify it.
func (e *Envelope) Frame() []byte {
	return e.frame
}

// HeartbeatFrame is the SSE comment record written on writer idle. Clients
// ignore comment lines; intermediaries see traffic and keep the connection.
var HeartbeatFrame = []byte(":ping\n\n")
