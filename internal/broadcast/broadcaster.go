// Package broadcast owns server-to-client fan-out: the full presence
// snapshot pushed to everyone on every registry/status mutation, and
// room-scoped event delivery.
package broadcast

import (
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/playsquad/realtime/pkg/state"
)

// EventPresenceSync carries the full snapshot; there are no delta
// broadcasts, so clients never need sequence numbers or reconciliation.
const EventPresenceSync = "presence:sync"

// EventPresenceConfig is sent once per connection at session start and
// carries the idle/typing coordination timeouts the client should use.
const EventPresenceConfig = "presence:config"

// Message is the outbound wire envelope.
type Message struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type presenceEntry struct {
	Status string `json:"status"`
}

type Broadcaster struct {
	registry state.Registry
	logger   *slog.Logger
}

func New(logger *slog.Logger, registry state.Registry) *Broadcaster {
	return &Broadcaster{
		registry: registry,
		logger:   logger.With(slog.String("component", "broadcaster")),
	}
}

// SyncPresence builds a point-in-time snapshot over every connected user
// and delivers it to every open connection as a single event. The registry
// invokes this on every mutation, so staleness is bounded by one handler
// turn.
func (b *Broadcaster) SyncPresence() {
	snapshot := b.registry.Snapshot()
	payload := make(map[string]presenceEntry, len(snapshot))
	for userID, status := range snapshot {
		payload[userID] = presenceEntry{Status: string(status)}
	}

	msg, err := encode(EventPresenceSync, payload)
	if err != nil {
		b.logger.Error("Failed to encode presence snapshot", slog.Any("error", err))
		return
	}
	for _, conn := range b.registry.AllConnections() {
		conn.Transport.Send(msg)
	}
	b.logger.Debug("Presence snapshot broadcast", slog.Int("users", len(payload)))
}

// Emit delivers an event to every current member of a room. Absent members
// get nothing: no buffering, no retries, at-most-once.
func (b *Broadcaster) Emit(roomID, event string, payload any) {
	b.EmitExcept(roomID, event, payload, uuid.Nil)
}

// EmitExcept is Emit minus one connection, used for typing indicators
// where the sender must not receive its own echo.
func (b *Broadcaster) EmitExcept(roomID, event string, payload any, exclude uuid.UUID) {
	members := b.registry.RoomMembers(roomID)
	if len(members) == 0 {
		return
	}
	msg, err := encode(event, payload)
	if err != nil {
		b.logger.Error("Failed to encode room event",
			slog.String("roomID", roomID),
			slog.String("event", event),
			slog.Any("error", err),
		)
		return
	}
	for _, conn := range members {
		if conn.ID == exclude {
			continue
		}
		conn.Transport.Send(msg)
	}
	b.logger.Debug("Room event emitted",
		slog.String("roomID", roomID),
		slog.String("event", event),
		slog.Int("members", len(members)),
	)
}

func encode(event string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Message{Event: event, Payload: raw})
}
