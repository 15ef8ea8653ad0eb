package router

import (
	"log/slog"
	"time"

	"github.com/playsquad/realtime/pkg/presence"
	"github.com/playsquad/realtime/pkg/state"
	"github.com/tidwall/gjson"
)

func (r *EventRouter) handleStatusSet(conn *state.Connection, payload []byte) {
	raw := gjson.GetBytes(payload, "status")
	if !raw.Exists() {
		r.logger.Warn("status:set without a status field", slog.String("userID", conn.UserID))
		return
	}
	token, err := presence.ParseToken(raw.String())
	if err != nil {
		r.logger.Warn("status:set with invalid token",
			slog.String("userID", conn.UserID),
			slog.Any("error", err),
		)
		return
	}

	var duration time.Duration
	if minutes := gjson.GetBytes(payload, "durationMinutes"); minutes.Exists() && minutes.Int() > 0 {
		duration = time.Duration(minutes.Int()) * time.Minute
	}

	if err := r.registry.SetStatus(conn.UserID, token, duration); err != nil {
		r.logger.Error("Failed to set status", slog.String("userID", conn.UserID), slog.Any("error", err))
	}
}

func (r *EventRouter) handleRoomChange(conn *state.Connection, payload []byte, idField string, roomFor func(string) string, join bool) {
	id := gjson.GetBytes(payload, idField).String()
	if id == "" {
		r.logger.Warn("Room change without an id", slog.String("field", idField), slog.String("userID", conn.UserID))
		return
	}
	if join {
		r.registry.Join(conn.ID, roomFor(id))
	} else {
		r.registry.Leave(conn.ID, roomFor(id))
	}
}

type typingPayload struct {
	UserID         string `json:"userId"`
	ConversationID string `json:"conversationId"`
}

// handleTyping is pure, stateless fan-out to the conversation room,
// excluding the sender. The server keeps no record of who is typing;
// receivers clear stale indicators with their own timeout.
func (r *EventRouter) handleTyping(conn *state.Connection, event string, payload []byte) {
	conversationID := gjson.GetBytes(payload, "conversationId").String()
	if conversationID == "" {
		r.logger.Warn("Typing event without a conversationId", slog.String("userID", conn.UserID))
		return
	}
	r.broadcaster.EmitExcept(
		state.ConversationRoom(conversationID),
		event,
		typingPayload{UserID: conn.UserID, ConversationID: conversationID},
		conn.ID,
	)
}
