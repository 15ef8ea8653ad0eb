// Package router dispatches inbound client events to the presence core.
// Malformed or unknown events are logged and dropped; realtime features
// degrade silently rather than surfacing errors to the client.
package router

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/playsquad/realtime/internal/broadcast"
	"github.com/playsquad/realtime/pkg/state"
)

type EventRouter struct {
	logger      *slog.Logger
	registry    state.Registry
	broadcaster *broadcast.Broadcaster
}

func NewEventRouter(logger *slog.Logger, registry state.Registry, broadcaster *broadcast.Broadcaster) *EventRouter {
	return &EventRouter{
		logger:      logger.With(slog.String("component", "event_router")),
		registry:    registry,
		broadcaster: broadcaster,
	}
}

func (r *EventRouter) HandleMessage(ctx context.Context, connID uuid.UUID, msg []byte) {
	var clientMsg ClientMessage
	if err := json.Unmarshal(msg, &clientMsg); err != nil {
		r.logger.Warn("Failed to unmarshal client message", slog.String("connID", connID.String()), slog.Any("error", err))
		return
	}

	conn, ok := r.registry.Connection(connID)
	if !ok {
		// the connection closed between read and dispatch
		r.logger.Debug("Dropping event from unregistered connection", slog.String("connID", connID.String()))
		return
	}

	r.logger.Debug("Handling client event", slog.String("event", clientMsg.Event), slog.String("userID", conn.UserID))
	switch clientMsg.Event {
	case EventStatusSet:
		r.handleStatusSet(conn, clientMsg.Payload)
	case EventStatusAutoAway:
		r.registry.SetAutoAway(conn.UserID)
	case EventStatusBack:
		r.registry.ClearAutoAway(conn.UserID)
	case EventJoinConversation:
		r.handleRoomChange(conn, clientMsg.Payload, "conversationId", state.ConversationRoom, true)
	case EventLeaveConversation:
		r.handleRoomChange(conn, clientMsg.Payload, "conversationId", state.ConversationRoom, false)
	case EventJoinTournament:
		r.handleRoomChange(conn, clientMsg.Payload, "tournamentId", state.TournamentRoom, true)
	case EventLeaveTournament:
		r.handleRoomChange(conn, clientMsg.Payload, "tournamentId", state.TournamentRoom, false)
	case EventTypingStart, EventTypingStop:
		r.handleTyping(conn, clientMsg.Event, clientMsg.Payload)
	default:
		r.logger.Warn("Received unknown event", slog.String("event", clientMsg.Event), slog.String("connID", connID.String()))
	}
}
