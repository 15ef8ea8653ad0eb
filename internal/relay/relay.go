// Package relay is the narrow entry point request-handling code uses to
// push events into the realtime core without touching connection or room
// internals. Handlers receive a Relay by constructor injection; before the
// realtime server is up (or in tests) they get a no-op, so REST requests
// never fail on realtime availability.
package relay

import (
	"encoding/json"

	"github.com/playsquad/realtime/internal/broadcast"
	"github.com/playsquad/realtime/pkg/state"
)

type Relay interface {
	EmitToUser(userID, event string, payload json.RawMessage)
	EmitToConversation(conversationID, event string, payload json.RawMessage)
	EmitToTournament(tournamentID, event string, payload json.RawMessage)
}

// Noop drops every event. Used during startup and in tests.
type Noop struct{}

var _ Relay = Noop{}

func (Noop) EmitToUser(string, string, json.RawMessage)         {}
func (Noop) EmitToConversation(string, string, json.RawMessage) {}
func (Noop) EmitToTournament(string, string, json.RawMessage)   {}

// Live routes events into the broadcaster's rooms.
type Live struct {
	broadcaster *broadcast.Broadcaster
}

var _ Relay = (*Live)(nil)

func NewLive(broadcaster *broadcast.Broadcaster) *Live {
	return &Live{broadcaster: broadcaster}
}

func (l *Live) EmitToUser(userID, event string, payload json.RawMessage) {
	l.broadcaster.Emit(state.UserRoom(userID), event, payload)
}

func (l *Live) EmitToConversation(conversationID, event string, payload json.RawMessage) {
	l.broadcaster.Emit(state.ConversationRoom(conversationID), event, payload)
}

func (l *Live) EmitToTournament(tournamentID, event string, payload json.RawMessage) {
	l.broadcaster.Emit(state.TournamentRoom(tournamentID), event, payload)
}
