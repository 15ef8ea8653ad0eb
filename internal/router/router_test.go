package router_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/playsquad/realtime/internal/broadcast"
	"github.com/playsquad/realtime/internal/router"
	"github.com/playsquad/realtime/pkg/presence"
	"github.com/playsquad/realtime/pkg/state"
	"github.com/playsquad/realtime/pkg/state/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError + 1})
	return slog.New(handler)
}

type fakeSender struct {
	id     uuid.UUID
	mu     sync.Mutex
	frames [][]byte
}

func newFakeSender() *fakeSender    { return &fakeSender{id: uuid.New()} }
func (f *fakeSender) ID() uuid.UUID { return f.id }
func (f *fakeSender) Close(_ error) {}

func (f *fakeSender) Send(msg []byte) {
	f.mu.Lock()
	f.frames = append(f.frames, msg)
	f.mu.Unlock()
}

func (f *fakeSender) received(t *testing.T, event string) []json.RawMessage {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()

	var payloads []json.RawMessage
	for _, frame := range f.frames {
		var msg broadcast.Message
		require.NoError(t, json.Unmarshal(frame, &msg))
		if msg.Event == event {
			payloads = append(payloads, msg.Payload)
		}
	}
	return payloads
}

type fixture struct {
	registry *registry.InMemoryRegistry
	router   *router.EventRouter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	reg := registry.NewInMemoryRegistry(newTestLogger())
	b := broadcast.New(newTestLogger(), reg)
	reg.SetMutationListener(b.SyncPresence)
	return &fixture{
		registry: reg,
		router:   router.NewEventRouter(newTestLogger(), reg, b),
	}
}

func (f *fixture) connect(t *testing.T, userID string) *fakeSender {
	t.Helper()
	conn := newFakeSender()
	_, err := f.registry.Register(conn, userID)
	require.NoError(t, err)
	return conn
}

func (f *fixture) handle(conn *fakeSender, event string, payload string) {
	raw := `{"event":"` + event + `"}`
	if payload != "" {
		raw = `{"event":"` + event + `","payload":` + payload + `}`
	}
	f.router.HandleMessage(context.Background(), conn.ID(), []byte(raw))
}

func TestStatusSet(t *testing.T) {
	f := newFixture(t)
	conn := f.connect(t, "alice")

	f.handle(conn, router.EventStatusSet, `{"status":"dnd"}`)
	assert.Equal(t, presence.StatusDND, f.registry.Resolve("alice"))
	assert.True(t, f.registry.StatusOf("alice").ExpiresAt.IsZero())
}

func TestStatusSetWithDuration(t *testing.T) {
	f := newFixture(t)
	conn := f.connect(t, "alice")

	f.handle(conn, router.EventStatusSet, `{"status":"offline","durationMinutes":30}`)
	assert.Equal(t, presence.StatusOffline, f.registry.Resolve("alice"))

	rec := f.registry.StatusOf("alice")
	require.False(t, rec.ExpiresAt.IsZero())
	remaining := time.Until(rec.ExpiresAt)
	assert.InDelta(t, (30 * time.Minute).Seconds(), remaining.Seconds(), 5)
}

func TestStatusSetRejectsInvalidToken(t *testing.T) {
	f := newFixture(t)
	conn := f.connect(t, "alice")

	f.handle(conn, router.EventStatusSet, `{"status":"auto_away"}`)
	assert.Equal(t, presence.StatusOnline, f.registry.Resolve("alice"))

	f.handle(conn, router.EventStatusSet, `{"status":"ghost"}`)
	assert.Equal(t, presence.StatusOnline, f.registry.Resolve("alice"))

	f.handle(conn, router.EventStatusSet, `{}`)
	assert.Equal(t, presence.StatusOnline, f.registry.Resolve("alice"))
}

func TestAutoAwayRoundTrip(t *testing.T) {
	f := newFixture(t)
	conn := f.connect(t, "alice")

	f.handle(conn, router.EventStatusAutoAway, "")
	assert.Equal(t, presence.StatusAway, f.registry.Resolve("alice"))

	f.handle(conn, router.EventStatusBack, "")
	assert.Equal(t, presence.StatusOnline, f.registry.Resolve("alice"))
}

func TestAutoAwayDoesNotOverrideManualStatus(t *testing.T) {
	f := newFixture(t)
	conn := f.connect(t, "alice")

	f.handle(conn, router.EventStatusSet, `{"status":"dnd"}`)
	f.handle(conn, router.EventStatusAutoAway, "")
	assert.Equal(t, presence.StatusDND, f.registry.Resolve("alice"))
}

func TestConversationJoinLeave(t *testing.T) {
	f := newFixture(t)
	conn := f.connect(t, "alice")

	f.handle(conn, router.EventJoinConversation, `{"conversationId":"42"}`)
	assert.Len(t, f.registry.RoomMembers(state.ConversationRoom("42")), 1)

	f.handle(conn, router.EventLeaveConversation, `{"conversationId":"42"}`)
	assert.Empty(t, f.registry.RoomMembers(state.ConversationRoom("42")))
}

func TestTournamentJoinLeave(t *testing.T) {
	f := newFixture(t)
	conn := f.connect(t, "alice")

	f.handle(conn, router.EventJoinTournament, `{"tournamentId":"7"}`)
	assert.Len(t, f.registry.RoomMembers(state.TournamentRoom("7")), 1)

	f.handle(conn, router.EventLeaveTournament, `{"tournamentId":"7"}`)
	assert.Empty(t, f.registry.RoomMembers(state.TournamentRoom("7")))
}

func TestTypingFanOutExcludesSender(t *testing.T) {
	f := newFixture(t)
	alice := f.connect(t, "alice")
	bob := f.connect(t, "bob")
	carol := f.connect(t, "carol")

	f.handle(alice, router.EventJoinConversation, `{"conversationId":"42"}`)
	f.handle(bob, router.EventJoinConversation, `{"conversationId":"42"}`)
	// carol never joins

	f.handle(alice, router.EventTypingStart, `{"conversationId":"42"}`)

	payloads := bob.received(t, router.EventTypingStart)
	require.Len(t, payloads, 1)
	var body struct {
		UserID         string `json:"userId"`
		ConversationID string `json:"conversationId"`
	}
	require.NoError(t, json.Unmarshal(payloads[0], &body))
	assert.Equal(t, "alice", body.UserID)
	assert.Equal(t, "42", body.ConversationID)

	assert.Empty(t, alice.received(t, router.EventTypingStart), "sender must not get its own typing event")
	assert.Empty(t, carol.received(t, router.EventTypingStart), "non-members must not get typing events")

	f.handle(alice, router.EventTypingStop, `{"conversationId":"42"}`)
	assert.Len(t, bob.received(t, router.EventTypingStop), 1)
}

func TestMalformedAndUnknownEventsAreDropped(t *testing.T) {
	f := newFixture(t)
	conn := f.connect(t, "alice")

	f.router.HandleMessage(context.Background(), conn.ID(), []byte("not json"))
	f.handle(conn, "shop:buy", `{"item":"skin"}`)
	f.handle(conn, router.EventTypingStart, `{}`)
	f.handle(conn, router.EventJoinConversation, `{}`)

	// nothing blew up, and no room state leaked in
	assert.Equal(t, presence.StatusOnline, f.registry.Resolve("alice"))
}

func TestEventFromUnknownConnectionIsDropped(t *testing.T) {
	f := newFixture(t)
	f.router.HandleMessage(context.Background(), uuid.New(), []byte(`{"event":"status:set","payload":{"status":"dnd"}}`))
}
