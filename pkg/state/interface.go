package state

import (
	"time"

	"github.com/google/uuid"
	"github.com/playsquad/realtime/pkg/presence"
)

// Registry is the single owner of all live presence state: which
// connections are open for which user, each user's announced status, and
// room membership. It is constructed once at process start and handed to
// every collaborator by reference; nothing mutates presence state except
// through these operations.
type Registry interface {
	// --- Connection lifecycle ---
	// Register adds a connection under a user. An empty userID is a
	// protocol error; the caller must close the connection.
	Register(conn Sender, userID string) (*Connection, error)
	// Unregister removes a connection from the user entry and from every
	// room it joined, synchronously. Removing the user's last connection
	// deletes the user entry entirely. Unknown IDs are no-ops.
	Unregister(connID uuid.UUID)
	Connection(connID uuid.UUID) (*Connection, bool)
	OldestConnection(userID string) (*Connection, bool)
	HasAny(userID string) bool
	ConnectionCount(userID string) int
	ConnectedUserIDs() []string
	AllConnections() []*Connection

	// --- Status store ---
	// SetStatus records an announced token. A positive duration schedules
	// an automatic reversion to `auto` at now+duration, cancelling any
	// previously scheduled reversion for the user.
	SetStatus(userID string, token presence.StatusToken, duration time.Duration) error
	// SetAutoAway flips an `auto` token to `auto_away`. It is a no-op for
	// any other token: manual statuses are never overridden by idling.
	SetAutoAway(userID string)
	// ClearAutoAway flips `auto_away` back to `auto`; otherwise a no-op.
	ClearAutoAway(userID string)
	// SeedStatus installs a persisted record for a user's first connection
	// of a session. It is a no-op if the user already has a live record.
	SeedStatus(userID string, rec presence.StatusRecord)
	StatusOf(userID string) presence.StatusRecord

	// --- Room membership ---
	// Join and Leave are idempotent: joining twice or leaving a room never
	// joined are no-ops.
	Join(connID uuid.UUID, roomID string)
	Leave(connID uuid.UUID, roomID string)
	RoomMembers(roomID string) []*Connection

	// --- Presence projection ---
	Resolve(userID string) presence.DisplayStatus
	// Snapshot maps every currently connected user to their resolved
	// display status. It is a pure projection, never stored.
	Snapshot() map[string]presence.DisplayStatus

	// --- Hooks ---
	// SetMutationListener installs the callback invoked (outside the
	// registry lock) after every mutation that can change an observable
	// presence snapshot. The broadcast engine hangs off this.
	SetMutationListener(fn func())
	// SetStatusListener installs the callback invoked after a user's
	// status record changes, for best-effort persistence mirroring.
	SetStatusListener(fn func(userID string, rec presence.StatusRecord))
}
