// Package store is the best-effort persistence sink for presence fields.
// The in-memory registry is always the source of truth for live presence;
// these records are an eventually-consistent mirror the rest of the
// platform reads for "last seen" displays and offline sessions.
package store

import (
	"context"
	"time"

	"github.com/playsquad/realtime/pkg/presence"
)

type PresenceStore interface {
	MarkOnline(ctx context.Context, userID string) error
	// MarkOffline records the user going dark along with their final
	// last-seen timestamp.
	MarkOffline(ctx context.Context, userID string, lastSeen time.Time) error
	// TouchLastSeen refreshes the liveness timestamp; the heartbeat calls
	// this on every tick for every connected user.
	TouchLastSeen(ctx context.Context, userID string, t time.Time) error
	SaveStatus(ctx context.Context, userID string, rec presence.StatusRecord) error
	// LoadStatus reads the persisted token to seed a session's initial
	// record. The second return is false when nothing usable is stored.
	LoadStatus(ctx context.Context, userID string) (presence.StatusRecord, bool, error)
}

// Noop satisfies PresenceStore without a backing store, for tests and for
// running the core before persistence is configured.
type Noop struct{}

var _ PresenceStore = Noop{}

func (Noop) MarkOnline(context.Context, string) error               { return nil }
func (Noop) MarkOffline(context.Context, string, time.Time) error   { return nil }
func (Noop) TouchLastSeen(context.Context, string, time.Time) error { return nil }

func (Noop) SaveStatus(context.Context, string, presence.StatusRecord) error { return nil }
func (Noop) LoadStatus(context.Context, string) (presence.StatusRecord, bool, error) {
	return presence.StatusRecord{}, false, nil
}
