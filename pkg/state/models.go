package state

import (
	"time"

	"github.com/google/uuid"
)

// Sender is the narrow view of a transport connection the state layer needs.
// *transport.Connection satisfies it; tests substitute fakes.
type Sender interface {
	ID() uuid.UUID
	Send(message []byte)
	Close(err error)
}

// representation of a single transport-layer connection.
type Connection struct {
	ID        uuid.UUID
	UserID    string
	Transport Sender
	CreatedAt time.Time
}

// canonical representation of a connected user, aggregating all their
// open connections (multi-device). A User exists in the registry if and
// only if it has at least one open connection; announced statuses live in
// the separate status store, keyed by user ID, so a preference survives a
// brief disconnect.
type User struct {
	ID          string
	Connections map[uuid.UUID]*Connection
}

// canonical representation of a delivery scope. Membership is per
// connection, not per user: each tab/device joins rooms independently.
type Room struct {
	ID      string
	Members map[uuid.UUID]*Connection
}
