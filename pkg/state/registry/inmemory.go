package registry

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/playsquad/realtime/pkg/presence"
	"github.com/playsquad/realtime/pkg/state"
)

// InMemoryRegistry is the single in-process authority for live presence
// state. One mutex guards all maps so that a connect/disconnect and its
// room-membership fallout are applied as one atomic step; listener
// callbacks always run after the lock is released.
type InMemoryRegistry struct {
	mu        sync.RWMutex
	conns     map[uuid.UUID]*state.Connection
	users     map[string]*state.User
	rooms     map[string]*state.Room
	connRooms map[uuid.UUID]map[string]struct{} // reverse index: connection -> rooms

	statuses  map[string]presence.StatusRecord
	expiry    map[string]*time.Timer
	statusGen map[string]uint64 // invalidates stale expiry callbacks

	onMutation func()
	onStatus   func(userID string, rec presence.StatusRecord)

	logger *slog.Logger
}

func NewInMemoryRegistry(logger *slog.Logger) *InMemoryRegistry {
	return &InMemoryRegistry{
		conns:     make(map[uuid.UUID]*state.Connection),
		users:     make(map[string]*state.User),
		rooms:     make(map[string]*state.Room),
		connRooms: make(map[uuid.UUID]map[string]struct{}),
		statuses:  make(map[string]presence.StatusRecord),
		expiry:    make(map[string]*time.Timer),
		statusGen: make(map[string]uint64),
		logger:    logger.With(slog.String("component", "presence_registry")),
	}
}

// compile-time check to ensure InMemoryRegistry implements Registry.
var _ state.Registry = (*InMemoryRegistry)(nil)

func (r *InMemoryRegistry) SetMutationListener(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onMutation = fn
}

func (r *InMemoryRegistry) SetStatusListener(fn func(userID string, rec presence.StatusRecord)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onStatus = fn
}

func (r *InMemoryRegistry) notifyMutation() {
	r.mu.RLock()
	fn := r.onMutation
	r.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

func (r *InMemoryRegistry) notifyStatus(userID string, rec presence.StatusRecord) {
	r.mu.RLock()
	fn := r.onStatus
	r.mu.RUnlock()
	if fn != nil {
		fn(userID, rec)
	}
}

// --- Connection lifecycle ---

func (r *InMemoryRegistry) Register(conn state.Sender, userID string) (*state.Connection, error) {
	if userID == "" {
		return nil, errors.New("connection has no user identifier")
	}

	r.mu.Lock()
	connID := conn.ID()
	if _, exists := r.conns[connID]; exists {
		r.mu.Unlock()
		return nil, errors.New("connection is already registered")
	}
	newConn := &state.Connection{
		ID:        connID,
		UserID:    userID,
		Transport: conn,
		CreatedAt: time.Now(),
	}
	r.conns[connID] = newConn

	user, exists := r.users[userID]
	if !exists {
		user = &state.User{
			ID:          userID,
			Connections: make(map[uuid.UUID]*state.Connection),
		}
		r.users[userID] = user
	}
	user.Connections[connID] = newConn

	// Every connection is addressable through its own user room.
	r.joinLocked(newConn, state.UserRoom(userID))
	r.mu.Unlock()

	r.logger.Debug("Connection registered", slog.String("connID", connID.String()), slog.String("userID", userID))
	r.notifyMutation()
	return newConn, nil
}

func (r *InMemoryRegistry) Unregister(connID uuid.UUID) {
	r.mu.Lock()
	conn, ok := r.conns[connID]
	if !ok {
		// already removed
		r.mu.Unlock()
		return
	}
	delete(r.conns, connID)

	// Pull the connection out of every room it joined, in the same
	// critical section, so a reconnect burst can never observe ghost
	// membership.
	for roomID := range r.connRooms[connID] {
		r.leaveRoomLocked(connID, roomID)
	}
	delete(r.connRooms, connID)

	if user, ok := r.users[conn.UserID]; ok {
		delete(user.Connections, connID)
		if len(user.Connections) == 0 {
			delete(r.users, conn.UserID)
			r.logger.Debug("Removed user entry, last connection closed", slog.String("userID", conn.UserID))
		}
	}
	r.mu.Unlock()

	r.logger.Debug("Connection deregistered", slog.String("connID", connID.String()), slog.String("userID", conn.UserID))
	r.notifyMutation()
}

func (r *InMemoryRegistry) Connection(connID uuid.UUID) (*state.Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[connID]
	return conn, ok
}

func (r *InMemoryRegistry) OldestConnection(userID string) (*state.Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[userID]
	if !ok {
		return nil, false
	}

	var oldest *state.Connection
	for _, conn := range user.Connections {
		if oldest == nil || conn.CreatedAt.Before(oldest.CreatedAt) {
			oldest = conn
		}
	}
	if oldest == nil {
		return nil, false
	}
	return oldest, true
}

func (r *InMemoryRegistry) HasAny(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.users[userID]
	return ok
}

func (r *InMemoryRegistry) ConnectionCount(userID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[userID]
	if !ok {
		return 0
	}
	return len(user.Connections)
}

func (r *InMemoryRegistry) ConnectedUserIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.users))
	for id := range r.users {
		ids = append(ids, id)
	}
	return ids
}

func (r *InMemoryRegistry) AllConnections() []*state.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conns := make([]*state.Connection, 0, len(r.conns))
	for _, c := range r.conns {
		conns = append(conns, c)
	}
	return conns
}

// --- Status store ---

func (r *InMemoryRegistry) SetStatus(userID string, token presence.StatusToken, duration time.Duration) error {
	if userID == "" {
		return errors.New("status change without user identifier")
	}
	if token == "" {
		return errors.New("empty status token")
	}

	r.mu.Lock()
	r.cancelExpiryLocked(userID)
	rec := presence.StatusRecord{Token: token}
	if duration > 0 {
		rec.ExpiresAt = time.Now().Add(duration)
		gen := r.statusGen[userID]
		r.expiry[userID] = time.AfterFunc(duration, func() {
			r.expireStatus(userID, gen)
		})
	}
	r.statuses[userID] = rec
	r.mu.Unlock()

	r.logger.Debug("Status updated",
		slog.String("userID", userID),
		slog.String("token", string(token)),
		slog.Duration("duration", duration),
	)
	r.notifyMutation()
	r.notifyStatus(userID, rec)
	return nil
}

// cancelExpiryLocked stops any pending reversion and bumps the generation
// so an already-fired callback racing for the lock becomes a no-op.
func (r *InMemoryRegistry) cancelExpiryLocked(userID string) {
	if t, ok := r.expiry[userID]; ok {
		t.Stop()
		delete(r.expiry, userID)
	}
	r.statusGen[userID]++
}

func (r *InMemoryRegistry) expireStatus(userID string, gen uint64) {
	r.mu.Lock()
	if r.statusGen[userID] != gen {
		// a newer status superseded this timer
		r.mu.Unlock()
		return
	}
	delete(r.expiry, userID)
	r.statusGen[userID]++
	rec := presence.StatusRecord{Token: presence.TokenAuto}
	r.statuses[userID] = rec
	r.mu.Unlock()

	r.logger.Debug("Timed status expired, reverting to auto", slog.String("userID", userID))
	r.notifyMutation()
	r.notifyStatus(userID, rec)
}

func (r *InMemoryRegistry) SetAutoAway(userID string) {
	r.mu.Lock()
	rec := r.statuses[userID]
	if rec.EffectiveToken(time.Now()) != presence.TokenAuto {
		// manual statuses are never overridden by idle detection
		r.mu.Unlock()
		return
	}
	// a scheduled reversion for the record being replaced must not fire
	// later and overwrite auto_away with auto
	r.cancelExpiryLocked(userID)
	rec = presence.StatusRecord{Token: presence.TokenAutoAway}
	r.statuses[userID] = rec
	r.mu.Unlock()

	r.logger.Debug("User idled into auto_away", slog.String("userID", userID))
	r.notifyMutation()
	r.notifyStatus(userID, rec)
}

func (r *InMemoryRegistry) ClearAutoAway(userID string) {
	r.mu.Lock()
	rec := r.statuses[userID]
	if rec.Token != presence.TokenAutoAway {
		r.mu.Unlock()
		return
	}
	rec = presence.StatusRecord{Token: presence.TokenAuto}
	r.statuses[userID] = rec
	r.mu.Unlock()

	r.logger.Debug("User back from auto_away", slog.String("userID", userID))
	r.notifyMutation()
	r.notifyStatus(userID, rec)
}

func (r *InMemoryRegistry) SeedStatus(userID string, rec presence.StatusRecord) {
	if rec.Token == "" || rec.Expired(time.Now()) {
		return
	}

	r.mu.Lock()
	if _, exists := r.statuses[userID]; exists {
		// another tab already announced a live status; it wins
		r.mu.Unlock()
		return
	}
	r.cancelExpiryLocked(userID)
	if !rec.ExpiresAt.IsZero() {
		gen := r.statusGen[userID]
		r.expiry[userID] = time.AfterFunc(time.Until(rec.ExpiresAt), func() {
			r.expireStatus(userID, gen)
		})
	}
	r.statuses[userID] = rec
	r.mu.Unlock()

	r.logger.Debug("Seeded persisted status", slog.String("userID", userID), slog.String("token", string(rec.Token)))
	r.notifyMutation()
}

func (r *InMemoryRegistry) StatusOf(userID string) presence.StatusRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.statuses[userID]
}

// --- Room membership ---

func (r *InMemoryRegistry) Join(connID uuid.UUID, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[connID]
	if !ok {
		r.logger.Warn("Join for unknown connection", slog.String("connID", connID.String()), slog.String("roomID", roomID))
		return
	}
	r.joinLocked(conn, roomID)
}

func (r *InMemoryRegistry) joinLocked(conn *state.Connection, roomID string) {
	room, exists := r.rooms[roomID]
	if !exists {
		room = &state.Room{
			ID:      roomID,
			Members: make(map[uuid.UUID]*state.Connection),
		}
		r.rooms[roomID] = room
	}
	if _, member := room.Members[conn.ID]; member {
		return // joining twice is a no-op
	}
	room.Members[conn.ID] = conn

	if r.connRooms[conn.ID] == nil {
		r.connRooms[conn.ID] = make(map[string]struct{})
	}
	r.connRooms[conn.ID][roomID] = struct{}{}
	r.logger.Debug("Connection joined room", slog.String("connID", conn.ID.String()), slog.String("roomID", roomID))
}

func (r *InMemoryRegistry) Leave(connID uuid.UUID, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveRoomLocked(connID, roomID)
	if set, ok := r.connRooms[connID]; ok {
		delete(set, roomID)
	}
}

func (r *InMemoryRegistry) leaveRoomLocked(connID uuid.UUID, roomID string) {
	room, ok := r.rooms[roomID]
	if !ok {
		return // leaving a room never joined is a no-op
	}
	delete(room.Members, connID)

	// memory hygiene: drop empty rooms
	if len(room.Members) == 0 {
		delete(r.rooms, roomID)
		r.logger.Debug("Removed empty room", slog.String("roomID", roomID))
	}
}

func (r *InMemoryRegistry) RoomMembers(roomID string) []*state.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return nil
	}
	members := make([]*state.Connection, 0, len(room.Members))
	for _, c := range room.Members {
		members = append(members, c)
	}
	return members
}

// --- Presence projection ---

func (r *InMemoryRegistry) Resolve(userID string) presence.DisplayStatus {
	r.mu.RLock()
	_, connected := r.users[userID]
	rec := r.statuses[userID]
	r.mu.RUnlock()
	return presence.Resolve(connected, rec, time.Now())
}

func (r *InMemoryRegistry) Snapshot() map[string]presence.DisplayStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := time.Now()
	snapshot := make(map[string]presence.DisplayStatus, len(r.users))
	for userID := range r.users {
		snapshot[userID] = presence.Resolve(true, r.statuses[userID], now)
	}
	return snapshot
}
