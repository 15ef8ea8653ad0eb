// Package typing is the client-side companion to the server's stateless
// typing fan-out. The server keeps no record of who is typing, so if a
// sender disconnects without `typing:stop`, receivers would show a stale
// indicator forever; this tracker auto-clears each indicator after a short
// timeout.
package typing

import (
	"sync"
	"time"
)

const DefaultClearTimeout = 6 * time.Second

type key struct {
	conversationID string
	userID         string
}

// Tracker records who is typing in which conversation, clearing each entry
// automatically if no fresh `typing:start` arrives within the timeout.
type Tracker struct {
	mu      sync.Mutex
	timers  map[key]*time.Timer
	timeout time.Duration
	onClear func(conversationID, userID string)
}

// NewTracker builds a tracker. onClear is invoked (on a timer goroutine)
// when an indicator expires or is explicitly stopped; it may be nil.
func NewTracker(timeout time.Duration, onClear func(conversationID, userID string)) *Tracker {
	if timeout <= 0 {
		timeout = DefaultClearTimeout
	}
	return &Tracker{
		timers:  make(map[key]*time.Timer),
		timeout: timeout,
		onClear: onClear,
	}
}

// Start marks a user as typing. Repeated starts reset the auto-clear
// timer; they never stack.
func (t *Tracker) Start(conversationID, userID string) {
	k := key{conversationID, userID}
	t.mu.Lock()
	if timer, ok := t.timers[k]; ok {
		timer.Stop()
	}
	t.timers[k] = time.AfterFunc(t.timeout, func() {
		t.expire(k)
	})
	t.mu.Unlock()
}

// Stop clears an indicator immediately. Stopping one that was never
// started is a no-op.
func (t *Tracker) Stop(conversationID, userID string) {
	k := key{conversationID, userID}
	t.mu.Lock()
	timer, ok := t.timers[k]
	if ok {
		timer.Stop()
		delete(t.timers, k)
	}
	t.mu.Unlock()

	if ok && t.onClear != nil {
		t.onClear(k.conversationID, k.userID)
	}
}

// Typing returns the users currently shown as typing in a conversation.
func (t *Tracker) Typing(conversationID string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var users []string
	for k := range t.timers {
		if k.conversationID == conversationID {
			users = append(users, k.userID)
		}
	}
	return users
}

func (t *Tracker) expire(k key) {
	t.mu.Lock()
	_, ok := t.timers[k]
	if ok {
		delete(t.timers, k)
	}
	t.mu.Unlock()

	if ok && t.onClear != nil {
		t.onClear(k.conversationID, k.userID)
	}
}
