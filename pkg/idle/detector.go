// Package idle implements the client-side auto-away state machine. It runs
// inside each client (tab/device), not on the server: it watches local input
// activity and tab visibility, and asks the server for `status:auto-away` /
// `status:back` transitions through a callback. The server remains free to
// refuse them (it does, whenever the user's token is not `auto`).
package idle

import (
	"sync"
	"time"

	"github.com/playsquad/realtime/pkg/presence"
)

type State int

const (
	// StateActive: the detector is inert; either it was stopped or the
	// user's preference token makes idling irrelevant.
	StateActive State = iota
	// StateIdlePending: the user is active and a single inactivity timer is
	// armed.
	StateIdlePending
	// StateAutoAway: the timer fired; an auto-away request was emitted.
	StateAutoAway
)

type Transition int

const (
	TransitionAutoAway Transition = iota
	TransitionBack
)

const (
	DefaultVisibleTimeout = 5 * time.Minute
	DefaultHiddenTimeout  = 1 * time.Minute
)

// Detector is an explicit state machine with one cancellable scheduled
// task. Resetting activity cancels and reschedules; timers never stack.
type Detector struct {
	mu      sync.Mutex
	state   State
	token   presence.StatusToken
	hidden  bool
	timer   *time.Timer
	visible time.Duration
	hiddenD time.Duration
	request func(Transition)
}

// NewDetector builds a detector emitting transition requests through
// `request`. Zero timeouts fall back to the defaults.
func NewDetector(visibleTimeout, hiddenTimeout time.Duration, request func(Transition)) *Detector {
	if visibleTimeout <= 0 {
		visibleTimeout = DefaultVisibleTimeout
	}
	if hiddenTimeout <= 0 {
		hiddenTimeout = DefaultHiddenTimeout
	}
	return &Detector{
		state:   StateActive,
		token:   presence.TokenAuto,
		visible: visibleTimeout,
		hiddenD: hiddenTimeout,
		request: request,
	}
}

// Activity records user input (pointer move, key press, touch). While
// auto-away it requests `status:back`; otherwise it resets the single
// pending timer.
func (d *Detector) Activity() {
	d.mu.Lock()
	if d.token != presence.TokenAuto {
		d.mu.Unlock()
		return
	}
	back := d.state == StateAutoAway
	d.armLocked()
	d.mu.Unlock()

	if back {
		d.request(TransitionBack)
	}
}

// SetHidden switches between the visible and hidden inactivity thresholds.
// The pending timer is rescheduled with the new threshold.
func (d *Detector) SetHidden(hidden bool) {
	d.mu.Lock()
	d.hidden = hidden
	if d.token != presence.TokenAuto || d.state == StateAutoAway {
		d.mu.Unlock()
		return
	}
	d.armLocked()
	d.mu.Unlock()
}

// SetToken tells the detector the user's current preference. Any token
// other than `auto` makes the detector inert: manual statuses always take
// precedence and must not be overridden by idle detection.
func (d *Detector) SetToken(token presence.StatusToken) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.token = token
	if token == presence.TokenAuto {
		if d.state == StateActive {
			d.armLocked()
		}
		return
	}
	d.cancelLocked()
	d.state = StateActive
}

// Stop cancels any pending timer; the detector goes inert.
func (d *Detector) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancelLocked()
	d.state = StateActive
}

func (d *Detector) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// armLocked cancels and reschedules as one atomic operation, so exactly
// one timer is ever pending.
func (d *Detector) armLocked() {
	d.cancelLocked()
	timeout := d.visible
	if d.hidden {
		timeout = d.hiddenD
	}
	timer := time.AfterFunc(timeout, func() { d.fire() })
	d.timer = timer
	d.state = StateIdlePending
}

func (d *Detector) cancelLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

func (d *Detector) fire() {
	d.mu.Lock()
	if d.state != StateIdlePending || d.token != presence.TokenAuto {
		// cancelled or superseded while the callback was in flight
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.state = StateAutoAway
	d.mu.Unlock()

	d.request(TransitionAutoAway)
}
