package idle_test

import (
	"sync"
	"testing"
	"time"

	"github.com/playsquad/realtime/pkg/idle"
	"github.com/playsquad/realtime/pkg/presence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu          sync.Mutex
	transitions []idle.Transition
}

func (r *recorder) record(tr idle.Transition) {
	r.mu.Lock()
	r.transitions = append(r.transitions, tr)
	r.mu.Unlock()
}

func (r *recorder) count(tr idle.Transition) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, got := range r.transitions {
		if got == tr {
			n++
		}
	}
	return n
}

const (
	visible = 30 * time.Millisecond
	hidden  = 10 * time.Millisecond
)

func newDetector() (*idle.Detector, *recorder) {
	rec := &recorder{}
	d := idle.NewDetector(visible, hidden, rec.record)
	return d, rec
}

func TestIdleFiresAutoAway(t *testing.T) {
	d, rec := newDetector()
	d.Activity()

	require.Eventually(t, func() bool {
		return d.State() == idle.StateAutoAway
	}, time.Second, time.Millisecond)
	assert.Equal(t, 1, rec.count(idle.TransitionAutoAway))
}

func TestActivityResetsPendingTimer(t *testing.T) {
	d, rec := newDetector()
	d.Activity()

	// keep poking before the threshold; the transition must not fire
	for i := 0; i < 5; i++ {
		time.Sleep(visible / 3)
		d.Activity()
	}
	assert.Equal(t, idle.StateIdlePending, d.State())
	assert.Equal(t, 0, rec.count(idle.TransitionAutoAway))
}

func TestActivityWhileAwayRequestsBack(t *testing.T) {
	d, rec := newDetector()
	d.Activity()

	require.Eventually(t, func() bool {
		return d.State() == idle.StateAutoAway
	}, time.Second, time.Millisecond)

	d.Activity()
	assert.Equal(t, idle.StateIdlePending, d.State())
	assert.Equal(t, 1, rec.count(idle.TransitionBack))

	// the cycle repeats
	require.Eventually(t, func() bool {
		return rec.count(idle.TransitionAutoAway) == 2
	}, time.Second, time.Millisecond)
}

func TestHiddenTabUsesShorterTimeout(t *testing.T) {
	d, rec := newDetector()
	d.Activity()
	d.SetHidden(true)

	start := time.Now()
	require.Eventually(t, func() bool {
		return d.State() == idle.StateAutoAway
	}, time.Second, time.Millisecond)
	assert.Less(t, time.Since(start), visible, "hidden timeout should fire before the visible one would")
	assert.Equal(t, 1, rec.count(idle.TransitionAutoAway))
}

func TestManualTokenMakesDetectorInert(t *testing.T) {
	d, rec := newDetector()
	d.Activity()
	d.SetToken(presence.TokenDND)

	time.Sleep(3 * visible)
	assert.Equal(t, idle.StateActive, d.State())
	assert.Equal(t, 0, rec.count(idle.TransitionAutoAway))

	// activity while on a manual token emits nothing either
	d.Activity()
	time.Sleep(2 * visible)
	assert.Equal(t, 0, rec.count(idle.TransitionAutoAway))
	assert.Equal(t, 0, rec.count(idle.TransitionBack))
}

func TestReturningToAutoRearms(t *testing.T) {
	d, rec := newDetector()
	d.SetToken(presence.TokenDND)
	d.SetToken(presence.TokenAuto)

	require.Eventually(t, func() bool {
		return rec.count(idle.TransitionAutoAway) == 1
	}, time.Second, time.Millisecond)
}

func TestStopCancelsPendingTimer(t *testing.T) {
	d, rec := newDetector()
	d.Activity()
	d.Stop()

	time.Sleep(3 * visible)
	assert.Equal(t, idle.StateActive, d.State())
	assert.Equal(t, 0, rec.count(idle.TransitionAutoAway))
}

func TestDefaults(t *testing.T) {
	d := idle.NewDetector(0, 0, func(idle.Transition) {})
	assert.Equal(t, idle.StateActive, d.State())
}
