package heartbeat_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/playsquad/realtime/internal/heartbeat"
	"github.com/playsquad/realtime/pkg/presence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError + 1})
	return slog.New(handler)
}

type fakeRegistry struct {
	mu    sync.Mutex
	users []string
}

func (f *fakeRegistry) ConnectedUserIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.users...)
}

type recordingStore struct {
	mu      sync.Mutex
	touches map[string]int
	err     error
}

func newRecordingStore() *recordingStore {
	return &recordingStore{touches: make(map[string]int)}
}

func (s *recordingStore) TouchLastSeen(_ context.Context, userID string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touches[userID]++
	return s.err
}

func (s *recordingStore) touchCount(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touches[userID]
}

func (s *recordingStore) MarkOnline(context.Context, string) error             { return nil }
func (s *recordingStore) MarkOffline(context.Context, string, time.Time) error { return nil }

func (s *recordingStore) SaveStatus(context.Context, string, presence.StatusRecord) error {
	return nil
}
func (s *recordingStore) LoadStatus(context.Context, string) (presence.StatusRecord, bool, error) {
	return presence.StatusRecord{}, false, nil
}

func TestHeartbeatTouchesConnectedUsers(t *testing.T) {
	reg := &fakeRegistry{users: []string{"alice", "bob"}}
	st := newRecordingStore()
	runner := heartbeat.NewRunner(newTestLogger(), reg, st, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go runner.Run(ctx)

	require.Eventually(t, func() bool {
		return st.touchCount("alice") >= 2 && st.touchCount("bob") >= 2
	}, time.Second, 5*time.Millisecond)
}

func TestHeartbeatSwallowsPersistenceFailures(t *testing.T) {
	reg := &fakeRegistry{users: []string{"alice"}}
	st := newRecordingStore()
	st.err = errors.New("store is down")
	runner := heartbeat.NewRunner(newTestLogger(), reg, st, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go runner.Run(ctx)

	// the runner keeps ticking: failing writes are retried naturally
	require.Eventually(t, func() bool {
		return st.touchCount("alice") >= 3
	}, time.Second, 5*time.Millisecond)
}

func TestHeartbeatStopsOnCancel(t *testing.T) {
	reg := &fakeRegistry{users: []string{"alice"}}
	st := newRecordingStore()
	runner := heartbeat.NewRunner(newTestLogger(), reg, st, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		runner.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return st.touchCount("alice") >= 1 }, time.Second, time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("heartbeat did not stop on context cancellation")
	}

	count := st.touchCount("alice")
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, count, st.touchCount("alice"), "no ticks after cancellation")
}

func TestDefaultInterval(t *testing.T) {
	runner := heartbeat.NewRunner(newTestLogger(), &fakeRegistry{}, newRecordingStore(), 0)
	assert.NotNil(t, runner)
}
