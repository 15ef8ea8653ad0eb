// Package heartbeat refreshes persisted liveness independently of the
// broadcast path: a write failure never touches in-memory presence or any
// open connection.
package heartbeat

import (
	"context"
	"log/slog"
	"time"

	"github.com/playsquad/realtime/internal/store"
)

// ConnectedUsers is the registry view the runner needs.
type ConnectedUsers interface {
	ConnectedUserIDs() []string
}

type Runner struct {
	registry ConnectedUsers
	store    store.PresenceStore
	interval time.Duration
	logger   *slog.Logger
}

func NewRunner(logger *slog.Logger, registry ConnectedUsers, st store.PresenceStore, interval time.Duration) *Runner {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Runner{
		registry: registry,
		store:    st,
		interval: interval,
		logger:   logger.With(slog.String("component", "heartbeat")),
	}
}

// Run ticks until the context is cancelled. Each tick refreshes last_seen
// and is_online for every currently connected user. Failures are logged
// and swallowed; the next tick retries naturally.
func (r *Runner) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("Heartbeat started", slog.Duration("interval", r.interval))
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Heartbeat stopped")
			return
		case now := <-ticker.C:
			r.tick(ctx, now)
		}
	}
}

func (r *Runner) tick(ctx context.Context, now time.Time) {
	users := r.registry.ConnectedUserIDs()
	for _, userID := range users {
		writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := r.store.TouchLastSeen(writeCtx, userID, now); err != nil {
			r.logger.Warn("Heartbeat persistence failed",
				slog.String("userID", userID),
				slog.Any("error", err),
			)
		}
		cancel()
	}
	if len(users) > 0 {
		r.logger.Debug("Heartbeat tick", slog.Int("users", len(users)))
	}
}
