package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/playsquad/realtime/pkg/presence"
	"github.com/redis/go-redis/v9"
)

// Redis persists per-user presence fields in a hash:
//
//	<prefix>:user:<id> -> is_online, last_seen, status, status_until
//
// Timestamps are RFC3339. A missing or empty status field means the user
// never announced one.
type Redis struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
}

type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

var _ PresenceStore = (*Redis)(nil)

func NewRedis(logger *slog.Logger, cfg RedisConfig) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "presence"
	}
	return &Redis{
		client: client,
		prefix: prefix,
		logger: logger.With(slog.String("component", "presence_store_redis")),
	}
}

func (s *Redis) key(userID string) string {
	return s.prefix + ":user:" + userID
}

func (s *Redis) MarkOnline(ctx context.Context, userID string) error {
	return s.client.HSet(ctx, s.key(userID),
		"is_online", "1",
		"last_seen", time.Now().UTC().Format(time.RFC3339),
	).Err()
}

func (s *Redis) MarkOffline(ctx context.Context, userID string, lastSeen time.Time) error {
	return s.client.HSet(ctx, s.key(userID),
		"is_online", "0",
		"last_seen", lastSeen.UTC().Format(time.RFC3339),
	).Err()
}

func (s *Redis) TouchLastSeen(ctx context.Context, userID string, t time.Time) error {
	return s.client.HSet(ctx, s.key(userID),
		"is_online", "1",
		"last_seen", t.UTC().Format(time.RFC3339),
	).Err()
}

func (s *Redis) SaveStatus(ctx context.Context, userID string, rec presence.StatusRecord) error {
	until := ""
	if !rec.ExpiresAt.IsZero() {
		until = rec.ExpiresAt.UTC().Format(time.RFC3339)
	}
	return s.client.HSet(ctx, s.key(userID),
		"status", string(rec.Token),
		"status_until", until,
	).Err()
}

func (s *Redis) LoadStatus(ctx context.Context, userID string) (presence.StatusRecord, bool, error) {
	fields, err := s.client.HMGet(ctx, s.key(userID), "status", "status_until").Result()
	if err != nil {
		return presence.StatusRecord{}, false, err
	}

	tokenStr, _ := fields[0].(string)
	if tokenStr == "" {
		return presence.StatusRecord{}, false, nil
	}
	token, err := presence.ParseToken(tokenStr)
	if err != nil {
		// an auto_away or garbage token persisted by an older build; treat
		// as nothing stored
		s.logger.Warn("Ignoring unusable persisted status",
			slog.String("userID", userID),
			slog.String("status", tokenStr),
		)
		return presence.StatusRecord{}, false, nil
	}

	rec := presence.StatusRecord{Token: token}
	if untilStr, _ := fields[1].(string); untilStr != "" {
		until, err := time.Parse(time.RFC3339, untilStr)
		if err == nil {
			rec.ExpiresAt = until
		}
	}
	if rec.Expired(time.Now()) {
		return presence.StatusRecord{}, false, nil
	}
	return rec, true, nil
}

func (s *Redis) Close() error {
	return s.client.Close()
}
