package presence_test

import (
	"testing"
	"time"

	"github.com/playsquad/realtime/pkg/presence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseToken(t *testing.T) {
	for _, valid := range []string{"auto", "online", "away", "dnd", "offline"} {
		token, err := presence.ParseToken(valid)
		require.NoError(t, err)
		assert.Equal(t, presence.StatusToken(valid), token)
	}

	// auto_away is negotiated through the idle detector, never set directly
	_, err := presence.ParseToken("auto_away")
	assert.Error(t, err)
	_, err = presence.ParseToken("invisible")
	assert.Error(t, err)
	_, err = presence.ParseToken("")
	assert.Error(t, err)
}

func TestResolve(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name      string
		connected bool
		rec       presence.StatusRecord
		want      presence.DisplayStatus
	}{
		{"disconnected ignores preference", false, presence.StatusRecord{Token: presence.TokenOnline}, presence.StatusOffline},
		{"disconnected with dnd", false, presence.StatusRecord{Token: presence.TokenDND}, presence.StatusOffline},
		{"connected no record", true, presence.StatusRecord{}, presence.StatusOnline},
		{"connected auto", true, presence.StatusRecord{Token: presence.TokenAuto}, presence.StatusOnline},
		{"connected online", true, presence.StatusRecord{Token: presence.TokenOnline}, presence.StatusOnline},
		{"appear offline wins over connectivity", true, presence.StatusRecord{Token: presence.TokenOffline}, presence.StatusOffline},
		{"dnd", true, presence.StatusRecord{Token: presence.TokenDND}, presence.StatusDND},
		{"away", true, presence.StatusRecord{Token: presence.TokenAway}, presence.StatusAway},
		{"auto_away shows as away", true, presence.StatusRecord{Token: presence.TokenAutoAway}, presence.StatusAway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, presence.Resolve(tt.connected, tt.rec, now))
		})
	}
}

func TestResolveExpiredRecord(t *testing.T) {
	now := time.Now()

	// an expired "appear offline" must never be observable
	rec := presence.StatusRecord{Token: presence.TokenOffline, ExpiresAt: now.Add(-time.Minute)}
	assert.Equal(t, presence.StatusOnline, presence.Resolve(true, rec, now))
	assert.Equal(t, presence.TokenAuto, rec.EffectiveToken(now))

	// not yet expired
	rec.ExpiresAt = now.Add(time.Minute)
	assert.Equal(t, presence.StatusOffline, presence.Resolve(true, rec, now))

	// exactly at the boundary counts as expired
	rec.ExpiresAt = now
	assert.True(t, rec.Expired(now))
}
