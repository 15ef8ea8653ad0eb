// Package presence holds the status domain model: the tokens a user can
// announce, the statuses other users actually see, and the pure resolution
// rule combining the two with connectivity.
package presence

import (
	"fmt"
	"time"
)

// StatusToken is a user's announced preference. `auto` delegates the choice
// to connectivity and idle detection; `auto_away` is the ephemeral token the
// idle detector negotiates on top of `auto`.
type StatusToken string

const (
	TokenAuto     StatusToken = "auto"
	TokenOnline   StatusToken = "online"
	TokenAway     StatusToken = "away"
	TokenDND      StatusToken = "dnd"
	TokenOffline  StatusToken = "offline"
	TokenAutoAway StatusToken = "auto_away"
)

// DisplayStatus is what other users observe after resolution.
type DisplayStatus string

const (
	StatusOnline  DisplayStatus = "online"
	StatusAway    DisplayStatus = "away"
	StatusDND     DisplayStatus = "dnd"
	StatusOffline DisplayStatus = "offline"
)

// ParseToken validates a client-supplied status string. `auto_away` is not
// settable directly; it only enters the system through the idle detector.
func ParseToken(s string) (StatusToken, error) {
	switch StatusToken(s) {
	case TokenAuto, TokenOnline, TokenAway, TokenDND, TokenOffline:
		return StatusToken(s), nil
	default:
		return "", fmt.Errorf("unknown status token %q", s)
	}
}

// StatusRecord is a user's current announced status. A zero ExpiresAt means
// the token persists until explicitly changed.
type StatusRecord struct {
	Token     StatusToken
	ExpiresAt time.Time
}

// Expired reports whether the record's token has timed out. Expired records
// must be treated as if the token were `auto`.
func (r StatusRecord) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && !now.Before(r.ExpiresAt)
}

// EffectiveToken returns the token an observer is allowed to see at `now`.
func (r StatusRecord) EffectiveToken(now time.Time) StatusToken {
	if r.Token == "" || r.Expired(now) {
		return TokenAuto
	}
	return r.Token
}

// Resolve combines connectivity with an announced status record into the
// externally visible status. It is deterministic and side-effect free.
//
// Connectivity wins over preference for online-ness: a user with no open
// connection is offline no matter what they announced. The one override in
// the other direction is an explicit `offline` token ("appear offline"),
// which hides a connected user.
func Resolve(connected bool, rec StatusRecord, now time.Time) DisplayStatus {
	if !connected {
		return StatusOffline
	}
	switch rec.EffectiveToken(now) {
	case TokenOffline:
		return StatusOffline
	case TokenDND:
		return StatusDND
	case TokenAway, TokenAutoAway:
		return StatusAway
	default:
		return StatusOnline
	}
}
