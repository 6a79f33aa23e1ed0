package domain

import (
	"time"

	"github.com/google/uuid"
)

// DeviceInfo carries the raw request attributes of a login. It exists only in
// memory: every field is hashed before anything is persisted.
type DeviceInfo struct {
	Origin    string // remote address or equivalent
	UserAgent string
}

// LoginSession is a live authentication context. Lifecycle:
// Active → Expired (time-based, checked on read, never swept eagerly)
// → Invalidated (explicit, terminal). Invalidated sessions never reactivate.
//
// TokenVersion implements refresh rotation: the refresh token embeds the
// version it was minted against, and a refresh only succeeds when the stored
// version still matches. The winning refresh increments it atomically, so of
// two concurrent refreshes exactly one wins and the session id never changes.
type LoginSession struct {
	ID     string `bson:"_id"`
	UserID string `bson:"user_id,omitempty"`

	DeviceFingerprint string `bson:"device_fingerprint,omitempty"`
	UserAgentHash     string `bson:"user_agent_hash,omitempty"`
	OriginHash        string `bson:"origin_hash,omitempty"`

	IsActive     bool      `bson:"is_active"`
	TokenVersion int64     `bson:"token_version"`
	ExpiresAt    time.Time `bson:"expires_at"`
	LastActivity time.Time `bson:"last_activity"`
	CreatedAt    time.Time `bson:"created_at"`
}

// NewLoginSession creates an active session with device data already hashed.
func NewLoginSession(userID string, device DeviceInfo, ttl time.Duration) *LoginSession {
	now := time.Now().UTC()
	return &LoginSession{
		ID:                uuid.NewString(),
		UserID:            userID,
		DeviceFingerprint: HashSensitive(device.Origin + "|" + device.UserAgent),
		UserAgentHash:     HashSensitive(device.UserAgent),
		OriginHash:        HashSensitive(device.Origin),
		IsActive:          true,
		TokenVersion:      1,
		ExpiresAt:         now.Add(ttl),
		LastActivity:      now,
		CreatedAt:         now,
	}
}

// Usable reports whether the session can still back a refresh at the given
// instant.
func (s *LoginSession) Usable(now time.Time) bool {
	return s.IsActive && now.Before(s.ExpiresAt)
}
