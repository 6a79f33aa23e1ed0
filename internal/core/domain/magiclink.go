package domain

import (
	"time"

	"github.com/google/uuid"
)

// LinkPurpose states what a magic link is allowed to do once redeemed.
type LinkPurpose string

const (
	PurposeLogin       LinkPurpose = "login"
	PurposeVerifyEmail LinkPurpose = "verify_email"
	PurposeVerifyPhone LinkPurpose = "verify_phone"
	PurposeReset       LinkPurpose = "reset_password"
)

// Valid reports whether p is a known purpose.
func (p LinkPurpose) Valid() bool {
	switch p {
	case PurposeLogin, PurposeVerifyEmail, PurposeVerifyPhone, PurposeReset:
		return true
	}
	return false
}

// GrantsLogin reports whether redeeming a link with this purpose may open a
// session. Reset links prove address ownership but never log the holder in.
func (p LinkPurpose) GrantsLogin() bool {
	switch p {
	case PurposeLogin, PurposeVerifyEmail, PurposeVerifyPhone:
		return true
	}
	return false
}

// MagicLink is a single-use passwordless login capability. The token column
// holds a SHA-256 digest, never the raw token. A link transitions
// Pending → Used exactly once, or lapses into Expired by time; no transition
// ever makes it redeemable again.
type MagicLink struct {
	ID        string      `bson:"_id"`
	TokenHash string      `bson:"token_hash"`
	Email     string      `bson:"email,omitempty"`
	Phone     string      `bson:"phone,omitempty"`
	Purpose   LinkPurpose `bson:"purpose"`

	IsUsed       bool       `bson:"is_used"`
	UsedAt       *time.Time `bson:"used_at,omitempty"`
	UsedByOrigin string     `bson:"used_by_origin,omitempty"` // hashed, never a raw address

	ExpiresAt time.Time `bson:"expires_at"`
	CreatedAt time.Time `bson:"created_at"`
}

// NewMagicLink builds a pending link for the given destination. Exactly one
// of email or phone must be non-empty; the caller has already validated that.
func NewMagicLink(tokenHash, email, phone string, purpose LinkPurpose, ttl time.Duration) *MagicLink {
	now := time.Now().UTC()
	return &MagicLink{
		ID:        uuid.NewString(),
		TokenHash: tokenHash,
		Email:     email,
		Phone:     phone,
		Purpose:   purpose,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
}

// Expired reports whether the link has lapsed at the given instant.
func (m *MagicLink) Expired(now time.Time) bool {
	return !now.Before(m.ExpiresAt)
}
