package domain

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
)

// RedactedNote replaces free-text fields during anonymization.
const RedactedNote = "[redacted]"

// HashSensitive returns a truncated SHA-256 digest of s, or "" for "".
// Used both for hashing raw device data before storage and for the one-way
// re-hash of already-hashed values during anonymization.
func HashSensitive(s string) string {
	if s == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:32]
}

// HashToken returns the full SHA-256 digest of a token. Magic link tokens are
// only ever persisted in this form; the raw token exists in the outbound
// notification alone.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// NewToken returns a URL-safe random token with 256 bits of entropy.
func NewToken() string {
	return randomString(32)
}

// NewAnonymousID returns a prefixed random identifier, e.g. "anon_9f2k...".
func NewAnonymousID(prefix string) string {
	return prefix + "_" + randomString(16)
}

// AnonymousLabel returns a display name for accounts with no stored identity.
func AnonymousLabel() string {
	return "Anonymous_" + randomString(16)[:8]
}

// DeletedLabel returns the display name left behind by a soft delete.
func DeletedLabel() string {
	return "Deleted_User_" + randomString(8)
}

// MemberLabel returns the default display name for admin-created accounts
// whose owner gave no name.
func MemberLabel() string {
	return "Member_" + randomString(8)
}

func randomString(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		// rand.Read only fails when the OS entropy source is broken,
		// at which point nothing in this process is trustworthy.
		panic("domain: crypto/rand unavailable: " + err.Error())
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}
