package ports

import (
	"context"
	"time"

	"github.com/serenitygrove/membership-api/internal/core/domain"
)

// SessionRepository persists login sessions.
type SessionRepository interface {
	Create(ctx context.Context, s *domain.LoginSession) error
	FindByID(ctx context.Context, id string) (*domain.LoginSession, error)

	// Rotate is the refresh compare-and-set: it advances the session's token
	// version from expectedVersion to expectedVersion+1 and pushes expiry and
	// last-activity forward, but only while the session is still active,
	// unexpired, and at exactly expectedVersion. A session that fails the
	// check yields domain.ErrUnauthorized, so of two concurrent refreshes
	// carrying the same token exactly one wins.
	Rotate(ctx context.Context, id string, expectedVersion int64, newExpiry time.Time) (*domain.LoginSession, error)

	// Invalidate and InvalidateAllForUser are idempotent. Invalidated is
	// terminal; nothing reactivates a session.
	Invalidate(ctx context.Context, id string) error
	InvalidateAllForUser(ctx context.Context, userID string) error

	// DeactivateExpired sweeps sessions whose expiry has passed and returns
	// how many were flipped.
	DeactivateExpired(ctx context.Context, now time.Time) (int64, error)

	// AnonymizeForUser one-way re-hashes the stored device fingerprints of
	// every session owned by the user. When sever is true the user reference
	// is also cleared (hard delete path).
	AnonymizeForUser(ctx context.Context, userID string, sever bool) error

	CountByUser(ctx context.Context, userID string) (int64, error)
}
