package ports

import (
	"context"

	"github.com/serenitygrove/membership-api/internal/core/domain"
)

// TokenPair is a freshly minted access/refresh pair bound to one session.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	SessionID    string `json:"-"`
	ExpiresIn    int64  `json:"expires_in"`
}

// SessionService manages the session lifecycle and the rotating token pair.
type SessionService interface {
	Create(ctx context.Context, userID string, device domain.DeviceInfo) (*TokenPair, error)

	// Refresh rotates the pair. The session id never changes; the previous
	// refresh token stops working as a refresh input. Any failure is
	// domain.ErrUnauthorized.
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)

	Invalidate(ctx context.Context, sessionID string) error
	InvalidateAllForUser(ctx context.Context, userID string) error

	// CleanupExpired deactivates lapsed sessions and returns the count.
	CleanupExpired(ctx context.Context) (int64, error)
}
