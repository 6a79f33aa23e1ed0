package ports

import (
	"context"
	"time"

	"github.com/serenitygrove/membership-api/internal/core/domain"
)

// LoginResult is what a successful redemption or anonymous registration
// returns to the client.
type LoginResult struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	SessionID    string       `json:"-"`
	ExpiresIn    int64        `json:"expires_in"` // seconds until the access token lapses
	User         *domain.User `json:"user"`
}

// MagicLinkService issues and redeems single-use passwordless login links.
type MagicLinkService interface {
	// RequestLink creates a link for the destination and dispatches it through
	// the Notifier. Returns the link TTL, or domain.ErrRateLimited while the
	// per-destination cooldown holds.
	RequestLink(ctx context.Context, email, phone string, purpose domain.LinkPurpose) (time.Duration, error)

	// VerifyLink redeems a raw token, resolving or creating the user behind
	// the destination and opening a session. Exactly one concurrent caller
	// with the same token succeeds; everyone else gets domain.ErrInvalidLink.
	VerifyLink(ctx context.Context, rawToken string, device domain.DeviceInfo) (*LoginResult, error)
}
