package ports

import (
	"context"
	"time"

	"github.com/serenitygrove/membership-api/internal/core/domain"
)

// MagicLinkRepository persists single-use login capabilities.
type MagicLinkRepository interface {
	Create(ctx context.Context, link *domain.MagicLink) error

	// Redeem atomically flips the link matching tokenHash from unused to used,
	// provided it has not expired at now. This is a compare-and-set: of two
	// concurrent redemptions of the same token exactly one receives the link,
	// the other domain.ErrInvalidLink. originHash is recorded as the
	// (already hashed) origin of use.
	Redeem(ctx context.Context, tokenHash string, now time.Time, originHash string) (*domain.MagicLink, error)

	// AnonymizeByDestination clears the destination fields of every link
	// matching the given email or phone and one-way re-hashes the recorded
	// origin of use. Links themselves are kept so audit linkage survives.
	AnonymizeByDestination(ctx context.Context, email, phone string) error
}
