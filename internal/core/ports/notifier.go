package ports

import (
	"context"

	"github.com/serenitygrove/membership-api/internal/core/domain"
)

// Notifier delivers a magic link to its destination (email or phone).
// Delivery is an external concern: implementations are expected to time out
// on their own, and a delivery failure never unwinds the already-persisted
// link.
type Notifier interface {
	Send(ctx context.Context, rawToken, destination string, purpose domain.LinkPurpose) error
}
