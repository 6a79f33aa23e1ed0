package ports

import (
	"context"

	"github.com/serenitygrove/membership-api/internal/core/domain"
)

// AuditRepository is append-only. Rows are never updated or deleted except
// through Sever, which anonymization uses to cut the user linkage.
type AuditRepository interface {
	Append(ctx context.Context, row *domain.UserAuditLog) error

	// Sever clears user and resource references on every row belonging to the
	// user and one-way re-hashes the origin fields.
	Sever(ctx context.Context, userID string) error

	CountByUser(ctx context.Context, userID string) (int64, error)
}
