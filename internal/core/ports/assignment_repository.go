package ports

import (
	"context"

	"github.com/serenitygrove/membership-api/internal/core/domain"
)

// AssignmentRepository persists trusted-servant service assignments.
type AssignmentRepository interface {
	Create(ctx context.Context, a *domain.ServiceAssignment) error
	FindByID(ctx context.Context, id string) (*domain.ServiceAssignment, error)
	// HasActive reports whether the user already holds the position.
	HasActive(ctx context.Context, userID string, position domain.ServicePosition) (bool, error)
	ListActiveByUser(ctx context.Context, userID string) ([]*domain.ServiceAssignment, error)
	// Deactivate is a soft delete; the row survives for service history.
	Deactivate(ctx context.Context, id string) error

	// AnonymizeForUser overwrites free-text notes with the redaction marker on
	// every assignment of the user. When sever is true the user reference is
	// also cleared.
	AnonymizeForUser(ctx context.Context, userID string, sever bool) error

	CountByUser(ctx context.Context, userID string) (int64, error)
}
