package ports

import (
	"context"
	"time"

	"github.com/serenitygrove/membership-api/internal/core/domain"
)

// CreateUserInput is the admin user-creation payload. Privacy-first defaults
// (hidden from directory, no contact) are applied by the service.
type CreateUserInput struct {
	Email         string
	Phone         string
	PreferredName string
	Role          domain.Role
	SobrietyDate  *time.Time
}

// UpdateUserInput uses pointers for partial updates: nil means "leave as is".
type UpdateUserInput struct {
	PreferredName    *string
	SobrietyDate     *time.Time
	ClearSobriety    bool
	Timezone         *string
	Language         *string
	ShowSobrietyDate *bool
	ShowInDirectory  *bool
	AllowContact     *bool
	Notifications    domain.NotificationPreferences
	Role             *domain.Role // accepted only from the admin surface
}

// AssignmentInput creates a service assignment.
type AssignmentInput struct {
	Position  domain.ServicePosition
	GroupID   string
	MeetingID string
	StartDate *time.Time
	EndDate   *time.Time
	Notes     string
}

// AdminService covers user management and trusted-servant assignments.
type AdminService interface {
	CreateUser(ctx context.Context, in CreateUserInput, createdBy string) (*domain.User, error)
	UpdateUser(ctx context.Context, userID string, in UpdateUserInput, updatedBy string) (*domain.User, error)
	ListUsers(ctx context.Context, filter ListUsersFilter) ([]*domain.User, int64, error)
	Stats(ctx context.Context) (*UserStats, error)
	Directory(ctx context.Context) ([]domain.DirectoryEntry, error)

	AssignPosition(ctx context.Context, userID string, in AssignmentInput, createdBy string) (*domain.ServiceAssignment, error)
	RemoveAssignment(ctx context.Context, assignmentID, removedBy string) error
}
