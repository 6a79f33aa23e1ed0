package ports

import (
	"context"
	"time"

	"github.com/serenitygrove/membership-api/internal/core/domain"
)

// ListUsersFilter carries the admin listing query. Pagination is capped by
// the service layer.
type ListUsersFilter struct {
	Role     domain.Role // optional
	IsActive *bool       // optional tri-state
	Search   string      // optional: partial match on preferred_name or email
	Page     int         // 1-based
	Limit    int
}

// UserStats is the PII-free aggregate exposed to admins.
type UserStats struct {
	TotalUsers        int64                            `json:"total_users"`
	ActiveUsers       int64                            `json:"active_users"`
	NewUsersThisMonth int64                            `json:"new_users_this_month"`
	RecentLogins      int64                            `json:"recent_logins"`
	UsersByRole       map[domain.Role]int64            `json:"users_by_role"`
	ActiveByPosition  map[domain.ServicePosition]int64 `json:"users_by_service_position"`
}

// UserRepository defines persistence for the identity anchor. The store
// enforces at most one user per non-null email and per non-null phone with
// unique partial indexes; whether a found account may act is the caller's
// check.
type UserRepository interface {
	Create(ctx context.Context, u *domain.User) error
	FindByID(ctx context.Context, id string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByPhone(ctx context.Context, phone string) (*domain.User, error)
	Update(ctx context.Context, u *domain.User) error
	// Delete removes the row itself. Only the anonymization engine calls this,
	// and only after every dependent table has been severed.
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter ListUsersFilter) ([]*domain.User, int64, error)
	// Directory returns active users who opted into the member directory.
	Directory(ctx context.Context) ([]*domain.User, error)
	Stats(ctx context.Context, monthAgo, weekAgo time.Time) (*UserStats, error)
}
