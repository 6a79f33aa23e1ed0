package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/serenitygrove/membership-api/internal/core/domain"
	"github.com/serenitygrove/membership-api/internal/core/ports"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// AdminService implements user management and trusted-servant assignments
// with privacy-first defaults: admin-created accounts start hidden from the
// directory and unreachable until their owner says otherwise.
type AdminService struct {
	users       ports.UserRepository
	assignments ports.AssignmentRepository
	audit       ports.AuditRecorder
	log         zerolog.Logger
}

func NewAdminService(
	users ports.UserRepository,
	assignments ports.AssignmentRepository,
	audit ports.AuditRecorder,
	log zerolog.Logger,
) *AdminService {
	return &AdminService{users: users, assignments: assignments, audit: audit, log: log}
}

// CreateUser registers an account on someone's behalf.
func (s *AdminService) CreateUser(ctx context.Context, in ports.CreateUserInput, createdBy string) (*domain.User, error) {
	role := in.Role
	if role == "" {
		role = domain.RoleGuest
	}
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", domain.ErrInvalidInput, in.Role)
	}

	if err := s.checkDuplicate(ctx, in.Email, in.Phone); err != nil {
		return nil, err
	}

	user := domain.NewUser(in.Email, in.Phone)
	user.Role = role
	user.SobrietyDate = in.SobrietyDate
	// Admin-created accounts have proven nothing themselves.
	user.EmailVerified = false
	user.PhoneVerified = false
	user.PreferredName = in.PreferredName
	if user.PreferredName == "" {
		user.PreferredName = domain.MemberLabel()
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.audit.Record(ctx, domain.AuditEntry{
		UserID:       user.ID,
		Action:       domain.ActionUserCreatedByAdmin,
		ResourceType: "user",
		ResourceID:   user.ID,
		Success:      true,
	})
	s.log.Info().Str("user_id", user.ID).Str("role", string(role)).Str("created_by", createdBy).Msg("user created")
	return user, nil
}

// UpdateUser applies a partial update. Nil fields are left alone.
func (s *AdminService) UpdateUser(ctx context.Context, userID string, in ports.UpdateUserInput, updatedBy string) (*domain.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if in.PreferredName != nil {
		user.PreferredName = *in.PreferredName
	}
	if in.ClearSobriety {
		user.SobrietyDate = nil
	} else if in.SobrietyDate != nil {
		user.SobrietyDate = in.SobrietyDate
	}
	if in.Timezone != nil {
		user.Timezone = *in.Timezone
	}
	if in.Language != nil {
		user.Language = *in.Language
	}
	if in.ShowSobrietyDate != nil {
		user.ShowSobrietyDate = *in.ShowSobrietyDate
	}
	if in.ShowInDirectory != nil {
		user.ShowInDirectory = *in.ShowInDirectory
	}
	if in.AllowContact != nil {
		user.AllowContact = *in.AllowContact
	}
	if in.Notifications != nil {
		user.NotificationPreferences = in.Notifications
	}
	if in.Role != nil {
		if !in.Role.Valid() {
			return nil, fmt.Errorf("%w: unknown role %q", domain.ErrInvalidInput, *in.Role)
		}
		user.Role = *in.Role
	}
	user.UpdatedAt = time.Now().UTC()

	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}

	action := domain.ActionProfileUpdated
	if updatedBy != userID {
		action = domain.ActionUserUpdatedByAdmin
	}
	s.audit.Record(ctx, domain.AuditEntry{
		UserID:       updatedBy,
		Action:       action,
		ResourceType: "user",
		ResourceID:   userID,
		Success:      true,
	})
	return user, nil
}

// ListUsers returns a page of users plus the total count.
func (s *AdminService) ListUsers(ctx context.Context, filter ports.ListUsersFilter) ([]*domain.User, int64, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = defaultPageSize
	}
	if filter.Limit > maxPageSize {
		filter.Limit = maxPageSize
	}
	return s.users.List(ctx, filter)
}

// Stats returns PII-free aggregates.
func (s *AdminService) Stats(ctx context.Context) (*ports.UserStats, error) {
	now := time.Now().UTC()
	return s.users.Stats(ctx, now.AddDate(0, 0, -30), now.AddDate(0, 0, -7))
}

// Directory returns the privacy-enforced member directory: only active users
// who opted in, each reduced to what their toggles allow.
func (s *AdminService) Directory(ctx context.Context) ([]domain.DirectoryEntry, error) {
	users, err := s.users.Directory(ctx)
	if err != nil {
		return nil, fmt.Errorf("load directory: %w", err)
	}
	now := time.Now().UTC()
	entries := make([]domain.DirectoryEntry, 0, len(users))
	for _, u := range users {
		entries = append(entries, u.DirectoryView(now))
	}
	return entries, nil
}

// AssignPosition gives a user a service position. A user holds at most one
// active assignment per position.
func (s *AdminService) AssignPosition(ctx context.Context, userID string, in ports.AssignmentInput, createdBy string) (*domain.ServiceAssignment, error) {
	if !in.Position.Valid() {
		return nil, fmt.Errorf("%w: unknown position %q", domain.ErrInvalidInput, in.Position)
	}
	if _, err := s.users.FindByID(ctx, userID); err != nil {
		return nil, err
	}

	exists, err := s.assignments.HasActive(ctx, userID, in.Position)
	if err != nil {
		return nil, fmt.Errorf("check assignment: %w", err)
	}
	if exists {
		return nil, domain.ErrAssignmentExists
	}

	a := domain.NewServiceAssignment(userID, in.Position, createdBy)
	a.GroupID = in.GroupID
	a.MeetingID = in.MeetingID
	a.Notes = in.Notes
	if in.StartDate != nil {
		a.StartDate = *in.StartDate
	}
	a.EndDate = in.EndDate

	if err := s.assignments.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("create assignment: %w", err)
	}

	s.audit.Record(ctx, domain.AuditEntry{
		UserID:       userID,
		Action:       domain.ActionAssignmentCreated,
		ResourceType: "service_assignment",
		ResourceID:   a.ID,
		Success:      true,
	})
	return a, nil
}

// RemoveAssignment soft-deletes an assignment, keeping the service history.
func (s *AdminService) RemoveAssignment(ctx context.Context, assignmentID, removedBy string) error {
	a, err := s.assignments.FindByID(ctx, assignmentID)
	if err != nil {
		return err
	}
	if err := s.assignments.Deactivate(ctx, a.ID); err != nil {
		return fmt.Errorf("deactivate assignment: %w", err)
	}
	s.audit.Record(ctx, domain.AuditEntry{
		UserID:       removedBy,
		Action:       domain.ActionAssignmentRemoved,
		ResourceType: "service_assignment",
		ResourceID:   assignmentID,
		Success:      true,
	})
	return nil
}

func (s *AdminService) checkDuplicate(ctx context.Context, email, phone string) error {
	if email != "" {
		if _, err := s.users.FindByEmail(ctx, email); err == nil {
			return domain.ErrUserExists
		} else if !errors.Is(err, domain.ErrUserNotFound) {
			return fmt.Errorf("check email: %w", err)
		}
	}
	if phone != "" {
		if _, err := s.users.FindByPhone(ctx, phone); err == nil {
			return domain.ErrUserExists
		} else if !errors.Is(err, domain.ErrUserNotFound) {
			return fmt.Errorf("check phone: %w", err)
		}
	}
	return nil
}
