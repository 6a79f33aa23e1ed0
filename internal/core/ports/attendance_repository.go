package ports

import "context"

// AttendanceRepository covers the privacy-relevant slice of meeting
// attendance. The CRUD surface around meetings lives elsewhere.
type AttendanceRepository interface {
	// AnonymizeForUser severs the user reference to null on every attendance
	// row of the user, stamps each with a fresh anonymous identifier, and
	// forces share_attendance to false.
	AnonymizeForUser(ctx context.Context, userID string) error

	CountByUser(ctx context.Context, userID string) (int64, error)
}
