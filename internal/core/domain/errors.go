package domain

import "errors"

// Error taxonomy shared by all services. The HTTP layer maps these to status
// codes in internal/api; services never touch status codes themselves.
var (
	// ErrRateLimited is returned when a magic link was already issued for the
	// destination inside the cooldown window.
	ErrRateLimited = errors.New("magic link already sent, cooldown not elapsed")

	// ErrInvalidLink covers every redemption failure: unknown token, already
	// used, expired, or wrong purpose. Callers are deliberately not told which.
	ErrInvalidLink = errors.New("invalid or expired magic link")

	// ErrUnauthorized covers bad, expired, or missing credentials.
	ErrUnauthorized = errors.New("invalid or expired credentials")

	// ErrForbidden is returned when the caller's role is not in the allowed set.
	ErrForbidden = errors.New("insufficient permissions")

	ErrUserNotFound       = errors.New("user not found")
	ErrSessionNotFound    = errors.New("session not found")
	ErrAssignmentNotFound = errors.New("service assignment not found")

	// ErrUserExists signals a duplicate active email or phone.
	ErrUserExists = errors.New("user with this email or phone already exists")

	// ErrAssignmentExists signals a duplicate active service position.
	ErrAssignmentExists = errors.New("user already holds this service position")

	// ErrSelfDeletion rejects an admin deleting their own account.
	ErrSelfDeletion = errors.New("cannot delete your own account")

	// ErrInvalidInput covers request payloads that survive transport-level
	// validation but fail a domain rule.
	ErrInvalidInput = errors.New("invalid input")
)
