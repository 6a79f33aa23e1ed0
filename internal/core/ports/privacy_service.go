package ports

import (
	"context"

	"github.com/serenitygrove/membership-api/internal/core/domain"
)

// PrivacyReport summarizes how exposed a user currently is. The score is a
// monotonic heuristic: every withheld datum adds points, and the level is a
// banded reading of the percentage. The exact weights are advisory.
type PrivacyReport struct {
	UserID            string           `json:"user_id"`
	PrivacyScore      int              `json:"privacy_score"`
	MaxScore          int              `json:"max_score"`
	PrivacyPercentage float64          `json:"privacy_percentage"`
	PrivacyLevel      string           `json:"privacy_level"`
	DataRetention     map[string]int64 `json:"data_retention"`
	Recommendations   []string         `json:"recommendations"`
}

// PrivacyService is the anonymization engine plus the privacy-facing account
// operations built on it.
type PrivacyService interface {
	// Anonymize irreversibly strips PII from the user and every dependent
	// record, atomically. Re-running on an already anonymized user is a no-op
	// that still succeeds.
	Anonymize(ctx context.Context, userID string, preserveAudit bool) error

	// Delete deactivates (permanent=false) or anonymizes-then-removes
	// (permanent=true) the user. deletedBy equal to userID is rejected when
	// the call comes from the admin surface; self-service soft deletion passes
	// self=true to allow it.
	Delete(ctx context.Context, userID, deletedBy string, permanent, preserveAudit, self bool) error

	// CreateAnonymousUser registers an account with no destination at all.
	CreateAnonymousUser(ctx context.Context) (*domain.User, error)

	Report(ctx context.Context, userID string) (*PrivacyReport, error)
}
