package domain

import (
	"time"

	"github.com/google/uuid"
)

// Audit action tags. String constants rather than an enum: the log accepts
// any tag, these are just the ones the platform writes itself.
const (
	ActionMagicLinkRequested = "magic_link_requested"
	ActionLogin              = "login"
	ActionLogout             = "logout"
	ActionProfileUpdated     = "profile_updated"
	ActionAnonymousCreated   = "anonymous_account_created"
	ActionAccountDeleted     = "account_deleted"
	ActionUserCreatedByAdmin = "user_created_by_admin"
	ActionUserUpdatedByAdmin = "user_updated_by_admin"
	ActionUserDeactivated    = "user_deactivated_by_admin"
	ActionUserDeleted        = "user_deleted_by_admin"
	ActionUserAnonymized     = "user_anonymized"
	ActionAssignmentCreated  = "service_assignment_created"
	ActionAssignmentRemoved  = "service_assignment_removed"
)

// UserAuditLog is an append-only fact. Rows are never mutated or deleted with
// one exception: anonymization may sever the user/resource references and
// re-hash the origin fields.
type UserAuditLog struct {
	ID           string `bson:"_id"`
	UserID       string `bson:"user_id,omitempty"` // empty after severance
	Action       string `bson:"action"`
	ResourceType string `bson:"resource_type,omitempty"`
	ResourceID   string `bson:"resource_id,omitempty"`

	OriginHash    string `bson:"origin_hash,omitempty"`
	UserAgentHash string `bson:"user_agent_hash,omitempty"`
	Success       bool   `bson:"success"`

	CreatedAt time.Time `bson:"created_at"`
}

// AuditEntry is the write-side shape accepted by the recorder.
type AuditEntry struct {
	UserID       string
	Action       string
	ResourceType string
	ResourceID   string
	Origin       string // raw; hashed before storage
	UserAgent    string // raw; hashed before storage
	Success      bool
}

// NewAuditLog converts an entry into a storable row, hashing origin data.
func NewAuditLog(e AuditEntry) *UserAuditLog {
	return &UserAuditLog{
		ID:            uuid.NewString(),
		UserID:        e.UserID,
		Action:        e.Action,
		ResourceType:  e.ResourceType,
		ResourceID:    e.ResourceID,
		OriginHash:    HashSensitive(e.Origin),
		UserAgentHash: HashSensitive(e.UserAgent),
		Success:       e.Success,
		CreatedAt:     time.Now().UTC(),
	}
}
