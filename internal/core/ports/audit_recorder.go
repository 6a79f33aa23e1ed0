package ports

import (
	"context"

	"github.com/serenitygrove/membership-api/internal/core/domain"
)

// AuditRecorder appends privacy-compliant facts about state transitions.
// Recording is best-effort: implementations log and count their own failures
// but never surface them, so the primary operation's outcome is unaffected.
type AuditRecorder interface {
	Record(ctx context.Context, entry domain.AuditEntry)
}
