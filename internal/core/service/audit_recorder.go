package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/serenitygrove/membership-api/internal/api/metrics"
	"github.com/serenitygrove/membership-api/internal/core/domain"
	"github.com/serenitygrove/membership-api/internal/core/ports"
)

// AuditRecorder appends to the user audit log. Failures are logged and
// counted, never propagated: audit is not part of any primary invariant, so a
// write failure must not reverse the operation being recorded.
type AuditRecorder struct {
	repo ports.AuditRepository
	log  zerolog.Logger
}

func NewAuditRecorder(repo ports.AuditRepository, log zerolog.Logger) *AuditRecorder {
	return &AuditRecorder{repo: repo, log: log}
}

// Record persists one audit entry best-effort.
func (r *AuditRecorder) Record(ctx context.Context, entry domain.AuditEntry) {
	row := domain.NewAuditLog(entry)
	if err := r.repo.Append(ctx, row); err != nil {
		metrics.AuditWriteFailuresTotal.Inc()
		r.log.Error().Err(err).
			Str("action", entry.Action).
			Msg("audit append failed")
	}
}
