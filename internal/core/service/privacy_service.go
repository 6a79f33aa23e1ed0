package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/serenitygrove/membership-api/internal/api/metrics"
	"github.com/serenitygrove/membership-api/internal/core/domain"
	"github.com/serenitygrove/membership-api/internal/core/ports"
)

// PrivacyService is the anonymization engine. Every destructive run executes
// inside one store transaction: either all enumerated severance steps commit
// or none do, so partial anonymization is never observable.
type PrivacyService struct {
	users       ports.UserRepository
	sessions    ports.SessionRepository
	links       ports.MagicLinkRepository
	audits      ports.AuditRepository
	attendance  ports.AttendanceRepository
	assignments ports.AssignmentRepository
	tx          ports.TransactionRunner
	recorder    ports.AuditRecorder
	log         zerolog.Logger
}

func NewPrivacyService(
	users ports.UserRepository,
	sessions ports.SessionRepository,
	links ports.MagicLinkRepository,
	audits ports.AuditRepository,
	attendance ports.AttendanceRepository,
	assignments ports.AssignmentRepository,
	tx ports.TransactionRunner,
	recorder ports.AuditRecorder,
	log zerolog.Logger,
) *PrivacyService {
	return &PrivacyService{
		users:       users,
		sessions:    sessions,
		links:       links,
		audits:      audits,
		attendance:  attendance,
		assignments: assignments,
		tx:          tx,
		recorder:    recorder,
		log:         log,
	}
}

// Anonymize irreversibly strips PII from the user and all dependent records.
// Re-running on an already anonymized user is a successful no-op.
func (p *PrivacyService) Anonymize(ctx context.Context, userID string, preserveAudit bool) error {
	start := time.Now()
	err := p.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		return p.anonymizeSteps(txCtx, userID, preserveAudit, false)
	})
	p.observe("anonymize", start, err)
	if err != nil {
		return err
	}

	p.recorder.Record(ctx, domain.AuditEntry{
		Action:       domain.ActionUserAnonymized,
		ResourceType: "user",
		Success:      true,
	})
	return nil
}

// anonymizeSteps runs the enumerated severance sequence. It must be called
// with a transactional context. sever additionally cuts user references in
// dependent tables, which only the hard-delete path wants: until the user row
// actually disappears, the references are not PII.
func (p *PrivacyService) anonymizeSteps(txCtx context.Context, userID string, preserveAudit, sever bool) error {
	user, err := p.users.FindByID(txCtx, userID)
	if err != nil {
		return err
	}
	if user.Anonymized() && !sever {
		return nil
	}

	// The destination is needed for step 5 and is about to be destroyed.
	email, phone := user.Email, user.Phone
	now := time.Now().UTC()

	// Step 1: scrub the identity anchor. Role is untouched (not PII); every
	// privacy toggle drops to its most restrictive value.
	user.Email = ""
	user.EmailVerified = false
	user.Phone = ""
	user.PhoneVerified = false
	user.PreferredName = domain.AnonymousLabel()
	user.SobrietyDate = nil
	user.ShowSobrietyDate = false
	user.ShowInDirectory = false
	user.AllowContact = false
	user.IsActive = false
	user.UpdatedAt = now
	user.AnonymizedAt = &now
	if err := p.users.Update(txCtx, user); err != nil {
		return fmt.Errorf("anonymize user: %w", err)
	}

	// Step 2: one-way re-hash the already-hashed device data on every
	// session. A session still counts as "a session existed" but can no
	// longer be correlated with anything outside.
	if err := p.sessions.AnonymizeForUser(txCtx, userID, sever); err != nil {
		return fmt.Errorf("anonymize sessions: %w", err)
	}

	// Step 3: sever attendance and stamp fresh anonymous identifiers.
	if err := p.attendance.AnonymizeForUser(txCtx, userID); err != nil {
		return fmt.Errorf("anonymize attendance: %w", err)
	}

	// Step 4: redact service assignment notes.
	if err := p.assignments.AnonymizeForUser(txCtx, userID, sever); err != nil {
		return fmt.Errorf("anonymize assignments: %w", err)
	}

	// Step 5: clear the destination off every magic link that pointed at the
	// user. The links themselves survive for audit linkage.
	if email != "" || phone != "" {
		if err := p.links.AnonymizeByDestination(txCtx, email, phone); err != nil {
			return fmt.Errorf("anonymize magic links: %w", err)
		}
	}

	// Step 6: audit rows keep their user reference unless the caller asked
	// otherwise, or the row they point at is about to vanish entirely.
	if !preserveAudit || sever {
		if err := p.audits.Sever(txCtx, userID); err != nil {
			return fmt.Errorf("sever audit logs: %w", err)
		}
	}

	return nil
}

// Delete deactivates or permanently removes a user. Hard deletion runs the
// full anonymization sequence first and removes the user row last, inside the
// same transaction, so no table ever references a vanished id that was not
// first severed.
func (p *PrivacyService) Delete(ctx context.Context, userID, deletedBy string, permanent, preserveAudit, self bool) error {
	if !self && deletedBy == userID {
		return domain.ErrSelfDeletion
	}

	mode := "soft_delete"
	if permanent {
		mode = "hard_delete"
	}

	start := time.Now()
	err := p.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		if permanent {
			if err := p.anonymizeSteps(txCtx, userID, preserveAudit, true); err != nil {
				return err
			}
			return p.users.Delete(txCtx, userID)
		}
		return p.softDelete(txCtx, userID)
	})
	p.observe(mode, start, err)
	if err != nil {
		return err
	}

	action := domain.ActionUserDeactivated
	if permanent {
		action = domain.ActionUserDeleted
	}
	if self {
		action = domain.ActionAccountDeleted
	}
	p.recorder.Record(ctx, domain.AuditEntry{
		UserID:       deletedBy,
		Action:       action,
		ResourceType: "user",
		Success:      true,
	})
	return nil
}

func (p *PrivacyService) softDelete(txCtx context.Context, userID string) error {
	user, err := p.users.FindByID(txCtx, userID)
	if err != nil {
		return err
	}

	user.IsActive = false
	user.Email = ""
	user.Phone = ""
	user.PreferredName = domain.DeletedLabel()
	user.UpdatedAt = time.Now().UTC()
	if err := p.users.Update(txCtx, user); err != nil {
		return fmt.Errorf("deactivate user: %w", err)
	}
	if err := p.sessions.InvalidateAllForUser(txCtx, userID); err != nil {
		return fmt.Errorf("invalidate sessions: %w", err)
	}
	return nil
}

// CreateAnonymousUser registers an account that stores no identity at all.
func (p *PrivacyService) CreateAnonymousUser(ctx context.Context) (*domain.User, error) {
	user := domain.NewAnonymousUser()
	if err := p.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create anonymous user: %w", err)
	}
	p.recorder.Record(ctx, domain.AuditEntry{
		UserID:       user.ID,
		Action:       domain.ActionAnonymousCreated,
		ResourceType: "user",
		ResourceID:   user.ID,
		Success:      true,
	})
	return user, nil
}

// privacy score weights; advisory, any monotonic function would do.
const maxPrivacyScore = 8

// Report computes the privacy posture of a user: a monotonic score over what
// they withhold, plus how much dependent data the store still retains.
func (p *PrivacyService) Report(ctx context.Context, userID string) (*ports.PrivacyReport, error) {
	user, err := p.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	score := 0
	if user.Email == "" {
		score++
	}
	if user.Phone == "" {
		score++
	}
	if !user.ShowSobrietyDate {
		score++
	}
	if !user.ShowInDirectory {
		score++
	}
	if !user.AllowContact {
		score++
	}
	if user.Role == domain.RoleAnonymous {
		score += 2
	}
	if !user.IsVerified {
		score++
	}

	retention := map[string]int64{}
	for name, count := range map[string]func(context.Context, string) (int64, error){
		"audit_logs":          p.audits.CountByUser,
		"login_sessions":      p.sessions.CountByUser,
		"meeting_attendance":  p.attendance.CountByUser,
		"service_assignments": p.assignments.CountByUser,
	} {
		n, err := count(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("count %s: %w", name, err)
		}
		retention[name] = n
	}

	pct := float64(score) / float64(maxPrivacyScore) * 100
	return &ports.PrivacyReport{
		UserID:            userID,
		PrivacyScore:      score,
		MaxScore:          maxPrivacyScore,
		PrivacyPercentage: pct,
		PrivacyLevel:      privacyLevel(pct),
		DataRetention:     retention,
		Recommendations:   privacyRecommendations(score),
	}, nil
}

func privacyLevel(pct float64) string {
	switch {
	case pct >= 80:
		return "Maximum"
	case pct >= 60:
		return "High"
	case pct >= 40:
		return "Medium"
	default:
		return "Low"
	}
}

func privacyRecommendations(score int) []string {
	var recs []string
	if score < maxPrivacyScore/2 {
		recs = append(recs,
			"Consider using the anonymous role for maximum privacy",
			"Disable directory visibility",
			"Hide your sobriety date",
			"Disable contact permissions",
		)
	}
	if score < maxPrivacyScore*3/4 {
		recs = append(recs,
			"Review how much historical data the platform retains for you",
			"Request anonymization of old activity",
		)
	}
	return recs
}

func (p *PrivacyService) observe(mode string, start time.Time, err error) {
	result := "success"
	if err != nil && !errors.Is(err, domain.ErrUserNotFound) && !errors.Is(err, domain.ErrSelfDeletion) {
		result = "error"
	}
	metrics.AnonymizationsTotal.WithLabelValues(mode, result).Inc()
	metrics.AnonymizationDuration.Observe(time.Since(start).Seconds())
}
