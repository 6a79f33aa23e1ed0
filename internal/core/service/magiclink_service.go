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

// CooldownLimiter reserves a per-destination issuance slot (Redis). A
// reservation holds while the issued link is pending: Release frees it on
// redemption so the window only guards unused links. The limit is advisory:
// a limiter error lets the request through, a concurrent overcount is
// tolerated. It only ever gates issuance, never redemption.
type CooldownLimiter interface {
	Reserve(ctx context.Context, destination string, window time.Duration) (bool, error)
	Release(ctx context.Context, destination string) error
}

// MagicLinkConfig carries the issuance policy.
type MagicLinkConfig struct {
	LinkTTL  time.Duration // how long a link stays redeemable
	Cooldown time.Duration // per-destination issuance window
}

// MagicLinkService issues and redeems single-use passwordless login links.
type MagicLinkService struct {
	links    ports.MagicLinkRepository
	users    ports.UserRepository
	sessions ports.SessionService
	notifier ports.Notifier
	limiter  CooldownLimiter
	audit    ports.AuditRecorder
	cfg      MagicLinkConfig
	log      zerolog.Logger
}

func NewMagicLinkService(
	links ports.MagicLinkRepository,
	users ports.UserRepository,
	sessions ports.SessionService,
	notifier ports.Notifier,
	limiter CooldownLimiter,
	audit ports.AuditRecorder,
	cfg MagicLinkConfig,
	log zerolog.Logger,
) *MagicLinkService {
	if cfg.LinkTTL <= 0 {
		cfg.LinkTTL = 15 * time.Minute
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 5 * time.Minute
	}
	return &MagicLinkService{
		links:    links,
		users:    users,
		sessions: sessions,
		notifier: notifier,
		limiter:  limiter,
		audit:    audit,
		cfg:      cfg,
		log:      log,
	}
}

// RequestLink generates a 256-bit token, persists its digest, and dispatches
// the raw token through the notifier. A delivery failure is logged and
// counted but never unwinds the already-persisted link.
func (s *MagicLinkService) RequestLink(ctx context.Context, email, phone string, purpose domain.LinkPurpose) (time.Duration, error) {
	if (email == "") == (phone == "") {
		return 0, fmt.Errorf("%w: exactly one of email or phone required", domain.ErrInvalidInput)
	}
	if purpose == "" {
		purpose = domain.PurposeLogin
	}
	if !purpose.Valid() {
		return 0, fmt.Errorf("%w: unknown purpose %q", domain.ErrInvalidInput, purpose)
	}

	destination := email
	channel := "email"
	if destination == "" {
		destination = phone
		channel = "phone"
	}

	ok, err := s.limiter.Reserve(ctx, destination, s.cfg.Cooldown)
	if err != nil {
		// Advisory limit: issuing without it beats refusing logins.
		s.log.Warn().Err(err).Msg("cooldown check failed, issuing anyway")
	} else if !ok {
		metrics.RateLimitedRequestsTotal.Inc()
		return 0, domain.ErrRateLimited
	}

	raw := domain.NewToken()
	link := domain.NewMagicLink(domain.HashToken(raw), email, phone, purpose, s.cfg.LinkTTL)
	if err := s.links.Create(ctx, link); err != nil {
		return 0, fmt.Errorf("persist magic link: %w", err)
	}

	if err := s.notifier.Send(ctx, raw, destination, purpose); err != nil {
		metrics.NotifierFailuresTotal.Inc()
		s.log.Warn().Err(err).Str("channel", channel).Msg("magic link dispatch failed")
	}

	s.audit.Record(ctx, domain.AuditEntry{
		Action:  domain.ActionMagicLinkRequested,
		Success: true,
	})
	metrics.MagicLinksRequestedTotal.WithLabelValues(string(purpose), channel).Inc()

	return s.cfg.LinkTTL, nil
}

// VerifyLink redeems a raw token and opens a session. Redemption is a
// compare-and-set on the unused flag: two concurrent calls with the same
// token produce exactly one session, the loser sees domain.ErrInvalidLink.
// Reset links are consumed but rejected for login.
func (s *MagicLinkService) VerifyLink(ctx context.Context, rawToken string, device domain.DeviceInfo) (*ports.LoginResult, error) {
	now := time.Now().UTC()
	link, err := s.links.Redeem(ctx, domain.HashToken(rawToken), now, domain.HashSensitive(device.Origin))
	if err != nil {
		if errors.Is(err, domain.ErrInvalidLink) {
			metrics.MagicLinkRedemptionsTotal.WithLabelValues("invalid").Inc()
			return nil, domain.ErrInvalidLink
		}
		return nil, fmt.Errorf("redeem magic link: %w", err)
	}

	// The link is burned; its destination no longer holds the issuance slot.
	destination := link.Email
	if destination == "" {
		destination = link.Phone
	}
	if err := s.limiter.Release(ctx, destination); err != nil {
		s.log.Warn().Err(err).Msg("cooldown release failed")
	}

	if !link.Purpose.GrantsLogin() {
		metrics.MagicLinkRedemptionsTotal.WithLabelValues("invalid").Inc()
		return nil, domain.ErrInvalidLink
	}

	user, err := s.resolveUser(ctx, link, now)
	if err != nil {
		return nil, err
	}

	pair, err := s.sessions.Create(ctx, user.ID, device)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, domain.AuditEntry{
		UserID:    user.ID,
		Action:    domain.ActionLogin,
		Origin:    device.Origin,
		UserAgent: device.UserAgent,
		Success:   true,
	})
	metrics.MagicLinkRedemptionsTotal.WithLabelValues("success").Inc()
	metrics.SessionsCreatedTotal.WithLabelValues("magic_link").Inc()

	return &ports.LoginResult{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		SessionID:    pair.SessionID,
		ExpiresIn:    pair.ExpiresIn,
		User:         user,
	}, nil
}

// resolveUser finds the account behind the link's destination, creating a
// guest account on first login, and records the proven verification.
func (s *MagicLinkService) resolveUser(ctx context.Context, link *domain.MagicLink, now time.Time) (*domain.User, error) {
	var (
		user *domain.User
		err  error
	)
	if link.Email != "" {
		user, err = s.users.FindByEmail(ctx, link.Email)
	} else {
		user, err = s.users.FindByPhone(ctx, link.Phone)
	}

	switch {
	case errors.Is(err, domain.ErrUserNotFound):
		user = domain.NewUser(link.Email, link.Phone)
		user.LastLogin = &now
		if err := s.users.Create(ctx, user); err != nil {
			return nil, fmt.Errorf("create user: %w", err)
		}
		return user, nil
	case err != nil:
		return nil, fmt.Errorf("resolve user: %w", err)
	}

	if !user.IsActive {
		// Deactivated accounts do not come back through a login link.
		return nil, domain.ErrInvalidLink
	}

	if link.Email != "" {
		user.EmailVerified = true
	}
	if link.Phone != "" {
		user.PhoneVerified = true
	}
	user.LastLogin = &now
	user.UpdatedAt = now
	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	return user, nil
}
