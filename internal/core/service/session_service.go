package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/serenitygrove/membership-api/internal/api/metrics"
	"github.com/serenitygrove/membership-api/internal/core/domain"
	"github.com/serenitygrove/membership-api/internal/core/ports"
	"github.com/serenitygrove/membership-api/internal/core/token"
)

// SessionService implements the session lifecycle: issue, rotate, invalidate.
// Raw device data is hashed on the way into the store and never persisted.
type SessionService struct {
	sessions ports.SessionRepository
	issuer   *token.Issuer
	log      zerolog.Logger
}

func NewSessionService(sessions ports.SessionRepository, issuer *token.Issuer, log zerolog.Logger) *SessionService {
	return &SessionService{sessions: sessions, issuer: issuer, log: log}
}

// Create opens a session and mints its first access/refresh pair. The session
// record's expiry tracks the access-token TTL; refreshes push it forward.
func (s *SessionService) Create(ctx context.Context, userID string, device domain.DeviceInfo) (*ports.TokenPair, error) {
	sess := domain.NewLoginSession(userID, device, s.issuer.AccessTTL())
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return s.mintPair(sess)
}

// Refresh rotates the token pair. The embedded session id must map to an
// active, unexpired session still at the version the token was minted
// against; the version bump is a compare-and-set, so of two concurrent
// refreshes with the same token exactly one wins and the loser observes
// domain.ErrUnauthorized. The session id never changes.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (*ports.TokenPair, error) {
	claims, err := s.issuer.Verify(refreshToken, token.KindRefresh)
	if err != nil {
		metrics.SessionRefreshesTotal.WithLabelValues("unauthorized").Inc()
		return nil, domain.ErrUnauthorized
	}

	newExpiry := time.Now().UTC().Add(s.issuer.AccessTTL())
	sess, err := s.sessions.Rotate(ctx, claims.SessionID, claims.Version, newExpiry)
	if err != nil {
		metrics.SessionRefreshesTotal.WithLabelValues("unauthorized").Inc()
		return nil, domain.ErrUnauthorized
	}

	pair, err := s.mintPair(sess)
	if err != nil {
		return nil, err
	}
	metrics.SessionRefreshesTotal.WithLabelValues("success").Inc()
	return pair, nil
}

// Invalidate deactivates one session. Idempotent; Invalidated is terminal.
func (s *SessionService) Invalidate(ctx context.Context, sessionID string) error {
	return s.sessions.Invalidate(ctx, sessionID)
}

// InvalidateAllForUser deactivates every session of the user. Idempotent.
func (s *SessionService) InvalidateAllForUser(ctx context.Context, userID string) error {
	return s.sessions.InvalidateAllForUser(ctx, userID)
}

// CleanupExpired sweeps lapsed sessions. Expiry is also read-checked on every
// rotation, so the sweep is housekeeping rather than a correctness mechanism.
func (s *SessionService) CleanupExpired(ctx context.Context) (int64, error) {
	n, err := s.sessions.DeactivateExpired(ctx, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("cleanup sessions: %w", err)
	}
	if n > 0 {
		s.log.Info().Int64("count", n).Msg("expired sessions deactivated")
	}
	return n, nil
}

func (s *SessionService) mintPair(sess *domain.LoginSession) (*ports.TokenPair, error) {
	access, err := s.issuer.Access(sess.UserID, sess.ID)
	if err != nil {
		return nil, fmt.Errorf("mint access token: %w", err)
	}
	refresh, err := s.issuer.Refresh(sess.UserID, sess.ID, sess.TokenVersion)
	if err != nil {
		return nil, fmt.Errorf("mint refresh token: %w", err)
	}
	return &ports.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		SessionID:    sess.ID,
		ExpiresIn:    int64(s.issuer.AccessTTL().Seconds()),
	}, nil
}
