package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/serenitygrove/membership-api/internal/core/domain"
)

type linkFixture struct {
	links    *stubLinkStore
	users    *stubUserStore
	sessions *stubSessionStore
	notifier *stubNotifier
	limiter  *stubLimiter
	recorder *stubRecorder
	svc      *MagicLinkService
}

func newLinkFixture() *linkFixture {
	f := &linkFixture{
		links:    newStubLinkStore(),
		users:    newStubUserStore(),
		sessions: newStubSessionStore(),
		notifier: &stubNotifier{},
		limiter:  &stubLimiter{},
		recorder: &stubRecorder{},
	}
	sessionSvc := NewSessionService(f.sessions, testIssuer(), discardLogger)
	f.svc = NewMagicLinkService(
		f.links, f.users, sessionSvc, f.notifier, f.limiter, f.recorder,
		MagicLinkConfig{LinkTTL: 15 * time.Minute, Cooldown: 5 * time.Minute},
		discardLogger,
	)
	return f
}

func TestMagicLink_Request_StoresOnlyDigest(t *testing.T) {
	f := newLinkFixture()

	ttl, err := f.svc.RequestLink(context.Background(), "a@example.com", "", domain.PurposeLogin)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ttl != 15*time.Minute {
		t.Errorf("ttl wrong: %v", ttl)
	}

	raw := f.notifier.lastToken()
	if raw == "" {
		t.Fatal("notifier did not receive a token")
	}
	if _, ok := f.links.byHash[raw]; ok {
		t.Fatal("raw token must never be a storage key")
	}
	link, ok := f.links.byHash[domain.HashToken(raw)]
	if !ok {
		t.Fatal("link not stored under its digest")
	}
	if link.Email != "a@example.com" || link.IsUsed {
		t.Errorf("stored link wrong: %+v", link)
	}
}

func TestMagicLink_Request_ExactlyOneDestination(t *testing.T) {
	f := newLinkFixture()

	if _, err := f.svc.RequestLink(context.Background(), "", "", domain.PurposeLogin); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("no destination: expected ErrInvalidInput, got %v", err)
	}
	if _, err := f.svc.RequestLink(context.Background(), "a@example.com", "+15550100", domain.PurposeLogin); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("both destinations: expected ErrInvalidInput, got %v", err)
	}
}

func TestMagicLink_Request_UnknownPurpose(t *testing.T) {
	f := newLinkFixture()
	_, err := f.svc.RequestLink(context.Background(), "a@example.com", "", "escalate")
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestMagicLink_Request_Cooldown(t *testing.T) {
	f := newLinkFixture()
	f.limiter.deny = true

	_, err := f.svc.RequestLink(context.Background(), "a@example.com", "", domain.PurposeLogin)
	if !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if len(f.links.byHash) != 0 {
		t.Error("no link may be persisted while the cooldown holds")
	}
}

// The window only guards pending links: once a link is redeemed, the same
// destination may request a fresh one immediately.
func TestMagicLink_Request_CooldownClearsOnRedemption(t *testing.T) {
	f := newLinkFixture()

	if _, err := f.svc.RequestLink(context.Background(), "a@example.com", "", domain.PurposeLogin); err != nil {
		t.Fatalf("first request: %v", err)
	}
	if _, err := f.svc.RequestLink(context.Background(), "a@example.com", "", domain.PurposeLogin); !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited while the link is pending, got %v", err)
	}

	if _, err := f.svc.VerifyLink(context.Background(), f.notifier.lastToken(), testDevice()); err != nil {
		t.Fatalf("verify: %v", err)
	}

	if _, err := f.svc.RequestLink(context.Background(), "a@example.com", "", domain.PurposeLogin); err != nil {
		t.Fatalf("expected issuance right after redemption, got %v", err)
	}
}

// The cooldown is advisory: a broken limiter must not block logins.
func TestMagicLink_Request_LimiterErrorIssuesAnyway(t *testing.T) {
	f := newLinkFixture()
	f.limiter.err = errors.New("redis down")

	if _, err := f.svc.RequestLink(context.Background(), "a@example.com", "", domain.PurposeLogin); err != nil {
		t.Fatalf("expected issuance despite limiter error, got %v", err)
	}
	if len(f.links.byHash) != 1 {
		t.Error("link should have been persisted")
	}
}

// Delivery failure is logged and counted, never surfaced: the link is already
// persisted and redeemable if the notification went out partially.
func TestMagicLink_Request_NotifierFailureTolerated(t *testing.T) {
	f := newLinkFixture()
	f.notifier.sendErr = errors.New("smtp refused")

	if _, err := f.svc.RequestLink(context.Background(), "a@example.com", "", domain.PurposeLogin); err != nil {
		t.Fatalf("expected success despite notifier failure, got %v", err)
	}
}

func TestMagicLink_Verify_FirstLoginCreatesGuest(t *testing.T) {
	f := newLinkFixture()
	f.svc.RequestLink(context.Background(), "new@example.com", "", domain.PurposeLogin)

	res, err := f.svc.VerifyLink(context.Background(), f.notifier.lastToken(), testDevice())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.User == nil || res.User.Email != "new@example.com" {
		t.Fatalf("unexpected user: %+v", res.User)
	}
	if res.User.Role != domain.RoleGuest {
		t.Errorf("first login must create a guest, got %s", res.User.Role)
	}
	if !res.User.EmailVerified {
		t.Error("redeeming an email link proves the address")
	}
	if res.User.LastLogin == nil {
		t.Error("last login not stamped")
	}
	if res.AccessToken == "" || res.RefreshToken == "" {
		t.Error("session tokens missing")
	}
}

func TestMagicLink_Verify_ExistingUserKeepsAccount(t *testing.T) {
	f := newLinkFixture()
	existing := domain.NewUser("known@example.com", "")
	existing.Role = domain.RoleMember
	existing.EmailVerified = false
	f.users.put(existing)

	f.svc.RequestLink(context.Background(), "known@example.com", "", domain.PurposeLogin)
	res, err := f.svc.VerifyLink(context.Background(), f.notifier.lastToken(), testDevice())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.User.ID != existing.ID {
		t.Error("must resolve the existing account, not create a new one")
	}
	if res.User.Role != domain.RoleMember {
		t.Error("role must survive a login")
	}
	if !res.User.EmailVerified {
		t.Error("login re-proves the email destination")
	}
}

// Two concurrent redemptions of the same token produce exactly one session.
func TestMagicLink_Verify_DoubleRedemptionSingleWinner(t *testing.T) {
	f := newLinkFixture()
	f.svc.RequestLink(context.Background(), "a@example.com", "", domain.PurposeLogin)
	raw := f.notifier.lastToken()

	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := f.svc.VerifyLink(context.Background(), raw, testDevice())
			results <- err
		}()
	}

	var wins, losses int
	for i := 0; i < 2; i++ {
		if err := <-results; err == nil {
			wins++
		} else if errors.Is(err, domain.ErrInvalidLink) {
			losses++
		} else {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 || losses != 1 {
		t.Fatalf("expected exactly one winner, got %d wins and %d losses", wins, losses)
	}
}

func TestMagicLink_Verify_Expired(t *testing.T) {
	f := newLinkFixture()
	f.svc.RequestLink(context.Background(), "a@example.com", "", domain.PurposeLogin)
	raw := f.notifier.lastToken()

	f.links.mu.Lock()
	f.links.byHash[domain.HashToken(raw)].ExpiresAt = time.Now().UTC().Add(-time.Minute)
	f.links.mu.Unlock()

	_, err := f.svc.VerifyLink(context.Background(), raw, testDevice())
	if !errors.Is(err, domain.ErrInvalidLink) {
		t.Fatalf("expected ErrInvalidLink for expired link, got %v", err)
	}
}

func TestMagicLink_Verify_UnknownToken(t *testing.T) {
	f := newLinkFixture()
	_, err := f.svc.VerifyLink(context.Background(), "never-issued", testDevice())
	if !errors.Is(err, domain.ErrInvalidLink) {
		t.Fatalf("expected ErrInvalidLink, got %v", err)
	}
}

// A reset link proves ownership of the address but never opens a session. It
// is still consumed: rejecting without consuming would leave a redeemable
// token lying around.
func TestMagicLink_Verify_ResetPurposeConsumedButRejected(t *testing.T) {
	f := newLinkFixture()
	f.svc.RequestLink(context.Background(), "a@example.com", "", domain.PurposeReset)
	raw := f.notifier.lastToken()

	_, err := f.svc.VerifyLink(context.Background(), raw, testDevice())
	if !errors.Is(err, domain.ErrInvalidLink) {
		t.Fatalf("expected ErrInvalidLink for reset purpose, got %v", err)
	}

	link := f.links.byHash[domain.HashToken(raw)]
	if !link.IsUsed {
		t.Error("rejected link must still be consumed")
	}
}

func TestMagicLink_Verify_DeactivatedUser(t *testing.T) {
	f := newLinkFixture()
	gone := domain.NewUser("gone@example.com", "")
	gone.IsActive = false
	f.users.put(gone)

	f.svc.RequestLink(context.Background(), "gone@example.com", "", domain.PurposeLogin)
	_, err := f.svc.VerifyLink(context.Background(), f.notifier.lastToken(), testDevice())
	if !errors.Is(err, domain.ErrInvalidLink) {
		t.Fatalf("expected ErrInvalidLink for deactivated user, got %v", err)
	}
	if n, _ := f.sessions.CountByUser(context.Background(), gone.ID); n != 0 {
		t.Error("no session may be opened for a deactivated user")
	}
}

func TestMagicLink_Verify_StoresHashedOriginOnly(t *testing.T) {
	f := newLinkFixture()
	f.svc.RequestLink(context.Background(), "a@example.com", "", domain.PurposeLogin)
	raw := f.notifier.lastToken()

	if _, err := f.svc.VerifyLink(context.Background(), raw, testDevice()); err != nil {
		t.Fatalf("verify: %v", err)
	}

	link := f.links.byHash[domain.HashToken(raw)]
	if link.UsedByOrigin == testDevice().Origin {
		t.Fatal("raw origin must never be stored on the link")
	}
	if link.UsedByOrigin == "" {
		t.Fatal("hashed origin of use missing")
	}
}
