package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/serenitygrove/membership-api/internal/core/domain"
	"github.com/serenitygrove/membership-api/internal/core/token"
)

func testIssuer() *token.Issuer {
	return token.NewIssuer("test-secret", 30*time.Minute, 7*24*time.Hour)
}

func testDevice() domain.DeviceInfo {
	return domain.DeviceInfo{Origin: "203.0.113.9", UserAgent: "test-agent/1.0"}
}

func TestSessionService_Create_MintsPair(t *testing.T) {
	store := newStubSessionStore()
	svc := NewSessionService(store, testIssuer(), discardLogger)

	pair, err := svc.Create(context.Background(), "user-1", testDevice())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("expected both tokens minted")
	}
	if pair.ExpiresIn != int64((30 * time.Minute).Seconds()) {
		t.Errorf("expires_in wrong: %d", pair.ExpiresIn)
	}

	sess, err := store.FindByID(context.Background(), pair.SessionID)
	if err != nil {
		t.Fatalf("session not stored: %v", err)
	}
	if sess.TokenVersion != 1 {
		t.Errorf("new session must start at version 1, got %d", sess.TokenVersion)
	}
	if !sess.IsActive {
		t.Error("new session must be active")
	}
}

func TestSessionService_Create_NeverStoresRawDeviceData(t *testing.T) {
	store := newStubSessionStore()
	svc := NewSessionService(store, testIssuer(), discardLogger)

	pair, err := svc.Create(context.Background(), "user-1", testDevice())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sess, _ := store.FindByID(context.Background(), pair.SessionID)
	if sess.OriginHash == "203.0.113.9" || sess.UserAgentHash == "test-agent/1.0" {
		t.Fatal("raw device data must not be persisted")
	}
	if sess.OriginHash == "" || sess.UserAgentHash == "" || sess.DeviceFingerprint == "" {
		t.Fatal("hashed device data missing")
	}
}

func TestSessionService_Refresh_RotatesVersion(t *testing.T) {
	store := newStubSessionStore()
	svc := NewSessionService(store, testIssuer(), discardLogger)

	pair, err := svc.Create(context.Background(), "user-1", testDevice())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	rotated, err := svc.Refresh(context.Background(), pair.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if rotated.SessionID != pair.SessionID {
		t.Error("session id must never change across refreshes")
	}
	if rotated.RefreshToken == pair.RefreshToken {
		t.Error("refresh must mint a new refresh token")
	}

	sess, _ := store.FindByID(context.Background(), pair.SessionID)
	if sess.TokenVersion != 2 {
		t.Errorf("expected version 2 after one refresh, got %d", sess.TokenVersion)
	}
}

// The previous refresh token stops working once a rotation has happened: its
// embedded version no longer matches the session.
func TestSessionService_Refresh_OldTokenRejectedAfterRotation(t *testing.T) {
	store := newStubSessionStore()
	svc := NewSessionService(store, testIssuer(), discardLogger)

	pair, _ := svc.Create(context.Background(), "user-1", testDevice())
	if _, err := svc.Refresh(context.Background(), pair.RefreshToken); err != nil {
		t.Fatalf("first refresh: %v", err)
	}

	_, err := svc.Refresh(context.Background(), pair.RefreshToken)
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for replayed token, got %v", err)
	}
}

// Of two concurrent refreshes carrying the same token, exactly one wins.
func TestSessionService_Refresh_ConcurrentSingleWinner(t *testing.T) {
	store := newStubSessionStore()
	svc := NewSessionService(store, testIssuer(), discardLogger)

	pair, _ := svc.Create(context.Background(), "user-1", testDevice())

	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := svc.Refresh(context.Background(), pair.RefreshToken)
			results <- err
		}()
	}

	var wins, losses int
	for i := 0; i < 2; i++ {
		if err := <-results; err == nil {
			wins++
		} else if errors.Is(err, domain.ErrUnauthorized) {
			losses++
		} else {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 || losses != 1 {
		t.Fatalf("expected exactly one winner, got %d wins and %d losses", wins, losses)
	}
}

func TestSessionService_Refresh_AccessTokenRejected(t *testing.T) {
	store := newStubSessionStore()
	svc := NewSessionService(store, testIssuer(), discardLogger)

	pair, _ := svc.Create(context.Background(), "user-1", testDevice())

	_, err := svc.Refresh(context.Background(), pair.AccessToken)
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for access token, got %v", err)
	}
}

func TestSessionService_Refresh_InvalidatedSession(t *testing.T) {
	store := newStubSessionStore()
	svc := NewSessionService(store, testIssuer(), discardLogger)

	pair, _ := svc.Create(context.Background(), "user-1", testDevice())
	if err := svc.Invalidate(context.Background(), pair.SessionID); err != nil {
		t.Fatalf("invalidate: %v", err)
	}

	_, err := svc.Refresh(context.Background(), pair.RefreshToken)
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for invalidated session, got %v", err)
	}
}

func TestSessionService_Refresh_ExpiredSession(t *testing.T) {
	store := newStubSessionStore()
	svc := NewSessionService(store, testIssuer(), discardLogger)

	pair, _ := svc.Create(context.Background(), "user-1", testDevice())

	// Force the stored session into the past.
	store.mu.Lock()
	store.sessions[pair.SessionID].ExpiresAt = time.Now().Add(-time.Minute)
	store.mu.Unlock()

	_, err := svc.Refresh(context.Background(), pair.RefreshToken)
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for expired session, got %v", err)
	}
}

func TestSessionService_Invalidate_Idempotent(t *testing.T) {
	store := newStubSessionStore()
	svc := NewSessionService(store, testIssuer(), discardLogger)

	pair, _ := svc.Create(context.Background(), "user-1", testDevice())
	for i := 0; i < 3; i++ {
		if err := svc.Invalidate(context.Background(), pair.SessionID); err != nil {
			t.Fatalf("invalidate run %d: %v", i, err)
		}
	}
}

func TestSessionService_InvalidateAllForUser(t *testing.T) {
	store := newStubSessionStore()
	svc := NewSessionService(store, testIssuer(), discardLogger)

	a, _ := svc.Create(context.Background(), "user-1", testDevice())
	b, _ := svc.Create(context.Background(), "user-1", testDevice())
	other, _ := svc.Create(context.Background(), "user-2", testDevice())

	if err := svc.InvalidateAllForUser(context.Background(), "user-1"); err != nil {
		t.Fatalf("invalidate all: %v", err)
	}

	for _, id := range []string{a.SessionID, b.SessionID} {
		sess, _ := store.FindByID(context.Background(), id)
		if sess.IsActive {
			t.Errorf("session %s should be inactive", id)
		}
	}
	sess, _ := store.FindByID(context.Background(), other.SessionID)
	if !sess.IsActive {
		t.Error("other user's session must stay active")
	}
}

func TestSessionService_CleanupExpired(t *testing.T) {
	store := newStubSessionStore()
	svc := NewSessionService(store, testIssuer(), discardLogger)

	live, _ := svc.Create(context.Background(), "user-1", testDevice())
	stale, _ := svc.Create(context.Background(), "user-1", testDevice())

	store.mu.Lock()
	store.sessions[stale.SessionID].ExpiresAt = time.Now().Add(-time.Hour)
	store.mu.Unlock()

	n, err := svc.CleanupExpired(context.Background())
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 swept session, got %d", n)
	}
	sess, _ := store.FindByID(context.Background(), live.SessionID)
	if !sess.IsActive {
		t.Error("unexpired session must survive the sweep")
	}
}
