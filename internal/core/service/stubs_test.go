package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/serenitygrove/membership-api/internal/core/domain"
	"github.com/serenitygrove/membership-api/internal/core/ports"
)

var discardLogger = zerolog.Nop()

// ---------------------------------------------------------------------------
// In-memory user store
// ---------------------------------------------------------------------------

type stubUserStore struct {
	mu        sync.Mutex
	users     map[string]*domain.User
	createErr error
	updateErr error
}

func newStubUserStore() *stubUserStore {
	return &stubUserStore{users: make(map[string]*domain.User)}
}

func (r *stubUserStore) put(u *domain.User) {
	clone := *u
	r.users[u.ID] = &clone
}

func (r *stubUserStore) Create(_ context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	for _, existing := range r.users {
		if u.Email != "" && existing.Email == u.Email {
			return domain.ErrUserExists
		}
		if u.Phone != "" && existing.Phone == u.Phone {
			return domain.ErrUserExists
		}
	}
	r.put(u)
	return nil
}

func (r *stubUserStore) FindByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	clone := *u
	return &clone, nil
}

func (r *stubUserStore) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	return r.findBy(func(u *domain.User) bool { return u.Email != "" && u.Email == email })
}

func (r *stubUserStore) FindByPhone(_ context.Context, phone string) (*domain.User, error) {
	return r.findBy(func(u *domain.User) bool { return u.Phone != "" && u.Phone == phone })
}

func (r *stubUserStore) findBy(match func(*domain.User) bool) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if match(u) {
			clone := *u
			return &clone, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *stubUserStore) Update(_ context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return r.updateErr
	}
	if _, ok := r.users[u.ID]; !ok {
		return domain.ErrUserNotFound
	}
	r.put(u)
	return nil
}

func (r *stubUserStore) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return domain.ErrUserNotFound
	}
	delete(r.users, id)
	return nil
}

// List applies the same filters the real Mongo repo would use.
func (r *stubUserStore) List(_ context.Context, f ports.ListUsersFilter) ([]*domain.User, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []*domain.User
	for _, u := range r.users {
		if f.Role != "" && u.Role != f.Role {
			continue
		}
		if f.IsActive != nil && u.IsActive != *f.IsActive {
			continue
		}
		if f.Search != "" {
			nameMatch := strings.Contains(strings.ToLower(u.PreferredName), strings.ToLower(f.Search))
			emailMatch := strings.Contains(strings.ToLower(u.Email), strings.ToLower(f.Search))
			if !nameMatch && !emailMatch {
				continue
			}
		}
		clone := *u
		matched = append(matched, &clone)
	}

	total := int64(len(matched))
	skip := (f.Page - 1) * f.Limit
	if skip < 0 {
		skip = 0
	}
	if skip > len(matched) {
		return nil, total, nil
	}
	end := skip + f.Limit
	if f.Limit <= 0 || end > len(matched) {
		end = len(matched)
	}
	return matched[skip:end], total, nil
}

func (r *stubUserStore) Directory(_ context.Context) ([]*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.User
	for _, u := range r.users {
		if u.IsActive && u.ShowInDirectory {
			clone := *u
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *stubUserStore) Stats(_ context.Context, monthAgo, weekAgo time.Time) (*ports.UserStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := &ports.UserStats{
		UsersByRole:      make(map[domain.Role]int64),
		ActiveByPosition: make(map[domain.ServicePosition]int64),
	}
	for _, u := range r.users {
		stats.TotalUsers++
		if u.IsActive {
			stats.ActiveUsers++
		}
		if u.CreatedAt.After(monthAgo) {
			stats.NewUsersThisMonth++
		}
		if u.LastLogin != nil && u.LastLogin.After(weekAgo) {
			stats.RecentLogins++
		}
		stats.UsersByRole[u.Role]++
	}
	return stats, nil
}

// ---------------------------------------------------------------------------
// In-memory magic link store
// ---------------------------------------------------------------------------

type stubLinkStore struct {
	mu        sync.Mutex
	byHash    map[string]*domain.MagicLink
	createErr error
}

func newStubLinkStore() *stubLinkStore {
	return &stubLinkStore{byHash: make(map[string]*domain.MagicLink)}
}

func (r *stubLinkStore) Create(_ context.Context, link *domain.MagicLink) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	clone := *link
	r.byHash[link.TokenHash] = &clone
	return nil
}

// Redeem mirrors the real Mongo compare-and-set: only an unused, unexpired
// link flips, everything else is ErrInvalidLink.
func (r *stubLinkStore) Redeem(_ context.Context, tokenHash string, now time.Time, originHash string) (*domain.MagicLink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	link, ok := r.byHash[tokenHash]
	if !ok || link.IsUsed || !now.Before(link.ExpiresAt) {
		return nil, domain.ErrInvalidLink
	}
	link.IsUsed = true
	link.UsedAt = &now
	link.UsedByOrigin = originHash
	clone := *link
	return &clone, nil
}

func (r *stubLinkStore) AnonymizeByDestination(_ context.Context, email, phone string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, link := range r.byHash {
		if (email != "" && link.Email == email) || (phone != "" && link.Phone == phone) {
			link.Email = ""
			link.Phone = ""
			link.UsedByOrigin = domain.HashSensitive(link.UsedByOrigin)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// In-memory session store
// ---------------------------------------------------------------------------

type stubSessionStore struct {
	mu       sync.Mutex
	sessions map[string]*domain.LoginSession
	severed  bool // last AnonymizeForUser sever flag
}

func newStubSessionStore() *stubSessionStore {
	return &stubSessionStore{sessions: make(map[string]*domain.LoginSession)}
}

func (r *stubSessionStore) Create(_ context.Context, s *domain.LoginSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *s
	r.sessions[s.ID] = &clone
	return nil
}

func (r *stubSessionStore) FindByID(_ context.Context, id string) (*domain.LoginSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	clone := *s
	return &clone, nil
}

// Rotate mirrors the real Mongo compare-and-set on the token version.
func (r *stubSessionStore) Rotate(_ context.Context, id string, expectedVersion int64, newExpiry time.Time) (*domain.LoginSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	s, ok := r.sessions[id]
	if !ok || !s.IsActive || s.TokenVersion != expectedVersion || !now.Before(s.ExpiresAt) {
		return nil, domain.ErrUnauthorized
	}
	s.TokenVersion++
	s.ExpiresAt = newExpiry
	s.LastActivity = now
	clone := *s
	return &clone, nil
}

func (r *stubSessionStore) Invalidate(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		s.IsActive = false
	}
	return nil
}

func (r *stubSessionStore) InvalidateAllForUser(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.UserID == userID {
			s.IsActive = false
		}
	}
	return nil
}

func (r *stubSessionStore) DeactivateExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, s := range r.sessions {
		if s.IsActive && !now.Before(s.ExpiresAt) {
			s.IsActive = false
			n++
		}
	}
	return n, nil
}

func (r *stubSessionStore) AnonymizeForUser(_ context.Context, userID string, sever bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.severed = sever
	for _, s := range r.sessions {
		if s.UserID != userID {
			continue
		}
		s.DeviceFingerprint = domain.HashSensitive(s.DeviceFingerprint)
		s.UserAgentHash = domain.HashSensitive(s.UserAgentHash)
		s.OriginHash = domain.HashSensitive(s.OriginHash)
		s.IsActive = false
		if sever {
			s.UserID = ""
		}
	}
	return nil
}

func (r *stubSessionStore) CountByUser(_ context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, s := range r.sessions {
		if s.UserID == userID {
			n++
		}
	}
	return n, nil
}

// ---------------------------------------------------------------------------
// In-memory audit store
// ---------------------------------------------------------------------------

type stubAuditStore struct {
	mu        sync.Mutex
	rows      []*domain.UserAuditLog
	appendErr error
	severed   []string // user ids Sever was called with
}

func newStubAuditStore() *stubAuditStore {
	return &stubAuditStore{}
}

func (r *stubAuditStore) Append(_ context.Context, row *domain.UserAuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.appendErr != nil {
		return r.appendErr
	}
	clone := *row
	r.rows = append(r.rows, &clone)
	return nil
}

func (r *stubAuditStore) Sever(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.severed = append(r.severed, userID)
	for _, row := range r.rows {
		if row.UserID == userID {
			row.UserID = ""
			row.ResourceType = ""
			row.ResourceID = ""
			row.OriginHash = domain.HashSensitive(row.OriginHash)
			row.UserAgentHash = domain.HashSensitive(row.UserAgentHash)
		}
	}
	return nil
}

func (r *stubAuditStore) CountByUser(_ context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, row := range r.rows {
		if row.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (r *stubAuditStore) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.rows))
	for _, row := range r.rows {
		out = append(out, row.Action)
	}
	return out
}

// ---------------------------------------------------------------------------
// In-memory attendance store
// ---------------------------------------------------------------------------

type stubAttendanceStore struct {
	mu   sync.Mutex
	rows []*domain.MeetingAttendance
}

func newStubAttendanceStore() *stubAttendanceStore {
	return &stubAttendanceStore{}
}

func (r *stubAttendanceStore) add(row domain.MeetingAttendance) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, &row)
}

func (r *stubAttendanceStore) AnonymizeForUser(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.UserID == userID {
			row.UserID = ""
			row.AnonymousID = domain.NewAnonymousID("anon")
			row.ShareAttendance = false
		}
	}
	return nil
}

func (r *stubAttendanceStore) CountByUser(_ context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, row := range r.rows {
		if row.UserID == userID {
			n++
		}
	}
	return n, nil
}

// ---------------------------------------------------------------------------
// In-memory assignment store
// ---------------------------------------------------------------------------

type stubAssignmentStore struct {
	mu          sync.Mutex
	assignments map[string]*domain.ServiceAssignment
}

func newStubAssignmentStore() *stubAssignmentStore {
	return &stubAssignmentStore{assignments: make(map[string]*domain.ServiceAssignment)}
}

func (r *stubAssignmentStore) Create(_ context.Context, a *domain.ServiceAssignment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *a
	r.assignments[a.ID] = &clone
	return nil
}

func (r *stubAssignmentStore) FindByID(_ context.Context, id string) (*domain.ServiceAssignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.assignments[id]
	if !ok {
		return nil, domain.ErrAssignmentNotFound
	}
	clone := *a
	return &clone, nil
}

func (r *stubAssignmentStore) HasActive(_ context.Context, userID string, position domain.ServicePosition) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.assignments {
		if a.UserID == userID && a.Position == position && a.IsActive {
			return true, nil
		}
	}
	return false, nil
}

func (r *stubAssignmentStore) ListActiveByUser(_ context.Context, userID string) ([]*domain.ServiceAssignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.ServiceAssignment
	for _, a := range r.assignments {
		if a.UserID == userID && a.IsActive {
			clone := *a
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *stubAssignmentStore) Deactivate(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.assignments[id]
	if !ok {
		return domain.ErrAssignmentNotFound
	}
	a.IsActive = false
	return nil
}

func (r *stubAssignmentStore) AnonymizeForUser(_ context.Context, userID string, sever bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.assignments {
		if a.UserID != userID {
			continue
		}
		a.Notes = domain.RedactedNote
		if sever {
			a.UserID = ""
		}
	}
	return nil
}

func (r *stubAssignmentStore) CountByUser(_ context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, a := range r.assignments {
		if a.UserID == userID {
			n++
		}
	}
	return n, nil
}

// ---------------------------------------------------------------------------
// Transaction runner, notifier, limiter, recorder
// ---------------------------------------------------------------------------

// stubTx runs fn inline. The stores above are not transactional, which is
// fine: the tests assert on the sequence's outcome, not on rollback.
type stubTx struct {
	calls int
}

func (t *stubTx) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	t.calls++
	return fn(ctx)
}

type stubNotifier struct {
	mu      sync.Mutex
	sent    []string // raw tokens, in order
	dest    string
	purpose domain.LinkPurpose
	sendErr error
}

func (n *stubNotifier) Send(_ context.Context, rawToken, destination string, purpose domain.LinkPurpose) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.sendErr != nil {
		return n.sendErr
	}
	n.sent = append(n.sent, rawToken)
	n.dest = destination
	n.purpose = purpose
	return nil
}

func (n *stubNotifier) lastToken() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.sent) == 0 {
		return ""
	}
	return n.sent[len(n.sent)-1]
}

// stubLimiter mirrors the redis limiter: Reserve is SET NX, Release is DEL.
type stubLimiter struct {
	deny     bool
	err      error
	reserved map[string]struct{}
}

func (l *stubLimiter) Reserve(_ context.Context, destination string, _ time.Duration) (bool, error) {
	if l.err != nil {
		return false, l.err
	}
	if l.deny {
		return false, nil
	}
	if l.reserved == nil {
		l.reserved = make(map[string]struct{})
	}
	if _, held := l.reserved[destination]; held {
		return false, nil
	}
	l.reserved[destination] = struct{}{}
	return true, nil
}

func (l *stubLimiter) Release(_ context.Context, destination string) error {
	delete(l.reserved, destination)
	return nil
}

type stubRecorder struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
}

func (r *stubRecorder) Record(_ context.Context, entry domain.AuditEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
}

func (r *stubRecorder) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Action)
	}
	return out
}
