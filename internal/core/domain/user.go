package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role is the access level of a user. Checks are always whitelist-based;
// there is no implied hierarchy between roles.
type Role string

const (
	RoleAnonymous Role = "anonymous"
	RoleGuest     Role = "guest"
	RoleMember    Role = "member"
	RoleSecretary Role = "secretary"
	RoleTreasurer Role = "treasurer"
	RoleHost      Role = "host"
	RoleAdmin     Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAnonymous, RoleGuest, RoleMember, RoleSecretary, RoleTreasurer, RoleHost, RoleAdmin:
		return true
	}
	return false
}

// NotificationPreferences is a per-channel opt-in map, e.g.
// {"email_notifications": true, "meeting_reminders": true}.
type NotificationPreferences map[string]bool

// DefaultNotificationPreferences returns the opt-in defaults for a new
// identified account.
func DefaultNotificationPreferences() NotificationPreferences {
	return NotificationPreferences{
		"email_notifications": true,
		"meeting_reminders":   true,
		"service_updates":     false,
		"marketing":           false,
	}
}

// AnonymousNotificationPreferences returns the defaults for anonymous
// accounts: no channel that would require a stored address.
func AnonymousNotificationPreferences() NotificationPreferences {
	return NotificationPreferences{
		"email_notifications": false,
		"meeting_reminders":   true,
		"service_updates":     false,
		"marketing":           false,
	}
}

// User is the identity anchor. Email and phone are optional: anonymous
// accounts carry neither. The display name is never required to be real.
type User struct {
	ID            string `json:"id" bson:"_id"`
	Email         string `json:"email,omitempty" bson:"email,omitempty"`
	EmailVerified bool   `json:"email_verified" bson:"email_verified"`
	Phone         string `json:"phone,omitempty" bson:"phone,omitempty"`
	PhoneVerified bool   `json:"phone_verified" bson:"phone_verified"`

	PreferredName string     `json:"preferred_name,omitempty" bson:"preferred_name,omitempty"`
	SobrietyDate  *time.Time `json:"sobriety_date,omitempty" bson:"sobriety_date,omitempty"`
	Timezone      string     `json:"timezone" bson:"timezone"`
	Language      string     `json:"language" bson:"language"`

	// Privacy toggles. The most restrictive value for each is false.
	ShowSobrietyDate bool `json:"show_sobriety_date" bson:"show_sobriety_date"`
	ShowInDirectory  bool `json:"show_in_directory" bson:"show_in_directory"`
	AllowContact     bool `json:"allow_contact" bson:"allow_contact"`

	IsActive   bool `json:"is_active" bson:"is_active"`
	IsVerified bool `json:"is_verified" bson:"is_verified"`
	Role       Role `json:"role" bson:"role"`

	NotificationPreferences NotificationPreferences `json:"notification_preferences" bson:"notification_preferences"`

	CreatedAt time.Time  `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" bson:"updated_at"`
	LastLogin *time.Time `json:"last_login,omitempty" bson:"last_login,omitempty"`

	// AnonymizedAt marks a completed anonymization run; a second run
	// short-circuits on it so the operation stays idempotent.
	AnonymizedAt *time.Time `json:"-" bson:"anonymized_at,omitempty"`
}

// Anonymized reports whether the user has already been through the
// anonymization engine.
func (u *User) Anonymized() bool {
	return u.AnonymizedAt != nil
}

// NewUser returns a guest user keyed by destination. Exactly one of email or
// phone is expected to be set; the matching verified flag starts true because
// the destination was just proven by a redeemed magic link.
func NewUser(email, phone string) *User {
	now := time.Now().UTC()
	return &User{
		ID:                      uuid.NewString(),
		Email:                   email,
		EmailVerified:           email != "",
		Phone:                   phone,
		PhoneVerified:           phone != "",
		Timezone:                "America/Chicago",
		Language:                "en",
		IsActive:                true,
		Role:                    RoleGuest,
		NotificationPreferences: DefaultNotificationPreferences(),
		CreatedAt:               now,
		UpdatedAt:               now,
	}
}

// NewAnonymousUser returns an account with no destination at all. Hidden from
// the directory and unreachable by design of the defaults.
func NewAnonymousUser() *User {
	now := time.Now().UTC()
	return &User{
		ID:                      uuid.NewString(),
		PreferredName:           AnonymousLabel(),
		Timezone:                "America/Chicago",
		Language:                "en",
		IsActive:                true,
		Role:                    RoleAnonymous,
		NotificationPreferences: AnonymousNotificationPreferences(),
		CreatedAt:               now,
		UpdatedAt:               now,
	}
}

// DirectoryEntry is a privacy-enforced projection of a User suitable for
// showing to other members.
type DirectoryEntry struct {
	ID            string     `json:"id"`
	PreferredName string     `json:"preferred_name"`
	Role          Role       `json:"role"`
	SobrietyDate  *time.Time `json:"sobriety_date,omitempty"`
	SobrietyDays  int        `json:"sobriety_days,omitempty"`
	AllowContact  bool       `json:"allow_contact"`
}

// DirectoryView applies the user's privacy toggles and returns the projection
// other members are allowed to see.
func (u *User) DirectoryView(now time.Time) DirectoryEntry {
	entry := DirectoryEntry{
		ID:            u.ID,
		PreferredName: "Anonymous",
		Role:          u.Role,
		AllowContact:  u.AllowContact,
	}
	if u.ShowInDirectory && u.PreferredName != "" {
		entry.PreferredName = u.PreferredName
	}
	if u.ShowSobrietyDate && u.SobrietyDate != nil {
		d := *u.SobrietyDate
		entry.SobrietyDate = &d
		entry.SobrietyDays = int(now.Sub(d).Hours() / 24)
	}
	return entry
}
