package domain

import "time"

// MeetingAttendance records that someone was in a meeting. UserID is optional
// from the start (anonymous attendance) and severed entirely on
// anonymization, leaving only a fresh AnonymousID so the group can still
// count heads without correlating them to anyone.
type MeetingAttendance struct {
	ID           string `bson:"_id"`
	UserID       string `bson:"user_id,omitempty"`
	MeetingID    string `bson:"meeting_id"`
	OccurrenceID string `bson:"occurrence_id,omitempty"`

	JoinedAt        time.Time  `bson:"joined_at"`
	LeftAt          *time.Time `bson:"left_at,omitempty"`
	DurationMinutes int        `bson:"duration_minutes,omitempty"`

	AnonymousID     string `bson:"anonymous_id,omitempty"`
	ShareAttendance bool   `bson:"share_attendance"`

	CreatedAt time.Time `bson:"created_at"`
}
