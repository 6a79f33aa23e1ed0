package domain

import (
	"time"

	"github.com/google/uuid"
)

// ServicePosition is a trusted-servant role within a group or meeting.
type ServicePosition string

const (
	PositionChairperson ServicePosition = "chairperson"
	PositionSecretary   ServicePosition = "secretary"
	PositionTreasurer   ServicePosition = "treasurer"
	PositionChair       ServicePosition = "chair"
	PositionCoChair     ServicePosition = "co_chair"
	PositionHost        ServicePosition = "host"
	PositionCoHost      ServicePosition = "co_host"
	PositionTechHost    ServicePosition = "tech_host"
	PositionLiterature  ServicePosition = "literature"
	PositionOutreach    ServicePosition = "outreach"
	PositionTwelfthStep ServicePosition = "twelfth_step"
)

// Valid reports whether p is a known service position.
func (p ServicePosition) Valid() bool {
	switch p {
	case PositionChairperson, PositionSecretary, PositionTreasurer, PositionChair,
		PositionCoChair, PositionHost, PositionCoHost, PositionTechHost,
		PositionLiterature, PositionOutreach, PositionTwelfthStep:
		return true
	}
	return false
}

// ServiceAssignment ties a user to a service position for a period. UserID is
// nullable so anonymization can sever the reference while the assignment row,
// and with it the group's service history, survives.
type ServiceAssignment struct {
	ID        string          `json:"id" bson:"_id"`
	UserID    string          `json:"user_id,omitempty" bson:"user_id,omitempty"`
	Position  ServicePosition `json:"position" bson:"position"`
	GroupID   string          `json:"group_id,omitempty" bson:"group_id,omitempty"`
	MeetingID string          `json:"meeting_id,omitempty" bson:"meeting_id,omitempty"`

	StartDate time.Time  `json:"start_date" bson:"start_date"`
	EndDate   *time.Time `json:"end_date,omitempty" bson:"end_date,omitempty"`
	IsActive  bool       `json:"is_active" bson:"is_active"`

	Notes     string `json:"notes,omitempty" bson:"notes,omitempty"`
	CreatedBy string `json:"created_by,omitempty" bson:"created_by,omitempty"`

	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// NewServiceAssignment creates an active assignment.
func NewServiceAssignment(userID string, position ServicePosition, createdBy string) *ServiceAssignment {
	now := time.Now().UTC()
	return &ServiceAssignment{
		ID:        uuid.NewString(),
		UserID:    userID,
		Position:  position,
		StartDate: now,
		IsActive:  true,
		CreatedBy: createdBy,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
