package domain

import (
	"time"

	"github.com/google/uuid"
)

// ContactStatus enumerates the attempt lifecycle of a single contact.
type ContactStatus string

const (
	ContactStatusPending   ContactStatus = "pending"
	ContactStatusCalling   ContactStatus = "calling"
	ContactStatusAnswered  ContactStatus = "answered"
	ContactStatusBusy      ContactStatus = "busy"
	ContactStatusNoAnswer  ContactStatus = "no_answer"
	ContactStatusFailed    ContactStatus = "failed"
	ContactStatusCompleted ContactStatus = "completed"
	ContactStatusExcluded  ContactStatus = "excluded"
)

// Contact is one phone number targeted by a campaign. Created pending by the
// upload step and mutated only by the dialer's selection and outcome steps.
type Contact struct {
	ID            uuid.UUID
	CampaignID    uuid.UUID
	PhoneNumber   string
	Name          string
	CustomData    map[string]any
	Status        ContactStatus
	Attempts      int
	LastCallAt    *time.Time
	NextAttemptAt *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
