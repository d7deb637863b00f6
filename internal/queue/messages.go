package queue

import (
	"time"

	"github.com/google/uuid"
)

// Call event kinds as delivered by the telephony backend.
const (
	EventKindAnswered = "answered"
	EventKindHangup   = "hangup"
)

// CallEventMessage is a call lifecycle event published by the telephony
// backend onto the call events topic.
type CallEventMessage struct {
	CallHandle string    `json:"call_handle"`
	Kind       string    `json:"kind"`
	Cause      string    `json:"cause,omitempty"`
	DurationS  int64     `json:"duration_s,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// CallStatusMessage is published by the outcome handler once per terminal
// outcome, for downstream notification consumers.
type CallStatusMessage struct {
	CallID        uuid.UUID  `json:"call_id"`
	CampaignID    uuid.UUID  `json:"campaign_id"`
	ContactID     uuid.UUID  `json:"contact_id"`
	PhoneNumber   string     `json:"phone_number"`
	CallHandle    string     `json:"call_handle,omitempty"`
	Outcome       string     `json:"outcome"`
	ContactStatus string     `json:"contact_status"`
	Attempt       int        `json:"attempt"`
	MaxAttempts   int        `json:"max_attempts"`
	DurationMs    int64      `json:"duration_ms,omitempty"`
	NextAttemptAt *time.Time `json:"next_attempt_at,omitempty"`
	Notes         string     `json:"notes,omitempty"`
	OccurredAt    time.Time  `json:"occurred_at"`
}
