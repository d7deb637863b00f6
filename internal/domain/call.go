package domain

import (
	"time"

	"github.com/google/uuid"
)

// CallOutcome is the terminal classification of one call attempt.
type CallOutcome string

const (
	CallOutcomeAnswered    CallOutcome = "answered"
	CallOutcomeBusy        CallOutcome = "busy"
	CallOutcomeNoAnswer    CallOutcome = "no_answer"
	CallOutcomeFailed      CallOutcome = "failed"
	CallOutcomeRejected    CallOutcome = "rejected"
	CallOutcomeTransferred CallOutcome = "transferred"
	CallOutcomeCancelled   CallOutcome = "cancelled"
)

// CallRecord captures one call attempt. Created at initiation with a failed
// placeholder outcome, finalized exactly once by the outcome handler, then
// immutable.
type CallRecord struct {
	ID         uuid.UUID
	CampaignID uuid.UUID
	ContactID  uuid.UUID
	CallHandle string
	Outcome    CallOutcome
	Duration   time.Duration
	WaitTime   time.Duration
	AnsweredAt *time.Time
	EndedAt    *time.Time
	Notes      string
	CreatedAt  time.Time
}
