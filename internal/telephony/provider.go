package telephony

import (
	"context"
	"time"

	"github.com/acme/campaign-dialer/internal/domain"
)

// Well-known hangup cause codes from the backend.
const (
	CauseNormalClearing = "NORMAL_CLEARING"
	CauseAnswered       = "ANSWERED"
	CauseUserBusy       = "USER_BUSY"
	CauseBusy           = "BUSY"
	CauseNoAnswer       = "NO_ANSWER"
	CauseNoAnswerAlt    = "NOANSWER"
)

// EventKind distinguishes call lifecycle events.
type EventKind string

const (
	EventAnswered EventKind = "answered"
	EventHangup   EventKind = "hangup"
)

// Event is an asynchronous call lifecycle notification from the backend.
type Event struct {
	CallHandle string
	Kind       EventKind
	Cause      string
	Duration   time.Duration
	OccurredAt time.Time
}

// OriginateRequest describes one call attempt to place. The payload fields
// used depend on the campaign type: IVR plays AudioFilePath, agent campaigns
// bridge into QueueID once answered, hybrid campaigns do both gated on a
// DTMF digit.
type OriginateRequest struct {
	CampaignType   domain.CampaignType
	PhoneNumber    string
	CallerIDNumber string
	CallerIDName   string
	AudioFilePath  string
	QueueID        string
	DTMFOptions    map[string]string
	MaxDuration    time.Duration
}

// Provider abstracts the telephony backend. Originate returns an opaque call
// handle; terminal outcomes arrive later on Events. Enforcement of
// MaxDuration belongs to the backend and surfaces as a hangup event.
type Provider interface {
	Originate(ctx context.Context, req OriginateRequest) (string, error)
	Events() <-chan Event
}
