package domain

import (
	"time"

	"github.com/google/uuid"
)

// CampaignType distinguishes how an answered call is handled.
type CampaignType string

const (
	CampaignTypeIVR    CampaignType = "ivr"
	CampaignTypeAgent  CampaignType = "agent"
	CampaignTypeHybrid CampaignType = "hybrid"
)

// CampaignStatus enumerates lifecycle states of a campaign.
type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "draft"
	CampaignStatusScheduled CampaignStatus = "scheduled"
	CampaignStatusRunning   CampaignStatus = "running"
	CampaignStatusPaused    CampaignStatus = "paused"
	CampaignStatusCompleted CampaignStatus = "completed"
	CampaignStatusStopped   CampaignStatus = "stopped"
)

// DialableStatuses are the campaign statuses the dialer polls.
var DialableStatuses = []CampaignStatus{CampaignStatusRunning, CampaignStatusScheduled}

// Campaign models an outbound dialing campaign definition. The type is fixed
// at creation; status transitions are owned by the campaign service, the
// dialer only observes them.
type Campaign struct {
	ID          uuid.UUID
	Name        string
	Description string
	Type        CampaignType
	Status      CampaignStatus
	Settings    CampaignSettings
	Schedules   []ScheduleWindow
	CreatedAt   time.Time
	UpdatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// CampaignSettings captures per-campaign dialing parameters.
type CampaignSettings struct {
	MaxAttempts       int
	RetryInterval     time.Duration
	MaxCallDuration   time.Duration
	SimultaneousCalls int
	CallerIDNumber    string
	CallerIDName      string
	AudioFilePath     string
	QueueID           string
	DTMFOptions       map[string]string
}

// ScheduleWindow is an allowed calling window for one day of the week.
// StartMinute and EndMinute are minutes of day interpreted in the window's
// own timezone; both bounds are inclusive. An empty Timezone means UTC.
type ScheduleWindow struct {
	DayOfWeek   time.Weekday
	StartMinute int
	EndMinute   int
	Timezone    string
	Enabled     bool
}

// CampaignStats aggregates campaign counters maintained by the dialer.
type CampaignStats struct {
	TotalContacts     int64
	AttemptsStarted   int64
	AnsweredCalls     int64
	CompletedContacts int64
	BusyOutcomes      int64
	NoAnswerOutcomes  int64
	FailedContacts    int64
	RetriesScheduled  int64
}
