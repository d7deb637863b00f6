package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/acme/campaign-dialer/internal/domain"
	apperrors "github.com/acme/campaign-dialer/pkg/errors"
)

var (
	// ErrNotFound indicates the entity was not located.
	ErrNotFound = apperrors.ErrNotFound
	// ErrConflict indicates a unique constraint violation.
	ErrConflict = apperrors.ErrConflict
)

// CampaignRepository manages campaign metadata persistence.
type CampaignRepository interface {
	Create(ctx context.Context, campaign *domain.Campaign) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Campaign, error)
	Update(ctx context.Context, campaign *domain.Campaign) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.CampaignStatus) error
	List(ctx context.Context, afterID *uuid.UUID, limit int) ([]*domain.Campaign, error)
	ListByStatuses(ctx context.Context, statuses []domain.CampaignStatus, limit int) ([]*domain.Campaign, error)
}

// ScheduleRepository manages campaign calling windows.
type ScheduleRepository interface {
	Replace(ctx context.Context, campaignID uuid.UUID, windows []domain.ScheduleWindow) error
	List(ctx context.Context, campaignID uuid.UUID) ([]domain.ScheduleWindow, error)
}

// ContactRepository stores campaign contacts and their attempt state.
type ContactRepository interface {
	BulkInsert(ctx context.Context, contacts []*domain.Contact) error

	// NextEligible returns up to limit contacts ready for a new attempt:
	// pending contacts, plus busy/no-answer/failed contacts whose retry
	// window has elapsed, ordered next_attempt_at ASC NULLS FIRST,
	// created_at ASC.
	NextEligible(ctx context.Context, campaignID uuid.UUID, now time.Time, limit int) ([]*domain.Contact, error)

	// MarkDialing atomically transitions the contact to calling, increments
	// its attempt counter and stamps last_call_at, returning the updated row.
	MarkDialing(ctx context.Context, contactID uuid.UUID, at time.Time) (*domain.Contact, error)

	SetStatus(ctx context.Context, contactID uuid.UUID, status domain.ContactStatus) error

	// ApplyOutcome records the terminal result of one attempt cycle in a
	// single read-modify-write statement.
	ApplyOutcome(ctx context.Context, contactID uuid.UUID, status domain.ContactStatus, nextAttemptAt *time.Time) error

	ListByCampaign(ctx context.Context, campaignID uuid.UUID, status domain.ContactStatus, limit int) ([]*domain.Contact, error)
}

// CampaignStatisticsRepository keeps aggregate counters.
type CampaignStatisticsRepository interface {
	Ensure(ctx context.Context, campaignID uuid.UUID) error
	Get(ctx context.Context, campaignID uuid.UUID) (*domain.CampaignStats, error)
	ApplyDelta(ctx context.Context, campaignID uuid.UUID, delta StatsDelta) error
}

// CallRecordStore persists per-attempt call records.
type CallRecordStore interface {
	Create(ctx context.Context, record *domain.CallRecord) error
	SetHandle(ctx context.Context, record *domain.CallRecord) error
	MarkAnswered(ctx context.Context, record *domain.CallRecord, at time.Time) error
	Finalize(ctx context.Context, record *domain.CallRecord) error
	ListByCampaign(ctx context.Context, campaignID uuid.UUID, limit int, pagingState []byte) ([]domain.CallRecord, []byte, error)
}

// StatsDelta captures atomic counter increments.
type StatsDelta struct {
	TotalContactsDelta     int64
	AttemptsStartedDelta   int64
	AnsweredCallsDelta     int64
	CompletedContactsDelta int64
	BusyOutcomesDelta      int64
	NoAnswerOutcomesDelta  int64
	FailedContactsDelta    int64
	RetriesScheduledDelta  int64
}
