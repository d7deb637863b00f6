package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/acme/campaign-dialer/internal/domain"
	"github.com/acme/campaign-dialer/internal/repository"
)

// CampaignStatisticsRepository implements repository.CampaignStatisticsRepository.
type CampaignStatisticsRepository struct {
	db *sqlx.DB
}

// NewCampaignStatisticsRepository builds the repository.
func NewCampaignStatisticsRepository(db *sqlx.DB) *CampaignStatisticsRepository {
	return &CampaignStatisticsRepository{db: db}
}

// Ensure ensures a row exists for the campaign.
func (r *CampaignStatisticsRepository) Ensure(ctx context.Context, campaignID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO campaign_statistics (campaign_id)
		VALUES ($1) ON CONFLICT (campaign_id) DO NOTHING`, campaignID)
	if err != nil {
		return fmt.Errorf("campaign stats: ensure: %w", err)
	}
	return nil
}

// Get retrieves statistics.
func (r *CampaignStatisticsRepository) Get(ctx context.Context, campaignID uuid.UUID) (*domain.CampaignStats, error) {
	row := r.db.QueryRowxContext(ctx, `SELECT total_contacts, attempts_started, answered_calls,
			completed_contacts, busy_outcomes, no_answer_outcomes, failed_contacts, retries_scheduled
		FROM campaign_statistics WHERE campaign_id = $1`, campaignID)

	var rec struct {
		TotalContacts     int64 `db:"total_contacts"`
		AttemptsStarted   int64 `db:"attempts_started"`
		AnsweredCalls     int64 `db:"answered_calls"`
		CompletedContacts int64 `db:"completed_contacts"`
		BusyOutcomes      int64 `db:"busy_outcomes"`
		NoAnswerOutcomes  int64 `db:"no_answer_outcomes"`
		FailedContacts    int64 `db:"failed_contacts"`
		RetriesScheduled  int64 `db:"retries_scheduled"`
	}
	if err := row.StructScan(&rec); err != nil {
		if err == sql.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("campaign stats: get: %w", err)
	}
	return &domain.CampaignStats{
		TotalContacts:     rec.TotalContacts,
		AttemptsStarted:   rec.AttemptsStarted,
		AnsweredCalls:     rec.AnsweredCalls,
		CompletedContacts: rec.CompletedContacts,
		BusyOutcomes:      rec.BusyOutcomes,
		NoAnswerOutcomes:  rec.NoAnswerOutcomes,
		FailedContacts:    rec.FailedContacts,
		RetriesScheduled:  rec.RetriesScheduled,
	}, nil
}

// ApplyDelta applies counter deltas atomically.
func (r *CampaignStatisticsRepository) ApplyDelta(ctx context.Context, campaignID uuid.UUID, delta repository.StatsDelta) error {
	_, err := r.db.ExecContext(ctx, `UPDATE campaign_statistics SET
		total_contacts = total_contacts + $2,
		attempts_started = attempts_started + $3,
		answered_calls = answered_calls + $4,
		completed_contacts = completed_contacts + $5,
		busy_outcomes = busy_outcomes + $6,
		no_answer_outcomes = no_answer_outcomes + $7,
		failed_contacts = failed_contacts + $8,
		retries_scheduled = retries_scheduled + $9,
		updated_at = NOW()
	WHERE campaign_id = $1`,
		campaignID,
		delta.TotalContactsDelta,
		delta.AttemptsStartedDelta,
		delta.AnsweredCallsDelta,
		delta.CompletedContactsDelta,
		delta.BusyOutcomesDelta,
		delta.NoAnswerOutcomesDelta,
		delta.FailedContactsDelta,
		delta.RetriesScheduledDelta,
	)
	if err != nil {
		return fmt.Errorf("campaign stats: apply delta: %w", err)
	}
	return nil
}
