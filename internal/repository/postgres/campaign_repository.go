package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/acme/campaign-dialer/internal/domain"
	"github.com/acme/campaign-dialer/internal/repository"
)

// CampaignRepository implements repository.CampaignRepository using PostgreSQL.
type CampaignRepository struct {
	db *sqlx.DB
}

// NewCampaignRepository constructs a new repository.
func NewCampaignRepository(db *sqlx.DB) *CampaignRepository {
	return &CampaignRepository{db: db}
}

const campaignColumns = `id, name, description, type, status,
	max_attempts, retry_interval_minutes, max_call_duration_s, simultaneous_calls,
	caller_id_number, caller_id_name, audio_file_path, queue_id, dtmf_options,
	created_at, updated_at, started_at, completed_at`

// Create inserts a new campaign.
func (r *CampaignRepository) Create(ctx context.Context, campaign *domain.Campaign) error {
	q := `INSERT INTO campaigns (` + campaignColumns + `) VALUES (
		:id, :name, :description, :type, :status,
		:max_attempts, :retry_interval_minutes, :max_call_duration_s, :simultaneous_calls,
		:caller_id_number, :caller_id_name, :audio_file_path, :queue_id, :dtmf_options,
		:created_at, :updated_at, :started_at, :completed_at
	)`

	params, err := campaignParams(campaign)
	if err != nil {
		return err
	}
	if _, err := r.db.NamedExecContext(ctx, q, params); err != nil {
		return fmt.Errorf("campaign repo: insert: %w", err)
	}
	return nil
}

// Get fetches a campaign by id.
func (r *CampaignRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Campaign, error) {
	row := r.db.QueryRowxContext(ctx, `SELECT `+campaignColumns+` FROM campaigns WHERE id = $1`, id)
	var record campaignRecord
	if err := row.StructScan(&record); err != nil {
		if err == sql.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("campaign repo: get: %w", err)
	}

	campaign := record.toDomain()
	return &campaign, nil
}

// Update updates campaign metadata and settings.
func (r *CampaignRepository) Update(ctx context.Context, campaign *domain.Campaign) error {
	q := `UPDATE campaigns SET
		name = :name,
		description = :description,
		status = :status,
		max_attempts = :max_attempts,
		retry_interval_minutes = :retry_interval_minutes,
		max_call_duration_s = :max_call_duration_s,
		simultaneous_calls = :simultaneous_calls,
		caller_id_number = :caller_id_number,
		caller_id_name = :caller_id_name,
		audio_file_path = :audio_file_path,
		queue_id = :queue_id,
		dtmf_options = :dtmf_options,
		updated_at = :updated_at,
		started_at = :started_at,
		completed_at = :completed_at
	 WHERE id = :id`

	params, err := campaignParams(campaign)
	if err != nil {
		return err
	}
	res, err := r.db.NamedExecContext(ctx, q, params)
	if err != nil {
		return fmt.Errorf("campaign repo: update: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("campaign repo: rows affected: %w", err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// UpdateStatus updates campaign status.
func (r *CampaignRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.CampaignStatus) error {
	res, err := r.db.ExecContext(ctx, `UPDATE campaigns SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("campaign repo: update status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("campaign repo: rows affected: %w", err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// List returns campaigns with optional pagination.
func (r *CampaignRepository) List(ctx context.Context, afterID *uuid.UUID, limit int) ([]*domain.Campaign, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows *sqlx.Rows
	var err error
	if afterID != nil {
		rows, err = r.db.QueryxContext(ctx, `SELECT `+campaignColumns+`
			FROM campaigns WHERE id > $1 ORDER BY id ASC LIMIT $2`, *afterID, limit)
	} else {
		rows, err = r.db.QueryxContext(ctx, `SELECT `+campaignColumns+`
			FROM campaigns ORDER BY id ASC LIMIT $1`, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("campaign repo: list: %w", err)
	}
	defer rows.Close()

	return scanCampaigns(rows)
}

// ListByStatuses returns campaigns whose status is one of the given set.
func (r *CampaignRepository) ListByStatuses(ctx context.Context, statuses []domain.CampaignStatus, limit int) ([]*domain.Campaign, error) {
	if limit <= 0 {
		limit = 100
	}
	if len(statuses) == 0 {
		return nil, nil
	}

	values := make([]string, 0, len(statuses))
	for _, s := range statuses {
		values = append(values, string(s))
	}

	query, args, err := sqlx.In(`SELECT `+campaignColumns+`
		FROM campaigns WHERE status IN (?) ORDER BY updated_at ASC LIMIT ?`, values, limit)
	if err != nil {
		return nil, fmt.Errorf("campaign repo: build query: %w", err)
	}

	rows, err := r.db.QueryxContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("campaign repo: list by statuses: %w", err)
	}
	defer rows.Close()

	return scanCampaigns(rows)
}

func scanCampaigns(rows *sqlx.Rows) ([]*domain.Campaign, error) {
	var results []*domain.Campaign
	for rows.Next() {
		var record campaignRecord
		if err := rows.StructScan(&record); err != nil {
			return nil, fmt.Errorf("campaign repo: scan: %w", err)
		}
		campaign := record.toDomain()
		results = append(results, &campaign)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("campaign repo: rows err: %w", err)
	}
	return results, nil
}

func campaignParams(campaign *domain.Campaign) (map[string]any, error) {
	dtmf, err := json.Marshal(campaign.Settings.DTMFOptions)
	if err != nil {
		return nil, fmt.Errorf("campaign repo: marshal dtmf options: %w", err)
	}
	return map[string]any{
		"id":                     campaign.ID,
		"name":                   campaign.Name,
		"description":            campaign.Description,
		"type":                   campaign.Type,
		"status":                 campaign.Status,
		"max_attempts":           campaign.Settings.MaxAttempts,
		"retry_interval_minutes": int(campaign.Settings.RetryInterval / time.Minute),
		"max_call_duration_s":    int(campaign.Settings.MaxCallDuration / time.Second),
		"simultaneous_calls":     campaign.Settings.SimultaneousCalls,
		"caller_id_number":       campaign.Settings.CallerIDNumber,
		"caller_id_name":         campaign.Settings.CallerIDName,
		"audio_file_path":        campaign.Settings.AudioFilePath,
		"queue_id":               campaign.Settings.QueueID,
		"dtmf_options":           dtmf,
		"created_at":             campaign.CreatedAt,
		"updated_at":             campaign.UpdatedAt,
		"started_at":             campaign.StartedAt,
		"completed_at":           campaign.CompletedAt,
	}, nil
}

type campaignRecord struct {
	ID                   uuid.UUID      `db:"id"`
	Name                 string         `db:"name"`
	Description          sql.NullString `db:"description"`
	Type                 string         `db:"type"`
	Status               string         `db:"status"`
	MaxAttempts          int            `db:"max_attempts"`
	RetryIntervalMinutes int            `db:"retry_interval_minutes"`
	MaxCallDurationS     int            `db:"max_call_duration_s"`
	SimultaneousCalls    int            `db:"simultaneous_calls"`
	CallerIDNumber       sql.NullString `db:"caller_id_number"`
	CallerIDName         sql.NullString `db:"caller_id_name"`
	AudioFilePath        sql.NullString `db:"audio_file_path"`
	QueueID              sql.NullString `db:"queue_id"`
	DTMFOptions          []byte         `db:"dtmf_options"`
	CreatedAt            sql.NullTime   `db:"created_at"`
	UpdatedAt            sql.NullTime   `db:"updated_at"`
	StartedAt            sql.NullTime   `db:"started_at"`
	CompletedAt          sql.NullTime   `db:"completed_at"`
}

func (r campaignRecord) toDomain() domain.Campaign {
	var dtmf map[string]string
	_ = json.Unmarshal(r.DTMFOptions, &dtmf)

	campaign := domain.Campaign{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description.String,
		Type:        domain.CampaignType(r.Type),
		Status:      domain.CampaignStatus(r.Status),
		Settings: domain.CampaignSettings{
			MaxAttempts:       r.MaxAttempts,
			RetryInterval:     time.Duration(r.RetryIntervalMinutes) * time.Minute,
			MaxCallDuration:   time.Duration(r.MaxCallDurationS) * time.Second,
			SimultaneousCalls: r.SimultaneousCalls,
			CallerIDNumber:    r.CallerIDNumber.String,
			CallerIDName:      r.CallerIDName.String,
			AudioFilePath:     r.AudioFilePath.String,
			QueueID:           r.QueueID.String,
			DTMFOptions:       dtmf,
		},
		CreatedAt: r.CreatedAt.Time,
		UpdatedAt: r.UpdatedAt.Time,
	}
	if r.StartedAt.Valid {
		t := r.StartedAt.Time
		campaign.StartedAt = &t
	}
	if r.CompletedAt.Valid {
		t := r.CompletedAt.Time
		campaign.CompletedAt = &t
	}
	return campaign
}
