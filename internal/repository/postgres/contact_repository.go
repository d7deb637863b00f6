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

// ContactRepository persists campaign contacts.
type ContactRepository struct {
	db *sqlx.DB
}

// NewContactRepository constructs the repository.
func NewContactRepository(db *sqlx.DB) *ContactRepository {
	return &ContactRepository{db: db}
}

const contactColumns = `id, campaign_id, phone_number, name, custom_data, status,
	attempts, last_call_at, next_attempt_at, created_at, updated_at`

// BulkInsert inserts a batch of contacts.
func (r *ContactRepository) BulkInsert(ctx context.Context, contacts []*domain.Contact) error {
	if len(contacts) == 0 {
		return nil
	}

	query := `INSERT INTO contacts (` + contactColumns + `) VALUES (
		:id, :campaign_id, :phone_number, :name, :custom_data, :status,
		:attempts, :last_call_at, :next_attempt_at, :created_at, :updated_at
	) ON CONFLICT (id) DO NOTHING`

	rows := make([]map[string]any, 0, len(contacts))
	for _, c := range contacts {
		custom, err := json.Marshal(c.CustomData)
		if err != nil {
			return fmt.Errorf("contacts: marshal custom data: %w", err)
		}
		rows = append(rows, map[string]any{
			"id":              c.ID,
			"campaign_id":     c.CampaignID,
			"phone_number":    c.PhoneNumber,
			"name":            c.Name,
			"custom_data":     custom,
			"status":          c.Status,
			"attempts":        c.Attempts,
			"last_call_at":    c.LastCallAt,
			"next_attempt_at": c.NextAttemptAt,
			"created_at":      c.CreatedAt,
			"updated_at":      c.CreatedAt,
		})
	}

	if _, err := r.db.NamedExecContext(ctx, query, rows); err != nil {
		return fmt.Errorf("contacts: bulk insert: %w", err)
	}

	return nil
}

// NextEligible fetches contacts due for a new attempt. Exhausted contacts
// carry a null next_attempt_at and a failed status, so the retry arm of the
// predicate never matches them again.
func (r *ContactRepository) NextEligible(ctx context.Context, campaignID uuid.UUID, now time.Time, limit int) ([]*domain.Contact, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := r.db.QueryxContext(ctx, `SELECT `+contactColumns+`
		FROM contacts
		WHERE campaign_id = $1
		  AND (status = 'pending'
		       OR (status IN ('no_answer', 'busy', 'failed')
		           AND next_attempt_at IS NOT NULL AND next_attempt_at < $2))
		ORDER BY next_attempt_at ASC NULLS FIRST, created_at ASC
		LIMIT $3`, campaignID, now, limit)
	if err != nil {
		return nil, fmt.Errorf("contacts: select eligible: %w", err)
	}
	defer rows.Close()

	return scanContacts(rows)
}

// MarkDialing atomically transitions a contact into the calling state and
// bumps its attempt counter.
func (r *ContactRepository) MarkDialing(ctx context.Context, contactID uuid.UUID, at time.Time) (*domain.Contact, error) {
	row := r.db.QueryRowxContext(ctx, `UPDATE contacts SET
			status = 'calling',
			attempts = attempts + 1,
			last_call_at = $2,
			next_attempt_at = NULL,
			updated_at = $2
		WHERE id = $1
		RETURNING `+contactColumns, contactID, at)

	var rec contactRecord
	if err := row.StructScan(&rec); err != nil {
		if err == sql.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("contacts: mark dialing: %w", err)
	}
	contact := rec.toDomain()
	return &contact, nil
}

// SetStatus updates only the contact status.
func (r *ContactRepository) SetStatus(ctx context.Context, contactID uuid.UUID, status domain.ContactStatus) error {
	res, err := r.db.ExecContext(ctx, `UPDATE contacts SET status = $1, updated_at = NOW() WHERE id = $2`, status, contactID)
	if err != nil {
		return fmt.Errorf("contacts: set status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("contacts: rows affected: %w", err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ApplyOutcome records the terminal result of an attempt cycle.
func (r *ContactRepository) ApplyOutcome(ctx context.Context, contactID uuid.UUID, status domain.ContactStatus, nextAttemptAt *time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE contacts SET
			status = $1,
			next_attempt_at = $2,
			updated_at = NOW()
		WHERE id = $3`, status, nextAttemptAt, contactID)
	if err != nil {
		return fmt.Errorf("contacts: apply outcome: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("contacts: rows affected: %w", err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ListByCampaign lists contacts, optionally filtered by status.
func (r *ContactRepository) ListByCampaign(ctx context.Context, campaignID uuid.UUID, status domain.ContactStatus, limit int) ([]*domain.Contact, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT ` + contactColumns + ` FROM contacts WHERE campaign_id = $1`
	args := []any{campaignID}
	if status != "" {
		query += ` AND status = $2 ORDER BY created_at ASC LIMIT $3`
		args = append(args, status, limit)
	} else {
		query += ` ORDER BY created_at ASC LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("contacts: list: %w", err)
	}
	defer rows.Close()

	return scanContacts(rows)
}

func scanContacts(rows *sqlx.Rows) ([]*domain.Contact, error) {
	var results []*domain.Contact
	for rows.Next() {
		var rec contactRecord
		if err := rows.StructScan(&rec); err != nil {
			return nil, fmt.Errorf("contacts: scan: %w", err)
		}
		contact := rec.toDomain()
		results = append(results, &contact)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("contacts: rows err: %w", err)
	}
	return results, nil
}

type contactRecord struct {
	ID            uuid.UUID      `db:"id"`
	CampaignID    uuid.UUID      `db:"campaign_id"`
	PhoneNumber   string         `db:"phone_number"`
	Name          sql.NullString `db:"name"`
	CustomData    []byte         `db:"custom_data"`
	Status        string         `db:"status"`
	Attempts      int            `db:"attempts"`
	LastCallAt    sql.NullTime   `db:"last_call_at"`
	NextAttemptAt sql.NullTime   `db:"next_attempt_at"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
}

func (r contactRecord) toDomain() domain.Contact {
	var custom map[string]any
	_ = json.Unmarshal(r.CustomData, &custom)

	contact := domain.Contact{
		ID:          r.ID,
		CampaignID:  r.CampaignID,
		PhoneNumber: r.PhoneNumber,
		Name:        r.Name.String,
		CustomData:  custom,
		Status:      domain.ContactStatus(r.Status),
		Attempts:    r.Attempts,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if r.LastCallAt.Valid {
		t := r.LastCallAt.Time
		contact.LastCallAt = &t
	}
	if r.NextAttemptAt.Valid {
		t := r.NextAttemptAt.Time
		contact.NextAttemptAt = &t
	}
	return contact
}
