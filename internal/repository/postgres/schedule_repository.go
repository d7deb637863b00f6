package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/acme/campaign-dialer/internal/domain"
)

// ScheduleRepository persists campaign calling windows.
type ScheduleRepository struct {
	db *sqlx.DB
}

// NewScheduleRepository creates a new repository.
func NewScheduleRepository(db *sqlx.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

// Replace replaces all schedule windows for a campaign.
func (r *ScheduleRepository) Replace(ctx context.Context, campaignID uuid.UUID, windows []domain.ScheduleWindow) error {
	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM campaign_schedules WHERE campaign_id = $1`, campaignID); err != nil {
			return fmt.Errorf("schedules: delete existing: %w", err)
		}

		if len(windows) == 0 {
			return nil
		}

		stmt, err := tx.PreparexContext(ctx, `INSERT INTO campaign_schedules
			(campaign_id, day_of_week, start_minute, end_minute, timezone, enabled)
			VALUES ($1, $2, $3, $4, $5, $6)`)
		if err != nil {
			return fmt.Errorf("schedules: prepare insert: %w", err)
		}
		defer stmt.Close()

		for _, w := range windows {
			tz := w.Timezone
			if tz == "" {
				tz = "UTC"
			}
			if _, err := stmt.ExecContext(ctx, campaignID, int(w.DayOfWeek), w.StartMinute, w.EndMinute, tz, w.Enabled); err != nil {
				return fmt.Errorf("schedules: insert: %w", err)
			}
		}
		return nil
	})
}

// List retrieves schedule windows for a campaign.
func (r *ScheduleRepository) List(ctx context.Context, campaignID uuid.UUID) ([]domain.ScheduleWindow, error) {
	rows, err := r.db.QueryxContext(ctx, `SELECT day_of_week, start_minute, end_minute, timezone, enabled
		FROM campaign_schedules WHERE campaign_id = $1 ORDER BY day_of_week, start_minute`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("schedules: query: %w", err)
	}
	defer rows.Close()

	var windows []domain.ScheduleWindow
	for rows.Next() {
		var row struct {
			Day      int    `db:"day_of_week"`
			StartMin int    `db:"start_minute"`
			EndMin   int    `db:"end_minute"`
			Timezone string `db:"timezone"`
			Enabled  bool   `db:"enabled"`
		}
		if err := rows.StructScan(&row); err != nil {
			return nil, fmt.Errorf("schedules: scan: %w", err)
		}

		windows = append(windows, domain.ScheduleWindow{
			DayOfWeek:   time.Weekday(row.Day),
			StartMinute: row.StartMin,
			EndMinute:   row.EndMin,
			Timezone:    row.Timezone,
			Enabled:     row.Enabled,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("schedules: rows err: %w", err)
	}

	return windows, nil
}
