package scylla

import (
	"context"
	"fmt"
	"time"

	"github.com/gocql/gocql"
	"github.com/google/uuid"

	"github.com/acme/campaign-dialer/internal/domain"
)

// CallRecordStore persists call attempt records in Scylla. Records live in
// call_records_by_campaign partitioned by (campaign_id, day bucket); a
// by-handle lookup table supports reconciliation by backend call handle.
type CallRecordStore struct {
	session *gocql.Session
}

// NewCallRecordStore creates a new store.
func NewCallRecordStore(session *gocql.Session) *CallRecordStore {
	return &CallRecordStore{session: session}
}

// Create inserts the placeholder record written at initiation time.
func (s *CallRecordStore) Create(ctx context.Context, record *domain.CallRecord) error {
	bucket := bucketDate(record.CreatedAt)
	if err := s.session.Query(`INSERT INTO call_records_by_campaign
		(campaign_id, bucket, record_id, contact_id, call_handle, outcome, duration_ms, wait_ms, answered_at, ended_at, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.CampaignID.String(), bucket, record.ID.String(), record.ContactID.String(),
		record.CallHandle, string(record.Outcome), int64(0), int64(0), nil, nil, record.Notes, record.CreatedAt,
	).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("call records: insert: %w", err)
	}
	return nil
}

// SetHandle records the backend call handle returned by a successful
// dispatch, and indexes the record by handle.
func (s *CallRecordStore) SetHandle(ctx context.Context, record *domain.CallRecord) error {
	bucket := bucketDate(record.CreatedAt)
	if err := s.session.Query(`UPDATE call_records_by_campaign SET call_handle = ?
		WHERE campaign_id = ? AND bucket = ? AND record_id = ?`,
		record.CallHandle, record.CampaignID.String(), bucket, record.ID.String(),
	).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("call records: set handle: %w", err)
	}

	if err := s.session.Query(`INSERT INTO call_records_by_handle
		(call_handle, record_id, campaign_id, contact_id, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		record.CallHandle, record.ID.String(), record.CampaignID.String(), record.ContactID.String(), record.CreatedAt,
	).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("call records: index handle: %w", err)
	}
	return nil
}

// MarkAnswered stamps the answer time on the record.
func (s *CallRecordStore) MarkAnswered(ctx context.Context, record *domain.CallRecord, at time.Time) error {
	bucket := bucketDate(record.CreatedAt)
	waitMs := int64(at.Sub(record.CreatedAt) / time.Millisecond)
	if waitMs < 0 {
		waitMs = 0
	}
	if err := s.session.Query(`UPDATE call_records_by_campaign SET answered_at = ?, wait_ms = ?
		WHERE campaign_id = ? AND bucket = ? AND record_id = ?`,
		at, waitMs, record.CampaignID.String(), bucket, record.ID.String(),
	).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("call records: mark answered: %w", err)
	}
	return nil
}

// Finalize writes the terminal outcome. Called exactly once per record.
func (s *CallRecordStore) Finalize(ctx context.Context, record *domain.CallRecord) error {
	bucket := bucketDate(record.CreatedAt)
	if err := s.session.Query(`UPDATE call_records_by_campaign
		SET outcome = ?, duration_ms = ?, wait_ms = ?, answered_at = ?, ended_at = ?, notes = ?
		WHERE campaign_id = ? AND bucket = ? AND record_id = ?`,
		string(record.Outcome), int64(record.Duration/time.Millisecond), int64(record.WaitTime/time.Millisecond),
		record.AnsweredAt, record.EndedAt, record.Notes,
		record.CampaignID.String(), bucket, record.ID.String(),
	).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("call records: finalize: %w", err)
	}
	return nil
}

// ListByCampaign lists call records for a campaign with pagination.
func (s *CallRecordStore) ListByCampaign(ctx context.Context, campaignID uuid.UUID, limit int, pagingState []byte) ([]domain.CallRecord, []byte, error) {
	if limit <= 0 {
		limit = 100
	}

	query := s.session.Query(`SELECT bucket, record_id, contact_id, call_handle, outcome, duration_ms, wait_ms, answered_at, ended_at, notes, created_at
		FROM call_records_by_campaign WHERE campaign_id = ?`, campaignID.String()).WithContext(ctx)
	query = query.PageSize(limit)
	if len(pagingState) > 0 {
		query = query.PageState(pagingState)
	}

	iter := query.Iter()
	records := make([]domain.CallRecord, 0, limit)

	var (
		bucket     time.Time
		recordID   string
		contactID  string
		handle     string
		outcome    string
		durationMs int64
		waitMs     int64
		answeredAt *time.Time
		endedAt    *time.Time
		notes      string
		createdAt  time.Time
	)

	for iter.Scan(&bucket, &recordID, &contactID, &handle, &outcome, &durationMs, &waitMs, &answeredAt, &endedAt, &notes, &createdAt) {
		id, err := uuid.Parse(recordID)
		if err != nil {
			continue
		}
		cid, err := uuid.Parse(contactID)
		if err != nil {
			continue
		}

		rec := domain.CallRecord{
			ID:         id,
			CampaignID: campaignID,
			ContactID:  cid,
			CallHandle: handle,
			Outcome:    domain.CallOutcome(outcome),
			Duration:   time.Duration(durationMs) * time.Millisecond,
			WaitTime:   time.Duration(waitMs) * time.Millisecond,
			Notes:      notes,
			CreatedAt:  createdAt,
		}
		if answeredAt != nil {
			t := *answeredAt
			rec.AnsweredAt = &t
		}
		if endedAt != nil {
			t := *endedAt
			rec.EndedAt = &t
		}
		records = append(records, rec)

		answeredAt = nil
		endedAt = nil
	}

	if err := iter.Close(); err != nil {
		return nil, nil, fmt.Errorf("call records: iter close: %w", err)
	}

	return records, iter.PageState(), nil
}

func bucketDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
