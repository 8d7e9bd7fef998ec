package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dataontap/DeviceInsights-sub000/internal/model"
)

// InsertUsageRecord appends one row to the usage ledger. Records are
// immutable after this call.
func (s *Store) InsertUsageRecord(ctx context.Context, rec *model.UsageRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	const q = `INSERT INTO usage_records
		(credential_id, endpoint, method, origin_addr, status_code, latency_ms,
		 rate_limited, request_bytes, response_bytes, created_at)
		VALUES
		(:credential_id, :endpoint, :method, :origin_addr, :status_code, :latency_ms,
		 :rate_limited, :request_bytes, :response_bytes, :created_at)`

	id, err := s.insertGetID(ctx, q, rec)
	if err != nil {
		return fmt.Errorf("insert usage record: %w", err)
	}
	rec.ID = id
	return nil
}

// CountInWindow returns the number of ledger rows for a credential whose
// timestamp falls in [since, now]. This is the sliding-window read behind the
// rate limiter.
func (s *Store) CountInWindow(ctx context.Context, credentialID int64, since time.Time) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		s.rebind("SELECT COUNT(*) FROM usage_records WHERE credential_id = ? AND created_at >= ?"),
		credentialID, since)
	if err != nil {
		return 0, fmt.Errorf("count usage in window: %w", err)
	}
	return count, nil
}

// CountErrorsInWindow returns the number of error responses (status >= 400)
// for a credential since the given time.
func (s *Store) CountErrorsInWindow(ctx context.Context, credentialID int64, since time.Time) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		s.rebind(`SELECT COUNT(*) FROM usage_records
			WHERE credential_id = ? AND created_at >= ? AND status_code >= 400`),
		credentialID, since)
	if err != nil {
		return 0, fmt.Errorf("count errors in window: %w", err)
	}
	return count, nil
}

// OldestInWindow returns the timestamp of the oldest ledger row for a
// credential since the given time. Used to compute when a full window resets.
func (s *Store) OldestInWindow(ctx context.Context, credentialID int64, since time.Time) (time.Time, error) {
	var ts sql.NullTime
	err := s.db.GetContext(ctx, &ts,
		s.rebind(`SELECT MIN(created_at) FROM usage_records
			WHERE credential_id = ? AND created_at >= ?`),
		credentialID, since)
	if err != nil {
		return time.Time{}, fmt.Errorf("oldest in window: %w", err)
	}
	if !ts.Valid {
		// MIN over zero rows is NULL: the window is empty.
		return time.Time{}, nil
	}
	return ts.Time, nil
}

// ListRecentUsage returns the most recent ledger rows for the operator API.
// credentialID of zero means all credentials.
func (s *Store) ListRecentUsage(ctx context.Context, credentialID int64, limit int) ([]model.UsageRecord, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	var (
		list []model.UsageRecord
		err  error
	)
	if credentialID > 0 {
		err = s.db.SelectContext(ctx, &list,
			s.rebind("SELECT * FROM usage_records WHERE credential_id = ? ORDER BY created_at DESC LIMIT ?"),
			credentialID, limit)
	} else {
		err = s.db.SelectContext(ctx, &list,
			s.rebind("SELECT * FROM usage_records ORDER BY created_at DESC LIMIT ?"), limit)
	}
	if err != nil {
		return nil, fmt.Errorf("list recent usage: %w", err)
	}
	return list, nil
}

// SummarizeUsage aggregates the ledger per credential per day since the
// given time.
func (s *Store) SummarizeUsage(ctx context.Context, since time.Time) ([]model.UsageSummary, error) {
	dayExpr := "strftime('%Y-%m-%d', created_at)"
	if s.driver == DriverPostgres {
		dayExpr = "to_char(created_at, 'YYYY-MM-DD')"
	}

	q := fmt.Sprintf(`SELECT credential_id, %s AS day,
			COUNT(*) AS requests,
			SUM(CASE WHEN status_code >= 400 THEN 1 ELSE 0 END) AS errors,
			SUM(CASE WHEN rate_limited THEN 1 ELSE 0 END) AS rate_limited
		FROM usage_records
		WHERE created_at >= ?
		GROUP BY credential_id, day
		ORDER BY day DESC`, dayExpr)

	var list []model.UsageSummary
	if err := s.db.SelectContext(ctx, &list, s.rebind(q), since); err != nil {
		return nil, fmt.Errorf("summarize usage: %w", err)
	}
	return list, nil
}
