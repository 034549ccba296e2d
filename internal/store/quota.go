package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// QuotaCount returns the request count for day, zero when no row exists.
func (s *Store) QuotaCount(ctx context.Context, day string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT request_count FROM quota_usage WHERE day = ?`), day).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read quota: %w", err)
	}
	return n, nil
}

// IncrementQuota creates the day's row at 1 or bumps it, in one statement.
func (s *Store) IncrementQuota(ctx context.Context, day string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, s.rebind(
		`INSERT INTO quota_usage (day, request_count) VALUES (?, 1)
         ON CONFLICT (day) DO UPDATE SET request_count = quota_usage.request_count + 1
         RETURNING request_count`), day).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("increment quota: %w", err)
	}
	return n, nil
}
