package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"novacontent/internal/queue"
)

var _ queue.Backend = (*Store)(nil)

const jobColumns = `id, queue, payload, state, attempts_made, max_attempts, backoff_ms,
    progress, last_error, result, available_at, created_at, updated_at, started_at, finished_at`

func (s *Store) InsertJob(ctx context.Context, job *queue.Job) error {
	payload, err := json.Marshal(job.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	_, err = s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO render_jobs (
            id, queue, production_id, payload, state, attempts_made, max_attempts,
            backoff_ms, progress, available_at, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		job.ID, job.Queue, job.Payload.ProductionID, string(payload), string(job.State),
		job.AttemptsMade, job.MaxAttempts, job.Backoff.Milliseconds(), job.Progress,
		formatTime(job.AvailableAt), formatTime(job.CreatedAt), formatTime(job.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// ClaimJob flips the oldest due waiting job to active and counts the
// delivery. The outer state guard makes a lost race return no row.
func (s *Store) ClaimJob(ctx context.Context, queueName string, now time.Time) (*queue.Job, error) {
	lock := ""
	if s.dialect == DialectPostgres {
		lock = " FOR UPDATE SKIP LOCKED"
	}
	ts := formatTime(now)

	row := s.db.QueryRowContext(ctx, s.rebind(
		`UPDATE render_jobs
         SET state = ?, attempts_made = attempts_made + 1, progress = 0,
             started_at = ?, updated_at = ?
         WHERE id = (
             SELECT id FROM render_jobs
             WHERE queue = ? AND state = ? AND available_at <= ?
             ORDER BY available_at, created_at
             LIMIT 1`+lock+`
         ) AND state = ?
         RETURNING `+jobColumns),
		string(queue.StateActive), ts, ts,
		queueName, string(queue.StateWaiting), ts,
		string(queue.StateWaiting),
	)

	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	return job, nil
}

func (s *Store) SetJobProgress(ctx context.Context, id string, progress int, now time.Time) error {
	_, err := s.db.ExecContext(ctx, s.rebind(
		`UPDATE render_jobs SET progress = ?, updated_at = ? WHERE id = ? AND state = ?`),
		progress, formatTime(now), id, string(queue.StateActive),
	)
	if err != nil {
		return fmt.Errorf("set job progress: %w", err)
	}
	return nil
}

// TouchJob refreshes an active job's heartbeat.
func (s *Store) TouchJob(ctx context.Context, id string, now time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.rebind(
		`UPDATE render_jobs SET updated_at = ? WHERE id = ? AND state = ?`),
		formatTime(now), id, string(queue.StateActive),
	)
	if err != nil {
		return false, fmt.Errorf("touch job: %w", err)
	}
	return affected(res)
}

func (s *Store) CompleteJob(ctx context.Context, id, result string, now time.Time) (bool, error) {
	ts := formatTime(now)
	res, err := s.db.ExecContext(ctx, s.rebind(
		`UPDATE render_jobs SET state = ?, result = ?, progress = 100, updated_at = ?, finished_at = ?
         WHERE id = ? AND state = ?`),
		string(queue.StateCompleted), result, ts, ts, id, string(queue.StateActive),
	)
	if err != nil {
		return false, fmt.Errorf("complete job: %w", err)
	}
	return affected(res)
}

func (s *Store) RetryJob(ctx context.Context, id, lastErr string, availableAt, now time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.rebind(
		`UPDATE render_jobs SET state = ?, last_error = ?, available_at = ?, updated_at = ?
         WHERE id = ? AND state = ?`),
		string(queue.StateWaiting), nullableString(lastErr), formatTime(availableAt), formatTime(now),
		id, string(queue.StateActive),
	)
	if err != nil {
		return false, fmt.Errorf("retry job: %w", err)
	}
	return affected(res)
}

func (s *Store) FailJob(ctx context.Context, id, lastErr string, now time.Time) (bool, error) {
	ts := formatTime(now)
	res, err := s.db.ExecContext(ctx, s.rebind(
		`UPDATE render_jobs SET state = ?, last_error = ?, updated_at = ?, finished_at = ?
         WHERE id = ? AND state = ?`),
		string(queue.StateFailed), nullableString(lastErr), ts, ts, id, string(queue.StateActive),
	)
	if err != nil {
		return false, fmt.Errorf("fail job: %w", err)
	}
	return affected(res)
}

// StalledJobs lists active jobs whose last heartbeat is older than before.
func (s *Store) StalledJobs(ctx context.Context, queueName string, before time.Time) ([]*queue.Job, error) {
	return s.queryJobs(ctx,
		`SELECT `+jobColumns+` FROM render_jobs
         WHERE queue = ? AND state = ? AND updated_at < ?
         ORDER BY updated_at`,
		queueName, string(queue.StateActive), formatTime(before),
	)
}

func (s *Store) GetJob(ctx context.Context, id string) (*queue.Job, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+jobColumns+` FROM render_jobs WHERE id = ?`), id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", queue.ErrJobNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// ListJobs returns the newest jobs first. An empty state lists every state.
func (s *Store) ListJobs(ctx context.Context, queueName string, state queue.State, limit int) ([]*queue.Job, error) {
	if limit <= 0 {
		limit = 50
	}
	if state == "" {
		return s.queryJobs(ctx,
			`SELECT `+jobColumns+` FROM render_jobs WHERE queue = ?
             ORDER BY created_at DESC LIMIT ?`,
			queueName, limit,
		)
	}
	return s.queryJobs(ctx,
		`SELECT `+jobColumns+` FROM render_jobs WHERE queue = ? AND state = ?
         ORDER BY created_at DESC LIMIT ?`,
		queueName, string(state), limit,
	)
}

func (s *Store) CountJobs(ctx context.Context, queueName string) (map[queue.State]int, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT state, COUNT(*) FROM render_jobs WHERE queue = ? GROUP BY state`), queueName)
	if err != nil {
		return nil, fmt.Errorf("count jobs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[queue.State]int)
	for rows.Next() {
		var (
			state string
			n     int
		)
		if err := rows.Scan(&state, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[queue.State(state)] = n
	}
	return counts, rows.Err()
}

func (s *Store) queryJobs(ctx context.Context, query string, args ...any) ([]*queue.Job, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var jobs []*queue.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func scanJob(row rowScanner) (*queue.Job, error) {
	var (
		job         queue.Job
		payload     string
		state       string
		backoffMS   int64
		lastErr     sql.NullString
		result      sql.NullString
		availableAt string
		createdAt   string
		updatedAt   string
		startedAt   sql.NullString
		finishedAt  sql.NullString
	)

	if err := row.Scan(
		&job.ID, &job.Queue, &payload, &state, &job.AttemptsMade, &job.MaxAttempts, &backoffMS,
		&job.Progress, &lastErr, &result, &availableAt, &createdAt, &updatedAt, &startedAt, &finishedAt,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(payload), &job.Payload); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	job.State = queue.State(state)
	job.Backoff = time.Duration(backoffMS) * time.Millisecond
	job.LastError = lastErr.String
	job.Result = result.String
	job.AvailableAt = parseTime(availableAt)
	job.CreatedAt = parseTime(createdAt)
	job.UpdatedAt = parseTime(updatedAt)
	job.StartedAt = parseNullTime(startedAt)
	job.FinishedAt = parseNullTime(finishedAt)

	return &job, nil
}
