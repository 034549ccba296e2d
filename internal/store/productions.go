package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"novacontent/internal/model"
)

var ErrInvalidTransition = errors.New("invalid status transition")

const productionColumns = `id, niche_id, title, description, tags, status,
    script_json, manifest_json, video_url, created_at, published_at`

// CreateProduction inserts a record in status scripting.
func (s *Store) CreateProduction(ctx context.Context, nicheID int64, title string) (*model.Production, error) {
	now := time.Now().UTC()

	var id int64
	err := s.db.QueryRowContext(ctx, s.rebind(
		`INSERT INTO productions (niche_id, title, status, created_at)
         VALUES (?, ?, ?, ?) RETURNING id`),
		nicheID, title, string(model.StatusScripting), formatTime(now),
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("insert production: %w", err)
	}

	return s.GetProduction(ctx, id)
}

func (s *Store) GetProduction(ctx context.Context, id int64) (*model.Production, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT `+productionColumns+` FROM productions WHERE id = ?`), id)

	p, err := scanProduction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", model.ErrProductionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get production: %w", err)
	}
	return p, nil
}

func (s *Store) ListProductions(ctx context.Context, limit int) ([]*model.Production, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT `+productionColumns+` FROM productions ORDER BY id DESC LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("list productions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*model.Production
	for rows.Next() {
		p, err := scanProduction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan production: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// SaveScript stores the generated script and its metadata. Only a production
// still in scripting accepts a script.
func (s *Store) SaveScript(ctx context.Context, id int64, script *model.Script, tags []string) error {
	scriptJSON, err := json.Marshal(script)
	if err != nil {
		return fmt.Errorf("marshal script: %w", err)
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}

	res, err := s.db.ExecContext(ctx, s.rebind(
		`UPDATE productions SET title = ?, description = ?, tags = ?, script_json = ?
         WHERE id = ? AND status = ?`),
		script.Title, script.Description(), string(tagsJSON), string(scriptJSON),
		id, string(model.StatusScripting),
	)
	if err != nil {
		return fmt.Errorf("save script: %w", err)
	}
	return s.expectTransition(ctx, res, id, model.StatusScripting)
}

// SaveManifest persists the manifest and moves scripting to rendering in a
// single statement.
func (s *Store) SaveManifest(ctx context.Context, id int64, m *model.Manifest) error {
	manifestJSON, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}

	res, err := s.db.ExecContext(ctx, s.rebind(
		`UPDATE productions SET manifest_json = ?, status = ?
         WHERE id = ? AND status = ?`),
		string(manifestJSON), string(model.StatusRendering), id, string(model.StatusScripting),
	)
	if err != nil {
		return fmt.Errorf("save manifest: %w", err)
	}
	return s.expectTransition(ctx, res, id, model.StatusScripting)
}

// MarkPublished moves rendering to published. It reports false without error
// when the record is not rendering, which makes repeated deliveries no-ops.
func (s *Store) MarkPublished(ctx context.Context, id int64, videoURL string, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.rebind(
		`UPDATE productions SET status = ?, video_url = ?, published_at = ?
         WHERE id = ? AND status = ?`),
		string(model.StatusPublished), videoURL, formatTime(at), id, string(model.StatusRendering),
	)
	if err != nil {
		return false, fmt.Errorf("mark published: %w", err)
	}
	return affected(res)
}

// MarkError moves a non-terminal production to error and clears the fields
// that are only valid for rendering or published records.
func (s *Store) MarkError(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.rebind(
		`UPDATE productions SET status = ?, manifest_json = NULL, video_url = NULL, published_at = NULL
         WHERE id = ? AND status IN (?, ?)`),
		string(model.StatusError), id, string(model.StatusScripting), string(model.StatusRendering),
	)
	if err != nil {
		return false, fmt.Errorf("mark error: %w", err)
	}
	return affected(res)
}

func (s *Store) expectTransition(ctx context.Context, res sql.Result, id int64, from model.Status) error {
	ok, err := affected(res)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	p, err := s.GetProduction(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: production %d is %s, expected %s", ErrInvalidTransition, id, p.Status, from)
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

func scanProduction(row rowScanner) (*model.Production, error) {
	var (
		p            model.Production
		status       string
		description  sql.NullString
		tags         sql.NullString
		scriptJSON   sql.NullString
		manifestJSON sql.NullString
		videoURL     sql.NullString
		createdAt    string
		publishedAt  sql.NullString
	)

	if err := row.Scan(
		&p.ID, &p.NicheID, &p.Title, &description, &tags, &status,
		&scriptJSON, &manifestJSON, &videoURL, &createdAt, &publishedAt,
	); err != nil {
		return nil, err
	}

	p.Status = model.Status(status)
	p.Description = description.String
	p.VideoURL = videoURL.String
	p.CreatedAt = parseTime(createdAt)
	p.PublishedAt = parseNullTime(publishedAt)

	if tags.Valid && tags.String != "" {
		if err := json.Unmarshal([]byte(tags.String), &p.Tags); err != nil {
			return nil, fmt.Errorf("decode tags: %w", err)
		}
	}
	if scriptJSON.Valid && scriptJSON.String != "" {
		p.Script = &model.Script{}
		if err := json.Unmarshal([]byte(scriptJSON.String), p.Script); err != nil {
			return nil, fmt.Errorf("decode script: %w", err)
		}
	}
	if manifestJSON.Valid && manifestJSON.String != "" {
		p.Manifest = &model.Manifest{}
		if err := json.Unmarshal([]byte(manifestJSON.String), p.Manifest); err != nil {
			return nil, fmt.Errorf("decode manifest: %w", err)
		}
	}

	return &p, nil
}
