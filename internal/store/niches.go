package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"novacontent/internal/model"
)

const nicheColumns = `id, name, tone, target_audience, visual_style, prompt_template, created_at`

// UpsertNiche inserts a niche or updates the one with the same name.
func (s *Store) UpsertNiche(ctx context.Context, n model.Niche) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, s.rebind(
		`INSERT INTO niches (name, tone, target_audience, visual_style, prompt_template, created_at)
         VALUES (?, ?, ?, ?, ?, ?)
         ON CONFLICT (name) DO UPDATE SET
             tone = excluded.tone,
             target_audience = excluded.target_audience,
             visual_style = excluded.visual_style,
             prompt_template = excluded.prompt_template
         RETURNING id`),
		n.Name, n.Tone, n.TargetAudience, n.VisualStyle, n.PromptTemplate, formatTime(time.Now()),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert niche %q: %w", n.Name, err)
	}
	return id, nil
}

func (s *Store) GetNiche(ctx context.Context, id int64) (*model.Niche, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+nicheColumns+` FROM niches WHERE id = ?`), id)
	n, err := scanNiche(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", model.ErrNicheNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get niche: %w", err)
	}
	return n, nil
}

func (s *Store) ListNiches(ctx context.Context) ([]*model.Niche, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+nicheColumns+` FROM niches ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list niches: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*model.Niche
	for rows.Next() {
		n, err := scanNiche(rows)
		if err != nil {
			return nil, fmt.Errorf("scan niche: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func scanNiche(row rowScanner) (*model.Niche, error) {
	var (
		n         model.Niche
		createdAt string
	)
	if err := row.Scan(&n.ID, &n.Name, &n.Tone, &n.TargetAudience, &n.VisualStyle, &n.PromptTemplate, &createdAt); err != nil {
		return nil, err
	}
	n.CreatedAt = parseTime(createdAt)
	return &n, nil
}
