package store

import (
	"context"
	"fmt"
)

// UpsertWatched inserts a watched-id row, or updates last_count on conflict.
// name is set only on insert and left unchanged on conflict, per spec §4.2.
func (s *Store) UpsertWatched(ctx context.Context, id int64, name string, lastCount int64) error {
	conn, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	const q = `
INSERT INTO watched (id, name, last_count)
VALUES ($1, $2, $3)
ON CONFLICT (id) DO UPDATE SET last_count = EXCLUDED.last_count`
	if _, err := conn.Exec(ctx, q, id, name, lastCount); err != nil {
		return fmt.Errorf("store: upsert watched: %w", err)
	}
	return nil
}

// RemoveWatched deletes a watched-id row; FK cascades remove its samples,
// rollups, and metadata.
func (s *Store) RemoveWatched(ctx context.Context, id int64) error {
	conn, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, `DELETE FROM watched WHERE id = $1`, id); err != nil {
		return fmt.Errorf("store: remove watched: %w", err)
	}
	return nil
}

// ListWatched returns every watched id ordered by last_count descending.
func (s *Store) ListWatched(ctx context.Context) ([]Watched, error) {
	conn, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `SELECT id, name, last_count FROM watched ORDER BY last_count DESC`)
	if err != nil {
		return nil, fmt.Errorf("store: list watched: %w", err)
	}
	defer rows.Close()

	var out []Watched
	for rows.Next() {
		var w Watched
		if err := rows.Scan(&w.ID, &w.Name, &w.LastCount); err != nil {
			return nil, fmt.Errorf("store: scan watched: %w", err)
		}
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate watched: %w", err)
	}
	return out, nil
}
