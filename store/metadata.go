package store

import (
	"context"
	"fmt"
)

// UpsertMetadata writes scalar game metadata and its genre/category sets.
// When Replace is true the existing genre/category rows are deleted and
// replaced outright; when false, new tags are unioned in and existing ones
// left alone (conflicting inserts are ignored), per spec §4.2.
func (s *Store) UpsertMetadata(ctx context.Context, m MetadataUpsert) error {
	conn, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("store: begin upsert metadata: %w", err)
	}
	defer tx.Rollback(ctx)

	const upsertMeta = `
INSERT INTO game_metadata (id, name, description, header_image_url, background_image_url, release_date, price, is_free)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (id) DO UPDATE SET
    name = EXCLUDED.name,
    description = EXCLUDED.description,
    header_image_url = EXCLUDED.header_image_url,
    background_image_url = EXCLUDED.background_image_url,
    release_date = EXCLUDED.release_date,
    price = EXCLUDED.price,
    is_free = EXCLUDED.is_free`
	if _, err := tx.Exec(ctx, upsertMeta, m.ID, m.Name, m.Description, m.HeaderImageURL,
		m.BackgroundImageURL, m.ReleaseDate, m.Price, m.IsFree); err != nil {
		return fmt.Errorf("store: upsert game_metadata: %w", err)
	}

	if m.Replace {
		if _, err := tx.Exec(ctx, `DELETE FROM game_genre WHERE id = $1`, m.ID); err != nil {
			return fmt.Errorf("store: clear genres: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM game_category WHERE id = $1`, m.ID); err != nil {
			return fmt.Errorf("store: clear categories: %w", err)
		}
	}

	for _, g := range m.Genres {
		const q = `INSERT INTO game_genre (id, genre) VALUES ($1, $2) ON CONFLICT (id, genre) DO NOTHING`
		if _, err := tx.Exec(ctx, q, m.ID, g); err != nil {
			return fmt.Errorf("store: insert genre: %w", err)
		}
	}
	for _, c := range m.Categories {
		const q = `INSERT INTO game_category (id, category) VALUES ($1, $2) ON CONFLICT (id, category) DO NOTHING`
		if _, err := tx.Exec(ctx, q, m.ID, c); err != nil {
			return fmt.Errorf("store: insert category: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("store: commit upsert metadata: %w", err)
	}
	return nil
}

// GetGame returns one game's metadata with its genres and categories
// aggregated as sorted slices. Returns ErrNotFound when absent.
func (s *Store) GetGame(ctx context.Context, id int64) (GameMetadata, error) {
	conn, err := s.acquire(ctx)
	if err != nil {
		return GameMetadata{}, err
	}
	defer conn.Release()

	const q = `
SELECT gm.id, gm.name, gm.description, gm.header_image_url, gm.background_image_url,
       gm.release_date, gm.price, gm.is_free,
       COALESCE((SELECT array_agg(genre ORDER BY genre) FROM game_genre WHERE id = gm.id), '{}'),
       COALESCE((SELECT array_agg(category ORDER BY category) FROM game_category WHERE id = gm.id), '{}')
FROM game_metadata gm
WHERE gm.id = $1`
	row := conn.QueryRow(ctx, q, id)

	var m GameMetadata
	if err := row.Scan(&m.ID, &m.Name, &m.Description, &m.HeaderImageURL, &m.BackgroundImageURL,
		&m.ReleaseDate, &m.Price, &m.IsFree, &m.Genres, &m.Categories); err != nil {
		if isNoRows(err) {
			return GameMetadata{}, ErrNotFound
		}
		return GameMetadata{}, fmt.Errorf("store: get game: %w", err)
	}
	return m, nil
}

// GetAllGames returns every game's metadata, ordered by id ascending.
func (s *Store) GetAllGames(ctx context.Context) ([]GameMetadata, error) {
	conn, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	const q = `
SELECT gm.id, gm.name, gm.description, gm.header_image_url, gm.background_image_url,
       gm.release_date, gm.price, gm.is_free,
       COALESCE((SELECT array_agg(genre ORDER BY genre) FROM game_genre WHERE id = gm.id), '{}'),
       COALESCE((SELECT array_agg(category ORDER BY category) FROM game_category WHERE id = gm.id), '{}')
FROM game_metadata gm
ORDER BY gm.id ASC`
	rows, err := conn.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("store: get all games: %w", err)
	}
	defer rows.Close()

	var out []GameMetadata
	for rows.Next() {
		var m GameMetadata
		if err := rows.Scan(&m.ID, &m.Name, &m.Description, &m.HeaderImageURL, &m.BackgroundImageURL,
			&m.ReleaseDate, &m.Price, &m.IsFree, &m.Genres, &m.Categories); err != nil {
			return nil, fmt.Errorf("store: scan game: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ListGenres returns every distinct genre, sorted.
func (s *Store) ListGenres(ctx context.Context) ([]string, error) {
	return s.listDistinct(ctx, `SELECT DISTINCT genre FROM game_genre ORDER BY genre ASC`)
}

// ListCategories returns every distinct category, sorted.
func (s *Store) ListCategories(ctx context.Context) ([]string, error) {
	return s.listDistinct(ctx, `SELECT DISTINCT category FROM game_category ORDER BY category ASC`)
}

func (s *Store) listDistinct(ctx context.Context, q string) ([]string, error) {
	conn, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("store: list distinct: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("store: scan distinct: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
