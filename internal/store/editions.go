package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"concord/internal/media"
)

// CreateEdition inserts a new edition and returns it with its identifier.
func (s *Store) CreateEdition(ctx context.Context, title string, mediaType media.Type) (*media.Edition, error) {
	if title == "" {
		return nil, errors.New("edition title required")
	}
	if !mediaType.Valid() {
		return nil, fmt.Errorf("unsupported media type %q", mediaType)
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO editions (title, media_type, created_at) VALUES (?, ?, ?)`,
		title, string(mediaType), now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("insert edition: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return &media.Edition{ID: id, Title: title, Media: mediaType, CreatedAt: now}, nil
}

// GetEdition fetches an edition by identifier, returning nil when absent.
func (s *Store) GetEdition(ctx context.Context, id int64) (*media.Edition, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, media_type, created_at FROM editions WHERE id = ?`, id)
	edition, err := scanEdition(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get edition: %w", err)
	}
	return edition, nil
}

// ListEditions returns all editions ordered by identifier.
func (s *Store) ListEditions(ctx context.Context) ([]media.Edition, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, media_type, created_at FROM editions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list editions: %w", err)
	}
	defer rows.Close()

	var editions []media.Edition
	for rows.Next() {
		edition, err := scanEdition(rows)
		if err != nil {
			return nil, fmt.Errorf("scan edition: %w", err)
		}
		editions = append(editions, *edition)
	}
	return editions, rows.Err()
}

// EditionBounds returns the lowest and highest segment ordinal in an edition.
// ok is false when the edition has no segments.
func (s *Store) EditionBounds(ctx context.Context, editionID int64) (min, max media.Ordinal, ok bool, err error) {
	var lo, hi sql.NullInt64
	row := s.db.QueryRowContext(ctx,
		`SELECT MIN(number), MAX(number) FROM segments WHERE edition_id = ?`, editionID)
	if err := row.Scan(&lo, &hi); err != nil {
		return 0, 0, false, fmt.Errorf("edition bounds: %w", err)
	}
	if !lo.Valid || !hi.Valid {
		return 0, 0, false, nil
	}
	return media.Ordinal(lo.Int64), media.Ordinal(hi.Int64), true, nil
}

func scanEdition(scanner interface{ Scan(dest ...any) error }) (*media.Edition, error) {
	var (
		id         int64
		title      string
		mediaType  string
		createdRaw string
	)
	if err := scanner.Scan(&id, &title, &mediaType, &createdRaw); err != nil {
		return nil, err
	}
	edition := &media.Edition{ID: id, Title: title, Media: media.Type(mediaType)}
	if created, err := parseTimeString(createdRaw); err == nil {
		edition.CreatedAt = created
	}
	return edition, nil
}
