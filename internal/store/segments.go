package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"concord/internal/media"
)

const segmentColumns = "id, edition_id, number, media_type, summary, events_json, characters_json, locations_json, keywords_json, time_context, created_at"

// InsertSegment inserts a segment; the (edition, number) pair must be unique.
func (s *Store) InsertSegment(ctx context.Context, segment *media.Segment) (*media.Segment, error) {
	if segment == nil {
		return nil, errors.New("segment is nil")
	}
	events, err := marshalStrings(segment.Events)
	if err != nil {
		return nil, err
	}
	characters, err := marshalStrings(segment.Characters)
	if err != nil {
		return nil, err
	}
	locations, err := marshalStrings(segment.Locations)
	if err != nil {
		return nil, err
	}
	keywords, err := marshalStrings(segment.Keywords)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO segments (
            edition_id, number, media_type, summary, events_json,
            characters_json, locations_json, keywords_json, time_context, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		segment.EditionID,
		int64(segment.Number),
		string(segment.Media),
		nullableString(segment.Summary),
		events,
		characters,
		locations,
		keywords,
		nullableString(string(segment.TimeContext)),
		now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("insert segment: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	inserted := *segment
	inserted.ID = id
	inserted.CreatedAt = now
	return &inserted, nil
}

// SegmentByNumber fetches one segment by edition and ordinal, nil when absent.
func (s *Store) SegmentByNumber(ctx context.Context, editionID int64, number media.Ordinal) (*media.Segment, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+segmentColumns+` FROM segments WHERE edition_id = ? AND number = ?`,
		editionID, int64(number))
	segment, err := scanSegment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("segment by number: %w", err)
	}
	return segment, nil
}

// SegmentsByEdition returns all segments of an edition in ascending ordinal
// order.
func (s *Store) SegmentsByEdition(ctx context.Context, editionID int64) ([]media.Segment, error) {
	return s.SegmentsInRange(ctx, editionID, nil, nil)
}

// SegmentsInRange returns segments of an edition with ordinals inside the
// inclusive [min, max] window, ascending. Nil bounds are open.
func (s *Store) SegmentsInRange(ctx context.Context, editionID int64, min, max *media.Ordinal) ([]media.Segment, error) {
	query := `SELECT ` + segmentColumns + ` FROM segments WHERE edition_id = ?`
	args := []any{editionID}
	if min != nil {
		query += ` AND number >= ?`
		args = append(args, int64(*min))
	}
	if max != nil {
		query += ` AND number <= ?`
		args = append(args, int64(*max))
	}
	query += ` ORDER BY number ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("segments in range: %w", err)
	}
	defer rows.Close()

	var segments []media.Segment
	for rows.Next() {
		segment, err := scanSegment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan segment: %w", err)
		}
		segments = append(segments, *segment)
	}
	return segments, rows.Err()
}

func scanSegment(scanner interface{ Scan(dest ...any) error }) (*media.Segment, error) {
	var (
		id          int64
		editionID   int64
		number      int64
		mediaType   string
		summary     sql.NullString
		events      sql.NullString
		characters  sql.NullString
		locations   sql.NullString
		keywords    sql.NullString
		timeContext sql.NullString
		createdRaw  string
	)
	if err := scanner.Scan(
		&id, &editionID, &number, &mediaType, &summary,
		&events, &characters, &locations, &keywords, &timeContext, &createdRaw,
	); err != nil {
		return nil, err
	}

	segment := &media.Segment{
		ID:          id,
		EditionID:   editionID,
		Number:      media.Ordinal(number),
		Media:       media.Type(mediaType),
		Summary:     summary.String,
		Events:      unmarshalStrings(events.String),
		Characters:  unmarshalStrings(characters.String),
		Locations:   unmarshalStrings(locations.String),
		Keywords:    unmarshalStrings(keywords.String),
		TimeContext: media.TimeContext(timeContext.String),
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		segment.CreatedAt = created
	}
	return segment, nil
}
