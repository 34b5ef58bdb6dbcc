package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"concord/internal/media"
)

// PutFingerprint stores or replaces one fingerprint row. Segment-level
// channel fingerprints use EventIndex -1; per-event fingerprints use the
// events channel with a 0-based index below media.MaxEventsPerSegment.
func (s *Store) PutFingerprint(ctx context.Context, fp *media.Fingerprint) error {
	if fp == nil {
		return errors.New("fingerprint is nil")
	}
	if len(fp.Vector) == 0 {
		return errors.New("fingerprint vector required")
	}
	if fp.EventIndex >= media.MaxEventsPerSegment {
		return fmt.Errorf("event index %d exceeds cap %d", fp.EventIndex, media.MaxEventsPerSegment)
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO segment_fingerprints (segment_id, channel, event_index, model, dim, vector)
         VALUES (?, ?, ?, ?, ?, ?)
         ON CONFLICT (segment_id, channel, event_index)
         DO UPDATE SET model = excluded.model, dim = excluded.dim, vector = excluded.vector`,
		fp.SegmentID,
		string(fp.Channel),
		fp.EventIndex,
		fp.Model,
		len(fp.Vector),
		encodeVector(fp.Vector),
	)
	if err != nil {
		return fmt.Errorf("put fingerprint: %w", err)
	}
	return nil
}

// EventFingerprints returns a segment's per-event fingerprints ordered by
// event index.
func (s *Store) EventFingerprints(ctx context.Context, segmentID int64) ([]media.Fingerprint, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT segment_id, channel, event_index, model, dim, vector
         FROM segment_fingerprints
         WHERE segment_id = ? AND channel = ? AND event_index >= 0`,
		segmentID, string(media.ChannelEvents),
	)
	if err != nil {
		return nil, fmt.Errorf("event fingerprints: %w", err)
	}
	defer rows.Close()

	fingerprints, err := scanFingerprints(rows)
	if err != nil {
		return nil, err
	}
	sort.Slice(fingerprints, func(i, j int) bool {
		return fingerprints[i].EventIndex < fingerprints[j].EventIndex
	})
	return fingerprints, nil
}

// SegmentVector is one stored vector joined with its segment's ordinal and
// time context, the shape candidate retrieval ranks over.
type SegmentVector struct {
	SegmentID   int64
	Number      media.Ordinal
	TimeContext media.TimeContext
	EventIndex  int
	Vector      []float32
}

// VectorsInWindow returns every stored vector of a channel for segments of
// the target edition whose ordinal lies in the inclusive [min, max] window
// (nil bounds are open), ordered by ascending ordinal then event index so
// downstream ranking stays deterministic.
func (s *Store) VectorsInWindow(ctx context.Context, editionID int64, channel media.FingerprintChannel, min, max *media.Ordinal) ([]SegmentVector, error) {
	query := `SELECT f.segment_id, s.number, s.time_context, f.event_index, f.dim, f.vector
              FROM segment_fingerprints f
              JOIN segments s ON s.id = f.segment_id
              WHERE s.edition_id = ? AND f.channel = ?`
	args := []any{editionID, string(channel)}
	if min != nil {
		query += ` AND s.number >= ?`
		args = append(args, int64(*min))
	}
	if max != nil {
		query += ` AND s.number <= ?`
		args = append(args, int64(*max))
	}
	query += ` ORDER BY s.number ASC, f.event_index ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("vectors in window: %w", err)
	}
	defer rows.Close()

	var vectors []SegmentVector
	for rows.Next() {
		var (
			segmentID   int64
			number      int64
			timeContext sql.NullString
			eventIndex  int
			dim         int
			blob        []byte
		)
		if err := rows.Scan(&segmentID, &number, &timeContext, &eventIndex, &dim, &blob); err != nil {
			return nil, fmt.Errorf("scan vector row: %w", err)
		}
		vector, err := decodeVector(blob, dim)
		if err != nil {
			return nil, fmt.Errorf("decode vector for segment %d: %w", segmentID, err)
		}
		vectors = append(vectors, SegmentVector{
			SegmentID:   segmentID,
			Number:      media.Ordinal(number),
			TimeContext: media.TimeContext(timeContext.String),
			EventIndex:  eventIndex,
			Vector:      vector,
		})
	}
	return vectors, rows.Err()
}

func scanFingerprints(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]media.Fingerprint, error) {
	var fingerprints []media.Fingerprint
	for rows.Next() {
		var (
			segmentID  int64
			channel    string
			eventIndex int
			model      string
			dim        int
			blob       []byte
		)
		if err := rows.Scan(&segmentID, &channel, &eventIndex, &model, &dim, &blob); err != nil {
			return nil, fmt.Errorf("scan fingerprint: %w", err)
		}
		vector, err := decodeVector(blob, dim)
		if err != nil {
			return nil, fmt.Errorf("decode vector for segment %d: %w", segmentID, err)
		}
		fingerprints = append(fingerprints, media.Fingerprint{
			SegmentID:  segmentID,
			Channel:    media.FingerprintChannel(channel),
			EventIndex: eventIndex,
			Model:      model,
			Vector:     vector,
		})
	}
	return fingerprints, rows.Err()
}
