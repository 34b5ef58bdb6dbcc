package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"concord/internal/media"
)

const mappingColumns = "id, source_segment_id, source_edition_id, source_number, target_edition_id, target_start, target_end, confidence, status, algorithm, evidence_json, created_at, updated_at"

// UpsertMapping inserts a mapping or overwrites the existing one for the
// (source segment, target edition) pair. The mapping's ID, CreatedAt, and
// UpdatedAt are filled in; on conflict the original row identity and
// creation time are preserved.
func (s *Store) UpsertMapping(ctx context.Context, m *media.SegmentMapping) error {
	if m == nil {
		return errors.New("mapping is nil")
	}
	if m.TargetEnd < m.TargetStart {
		return fmt.Errorf("mapping range [%s, %s] inverted", m.TargetStart, m.TargetEnd)
	}
	if m.Confidence < 0 || m.Confidence > 1 {
		return fmt.Errorf("mapping confidence %v outside [0,1]", m.Confidence)
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO segment_mappings (
            id, source_segment_id, source_edition_id, source_number,
            target_edition_id, target_start, target_end,
            confidence, status, algorithm, evidence_json, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT (source_segment_id, target_edition_id) DO UPDATE SET
            source_number = excluded.source_number,
            target_start = excluded.target_start,
            target_end = excluded.target_end,
            confidence = excluded.confidence,
            status = excluded.status,
            algorithm = excluded.algorithm,
            evidence_json = excluded.evidence_json,
            updated_at = excluded.updated_at`,
		m.ID,
		m.SourceSegmentID,
		m.SourceEditionID,
		int64(m.SourceNumber),
		m.TargetEditionID,
		int64(m.TargetStart),
		int64(m.TargetEnd),
		m.Confidence,
		string(m.Status),
		m.Algorithm,
		nullableString(m.EvidenceJSON),
		m.CreatedAt.Format(time.RFC3339Nano),
		m.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upsert mapping: %w", err)
	}
	return nil
}

// MappingBySegment fetches the mapping for one (source segment, target
// edition) pair, nil when absent.
func (s *Store) MappingBySegment(ctx context.Context, sourceSegmentID, targetEditionID int64) (*media.SegmentMapping, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+mappingColumns+` FROM segment_mappings
         WHERE source_segment_id = ? AND target_edition_id = ?`,
		sourceSegmentID, targetEditionID)
	mapping, err := scanMapping(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("mapping by segment: %w", err)
	}
	return mapping, nil
}

// LatestMapping returns the mapping with the highest source ordinal for the
// edition pair, nil when the pair has no mappings yet. Checkpoint-based
// aligners reconstruct their starting checkpoint from it.
func (s *Store) LatestMapping(ctx context.Context, sourceEditionID, targetEditionID int64) (*media.SegmentMapping, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+mappingColumns+` FROM segment_mappings
         WHERE source_edition_id = ? AND target_edition_id = ?
         ORDER BY source_number DESC LIMIT 1`,
		sourceEditionID, targetEditionID)
	mapping, err := scanMapping(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest mapping: %w", err)
	}
	return mapping, nil
}

// MappingsForPair returns every mapping for the edition pair ordered by
// ascending source ordinal.
func (s *Store) MappingsForPair(ctx context.Context, sourceEditionID, targetEditionID int64) ([]media.SegmentMapping, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+mappingColumns+` FROM segment_mappings
         WHERE source_edition_id = ? AND target_edition_id = ?
         ORDER BY source_number ASC`,
		sourceEditionID, targetEditionID)
	if err != nil {
		return nil, fmt.Errorf("mappings for pair: %w", err)
	}
	defer rows.Close()

	var mappings []media.SegmentMapping
	for rows.Next() {
		mapping, err := scanMapping(rows)
		if err != nil {
			return nil, fmt.Errorf("scan mapping: %w", err)
		}
		mappings = append(mappings, *mapping)
	}
	return mappings, rows.Err()
}

func scanMapping(scanner interface{ Scan(dest ...any) error }) (*media.SegmentMapping, error) {
	var (
		id              string
		sourceSegmentID int64
		sourceEditionID int64
		sourceNumber    int64
		targetEditionID int64
		targetStart     int64
		targetEnd       int64
		confidence      float64
		status          string
		algorithm       string
		evidence        sql.NullString
		createdRaw      string
		updatedRaw      string
	)
	if err := scanner.Scan(
		&id, &sourceSegmentID, &sourceEditionID, &sourceNumber,
		&targetEditionID, &targetStart, &targetEnd,
		&confidence, &status, &algorithm, &evidence, &createdRaw, &updatedRaw,
	); err != nil {
		return nil, err
	}

	mapping := &media.SegmentMapping{
		ID:              id,
		SourceSegmentID: sourceSegmentID,
		SourceEditionID: sourceEditionID,
		SourceNumber:    media.Ordinal(sourceNumber),
		TargetEditionID: targetEditionID,
		TargetStart:     media.Ordinal(targetStart),
		TargetEnd:       media.Ordinal(targetEnd),
		Confidence:      confidence,
		Status:          media.MappingStatus(status),
		Algorithm:       algorithm,
		EvidenceJSON:    evidence.String,
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		mapping.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		mapping.UpdatedAt = updated
	}
	return mapping, nil
}
