package testsupport

import (
	"context"
	"path/filepath"
	"testing"

	"concord/internal/media"
	"concord/internal/store"
)

// MustOpenStore opens a migrated store on a per-test database and closes it
// on cleanup.
func MustOpenStore(t *testing.T) *store.Store {
	t.Helper()

	st, err := store.OpenPath(filepath.Join(t.TempDir(), "concord.db"))
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	t.Cleanup(func() {
		if err := st.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})
	return st
}

// MustCreateEdition inserts an edition or fails the test.
func MustCreateEdition(t *testing.T, st *store.Store, title string, mediaType media.Type) *media.Edition {
	t.Helper()

	edition, err := st.CreateEdition(context.Background(), title, mediaType)
	if err != nil {
		t.Fatalf("CreateEdition(%q): %v", title, err)
	}
	return edition
}

// MustInsertSegment inserts a minimal segment at the given ordinal or fails
// the test.
func MustInsertSegment(t *testing.T, st *store.Store, edition *media.Edition, number media.Ordinal, summary string, events ...string) *media.Segment {
	t.Helper()

	segment, err := st.InsertSegment(context.Background(), &media.Segment{
		EditionID: edition.ID,
		Number:    number,
		Media:     edition.Media,
		Summary:   summary,
		Events:    events,
	})
	if err != nil {
		t.Fatalf("InsertSegment(%s): %v", number, err)
	}
	return segment
}

// MustPutEventFingerprint stores one per-event vector or fails the test.
func MustPutEventFingerprint(t *testing.T, st *store.Store, segmentID int64, eventIndex int, vector []float32) {
	t.Helper()

	err := st.PutFingerprint(context.Background(), &media.Fingerprint{
		SegmentID:  segmentID,
		Channel:    media.ChannelEvents,
		EventIndex: eventIndex,
		Model:      "test-embedding",
		Vector:     vector,
	})
	if err != nil {
		t.Fatalf("PutFingerprint(segment %d, event %d): %v", segmentID, eventIndex, err)
	}
}
