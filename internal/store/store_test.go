package store_test

import (
	"context"
	"testing"

	"concord/internal/media"
	"concord/internal/testsupport"
)

func TestEditionAndSegmentRoundTrip(t *testing.T) {
	st := testsupport.MustOpenStore(t)
	ctx := context.Background()

	edition := testsupport.MustCreateEdition(t, st, "The Long Winter", media.TypeNovel)
	testsupport.MustInsertSegment(t, st, edition, media.OrdinalFromInt(1), "Opening chapter", "the storm arrives")
	half := media.OrdinalFromFloat(1.5)
	testsupport.MustInsertSegment(t, st, edition, half, "Interlude")

	got, err := st.SegmentByNumber(ctx, edition.ID, half)
	if err != nil {
		t.Fatalf("SegmentByNumber: %v", err)
	}
	if got == nil {
		t.Fatal("fractional segment not found")
	}
	if got.Number.String() != "1.5" {
		t.Fatalf("number = %s, want 1.5", got.Number)
	}

	segments, err := st.SegmentsByEdition(ctx, edition.ID)
	if err != nil {
		t.Fatalf("SegmentsByEdition: %v", err)
	}
	if len(segments) != 2 {
		t.Fatalf("got %d segments, want 2", len(segments))
	}
	if segments[0].Number >= segments[1].Number {
		t.Fatal("segments not in ascending ordinal order")
	}
	if segments[0].Events[0] != "the storm arrives" {
		t.Fatalf("events round trip broke: %q", segments[0].Events[0])
	}

	min, max, ok, err := st.EditionBounds(ctx, edition.ID)
	if err != nil || !ok {
		t.Fatalf("EditionBounds: ok=%v err=%v", ok, err)
	}
	if min != media.OrdinalFromInt(1) || max != half {
		t.Fatalf("bounds = [%s, %s], want [1, 1.5]", min, max)
	}
}

func TestEditionBoundsEmpty(t *testing.T) {
	st := testsupport.MustOpenStore(t)
	edition := testsupport.MustCreateEdition(t, st, "Empty", media.TypeAnime)

	_, _, ok, err := st.EditionBounds(context.Background(), edition.ID)
	if err != nil {
		t.Fatalf("EditionBounds: %v", err)
	}
	if ok {
		t.Fatal("empty edition reported bounds")
	}
}

func TestDuplicateSegmentNumberRejected(t *testing.T) {
	st := testsupport.MustOpenStore(t)
	ctx := context.Background()
	edition := testsupport.MustCreateEdition(t, st, "Dup", media.TypeManhwa)
	testsupport.MustInsertSegment(t, st, edition, media.OrdinalFromInt(3), "first")

	_, err := st.InsertSegment(ctx, &media.Segment{
		EditionID: edition.ID,
		Number:    media.OrdinalFromInt(3),
		Media:     edition.Media,
		Summary:   "second",
	})
	if err == nil {
		t.Fatal("duplicate (edition, number) insert succeeded")
	}
}

func TestVectorsInWindowFiltersAndOrders(t *testing.T) {
	st := testsupport.MustOpenStore(t)
	ctx := context.Background()
	edition := testsupport.MustCreateEdition(t, st, "Vectors", media.TypeNovel)

	for n := int64(1); n <= 4; n++ {
		segment := testsupport.MustInsertSegment(t, st, edition, media.OrdinalFromInt(n), "seg")
		testsupport.MustPutEventFingerprint(t, st, segment.ID, 0, []float32{float32(n), 0, 0})
		testsupport.MustPutEventFingerprint(t, st, segment.ID, 1, []float32{0, float32(n), 0})
	}

	min := media.OrdinalFromInt(2)
	max := media.OrdinalFromInt(3)
	vectors, err := st.VectorsInWindow(ctx, edition.ID, media.ChannelEvents, &min, &max)
	if err != nil {
		t.Fatalf("VectorsInWindow: %v", err)
	}
	if len(vectors) != 4 {
		t.Fatalf("got %d vectors, want 4", len(vectors))
	}
	for i := 1; i < len(vectors); i++ {
		prev, cur := vectors[i-1], vectors[i]
		if cur.Number < prev.Number || (cur.Number == prev.Number && cur.EventIndex < prev.EventIndex) {
			t.Fatalf("vectors out of order at %d: %v then %v", i, prev, cur)
		}
	}
	for _, v := range vectors {
		if v.Number < min || v.Number > max {
			t.Fatalf("vector ordinal %s outside window", v.Number)
		}
		if len(v.Vector) != 3 {
			t.Fatalf("vector dim %d, want 3", len(v.Vector))
		}
		// Segments without a time-context tag store NULL and must come back
		// as the empty context, not a scan failure.
		if v.TimeContext != "" {
			t.Fatalf("time context = %q, want empty for untagged segment", v.TimeContext)
		}
	}
}

func TestPutFingerprintRejectsEventIndexBeyondCap(t *testing.T) {
	st := testsupport.MustOpenStore(t)
	edition := testsupport.MustCreateEdition(t, st, "Cap", media.TypeNovel)
	segment := testsupport.MustInsertSegment(t, st, edition, media.OrdinalFromInt(1), "seg")

	err := st.PutFingerprint(context.Background(), &media.Fingerprint{
		SegmentID:  segment.ID,
		Channel:    media.ChannelEvents,
		EventIndex: media.MaxEventsPerSegment,
		Model:      "test",
		Vector:     []float32{1},
	})
	if err == nil {
		t.Fatal("event index at the cap accepted")
	}
}

func TestUpsertMappingOverwritesInPlace(t *testing.T) {
	st := testsupport.MustOpenStore(t)
	ctx := context.Background()

	source := testsupport.MustCreateEdition(t, st, "Source", media.TypeNovel)
	target := testsupport.MustCreateEdition(t, st, "Target", media.TypeAnime)
	segment := testsupport.MustInsertSegment(t, st, source, media.OrdinalFromInt(5), "seg")

	first := &media.SegmentMapping{
		SourceSegmentID: segment.ID,
		SourceEditionID: source.ID,
		SourceNumber:    segment.Number,
		TargetEditionID: target.ID,
		TargetStart:     media.OrdinalFromInt(10),
		TargetEnd:       media.OrdinalFromInt(11),
		Confidence:      0.5,
		Status:          media.StatusProposed,
		Algorithm:       "vote/v1",
	}
	if err := st.UpsertMapping(ctx, first); err != nil {
		t.Fatalf("UpsertMapping: %v", err)
	}
	if first.ID == "" {
		t.Fatal("mapping ID not assigned")
	}

	second := &media.SegmentMapping{
		SourceSegmentID: segment.ID,
		SourceEditionID: source.ID,
		SourceNumber:    segment.Number,
		TargetEditionID: target.ID,
		TargetStart:     media.OrdinalFromInt(12),
		TargetEnd:       media.OrdinalFromInt(13),
		Confidence:      0.8,
		Status:          media.StatusProposed,
		Algorithm:       "greedy/v1",
	}
	if err := st.UpsertMapping(ctx, second); err != nil {
		t.Fatalf("UpsertMapping overwrite: %v", err)
	}

	got, err := st.MappingBySegment(ctx, segment.ID, target.ID)
	if err != nil {
		t.Fatalf("MappingBySegment: %v", err)
	}
	if got == nil {
		t.Fatal("mapping not found after overwrite")
	}
	if got.ID != first.ID {
		t.Fatalf("row identity changed on overwrite: %s vs %s", got.ID, first.ID)
	}
	if got.TargetStart != media.OrdinalFromInt(12) || got.Confidence != 0.8 || got.Algorithm != "greedy/v1" {
		t.Fatalf("overwrite not applied: %+v", got)
	}

	all, err := st.MappingsForPair(ctx, source.ID, target.ID)
	if err != nil {
		t.Fatalf("MappingsForPair: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("got %d mappings, want exactly 1 per (segment, target)", len(all))
	}
}

func TestUpsertMappingValidatesRangeAndConfidence(t *testing.T) {
	st := testsupport.MustOpenStore(t)
	ctx := context.Background()
	source := testsupport.MustCreateEdition(t, st, "Src", media.TypeNovel)
	target := testsupport.MustCreateEdition(t, st, "Tgt", media.TypeAnime)
	segment := testsupport.MustInsertSegment(t, st, source, media.OrdinalFromInt(1), "seg")

	inverted := &media.SegmentMapping{
		SourceSegmentID: segment.ID,
		SourceEditionID: source.ID,
		SourceNumber:    segment.Number,
		TargetEditionID: target.ID,
		TargetStart:     media.OrdinalFromInt(5),
		TargetEnd:       media.OrdinalFromInt(4),
		Confidence:      0.5,
		Status:          media.StatusProposed,
		Algorithm:       "vote/v1",
	}
	if err := st.UpsertMapping(ctx, inverted); err == nil {
		t.Fatal("inverted range accepted")
	}

	badConfidence := &media.SegmentMapping{
		SourceSegmentID: segment.ID,
		SourceEditionID: source.ID,
		SourceNumber:    segment.Number,
		TargetEditionID: target.ID,
		TargetStart:     media.OrdinalFromInt(4),
		TargetEnd:       media.OrdinalFromInt(5),
		Confidence:      1.5,
		Status:          media.StatusProposed,
		Algorithm:       "vote/v1",
	}
	if err := st.UpsertMapping(ctx, badConfidence); err == nil {
		t.Fatal("confidence above 1 accepted")
	}
}

func TestLatestMappingTracksHighestSourceNumber(t *testing.T) {
	st := testsupport.MustOpenStore(t)
	ctx := context.Background()
	source := testsupport.MustCreateEdition(t, st, "Src", media.TypeNovel)
	target := testsupport.MustCreateEdition(t, st, "Tgt", media.TypeAnime)

	latest, err := st.LatestMapping(ctx, source.ID, target.ID)
	if err != nil {
		t.Fatalf("LatestMapping on empty pair: %v", err)
	}
	if latest != nil {
		t.Fatal("expected nil latest mapping for empty pair")
	}

	for _, n := range []int64{3, 1, 2} {
		segment := testsupport.MustInsertSegment(t, st, source, media.OrdinalFromInt(n), "seg")
		err := st.UpsertMapping(ctx, &media.SegmentMapping{
			SourceSegmentID: segment.ID,
			SourceEditionID: source.ID,
			SourceNumber:    segment.Number,
			TargetEditionID: target.ID,
			TargetStart:     media.OrdinalFromInt(n * 10),
			TargetEnd:       media.OrdinalFromInt(n*10 + 1),
			Confidence:      0.7,
			Status:          media.StatusProposed,
			Algorithm:       "vote/v1",
		})
		if err != nil {
			t.Fatalf("UpsertMapping(%d): %v", n, err)
		}
	}

	latest, err = st.LatestMapping(ctx, source.ID, target.ID)
	if err != nil {
		t.Fatalf("LatestMapping: %v", err)
	}
	if latest == nil || latest.SourceNumber != media.OrdinalFromInt(3) {
		t.Fatalf("latest = %+v, want source number 3", latest)
	}
	if latest.TargetEnd != media.OrdinalFromInt(31) {
		t.Fatalf("latest target end = %s, want 31", latest.TargetEnd)
	}

	pair, err := st.MappingsForPair(ctx, source.ID, target.ID)
	if err != nil {
		t.Fatalf("MappingsForPair: %v", err)
	}
	if len(pair) != 3 {
		t.Fatalf("got %d mappings, want 3", len(pair))
	}
	for i := 1; i < len(pair); i++ {
		if pair[i-1].SourceNumber >= pair[i].SourceNumber {
			t.Fatal("mappings not in ascending source order")
		}
	}
}
