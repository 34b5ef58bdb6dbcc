package retrieval_test

import (
	"context"
	"math"
	"testing"

	"concord/internal/media"
	"concord/internal/retrieval"
	"concord/internal/testsupport"
)

func TestCosine(t *testing.T) {
	if got := retrieval.Cosine([]float32{1, 0}, []float32{1, 0}); math.Abs(got-1) > 1e-6 {
		t.Fatalf("identical vectors = %v, want 1", got)
	}
	if got := retrieval.Cosine([]float32{1, 0}, []float32{0, 1}); math.Abs(got) > 1e-6 {
		t.Fatalf("orthogonal vectors = %v, want 0", got)
	}
	if got := retrieval.Cosine([]float32{1, 0}, []float32{1, 0, 0}); got != 0 {
		t.Fatalf("mismatched dims = %v, want 0", got)
	}
	if got := retrieval.Similarity([]float32{1, 0}, []float32{-1, 0}); got != 0 {
		t.Fatalf("negative cosine = %v, want clamp to 0", got)
	}
}

func TestIndexSearchRanksAndTruncates(t *testing.T) {
	st := testsupport.MustOpenStore(t)
	edition := testsupport.MustCreateEdition(t, st, "Target", media.TypeAnime)

	// Segment 1 aligns exactly with the query, 2 partially, 3 not at all.
	vectors := map[int64][]float32{
		1: {1, 0, 0},
		2: {1, 1, 0},
		3: {0, 0, 1},
	}
	for n := int64(1); n <= 3; n++ {
		segment := testsupport.MustInsertSegment(t, st, edition, media.OrdinalFromInt(n), "seg")
		testsupport.MustPutEventFingerprint(t, st, segment.ID, 0, vectors[n])
	}

	ix := retrieval.NewIndex(st, media.ChannelEvents)
	candidates, err := ix.Search(context.Background(), []float32{1, 0, 0}, edition.ID, nil, nil, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(candidates) != 3 {
		t.Fatalf("got %d candidates, want 3", len(candidates))
	}
	if candidates[0].Number != media.OrdinalFromInt(1) {
		t.Fatalf("best candidate = %s, want 1", candidates[0].Number)
	}
	for i := 1; i < len(candidates); i++ {
		if candidates[i].Similarity > candidates[i-1].Similarity {
			t.Fatal("candidates not in descending similarity order")
		}
	}

	top, err := ix.Search(context.Background(), []float32{1, 0, 0}, edition.ID, nil, nil, 1)
	if err != nil {
		t.Fatalf("Search k=1: %v", err)
	}
	if len(top) != 1 || top[0].Number != media.OrdinalFromInt(1) {
		t.Fatalf("k=1 result = %+v", top)
	}
}

func TestIndexSearchKeepsBestVectorPerSegment(t *testing.T) {
	st := testsupport.MustOpenStore(t)
	edition := testsupport.MustCreateEdition(t, st, "Target", media.TypeAnime)

	segment := testsupport.MustInsertSegment(t, st, edition, media.OrdinalFromInt(7), "seg")
	testsupport.MustPutEventFingerprint(t, st, segment.ID, 0, []float32{0, 1, 0})
	testsupport.MustPutEventFingerprint(t, st, segment.ID, 1, []float32{1, 0, 0})

	ix := retrieval.NewIndex(st, media.ChannelEvents)
	candidates, err := ix.Search(context.Background(), []float32{1, 0, 0}, edition.ID, nil, nil, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("got %d candidates, want one per segment", len(candidates))
	}
	if math.Abs(candidates[0].Similarity-1) > 1e-6 {
		t.Fatalf("similarity = %v, want the segment's best vector", candidates[0].Similarity)
	}
}

func TestIndexSearchTiesBreakOnAscendingOrdinal(t *testing.T) {
	st := testsupport.MustOpenStore(t)
	edition := testsupport.MustCreateEdition(t, st, "Target", media.TypeAnime)

	for _, n := range []int64{9, 4, 6} {
		segment := testsupport.MustInsertSegment(t, st, edition, media.OrdinalFromInt(n), "seg")
		testsupport.MustPutEventFingerprint(t, st, segment.ID, 0, []float32{1, 0, 0})
	}

	ix := retrieval.NewIndex(st, media.ChannelEvents)
	for run := 0; run < 10; run++ {
		candidates, err := ix.Search(context.Background(), []float32{1, 0, 0}, edition.ID, nil, nil, 10)
		if err != nil {
			t.Fatalf("Search: %v", err)
		}
		want := []int64{4, 6, 9}
		for i, n := range want {
			if candidates[i].Number != media.OrdinalFromInt(n) {
				t.Fatalf("run %d: candidate %d = %s, want %d", run, i, candidates[i].Number, n)
			}
		}
	}
}

func TestIndexSearchHonorsWindow(t *testing.T) {
	st := testsupport.MustOpenStore(t)
	edition := testsupport.MustCreateEdition(t, st, "Target", media.TypeAnime)

	for n := int64(1); n <= 5; n++ {
		segment := testsupport.MustInsertSegment(t, st, edition, media.OrdinalFromInt(n), "seg")
		testsupport.MustPutEventFingerprint(t, st, segment.ID, 0, []float32{1, 0, 0})
	}

	min := media.OrdinalFromInt(2)
	max := media.OrdinalFromInt(4)
	ix := retrieval.NewIndex(st, media.ChannelEvents)
	candidates, err := ix.Search(context.Background(), []float32{1, 0, 0}, edition.ID, &min, &max, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(candidates) != 3 {
		t.Fatalf("got %d candidates, want 3 inside window", len(candidates))
	}
	for _, c := range candidates {
		if c.Number < min || c.Number > max {
			t.Fatalf("candidate %s outside window [2, 4]", c.Number)
		}
	}
}
