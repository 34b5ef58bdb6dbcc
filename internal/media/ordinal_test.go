package media_test

import (
	"math"
	"testing"

	"concord/internal/media"
)

func TestParseOrdinalRoundTrip(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"12", "12"},
		{"12.5", "12.5"},
		{"0.25", "0.25"},
		{"3.20", "3.2"},
	}
	for _, tc := range cases {
		ordinal, err := media.ParseOrdinal(tc.in)
		if err != nil {
			t.Fatalf("ParseOrdinal(%q): %v", tc.in, err)
		}
		if got := ordinal.String(); got != tc.want {
			t.Fatalf("ParseOrdinal(%q).String() = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestParseOrdinalRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "  ", "twelve"} {
		if _, err := media.ParseOrdinal(in); err == nil {
			t.Fatalf("ParseOrdinal(%q) succeeded, want error", in)
		}
	}
}

func TestOrdinalOrderingPreservesFractions(t *testing.T) {
	a, _ := media.ParseOrdinal("12")
	b, _ := media.ParseOrdinal("12.5")
	c, _ := media.ParseOrdinal("13")
	if !(a < b && b < c) {
		t.Fatalf("expected 12 < 12.5 < 13, got %d, %d, %d", a, b, c)
	}
	if b.IsWhole() {
		t.Fatal("12.5 reported as whole")
	}
	if b.Trunc() != 12 {
		t.Fatalf("Trunc(12.5) = %d, want 12", b.Trunc())
	}
}

func TestRangeWidthCountsBothEndpoints(t *testing.T) {
	start := media.OrdinalFromInt(10)
	end := media.OrdinalFromInt(12)
	if got := media.RangeWidth(start, end); got != 3 {
		t.Fatalf("RangeWidth(10, 12) = %v, want 3", got)
	}
	if got := media.RangeWidth(start, start); got != 1 {
		t.Fatalf("RangeWidth(10, 10) = %v, want 1", got)
	}
	if got := media.RangeWidth(end, start); got != 0 {
		t.Fatalf("RangeWidth(12, 10) = %v, want 0", got)
	}
}

func TestOverlapRatioRelativeToShorterRange(t *testing.T) {
	aStart, aEnd := media.OrdinalFromInt(100), media.OrdinalFromInt(110)
	bStart, bEnd := media.OrdinalFromInt(105), media.OrdinalFromInt(108)
	if got := media.OverlapRatio(aStart, aEnd, bStart, bEnd); got != 1 {
		t.Fatalf("contained range overlap = %v, want 1", got)
	}

	cStart, cEnd := media.OrdinalFromInt(108), media.OrdinalFromInt(115)
	got := media.OverlapRatio(aStart, aEnd, cStart, cEnd)
	want := 3.0 / 8.0 // overlap [108,110] against the shorter [108,115]
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("partial overlap = %v, want %v", got, want)
	}

	if got := media.OverlapRatio(aStart, aEnd, media.OrdinalFromInt(150), media.OrdinalFromInt(160)); got != 0 {
		t.Fatalf("disjoint overlap = %v, want 0", got)
	}
}

func TestTimeContextContradicts(t *testing.T) {
	if !media.TimeFlashback.Contradicts(media.TimePresent) {
		t.Fatal("flashback vs present should contradict")
	}
	if media.TimeUnknown.Contradicts(media.TimePresent) {
		t.Fatal("unknown should never contradict")
	}
	if media.TimePresent.Contradicts(media.TimePresent) {
		t.Fatal("identical contexts should not contradict")
	}
}
