package media

import (
	"fmt"
	"strconv"
	"strings"
)

// Ordinal is a segment number stored as a count of hundredths, so fractional
// chapter numbers ("12.5", "3.25") survive ordering, arithmetic, and storage
// without float drift. The zero value sorts before every real segment.
type Ordinal int64

const ordinalScale = 100

// OrdinalFromInt converts a whole segment number.
func OrdinalFromInt(n int64) Ordinal {
	return Ordinal(n * ordinalScale)
}

// OrdinalFromFloat converts a fractional segment number, rounding to the
// nearest hundredth.
func OrdinalFromFloat(f float64) Ordinal {
	if f >= 0 {
		return Ordinal(f*ordinalScale + 0.5)
	}
	return Ordinal(f*ordinalScale - 0.5)
}

// ParseOrdinal parses decimal segment numbers such as "12", "12.5", "0.25".
func ParseOrdinal(value string) (Ordinal, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, fmt.Errorf("parse ordinal: empty value")
	}
	f, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, fmt.Errorf("parse ordinal %q: %w", trimmed, err)
	}
	return OrdinalFromFloat(f), nil
}

// Units returns the ordinal expressed in segment units (12.5 for "12.5").
func (o Ordinal) Units() float64 {
	return float64(o) / ordinalScale
}

// Trunc is the single explicit integer-normalization point: it truncates the
// ordinal toward zero to a whole segment number.
func (o Ordinal) Trunc() int64 {
	return int64(o) / ordinalScale
}

// IsWhole reports whether the ordinal has no fractional part.
func (o Ordinal) IsWhole() bool {
	return int64(o)%ordinalScale == 0
}

func (o Ordinal) String() string {
	whole := int64(o) / ordinalScale
	frac := int64(o) % ordinalScale
	if frac < 0 {
		frac = -frac
	}
	switch {
	case frac == 0:
		return strconv.FormatInt(whole, 10)
	case frac%10 == 0:
		return fmt.Sprintf("%d.%d", whole, frac/10)
	default:
		return fmt.Sprintf("%d.%02d", whole, frac)
	}
}

// AddUnits shifts the ordinal by a (possibly fractional) number of units.
func (o Ordinal) AddUnits(units float64) Ordinal {
	return o + OrdinalFromFloat(units)
}

// UnitsBetween returns b-a expressed in segment units.
func UnitsBetween(a, b Ordinal) float64 {
	return (b - a).Units()
}

// RangeWidth returns the inclusive width of [start, end] in segment units,
// counting both endpoints (a single segment has width 1).
func RangeWidth(start, end Ordinal) float64 {
	if end < start {
		return 0
	}
	return UnitsBetween(start, end) + 1
}

func minOrdinal(a, b Ordinal) Ordinal {
	if a < b {
		return a
	}
	return b
}

func maxOrdinal(a, b Ordinal) Ordinal {
	if a > b {
		return a
	}
	return b
}

// OverlapLength returns the inclusive overlap width of two ordinal ranges in
// segment units, or 0 when they do not intersect.
func OverlapLength(aStart, aEnd, bStart, bEnd Ordinal) float64 {
	lo := maxOrdinal(aStart, bStart)
	hi := minOrdinal(aEnd, bEnd)
	if hi < lo {
		return 0
	}
	return RangeWidth(lo, hi)
}

// OverlapRatio returns the overlap of the two ranges relative to the shorter
// of them, in [0,1].
func OverlapRatio(aStart, aEnd, bStart, bEnd Ordinal) float64 {
	overlap := OverlapLength(aStart, aEnd, bStart, bEnd)
	if overlap == 0 {
		return 0
	}
	shorter := RangeWidth(aStart, aEnd)
	if other := RangeWidth(bStart, bEnd); other < shorter {
		shorter = other
	}
	if shorter <= 0 {
		return 0
	}
	ratio := overlap / shorter
	if ratio > 1 {
		ratio = 1
	}
	return ratio
}
