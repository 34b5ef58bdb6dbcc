package media

import "time"

// Type identifies which media form an edition belongs to.
type Type string

const (
	TypeNovel  Type = "novel"
	TypeAnime  Type = "anime"
	TypeManhwa Type = "manhwa"
)

// Valid reports whether the media type is one of the supported forms.
func (t Type) Valid() bool {
	switch t {
	case TypeNovel, TypeAnime, TypeManhwa:
		return true
	}
	return false
}

// TimeContext tags where a segment sits in story time.
type TimeContext string

const (
	TimePresent   TimeContext = "present"
	TimeFlashback TimeContext = "flashback"
	TimeFuture    TimeContext = "future"
	TimeUnknown   TimeContext = "unknown"
)

// Contradicts reports whether two time contexts are both known and disagree.
func (t TimeContext) Contradicts(other TimeContext) bool {
	if t == "" || other == "" || t == TimeUnknown || other == TimeUnknown {
		return false
	}
	return t != other
}

// Edition is one media version of a story, composed of ordered segments.
// Editions are created upstream and read-only to the alignment engine.
type Edition struct {
	ID        int64
	Title     string
	Media     Type
	CreatedAt time.Time
}

// MaxEventsPerSegment caps how many per-event fingerprints a segment carries.
const MaxEventsPerSegment = 8

// Segment is one narrative unit (episode/chapter) of an edition.
type Segment struct {
	ID          int64
	EditionID   int64
	Number      Ordinal
	Media       Type
	Summary     string
	Events      []string
	Characters  []string
	Locations   []string
	Keywords    []string
	TimeContext TimeContext
	CreatedAt   time.Time
}

// FingerprintChannel names the independent per-segment embedding channels.
type FingerprintChannel string

const (
	ChannelSummary  FingerprintChannel = "summary"
	ChannelEvents   FingerprintChannel = "events"
	ChannelEntities FingerprintChannel = "entities"
)

// Fingerprint is a cosine-comparable embedding for a segment channel or for a
// single event within a segment (EventIndex >= 0). Fingerprints are produced
// once by the embedding step and consumed read-only here.
type Fingerprint struct {
	SegmentID  int64
	Channel    FingerprintChannel
	EventIndex int // -1 for segment-level channels
	Model      string
	Vector     []float32
}

// MappingStatus is the review state of a segment mapping. The aligners only
// ever write StatusProposed; promotion to approved is an external action.
type MappingStatus string

const (
	StatusProposed MappingStatus = "proposed"
	StatusApproved MappingStatus = "approved"
)

// SegmentMapping is the engine's output: one source segment aligned to a
// target-ordinal range in another edition. At most one mapping exists per
// (source segment, target edition) pair; recomputation overwrites it.
type SegmentMapping struct {
	ID              string
	SourceSegmentID int64
	SourceEditionID int64
	SourceNumber    Ordinal
	TargetEditionID int64
	TargetStart     Ordinal
	TargetEnd       Ordinal
	Confidence      float64
	Status          MappingStatus
	Algorithm       string
	EvidenceJSON    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
