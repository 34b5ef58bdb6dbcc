package align

import (
	"encoding/json"
	"fmt"
)

// Algorithm version tags stamped on persisted mappings. Bump a tag when the
// corresponding decision procedure changes in a way that makes old evidence
// incomparable.
const (
	AlgorithmVote             = "vote/v1"
	AlgorithmGreedy           = "greedy/v1"
	AlgorithmLLMCheckpoint    = "llm-checkpoint/v1"
	AlgorithmLLMRange         = "llm-range/v1"
	AlgorithmLLMRangeFallback = "llm-range-fallback/v1"
	AlgorithmDerived          = "derived/v1"
)

// Envelope is the evidence payload persisted alongside every mapping. Kind
// discriminates which detail field is populated so reviewers and tooling can
// decode without guessing.
type Envelope struct {
	Kind       string              `json:"kind"`
	Guard      GuardResult         `json:"guard"`
	Vote       *VoteEvidence       `json:"vote,omitempty"`
	Greedy     *GreedyEvidence     `json:"greedy,omitempty"`
	Checkpoint *CheckpointEvidence `json:"checkpoint,omitempty"`
	Range      *RangeEvidence      `json:"range,omitempty"`
	Derive     *DeriveEvidence     `json:"derive,omitempty"`
}

// VoteStat is one histogram entry: a target ordinal with its vote support.
type VoteStat struct {
	Number string  `json:"number"`
	Count  int     `json:"count"`
	AvgSim float64 `json:"avg_sim"`
}

// VoteEvidence explains a voting-aligner decision. The histogram carries the
// top-ranked target numbers with their vote counts, and both cluster bounds
// are recorded so width capping stays auditable.
type VoteEvidence struct {
	EventCount      int        `json:"event_count"`
	VoteCount       int        `json:"vote_count"`
	Histogram       []VoteStat `json:"histogram"`
	ClusterNumbers  []string   `json:"cluster_numbers"`
	ClusterAvgSim   float64    `json:"cluster_avg_sim"`
	UncappedStart   string     `json:"uncapped_start"`
	UncappedEnd     string     `json:"uncapped_end"`
	JumpPenalty     float64    `json:"jump_penalty,omitempty"`
	TimeContextHits int        `json:"time_context_hits,omitempty"`
}

// GreedyEvidence explains a greedy sequential decision.
type GreedyEvidence struct {
	MatchedEvents  int     `json:"matched_events"`
	TotalEvents    int     `json:"total_events"`
	MeanSimilarity float64 `json:"mean_similarity"`
	WindowStart    string  `json:"window_start"`
	WindowEnd      string  `json:"window_end"`
	RateLimited    bool    `json:"rate_limited,omitempty"`
}

// CheckpointEvidence explains an LLM checkpoint decision.
type CheckpointEvidence struct {
	Model          string   `json:"model"`
	WindowStart    string   `json:"window_start"`
	WindowEnd      string   `json:"window_end"`
	Widened        bool     `json:"widened,omitempty"`
	Corrected      bool     `json:"corrected,omitempty"`
	Anchors        []string `json:"anchors,omitempty"`
	MatchedPhrases []string `json:"matched_phrases,omitempty"`
}

// RangeEvidence explains a full-range LLM decision. Uncertain lists the
// source ordinals the model flagged as doubtful for the whole batch.
type RangeEvidence struct {
	Model         string   `json:"model"`
	BatchSize     int      `json:"batch_size"`
	RunConfidence float64  `json:"run_confidence"`
	Uncertain     []string `json:"uncertain,omitempty"`
	Fallback      bool     `json:"fallback,omitempty"`
}

// DeriveEvidence explains a cross-media derivation: both composed mappings'
// ranges in pivot space, the winning pair's overlap, and both original
// confidences.
type DeriveEvidence struct {
	PivotEditionID   int64   `json:"pivot_edition_id"`
	SourcePivotStart string  `json:"source_pivot_start"`
	SourcePivotEnd   string  `json:"source_pivot_end"`
	TargetPivotStart string  `json:"target_pivot_start"`
	TargetPivotEnd   string  `json:"target_pivot_end"`
	OverlapLength    float64 `json:"overlap_length"`
	OverlapRatio     float64 `json:"overlap_ratio"`
	SourceConfidence float64 `json:"source_confidence"`
	TargetConfidence float64 `json:"target_confidence"`
	PairCount        int     `json:"pair_count"`
}

// Encode serializes the envelope to the JSON stored in the mapping row.
func (e Envelope) Encode() (string, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("encode evidence: %w", err)
	}
	return string(raw), nil
}

// DecodeEnvelope parses a stored evidence payload.
func DecodeEnvelope(raw string) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return Envelope{}, fmt.Errorf("decode evidence: %w", err)
	}
	return e, nil
}
