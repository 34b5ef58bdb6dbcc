package align

// Policy centralizes alignment thresholds and limits. All widths, jumps, and
// tolerances are expressed in segment units (fractional ordinals allowed).
type Policy struct {
	// Voting aligner.
	VoteCandidates    int     // K per event-fingerprint search
	ClusterEpsilon    float64 // avg-similarity band below the top vote
	GapTolerance      float64 // max ordinal gap merged into one cluster
	VoteMaxWidth      float64 // cap on a vote cluster's range width
	VoteMinConfidence float64 // reject mappings below this confidence
	MaxForwardJump    float64 // forward jump allowance past the checkpoint
	JumpPenaltyRate   float64 // confidence subtracted per unit of excess jump

	// Greedy sequential aligner.
	GreedySearchWindow    float64 // forward-only search width
	GreedyMinEvents       int     // minimum matched events to accept a unit
	GreedySimilarityFloor float64 // per-event similarity floor
	GreedyMaxWidth        float64 // cap on the greedy cluster's range width
	MaxPerUnitJump        float64 // progression-rate guard per source unit

	// Monotonic guard and confidence policy.
	BacktrackLimit     float64 // allowed regression behind the checkpoint
	HighConfidenceBar  float64 // confidence that exempts a backtrack
	ViolationPenalty   float64 // multiplier applied on a monotonic violation
	WideRangeThreshold float64 // range width that counts as "wide"
	WideRangePenalty   float64 // multiplier applied to wide ranges
	ApprovalThreshold  float64 // advisory status threshold (signal only)

	// Checkpoint (LLM) windows.
	WindowBefore   float64 // margin behind the checkpoint
	WindowAfter    float64 // margin ahead of the checkpoint
	WindowMinWidth float64 // minimum enforced window width
	WindowMaxWidth float64 // hard cap on window width

	// LLM range guidance.
	SoftRangeCap float64 // preferred max mapping width in prompts
	HardRangeCap float64 // hard guidance communicated to the model

	// Full-range fallback.
	FallbackPenalty float64 // multiplier for checkpoint-fallback mappings

	// Cross-media derivation.
	DeriveEpsilon      float64 // confidence band kept below the best pair
	DeriveGapTolerance float64 // ordinal gap merged into the output span

	// Time-context scoring.
	TimeContextPenalty float64 // similarity subtracted on contradictory tags
}

// DefaultPolicy returns the documented defaults.
func DefaultPolicy() Policy {
	return Policy{
		VoteCandidates:    20,
		ClusterEpsilon:    0.02,
		GapTolerance:      2,
		VoteMaxWidth:      15,
		VoteMinConfidence: 0.4,
		MaxForwardJump:    30,
		JumpPenaltyRate:   0.001,

		GreedySearchWindow:    30,
		GreedyMinEvents:       1,
		GreedySimilarityFloor: 0.3,
		GreedyMaxWidth:        10,
		MaxPerUnitJump:        5,

		BacktrackLimit:     3,
		HighConfidenceBar:  0.80,
		ViolationPenalty:   0.8,
		WideRangeThreshold: 20,
		WideRangePenalty:   0.7,
		ApprovalThreshold:  0.7,

		WindowBefore:   5,
		WindowAfter:    15,
		WindowMinWidth: 8,
		WindowMaxWidth: 40,

		SoftRangeCap: 6,
		HardRangeCap: 10,

		FallbackPenalty: 0.6,

		DeriveEpsilon:      0.05,
		DeriveGapTolerance: 2,

		TimeContextPenalty: 0.05,
	}
}

// Normalized returns the policy with out-of-range values replaced by the
// defaults, so a partially configured policy never divides by zero or
// rejects everything.
func (p Policy) Normalized() Policy {
	d := DefaultPolicy()

	if p.VoteCandidates <= 0 {
		p.VoteCandidates = d.VoteCandidates
	}
	if p.ClusterEpsilon <= 0 || p.ClusterEpsilon >= 1 {
		p.ClusterEpsilon = d.ClusterEpsilon
	}
	if p.GapTolerance <= 0 {
		p.GapTolerance = d.GapTolerance
	}
	if p.VoteMaxWidth <= 0 {
		p.VoteMaxWidth = d.VoteMaxWidth
	}
	if p.VoteMinConfidence <= 0 || p.VoteMinConfidence >= 1 {
		p.VoteMinConfidence = d.VoteMinConfidence
	}
	if p.MaxForwardJump <= 0 {
		p.MaxForwardJump = d.MaxForwardJump
	}
	if p.JumpPenaltyRate <= 0 {
		p.JumpPenaltyRate = d.JumpPenaltyRate
	}
	if p.GreedySearchWindow <= 0 {
		p.GreedySearchWindow = d.GreedySearchWindow
	}
	if p.GreedyMinEvents <= 0 {
		p.GreedyMinEvents = d.GreedyMinEvents
	}
	if p.GreedySimilarityFloor <= 0 || p.GreedySimilarityFloor >= 1 {
		p.GreedySimilarityFloor = d.GreedySimilarityFloor
	}
	if p.GreedyMaxWidth <= 0 {
		p.GreedyMaxWidth = d.GreedyMaxWidth
	}
	if p.MaxPerUnitJump <= 0 {
		p.MaxPerUnitJump = d.MaxPerUnitJump
	}
	if p.BacktrackLimit <= 0 {
		p.BacktrackLimit = d.BacktrackLimit
	}
	if p.HighConfidenceBar <= 0 || p.HighConfidenceBar >= 1 {
		p.HighConfidenceBar = d.HighConfidenceBar
	}
	if p.ViolationPenalty <= 0 || p.ViolationPenalty >= 1 {
		p.ViolationPenalty = d.ViolationPenalty
	}
	if p.WideRangeThreshold <= 0 {
		p.WideRangeThreshold = d.WideRangeThreshold
	}
	if p.WideRangePenalty <= 0 || p.WideRangePenalty >= 1 {
		p.WideRangePenalty = d.WideRangePenalty
	}
	if p.ApprovalThreshold <= 0 || p.ApprovalThreshold >= 1 {
		p.ApprovalThreshold = d.ApprovalThreshold
	}
	if p.WindowBefore <= 0 {
		p.WindowBefore = d.WindowBefore
	}
	if p.WindowAfter <= 0 {
		p.WindowAfter = d.WindowAfter
	}
	if p.WindowMinWidth <= 0 {
		p.WindowMinWidth = d.WindowMinWidth
	}
	if p.WindowMaxWidth <= 0 || p.WindowMaxWidth < p.WindowMinWidth {
		p.WindowMaxWidth = d.WindowMaxWidth
	}
	if p.SoftRangeCap <= 0 {
		p.SoftRangeCap = d.SoftRangeCap
	}
	if p.HardRangeCap <= 0 {
		p.HardRangeCap = d.HardRangeCap
	}
	if p.FallbackPenalty <= 0 || p.FallbackPenalty >= 1 {
		p.FallbackPenalty = d.FallbackPenalty
	}
	if p.DeriveEpsilon <= 0 || p.DeriveEpsilon >= 1 {
		p.DeriveEpsilon = d.DeriveEpsilon
	}
	if p.DeriveGapTolerance <= 0 {
		p.DeriveGapTolerance = d.DeriveGapTolerance
	}
	if p.TimeContextPenalty <= 0 || p.TimeContextPenalty >= 1 {
		p.TimeContextPenalty = d.TimeContextPenalty
	}

	return p
}
