package align

import "concord/internal/media"

// GuardResult records what the monotonic guard did to one proposed mapping.
type GuardResult struct {
	Confidence         float64 `json:"confidence"`
	BacktrackViolation bool    `json:"backtrack_violation,omitempty"`
	BacktrackExempt    bool    `json:"backtrack_exempt,omitempty"`
	WideRange          bool    `json:"wide_range,omitempty"`
	MeetsApproval      bool    `json:"meets_approval"`
}

// ApplyGuard runs the monotonic guard and confidence policy over a proposed
// target range:
//
//   - A target start more than the backtrack limit behind the checkpoint is a
//     monotonic violation and multiplies confidence by the violation penalty,
//     unless the proposal already clears the high-confidence bar.
//   - A range wider than the wide-range threshold multiplies confidence by
//     the wide-range penalty.
//
// The guard only attenuates; it never rejects. The returned confidence is
// clamped to [0,1] and compared against the approval threshold as an
// advisory signal.
func ApplyGuard(checkpoint Checkpoint, targetStart, targetEnd media.Ordinal, confidence float64, p Policy) GuardResult {
	res := GuardResult{Confidence: ClampConfidence(confidence)}

	if checkpoint.Set() {
		regression := media.UnitsBetween(targetStart, checkpoint.TargetEnd)
		if regression > p.BacktrackLimit {
			res.BacktrackViolation = true
			if res.Confidence >= p.HighConfidenceBar {
				res.BacktrackExempt = true
			} else {
				res.Confidence *= p.ViolationPenalty
			}
		}
	}

	if media.RangeWidth(targetStart, targetEnd) > p.WideRangeThreshold {
		res.WideRange = true
		res.Confidence *= p.WideRangePenalty
	}

	res.Confidence = ClampConfidence(res.Confidence)
	res.MeetsApproval = res.Confidence >= p.ApprovalThreshold
	return res
}

// DeriveStatus maps a guarded confidence to a mapping status. Every mapping
// the engine writes is a proposal; promotion happens during review, so the
// approval comparison travels in the evidence rather than the status column.
func DeriveStatus(GuardResult) media.MappingStatus {
	return media.StatusProposed
}
