package align

import "concord/internal/media"

// AdjustForTimeContext lowers a similarity score when the source and target
// segments carry contradictory time-context tags (flashback vs present, and
// so on). Unknown or missing tags never penalize.
func AdjustForTimeContext(similarity float64, source, target media.TimeContext, p Policy) float64 {
	if !source.Contradicts(target) {
		return similarity
	}
	adjusted := similarity - p.TimeContextPenalty
	if adjusted < 0 {
		adjusted = 0
	}
	return adjusted
}

// ClampConfidence restricts a confidence value to [0,1].
func ClampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// ForwardJumpPenalty returns the confidence deduction for a proposed target
// start that jumps ahead of the checkpoint by more than the allowed forward
// distance, alongside whether the jump is so large (more than twice the
// allowance) that the mapping should be rejected outright.
func ForwardJumpPenalty(checkpoint Checkpoint, targetStart media.Ordinal, p Policy) (penalty float64, reject bool) {
	if !checkpoint.Set() {
		return 0, false
	}
	jump := media.UnitsBetween(checkpoint.TargetEnd, targetStart)
	if jump <= p.MaxForwardJump {
		return 0, false
	}
	if jump > 2*p.MaxForwardJump {
		return 0, true
	}
	excess := jump - p.MaxForwardJump
	return excess * p.JumpPenaltyRate, false
}
