package align

import "concord/internal/media"

// Window is the inclusive target-ordinal range candidate retrieval is
// restricted to for the current decision.
type Window struct {
	Min media.Ordinal
	Max media.Ordinal
}

// Width returns the inclusive window width in segment units.
func (w Window) Width() float64 {
	return media.RangeWidth(w.Min, w.Max)
}

// Contains reports whether the ordinal falls inside the window.
func (w Window) Contains(o media.Ordinal) bool {
	return o >= w.Min && o <= w.Max
}

// Bounds describes the first and last segment ordinals of an edition, used
// to clamp windows.
type Bounds struct {
	Min media.Ordinal
	Max media.Ordinal
}

// Clamp restricts the ordinal to the edition bounds.
func (b Bounds) Clamp(o media.Ordinal) media.Ordinal {
	if o < b.Min {
		return b.Min
	}
	if o > b.Max {
		return b.Max
	}
	return o
}

// WindowAround derives the search window from a checkpoint: checkpoint minus
// the before margin through checkpoint plus the after margin, widened
// symmetrically to the minimum width, capped at the maximum width, and
// clamped to the edition bounds.
func WindowAround(checkpoint media.Ordinal, p Policy, bounds Bounds) Window {
	w := Window{
		Min: checkpoint.AddUnits(-p.WindowBefore),
		Max: checkpoint.AddUnits(p.WindowAfter),
	}
	if w.Width() < p.WindowMinWidth {
		deficit := p.WindowMinWidth - w.Width()
		w.Min = w.Min.AddUnits(-deficit / 2)
		w.Max = w.Max.AddUnits(deficit / 2)
	}
	w = clampWindow(w, bounds)
	if w.Width() > p.WindowMaxWidth {
		w.Max = w.Min.AddUnits(p.WindowMaxWidth - 1)
	}
	return w
}

// Expand grows the window toward the target width, splitting the expansion
// roughly evenly on both sides while respecting the edition bounds. The
// result never exceeds the policy's maximum window width.
func (w Window) Expand(targetWidth float64, p Policy, bounds Bounds) Window {
	if targetWidth > p.WindowMaxWidth {
		targetWidth = p.WindowMaxWidth
	}
	extra := targetWidth - w.Width()
	if extra <= 0 {
		return w
	}
	expanded := Window{
		Min: w.Min.AddUnits(-extra / 2),
		Max: w.Max.AddUnits(extra / 2),
	}
	// When one side hits the edition edge, push the remainder to the other.
	if expanded.Min < bounds.Min {
		spill := media.UnitsBetween(expanded.Min, bounds.Min)
		expanded.Min = bounds.Min
		expanded.Max = expanded.Max.AddUnits(spill)
	}
	if expanded.Max > bounds.Max {
		spill := media.UnitsBetween(bounds.Max, expanded.Max)
		expanded.Max = bounds.Max
		expanded.Min = expanded.Min.AddUnits(-spill)
	}
	return clampWindow(expanded, bounds)
}

func clampWindow(w Window, bounds Bounds) Window {
	w.Min = bounds.Clamp(w.Min)
	w.Max = bounds.Clamp(w.Max)
	if w.Max < w.Min {
		w.Max = w.Min
	}
	return w
}
