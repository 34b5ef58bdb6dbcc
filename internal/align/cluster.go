package align

import (
	"sort"

	"concord/internal/media"
)

// Tally accumulates candidate votes per target ordinal across the per-event
// searches of one source segment.
type Tally struct {
	votes map[media.Ordinal]*voteBucket
}

type voteBucket struct {
	count int
	sum   float64
}

// NewTally returns an empty vote tally.
func NewTally() *Tally {
	return &Tally{votes: make(map[media.Ordinal]*voteBucket)}
}

// Add records one vote for a target ordinal with the given similarity.
func (t *Tally) Add(number media.Ordinal, similarity float64) {
	b := t.votes[number]
	if b == nil {
		b = &voteBucket{}
		t.votes[number] = b
	}
	b.count++
	b.sum += similarity
}

// Empty reports whether no votes were recorded.
func (t *Tally) Empty() bool {
	return len(t.votes) == 0
}

// Vote is one tallied target ordinal with its aggregate support.
type Vote struct {
	Number media.Ordinal
	Count  int
	AvgSim float64
	SumSim float64
}

// Ranked returns the tallied votes ordered by descending average similarity,
// ties broken by ascending ordinal so ranking is reproducible.
func (t *Tally) Ranked() []Vote {
	ranked := make([]Vote, 0, len(t.votes))
	for number, b := range t.votes {
		ranked = append(ranked, Vote{
			Number: number,
			Count:  b.count,
			AvgSim: b.sum / float64(b.count),
			SumSim: b.sum,
		})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].AvgSim != ranked[j].AvgSim {
			return ranked[i].AvgSim > ranked[j].AvgSim
		}
		return ranked[i].Number < ranked[j].Number
	})
	return ranked
}

// Cluster is a contiguous run of supported target ordinals. UncappedStart
// and UncappedEnd preserve the bounds before any width capping so evidence
// can record both.
type Cluster struct {
	Start         media.Ordinal
	End           media.Ordinal
	UncappedStart media.Ordinal
	UncappedEnd   media.Ordinal
	Numbers       []media.Ordinal
	VoteCount     int
	AvgSim        float64 // mean of the member averages
}

// Width returns the cluster's inclusive range width in segment units.
func (c Cluster) Width() float64 {
	return media.RangeWidth(c.Start, c.End)
}

// ClusterVotes reduces a vote tally to the winning cluster:
//
//  1. Keep the ordinals whose average similarity sits within epsilon of the
//     top average.
//  2. Group the kept ordinals into clusters, merging neighbors no further
//     apart than the gap tolerance.
//  3. Pick the cluster containing the top-ranked ordinal.
//
// A lone high-similarity outlier therefore beats a broad low-quality spread:
// whatever cluster holds the best average wins, however light its vote mass.
// The boolean result is false when the tally is empty.
func ClusterVotes(t *Tally, p Policy) (Cluster, bool) {
	ranked := t.Ranked()
	if len(ranked) == 0 {
		return Cluster{}, false
	}

	top := ranked[0]
	band := make([]Vote, 0, len(ranked))
	for _, v := range ranked {
		if v.AvgSim >= top.AvgSim-p.ClusterEpsilon {
			band = append(band, v)
		}
	}
	sort.Slice(band, func(i, j int) bool { return band[i].Number < band[j].Number })

	clusters := groupVotes(band, p.GapTolerance)

	// The top ordinal is always in the band, so exactly one cluster holds it.
	best := clusters[0]
	for _, c := range clusters {
		if clusterContains(c, top.Number) {
			best = c
			break
		}
	}

	best.UncappedStart = best.Start
	best.UncappedEnd = best.End
	if best.Width() > p.VoteMaxWidth {
		best = capCluster(best, top.Number, p.VoteMaxWidth)
	}
	return best, true
}

func groupVotes(band []Vote, gap float64) []Cluster {
	var clusters []Cluster
	var current []Vote
	flush := func() {
		if len(current) == 0 {
			return
		}
		c := Cluster{
			Start: current[0].Number,
			End:   current[len(current)-1].Number,
		}
		var simSum float64
		for _, v := range current {
			c.Numbers = append(c.Numbers, v.Number)
			c.VoteCount += v.Count
			simSum += v.AvgSim
		}
		c.AvgSim = simSum / float64(len(current))
		clusters = append(clusters, c)
		current = nil
	}
	for _, v := range band {
		if len(current) > 0 && media.UnitsBetween(current[len(current)-1].Number, v.Number) > gap {
			flush()
		}
		current = append(current, v)
	}
	flush()
	return clusters
}

func clusterContains(c Cluster, number media.Ordinal) bool {
	for _, n := range c.Numbers {
		if n == number {
			return true
		}
	}
	return false
}

// capCluster narrows an over-wide cluster to the widest member run within
// the cap that still includes the anchor ordinal when the anchor is a member,
// otherwise the run starting at the cluster's first member.
func capCluster(c Cluster, anchor media.Ordinal, maxWidth float64) Cluster {
	if !clusterContains(c, anchor) {
		anchor = c.Numbers[0]
	}
	kept := make([]media.Ordinal, 0, len(c.Numbers))
	for _, n := range c.Numbers {
		if n < anchor {
			continue
		}
		if media.RangeWidth(anchor, n) > maxWidth {
			break
		}
		kept = append(kept, n)
	}
	// Grow backwards from the anchor with whatever width is left.
	for i := len(c.Numbers) - 1; i >= 0; i-- {
		n := c.Numbers[i]
		if n >= anchor {
			continue
		}
		if media.RangeWidth(n, kept[len(kept)-1]) > maxWidth {
			break
		}
		kept = append([]media.Ordinal{n}, kept...)
	}
	capped := Cluster{
		Start:         kept[0],
		End:           kept[len(kept)-1],
		UncappedStart: c.UncappedStart,
		UncappedEnd:   c.UncappedEnd,
		Numbers:       kept,
		AvgSim:        c.AvgSim,
	}
	capped.VoteCount = c.VoteCount
	return capped
}

// WeightedPoint is one matched target ordinal with a similarity weight, the
// unit the greedy aligner clusters on.
type WeightedPoint struct {
	Number media.Ordinal
	Weight float64
}

// ClusterWeighted groups the points by ordinal with the given gap tolerance
// and returns the group with the greatest total weight, ties broken by the
// lowest start. Groups wider than maxWidth are truncated at the cap. The
// boolean result is false when no points were supplied.
func ClusterWeighted(points []WeightedPoint, gap, maxWidth float64) (media.Ordinal, media.Ordinal, float64, bool) {
	if len(points) == 0 {
		return 0, 0, 0, false
	}
	sorted := make([]WeightedPoint, len(points))
	copy(sorted, points)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Number != sorted[j].Number {
			return sorted[i].Number < sorted[j].Number
		}
		return sorted[i].Weight > sorted[j].Weight
	})

	type span struct {
		start, end media.Ordinal
		weight     float64
		count      int
	}
	var spans []span
	current := span{start: sorted[0].Number, end: sorted[0].Number}
	for _, pt := range sorted {
		if media.UnitsBetween(current.end, pt.Number) > gap {
			spans = append(spans, current)
			current = span{start: pt.Number, end: pt.Number}
		}
		// Points past the width cap are excluded entirely so the span's
		// mean weight covers only members of the final cluster.
		if media.RangeWidth(current.start, pt.Number) > maxWidth {
			continue
		}
		current.end = pt.Number
		current.weight += pt.Weight
		current.count++
	}
	spans = append(spans, current)

	best := spans[0]
	for _, s := range spans[1:] {
		if s.weight > best.weight {
			best = s
		}
	}
	mean := best.weight / float64(best.count)
	return best.start, best.end, mean, true
}
