package align

// Summary is the per-run accounting every aligner reports: how many source
// segments ended up mapped, skipped for cause, or failed with an error.
type Summary struct {
	Matched int
	Skipped int
	Errored int
}

// Total returns the number of source segments the run considered.
func (s Summary) Total() int {
	return s.Matched + s.Skipped + s.Errored
}

// Merge folds another summary into this one.
func (s *Summary) Merge(other Summary) {
	s.Matched += other.Matched
	s.Skipped += other.Skipped
	s.Errored += other.Errored
}
