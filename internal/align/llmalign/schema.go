package llmalign

import (
	"fmt"

	"concord/internal/media"
)

const (
	maxAnchors        = 3
	maxMatchedPhrases = 3
)

// checkpointResponse is the JSON the model must return for one checkpoint
// placement.
type checkpointResponse struct {
	Start            float64  `json:"start"`
	End              float64  `json:"end"`
	Confidence       float64  `json:"confidence"`
	NeedsWiderWindow bool     `json:"needs_wider_window"`
	Anchors          []string `json:"anchors"`
	MatchedPhrases   []string `json:"matched_phrases"`
}

// validate checks structural invariants and returns a message suitable for a
// corrective follow-up turn when they fail.
func (r *checkpointResponse) validate() error {
	if r.NeedsWiderWindow {
		return nil
	}
	if r.End < r.Start {
		return fmt.Errorf("end %v is before start %v; start must not exceed end", r.End, r.Start)
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("confidence %v is outside [0,1]", r.Confidence)
	}
	if len(r.Anchors) > maxAnchors {
		return fmt.Errorf("%d anchors given; return at most %d", len(r.Anchors), maxAnchors)
	}
	if len(r.MatchedPhrases) > maxMatchedPhrases {
		return fmt.Errorf("%d matched_phrases given; return at most %d", len(r.MatchedPhrases), maxMatchedPhrases)
	}
	return nil
}

func (r *checkpointResponse) startOrdinal() media.Ordinal {
	return media.OrdinalFromFloat(r.Start)
}

func (r *checkpointResponse) endOrdinal() media.Ordinal {
	return media.OrdinalFromFloat(r.End)
}

// rangeMapping is one entry of a full-range response.
type rangeMapping struct {
	FromNumber float64 `json:"from_number"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Confidence float64 `json:"confidence"`
}

func (m *rangeMapping) validate() error {
	if m.End < m.Start {
		return fmt.Errorf("mapping for %v: end %v is before start %v", m.FromNumber, m.End, m.Start)
	}
	if m.Confidence < 0 || m.Confidence > 1 {
		return fmt.Errorf("mapping for %v: confidence %v is outside [0,1]", m.FromNumber, m.Confidence)
	}
	return nil
}

// rangeResponse is the JSON the model must return for a full-range request.
// Uncertain carries the source segment numbers the model doubts.
type rangeResponse struct {
	Mappings   []rangeMapping `json:"mappings"`
	Confidence float64        `json:"confidence"`
	Uncertain  []float64      `json:"uncertain"`
}

func (r *rangeResponse) validate() error {
	if len(r.Mappings) == 0 {
		return fmt.Errorf("mappings is empty; return one entry per source segment you can place")
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("confidence %v is outside [0,1]", r.Confidence)
	}
	for i := range r.Mappings {
		if err := r.Mappings[i].validate(); err != nil {
			return err
		}
	}
	return nil
}
