package schedule

import (
	"context"
	"time"

	"github.com/skedtool/sked/internal/core"
)

// candidateOffsets is the fixed, priority-ordered sequence of shifts tried
// against the draft's original start: nearest first, same day before next
// day. Generation order is the ranking; nothing is re-sorted afterward.
var candidateOffsets = []time.Duration{
	30 * time.Minute,
	60 * time.Minute,
	120 * time.Minute,
	24 * time.Hour,
}

// Advisor proposes conflict-free alternative slots for a draft that
// collided with something.
type Advisor struct {
	detector *Detector
}

// NewAdvisor creates an Advisor on top of an existing Detector, so both
// answer from the same view of provider state.
func NewAdvisor(detector *Detector) *Advisor {
	return &Advisor{detector: detector}
}

// SuggestReschedules returns the candidates from the fixed offset sequence
// that fit the working-hours window and overlap nothing visible to conflict
// detection, preserving the draft's duration. An empty result is a valid
// outcome meaning no in-window auto-suggestion exists, not an error.
func (a *Advisor) SuggestReschedules(ctx context.Context, user string, draft core.Draft, constraints core.Constraints) ([]core.Timespan, error) {
	if err := draft.Validate(); err != nil {
		return nil, err
	}
	if constraints == (core.Constraints{}) {
		constraints = core.DefaultConstraints()
	}
	if err := constraints.Validate(); err != nil {
		return nil, err
	}

	duration := draft.Duration()
	var suggestions []core.Timespan

	for _, offset := range candidateOffsets {
		span := core.Timespan{
			Start: draft.Start.Add(offset),
			End:   draft.Start.Add(offset).Add(duration),
		}
		if !constraints.Allows(span) {
			continue
		}

		shifted := draft
		shifted.Start = span.Start
		shifted.End = span.End
		conflicts, err := a.detector.DetectConflicts(ctx, user, shifted)
		if err != nil {
			return nil, err
		}
		if len(conflicts) > 0 {
			continue
		}

		suggestions = append(suggestions, span)
	}

	return suggestions, nil
}
