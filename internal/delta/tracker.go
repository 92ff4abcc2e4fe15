package delta

import "math"

// State is the stagnation bookkeeping reported to the collaborator each round.
type State struct {
	// LastDelta is NaN until two frames have been compared.
	LastDelta     float64
	NoChangeSteps int
	LastSignature string
	RepeatCount   int
}

// Observation is the result of feeding one frame delta to the Tracker.
type Observation struct {
	Delta    float64
	NoChange bool
	State    State
}

// Tracker accumulates State across steps. It is not safe for concurrent use.
type Tracker struct {
	noChangeThreshold float64
	state             State
}

// NewTracker creates a tracker that treats deltas below noChangeThreshold as no change.
// AIM expiry is the guard's concern.
func NewTracker(noChangeThreshold float64) *Tracker {
	return &Tracker{
		noChangeThreshold: noChangeThreshold,
		state:             State{LastDelta: math.NaN()},
	}
}

// State returns a snapshot of the current bookkeeping.
func (t *Tracker) State() State { return t.state }

// Observe records the delta between the previous and the current frame.
// prevSignature is the signature of the action executed in between, or "" when
// there was none; in that case the repeat bookkeeping is left untouched.
func (t *Tracker) Observe(d float64, prevSignature string) Observation {
	noChange := d < t.noChangeThreshold
	t.state.LastDelta = d
	if noChange {
		t.state.NoChangeSteps++
	} else {
		t.state.NoChangeSteps = 0
	}

	if prevSignature != "" {
		if noChange && prevSignature == t.state.LastSignature {
			t.state.RepeatCount++
		} else {
			t.state.RepeatCount = 0
			t.state.LastSignature = prevSignature
		}
	}

	return Observation{
		Delta:    d,
		NoChange: noChange,
		State:    t.state,
	}
}
