// Package guard implements the AIM state machine that gates clicks.
//
// A click is only executed when the collaborator has first declared a target
// region (aim) and the click point falls inside it. The region is forgotten as
// soon as the screen changes substantially, because the pixels it described
// are then no longer trustworthy.
package guard

import (
	"github.com/xkilldash9x/deskpilot/api/schemas"
	"github.com/xkilldash9x/deskpilot/internal/grounding"
)

// Reason names why a click was refused. The values appear verbatim in the step history.
type Reason string

const (
	ReasonMouseDisabled Reason = "mouse_disabled"
	ReasonWithoutAim    Reason = "click_without_aim"
	ReasonMissingCoords Reason = "click_missing_coords"
	ReasonOutsideAim    Reason = "click_outside_aim"
	ReasonNotApplicable Reason = "not_a_click"
)

// Verdict is the outcome of Check.
type Verdict struct {
	Allowed bool
	Reason  Reason
	// Point is the resolved click position when Allowed.
	Point schemas.Point
}

// Guard holds the active target region, if any.
type Guard struct {
	region      *schemas.Rect
	expireDelta float64
}

// New returns an Unset guard that expires on deltas above expireDelta.
func New(expireDelta float64) *Guard {
	return &Guard{expireDelta: expireDelta}
}

// Set activates the guard on r, replacing any previous region.
func (g *Guard) Set(r schemas.Rect) {
	g.region = &r
}

// Clear returns the guard to Unset.
func (g *Guard) Clear() {
	g.region = nil
}

// Region returns the active region.
func (g *Guard) Region() (schemas.Rect, bool) {
	if g.region == nil {
		return schemas.Rect{}, false
	}
	return *g.region, true
}

// Expire clears an active region when the observed delta exceeds the threshold.
// It reports whether a region was dropped.
func (g *Guard) Expire(delta float64) bool {
	if g.region == nil || !(delta > g.expireDelta) {
		return false
	}
	g.region = nil
	return true
}

// Check decides whether a click or double click may be executed.
// Other kinds are reported as not applicable and never allowed through here.
func (g *Guard) Check(a schemas.Action, res grounding.Resolver) Verdict {
	if !a.Kind.IsClick() {
		return Verdict{Reason: ReasonNotApplicable}
	}
	if g.region == nil {
		return Verdict{Reason: ReasonWithoutAim}
	}
	if !a.HasExplicitPoint() {
		return Verdict{Reason: ReasonMissingCoords}
	}
	p, _ := res.ResolvePoint(a.Target)
	if !g.region.Contains(p) {
		return Verdict{Reason: ReasonOutsideAim, Point: p}
	}
	return Verdict{Allowed: true, Point: p}
}
