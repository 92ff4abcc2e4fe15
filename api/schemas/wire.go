package schemas

import (
	"fmt"
	"strings"
)

// -- Collaborator wire formats --
// Every field is present-or-null; the strict response schemas never allow omission.

// BoxDTO is a nullable rectangle as returned by the collaborator.
type BoxDTO struct {
	Left   *int `json:"left"`
	Top    *int `json:"top"`
	Right  *int `json:"right"`
	Bottom *int `json:"bottom"`
}

// Complete reports whether all four edges are present.
func (b *BoxDTO) Complete() bool {
	return b != nil && b.Left != nil && b.Top != nil && b.Right != nil && b.Bottom != nil
}

// Rect converts a complete box. Callers must check Complete first.
func (b *BoxDTO) Rect() Rect {
	return Rect{Left: *b.Left, Top: *b.Top, Right: *b.Right, Bottom: *b.Bottom}
}

// NewBoxDTO builds a fully populated box from a rectangle.
func NewBoxDTO(r Rect) *BoxDTO {
	return &BoxDTO{Left: &r.Left, Top: &r.Top, Right: &r.Right, Bottom: &r.Bottom}
}

// ActionDTO is the SingleAction structured output.
type ActionDTO struct {
	Type        string   `json:"type"`
	X           *float64 `json:"x"`
	Y           *float64 `json:"y"`
	XPx         *int     `json:"x_px"`
	YPx         *int     `json:"y_px"`
	Button      *string  `json:"button"`
	Keys        []string `json:"keys"`
	Text        *string  `json:"text"`
	ScrollDY    *int     `json:"scroll_dy"`
	BBox        *BoxDTO  `json:"bbox"`
	Crop        *BoxDTO  `json:"crop"`
	WaitSeconds *int     `json:"wait_seconds"`
	Note        *string  `json:"note"`
}

// ToAction validates the kind and collapses the coordinate fields into a single Coord,
// preferring the bounding box, then the pixel pair, then the normalized pair.
func (d ActionDTO) ToAction() (Action, error) {
	kind, err := ParseActionKind(d.Type)
	if err != nil {
		return Action{}, err
	}

	a := Action{
		Kind:        kind,
		Keys:        d.Keys,
		Text:        d.Text,
		WaitSeconds: d.WaitSeconds,
	}

	switch {
	case d.BBox.Complete():
		a.Target = BBoxCoord{Box: d.BBox.Rect()}
	case d.XPx != nil && d.YPx != nil:
		a.Target = PixelCoord{X: *d.XPx, Y: *d.YPx}
	case d.X != nil && d.Y != nil:
		a.Target = NormalizedCoord{X: *d.X, Y: *d.Y}
	}

	if d.Crop.Complete() {
		crop := d.Crop.Rect()
		a.Crop = &crop
	}

	if d.Button != nil {
		switch b := MouseButton(strings.ToLower(*d.Button)); b {
		case ButtonLeft, ButtonRight, ButtonMiddle:
			a.Button = b
		case ButtonNone:
		default:
			return Action{}, fmt.Errorf("unknown mouse button %q", *d.Button)
		}
	}
	if d.ScrollDY != nil {
		a.ScrollDY = *d.ScrollDY
	}
	if d.Note != nil {
		a.Note = strings.TrimSpace(*d.Note)
	}
	return a, nil
}

// VerifyDTO is the VerifyGoal structured output.
type VerifyDTO struct {
	Verdict *string `json:"verdict"`
	Reason  *string `json:"reason"`
}

// ToVerdict normalizes the verdict. A missing verdict is a rejection.
func (d VerifyDTO) ToVerdict() Verdict {
	v := Verdict{}
	if d.Verdict != nil {
		v.Confirmed = strings.EqualFold(strings.TrimSpace(*d.Verdict), "yes")
	}
	if d.Reason != nil {
		v.Reason = *d.Reason
	}
	return v
}

// QADTO is the QaLocate structured output used by question mode.
type QADTO struct {
	AnswerText *string  `json:"answer_text"`
	X          *float64 `json:"x"`
	Y          *float64 `json:"y"`
	XPx        *int     `json:"x_px"`
	YPx        *int     `json:"y_px"`
	BBox       *BoxDTO  `json:"bbox"`
	Note       *string  `json:"note"`
}

// ToResult converts the wire answer into a QAResult.
func (d QADTO) ToResult() QAResult {
	r := QAResult{}
	if d.AnswerText != nil {
		r.Answer = strings.TrimSpace(*d.AnswerText)
	}
	if d.Note != nil {
		r.Note = strings.TrimSpace(*d.Note)
	}
	// Normalized coordinates take priority over the pixel hint here, unlike actions.
	switch {
	case d.X != nil && d.Y != nil:
		r.Location = NormalizedCoord{X: *d.X, Y: *d.Y}
	case d.XPx != nil && d.YPx != nil:
		r.Location = PixelCoord{X: *d.XPx, Y: *d.YPx}
	}
	if d.BBox.Complete() {
		box := d.BBox.Rect()
		r.BBox = &box
	}
	return r
}

// Verdict is the outcome of a goal verification round.
type Verdict struct {
	Confirmed bool
	Reason    string
}

// QAResult is the answer to a screen question with optional location metadata.
type QAResult struct {
	Answer   string
	Location Coord
	BBox     *Rect
	Note     string
	// Pixel is Location resolved against the captured screen, set by question mode.
	Pixel *Point
}
