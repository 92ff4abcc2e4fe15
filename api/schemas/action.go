package schemas

import (
	"fmt"
	"strings"
)

// ActionKind is the closed set of intents the collaborator may return in one decision round.
type ActionKind uint8

const (
	KindUnknown ActionKind = iota
	KindMove
	KindClick
	KindDoubleClick
	KindKeys
	KindTypeText
	KindScroll
	KindRequestCrop
	KindPoint
	KindAim
	KindWait
	KindDone
)

var actionKindNames = [...]string{
	KindUnknown:     "unknown",
	KindMove:        "move",
	KindClick:       "click",
	KindDoubleClick: "double_click",
	KindKeys:        "keys",
	KindTypeText:    "type_text",
	KindScroll:      "scroll",
	KindRequestCrop: "request_crop",
	KindPoint:       "point",
	KindAim:         "aim",
	KindWait:        "wait",
	KindDone:        "done",
}

// ActionKinds lists every valid kind in wire order. The response schema enum is built from it.
func ActionKinds() []ActionKind {
	return []ActionKind{
		KindMove, KindClick, KindDoubleClick, KindKeys, KindTypeText, KindScroll,
		KindRequestCrop, KindPoint, KindAim, KindWait, KindDone,
	}
}

func (k ActionKind) String() string {
	if int(k) < len(actionKindNames) {
		return actionKindNames[k]
	}
	return fmt.Sprintf("ActionKind(%d)", uint8(k))
}

// ParseActionKind maps a wire name to its kind. Matching is case-insensitive.
func ParseActionKind(s string) (ActionKind, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for _, k := range ActionKinds() {
		if actionKindNames[k] == name {
			return k, nil
		}
	}
	return KindUnknown, fmt.Errorf("unknown action type %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (k ActionKind) MarshalText() ([]byte, error) {
	if k == KindUnknown || int(k) >= len(actionKindNames) {
		return nil, fmt.Errorf("cannot marshal %s", k)
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *ActionKind) UnmarshalText(b []byte) error {
	parsed, err := ParseActionKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// IsPointer reports whether the kind drives the mouse. These are suppressed when pointer actions are disabled.
func (k ActionKind) IsPointer() bool {
	switch k {
	case KindMove, KindClick, KindDoubleClick, KindScroll:
		return true
	default:
		return false
	}
}

// IsClick reports whether the kind must pass the AIM guard.
func (k ActionKind) IsClick() bool {
	return k == KindClick || k == KindDoubleClick
}

// MouseButton names a pointer button.
type MouseButton string

const (
	ButtonNone   MouseButton = ""
	ButtonLeft   MouseButton = "left"
	ButtonRight  MouseButton = "right"
	ButtonMiddle MouseButton = "middle"
)

// Coord is the single coordinate representation carried by an action.
// Exactly one of BBoxCoord, PixelCoord or NormalizedCoord is set; nil means none.
type Coord interface {
	isCoord()
}

// BBoxCoord targets the center of a pixel bounding box.
type BBoxCoord struct{ Box Rect }

// PixelCoord is an explicit pixel position.
type PixelCoord struct{ X, Y int }

// NormalizedCoord is a position in [0,1] on both axes, scaled by (W-1, H-1).
type NormalizedCoord struct{ X, Y float64 }

func (BBoxCoord) isCoord()       {}
func (PixelCoord) isCoord()      {}
func (NormalizedCoord) isCoord() {}

// Action is one decoded decision-round output.
type Action struct {
	Kind ActionKind
	// Target is the point/box the action refers to, nil when absent.
	Target Coord
	// Crop is a requested zoom region used by aim, point and request_crop.
	Crop        *Rect
	Button      MouseButton
	Keys        []string
	Text        *string
	ScrollDY    int
	WaitSeconds *int
	Note        string
}

// HasExplicitPoint reports whether the action names a point by box, pixel pair or normalized pair.
func (a Action) HasExplicitPoint() bool {
	return a.Target != nil
}

// ButtonOrDefault returns the requested button, defaulting to left.
func (a Action) ButtonOrDefault() MouseButton {
	if a.Button == ButtonNone {
		return ButtonLeft
	}
	return a.Button
}

// WaitOrDefault returns the wait duration in seconds, clamped to >= 0 with a default of 1.
func (a Action) WaitOrDefault() int {
	if a.WaitSeconds == nil {
		return 1
	}
	return max(0, *a.WaitSeconds)
}
