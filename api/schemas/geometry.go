package schemas

import "fmt"

// Point is a pixel position on the primary display, origin at the top-left corner.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Rect is a pixel rectangle in screen space. Right and Bottom are exclusive.
type Rect struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
}

// RectFromLTRB mirrors the usual left/top/right/bottom constructor.
func RectFromLTRB(left, top, right, bottom int) Rect {
	return Rect{Left: left, Top: top, Right: right, Bottom: bottom}
}

func (r Rect) Width() int  { return r.Right - r.Left }
func (r Rect) Height() int { return r.Bottom - r.Top }

// Empty reports whether the rectangle covers no pixels.
func (r Rect) Empty() bool { return r.Width() <= 0 || r.Height() <= 0 }

// Center returns the integer midpoint, truncating toward zero.
func (r Rect) Center() Point {
	return Point{X: (r.Left + r.Right) / 2, Y: (r.Top + r.Bottom) / 2}
}

// Contains uses half-open bounds: left <= x < right and top <= y < bottom.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.Left && p.X < r.Right && p.Y >= r.Top && p.Y < r.Bottom
}

// Inflate grows the rectangle by n pixels on every side.
func (r Rect) Inflate(n int) Rect {
	return Rect{Left: r.Left - n, Top: r.Top - n, Right: r.Right + n, Bottom: r.Bottom + n}
}

// Intersect returns the overlap of r and o, or the zero Rect if they do not overlap.
func (r Rect) Intersect(o Rect) Rect {
	out := Rect{
		Left:   max(r.Left, o.Left),
		Top:    max(r.Top, o.Top),
		Right:  min(r.Right, o.Right),
		Bottom: min(r.Bottom, o.Bottom),
	}
	if out.Empty() {
		return Rect{}
	}
	return out
}

func (r Rect) String() string {
	return fmt.Sprintf("(%d,%d)-(%d,%d)", r.Left, r.Top, r.Right, r.Bottom)
}

// Screen describes the single addressable display surface.
type Screen struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Bounds returns the full-screen rectangle.
func (s Screen) Bounds() Rect {
	return Rect{Right: s.Width, Bottom: s.Height}
}
