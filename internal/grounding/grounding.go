// Package grounding turns collaborator coordinates into screen pixels.
// Every rectangle it returns lies inside [0,W)x[0,H) and covers at least one pixel.
package grounding

import (
	"math"

	"github.com/xkilldash9x/deskpilot/api/schemas"
)

// Resolver binds coordinate resolution to one screen.
type Resolver struct {
	Screen schemas.Screen
	// FocusSize is the edge of the square built around a bare point.
	FocusSize int
}

// New creates a Resolver for the given screen.
func New(screen schemas.Screen, focusSize int) Resolver {
	return Resolver{Screen: screen, FocusSize: focusSize}
}

// NormalizedToPixels maps [0,1] coordinates onto pixels as round(n*(dim-1)).
// Rounding is half-to-even.
func (r Resolver) NormalizedToPixels(nx, ny float64) schemas.Point {
	return schemas.Point{
		X: int(math.RoundToEven(nx * float64(r.Screen.Width-1))),
		Y: int(math.RoundToEven(ny * float64(r.Screen.Height-1))),
	}
}

// PixelsToNormalized is the inverse used for the cursor report. The point is clamped first.
func (r Resolver) PixelsToNormalized(p schemas.Point) (float64, float64) {
	p = r.ClampPoint(p)
	return ratio(p.X, r.Screen.Width), ratio(p.Y, r.Screen.Height)
}

func ratio(v, dim int) float64 {
	if dim <= 1 {
		return 0
	}
	return float64(v) / float64(dim-1)
}

// ClampPoint pins p inside the screen.
func (r Resolver) ClampPoint(p schemas.Point) schemas.Point {
	return schemas.Point{
		X: clamp(p.X, 0, r.Screen.Width-1),
		Y: clamp(p.Y, 0, r.Screen.Height-1),
	}
}

// ClampRect pins a rectangle to the screen, keeping it at least 1x1.
func (r Resolver) ClampRect(rect schemas.Rect) schemas.Rect {
	w, h := r.Screen.Width, r.Screen.Height
	left := clamp(rect.Left, 0, w-1)
	top := clamp(rect.Top, 0, h-1)
	return schemas.Rect{
		Left:   left,
		Top:    top,
		Right:  max(left+1, min(w, rect.Right)),
		Bottom: max(top+1, min(h, rect.Bottom)),
	}
}

func clamp(v, lo, hi int) int {
	return max(lo, min(hi, v))
}

// SquareAround builds an unclamped size x size square whose top-left is c - size/2.
func SquareAround(c schemas.Point, size int) schemas.Rect {
	half := size / 2
	return schemas.Rect{Left: c.X - half, Top: c.Y - half, Right: c.X - half + size, Bottom: c.Y - half + size}
}

// ResolvePoint returns the pixel a coordinate designates: the center of a box,
// the pixel pair as is, or the scaled normalized pair. Pixel pairs are not clamped.
func (r Resolver) ResolvePoint(c schemas.Coord) (schemas.Point, bool) {
	switch v := c.(type) {
	case schemas.BBoxCoord:
		return v.Box.Center(), true
	case schemas.PixelCoord:
		return schemas.Point{X: v.X, Y: v.Y}, true
	case schemas.NormalizedCoord:
		return r.NormalizedToPixels(v.X, v.Y), true
	default:
		return schemas.Point{}, false
	}
}

// ResolveAimRect picks the target region for an aim action:
// bbox, then crop, then a focus square around the point. The result is clamped.
func (r Resolver) ResolveAimRect(a schemas.Action) (schemas.Rect, bool) {
	if box, ok := a.Target.(schemas.BBoxCoord); ok {
		return r.ClampRect(box.Box), true
	}
	if a.Crop != nil {
		return r.ClampRect(*a.Crop), true
	}
	return r.squareAt(a.Target)
}

// ResolveCropRect picks the zoom region for point and request_crop:
// crop, then bbox, then a focus square around the point. The result is clamped.
func (r Resolver) ResolveCropRect(a schemas.Action) (schemas.Rect, bool) {
	if a.Crop != nil {
		return r.ClampRect(*a.Crop), true
	}
	if box, ok := a.Target.(schemas.BBoxCoord); ok {
		return r.ClampRect(box.Box), true
	}
	return r.squareAt(a.Target)
}

func (r Resolver) squareAt(c schemas.Coord) (schemas.Rect, bool) {
	switch c.(type) {
	case schemas.PixelCoord, schemas.NormalizedCoord:
		p, _ := r.ResolvePoint(c)
		return r.ClampRect(SquareAround(p, r.FocusSize)), true
	default:
		return schemas.Rect{}, false
	}
}
