package capture

import (
	"image"
	"image/color"
	"image/draw"
	"math"
	"strconv"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"

	"github.com/xkilldash9x/deskpilot/api/schemas"
	"github.com/xkilldash9x/deskpilot/internal/config"
)

var (
	ringGlow  = color.RGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}
	ringColor = color.RGBA{R: 0xFF, A: 0xFF}

	gridMinor  = color.NRGBA{R: 128, G: 128, B: 128, A: 80}
	gridMajor  = color.NRGBA{R: 64, G: 64, B: 64, A: 140}
	labelBack  = color.NRGBA{A: 220}
	aimYellow  = color.RGBA{R: 0xFF, G: 0xFF, A: 0xFF}
	aimSkyBlue = color.RGBA{G: 0xBF, B: 0xFF, A: 0xFF}
)

const (
	minorWidth  = 2
	majorWidth  = 4
	aimWidth    = 3
	aimOutWidth = 1

	// kappa places cubic control points so a quarter curve approximates a circular arc.
	kappa = 0.5522847
)

// Overlay helpers assume frames with their origin at (0,0), as Grabbers produce.

// DrawFocusRing strokes a rounded rectangle around focus, padded by
// ring.Padding and clipped to the image: a white glow twice the ring
// thickness wide, then the red ring itself.
func DrawFocusRing(img *image.RGBA, focus schemas.Rect, ring config.RingConfig) {
	b := img.Bounds()
	frame := schemas.Rect{Right: b.Dx(), Bottom: b.Dy()}
	r := focus.Inflate(ring.Padding).Intersect(frame)
	if r.Empty() {
		return
	}
	strokeRoundedRect(img, r, float32(ring.Radius), float32(ring.Thickness*2), ringGlow)
	strokeRoundedRect(img, r, float32(ring.Radius), float32(ring.Thickness), ringColor)
}

type frect struct{ l, t, r, b float32 }

func (f frect) inset(d float32) frect { return frect{f.l + d, f.t + d, f.r - d, f.b - d} }

func (f frect) clip(w, h float32) frect {
	return frect{max(f.l, 0), max(f.t, 0), min(f.r, w), min(f.b, h)}
}

func (f frect) shift(dx, dy float32) frect { return frect{f.l + dx, f.t + dy, f.r + dx, f.b + dy} }

// pixels is the smallest whole-pixel rectangle covering f.
func (f frect) pixels() image.Rectangle {
	return image.Rect(int(math.Floor(float64(f.l))), int(math.Floor(float64(f.t))),
		int(math.Ceil(float64(f.r))), int(math.Ceil(float64(f.b))))
}

// strokeRoundedRect draws a pen of the given width centered on the outline of
// r. The stroke is filled as the area between an outer path and an inner path
// of opposite winding.
func strokeRoundedRect(img *image.RGBA, r schemas.Rect, radius, width float32, c color.Color) {
	if width <= 0 {
		return
	}
	b := img.Bounds()
	w, h := float32(b.Dx()), float32(b.Dy())
	base := frect{float32(r.Left), float32(r.Top), float32(r.Right), float32(r.Bottom)}
	half := width / 2

	outer := base.inset(-half).clip(w, h)
	area := outer.pixels()
	if area.Empty() {
		return
	}
	// The rasterizer covers only the stroke; its origin sits at area.Min.
	dx, dy := float32(-area.Min.X), float32(-area.Min.Y)
	z := vector.NewRasterizer(area.Dx(), area.Dy())
	roundedRectPath(z, outer.shift(dx, dy), radius+half, false)
	inner := base.inset(half)
	if inner.r > inner.l && inner.b > inner.t {
		roundedRectPath(z, inner.shift(dx, dy), max(radius-half, 0), true)
	}
	z.Draw(img, area.Add(b.Min), image.NewUniform(c), image.Point{})
}

// roundedRectPath adds a closed rounded rectangle. Clockwise in screen space
// unless reverse is set.
func roundedRectPath(z *vector.Rasterizer, f frect, radius float32, reverse bool) {
	radius = min(radius, (f.r-f.l)/2, (f.b-f.t)/2)
	k := radius * (1 - kappa)

	// Corner points walking clockwise from the top edge.
	type seg struct{ x0, y0, c1x, c1y, c2x, c2y, x1, y1 float32 }
	corners := []seg{
		{f.r - radius, f.t, f.r - k, f.t, f.r, f.t + k, f.r, f.t + radius},
		{f.r, f.b - radius, f.r, f.b - k, f.r - k, f.b, f.r - radius, f.b},
		{f.l + radius, f.b, f.l + k, f.b, f.l, f.b - k, f.l, f.b - radius},
		{f.l, f.t + radius, f.l, f.t + k, f.l + k, f.t, f.l + radius, f.t},
	}

	if !reverse {
		z.MoveTo(f.l+radius, f.t)
		for _, s := range corners {
			z.LineTo(s.x0, s.y0)
			z.CubeTo(s.c1x, s.c1y, s.c2x, s.c2y, s.x1, s.y1)
		}
		z.ClosePath()
		return
	}

	z.MoveTo(f.l+radius, f.t)
	for i := len(corners) - 1; i >= 0; i-- {
		s := corners[i]
		z.CubeTo(s.c2x, s.c2y, s.c1x, s.c1y, s.x0, s.y0)
		if i > 0 {
			prev := corners[i-1]
			z.LineTo(prev.x1, prev.y1)
		}
	}
	z.ClosePath()
}

// DrawGrid draws vertical then horizontal lines every grid.Step pixels,
// thicker on multiples of MajorEvery, with coordinate labels on multiples of
// LabelEvery along the top and left edges. A zero Step draws nothing.
func DrawGrid(img *image.RGBA, grid config.GridConfig) {
	if grid.Step <= 0 {
		return
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	lineStyle := func(v int) (color.Color, int) {
		if grid.MajorEvery > 0 && v%grid.MajorEvery == 0 {
			return gridMajor, majorWidth
		}
		return gridMinor, minorWidth
	}

	for x := 0; x < w; x += grid.Step {
		c, lw := lineStyle(x)
		fillRect(img, image.Rect(x-lw/2, 0, x-lw/2+lw, h), c)
		if grid.LabelEvery > 0 && x%grid.LabelEvery == 0 {
			drawLabel(img, strconv.Itoa(x), x+2, 2)
		}
	}
	for y := 0; y < h; y += grid.Step {
		c, lw := lineStyle(y)
		fillRect(img, image.Rect(0, y-lw/2, w, y-lw/2+lw), c)
		if grid.LabelEvery > 0 && y%grid.LabelEvery == 0 {
			drawLabel(img, strconv.Itoa(y), 2, y+2)
		}
	}
}

func fillRect(img *image.RGBA, r image.Rectangle, c color.Color) {
	r = r.Intersect(img.Bounds())
	if r.Empty() {
		return
	}
	draw.Draw(img, r, image.NewUniform(c), image.Point{}, draw.Over)
}

// drawLabel writes white text on a dark box whose top-left corner is (x, y).
func drawLabel(img *image.RGBA, text string, x, y int) {
	face := basicfont.Face7x13
	d := &font.Drawer{Dst: img, Src: image.White, Face: face}
	width := d.MeasureString(text).Ceil()
	height := face.Metrics().Height.Ceil()
	fillRect(img, image.Rect(x, y, x+width+4, y+height+2), labelBack)

	d.Dot = fixed.P(x+2, y+1+face.Metrics().Ascent.Ceil())
	d.DrawString(text)
}

// RenderAimOverlay copies frame and marks crop with a yellow dashed rectangle
// and a thin sky-blue dashed rectangle one pixel outside it.
func RenderAimOverlay(frame *image.RGBA, crop schemas.Rect) *image.RGBA {
	out := image.NewRGBA(frame.Bounds())
	copy(out.Pix, frame.Pix)

	b := out.Bounds()
	inner := image.Rect(crop.Left, crop.Top, crop.Right-1, crop.Bottom-1)
	dashedRect(out, inner, aimYellow, aimWidth)
	outer := image.Rect(
		max(b.Min.X, inner.Min.X-1), max(b.Min.Y, inner.Min.Y-1),
		min(b.Max.X-1, inner.Max.X+1), min(b.Max.Y-1, inner.Max.Y+1))
	dashedRect(out, outer, aimSkyBlue, aimOutWidth)
	return out
}

// dashedRect strokes the outline through the corner pixels r.Min and r.Max
// (inclusive) with dashes three widths long separated by one width.
func dashedRect(img *image.RGBA, r image.Rectangle, c color.Color, width int) {
	dash, gap := 3*width, width
	off := width / 2
	hline := func(y int) {
		for x := r.Min.X; x <= r.Max.X; x += dash + gap {
			fillRect(img, image.Rect(x, y-off, min(x+dash, r.Max.X+1), y-off+width), c)
		}
	}
	vline := func(x int) {
		for y := r.Min.Y; y <= r.Max.Y; y += dash + gap {
			fillRect(img, image.Rect(x-off, y, x-off+width, min(y+dash, r.Max.Y+1)), c)
		}
	}
	hline(r.Min.Y)
	hline(r.Max.Y)
	vline(r.Min.X)
	vline(r.Max.X)
}
