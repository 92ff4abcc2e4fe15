// Package delta measures how much the screen changed between two frames and
// tracks stagnation and repeated actions across steps.
package delta

import (
	"image"
	"math"
	"strconv"

	"golang.org/x/image/draw"
)

// Thumbnail dimensions both frames are resampled to before comparison.
const (
	ThumbWidth  = 96
	ThumbHeight = 54
)

// Compute returns the mean absolute luma difference of a and b in [0,1].
// Both images are resampled to a 96x54 thumbnail first, so frames of different
// sizes can be compared.
func Compute(a, b image.Image) float64 {
	ta := thumbnail(a)
	tb := thumbnail(b)

	var sum float64
	for i := 0; i < len(ta.Pix); i += 4 {
		la := luma(ta.Pix[i], ta.Pix[i+1], ta.Pix[i+2])
		lb := luma(tb.Pix[i], tb.Pix[i+1], tb.Pix[i+2])
		sum += math.Abs(la-lb) / 255.0
	}
	return sum / float64(ThumbWidth*ThumbHeight)
}

func thumbnail(src image.Image) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, ThumbWidth, ThumbHeight))
	draw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}

func luma(r, g, b uint8) float64 {
	return 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)
}

// Format renders a delta with at most four decimals and no trailing zeros.
// NaN means no measurement yet and renders as "N/A".
func Format(d float64) string {
	if math.IsNaN(d) {
		return "N/A"
	}
	return strconv.FormatFloat(math.Round(d*1e4)/1e4, 'f', -1, 64)
}
