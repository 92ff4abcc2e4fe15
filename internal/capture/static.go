package capture

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"os"
)

// StaticGrabber returns a copy of a fixed image on every Grab. It backs
// dry runs on hosts without a screen backend.
type StaticGrabber struct {
	img *image.RGBA
}

// NewStaticGrabber copies img into an RGBA frame with origin (0,0).
func NewStaticGrabber(img image.Image) *StaticGrabber {
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return &StaticGrabber{img: rgba}
}

// LoadStaticGrabber reads a PNG file.
func LoadStaticGrabber(path string) (*StaticGrabber, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open frame: %w", err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame %s: %w", path, err)
	}
	return NewStaticGrabber(img), nil
}

func (g *StaticGrabber) Grab(ctx context.Context) (*image.RGBA, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := image.NewRGBA(g.img.Bounds())
	copy(out.Pix, g.img.Pix)
	return out, nil
}
