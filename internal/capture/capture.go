// Package capture grabs the primary display, draws the visual aids the
// collaborator relies on (focus ring, coordinate grid) and cuts the crops that
// accompany each decision round.
package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/deskpilot/api/schemas"
	"github.com/xkilldash9x/deskpilot/internal/config"
	"github.com/xkilldash9x/deskpilot/internal/grounding"
)

// ErrUnsupportedPlatform is returned where no screen backend exists.
var ErrUnsupportedPlatform = errors.New("capture: platform not supported")

// Grabber reads the raw pixels of the primary display.
type Grabber interface {
	Grab(ctx context.Context) (*image.RGBA, error)
}

// Frame is one overlaid screenshot. It is not modified after Capture returns.
type Frame struct {
	Image      *image.RGBA
	Screen     schemas.Screen
	PNG        []byte
	CapturedAt time.Time
}

// Shot is everything produced by one Capture call.
type Shot struct {
	Frame *Frame
	// Crop is the clamped rectangle of the requested crop, nil when none was sent.
	Crop    *schemas.Rect
	CropPNG []byte
	// Focus is the raw focus rectangle reported by the provider chain.
	Focus    *schemas.Rect
	FocusPNG []byte
}

// Capturer assembles Shots from a Grabber and a FocusProvider.
type Capturer struct {
	grabber Grabber
	focus   FocusProvider
	cfg     config.CaptureConfig
	logger  *zap.Logger
	now     func() time.Time
}

// NewCapturer creates a Capturer. A nil focus provider disables the ring and the focus crop.
func NewCapturer(grabber Grabber, focus FocusProvider, cfg config.CaptureConfig, logger *zap.Logger) *Capturer {
	if focus == nil {
		focus = NoFocus{}
	}
	return &Capturer{
		grabber: grabber,
		focus:   focus,
		cfg:     cfg,
		logger:  logger.Named("capture"),
		now:     time.Now,
	}
}

// Capture grabs the screen, overlays the focus ring and grid, and clips the
// requested crop (if any) and the focus crop out of the overlaid frame.
func (c *Capturer) Capture(ctx context.Context, cropRequest *schemas.Rect) (*Shot, error) {
	img, err := c.grabber.Grab(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to grab screen: %w", err)
	}
	b := img.Bounds()
	screen := schemas.Screen{Width: b.Dx(), Height: b.Dy()}
	res := grounding.New(screen, 0)

	shot := &Shot{}
	if r, ok := c.focus.FocusRect(ctx); ok {
		shot.Focus = &r
		if c.cfg.Ring.Enabled {
			DrawFocusRing(img, r, c.cfg.Ring)
		}
	}
	DrawGrid(img, c.cfg.Grid)

	full, err := EncodePNG(img)
	if err != nil {
		return nil, err
	}
	shot.Frame = &Frame{Image: img, Screen: screen, PNG: full, CapturedAt: c.now()}

	if cropRequest != nil && c.cfg.SendCrop {
		r := res.ClampRect(*cropRequest)
		if shot.CropPNG, err = EncodePNG(Crop(img, r)); err != nil {
			return nil, err
		}
		shot.Crop = &r
	}

	if shot.Focus != nil && c.cfg.IncludeFocusCrop {
		r := res.ClampRect(*shot.Focus)
		if shot.FocusPNG, err = EncodePNG(Crop(img, r)); err != nil {
			return nil, err
		}
	}

	c.logger.Debug("Captured frame.",
		zap.Int("width", screen.Width),
		zap.Int("height", screen.Height),
		zap.Bool("crop", shot.Crop != nil),
		zap.Bool("focus", shot.Focus != nil))
	return shot, nil
}

// Crop returns the pixels of img inside r as a new image with origin (0,0).
func Crop(img *image.RGBA, r schemas.Rect) *image.RGBA {
	src := image.Rect(r.Left, r.Top, r.Right, r.Bottom).Intersect(img.Bounds())
	out := image.NewRGBA(image.Rect(0, 0, src.Dx(), src.Dy()))
	for y := 0; y < src.Dy(); y++ {
		from := img.PixOffset(src.Min.X, src.Min.Y+y)
		copy(out.Pix[y*out.Stride:y*out.Stride+src.Dx()*4], img.Pix[from:from+src.Dx()*4])
	}
	return out
}

// EncodePNG encodes img with default compression.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// CursorSource reports the pointer position. input.Sink satisfies it.
type CursorSource interface {
	Cursor(ctx context.Context) (schemas.Point, error)
}

// CursorReport is the pointer position in pixels and in [0,1] coordinates.
type CursorReport struct {
	Pixel schemas.Point
	NX    float64
	NY    float64
}

// CursorPos reads the pointer and clamps it to the screen. An unreadable
// cursor reports the origin.
func CursorPos(ctx context.Context, src CursorSource, res grounding.Resolver) CursorReport {
	p, err := src.Cursor(ctx)
	if err != nil {
		return CursorReport{}
	}
	p = res.ClampPoint(p)
	nx, ny := res.PixelsToNormalized(p)
	return CursorReport{Pixel: p, NX: nx, NY: ny}
}
