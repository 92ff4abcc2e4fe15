//go:build windows

package capture

import (
	"context"
	"fmt"
	"image"
	"sync"

	"go.uber.org/zap"

	"github.com/xkilldash9x/deskpilot/internal/winapi"
)

var dpiOnce sync.Once

// ScreenGrabber copies the primary display through GDI.
type ScreenGrabber struct{}

// NewScreenGrabber returns the GDI grabber. With dpiAware set the process
// first opts into per-monitor DPI awareness so captured pixels match the
// coordinates SendInput uses.
func NewScreenGrabber(dpiAware bool, logger *zap.Logger) (*ScreenGrabber, error) {
	if dpiAware {
		dpiOnce.Do(func() {
			if !winapi.EnablePerMonitorDPIAwareness() {
				logger.Debug("Per-monitor DPI awareness unavailable or already set.")
			}
		})
	}
	return &ScreenGrabber{}, nil
}

func (g *ScreenGrabber) Grab(ctx context.Context) (*image.RGBA, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w := winapi.GetSystemMetrics(winapi.SM_CXSCREEN)
	h := winapi.GetSystemMetrics(winapi.SM_CYSCREEN)
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("capture: primary screen reports %dx%d", w, h)
	}
	return winapi.CaptureScreen(w, h)
}
