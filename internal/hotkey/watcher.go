// Package hotkey implements the emergency stop: a background watcher that
// cancels the running goal when Ctrl+Alt+Q is held.
package hotkey

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/deskpilot/internal/config"
)

// ErrUnsupportedPlatform is returned where no key-state source exists.
var ErrUnsupportedPlatform = errors.New("hotkey: platform not supported")

// Virtual key codes of the stop chord.
const (
	vkControl uint16 = 0x11
	vkMenu    uint16 = 0x12
	vkQ       uint16 = 'Q'
)

// KeyState reports whether a virtual key is currently held.
type KeyState interface {
	Down(vk uint16) bool
}

// Watcher polls a KeyState for the stop chord.
type Watcher struct {
	keys     KeyState
	interval time.Duration
	chord    []uint16
	stopped  atomic.Bool
	logger   *zap.Logger
}

// NewWatcher creates a Watcher polling keys every cfg.PollInterval.
func NewWatcher(keys KeyState, cfg config.HotkeyConfig, logger *zap.Logger) *Watcher {
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	return &Watcher{
		keys:     keys,
		interval: interval,
		chord:    []uint16{vkControl, vkMenu, vkQ},
		logger:   logger.Named("hotkey"),
	}
}

// Stopped reports whether the chord has fired.
func (w *Watcher) Stopped() bool {
	return w.stopped.Load()
}

// Reset clears the stop flag so the watcher can guard another goal.
func (w *Watcher) Reset() {
	w.stopped.Store(false)
}

func (w *Watcher) pressed() bool {
	for _, vk := range w.chord {
		if !w.keys.Down(vk) {
			return false
		}
	}
	return true
}

// Run polls until ctx is done or the chord is seen. On the chord it sets the
// stop flag, calls cancel and returns nil.
func (w *Watcher) Run(ctx context.Context, cancel context.CancelFunc) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if w.pressed() {
				w.stopped.Store(true)
				w.logger.Warn("Emergency stop requested (Ctrl+Alt+Q).")
				cancel()
				return nil
			}
		}
	}
}

// Supervise runs fn while w watches for the stop chord. The context passed to
// fn is cancelled when the chord fires. The watcher is shut down before
// Supervise returns. A nil watcher runs fn directly.
func Supervise(ctx context.Context, w *Watcher, fn func(ctx context.Context) error) error {
	if w == nil {
		return fn(ctx)
	}
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		return w.Run(gctx, cancel)
	})
	g.Go(func() error {
		defer cancel()
		return fn(gctx)
	})
	return g.Wait()
}
