package input

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/deskpilot/api/schemas"
)

// DryRunSink logs every event instead of injecting it. It tracks the cursor
// so glides and cursor reports stay consistent.
type DryRunSink struct {
	logger *zap.Logger

	mu     sync.Mutex
	cursor schemas.Point
}

// NewDryRunSink creates a sink that only logs.
func NewDryRunSink(logger *zap.Logger) *DryRunSink {
	return &DryRunSink{logger: logger.Named("dry_run")}
}

func (d *DryRunSink) DispatchMouseEvent(_ context.Context, data schemas.MouseEventData) error {
	if data.Type == schemas.MouseMove {
		d.mu.Lock()
		d.cursor = schemas.Point{X: data.X, Y: data.Y}
		d.mu.Unlock()
	}
	d.logger.Info("Mouse event suppressed.",
		zap.String("type", string(data.Type)),
		zap.Int("x", data.X),
		zap.Int("y", data.Y),
		zap.String("button", string(data.Button)),
		zap.Int("wheel_delta", data.WheelDelta))
	return nil
}

func (d *DryRunSink) DispatchKeyEvent(_ context.Context, data schemas.KeyEventData) error {
	fields := []zap.Field{zap.String("type", string(data.Type))}
	if data.Unicode {
		fields = append(fields, zap.String("char", string(data.Char)))
	} else {
		fields = append(fields, zap.Uint16("vk", data.VK))
	}
	d.logger.Debug("Key event suppressed.", fields...)
	return nil
}

func (d *DryRunSink) Cursor(context.Context) (schemas.Point, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cursor, nil
}

func (d *DryRunSink) Sleep(ctx context.Context, dur time.Duration) error {
	return sleepContext(ctx, dur)
}
