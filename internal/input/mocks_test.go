package input

import (
	"context"
	"sync"
	"time"

	"github.com/xkilldash9x/deskpilot/api/schemas"
)

// recordingSink implements Sink for tests and keeps everything it was asked to do.
type recordingSink struct {
	mu             sync.Mutex
	mouseEvents    []schemas.MouseEventData
	keyEvents      []schemas.KeyEventData
	sleepDurations []time.Duration
	cursor         schemas.Point
	cursorErr      error

	// Overrides replace the default behavior when set.
	MockDispatchMouseEvent func(ctx context.Context, data schemas.MouseEventData) error
	MockDispatchKeyEvent   func(ctx context.Context, data schemas.KeyEventData) error
	MockSleep              func(ctx context.Context, d time.Duration) error
}

func newRecordingSink() *recordingSink {
	return &recordingSink{}
}

func (m *recordingSink) DispatchMouseEvent(ctx context.Context, data schemas.MouseEventData) error {
	if m.MockDispatchMouseEvent != nil {
		return m.MockDispatchMouseEvent(ctx, data)
	}
	return m.DefaultDispatchMouseEvent(ctx, data)
}

func (m *recordingSink) DefaultDispatchMouseEvent(ctx context.Context, data schemas.MouseEventData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mouseEvents = append(m.mouseEvents, data)
	if data.Type == schemas.MouseMove {
		m.cursor = schemas.Point{X: data.X, Y: data.Y}
	}
	return ctx.Err()
}

func (m *recordingSink) DispatchKeyEvent(ctx context.Context, data schemas.KeyEventData) error {
	if m.MockDispatchKeyEvent != nil {
		return m.MockDispatchKeyEvent(ctx, data)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keyEvents = append(m.keyEvents, data)
	return ctx.Err()
}

func (m *recordingSink) Cursor(context.Context) (schemas.Point, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cursor, m.cursorErr
}

func (m *recordingSink) Sleep(ctx context.Context, d time.Duration) error {
	if m.MockSleep != nil {
		return m.MockSleep(ctx, d)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sleepDurations = append(m.sleepDurations, d)
	return nil
}

func (m *recordingSink) MouseEvents() []schemas.MouseEventData {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]schemas.MouseEventData(nil), m.mouseEvents...)
}

func (m *recordingSink) KeyEvents() []schemas.KeyEventData {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]schemas.KeyEventData(nil), m.keyEvents...)
}

// Helpers for building expected key sequences.

func vkDown(vk uint16) schemas.KeyEventData { return schemas.KeyEventData{Type: schemas.KeyDown, VK: vk} }
func vkUp(vk uint16) schemas.KeyEventData   { return schemas.KeyEventData{Type: schemas.KeyUp, VK: vk} }

func uniPress(r rune) []schemas.KeyEventData {
	return []schemas.KeyEventData{
		{Type: schemas.KeyDown, Char: r, Unicode: true},
		{Type: schemas.KeyUp, Char: r, Unicode: true},
	}
}
