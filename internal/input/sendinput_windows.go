//go:build windows

package input

import (
	"context"
	"fmt"
	"time"
	"unicode/utf16"
	"unsafe"

	"github.com/xkilldash9x/deskpilot/api/schemas"
	"github.com/xkilldash9x/deskpilot/internal/winapi"
)

const (
	inputMouse    = 0
	inputKeyboard = 1

	mouseLeftDown   = 0x0002
	mouseLeftUp     = 0x0004
	mouseRightDown  = 0x0008
	mouseRightUp    = 0x0010
	mouseMiddleDown = 0x0020
	mouseMiddleUp   = 0x0040
	mouseWheel      = 0x0800

	keyEventUp      = 0x0002
	keyEventUnicode = 0x0004
)

type mouseInput struct {
	dx, dy      int32
	mouseData   uint32
	dwFlags     uint32
	time        uint32
	dwExtraInfo uintptr
}

// keybdInput is padded to the size of mouseInput, the largest union member.
type keybdInput struct {
	wVk         uint16
	wScan       uint16
	dwFlags     uint32
	time        uint32
	dwExtraInfo uintptr
	_           [8]byte
}

type mouseINPUT struct {
	typ uint32
	mi  mouseInput
}

type keybdINPUT struct {
	typ uint32
	ki  keybdInput
}

// SystemSink injects events into the interactive desktop with SendInput.
type SystemSink struct{}

// NewSystemSink returns the SendInput backed sink.
func NewSystemSink() (*SystemSink, error) {
	return &SystemSink{}, nil
}

func (s *SystemSink) DispatchMouseEvent(_ context.Context, data schemas.MouseEventData) error {
	switch data.Type {
	case schemas.MouseMove:
		return winapi.SetCursorPos(data.X, data.Y)
	case schemas.MouseWheel:
		// Windows scrolls up on positive deltas; ours scroll down.
		return sendMouse(mouseWheel, uint32(int32(-data.WheelDelta)))
	case schemas.MousePress, schemas.MouseRelease:
		flags, err := buttonFlags(data.Button, data.Type == schemas.MouseRelease)
		if err != nil {
			return err
		}
		return sendMouse(flags, 0)
	default:
		return fmt.Errorf("input: unsupported mouse event %q", data.Type)
	}
}

func buttonFlags(b schemas.MouseButton, up bool) (uint32, error) {
	switch b {
	case schemas.ButtonLeft, schemas.ButtonNone:
		return pick(up, mouseLeftUp, mouseLeftDown), nil
	case schemas.ButtonRight:
		return pick(up, mouseRightUp, mouseRightDown), nil
	case schemas.ButtonMiddle:
		return pick(up, mouseMiddleUp, mouseMiddleDown), nil
	default:
		return 0, fmt.Errorf("input: unsupported button %q", b)
	}
}

func pick(cond bool, a, b uint32) uint32 {
	if cond {
		return a
	}
	return b
}

func sendMouse(flags, data uint32) error {
	in := mouseINPUT{typ: inputMouse, mi: mouseInput{dwFlags: flags, mouseData: data}}
	return winapi.SendInput(1, unsafe.Pointer(&in), unsafe.Sizeof(in))
}

func (s *SystemSink) DispatchKeyEvent(_ context.Context, data schemas.KeyEventData) error {
	var up uint32
	if data.Type == schemas.KeyUp {
		up = keyEventUp
	}
	if !data.Unicode {
		return sendKey(keybdInput{wVk: data.VK, dwFlags: up})
	}
	// Runes outside the BMP travel as two UTF-16 units.
	for _, unit := range utf16.Encode([]rune{data.Char}) {
		if err := sendKey(keybdInput{wScan: unit, dwFlags: keyEventUnicode | up}); err != nil {
			return err
		}
	}
	return nil
}

func sendKey(ki keybdInput) error {
	in := keybdINPUT{typ: inputKeyboard, ki: ki}
	return winapi.SendInput(1, unsafe.Pointer(&in), unsafe.Sizeof(in))
}

func (s *SystemSink) Cursor(context.Context) (schemas.Point, error) {
	x, y, err := winapi.GetCursorPos()
	if err != nil {
		return schemas.Point{}, err
	}
	return schemas.Point{X: x, Y: y}, nil
}

func (s *SystemSink) Sleep(ctx context.Context, d time.Duration) error {
	return sleepContext(ctx, d)
}
