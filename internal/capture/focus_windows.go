//go:build windows

package capture

import (
	"context"

	"golang.org/x/sys/windows"

	"github.com/xkilldash9x/deskpilot/api/schemas"
	"github.com/xkilldash9x/deskpilot/internal/winapi"
)

// windowSource finds the focused control through the foreground thread's GUI info.
type windowSource struct{}

// NewSystemFocusProvider returns the chain provider over the focused window hierarchy.
func NewSystemFocusProvider() FocusProvider {
	return NewChainProvider(windowSource{})
}

func (windowSource) Focused(context.Context) (FocusNode, error) {
	hwnd, err := winapi.FocusedWindow()
	if err != nil {
		return nil, err
	}
	if hwnd == 0 {
		return nil, nil
	}
	return windowNode(hwnd), nil
}

type windowNode windows.HWND

func (n windowNode) Bounds() (schemas.Rect, bool) {
	return rectOf(windows.HWND(n))
}

func (n windowNode) WindowRect() (schemas.Rect, bool) {
	root := winapi.RootWindow(windows.HWND(n))
	if root == 0 {
		return schemas.Rect{}, false
	}
	return rectOf(root)
}

func (n windowNode) Parent() FocusNode {
	p := winapi.GetParent(windows.HWND(n))
	if p == 0 {
		return nil
	}
	return windowNode(p)
}

func rectOf(hwnd windows.HWND) (schemas.Rect, bool) {
	rc, err := winapi.GetWindowRect(hwnd)
	if err != nil {
		return schemas.Rect{}, false
	}
	return schemas.RectFromLTRB(int(rc.Left), int(rc.Top), int(rc.Right), int(rc.Bottom)), true
}
