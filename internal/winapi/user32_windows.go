//go:build windows

package winapi

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32 = windows.NewLazySystemDLL("user32.dll")

	procSendInput                     = user32.NewProc("SendInput")
	procSetCursorPos                  = user32.NewProc("SetCursorPos")
	procGetCursorPos                  = user32.NewProc("GetCursorPos")
	procGetSystemMetrics              = user32.NewProc("GetSystemMetrics")
	procGetAsyncKeyState              = user32.NewProc("GetAsyncKeyState")
	procSetProcessDpiAwarenessContext = user32.NewProc("SetProcessDpiAwarenessContext")
	procGetGUIThreadInfo              = user32.NewProc("GetGUIThreadInfo")
	procGetWindowRect                 = user32.NewProc("GetWindowRect")
	procGetAncestor                   = user32.NewProc("GetAncestor")
	procGetParent                     = user32.NewProc("GetParent")
	procGetDC                         = user32.NewProc("GetDC")
	procReleaseDC                     = user32.NewProc("ReleaseDC")
)

// System metric indices.
const (
	SM_CXSCREEN = 0
	SM_CYSCREEN = 1
)

// DPI_AWARENESS_CONTEXT_PER_MONITOR_AWARE_V2
const DpiAwarenessPerMonitorV2 = ^uintptr(3) // (HANDLE)-4

// GA_ROOT asks GetAncestor for the top-level window.
const GA_ROOT = 2

// RECT mirrors the Win32 RECT.
type RECT struct {
	Left, Top, Right, Bottom int32
}

// POINT mirrors the Win32 POINT.
type POINT struct {
	X, Y int32
}

// GUITHREADINFO mirrors the Win32 structure of the same name.
type GUITHREADINFO struct {
	CbSize        uint32
	Flags         uint32
	HwndActive    windows.HWND
	HwndFocus     windows.HWND
	HwndCapture   windows.HWND
	HwndMenuOwner windows.HWND
	HwndMoveSize  windows.HWND
	HwndCaret     windows.HWND
	RcCaret       RECT
}

// SendInput injects n packed INPUT structures of the given size.
func SendInput(n int, inputs unsafe.Pointer, size uintptr) error {
	r, _, err := procSendInput.Call(uintptr(n), uintptr(inputs), size)
	if int(r) != n {
		return fmt.Errorf("SendInput injected %d of %d events: %w", r, n, err)
	}
	return nil
}

func SetCursorPos(x, y int) error {
	r, _, err := procSetCursorPos.Call(uintptr(int32(x)), uintptr(int32(y)))
	if r == 0 {
		return fmt.Errorf("SetCursorPos: %w", err)
	}
	return nil
}

func GetCursorPos() (int, int, error) {
	var p POINT
	r, _, err := procGetCursorPos.Call(uintptr(unsafe.Pointer(&p)))
	if r == 0 {
		return 0, 0, fmt.Errorf("GetCursorPos: %w", err)
	}
	return int(p.X), int(p.Y), nil
}

func GetSystemMetrics(index int) int {
	r, _, _ := procGetSystemMetrics.Call(uintptr(index))
	return int(int32(r))
}

// KeyDown reports whether vk is held right now (high bit of GetAsyncKeyState).
func KeyDown(vk uint16) bool {
	r, _, _ := procGetAsyncKeyState.Call(uintptr(vk))
	return uint16(r)&0x8000 != 0
}

// EnablePerMonitorDPIAwareness opts the process into physical pixel coordinates.
// It returns false where the call is unavailable or was already made.
func EnablePerMonitorDPIAwareness() bool {
	if procSetProcessDpiAwarenessContext.Find() != nil {
		return false
	}
	r, _, _ := procSetProcessDpiAwarenessContext.Call(DpiAwarenessPerMonitorV2)
	return r != 0
}

// FocusedWindow returns the window holding keyboard focus on the foreground thread.
func FocusedWindow() (windows.HWND, error) {
	info := GUITHREADINFO{}
	info.CbSize = uint32(unsafe.Sizeof(info))
	r, _, err := procGetGUIThreadInfo.Call(0, uintptr(unsafe.Pointer(&info)))
	if r == 0 {
		return 0, fmt.Errorf("GetGUIThreadInfo: %w", err)
	}
	if info.HwndFocus != 0 {
		return info.HwndFocus, nil
	}
	return info.HwndActive, nil
}

func GetWindowRect(hwnd windows.HWND) (RECT, error) {
	var rc RECT
	r, _, err := procGetWindowRect.Call(uintptr(hwnd), uintptr(unsafe.Pointer(&rc)))
	if r == 0 {
		return RECT{}, fmt.Errorf("GetWindowRect: %w", err)
	}
	return rc, nil
}

// GetParent returns the parent or owner window, or 0 at the top.
func GetParent(hwnd windows.HWND) windows.HWND {
	r, _, _ := procGetParent.Call(uintptr(hwnd))
	return windows.HWND(r)
}

// RootWindow returns the top-level ancestor of hwnd.
func RootWindow(hwnd windows.HWND) windows.HWND {
	r, _, _ := procGetAncestor.Call(uintptr(hwnd), GA_ROOT)
	return windows.HWND(r)
}

func GetDC(hwnd windows.HWND) (windows.Handle, error) {
	r, _, err := procGetDC.Call(uintptr(hwnd))
	if r == 0 {
		return 0, fmt.Errorf("GetDC: %w", err)
	}
	return windows.Handle(r), nil
}

func ReleaseDC(hwnd windows.HWND, hdc windows.Handle) {
	procReleaseDC.Call(uintptr(hwnd), uintptr(hdc))
}
