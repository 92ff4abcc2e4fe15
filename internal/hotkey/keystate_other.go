//go:build !windows

package hotkey

// NewSystemKeyState always fails with ErrUnsupportedPlatform here.
func NewSystemKeyState() (KeyState, error) {
	return nil, ErrUnsupportedPlatform
}
