//go:build windows

package hotkey

import "github.com/xkilldash9x/deskpilot/internal/winapi"

type asyncKeyState struct{}

func (asyncKeyState) Down(vk uint16) bool { return winapi.KeyDown(vk) }

// NewSystemKeyState reads the asynchronous keyboard state.
func NewSystemKeyState() (KeyState, error) {
	return asyncKeyState{}, nil
}
