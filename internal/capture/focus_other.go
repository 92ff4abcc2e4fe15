//go:build !windows

package capture

// NewSystemFocusProvider reports no focus on this platform.
func NewSystemFocusProvider() FocusProvider {
	return NoFocus{}
}
