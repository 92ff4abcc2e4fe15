// Package winapi exposes the handful of user32 and gdi32 calls the pilot needs
// for screen capture, focus lookup, input injection and hotkey polling.
// Everything but this file is built on Windows only.
package winapi
