//go:build windows

package desktop

import "time"

// NewPlatformInput returns the input driver for this OS.
func NewPlatformInput(_ Runner, typeDelay time.Duration) InputDriver {
	return NewWin32Input(typeDelay)
}

// NewPlatformWindows returns the window backend for this OS.
func NewPlatformWindows(_ Runner) WindowBackend {
	return Win32Windows{}
}
