//go:build !windows && !linux && !freebsd && !openbsd && !netbsd && !dragonfly

package desktop

import "time"

// NewPlatformInput returns the input driver for this OS.
func NewPlatformInput(_ Runner, _ time.Duration) InputDriver {
	return unsupportedInput{}
}

// NewPlatformWindows returns the window backend for this OS.
func NewPlatformWindows(_ Runner) WindowBackend {
	return fallbackWindows{}
}
