//go:build linux || freebsd || openbsd || netbsd || dragonfly

package desktop

import "time"

// NewPlatformInput returns the input driver for this OS.
func NewPlatformInput(run Runner, typeDelay time.Duration) InputDriver {
	return NewXdotoolInput(run, typeDelay)
}

// NewPlatformWindows returns the window backend for this OS.
func NewPlatformWindows(run Runner) WindowBackend {
	return NewXdotoolWindows(run)
}
