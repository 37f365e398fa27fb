//go:build windows

package desktop

import (
	"context"
	"runtime"
	"strings"
	"sync"
	"unsafe"

	"golang.org/x/sys/windows"
)

const swRestore = 9

var (
	user32 = windows.NewLazySystemDLL("user32.dll")

	procEnumWindows              = user32.NewProc("EnumWindows")
	procGetWindowTextW           = user32.NewProc("GetWindowTextW")
	procGetWindowTextLengthW     = user32.NewProc("GetWindowTextLengthW")
	procIsWindowVisible          = user32.NewProc("IsWindowVisible")
	procIsIconic                 = user32.NewProc("IsIconic")
	procShowWindow               = user32.NewProc("ShowWindow")
	procGetForegroundWindow      = user32.NewProc("GetForegroundWindow")
	procGetWindowThreadProcessId = user32.NewProc("GetWindowThreadProcessId")
	procAttachThreadInput        = user32.NewProc("AttachThreadInput")
	procSetForegroundWindow      = user32.NewProc("SetForegroundWindow")
	procBringWindowToTop         = user32.NewProc("BringWindowToTop")
)

// EnumWindows callbacks are a finite resource, so one callback is created
// and its results collected under enumMu.
var (
	enumMu       sync.Mutex
	enumResult   []windows.HWND
	enumCallback = windows.NewCallback(func(hwnd windows.HWND, _ uintptr) uintptr {
		enumResult = append(enumResult, hwnd)
		return 1
	})
)

// Win32Windows enumerates and focuses top-level windows through user32.
type Win32Windows struct{}

func (Win32Windows) ActiveTitle(ctx context.Context) (string, error) {
	hwnd, _, _ := procGetForegroundWindow.Call()
	if hwnd == 0 {
		return "", nil
	}
	return windowText(windows.HWND(hwnd)), nil
}

func (Win32Windows) TryFocus(ctx context.Context, query string) (bool, error) {
	needle := strings.ToLower(query)
	for _, hwnd := range topLevelWindows() {
		if visible, _, _ := procIsWindowVisible.Call(uintptr(hwnd)); visible == 0 {
			continue
		}
		title := windowText(hwnd)
		if title == "" || !strings.Contains(strings.ToLower(title), needle) {
			continue
		}
		return bringToFront(hwnd), nil
	}
	return false, nil
}

func topLevelWindows() []windows.HWND {
	enumMu.Lock()
	defer enumMu.Unlock()
	enumResult = enumResult[:0]
	procEnumWindows.Call(enumCallback, 0)
	out := make([]windows.HWND, len(enumResult))
	copy(out, enumResult)
	return out
}

func windowText(hwnd windows.HWND) string {
	n, _, _ := procGetWindowTextLengthW.Call(uintptr(hwnd))
	if n == 0 {
		return ""
	}
	buf := make([]uint16, n+1)
	procGetWindowTextW.Call(uintptr(hwnd), uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
	return windows.UTF16ToString(buf)
}

// bringToFront restores a minimized window and makes it the foreground
// window. Input is attached to the target's thread for the duration of the
// call so the foreground lock does not reject the request.
func bringToFront(hwnd windows.HWND) bool {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if iconic, _, _ := procIsIconic.Call(uintptr(hwnd)); iconic != 0 {
		procShowWindow.Call(uintptr(hwnd), swRestore)
	}

	current := windows.GetCurrentThreadId()
	target, _, _ := procGetWindowThreadProcessId.Call(uintptr(hwnd), 0)
	if target != 0 && uint32(target) != current {
		if ok, _, _ := procAttachThreadInput.Call(uintptr(current), target, 1); ok != 0 {
			defer procAttachThreadInput.Call(uintptr(current), target, 0)
		}
	}

	procBringWindowToTop.Call(uintptr(hwnd))
	procSetForegroundWindow.Call(uintptr(hwnd))
	fg, _, _ := procGetForegroundWindow.Call()
	return windows.HWND(fg) == hwnd
}
