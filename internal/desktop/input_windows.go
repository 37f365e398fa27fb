//go:build windows

package desktop

import (
	"context"
	"fmt"
	"time"
	"unicode/utf16"
	"unsafe"

	deskerrors "github.com/rahul/deskpilot/internal/errors"
)

const (
	inputMouse    = 0
	inputKeyboard = 1

	keyEventKeyUp   = 0x0002
	keyEventUnicode = 0x0004

	mouseEventLeftDown = 0x0002
	mouseEventLeftUp   = 0x0004
)

var (
	procSendInput    = user32.NewProc("SendInput")
	procSetCursorPos = user32.NewProc("SetCursorPos")
)

type keyboardInput struct {
	wVk         uint16
	wScan       uint16
	dwFlags     uint32
	time        uint32
	dwExtraInfo uintptr
}

type mouseInput struct {
	dx          int32
	dy          int32
	mouseData   uint32
	dwFlags     uint32
	time        uint32
	dwExtraInfo uintptr
}

// keyboardEvent and mouseEvent mirror the INPUT union, padded to the size of
// its largest member.
type keyboardEvent struct {
	inputType uint32
	ki        keyboardInput
	padding   uint64
}

type mouseEvent struct {
	inputType uint32
	mi        mouseInput
}

// Win32Input synthesizes input with user32 SendInput.
type Win32Input struct {
	typeDelay time.Duration
}

func NewWin32Input(typeDelay time.Duration) *Win32Input {
	return &Win32Input{typeDelay: typeDelay}
}

func (w *Win32Input) Click(ctx context.Context, x, y int) error {
	if r, _, err := procSetCursorPos.Call(uintptr(x), uintptr(y)); r == 0 {
		return fmt.Errorf("SetCursorPos failed: %w", err)
	}
	events := []mouseEvent{
		{inputType: inputMouse, mi: mouseInput{dwFlags: mouseEventLeftDown}},
		{inputType: inputMouse, mi: mouseInput{dwFlags: mouseEventLeftUp}},
	}
	n, _, err := procSendInput.Call(uintptr(len(events)), uintptr(unsafe.Pointer(&events[0])), unsafe.Sizeof(events[0]))
	if int(n) != len(events) {
		return fmt.Errorf("SendInput injected %d of %d mouse events: %w", n, len(events), err)
	}
	return nil
}

func (w *Win32Input) TypeText(ctx context.Context, text string) error {
	for _, unit := range utf16.Encode([]rune(text)) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := sendKeys(
			keyboardEvent{inputType: inputKeyboard, ki: keyboardInput{wScan: unit, dwFlags: keyEventUnicode}},
			keyboardEvent{inputType: inputKeyboard, ki: keyboardInput{wScan: unit, dwFlags: keyEventUnicode | keyEventKeyUp}},
		); err != nil {
			return err
		}
		if w.typeDelay > 0 {
			time.Sleep(w.typeDelay)
		}
	}
	return nil
}

func (w *Win32Input) PressKey(ctx context.Context, chord Chord) error {
	codes, err := chord.VirtualKeys()
	if err != nil {
		return deskerrors.Wrap(deskerrors.CodeActionFailed, err, "invalid key", deskerrors.WithRecoverable(false))
	}
	events := make([]keyboardEvent, 0, len(codes)*2)
	for _, vk := range codes {
		events = append(events, keyboardEvent{inputType: inputKeyboard, ki: keyboardInput{wVk: vk}})
	}
	for i := len(codes) - 1; i >= 0; i-- {
		events = append(events, keyboardEvent{inputType: inputKeyboard, ki: keyboardInput{wVk: codes[i], dwFlags: keyEventKeyUp}})
	}
	return sendKeys(events...)
}

func sendKeys(events ...keyboardEvent) error {
	n, _, err := procSendInput.Call(uintptr(len(events)), uintptr(unsafe.Pointer(&events[0])), unsafe.Sizeof(events[0]))
	if int(n) != len(events) {
		return fmt.Errorf("SendInput injected %d of %d key events: %w", n, len(events), err)
	}
	return nil
}
