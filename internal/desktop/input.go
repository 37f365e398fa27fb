package desktop

import (
	"context"
	"strconv"
	"time"

	deskerrors "github.com/rahul/deskpilot/internal/errors"
)

// InputDriver synthesizes mouse and keyboard input.
type InputDriver interface {
	Click(ctx context.Context, x, y int) error
	TypeText(ctx context.Context, text string) error
	PressKey(ctx context.Context, chord Chord) error
}

// XdotoolInput drives an X11 session through the xdotool CLI.
type XdotoolInput struct {
	run       Runner
	typeDelay time.Duration
}

func NewXdotoolInput(run Runner, typeDelay time.Duration) *XdotoolInput {
	if run == nil {
		run = ExecRunner{}
	}
	return &XdotoolInput{run: run, typeDelay: typeDelay}
}

func (x *XdotoolInput) Click(ctx context.Context, px, py int) error {
	_, err := x.run.Run(ctx, "xdotool", "mousemove", "--sync", strconv.Itoa(px), strconv.Itoa(py), "click", "1")
	return err
}

func (x *XdotoolInput) TypeText(ctx context.Context, text string) error {
	ms := int(x.typeDelay / time.Millisecond)
	_, err := x.run.Run(ctx, "xdotool", "type", "--delay", strconv.Itoa(ms), "--", text)
	return err
}

func (x *XdotoolInput) PressKey(ctx context.Context, chord Chord) error {
	_, err := x.run.Run(ctx, "xdotool", "key", "--clearmodifiers", chord.XdotoolName())
	return err
}

// unsupportedInput is used where no input backend exists.
type unsupportedInput struct{}

func (unsupportedInput) Click(context.Context, int, int) error { return errUnsupported("click") }
func (unsupportedInput) TypeText(context.Context, string) error { return errUnsupported("type") }
func (unsupportedInput) PressKey(context.Context, Chord) error { return errUnsupported("press") }

func errUnsupported(op string) error {
	return deskerrors.ActionFailed(op+" is not supported on this platform", false)
}
