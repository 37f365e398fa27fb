// Package desktop is the OS boundary: launching and closing applications,
// synthesizing input, and reading or focusing top-level windows.
package desktop

import (
	"context"
	"fmt"
	"time"

	deskerrors "github.com/rahul/deskpilot/internal/errors"
	"github.com/rahul/deskpilot/internal/observability"
	"go.uber.org/zap"
)

// Adapter performs the primitive desktop actions. Every method returns a
// deskerrors-classified error on failure.
type Adapter struct {
	input  InputDriver
	procs  *ProcessManager
	logger *zap.Logger
}

func NewAdapter(input InputDriver, procs *ProcessManager, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = observability.GetLogger()
	}
	logger = logger.Named("desktop")
	if input == nil {
		input = unsupportedInput{}
	}
	if procs == nil {
		procs = NewProcessManager(nil, logger)
	}
	return &Adapter{input: input, procs: procs, logger: logger}
}

func (a *Adapter) OpenApp(ctx context.Context, name string) error {
	_, err := a.procs.Launch(ctx, name)
	return classify(err)
}

func (a *Adapter) CloseApp(ctx context.Context, name string) error {
	_, err := a.procs.Close(ctx, name)
	return classify(err)
}

func (a *Adapter) Type(ctx context.Context, text string) error {
	return classify(a.input.TypeText(ctx, text))
}

func (a *Adapter) Press(ctx context.Context, key string) error {
	chord, err := ParseChord(key)
	if err != nil {
		return deskerrors.Wrap(deskerrors.CodeActionFailed, err, "invalid key", deskerrors.WithRecoverable(false))
	}
	return classify(a.input.PressKey(ctx, chord))
}

// Wait blocks for d or until ctx is done.
func (a *Adapter) Wait(ctx context.Context, d time.Duration) error {
	if d < 0 {
		return deskerrors.ActionFailed(fmt.Sprintf("invalid wait duration %s", d), false)
	}
	return classify(sleepCtx(ctx, d))
}

func (a *Adapter) Click(ctx context.Context, x, y int) error {
	if x < 0 || y < 0 {
		return deskerrors.ActionFailed(fmt.Sprintf("invalid coordinates (%d, %d)", x, y), false)
	}
	return classify(a.input.Click(ctx, x, y))
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	return deskerrors.Normalize(err)
}
