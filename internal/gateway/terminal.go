package gateway

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rahul/deskpilot/internal/observability"
	"github.com/rahul/deskpilot/internal/plan"
)

// ErrNotInteractive is returned when confirmation is needed but stdin is not
// a terminal.
var ErrNotInteractive = errors.New("stdin is not a terminal; pass --yes to run without confirmation")

// TerminalGateway confirms plans and prints progress on the local console.
type TerminalGateway struct {
	in          *bufio.Reader
	out         io.Writer
	assumeYes   bool
	interactive bool
}

func NewTerminalGateway(assumeYes bool) *TerminalGateway {
	return &TerminalGateway{
		in:          bufio.NewReader(os.Stdin),
		out:         os.Stdout,
		assumeYes:   assumeYes,
		interactive: observability.IsTerminal(os.Stdin),
	}
}

// NewTerminalGatewayWith uses explicit streams, for scripted input.
func NewTerminalGatewayWith(in io.Reader, out io.Writer, assumeYes, interactive bool) *TerminalGateway {
	return &TerminalGateway{in: bufio.NewReader(in), out: out, assumeYes: assumeYes, interactive: interactive}
}

func (t *TerminalGateway) Confirm(ctx context.Context, request string, p plan.Plan) (bool, error) {
	fmt.Fprintln(t.out, FormatConfirmation(request, p))
	if t.assumeYes {
		return true, nil
	}
	if !t.interactive {
		return false, ErrNotInteractive
	}
	fmt.Fprint(t.out, "Run this plan? [y/N] ")

	answer := make(chan string, 1)
	go func() {
		line, _ := t.in.ReadString('\n')
		answer <- line
	}()
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case line := <-answer:
		return isYes(line), nil
	}
}

// Observe prints each step as it changes state.
func (t *TerminalGateway) Observe(_ context.Context, step plan.Step) error {
	_, err := fmt.Fprintln(t.out, observability.FormatStep(step))
	return err
}

func (t *TerminalGateway) Send(_ string, text string) error {
	_, err := fmt.Fprintln(t.out, text)
	return err
}

func isYes(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "y", "yes", "ok", "run":
		return true
	}
	return false
}
