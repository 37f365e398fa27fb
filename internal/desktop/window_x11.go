package desktop

import (
	"context"
	"strings"

	deskerrors "github.com/rahul/deskpilot/internal/errors"
)

// XdotoolWindows reads and focuses X11 windows through xdotool.
type XdotoolWindows struct {
	run Runner
}

func NewXdotoolWindows(run Runner) *XdotoolWindows {
	if run == nil {
		run = ExecRunner{}
	}
	return &XdotoolWindows{run: run}
}

func (x *XdotoolWindows) ActiveTitle(ctx context.Context) (string, error) {
	out, err := x.run.Run(ctx, "xdotool", "getactivewindow", "getwindowname")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

func (x *XdotoolWindows) TryFocus(ctx context.Context, query string) (bool, error) {
	out, err := x.run.Run(ctx, "xdotool", "search", "--onlyvisible", "--name", ".")
	if err != nil {
		// search exits non-zero when nothing is visible
		if len(strings.TrimSpace(string(out))) == 0 && deskerrors.IsRecoverable(err) {
			return false, nil
		}
		return false, err
	}

	needle := strings.ToLower(query)
	for _, id := range strings.Fields(string(out)) {
		name, err := x.run.Run(ctx, "xdotool", "getwindowname", id)
		if err != nil {
			continue
		}
		if !strings.Contains(strings.ToLower(strings.TrimSpace(string(name))), needle) {
			continue
		}
		// windowmap restores an iconified window before activation
		if _, err := x.run.Run(ctx, "xdotool", "windowmap", id, "windowactivate", "--sync", id); err != nil {
			return false, err
		}
		active, err := x.run.Run(ctx, "xdotool", "getactivewindow")
		if err != nil {
			return false, err
		}
		return strings.TrimSpace(string(active)) == id, nil
	}
	return false, nil
}
