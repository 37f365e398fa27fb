package desktop

import (
	"context"
	"strings"
	"time"

	deskerrors "github.com/rahul/deskpilot/internal/errors"
	"github.com/rahul/deskpilot/internal/observability"
	"github.com/rahul/deskpilot/pkg/config"
	"go.uber.org/zap"
)

// WindowBackend is one platform's window primitives. TryFocus makes a single
// attempt and reports whether a matching window is now in the foreground.
type WindowBackend interface {
	ActiveTitle(ctx context.Context) (string, error)
	TryFocus(ctx context.Context, query string) (bool, error)
}

// WindowService reads the foreground window title and focuses windows by a
// case-insensitive title substring, retrying focus a bounded number of times.
type WindowService struct {
	backend  WindowBackend
	attempts int
	delay    time.Duration
	logger   *zap.Logger
}

func NewWindowService(backend WindowBackend, cfg config.WindowConfig, logger *zap.Logger) *WindowService {
	if backend == nil {
		backend = fallbackWindows{}
	}
	if logger == nil {
		logger = observability.GetLogger()
	}
	attempts := cfg.FocusAttempts
	if attempts < 1 {
		attempts = 1
	}
	return &WindowService{
		backend:  backend,
		attempts: attempts,
		delay:    cfg.FocusDelay,
		logger:   logger.Named("window"),
	}
}

// ActiveWindowTitle returns the foreground window title, possibly empty.
func (w *WindowService) ActiveWindowTitle(ctx context.Context) (string, error) {
	return w.backend.ActiveTitle(ctx)
}

// FocusWindow brings the first visible window whose title contains query to
// the foreground. It returns false with a nil error when no window matches.
func (w *WindowService) FocusWindow(ctx context.Context, query string) (bool, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return false, nil
	}

	var lastErr error
	for attempt := 1; attempt <= w.attempts; attempt++ {
		ok, err := w.backend.TryFocus(ctx, query)
		if ok {
			w.logger.Debug("window focused", observability.Event(observability.EventTypeWindow),
				zap.String("query", query), zap.Int("attempt", attempt))
			return true, nil
		}
		if err != nil {
			if !deskerrors.IsRecoverable(err) {
				return false, err
			}
			lastErr = err
			w.logger.Debug("focus attempt failed", observability.Event(observability.EventTypeWindow),
				zap.String("query", query), zap.Int("attempt", attempt), zap.Error(err))
		}
		if attempt == w.attempts {
			break
		}
		if err := sleepCtx(ctx, w.delay); err != nil {
			return false, err
		}
	}
	if lastErr != nil {
		return false, lastErr
	}
	return false, nil
}

type fallbackWindows struct{}

func (fallbackWindows) ActiveTitle(context.Context) (string, error) { return "", nil }
func (fallbackWindows) TryFocus(context.Context, string) (bool, error) { return false, nil }

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
