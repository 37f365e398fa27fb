// Package vision locates text on screen: it captures the display, runs OCR and
// matches queries against the recognized fragments.
package vision

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	deskerrors "github.com/rahul/deskpilot/internal/errors"
	"github.com/rahul/deskpilot/internal/observability"
	"github.com/rahul/deskpilot/pkg/config"
	"go.uber.org/zap"
)

// Clicker is the input primitive ClickText needs.
type Clicker interface {
	Click(ctx context.Context, x, y int) error
}

// Grounder answers "where is this text" questions about the live screen.
type Grounder struct {
	capturer   Capturer
	recognizer Recognizer
	clicker    Clicker
	matcher    *Matcher
	floor      float64
	poll       time.Duration
	logger     *zap.Logger
}

func NewGrounder(capturer Capturer, recognizer Recognizer, clicker Clicker, cfg config.GroundingConfig, logger *zap.Logger) *Grounder {
	if logger == nil {
		logger = observability.GetLogger()
	}
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = time.Second
	}
	return &Grounder{
		capturer:   capturer,
		recognizer: recognizer,
		clicker:    clicker,
		matcher:    NewMatcher(cfg.FuzzyThreshold),
		floor:      cfg.ConfidenceFloor,
		poll:       poll,
		logger:     logger.Named("grounding"),
	}
}

// Capture takes a screenshot for callers that inspect the image themselves.
func (g *Grounder) Capture(ctx context.Context) (string, error) {
	shot, err := g.capturer.Capture(ctx)
	if err != nil {
		return "", err
	}
	return shot.Path, nil
}

// scan captures the screen and returns the words above the confidence floor,
// with boxes in screen coordinates.
func (g *Grounder) scan(ctx context.Context) ([]Fragment, error) {
	shot, err := g.capturer.Capture(ctx)
	if err != nil {
		return nil, err
	}
	defer os.Remove(shot.Path)

	words, err := g.recognizer.Recognize(ctx, shot.Path)
	if err != nil {
		return nil, fmt.Errorf("ocr failed: %w", err)
	}
	kept := words[:0:0]
	for _, w := range words {
		if w.Confidence >= g.floor {
			w.Box.X += shot.Left
			w.Box.Y += shot.Top
			kept = append(kept, w)
		}
	}
	return kept, nil
}

// candidates lists words followed by multi-word lines.
func candidates(words []Fragment) []Fragment {
	out := append([]Fragment(nil), words...)
	for _, l := range Lines(words) {
		if strings.Contains(l.Text, " ") {
			out = append(out, l)
		}
	}
	return out
}

// FindText looks for query on the current screen.
func (g *Grounder) FindText(ctx context.Context, query string, fuzzy bool) (Match, bool, error) {
	words, err := g.scan(ctx)
	if err != nil {
		return Match{}, false, err
	}
	frags := candidates(words)

	var (
		m  Match
		ok bool
	)
	if fuzzy {
		m, ok = g.matcher.Fuzzy(query, frags)
	} else {
		m, ok = g.matcher.Exact(query, frags)
	}
	if ok {
		g.logger.Debug("text located", observability.Event(observability.EventTypeGrounding),
			zap.String("query", query), zap.String("matched", m.Fragment.Text),
			zap.String("kind", string(m.Kind)), zap.Float64("score", m.Score),
			zap.Int("x", m.X), zap.Int("y", m.Y))
	}
	return m, ok, nil
}

// ClickText clicks the center of the first exact match, falling back to one
// fuzzy search when the exact search misses.
func (g *Grounder) ClickText(ctx context.Context, query string) (Match, error) {
	m, ok, err := g.FindText(ctx, query, false)
	if err != nil {
		return Match{}, err
	}
	if !ok {
		g.logger.Info("exact match missed, retrying fuzzy", observability.Event(observability.EventTypeGrounding),
			zap.String("query", query))
		if m, ok, err = g.FindText(ctx, query, true); err != nil {
			return Match{}, err
		}
	}
	if !ok {
		return Match{}, deskerrors.New(deskerrors.CodeNotFound, fmt.Sprintf("text '%s' not found on screen", query))
	}
	if g.clicker == nil {
		return m, deskerrors.ActionFailed("no input driver configured", false)
	}
	if err := g.clicker.Click(ctx, m.X, m.Y); err != nil {
		return m, err
	}
	return m, nil
}

// WaitForText polls the screen until query appears or timeout elapses. Expiry
// is reported as a timeout, not as a miss.
func (g *Grounder) WaitForText(ctx context.Context, query string, timeout time.Duration) (Match, error) {
	deadline := time.Now().Add(timeout)
	for {
		m, ok, err := g.FindText(ctx, query, false)
		if ok {
			return m, nil
		}
		if err != nil {
			if !deskerrors.IsRecoverable(err) {
				return Match{}, err
			}
			g.logger.Debug("poll failed", observability.Event(observability.EventTypeGrounding),
				zap.String("query", query), zap.Error(err))
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return Match{}, deskerrors.New(deskerrors.CodeTimeout,
				fmt.Sprintf("text '%s' did not appear within %s", query, timeout))
		}
		wait := min(g.poll, remaining)
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return Match{}, deskerrors.Normalize(ctx.Err())
		case <-t.C:
		}
	}
}

// ReadScreen returns the recognized text, one OCR line per row.
func (g *Grounder) ReadScreen(ctx context.Context) (string, error) {
	words, err := g.scan(ctx)
	if err != nil {
		return "", err
	}
	lines := Lines(words)
	rows := make([]string, len(lines))
	for i, l := range lines {
		rows[i] = l.Text
	}
	return strings.Join(rows, "\n"), nil
}
