// Package executor runs validated plans step by step against the desktop
// collaborators, retrying transient failures and reporting progress.
package executor

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	deskerrors "github.com/rahul/deskpilot/internal/errors"
	"github.com/rahul/deskpilot/internal/observability"
	"github.com/rahul/deskpilot/internal/plan"
	"github.com/rahul/deskpilot/internal/vision"
	"github.com/rahul/deskpilot/pkg/config"
	"go.uber.org/zap"
)

// Adapter performs primitive OS actions.
type Adapter interface {
	OpenApp(ctx context.Context, name string) error
	CloseApp(ctx context.Context, name string) error
	Type(ctx context.Context, text string) error
	Press(ctx context.Context, key string) error
	Wait(ctx context.Context, d time.Duration) error
	Click(ctx context.Context, x, y int) error
}

// WindowService reads and focuses top-level windows.
type WindowService interface {
	ActiveWindowTitle(ctx context.Context) (string, error)
	FocusWindow(ctx context.Context, title string) (bool, error)
}

// Grounder locates and reads on-screen text.
type Grounder interface {
	ClickText(ctx context.Context, text string) (vision.Match, error)
	WaitForText(ctx context.Context, text string, timeout time.Duration) (vision.Match, error)
	ReadScreen(ctx context.Context) (string, error)
	Capture(ctx context.Context) (string, error)
}

// Vision answers a free-form question about a screenshot.
type Vision interface {
	Analyze(ctx context.Context, imagePath, prompt string) (string, error)
}

// Memory records plans that ran to completion.
type Memory interface {
	Remember(request string, p plan.Plan) error
}

// Observer receives progress events in order, one call at a time. Errors and
// panics are logged and otherwise ignored.
type Observer func(ctx context.Context, step plan.Step) error

// Executor runs one plan at a time per call; it holds no per-run state and is
// safe for concurrent use.
type Executor struct {
	adapter  Adapter
	windows  WindowService
	grounder Grounder
	vision   Vision
	memory   Memory

	maxRetries      int
	retryDelay      time.Duration
	observerTimeout time.Duration
	logger          *zap.Logger
}

type Option func(*Executor)

func WithWindows(w WindowService) Option { return func(e *Executor) { e.windows = w } }
func WithGrounder(g Grounder) Option { return func(e *Executor) { e.grounder = g } }
func WithVision(v Vision) Option { return func(e *Executor) { e.vision = v } }
func WithMemory(m Memory) Option { return func(e *Executor) { e.memory = m } }

func New(adapter Adapter, cfg config.ExecutorConfig, logger *zap.Logger, opts ...Option) *Executor {
	if logger == nil {
		logger = observability.GetLogger()
	}
	e := &Executor{
		adapter:         adapter,
		maxRetries:      max(cfg.MaxRetries, 0),
		retryDelay:      cfg.RetryDelay,
		observerTimeout: cfg.ObserverTimeout,
		logger:          logger.Named("executor"),
	}
	if e.observerTimeout <= 0 {
		e.observerTimeout = 5 * time.Second
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes p in order and stops at the first step that fails after its
// retries. A plan that completes is remembered under request.
func (e *Executor) Run(ctx context.Context, request string, p plan.Plan, observe Observer) plan.Outcome {
	if p.IsEmpty() {
		e.logger.Info("nothing to execute", observability.Event(observability.EventTypePlan),
			zap.String("request", request), zap.String("diagnostic", p.Error))
		return plan.Outcome{Status: plan.OutcomeNoop, FailedIndex: -1, Message: "plan has no actions"}
	}

	events := e.newProgress(ctx, observe, p.Len())
	defer events.close()

	results := make([]string, 0, p.Len())
	for i, a := range p.Actions {
		events.emit(plan.Step{Index: i, Action: a.Name, Status: plan.StepRunning})

		msg, attempts, err := e.runStep(ctx, i, a)
		if err != nil {
			reason := deskerrors.Normalize(err).Error()
			e.logger.Error("step failed", observability.Event(observability.EventTypeStep),
				zap.Int("step", i), zap.String("action", string(a.Name)),
				zap.Int("attempts", attempts), zap.String("error", reason))
			events.emit(plan.Step{Index: i, Action: a.Name, Status: plan.StepFailed, Message: reason, Attempt: attempts})
			return plan.Outcome{
				Status:      plan.OutcomeFailed,
				FailedIndex: i,
				Message:     fmt.Sprintf("step %d (%s) failed: %s", i+1, a.Name, reason),
				Results:     results,
			}
		}

		results = append(results, msg)
		e.logger.Info("step completed", observability.Event(observability.EventTypeStep),
			zap.Int("step", i), zap.String("action", string(a.Name)), zap.Int("attempts", attempts))
		events.emit(plan.Step{Index: i, Action: a.Name, Status: plan.StepCompleted, Message: msg, Attempt: attempts})
	}

	if e.memory != nil {
		if err := e.memory.Remember(request, p); err != nil {
			e.logger.Warn("failed to remember plan", observability.Event(observability.EventTypeMemory),
				zap.String("request", request), zap.Error(err))
		}
	}
	return plan.Outcome{
		Status:      plan.OutcomeCompleted,
		FailedIndex: -1,
		Message:     fmt.Sprintf("completed %d action(s)", p.Len()),
		Results:     results,
	}
}

// runStep checks the action and dispatches it, retrying retriable kinds with
// a constant delay. Only the last error is returned.
func (e *Executor) runStep(ctx context.Context, index int, a plan.Action) (string, int, error) {
	if !a.Name.Known() {
		return "", 0, deskerrors.New(deskerrors.CodeUnknownAction, fmt.Sprintf("unknown action '%s'", a.Name))
	}
	if err := plan.CheckParams(a); err != nil {
		return "", 0, deskerrors.Wrap(deskerrors.CodeActionFailed, err, "invalid params", deskerrors.WithRecoverable(false))
	}

	retries := 0
	if plan.Retriable(a.Name) {
		retries = e.maxRetries
	}

	var (
		msg      string
		attempts int
	)
	op := func() error {
		attempts++
		out, err := e.dispatch(ctx, a)
		if err == nil {
			msg = out
			return nil
		}
		de := deskerrors.Normalize(err)
		e.logger.Warn("attempt failed", observability.Event(observability.EventTypeStep),
			zap.Int("step", index), zap.String("action", string(a.Name)),
			zap.Int("attempt", attempts), zap.Bool("recoverable", de.Recoverable()), zap.Error(de))
		if !de.Recoverable() {
			return backoff.Permanent(de)
		}
		return de
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(e.retryDelay), uint64(retries)), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return "", attempts, err
	}
	return msg, attempts, nil
}

func (e *Executor) dispatch(ctx context.Context, a plan.Action) (string, error) {
	switch a.Name {
	case plan.KindOpenApp:
		name, _ := a.StringParam("name")
		if err := e.adapter.OpenApp(ctx, name); err != nil {
			return "", err
		}
		return fmt.Sprintf("opened %s", name), nil

	case plan.KindCloseApp:
		name, _ := a.StringParam("name")
		if err := e.adapter.CloseApp(ctx, name); err != nil {
			return "", err
		}
		return fmt.Sprintf("closed %s", name), nil

	case plan.KindType:
		text, _ := a.StringParam("text")
		if err := e.adapter.Type(ctx, text); err != nil {
			return "", err
		}
		return fmt.Sprintf("typed %d character(s)", len([]rune(text))), nil

	case plan.KindPress:
		key, _ := a.StringParam("key")
		if err := e.adapter.Press(ctx, key); err != nil {
			return "", err
		}
		return fmt.Sprintf("pressed %s", key), nil

	case plan.KindWait:
		secs, ok := a.FloatParam("seconds")
		if !ok || secs < 0 {
			return "", deskerrors.ActionFailed("seconds must be a non-negative number", false)
		}
		if err := e.adapter.Wait(ctx, seconds(secs)); err != nil {
			return "", err
		}
		return fmt.Sprintf("waited %gs", secs), nil

	case plan.KindClick:
		x, okX := a.IntParam("x")
		y, okY := a.IntParam("y")
		if !okX || !okY {
			return "", deskerrors.ActionFailed("x and y must be numbers", false)
		}
		if err := e.adapter.Click(ctx, x, y); err != nil {
			return "", err
		}
		return fmt.Sprintf("clicked (%d, %d)", x, y), nil

	case plan.KindGetActiveWindow:
		if e.windows == nil {
			return "", notConfigured("window state service")
		}
		title, err := e.windows.ActiveWindowTitle(ctx)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("active window: %s", title), nil

	case plan.KindFocusWindow:
		if e.windows == nil {
			return "", notConfigured("window state service")
		}
		title, _ := a.StringParam("title")
		ok, err := e.windows.FocusWindow(ctx, title)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", deskerrors.ActionFailed(fmt.Sprintf("window not found: %s", title), false)
		}
		return fmt.Sprintf("focused %s", title), nil

	case plan.KindClickText:
		if e.grounder == nil {
			return "", notConfigured("visual grounding")
		}
		text, _ := a.StringParam("text")
		m, err := e.grounder.ClickText(ctx, text)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("clicked '%s' at (%d, %d)", m.Fragment.Text, m.X, m.Y), nil

	case plan.KindWaitForText:
		if e.grounder == nil {
			return "", notConfigured("visual grounding")
		}
		text, _ := a.StringParam("text")
		timeout, ok := a.FloatParam("timeout")
		if !ok || timeout <= 0 {
			timeout = plan.DefaultWaitForTextTimeout
		}
		m, err := e.grounder.WaitForText(ctx, text, seconds(timeout))
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("found '%s'", m.Fragment.Text), nil

	case plan.KindReadScreen:
		if e.grounder == nil {
			return "", notConfigured("visual grounding")
		}
		return e.grounder.ReadScreen(ctx)

	case plan.KindAnalyzeScreen:
		if e.grounder == nil || e.vision == nil {
			return "", notConfigured("screen analysis")
		}
		prompt, _ := a.StringParam("prompt")
		path, err := e.grounder.Capture(ctx)
		if err != nil {
			return "", err
		}
		defer os.Remove(path)
		return e.vision.Analyze(ctx, path, prompt)
	}
	return "", deskerrors.New(deskerrors.CodeUnknownAction, fmt.Sprintf("unknown action '%s'", a.Name))
}

// progress delivers step events to one observer from a single goroutine, so
// the observer sees events in order and never runs concurrently with itself.
// Each call gets observerTimeout; an observer that ignores its deadline only
// delays the events queued behind it.
type progress struct {
	ctx     context.Context
	observe Observer
	timeout time.Duration
	logger  *zap.Logger
	events  chan plan.Step
	done    chan struct{}
}

func (e *Executor) newProgress(ctx context.Context, observe Observer, steps int) *progress {
	if observe == nil {
		return nil
	}
	pr := &progress{
		ctx:     ctx,
		observe: observe,
		timeout: e.observerTimeout,
		logger:  e.logger,
		// running plus one terminal event per step
		events: make(chan plan.Step, 2*steps),
		done:   make(chan struct{}),
	}
	go pr.drain()
	return pr
}

func (pr *progress) emit(step plan.Step) {
	if pr == nil {
		return
	}
	pr.events <- step
}

// close stops accepting events and waits for the queue to drain, allowing
// each pending event its observer timeout.
func (pr *progress) close() {
	if pr == nil {
		return
	}
	close(pr.events)
	wait := pr.timeout * time.Duration(len(pr.events)+2)
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-pr.done:
	case <-t.C:
		pr.logger.Warn("observer is behind; remaining events are delivered in the background",
			zap.Int("pending", len(pr.events)), zap.Duration("waited", wait))
	}
}

func (pr *progress) drain() {
	defer close(pr.done)
	for step := range pr.events {
		pr.deliver(step)
	}
}

func (pr *progress) deliver(step plan.Step) {
	octx, cancel := context.WithTimeout(pr.ctx, pr.timeout)
	defer cancel()

	err := pr.call(octx, step)
	switch {
	case octx.Err() == context.DeadlineExceeded:
		pr.logger.Warn("observer timed out", zap.Int("step", step.Index),
			zap.String("status", string(step.Status)), zap.Duration("timeout", pr.timeout))
	case err != nil:
		pr.logger.Warn("observer failed", zap.Int("step", step.Index),
			zap.String("status", string(step.Status)), zap.Error(err))
	}
}

func (pr *progress) call(ctx context.Context, step plan.Step) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("observer panicked: %v", r)
		}
	}()
	return pr.observe(ctx, step)
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func notConfigured(what string) error {
	return deskerrors.ActionFailed(what+" is not configured", false)
}
