package agent

import (
	"context"
	"fmt"

	"github.com/rahul/deskpilot/internal/executor"
	"github.com/rahul/deskpilot/internal/governance"
	"github.com/rahul/deskpilot/internal/observability"
	"github.com/rahul/deskpilot/internal/plan"
	"go.uber.org/zap"
)

// ReportStatus is the end state of one request.
type ReportStatus string

const (
	ReportCompleted ReportStatus = "completed"
	ReportFailed    ReportStatus = "failed"
	ReportNoop      ReportStatus = "noop"
	ReportRejected  ReportStatus = "rejected"
	ReportDeclined  ReportStatus = "declined"
)

// Report summarizes how a request was handled.
type Report struct {
	RunID   string       `json:"run_id,omitempty"`
	Request string       `json:"request"`
	Plan    plan.Plan    `json:"plan"`
	Status  ReportStatus `json:"status"`
	Reason  string       `json:"reason,omitempty"`
	Outcome plan.Outcome `json:"outcome"`
	// ConfirmErr is set when the plan was declined because confirmation
	// itself failed rather than because a human said no.
	ConfirmErr error `json:"-"`
}

// Confirmer asks a human to approve a plan before it runs.
type Confirmer interface {
	Confirm(ctx context.Context, request string, p plan.Plan) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, request string, p plan.Plan) (bool, error)

func (f ConfirmFunc) Confirm(ctx context.Context, request string, p plan.Plan) (bool, error) {
	return f(ctx, request, p)
}

type planner interface {
	Generate(ctx context.Context, request string, dctx DesktopContext) plan.Plan
}

type runner interface {
	Run(ctx context.Context, request string, p plan.Plan, observe executor.Observer) plan.Outcome
}

type windowReader interface {
	ActiveWindowTitle(ctx context.Context) (string, error)
}

// Journal records runs for later inspection.
type Journal interface {
	StartRun(ctx context.Context, request string, p plan.Plan) (string, error)
	RecordStep(ctx context.Context, runID string, step plan.Step) error
	FinishRun(ctx context.Context, runID string, status, message string) error
}

// Pilot drives one request through generate, validate, confirm and execute.
type Pilot struct {
	planner   planner
	validator *governance.Validator
	runner    runner
	windows   windowReader
	journal   Journal
	logger    *zap.Logger
}

func NewPilot(planner planner, validator *governance.Validator, runner runner, windows windowReader, journal Journal, logger *zap.Logger) *Pilot {
	if logger == nil {
		logger = observability.GetLogger()
	}
	if validator == nil {
		validator = governance.NewValidator()
	}
	return &Pilot{
		planner:   planner,
		validator: validator,
		runner:    runner,
		windows:   windows,
		journal:   journal,
		logger:    logger.Named("pilot"),
	}
}

// Plan generates and validates a plan without executing it.
func (p *Pilot) Plan(ctx context.Context, request string) (plan.Plan, governance.Result) {
	observability.SetStatus(observability.RolePlanning, request)

	var dctx DesktopContext
	if p.windows != nil {
		title, err := p.windows.ActiveWindowTitle(ctx)
		if err != nil {
			p.logger.Debug("active window unavailable", observability.Event(observability.EventTypeWindow), zap.Error(err))
		}
		dctx.ActiveWindow = title
	}

	pl := p.planner.Generate(ctx, request, dctx)
	res := p.validator.Validate(pl)
	p.logger.Info("plan checked", observability.Event(observability.EventTypePolicyCheck),
		zap.String("request", request), zap.Int("actions", pl.Len()),
		zap.String("effect", string(res.Effect)), zap.String("reason", res.Reason))
	return pl, res
}

// Handle runs the full pipeline. Invalid plans never reach the executor.
func (p *Pilot) Handle(ctx context.Context, request string, confirm Confirmer, observe executor.Observer) Report {
	observability.BeginRun()
	defer observability.EndRun()

	pl, res := p.Plan(ctx, request)
	report := Report{Request: request, Plan: pl, Outcome: plan.Outcome{FailedIndex: -1}}

	switch {
	case !res.Valid():
		report.Status, report.Reason = ReportRejected, res.Reason
		p.record(ctx, &report)
		return report
	case pl.IsEmpty():
		report.Status, report.Reason = ReportNoop, pl.Error
		if report.Reason == "" {
			report.Reason = res.Reason
		}
		report.Outcome.Status = plan.OutcomeNoop
		p.record(ctx, &report)
		return report
	}

	if confirm != nil {
		observability.SetStatus(observability.RoleWaiting, request)
		ok, err := confirm.Confirm(ctx, request, pl)
		if err != nil || !ok {
			report.Status, report.Reason = ReportDeclined, "plan was not approved"
			if err != nil {
				report.Reason = fmt.Sprintf("confirmation failed: %v", err)
				report.ConfirmErr = err
			}
			p.record(ctx, &report)
			return report
		}
	}

	observability.SetStatus(observability.RoleExecuting, request)
	runID := p.startRun(ctx, request, pl)
	report.RunID = runID

	outcome := p.runner.Run(ctx, request, pl, p.journaled(runID, observe))
	report.Outcome = outcome
	report.Reason = outcome.Message
	switch outcome.Status {
	case plan.OutcomeCompleted:
		report.Status = ReportCompleted
	case plan.OutcomeNoop:
		report.Status = ReportNoop
	default:
		report.Status = ReportFailed
	}
	p.finishRun(ctx, runID, report)
	return report
}

// journaled records every step before handing it to observe.
func (p *Pilot) journaled(runID string, observe executor.Observer) executor.Observer {
	if p.journal == nil || runID == "" {
		return observe
	}
	return func(ctx context.Context, step plan.Step) error {
		if err := p.journal.RecordStep(ctx, runID, step); err != nil {
			p.logger.Warn("failed to journal step", zap.String("run_id", runID), zap.Error(err))
		}
		if observe == nil {
			return nil
		}
		return observe(ctx, step)
	}
}

func (p *Pilot) startRun(ctx context.Context, request string, pl plan.Plan) string {
	if p.journal == nil {
		return ""
	}
	id, err := p.journal.StartRun(ctx, request, pl)
	if err != nil {
		p.logger.Warn("failed to journal run", zap.Error(err))
		return ""
	}
	return id
}

func (p *Pilot) finishRun(ctx context.Context, runID string, r Report) {
	if p.journal == nil || runID == "" {
		return
	}
	if err := p.journal.FinishRun(ctx, runID, string(r.Status), r.Reason); err != nil {
		p.logger.Warn("failed to finish journal run", zap.String("run_id", runID), zap.Error(err))
	}
}

// record journals a request that stopped before execution.
func (p *Pilot) record(ctx context.Context, r *Report) {
	p.logger.Info("request not executed", observability.Event(observability.EventTypePlan),
		zap.String("request", r.Request), zap.String("status", string(r.Status)), zap.String("reason", r.Reason))
	r.RunID = p.startRun(ctx, r.Request, r.Plan)
	p.finishRun(ctx, r.RunID, *r)
}
