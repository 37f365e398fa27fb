package gateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/rahul/deskpilot/internal/agent"
	"github.com/rahul/deskpilot/internal/executor"
	"github.com/rahul/deskpilot/internal/observability"
	"github.com/rahul/deskpilot/internal/plan"
)

// Messenger defines the interface for remote request gateways.
type Messenger interface {
	// Start runs the message loop until ctx is done or Stop is called.
	Start(ctx context.Context) error
	// Send sends a message to a specific chat.
	Send(chatID string, text string) error
	// Stop gracefully shuts down the gateway.
	Stop() error
}

// Handler runs one request through the pipeline.
type Handler interface {
	Handle(ctx context.Context, request string, confirm agent.Confirmer, observe executor.Observer) agent.Report
}

// FormatConfirmation renders a plan awaiting approval.
func FormatConfirmation(request string, p plan.Plan) string {
	return fmt.Sprintf("Plan for %q:\n%s", request, observability.FormatPlan(p))
}

// FormatReport renders the end state of a request for a human.
func FormatReport(r agent.Report) string {
	var b strings.Builder
	switch r.Status {
	case agent.ReportCompleted:
		fmt.Fprintf(&b, "✔ Done: %s", r.Reason)
		for i, res := range r.Outcome.Results {
			if strings.TrimSpace(res) == "" {
				continue
			}
			fmt.Fprintf(&b, "\n%2d. %s", i+1, res)
		}
	case agent.ReportFailed:
		fmt.Fprintf(&b, "✘ Failed: %s", r.Reason)
	case agent.ReportRejected:
		fmt.Fprintf(&b, "⛔ Rejected: %s", r.Reason)
	case agent.ReportDeclined:
		fmt.Fprintf(&b, "Cancelled: %s", r.Reason)
	default:
		reason := r.Reason
		if reason == "" {
			reason = "no actions were planned"
		}
		fmt.Fprintf(&b, "Nothing to do: %s", reason)
	}
	return b.String()
}
