package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rahul/deskpilot/internal/agent"
	"github.com/rahul/deskpilot/internal/gateway"
	"github.com/spf13/cobra"
)

func newRunCmd(c *cli) *cobra.Command {
	var assumeYes, dryRun bool
	cmd := &cobra.Command{
		Use:   "run <request>",
		Short: "Plan, confirm and execute one request",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.config()
			if err != nil {
				return err
			}
			request := strings.Join(args, " ")

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			if dryRun {
				p, res := a.pilot.Plan(ctx, request)
				fmt.Fprintln(out, gateway.FormatConfirmation(request, p))
				fmt.Fprintf(out, "validation: %s (%s)\n", res.Effect, res.Reason)
				if !res.Valid() {
					return fmt.Errorf("plan rejected: %s", res.Reason)
				}
				return nil
			}

			term := gateway.NewTerminalGateway(assumeYes)
			report := a.pilot.Handle(ctx, request, term, term.Observe)
			fmt.Fprintln(out, gateway.FormatReport(report))
			return reportError(report)
		},
	}
	cmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "execute without asking for confirmation")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the validated plan without executing it")
	return cmd
}

// reportError turns a report that did not complete into a non-zero exit.
func reportError(r agent.Report) error {
	switch r.Status {
	case agent.ReportCompleted, agent.ReportNoop:
		return nil
	case agent.ReportDeclined:
		if r.ConfirmErr != nil {
			return fmt.Errorf("request not run: %w", r.ConfirmErr)
		}
		return nil
	default:
		return fmt.Errorf("request %s: %s", r.Status, r.Reason)
	}
}
