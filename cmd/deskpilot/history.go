package main

import (
	"fmt"
	"time"

	"github.com/rahul/deskpilot/internal/store"
	"github.com/spf13/cobra"
)

func newHistoryCmd(c *cli) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show recent runs, or the steps of one run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.config()
			if err != nil {
				return err
			}
			if !cfg.History.Enabled {
				return fmt.Errorf("history is disabled (history.enabled=false)")
			}
			journal, err := store.NewRunStore(cfg.History.Path)
			if err != nil {
				return err
			}
			defer journal.Close()

			out := cmd.OutOrStdout()
			if len(args) == 1 {
				steps, err := journal.Steps(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if len(steps) == 0 {
					return fmt.Errorf("no steps recorded for run %s", args[0])
				}
				for _, s := range steps {
					fmt.Fprintf(out, "%s  [%d] %-18s %-9s %s\n",
						s.CreatedAt.Format(time.TimeOnly), s.Index+1, s.Action, s.Status, s.Message)
				}
				return nil
			}

			runs, err := journal.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			for _, r := range runs {
				fmt.Fprintf(out, "%s  %s  %-9s %q", r.ID, r.StartedAt.Format(time.DateTime), r.Status, r.Request)
				if r.Message != "" {
					fmt.Fprintf(out, "  %s", r.Message)
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to show")
	return cmd
}
