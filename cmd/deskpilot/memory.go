package main

import (
	"fmt"
	"strings"

	"github.com/rahul/deskpilot/internal/memory"
	"github.com/rahul/deskpilot/internal/observability"
	"github.com/spf13/cobra"
)

func newMemoryCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Inspect or prune remembered plans",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List remembered requests and their plans",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openMemory(c)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			entries := store.Entries()
			if len(entries) == 0 {
				fmt.Fprintf(out, "no remembered plans in %s\n", store.Path())
				return nil
			}
			for _, e := range entries {
				fmt.Fprintf(out, "%s\n%s", e.Request, observability.FormatPlan(e.Plan))
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "forget <request>",
		Short: "Forget the plan remembered for a request",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openMemory(c)
			if err != nil {
				return err
			}
			request := strings.Join(args, " ")
			removed, err := store.Forget(request)
			if err != nil {
				return err
			}
			if !removed {
				return fmt.Errorf("no plan remembered for %q", request)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "forgot %q\n", memory.NormalizeKey(request))
			return nil
		},
	})
	return cmd
}

func openMemory(c *cli) (*memory.Store, error) {
	cfg, err := c.config()
	if err != nil {
		return nil, err
	}
	return memory.Open(cfg.Memory.Path, observability.GetLogger())
}
