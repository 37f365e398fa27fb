package main

import (
	"fmt"
	"io"
	"os"

	"github.com/rahul/deskpilot/internal/gateway"
	"github.com/spf13/cobra"
)

func newValidateCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file|->",
		Short: "Check a plan JSON file against the safety policy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.config()
			if err != nil {
				return err
			}
			var data []byte
			if args[0] == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(args[0])
			}
			if err != nil {
				return fmt.Errorf("failed to read plan: %w", err)
			}

			v, err := newValidator(cfg)
			if err != nil {
				return err
			}
			p, res := v.ValidateJSON(data)
			out := cmd.OutOrStdout()
			if p.Len() > 0 {
				fmt.Fprint(out, gateway.FormatConfirmation(args[0], p))
			}
			fmt.Fprintf(out, "%s: %s\n", res.Effect, res.Reason)
			if !res.Valid() {
				return fmt.Errorf("plan rejected")
			}
			return nil
		},
	}
}
