package main

import (
	"fmt"

	"github.com/rahul/deskpilot/internal/observability"
	"github.com/rahul/deskpilot/pkg/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// cli holds state shared by every subcommand.
type cli struct {
	cfgFile string
	cfg     *config.Config
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "deskpilot",
		Short:         "Turn natural-language requests into validated desktop actions.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(c.cfgFile)
			if err != nil {
				return err
			}
			c.cfg = cfg
			observability.InitializeLogger(cfg.Logger)
			observability.GetLogger().Debug("configuration loaded",
				zap.String("config", c.cfgFile), zap.String("command", cmd.Name()))
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&c.cfgFile, "config", "c", "config.json", "config file (JSON, YAML or TOML)")

	root.AddCommand(
		newRunCmd(c),
		newValidateCmd(c),
		newMemoryCmd(c),
		newHistoryCmd(c),
		newServeCmd(c),
	)
	return root
}

func (c *cli) config() (*config.Config, error) {
	if c.cfg == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}
	return c.cfg, nil
}
