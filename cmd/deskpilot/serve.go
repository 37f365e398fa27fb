package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rahul/deskpilot/internal/gateway"
	"github.com/rahul/deskpilot/internal/observability"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Accept requests from the Telegram gateway",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.config()
			if err != nil {
				return err
			}
			tgCfg, ok := cfg.GetTelegramConfig()
			if !ok {
				return fmt.Errorf("telegram gateway is not enabled or token is missing")
			}
			if len(tgCfg.AllowedChats) == 0 {
				return fmt.Errorf("gateways.telegram.allowed_chats must list at least one chat")
			}

			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			tg, err := gateway.NewTelegramGateway(tgCfg.Token, a.pilot, tgCfg.AllowedChats, a.logger)
			if err != nil {
				return fmt.Errorf("failed to start telegram gateway: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			dashboard := observability.IsTerminal(os.Stdout)
			if dashboard {
				observability.InitializeTerminal()
				defer observability.CleanupTerminal()
				go tick(ctx, time.Second, observability.PrintLiveStatus)
			}
			observability.Heartbeat()
			go tick(ctx, 30*time.Second, observability.Heartbeat)

			errc := make(chan error, 1)
			go func() { errc <- tg.Start(ctx) }()
			a.logger.Info("gateway online", zap.Int("allowed_chats", len(tgCfg.AllowedChats)))

			select {
			case <-ctx.Done():
				_ = tg.Stop()
				<-errc
			case err = <-errc:
				if err != nil {
					a.logger.Error("gateway stopped", zap.Error(err))
				}
			}
			a.logger.Info("gateway offline")
			return err
		},
	}
}

func tick(ctx context.Context, every time.Duration, fn func()) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}
