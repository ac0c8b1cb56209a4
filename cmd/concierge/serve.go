package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/planhub/concierge/internal/bridge"
	"github.com/planhub/concierge/internal/bridge/discord"
	"github.com/planhub/concierge/internal/bridge/slack"
	"github.com/planhub/concierge/internal/httpapi"
	"github.com/planhub/concierge/internal/session"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the assistant HTTP API and chat bridges",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "config.yaml", "path to config file")

	return cmd
}

func runServe(configPath string) error {
	a, err := buildApp(configPath)
	if err != nil {
		return err
	}
	defer a.logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		a.logger.Info("shutting down", zap.String("signal", sig.String()))
		cancel()
	}()

	sweeper, err := session.NewSweeper(session.SweeperOpts{
		Manager: a.sessions,
		Cron:    a.cfg.Session.SweepCron,
		Logger:  a.logger,
	})
	if err != nil {
		return err
	}
	go sweeper.Run(ctx)

	if err := startBridges(ctx, a); err != nil {
		return err
	}

	a.logger.Info("starting server", zap.Int("port", a.cfg.Server.Port))
	return httpapi.Start(ctx, httpapi.StartOpts{
		DB:        a.db,
		Assistant: a.assistant,
		Sessions:  a.sessions,
		Retriever: a.retriever,
		Port:      a.cfg.Server.Port,
		Logger:    a.logger,
	})
}

// startBridges launches the configured chat platform bridges. Reminder
// delivery rides on the first adapter that comes up.
func startBridges(ctx context.Context, a *app) error {
	resolver := bridge.DBUserResolver{DB: a.db}

	var adapters []bridge.Adapter

	if a.cfg.Slack.AppToken != "" && a.cfg.Slack.BotToken != "" {
		ad, err := slack.New(slack.AdapterOpts{
			AppToken: a.cfg.Slack.AppToken,
			BotToken: a.cfg.Slack.BotToken,
			Logger:   a.logger,
		})
		if err != nil {
			return err
		}
		adapters = append(adapters, ad)
	}

	if a.cfg.Discord.BotToken != "" {
		ad, err := discord.New(discord.AdapterOpts{
			BotToken: a.cfg.Discord.BotToken,
			Logger:   a.logger,
		})
		if err != nil {
			return err
		}
		adapters = append(adapters, ad)
	}

	for _, ad := range adapters {
		runner, err := bridge.NewRunner(bridge.RunnerOpts{
			Adapter:   ad,
			Resolver:  resolver,
			Assistant: a.assistant,
			Logger:    a.logger,
		})
		if err != nil {
			return err
		}
		go func() {
			if err := runner.Run(ctx); err != nil {
				a.logger.Error("bridge stopped", zap.Error(err))
			}
		}()
	}

	if len(adapters) > 0 {
		notifier, err := bridge.NewNotifier(bridge.NotifierOpts{
			Adapter:   adapters[0],
			Reminders: a.reminders,
			DB:        a.db,
			Logger:    a.logger,
		})
		if err != nil {
			return err
		}
		go notifier.Run(ctx)
	}

	return nil
}
