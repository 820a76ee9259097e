package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mailfan/mailfan/internal/app"
	"github.com/mailfan/mailfan/internal/config"
)

var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Run one feed ingestion cycle immediately and deliver the results",
	RunE:  runPoll,
}

func runPoll(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	logger := newLogger(&cfg.Logging)

	a, err := app.New(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return a.PollOnce(ctx)
}
