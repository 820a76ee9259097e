// Package app wires the dispatcher together: content store, dispatch queue,
// delivery consumer, feed poller schedule and the HTTP API. Everything is
// constructed once here and injected; no component reaches for globals.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/mailfan/mailfan/internal/aggregate"
	"github.com/mailfan/mailfan/internal/api"
	"github.com/mailfan/mailfan/internal/config"
	"github.com/mailfan/mailfan/internal/db"
	"github.com/mailfan/mailfan/internal/dispatch"
	"github.com/mailfan/mailfan/internal/fanout"
	"github.com/mailfan/mailfan/internal/ingest"
	"github.com/mailfan/mailfan/internal/mailer"
	"github.com/mailfan/mailfan/internal/metrics"
	"github.com/mailfan/mailfan/internal/store"
)

// App is the assembled process
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	db      *db.DB
	stores  *store.Stores
	queue   *dispatch.Queue
	poller  *ingest.Poller
	server  *api.Server
	metrics *metrics.Metrics
	cron    *cron.Cron
}

// New builds the whole application from configuration
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	database, err := db.New(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(); err != nil {
		database.Close()
		return nil, err
	}

	stores := store.New(database.DB)
	m := metrics.New()

	queue, err := dispatch.Open(cfg.Storage.QueuePath, cfg.Dispatch.PollInterval, logger)
	if err != nil {
		database.Close()
		return nil, err
	}

	sender := mailer.NewSMTPClient(mailer.SMTPConfig{
		Host:       cfg.SMTP.Host,
		Port:       cfg.SMTP.Port,
		Username:   cfg.SMTP.Username,
		Password:   cfg.SMTP.Password,
		Encryption: cfg.SMTP.Encryption,
		Timeout:    cfg.SMTP.Timeout,
	}, logger)

	consumer := dispatch.NewConsumer(stores.Tasks, sender, cfg.Dispatch.RatePerSecond, m, logger)
	queue.Subscribe(dispatch.TopicEmail, consumer.Handle)

	engine := fanout.New(stores.Lists, stores.Subscriptions, stores.Tasks, queue, m, logger)
	counter := aggregate.NewCounter(stores.Lists, stores.Subscriptions, logger)

	fetcher := ingest.NewHTTPFetcher(cfg.Poller.FetchTimeout)
	poller := ingest.NewPoller(stores.Lists, stores.Items, stores.Mails, engine, fetcher, m, logger, cfg.Poller.MaxConcurrency)

	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	server := api.NewServer(stores, engine, counter, m, metricsPath, logger)

	return &App{
		cfg:     cfg,
		logger:  logger,
		db:      database,
		stores:  stores,
		queue:   queue,
		poller:  poller,
		server:  server,
		metrics: m,
		cron:    cron.New(),
	}, nil
}

// Run starts the consumer, the poll schedule and the HTTP server, then blocks
// until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	a.queue.Start(ctx)

	spec := fmt.Sprintf("%d %d * * *", a.cfg.Poller.Minute, a.cfg.Poller.Hour)
	if _, err := a.cron.AddFunc(spec, func() {
		if err := a.poller.Run(ctx); err != nil {
			a.logger.Error("feed poll cycle failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule feed poll: %w", err)
	}
	a.cron.Start()
	a.logger.Info("feed poll scheduled", "hour", a.cfg.Poller.Hour, "minute", a.cfg.Poller.Minute)

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.server.ListenAndServe(a.cfg.Server.ListenAddr)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			a.shutdown()
			return err
		}
	}

	return a.shutdown()
}

// PollOnce runs a single ingestion cycle, used by the poll command. The
// consumer is started too so the resulting tasks actually go out.
func (a *App) PollOnce(ctx context.Context) error {
	a.queue.Start(ctx)
	if err := a.poller.Run(ctx); err != nil {
		return err
	}

	// Let the consumer drain what the poll produced.
	for {
		pending, err := a.queue.Pending(dispatch.TopicEmail)
		if err != nil {
			return err
		}
		if pending == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(a.cfg.Dispatch.PollInterval):
		}
	}
}

// Close releases resources without running the serve loop
func (a *App) Close() error {
	cronCtx := a.cron.Stop()
	<-cronCtx.Done()

	if err := a.queue.Stop(); err != nil {
		a.logger.Error("queue shutdown failed", "error", err)
	}
	return a.db.Close()
}

func (a *App) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http shutdown failed", "error", err)
	}
	return a.Close()
}
