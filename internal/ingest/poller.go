package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mailfan/mailfan/internal/fanout"
	"github.com/mailfan/mailfan/internal/metrics"
	"github.com/mailfan/mailfan/internal/model"
	"github.com/mailfan/mailfan/internal/store"
)

// Gate decides whether a feed entry has been ingested before. The backing set
// is the item table; lookup is by URL alone, not scoped to a list.
type Gate struct {
	items *store.ItemStore
}

func NewGate(items *store.ItemStore) *Gate {
	return &Gate{items: items}
}

// Seen reports whether the URL was ingested before, by any list
func (g *Gate) Seen(ctx context.Context, url string) (bool, error) {
	return g.items.ExistsByURL(ctx, url)
}

// Poller runs one ingestion cycle over every list with a feed source. Lists
// are polled concurrently up to maxConcurrency; a failing feed only affects
// its own list.
type Poller struct {
	lists          *store.ListStore
	items          *store.ItemStore
	mails          *store.MailStore
	gate           *Gate
	fanout         *fanout.Engine
	fetcher        FeedFetcher
	metrics        *metrics.Metrics
	logger         *slog.Logger
	maxConcurrency int
}

func NewPoller(
	lists *store.ListStore,
	items *store.ItemStore,
	mails *store.MailStore,
	engine *fanout.Engine,
	fetcher FeedFetcher,
	m *metrics.Metrics,
	logger *slog.Logger,
	maxConcurrency int,
) *Poller {
	if maxConcurrency <= 0 {
		maxConcurrency = 4
	}
	return &Poller{
		lists:          lists,
		items:          items,
		mails:          mails,
		gate:           NewGate(items),
		fanout:         engine,
		fetcher:        fetcher,
		metrics:        m,
		logger:         logger.With("component", "poller"),
		maxConcurrency: maxConcurrency,
	}
}

// Run executes one poll cycle: every list with a source, every entry through
// the gate, new entries become an item marker plus a mail.
func (p *Poller) Run(ctx context.Context) error {
	lists, err := p.lists.ListWithSource(ctx)
	if err != nil {
		return fmt.Errorf("failed to load feed lists: %w", err)
	}
	if len(lists) == 0 {
		return nil
	}

	sem := make(chan struct{}, p.maxConcurrency)
	var wg sync.WaitGroup

	for i := range lists {
		select {
		case <-ctx.Done():
			wg.Wait()
			return ctx.Err()
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(list model.List) {
			defer func() {
				<-sem
				wg.Done()
			}()
			p.pollList(ctx, &list)
		}(lists[i])
	}

	wg.Wait()
	return nil
}

// pollList fetches one list's feed and ingests its unseen entries. Errors are
// logged and counted, never propagated: one broken feed must not block the
// other lists.
func (p *Poller) pollList(ctx context.Context, list *model.List) {
	p.metrics.FeedPollsTotal.Inc()

	entries, err := p.fetcher.Fetch(ctx, list.Source)
	if err != nil {
		p.metrics.FeedPollErrorsTotal.Inc()
		p.logger.Error("feed poll failed", "list_id", list.ID, "source", list.Source, "error", err)
		return
	}

	for i := range entries {
		if err := p.ingest(ctx, list, &entries[i]); err != nil {
			p.logger.Error("failed to ingest entry",
				"list_id", list.ID, "url", entries[i].Link, "error", err)
		}
	}
}

// ingest runs one entry through the dedup gate and, when new, creates the
// item marker first and the mail second. A crash between the two leaves a
// seen marker without a mail; entries are never re-ingested, so that loss is
// accepted.
func (p *Poller) ingest(ctx context.Context, list *model.List, entry *Entry) error {
	seen, err := p.gate.Seen(ctx, entry.Link)
	if err != nil {
		return err
	}
	if seen {
		p.metrics.ItemsSkippedTotal.Inc()
		return nil
	}

	item := &model.Item{ListID: list.ID, URL: entry.Link}
	if err := p.items.Create(ctx, item); err != nil {
		if errors.Is(err, store.ErrDuplicateURL) {
			// A concurrent poll won the race for this URL.
			p.metrics.ItemsSkippedTotal.Inc()
			return nil
		}
		return err
	}

	mail := &model.Mail{
		ListID:  list.ID,
		Subject: entry.Title,
		Content: entry.Content,
		Data:    map[string]string{"link": entry.Link},
	}
	if err := p.mails.Create(ctx, mail); err != nil {
		return err
	}
	p.metrics.ItemsIngestedTotal.Inc()
	p.logger.Info("ingested feed entry", "list_id", list.ID, "url", entry.Link, "subject", entry.Title)

	if err := p.fanout.FanOut(ctx, mail); err != nil {
		return fmt.Errorf("fan-out of ingested mail failed: %w", err)
	}
	return nil
}
