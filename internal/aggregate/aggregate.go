// Package aggregate maintains the cached subscriber count on lists.
package aggregate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mailfan/mailfan/internal/store"
)

// Counter recomputes a list's subscriber count whenever a subscription is
// created. Every subscription counts, whatever its status.
type Counter struct {
	lists  *store.ListStore
	subs   *store.SubscriptionStore
	logger *slog.Logger
}

func NewCounter(lists *store.ListStore, subs *store.SubscriptionStore, logger *slog.Logger) *Counter {
	return &Counter{
		lists:  lists,
		subs:   subs,
		logger: logger.With("component", "aggregate"),
	}
}

// Recount counts the list's subscriptions and overwrites the cached value
func (c *Counter) Recount(ctx context.Context, listID string) error {
	count, err := c.subs.CountByList(ctx, listID)
	if err != nil {
		return fmt.Errorf("failed to count subscriptions: %w", err)
	}
	if err := c.lists.UpdateSubscriberCount(ctx, listID, count); err != nil {
		return fmt.Errorf("failed to store subscriber count: %w", err)
	}
	return nil
}

// RecountAsync runs Recount in the background, detached from the caller's
// request. Failures are logged, never surfaced: a stale count must not fail a
// subscribe.
func (c *Counter) RecountAsync(listID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := c.Recount(ctx, listID); err != nil {
			c.logger.Error("subscriber recount failed", "list_id", listID, "error", err)
		}
	}()
}
