// Package fanout expands one mail into per-subscriber delivery tasks.
package fanout

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mailfan/mailfan/internal/dispatch"
	"github.com/mailfan/mailfan/internal/metrics"
	"github.com/mailfan/mailfan/internal/model"
	"github.com/mailfan/mailfan/internal/store"
)

// namePlaceholder is substituted once per subscriber in the mail content
const namePlaceholder = "{{name}}"

// Publisher is the dispatch side of the engine; satisfied by dispatch.Queue.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// Engine creates one task per live subscriber when a mail is created. It is
// called explicitly from the mail creation paths (API and feed ingestion).
type Engine struct {
	lists   *store.ListStore
	subs    *store.SubscriptionStore
	tasks   *store.TaskStore
	queue   Publisher
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func New(lists *store.ListStore, subs *store.SubscriptionStore, tasks *store.TaskStore, queue Publisher, m *metrics.Metrics, logger *slog.Logger) *Engine {
	return &Engine{
		lists:   lists,
		subs:    subs,
		tasks:   tasks,
		queue:   queue,
		metrics: m,
		logger:  logger.With("component", "fanout"),
	}
}

// FanOut creates and publishes one task per non-canceled subscription of the
// mail's list. Every subscriber is attempted even after an error; the first
// error is returned once the loop completes. Tasks already created stay
// created, partial fan-out is tolerated downstream.
func (e *Engine) FanOut(ctx context.Context, mail *model.Mail) error {
	list, err := e.lists.GetByID(ctx, mail.ListID)
	if err != nil {
		return fmt.Errorf("failed to load list %s: %w", mail.ListID, err)
	}
	if list == nil {
		return fmt.Errorf("mail %s references unknown list %s", mail.ID, mail.ListID)
	}

	subs, err := e.subs.ListActiveByList(ctx, list.ID)
	if err != nil {
		return fmt.Errorf("failed to load subscriptions: %w", err)
	}

	var firstErr error
	created := 0
	for i := range subs {
		if err := e.fanOutOne(ctx, mail, list, &subs[i]); err != nil {
			e.logger.Error("fan-out failed for subscriber",
				"mail_id", mail.ID, "recipient", subs[i].Email, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		created++
	}

	e.logger.Info("fan-out complete", "mail_id", mail.ID, "subscribers", len(subs), "tasks", created)
	return firstErr
}

// fanOutOne personalizes the mail for one subscriber, creates the task and
// publishes the delivery job.
func (e *Engine) fanOutOne(ctx context.Context, mail *model.Mail, list *model.List, sub *model.Subscription) error {
	task := &model.Task{
		MailID:    mail.ID,
		ListID:    list.ID,
		Sender:    list.From,
		Recipient: sub.Email,
		Subject:   mail.Subject,
		Content:   personalize(mail.Content, sub.DisplayName()),
		Data:      mail.Data,
	}

	if err := e.tasks.Create(ctx, task); err != nil {
		return err
	}
	e.metrics.TasksCreatedTotal.Inc()

	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to encode delivery job: %w", err)
	}
	if err := e.queue.Publish(ctx, dispatch.TopicEmail, payload); err != nil {
		return fmt.Errorf("failed to publish delivery job: %w", err)
	}
	return nil
}

// personalize substitutes the first occurrence of the name placeholder.
// It always starts from the original content, never from a previous
// subscriber's copy.
func personalize(content, name string) string {
	return strings.Replace(content, namePlaceholder, name, 1)
}
