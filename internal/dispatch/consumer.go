package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"log/slog"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/time/rate"

	"github.com/mailfan/mailfan/internal/mailer"
	"github.com/mailfan/mailfan/internal/metrics"
	"github.com/mailfan/mailfan/internal/model"
	"github.com/mailfan/mailfan/internal/readability"
	"github.com/mailfan/mailfan/internal/store"
)

// Consumer executes delivery jobs. It is the single authority over task
// status: sending is persisted before the transport is invoked, and the final
// sent/failed write happens here once the outcome is known.
type Consumer struct {
	tasks     *store.TaskStore
	sender    mailer.Sender
	limiter   *rate.Limiter
	sanitizer *bluemonday.Policy
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewConsumer creates a delivery consumer. ratePerSecond caps outbound
// submissions; zero or negative means unlimited.
func NewConsumer(tasks *store.TaskStore, sender mailer.Sender, ratePerSecond float64, m *metrics.Metrics, logger *slog.Logger) *Consumer {
	limit := rate.Inf
	if ratePerSecond > 0 {
		limit = rate.Limit(ratePerSecond)
	}
	return &Consumer{
		tasks:     tasks,
		sender:    sender,
		limiter:   rate.NewLimiter(limit, 1),
		sanitizer: bluemonday.UGCPolicy(),
		metrics:   m,
		logger:    logger.With("component", "consumer"),
	}
}

// Handle processes one delivery job. The payload is the full task as
// published by fan-out; the task row is re-read for nothing, the job is
// self-contained except for the status writes.
func (c *Consumer) Handle(ctx context.Context, payload []byte) error {
	var task model.Task
	if err := json.Unmarshal(payload, &task); err != nil {
		return fmt.Errorf("failed to decode delivery job: %w", err)
	}

	// Persist sending before any network action. If this write fails the
	// send is not attempted at all.
	if err := c.tasks.MarkSending(ctx, task.ID); err != nil {
		return fmt.Errorf("failed to mark task %s sending: %w", task.ID, err)
	}

	msg := c.buildMessage(&task)

	if err := c.limiter.Wait(ctx); err != nil {
		// Shutdown mid-job: leave the task in sending, redelivery picks it up.
		return err
	}

	start := time.Now()
	sendErr := c.sender.Send(ctx, msg)
	c.metrics.SendDurationSeconds.Observe(time.Since(start).Seconds())

	if sendErr != nil {
		c.metrics.TasksFailedTotal.Inc()
		c.logger.Error("delivery failed", "task_id", task.ID, "recipient", task.Recipient, "error", sendErr)
		if err := c.tasks.Finish(ctx, task.ID, model.TaskFailed, sendErr.Error()); err != nil {
			return fmt.Errorf("failed to record task failure: %w", err)
		}
		return nil
	}

	c.metrics.TasksSentTotal.Inc()
	c.logger.Info("delivered", "task_id", task.ID, "recipient", task.Recipient)
	if err := c.tasks.Finish(ctx, task.ID, model.TaskSent, ""); err != nil {
		return fmt.Errorf("failed to record task success: %w", err)
	}
	return nil
}

// buildMessage shapes the outbound mail. Feed-origin tasks (carrying a link)
// get a readable text body plus an HTML alternative pointing at the article.
func (c *Consumer) buildMessage(task *model.Task) *mailer.Message {
	msg := &mailer.Message{
		From:    task.Sender,
		To:      task.Recipient,
		Subject: task.Subject,
		Text:    task.Content,
	}

	link := task.Data["link"]
	if link == "" {
		return msg
	}

	msg.Text = readability.Text(task.Content) + "\n\nRead More: " + link
	msg.HTML = fmt.Sprintf(
		`<html><h1><a href="%s">%s</a></h1>%s<p><a href="%s">Read More &raquo;</a></p></html>`,
		link, html.EscapeString(task.Subject), c.sanitizer.Sanitize(task.Content), link,
	)
	return msg
}
