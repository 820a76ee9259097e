package fanout

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/mailfan/mailfan/internal/db"
	"github.com/mailfan/mailfan/internal/metrics"
	"github.com/mailfan/mailfan/internal/model"
	"github.com/mailfan/mailfan/internal/store"
)

// capturePublisher records published jobs
type capturePublisher struct {
	payloads [][]byte
	err      error
}

func (p *capturePublisher) Publish(ctx context.Context, topic string, payload []byte) error {
	if p.err != nil {
		return p.err
	}
	p.payloads = append(p.payloads, payload)
	return nil
}

func setup(t *testing.T) (*store.Stores, *capturePublisher, *Engine) {
	t.Helper()

	database, err := db.NewMemory()
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	if err := database.Migrate(); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	stores := store.New(database.DB)
	pub := &capturePublisher{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := New(stores.Lists, stores.Subscriptions, stores.Tasks, pub, metrics.New(), logger)
	return stores, pub, engine
}

func createList(t *testing.T, stores *store.Stores) *model.List {
	t.Helper()
	list := &model.List{Name: "News", From: "news@example.com"}
	if err := stores.Lists.Create(context.Background(), list); err != nil {
		t.Fatalf("failed to create list: %v", err)
	}
	return list
}

func subscribe(t *testing.T, stores *store.Stores, listID, email, alias, given string, status model.SubscriptionStatus) {
	t.Helper()
	sub := &model.Subscription{
		ListID:    listID,
		Email:     email,
		Alias:     alias,
		GivenName: given,
		Status:    status,
	}
	if err := stores.Subscriptions.Create(context.Background(), sub); err != nil {
		t.Fatalf("failed to create subscription: %v", err)
	}
}

func TestFanOutCreatesOneTaskPerSubscriber(t *testing.T) {
	stores, pub, engine := setup(t)
	ctx := context.Background()

	list := createList(t, stores)
	subscribe(t, stores, list.ID, "a@example.com", "", "", model.SubscriptionCreated)
	subscribe(t, stores, list.ID, "b@example.com", "", "", model.SubscriptionConfirmed)
	subscribe(t, stores, list.ID, "c@example.com", "", "", model.SubscriptionCanceled)

	mail := &model.Mail{ListID: list.ID, Subject: "S", Content: "C"}
	if err := stores.Mails.Create(ctx, mail); err != nil {
		t.Fatalf("failed to create mail: %v", err)
	}

	if err := engine.FanOut(ctx, mail); err != nil {
		t.Fatalf("FanOut failed: %v", err)
	}

	tasks, err := stores.Tasks.List(ctx, store.TaskFilter{MailID: mail.ID})
	if err != nil {
		t.Fatalf("failed to list tasks: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks (canceled excluded), got %d", len(tasks))
	}

	recipients := map[string]bool{}
	for _, task := range tasks {
		recipients[task.Recipient] = true
		if task.Sender != list.From {
			t.Errorf("expected sender %s, got %s", list.From, task.Sender)
		}
		if task.Status != model.TaskPending {
			t.Errorf("expected pending, got %s", task.Status)
		}
	}
	if !recipients["a@example.com"] || !recipients["b@example.com"] {
		t.Errorf("unexpected recipients: %v", recipients)
	}

	if len(pub.payloads) != 2 {
		t.Errorf("expected 2 published jobs, got %d", len(pub.payloads))
	}
}

func TestFanOutPersonalizesPerSubscriber(t *testing.T) {
	stores, pub, engine := setup(t)
	ctx := context.Background()

	list := createList(t, stores)
	subscribe(t, stores, list.ID, "sam@example.com", "Sam", "Samuel", model.SubscriptionConfirmed)
	subscribe(t, stores, list.ID, "kim@example.com", "", "Kim", model.SubscriptionConfirmed)
	subscribe(t, stores, list.ID, "anon@example.com", "", "", model.SubscriptionConfirmed)

	mail := &model.Mail{ListID: list.ID, Subject: "S", Content: "Hi {{name}}, welcome"}
	if err := stores.Mails.Create(ctx, mail); err != nil {
		t.Fatalf("failed to create mail: %v", err)
	}
	if err := engine.FanOut(ctx, mail); err != nil {
		t.Fatalf("FanOut failed: %v", err)
	}

	tasks, _ := stores.Tasks.List(ctx, store.TaskFilter{MailID: mail.ID})
	want := map[string]string{
		"sam@example.com":  "Hi Sam, welcome",
		"kim@example.com":  "Hi Kim, welcome",
		"anon@example.com": "Hi friend, welcome",
	}
	for _, task := range tasks {
		if task.Content != want[task.Recipient] {
			t.Errorf("recipient %s: expected %q, got %q", task.Recipient, want[task.Recipient], task.Content)
		}
	}

	// Every subscriber was personalized from the original content, not from
	// a previous subscriber's copy.
	for _, payload := range pub.payloads {
		var task model.Task
		if err := json.Unmarshal(payload, &task); err != nil {
			t.Fatalf("bad payload: %v", err)
		}
		if task.Content != want[task.Recipient] {
			t.Errorf("published job for %s carries %q", task.Recipient, task.Content)
		}
	}
}

func TestFanOutAttemptsEverySubscriberOnError(t *testing.T) {
	stores, pub, engine := setup(t)
	ctx := context.Background()

	list := createList(t, stores)
	subscribe(t, stores, list.ID, "a@example.com", "", "", model.SubscriptionConfirmed)
	subscribe(t, stores, list.ID, "b@example.com", "", "", model.SubscriptionConfirmed)

	pub.err = errors.New("queue unavailable")

	mail := &model.Mail{ListID: list.ID, Subject: "S", Content: "C"}
	if err := stores.Mails.Create(ctx, mail); err != nil {
		t.Fatalf("failed to create mail: %v", err)
	}

	if err := engine.FanOut(ctx, mail); err == nil {
		t.Fatal("expected fan-out error")
	}

	// Tasks were still created for both subscribers; partial fan-out is
	// tolerated downstream.
	tasks, _ := stores.Tasks.List(ctx, store.TaskFilter{MailID: mail.ID})
	if len(tasks) != 2 {
		t.Errorf("expected 2 tasks despite publish errors, got %d", len(tasks))
	}
}

func TestFanOutUnknownList(t *testing.T) {
	_, _, engine := setup(t)

	mail := &model.Mail{ID: "m1", ListID: "missing", Subject: "S", Content: "C"}
	if err := engine.FanOut(context.Background(), mail); err == nil {
		t.Fatal("expected error for unknown list")
	}
}

func TestPersonalizeReplacesFirstOccurrenceOnly(t *testing.T) {
	got := personalize("{{name}} and {{name}}", "Sam")
	if got != "Sam and {{name}}" {
		t.Errorf("expected first occurrence only, got %q", got)
	}
}
