package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/mailfan/mailfan/internal/db"
	"github.com/mailfan/mailfan/internal/model"
)

// setupTestDB creates an in-memory SQLite database with all migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	database, err := db.NewMemory()
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if err := database.Migrate(); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return database.DB
}

// createTestList inserts a list and returns it
func createTestList(t *testing.T, stores *Stores, source string) *model.List {
	t.Helper()

	list := &model.List{
		Name:   "Weekly Digest",
		Source: source,
		From:   "digest@example.com",
	}
	if err := stores.Lists.Create(context.Background(), list); err != nil {
		t.Fatalf("failed to create list: %v", err)
	}
	return list
}

func TestListStoreCreateAndGet(t *testing.T) {
	stores := New(setupTestDB(t))
	ctx := context.Background()

	list := createTestList(t, stores, "http://example.com/feed.xml")

	got, err := stores.Lists.GetByID(ctx, list.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected list, got nil")
	}
	if got.Name != "Weekly Digest" || got.From != "digest@example.com" {
		t.Errorf("unexpected list: %+v", got)
	}
	if got.SubscriberCount != 0 {
		t.Errorf("expected zero subscriber count, got %d", got.SubscriberCount)
	}
}

func TestListStoreGetMissing(t *testing.T) {
	stores := New(setupTestDB(t))

	got, err := stores.Lists.GetByID(context.Background(), "nope")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for missing list, got %+v", got)
	}
}

func TestListStoreListWithSource(t *testing.T) {
	stores := New(setupTestDB(t))
	ctx := context.Background()

	createTestList(t, stores, "http://example.com/feed.xml")
	createTestList(t, stores, "")

	withSource, err := stores.Lists.ListWithSource(ctx)
	if err != nil {
		t.Fatalf("ListWithSource failed: %v", err)
	}
	if len(withSource) != 1 {
		t.Fatalf("expected 1 list with source, got %d", len(withSource))
	}

	all, err := stores.Lists.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("expected 2 lists, got %d", len(all))
	}
}

func TestListStoreUpdateSubscriberCount(t *testing.T) {
	stores := New(setupTestDB(t))
	ctx := context.Background()

	list := createTestList(t, stores, "")
	if err := stores.Lists.UpdateSubscriberCount(ctx, list.ID, 7); err != nil {
		t.Fatalf("UpdateSubscriberCount failed: %v", err)
	}

	got, _ := stores.Lists.GetByID(ctx, list.ID)
	if got.SubscriberCount != 7 {
		t.Errorf("expected subscriber count 7, got %d", got.SubscriberCount)
	}

	if err := stores.Lists.UpdateSubscriberCount(ctx, "nope", 1); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSubscriptionStoreActiveFilter(t *testing.T) {
	stores := New(setupTestDB(t))
	ctx := context.Background()
	list := createTestList(t, stores, "")

	statuses := []model.SubscriptionStatus{
		model.SubscriptionCreated,
		model.SubscriptionConfirmed,
		model.SubscriptionCanceled,
	}
	for i, status := range statuses {
		sub := &model.Subscription{
			ListID: list.ID,
			Email:  string(rune('a'+i)) + "@example.com",
			Status: status,
		}
		if err := stores.Subscriptions.Create(ctx, sub); err != nil {
			t.Fatalf("failed to create subscription: %v", err)
		}
	}

	active, err := stores.Subscriptions.ListActiveByList(ctx, list.ID)
	if err != nil {
		t.Fatalf("ListActiveByList failed: %v", err)
	}
	if len(active) != 2 {
		t.Errorf("expected 2 active subscriptions, got %d", len(active))
	}

	all, err := stores.Subscriptions.ListByList(ctx, list.ID)
	if err != nil {
		t.Fatalf("ListByList failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 subscriptions, got %d", len(all))
	}

	// The aggregate counts every status, canceled included.
	count, err := stores.Subscriptions.CountByList(ctx, list.ID)
	if err != nil {
		t.Fatalf("CountByList failed: %v", err)
	}
	if count != 3 {
		t.Errorf("expected count 3, got %d", count)
	}
}

func TestSubscriptionStoreDefaultStatus(t *testing.T) {
	stores := New(setupTestDB(t))
	ctx := context.Background()
	list := createTestList(t, stores, "")

	sub := &model.Subscription{ListID: list.ID, Email: "sam@example.com"}
	if err := stores.Subscriptions.Create(ctx, sub); err != nil {
		t.Fatalf("failed to create subscription: %v", err)
	}

	got, _ := stores.Subscriptions.GetByID(ctx, sub.ID)
	if got.Status != model.SubscriptionCreated {
		t.Errorf("expected default status created, got %s", got.Status)
	}
}

func TestMailStoreDataRoundTrip(t *testing.T) {
	stores := New(setupTestDB(t))
	ctx := context.Background()
	list := createTestList(t, stores, "")

	m := &model.Mail{
		ListID:  list.ID,
		Subject: "T",
		Content: "C",
		Data:    map[string]string{"link": "http://x/1"},
	}
	if err := stores.Mails.Create(ctx, m); err != nil {
		t.Fatalf("failed to create mail: %v", err)
	}

	got, err := stores.Mails.GetByID(ctx, m.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Data["link"] != "http://x/1" {
		t.Errorf("expected data link, got %+v", got.Data)
	}

	// A mail without data comes back with a nil map.
	plain := &model.Mail{ListID: list.ID, Subject: "P", Content: "C"}
	if err := stores.Mails.Create(ctx, plain); err != nil {
		t.Fatalf("failed to create mail: %v", err)
	}
	got, _ = stores.Mails.GetByID(ctx, plain.ID)
	if got.Data != nil {
		t.Errorf("expected nil data, got %+v", got.Data)
	}
}

func TestItemStoreDuplicateURL(t *testing.T) {
	stores := New(setupTestDB(t))
	ctx := context.Background()
	list := createTestList(t, stores, "")

	item := &model.Item{ListID: list.ID, URL: "http://x/1"}
	if err := stores.Items.Create(ctx, item); err != nil {
		t.Fatalf("failed to create item: %v", err)
	}

	dup := &model.Item{ListID: list.ID, URL: "http://x/1"}
	if err := stores.Items.Create(ctx, dup); err != ErrDuplicateURL {
		t.Errorf("expected ErrDuplicateURL, got %v", err)
	}

	seen, err := stores.Items.ExistsByURL(ctx, "http://x/1")
	if err != nil {
		t.Fatalf("ExistsByURL failed: %v", err)
	}
	if !seen {
		t.Error("expected URL to be seen")
	}

	seen, _ = stores.Items.ExistsByURL(ctx, "http://x/2")
	if seen {
		t.Error("expected URL to be unseen")
	}
}

func TestTemplateStoreCreateAndList(t *testing.T) {
	stores := New(setupTestDB(t))
	ctx := context.Background()

	tmpl := &model.Template{Name: "welcome", Content: "Hi {{name}}"}
	if err := stores.Templates.Create(ctx, tmpl); err != nil {
		t.Fatalf("failed to create template: %v", err)
	}

	got, err := stores.Templates.GetByID(ctx, tmpl.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Name != "welcome" {
		t.Errorf("unexpected template: %+v", got)
	}

	all, err := stores.Templates.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("expected 1 template, got %d", len(all))
	}
}
