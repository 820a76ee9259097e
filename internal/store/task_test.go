package store

import (
	"context"
	"testing"

	"github.com/mailfan/mailfan/internal/model"
)

// createTestTask creates a list, a mail and a pending task
func createTestTask(t *testing.T, stores *Stores) *model.Task {
	t.Helper()
	ctx := context.Background()

	list := createTestList(t, stores, "")
	m := &model.Mail{ListID: list.ID, Subject: "S", Content: "C"}
	if err := stores.Mails.Create(ctx, m); err != nil {
		t.Fatalf("failed to create mail: %v", err)
	}

	task := &model.Task{
		MailID:    m.ID,
		ListID:    list.ID,
		Sender:    list.From,
		Recipient: "sam@example.com",
		Subject:   m.Subject,
		Content:   m.Content,
	}
	if err := stores.Tasks.Create(ctx, task); err != nil {
		t.Fatalf("failed to create task: %v", err)
	}
	return task
}

func TestTaskStoreCreateStartsPending(t *testing.T) {
	stores := New(setupTestDB(t))

	task := createTestTask(t, stores)
	if task.Status != model.TaskPending {
		t.Errorf("expected pending, got %s", task.Status)
	}

	got, err := stores.Tasks.GetByID(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Status != model.TaskPending {
		t.Errorf("expected pending, got %s", got.Status)
	}
}

func TestTaskStoreLifecycleSent(t *testing.T) {
	stores := New(setupTestDB(t))
	ctx := context.Background()
	task := createTestTask(t, stores)

	if err := stores.Tasks.MarkSending(ctx, task.ID); err != nil {
		t.Fatalf("MarkSending failed: %v", err)
	}
	// Redelivery re-marks an already sending task.
	if err := stores.Tasks.MarkSending(ctx, task.ID); err != nil {
		t.Fatalf("MarkSending on sending task failed: %v", err)
	}

	if err := stores.Tasks.Finish(ctx, task.ID, model.TaskSent, ""); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}

	got, _ := stores.Tasks.GetByID(ctx, task.ID)
	if got.Status != model.TaskSent {
		t.Errorf("expected sent, got %s", got.Status)
	}
}

func TestTaskStoreLifecycleFailed(t *testing.T) {
	stores := New(setupTestDB(t))
	ctx := context.Background()
	task := createTestTask(t, stores)

	if err := stores.Tasks.MarkSending(ctx, task.ID); err != nil {
		t.Fatalf("MarkSending failed: %v", err)
	}
	if err := stores.Tasks.Finish(ctx, task.ID, model.TaskFailed, "connection refused"); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}

	got, _ := stores.Tasks.GetByID(ctx, task.ID)
	if got.Status != model.TaskFailed {
		t.Errorf("expected failed, got %s", got.Status)
	}
	if got.LastError != "connection refused" {
		t.Errorf("expected error captured, got %q", got.LastError)
	}
}

func TestTaskStoreRejectsBackwardTransitions(t *testing.T) {
	stores := New(setupTestDB(t))
	ctx := context.Background()

	// Finishing a pending task skips sending and is rejected.
	task := createTestTask(t, stores)
	if err := stores.Tasks.Finish(ctx, task.ID, model.TaskSent, ""); err != ErrInvalidTransition {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}

	// A terminal status can never be overwritten.
	if err := stores.Tasks.MarkSending(ctx, task.ID); err != nil {
		t.Fatalf("MarkSending failed: %v", err)
	}
	if err := stores.Tasks.Finish(ctx, task.ID, model.TaskSent, ""); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}
	if err := stores.Tasks.MarkSending(ctx, task.ID); err != ErrInvalidTransition {
		t.Errorf("expected ErrInvalidTransition on sent task, got %v", err)
	}
	if err := stores.Tasks.Finish(ctx, task.ID, model.TaskFailed, "late"); err != ErrInvalidTransition {
		t.Errorf("expected ErrInvalidTransition on sent task, got %v", err)
	}

	got, _ := stores.Tasks.GetByID(ctx, task.ID)
	if got.Status != model.TaskSent {
		t.Errorf("status reverted to %s", got.Status)
	}

	// Finish only accepts terminal statuses.
	if err := stores.Tasks.Finish(ctx, task.ID, model.TaskPending, ""); err != ErrInvalidTransition {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestTaskStoreListFilter(t *testing.T) {
	stores := New(setupTestDB(t))
	ctx := context.Background()

	first := createTestTask(t, stores)
	second := createTestTask(t, stores)

	if err := stores.Tasks.MarkSending(ctx, second.ID); err != nil {
		t.Fatalf("MarkSending failed: %v", err)
	}

	pending, err := stores.Tasks.List(ctx, TaskFilter{Status: model.TaskPending})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != first.ID {
		t.Errorf("expected only the first task pending, got %+v", pending)
	}

	byMail, err := stores.Tasks.List(ctx, TaskFilter{MailID: second.MailID})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(byMail) != 1 || byMail[0].ID != second.ID {
		t.Errorf("expected one task for mail, got %+v", byMail)
	}
}
