package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mailfan/mailfan/internal/model"
)

type TaskStore struct {
	db *sql.DB
}

func NewTaskStore(db *sql.DB) *TaskStore {
	return &TaskStore{db: db}
}

// Create creates a new task in the pending state
func (s *TaskStore) Create(ctx context.Context, t *model.Task) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	t.Status = model.TaskPending
	t.CreatedAt = time.Now().UTC()
	t.UpdatedAt = t.CreatedAt

	data, err := marshalData(t.Data)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, mail_id, list_id, status, sender, recipient, subject, content, data, last_error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.MailID, t.ListID, t.Status, t.Sender, t.Recipient, t.Subject, t.Content, data, t.LastError, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

// GetByID returns a task by ID, or nil when it does not exist
func (s *TaskStore) GetByID(ctx context.Context, id string) (*model.Task, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, mail_id, list_id, status, sender, recipient, subject, content, data, last_error, created_at, updated_at
		FROM tasks WHERE id = ?`, id)

	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// TaskFilter narrows List results
type TaskFilter struct {
	ListID string
	MailID string
	Status model.TaskStatus
}

// List returns tasks matching the filter, oldest first
func (s *TaskStore) List(ctx context.Context, filter TaskFilter) ([]model.Task, error) {
	query := `
		SELECT id, mail_id, list_id, status, sender, recipient, subject, content, data, last_error, created_at, updated_at
		FROM tasks WHERE 1=1`
	args := []any{}

	if filter.ListID != "" {
		query += " AND list_id = ?"
		args = append(args, filter.ListID)
	}
	if filter.MailID != "" {
		query += " AND mail_id = ?"
		args = append(args, filter.MailID)
	}
	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, filter.Status)
	}
	query += " ORDER BY created_at"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

// MarkSending transitions a task to sending. It must be called before the
// delivery attempt so a crash mid-send is observable as a stuck sending task.
// Re-marking an already sending task succeeds, which covers queue redelivery.
func (s *TaskStore) MarkSending(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET status = ?, updated_at = ?
		WHERE id = ? AND status IN (?, ?)`,
		model.TaskSending, time.Now().UTC(), id, model.TaskPending, model.TaskSending)
	if err != nil {
		return fmt.Errorf("failed to mark task sending: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrInvalidTransition
	}
	return nil
}

// Finish records the final outcome of a delivery attempt. Only a sending task
// can finish, and only as sent or failed; anything else is rejected, so a
// terminal status can never be overwritten.
func (s *TaskStore) Finish(ctx context.Context, id string, status model.TaskStatus, sendErr string) error {
	if status != model.TaskSent && status != model.TaskFailed {
		return ErrInvalidTransition
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET status = ?, last_error = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		status, sendErr, time.Now().UTC(), id, model.TaskSending)
	if err != nil {
		return fmt.Errorf("failed to finish task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrInvalidTransition
	}
	return nil
}

type taskScanner interface {
	Scan(dest ...any) error
}

func scanTask(row taskScanner) (*model.Task, error) {
	t := &model.Task{}
	var data sql.NullString
	err := row.Scan(&t.ID, &t.MailID, &t.ListID, &t.Status, &t.Sender, &t.Recipient, &t.Subject, &t.Content, &data, &t.LastError, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if t.Data, err = unmarshalData(data); err != nil {
		return nil, err
	}
	return t, nil
}
