package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mailfan/mailfan/internal/model"
)

type ListStore struct {
	db *sql.DB
}

func NewListStore(db *sql.DB) *ListStore {
	return &ListStore{db: db}
}

// Create creates a new list
func (s *ListStore) Create(ctx context.Context, l *model.List) error {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	l.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO lists (id, name, source, from_address, template_id, subscriber_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.Name, l.Source, l.From, l.TemplateID, l.SubscriberCount, l.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create list: %w", err)
	}
	return nil
}

// GetByID returns a list by ID, or nil when it does not exist
func (s *ListStore) GetByID(ctx context.Context, id string) (*model.List, error) {
	l := &model.List{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, source, from_address, template_id, subscriber_count, created_at
		FROM lists WHERE id = ?`, id,
	).Scan(&l.ID, &l.Name, &l.Source, &l.From, &l.TemplateID, &l.SubscriberCount, &l.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return l, nil
}

// List returns all lists ordered by creation time
func (s *ListStore) List(ctx context.Context) ([]model.List, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, source, from_address, template_id, subscriber_count, created_at
		FROM lists ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list lists: %w", err)
	}
	defer rows.Close()

	return scanLists(rows)
}

// ListWithSource returns lists that declare a feed source
func (s *ListStore) ListWithSource(ctx context.Context) ([]model.List, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, source, from_address, template_id, subscriber_count, created_at
		FROM lists WHERE source != '' ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list feed lists: %w", err)
	}
	defer rows.Close()

	return scanLists(rows)
}

// UpdateSubscriberCount overwrites the cached subscriber count
func (s *ListStore) UpdateSubscriberCount(ctx context.Context, id string, count int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE lists SET subscriber_count = ? WHERE id = ?`, count, id)
	if err != nil {
		return fmt.Errorf("failed to update subscriber count: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanLists(rows *sql.Rows) ([]model.List, error) {
	var lists []model.List
	for rows.Next() {
		var l model.List
		if err := rows.Scan(&l.ID, &l.Name, &l.Source, &l.From, &l.TemplateID, &l.SubscriberCount, &l.CreatedAt); err != nil {
			return nil, err
		}
		lists = append(lists, l)
	}
	return lists, rows.Err()
}
