package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/mailfan/mailfan/internal/model"
)

type ItemStore struct {
	db *sql.DB
}

func NewItemStore(db *sql.DB) *ItemStore {
	return &ItemStore{db: db}
}

// Create creates an ingestion marker. The URL is globally unique; inserting a
// duplicate returns ErrDuplicateURL so concurrent polls cannot double-ingest.
func (s *ItemStore) Create(ctx context.Context, i *model.Item) error {
	if i.ID == "" {
		i.ID = uuid.New().String()
	}
	i.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO items (id, list_id, url, created_at)
		VALUES (?, ?, ?, ?)`,
		i.ID, i.ListID, i.URL, i.CreatedAt,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return ErrDuplicateURL
		}
		return fmt.Errorf("failed to create item: %w", err)
	}
	return nil
}

// ExistsByURL reports whether any list has already ingested the URL
func (s *ItemStore) ExistsByURL(ctx context.Context, url string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM items WHERE url = ?)`, url,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check item existence: %w", err)
	}
	return exists, nil
}

// ListByList returns the items ingested for a list, newest first
func (s *ItemStore) ListByList(ctx context.Context, listID string) ([]model.Item, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, list_id, url, created_at
		FROM items WHERE list_id = ? ORDER BY created_at DESC`, listID)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		var i model.Item
		if err := rows.Scan(&i.ID, &i.ListID, &i.URL, &i.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}
