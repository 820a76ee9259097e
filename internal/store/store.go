// Package store provides the content store: per-entity repositories backed by
// SQLite. Every mutation is a single-row statement; the database's per-row
// atomicity is the only consistency primitive the rest of the system relies on.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition is returned when a task status update does not
	// follow pending -> sending -> sent|failed.
	ErrInvalidTransition = errors.New("invalid task status transition")

	// ErrDuplicateURL is returned when an item with the same URL already exists.
	ErrDuplicateURL = errors.New("item URL already ingested")

	// ErrNotFound is returned by updates that matched no row.
	ErrNotFound = errors.New("not found")
)

// Stores bundles all repositories over one database handle.
type Stores struct {
	Lists         *ListStore
	Subscriptions *SubscriptionStore
	Mails         *MailStore
	Tasks         *TaskStore
	Items         *ItemStore
	Templates     *TemplateStore
}

func New(db *sql.DB) *Stores {
	return &Stores{
		Lists:         NewListStore(db),
		Subscriptions: NewSubscriptionStore(db),
		Mails:         NewMailStore(db),
		Tasks:         NewTaskStore(db),
		Items:         NewItemStore(db),
		Templates:     NewTemplateStore(db),
	}
}

// marshalData encodes a data map for storage; nil maps become SQL NULL.
func marshalData(data map[string]string) (any, error) {
	if len(data) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal data: %w", err)
	}
	return string(b), nil
}

// unmarshalData decodes a data column; NULL becomes a nil map.
func unmarshalData(raw sql.NullString) (map[string]string, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	var data map[string]string
	if err := json.Unmarshal([]byte(raw.String), &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal data: %w", err)
	}
	return data, nil
}
