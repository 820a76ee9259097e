package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mailfan/mailfan/internal/model"
)

type MailStore struct {
	db *sql.DB
}

func NewMailStore(db *sql.DB) *MailStore {
	return &MailStore{db: db}
}

// Create creates a new mail
func (s *MailStore) Create(ctx context.Context, m *model.Mail) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	m.CreatedAt = time.Now().UTC()

	data, err := marshalData(m.Data)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO mails (id, list_id, subject, content, data, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, m.ListID, m.Subject, m.Content, data, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create mail: %w", err)
	}
	return nil
}

// GetByID returns a mail by ID, or nil when it does not exist
func (s *MailStore) GetByID(ctx context.Context, id string) (*model.Mail, error) {
	m := &model.Mail{}
	var data sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, list_id, subject, content, data, created_at
		FROM mails WHERE id = ?`, id,
	).Scan(&m.ID, &m.ListID, &m.Subject, &m.Content, &data, &m.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if m.Data, err = unmarshalData(data); err != nil {
		return nil, err
	}
	return m, nil
}

// ListByList returns the mails of a list, newest first
func (s *MailStore) ListByList(ctx context.Context, listID string) ([]model.Mail, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, list_id, subject, content, data, created_at
		FROM mails WHERE list_id = ? ORDER BY created_at DESC`, listID)
	if err != nil {
		return nil, fmt.Errorf("failed to list mails: %w", err)
	}
	defer rows.Close()

	var mails []model.Mail
	for rows.Next() {
		var m model.Mail
		var data sql.NullString
		if err := rows.Scan(&m.ID, &m.ListID, &m.Subject, &m.Content, &data, &m.CreatedAt); err != nil {
			return nil, err
		}
		if m.Data, err = unmarshalData(data); err != nil {
			return nil, err
		}
		mails = append(mails, m)
	}
	return mails, rows.Err()
}
