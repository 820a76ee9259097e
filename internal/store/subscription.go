package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mailfan/mailfan/internal/model"
)

type SubscriptionStore struct {
	db *sql.DB
}

func NewSubscriptionStore(db *sql.DB) *SubscriptionStore {
	return &SubscriptionStore{db: db}
}

// Create creates a new subscription
func (s *SubscriptionStore) Create(ctx context.Context, sub *model.Subscription) error {
	if sub.ID == "" {
		sub.ID = uuid.New().String()
	}
	if sub.Status == "" {
		sub.Status = model.SubscriptionCreated
	}
	sub.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO subscriptions (id, list_id, given_name, family_name, alias, email, status, created_at, validated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sub.ID, sub.ListID, sub.GivenName, sub.FamilyName, sub.Alias, sub.Email, sub.Status, sub.CreatedAt, sub.ValidatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create subscription: %w", err)
	}
	return nil
}

// GetByID returns a subscription by ID, or nil when it does not exist
func (s *SubscriptionStore) GetByID(ctx context.Context, id string) (*model.Subscription, error) {
	sub := &model.Subscription{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, list_id, given_name, family_name, alias, email, status, created_at, validated_at
		FROM subscriptions WHERE id = ?`, id,
	).Scan(&sub.ID, &sub.ListID, &sub.GivenName, &sub.FamilyName, &sub.Alias, &sub.Email, &sub.Status, &sub.CreatedAt, &sub.ValidatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// ListByList returns all subscriptions of a list regardless of status
func (s *SubscriptionStore) ListByList(ctx context.Context, listID string) ([]model.Subscription, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, list_id, given_name, family_name, alias, email, status, created_at, validated_at
		FROM subscriptions WHERE list_id = ? ORDER BY created_at`, listID)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	defer rows.Close()

	return scanSubscriptions(rows)
}

// ListActiveByList returns the subscriptions that receive mail: everything
// except canceled ones.
func (s *SubscriptionStore) ListActiveByList(ctx context.Context, listID string) ([]model.Subscription, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, list_id, given_name, family_name, alias, email, status, created_at, validated_at
		FROM subscriptions WHERE list_id = ? AND status != ? ORDER BY created_at`,
		listID, model.SubscriptionCanceled)
	if err != nil {
		return nil, fmt.Errorf("failed to list active subscriptions: %w", err)
	}
	defer rows.Close()

	return scanSubscriptions(rows)
}

// CountByList counts every subscription of a list, whatever its status.
// This feeds the cached subscriber count on the list.
func (s *SubscriptionStore) CountByList(ctx context.Context, listID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM subscriptions WHERE list_id = ?`, listID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count subscriptions: %w", err)
	}
	return count, nil
}

func scanSubscriptions(rows *sql.Rows) ([]model.Subscription, error) {
	var subs []model.Subscription
	for rows.Next() {
		var sub model.Subscription
		if err := rows.Scan(&sub.ID, &sub.ListID, &sub.GivenName, &sub.FamilyName, &sub.Alias, &sub.Email, &sub.Status, &sub.CreatedAt, &sub.ValidatedAt); err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}
