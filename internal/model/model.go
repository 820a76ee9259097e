// Package model defines the domain entities shared across the dispatcher.
package model

import "time"

// SubscriptionStatus represents the lifecycle state of a subscription
type SubscriptionStatus string

const (
	SubscriptionCreated   SubscriptionStatus = "created"
	SubscriptionConfirmed SubscriptionStatus = "confirmed"
	SubscriptionCanceled  SubscriptionStatus = "canceled"
)

// TaskStatus represents the delivery state of a task
type TaskStatus string

const (
	TaskPending TaskStatus = "pending"
	TaskSending TaskStatus = "sending"
	TaskSent    TaskStatus = "sent"
	TaskFailed  TaskStatus = "failed"
)

// List is a mailing list. SubscriberCount is maintained by the aggregator;
// the rest is immutable after creation.
type List struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Source          string    `json:"source,omitempty"` // feed URL, empty when the list has no feed
	From            string    `json:"from"`
	TemplateID      string    `json:"template_id,omitempty"`
	SubscriberCount int       `json:"subscriber_count"`
	CreatedAt       time.Time `json:"created_at"`
}

// Subscription ties a contact to a list
type Subscription struct {
	ID          string             `json:"id"`
	ListID      string             `json:"list_id"`
	GivenName   string             `json:"given_name,omitempty"`
	FamilyName  string             `json:"family_name,omitempty"`
	Alias       string             `json:"alias,omitempty"`
	Email       string             `json:"email"`
	Status      SubscriptionStatus `json:"status"`
	CreatedAt   time.Time          `json:"created_at"`
	ValidatedAt *time.Time         `json:"validated_at,omitempty"`
}

// DisplayName returns the name used for personalization: alias, then given
// name, then a generic fallback.
func (s *Subscription) DisplayName() string {
	if s.Alias != "" {
		return s.Alias
	}
	if s.GivenName != "" {
		return s.GivenName
	}
	return "friend"
}

// Mail is a piece of content addressed to a whole list. Creating one triggers
// fan-out into per-subscriber tasks.
type Mail struct {
	ID        string            `json:"id"`
	ListID    string            `json:"list_id"`
	Subject   string            `json:"subject"`
	Content   string            `json:"content"`
	Data      map[string]string `json:"data,omitempty"` // e.g. "link" for feed-origin mail
	CreatedAt time.Time         `json:"created_at"`
}

// Task is one delivery job for one recipient. Sender, recipient and content
// are denormalized at fan-out time so the job is self-contained.
type Task struct {
	ID        string            `json:"id"`
	MailID    string            `json:"mail_id"`
	ListID    string            `json:"list_id"`
	Status    TaskStatus        `json:"status"`
	Sender    string            `json:"sender"`
	Recipient string            `json:"recipient"`
	Subject   string            `json:"subject"`
	Content   string            `json:"content"`
	Data      map[string]string `json:"data,omitempty"`
	LastError string            `json:"last_error,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Item marks a feed entry as ingested. The URL is unique across all lists;
// its presence suppresses re-ingestion of the same entry.
type Item struct {
	ID        string    `json:"id"`
	ListID    string    `json:"list_id"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
}

// Template is a named reusable content body referenced by lists.
// Rendering is out of scope; templates are stored and served as-is.
type Template struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
