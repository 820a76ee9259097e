// Package dispatch provides the asynchronous delivery channel between fan-out
// and the actual send. Jobs are journaled to BoltDB per topic, so published
// work survives a restart; delivery to the consumer is at-least-once and a job
// is removed only after its handler has returned.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

// TopicEmail is the channel carrying delivery jobs for tasks.
const TopicEmail = "email"

// Handler consumes one job payload. Its return value decides success or
// failure after the domain work has been attempted, not at dequeue time.
type Handler func(ctx context.Context, payload []byte) error

// Queue is a durable publish/subscribe channel. One consumer per topic; jobs
// within a topic are delivered one at a time with no ordering guarantee
// across restarts or redeliveries.
type Queue struct {
	db           *bolt.DB
	logger       *slog.Logger
	pollInterval time.Duration

	mu       sync.Mutex
	handlers map[string]Handler

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// Open opens the queue journal at path
func Open(path string, pollInterval time.Duration, logger *slog.Logger) (*Queue, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create queue directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{
		Timeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open queue: %w", err)
	}

	if pollInterval <= 0 {
		pollInterval = time.Second
	}

	return &Queue{
		db:           db,
		logger:       logger,
		pollInterval: pollInterval,
		handlers:     make(map[string]Handler),
		stopCh:       make(chan struct{}),
	}, nil
}

// Publish appends a job to the topic journal. The job is durable once Publish
// returns; it carries no result channel, the consumer owns the outcome.
func (q *Queue) Publish(ctx context.Context, topic string, payload []byte) error {
	return q.db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists([]byte(topic))
		if err != nil {
			return fmt.Errorf("failed to create topic bucket: %w", err)
		}
		key := makeJobKey(time.Now(), uuid.New().String())
		if err := bucket.Put(key, payload); err != nil {
			return fmt.Errorf("failed to store job: %w", err)
		}
		return nil
	})
}

// Subscribe registers the single consumer for a topic. Must be called before
// Start; registering a topic twice replaces the handler.
func (q *Queue) Subscribe(topic string, h Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[topic] = h
}

// Start launches one consumer loop per subscribed topic
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for topic, h := range q.handlers {
		q.wg.Add(1)
		go q.consume(ctx, topic, h)
	}
	q.logger.Info("dispatch queue started", "topics", len(q.handlers))
}

// Stop stops all consumer loops and closes the journal
func (q *Queue) Stop() error {
	close(q.stopCh)
	q.wg.Wait()
	q.logger.Info("dispatch queue stopped")
	return q.db.Close()
}

// Pending returns the number of jobs waiting on a topic
func (q *Queue) Pending(topic string) (int, error) {
	var n int
	err := q.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(topic))
		if bucket == nil {
			return nil
		}
		n = bucket.Stats().KeyN
		return nil
	})
	return n, err
}

func (q *Queue) consume(ctx context.Context, topic string, h Handler) {
	defer q.wg.Done()

	logger := q.logger.With("topic", topic)
	ticker := time.NewTicker(q.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.stopCh:
			return
		case <-ticker.C:
			q.drain(ctx, topic, h, logger)
		}
	}
}

// drain processes jobs one at a time until the topic is empty. The job is
// deleted after the handler returns, success or not: there is no automatic
// retry, a failed delivery is recorded on the task itself.
func (q *Queue) drain(ctx context.Context, topic string, h Handler, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-q.stopCh:
			return
		default:
		}

		key, payload, err := q.next(topic)
		if err != nil {
			logger.Error("failed to read job", "error", err)
			return
		}
		if key == nil {
			return
		}

		if err := h(ctx, payload); err != nil {
			logger.Error("job handler failed", "error", err)
		}

		if err := q.remove(topic, key); err != nil {
			logger.Error("failed to remove job", "error", err)
			return
		}
	}
}

func (q *Queue) next(topic string) (key, payload []byte, err error) {
	err = q.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(topic))
		if bucket == nil {
			return nil
		}
		k, v := bucket.Cursor().First()
		if k == nil {
			return nil
		}
		key = append([]byte(nil), k...)
		payload = append([]byte(nil), v...)
		return nil
	})
	return key, payload, err
}

func (q *Queue) remove(topic string, key []byte) error {
	return q.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(topic))
		if bucket == nil {
			return nil
		}
		return bucket.Delete(key)
	})
}

// makeJobKey builds a sortable key so jobs drain roughly in publish order
func makeJobKey(t time.Time, id string) []byte {
	// Format: timestamp (RFC3339Nano) + ":" + id
	return []byte(t.UTC().Format(time.RFC3339Nano) + ":" + id)
}
