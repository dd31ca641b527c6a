package notifications

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/charlesng35/fundraiser/pkg/logger"
	"github.com/charlesng35/fundraiser/pkg/metrics"
)

// Notification is an out-of-band alert for operators.
type Notification struct {
	Subject    string
	Body       string
	Operation  string
	OccurredAt time.Time
}

// Sink delivers notifications. Implementations may block; the queue isolates callers from them.
type Sink interface {
	Notify(ctx context.Context, n Notification) error
}

// QueueConfig tunes the delivery queue.
type QueueConfig struct {
	Size    int
	Workers int
	// Timeout bounds a single delivery attempt.
	Timeout time.Duration
}

// Queue is a bounded, fire-and-forget delivery lane. Enqueue never blocks.
type Queue struct {
	sink    Sink
	items   chan Notification
	timeout time.Duration
	log     *zap.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewQueue starts cfg.Workers goroutines draining into sink.
func NewQueue(sink Sink, cfg QueueConfig) (*Queue, error) {
	if sink == nil {
		return nil, errors.New("notifications: sink is required")
	}
	size := cfg.Size
	if size <= 0 {
		size = 64
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	q := &Queue{
		sink:    sink,
		items:   make(chan Notification, size),
		timeout: timeout,
		log:     logger.WithModule("notifications"),
	}
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.work()
	}
	return q, nil
}

// Enqueue schedules n for delivery. It reports false when the notification was dropped
// because the queue is full or closed.
func (q *Queue) Enqueue(n Notification) bool {
	if q == nil {
		return false
	}
	if n.OccurredAt.IsZero() {
		n.OccurredAt = time.Now().UTC()
	}

	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		metrics.NotificationsDropped.Inc()
		return false
	}

	select {
	case q.items <- n:
		return true
	default:
		metrics.NotificationsDropped.Inc()
		q.log.Warn("notification dropped, queue full", zap.String("subject", n.Subject))
		return false
	}
}

// Close stops accepting notifications and waits for pending ones to drain or ctx to expire.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.items)
	}
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) work() {
	defer q.wg.Done()
	for n := range q.items {
		q.deliver(n)
	}
}

func (q *Queue) deliver(n Notification) {
	defer func() {
		if r := recover(); r != nil {
			q.log.Error("notification sink panicked", zap.String("subject", n.Subject), zap.Any("panic", r))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()

	if err := q.sink.Notify(ctx, n); err != nil {
		q.log.Warn("notification delivery failed", zap.String("subject", n.Subject), zap.Error(err))
	}
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, n Notification) error

func (f SinkFunc) Notify(ctx context.Context, n Notification) error { return f(ctx, n) }

func formatBody(n Notification) string {
	body := n.Body
	if n.Operation != "" {
		body = fmt.Sprintf("Operation: %s\n\n%s", n.Operation, body)
	}
	return fmt.Sprintf("%s\n\nOccurred at: %s", body, n.OccurredAt.UTC().Format(time.RFC3339))
}
