// Package mailqueue delivers notifications in the background, one at a time,
// with throttling and a bounded number of retries.
package mailqueue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cancelready/backend/notifications"
	"github.com/enriquebris/goconcurrentqueue"
	"go.vocdoni.io/dvote/log"
)

const (
	// DefaultTTL is how long a delivery is retried before it is dropped.
	DefaultTTL = 10 * time.Minute
	// DefaultThrottle is the minimum time between two deliveries.
	DefaultThrottle = 200 * time.Millisecond
	// DefaultMaxRetries is how many times a failed delivery is retried.
	DefaultMaxRetries = 5
)

// ErrClosed is returned by Push once the queue is closed.
var ErrClosed = errors.New("notification queue closed")

// Delivery is a notification waiting in the queue. Ref identifies it in the
// logs.
type Delivery struct {
	Ref          string
	Notification *notifications.Notification
	CreatedAt    time.Time
	Retries      int
}

// Queue is a FIFO queue of deliveries sent through a notification service.
type Queue struct {
	ctx      context.Context
	items    *goconcurrentqueue.FIFO
	ttl      time.Duration
	throttle time.Duration
	service  notifications.NotificationService

	mu      sync.Mutex
	closed  bool
	pending int
	// idle is closed when pending drops to zero.
	idle chan struct{}
}

// New creates a queue. Zero ttl or throttle values take the defaults. The
// queue stops processing when ctx is done.
func New(ctx context.Context, ttl, throttle time.Duration, service notifications.NotificationService) *Queue {
	if ttl == 0 {
		ttl = DefaultTTL
	}
	if throttle == 0 {
		throttle = DefaultThrottle
	}
	return &Queue{
		ctx:      ctx,
		items:    goconcurrentqueue.NewFIFO(),
		ttl:      ttl,
		throttle: throttle,
		service:  service,
	}
}

// Push adds a notification to the queue.
func (q *Queue) Push(ref string, notification *notifications.Notification) error {
	if notification == nil || notification.ToAddress == "" {
		return fmt.Errorf("notification without recipient")
	}
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	if q.pending == 0 {
		q.idle = make(chan struct{})
	}
	q.pending++
	q.mu.Unlock()

	if err := q.items.Enqueue(&Delivery{
		Ref:          ref,
		Notification: notification,
		CreatedAt:    time.Now(),
	}); err != nil {
		q.done()
		return err
	}
	log.Debugw("notification enqueued", "ref", ref)
	return nil
}

// Start runs the delivery loop until the queue context is done. Deliveries
// still queued at that point are dropped.
func (q *Queue) Start() {
	ticker := time.NewTicker(q.throttle)
	defer ticker.Stop()

	for {
		select {
		case <-q.ctx.Done():
			q.drain()
			return
		case <-ticker.C:
			q.processNext()
		}
	}
}

// Wait blocks until every pushed notification was sent or dropped, or until
// ctx is done.
func (q *Queue) Wait(ctx context.Context) error {
	q.mu.Lock()
	if q.pending == 0 {
		q.mu.Unlock()
		return nil
	}
	idle := q.idle
	q.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting notifications and waits, at most until ctx is done,
// for the ones already queued.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	return q.Wait(ctx)
}

// done marks one delivery as sent or dropped.
func (q *Queue) done() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending--
	if q.pending == 0 {
		close(q.idle)
	}
}

// processNext sends the next delivery in the queue, if any.
func (q *Queue) processNext() {
	item, err := q.items.Dequeue()
	if err != nil {
		if err.Error() != "empty queue" {
			log.Warnw("dequeue error", "error", err)
		}
		return
	}
	delivery, ok := item.(*Delivery)
	if !ok {
		log.Warnw("invalid item in notification queue")
		return
	}
	ctx, cancel := context.WithTimeout(q.ctx, q.throttle+30*time.Second)
	defer cancel()
	if err := q.service.SendNotification(ctx, delivery.Notification); err != nil {
		log.Warnw("failed to send notification", "ref", delivery.Ref, "retries", delivery.Retries, "error", err)
		if err := q.reenqueue(delivery); err != nil {
			log.Warnw("notification dropped", "ref", delivery.Ref, "error", err)
			q.done()
		}
		return
	}
	log.Debugw("notification sent", "ref", delivery.Ref)
	q.done()
}

// reenqueue queues a failed delivery again unless it reached the maximum
// number of retries or its TTL.
func (q *Queue) reenqueue(delivery *Delivery) error {
	if delivery.Retries >= DefaultMaxRetries || time.Since(delivery.CreatedAt) > q.ttl {
		return fmt.Errorf("TTL or max retries reached")
	}
	delivery.Retries++
	if err := q.items.Enqueue(delivery); err != nil {
		return fmt.Errorf("cannot enqueue the notification: %w", err)
	}
	return nil
}

// drain drops the queued deliveries.
func (q *Queue) drain() {
	for {
		item, err := q.items.Dequeue()
		if err != nil {
			return
		}
		if delivery, ok := item.(*Delivery); ok {
			log.Warnw("notification dropped, queue stopped", "ref", delivery.Ref)
		}
		q.done()
	}
}
