package mailqueue

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cancelready/backend/notifications"
	qt "github.com/frankban/quicktest"
)

type recorder struct {
	mu       sync.Mutex
	sent     []string
	failures int
}

func (*recorder) New(any) error { return nil }

func (r *recorder) SendNotification(_ context.Context, n *notifications.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n.ToAddress)
	if r.failures > 0 {
		r.failures--
		return fmt.Errorf("temporary failure")
	}
	return nil
}

func TestQueue(t *testing.T) {
	c := qt.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := &recorder{failures: 2}
	q := New(ctx, time.Minute, time.Millisecond, rec)
	go q.Start()

	c.Assert(q.Push("a", &notifications.Notification{ToAddress: "a@example.com"}), qt.IsNil)
	c.Assert(q.Push("b", &notifications.Notification{ToAddress: "b@example.com"}), qt.IsNil)
	c.Assert(q.Push("c", &notifications.Notification{}), qt.ErrorMatches, "notification without recipient")
	c.Assert(q.Push("d", nil), qt.ErrorMatches, "notification without recipient")
	c.Assert(q.Wait(context.Background()), qt.IsNil)

	// a fails, b fails, a is retried and succeeds, then b
	c.Assert(rec.sent, qt.DeepEquals, []string{
		"a@example.com", "b@example.com", "a@example.com", "b@example.com",
	})
}

func TestQueueMaxRetries(t *testing.T) {
	c := qt.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := &recorder{failures: 100}
	q := New(ctx, time.Minute, time.Millisecond, rec)
	go q.Start()

	c.Assert(q.Push("a", &notifications.Notification{ToAddress: "a@example.com"}), qt.IsNil)
	c.Assert(q.Wait(context.Background()), qt.IsNil)
	c.Assert(rec.sent, qt.HasLen, 1+DefaultMaxRetries)
}

func TestQueueStopDropsPending(t *testing.T) {
	c := qt.New(t)
	ctx, cancel := context.WithCancel(context.Background())

	rec := &recorder{}
	q := New(ctx, 0, time.Hour, rec)
	c.Assert(q.Push("a", &notifications.Notification{ToAddress: "a@example.com"}), qt.IsNil)
	cancel()
	q.Start()
	c.Assert(q.Wait(context.Background()), qt.IsNil)
	c.Assert(rec.sent, qt.HasLen, 0)
}

func TestQueueClose(t *testing.T) {
	c := qt.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := &recorder{}
	q := New(ctx, time.Minute, time.Millisecond, rec)
	go q.Start()

	c.Assert(q.Push("a", &notifications.Notification{ToAddress: "a@example.com"}), qt.IsNil)
	c.Assert(q.Close(context.Background()), qt.IsNil)
	c.Assert(rec.sent, qt.DeepEquals, []string{"a@example.com"})
	c.Assert(q.Push("b", &notifications.Notification{ToAddress: "b@example.com"}), qt.ErrorIs, ErrClosed)
	// nothing pending, closing again returns at once
	c.Assert(q.Close(context.Background()), qt.IsNil)
}

func TestQueueCloseBounded(t *testing.T) {
	c := qt.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// the loop never runs, so the delivery stays queued
	q := New(ctx, time.Minute, time.Hour, &recorder{})
	c.Assert(q.Push("a", &notifications.Notification{ToAddress: "a@example.com"}), qt.IsNil)

	closeCtx, closeCancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer closeCancel()
	start := time.Now()
	c.Assert(q.Close(closeCtx), qt.ErrorIs, context.DeadlineExceeded)
	c.Assert(time.Since(start) < 5*time.Second, qt.IsTrue)
	c.Assert(q.Push("b", &notifications.Notification{ToAddress: "b@example.com"}), qt.ErrorIs, ErrClosed)
}

func TestQueueConcurrentPushAndClose(t *testing.T) {
	c := qt.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := &recorder{}
	q := New(ctx, time.Minute, time.Millisecond, rec)
	go q.Start()

	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := q.Push(fmt.Sprint(i), &notifications.Notification{ToAddress: fmt.Sprintf("%d@example.com", i)})
			if err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
				return
			}
			c.Check(err, qt.ErrorIs, ErrClosed)
		}(i)
	}
	closeCtx, closeCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer closeCancel()
	c.Assert(q.Close(closeCtx), qt.IsNil)
	wg.Wait()

	// every accepted notification was delivered before Close returned
	rec.mu.Lock()
	defer rec.mu.Unlock()
	mu.Lock()
	defer mu.Unlock()
	c.Assert(rec.sent, qt.HasLen, accepted)
}
