package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestQueueRejectsEnqueueBeforeStart(t *testing.T) {
	q := NewQueue("test", func(ctx context.Context, job Job) error { return nil }, QueueConfig{Logger: zap.NewNop()})

	err := q.Enqueue(Job{ID: "job-1", Kind: "noop", Ref: "book-1"})
	require.Error(t, err)
}

func TestQueueDeliversJobRef(t *testing.T) {
	refs := make(chan string, 1)
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		refs <- job.Ref
		return nil
	}, QueueConfig{Workers: 1, Logger: zap.NewNop()})

	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "job-1", Kind: "book_qr", Ref: "book-1"}))

	select {
	case ref := <-refs:
		assert.Equal(t, "book-1", ref)
	case <-time.After(2 * time.Second):
		t.Fatal("job was not handled in time")
	}
}

func TestQueueRetriesFailedJob(t *testing.T) {
	var mu sync.Mutex
	attempts := 0
	done := make(chan struct{})

	q := NewQueue("test", func(ctx context.Context, job Job) error {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if attempts < 2 {
			return errors.New("transient failure")
		}
		close(done)
		return nil
	}, QueueConfig{Workers: 1, MaxRetries: 3, RetryDelay: 10 * time.Millisecond, Logger: zap.NewNop()})

	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "job-1", Kind: "book_qr", Ref: "book-1"}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job was not retried in time")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, attempts)
}

func TestQueueStampsEnqueueTime(t *testing.T) {
	jobs := make(chan Job, 1)
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		jobs <- job
		return nil
	}, QueueConfig{Workers: 1, Logger: zap.NewNop()})

	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "job-1", Kind: "book_qr", Ref: "book-1"}))

	select {
	case job := <-jobs:
		assert.False(t, job.Enqueued.IsZero())
	case <-time.After(2 * time.Second):
		t.Fatal("job was not handled in time")
	}
}
