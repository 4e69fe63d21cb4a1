package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueProcessesJobs(t *testing.T) {
	var handled atomic.Int32
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		handled.Add(1)
		return nil
	}, QueueConfig{Workers: 2})

	q.Start(context.Background())
	defer q.Stop()

	for i := 0; i < 5; i++ {
		require.NoError(t, q.Enqueue(Job{ID: "job", Type: "notify"}))
	}

	require.Eventually(t, func() bool { return handled.Load() == 5 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, uint64(5), q.Stats().Processed)
}

func TestQueueEnqueueBeforeStart(t *testing.T) {
	q := NewQueue("idle", func(ctx context.Context, job Job) error { return nil }, QueueConfig{})
	assert.Error(t, q.Enqueue(Job{ID: "x"}))
}

func TestQueueFullDoesNotBlock(t *testing.T) {
	release := make(chan struct{})
	q := NewQueue("full", func(ctx context.Context, job Job) error {
		<-release
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 1})
	q.Start(context.Background())
	defer q.Stop()
	defer close(release)

	require.NoError(t, q.Enqueue(Job{ID: "busy"}))
	require.Eventually(t, func() bool { return q.Depth() == 0 }, time.Second, 5*time.Millisecond)
	require.NoError(t, q.Enqueue(Job{ID: "buffered"}))

	err := q.Enqueue(Job{ID: "overflow"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrQueueFull)
}

func TestQueueRetriesThenReportsFailure(t *testing.T) {
	var attempts atomic.Int32
	var mu sync.Mutex
	var failed []Job

	q := NewQueue("retry", func(ctx context.Context, job Job) error {
		attempts.Add(1)
		return errors.New("boom")
	}, QueueConfig{
		Workers:    1,
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
		OnFailure: func(job Job, err error) {
			mu.Lock()
			defer mu.Unlock()
			failed = append(failed, job)
		},
	})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "flaky"}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(failed) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(3), attempts.Load())
	assert.Equal(t, 3, failed[0].Attempt)

	stats := q.Stats()
	assert.Equal(t, uint64(2), stats.Retried)
	assert.Equal(t, uint64(1), stats.Failed)
}

func TestQueueRecoversPanics(t *testing.T) {
	done := make(chan error, 1)
	q := NewQueue("panic", func(ctx context.Context, job Job) error {
		panic("unexpected")
	}, QueueConfig{OnFailure: func(job Job, err error) { done <- err }})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "p"}))
	select {
	case err := <-done:
		assert.Contains(t, err.Error(), "panicked")
	case <-time.After(time.Second):
		t.Fatal("failure hook not called")
	}
}

func TestQueueJobTimeout(t *testing.T) {
	done := make(chan error, 1)
	q := NewQueue("timeout", func(ctx context.Context, job Job) error {
		<-ctx.Done()
		return ctx.Err()
	}, QueueConfig{JobTimeout: 10 * time.Millisecond, OnFailure: func(job Job, err error) { done <- err }})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "slow"}))
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(time.Second):
		t.Fatal("job did not time out")
	}
}

func TestQueueBackoff(t *testing.T) {
	q := NewQueue("b", nil, QueueConfig{RetryDelay: time.Second})
	assert.Equal(t, time.Second, q.backoff(1))
	assert.Equal(t, 4*time.Second, q.backoff(3))
	assert.Equal(t, 32*time.Second, q.backoff(10))
}
