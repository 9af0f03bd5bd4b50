package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestQueueDeliversAndDrainsOnStop(t *testing.T) {
	var mu sync.Mutex
	seen := make([]string, 0)
	q := NewQueue("events", func(_ context.Context, job Job) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, job.ID)
		return nil
	}, QueueConfig{Workers: 2, BufferSize: 8})

	require.Error(t, q.Enqueue(Job{ID: "early"}))

	q.Start(context.Background())
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, q.Enqueue(Job{ID: id}))
	}
	q.Stop()

	mu.Lock()
	defer mu.Unlock()
	require.ElementsMatch(t, []string{"a", "b", "c"}, seen)
	require.Error(t, q.Enqueue(Job{ID: "late"}))
}

func TestQueueRetriesFailedJobs(t *testing.T) {
	var calls int32
	done := make(chan struct{})
	q := NewQueue("events", func(_ context.Context, job Job) error {
		if atomic.AddInt32(&calls, 1) < 3 {
			return errors.New("broker down")
		}
		close(done)
		return nil
	}, QueueConfig{Workers: 1, MaxRetries: 3, RetryDelay: time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "evt-1"}))
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job was not retried")
	}
	require.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestQueueFullReturnsError(t *testing.T) {
	block := make(chan struct{})
	q := NewQueue("events", func(context.Context, Job) error {
		<-block
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 1})
	q.Start(context.Background())

	require.NoError(t, q.Enqueue(Job{ID: "1"}))
	var full error
	for i := 0; i < 3 && full == nil; i++ {
		full = q.Enqueue(Job{ID: "n"})
	}
	require.ErrorIs(t, full, ErrQueueFull)
	close(block)
	q.Stop()
}

func TestQueueFailureDuringStopIsNotRetried(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	var calls int32
	started := make(chan struct{})
	release := make(chan struct{})
	q := NewQueue("events", func(context.Context, Job) error {
		if atomic.AddInt32(&calls, 1) == 1 {
			close(started)
		}
		<-release
		return errors.New("broker down")
	}, QueueConfig{Workers: 1, MaxRetries: 5, RetryDelay: time.Millisecond, Logger: zap.New(core)})
	q.Start(context.Background())
	require.NoError(t, q.Enqueue(Job{ID: "evt-1"}))
	<-started

	stopped := make(chan struct{})
	go func() {
		q.Stop()
		close(stopped)
	}()
	require.Eventually(t, func() bool {
		q.mu.RLock()
		defer q.mu.RUnlock()
		return q.closed
	}, time.Second, time.Millisecond)

	close(release)
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("stop did not return")
	}
	require.EqualValues(t, 1, atomic.LoadInt32(&calls))
	require.Equal(t, 1, logs.FilterMessage("job failed, retry dropped on shutdown").Len())
	require.Zero(t, logs.FilterMessage("job failed, retrying").Len())
}
