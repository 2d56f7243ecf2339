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
	done := make(chan string, 1)
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		done <- job.ID
		return nil
	}, QueueConfig{Workers: 1})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.TryEnqueue(Job{ID: "a"}))
	select {
	case id := <-done:
		assert.Equal(t, "a", id)
	case <-time.After(2 * time.Second):
		t.Fatal("job not processed")
	}
}

func TestQueueRetriesUntilSuccess(t *testing.T) {
	var calls int32
	done := make(chan struct{})
	q := NewQueue("retry", func(ctx context.Context, job Job) error {
		if atomic.AddInt32(&calls, 1) < 3 {
			return errors.New("transient")
		}
		close(done)
		return nil
	}, QueueConfig{Workers: 1, MaxRetries: 3, RetryDelay: time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.TryEnqueue(Job{ID: "r"}))
	select {
	case <-done:
		assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
	case <-time.After(2 * time.Second):
		t.Fatal("job never succeeded")
	}
}

func TestQueueRejectsWhenStopped(t *testing.T) {
	q := NewQueue("stopped", func(ctx context.Context, job Job) error { return nil }, QueueConfig{})
	assert.Error(t, q.TryEnqueue(Job{ID: "x"}))

	q.Start(context.Background())
	q.Stop()
	assert.Error(t, q.TryEnqueue(Job{ID: "y"}))
}

func TestQueueReportsFull(t *testing.T) {
	block := make(chan struct{})
	q := NewQueue("full", func(ctx context.Context, job Job) error {
		<-block
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 1})
	q.Start(context.Background())
	defer func() {
		close(block)
		q.Stop()
	}()

	var full bool
	for i := 0; i < 5; i++ {
		if err := q.TryEnqueue(Job{}); errors.Is(err, ErrQueueFull) {
			full = true
			break
		}
	}
	assert.True(t, full)
}

func TestQueueReportsDepth(t *testing.T) {
	var (
		mu     sync.Mutex
		depths []int
	)
	started := make(chan struct{}, 1)
	block := make(chan struct{})
	q := NewQueue("depth", func(ctx context.Context, job Job) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-block
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 4, Depth: func(n int) {
		mu.Lock()
		depths = append(depths, n)
		mu.Unlock()
	}})
	q.Start(context.Background())
	defer func() {
		close(block)
		q.Stop()
	}()

	require.NoError(t, q.TryEnqueue(Job{ID: "1"}))
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("worker never picked up the job")
	}
	require.NoError(t, q.TryEnqueue(Job{ID: "2"}))
	require.NoError(t, q.TryEnqueue(Job{ID: "3"}))

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, depths, 0)
	assert.Equal(t, 2, depths[len(depths)-1])
	assert.Equal(t, 2, q.Len())
}
