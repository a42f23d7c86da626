package indexer

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_FIFO(t *testing.T) {
	q := NewQueue()

	for i := 0; i < 5; i++ {
		require.NoError(t, q.Enqueue(NewFileEvent(fmt.Sprintf("/corpus/%d.txt", i), int64(i), "")))
	}
	require.Equal(t, 5, q.Len())

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		item, err := q.Dequeue(ctx)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("/corpus/%d.txt", i), item.Path)
	}
	assert.Equal(t, 0, q.Len())
}

func TestQueue_DequeueBlocksUntilEnqueue(t *testing.T) {
	q := NewQueue()

	got := make(chan WorkItem, 1)
	go func() {
		item, err := q.Dequeue(context.Background())
		if err == nil {
			got <- item
		}
	}()

	// Give the consumer a moment to block before producing.
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, q.Enqueue(NewFileEvent("/corpus/late.txt", 1, "")))

	select {
	case item := <-got:
		assert.Equal(t, "/corpus/late.txt", item.Path)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for dequeue")
	}
}

func TestQueue_DequeueContextCanceled(t *testing.T) {
	q := NewQueue()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := q.Dequeue(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestQueue_CloseDrains(t *testing.T) {
	q := NewQueue()

	require.NoError(t, q.Enqueue(NewFileEvent("/corpus/a.txt", 1, "")))
	require.NoError(t, q.Enqueue(NewFileEvent("/corpus/b.txt", 2, "")))
	q.Close()

	require.ErrorIs(t, q.Enqueue(NewFileEvent("/corpus/c.txt", 3, "")), ErrQueueClosed)

	ctx := context.Background()
	for _, want := range []string{"/corpus/a.txt", "/corpus/b.txt"} {
		item, err := q.Dequeue(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, item.Path)
	}

	_, err := q.Dequeue(ctx)
	require.ErrorIs(t, err, ErrQueueClosed)
}

func TestQueue_CloseIdempotent(t *testing.T) {
	q := NewQueue()
	q.Close()
	q.Close()

	require.ErrorIs(t, q.Enqueue(WorkItem{Type: EventTypeFile}), ErrQueueClosed)
}

func TestQueue_JoinEmptyReturnsImmediately(t *testing.T) {
	q := NewQueue()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, q.Join(ctx))
}

func TestQueue_JoinWaitsForTaskDone(t *testing.T) {
	q := NewQueue()
	require.NoError(t, q.Enqueue(NewFileEvent("/corpus/a.txt", 1, "")))

	// Dequeued but not done: Join must still block.
	_, err := q.Dequeue(context.Background())
	require.NoError(t, err)

	shortCtx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, q.Join(shortCtx), context.DeadlineExceeded)

	q.TaskDone()

	ctx, cancel2 := context.WithTimeout(context.Background(), time.Second)
	defer cancel2()
	require.NoError(t, q.Join(ctx))
}

func TestQueue_JoinUnblocksWhenConsumerFinishes(t *testing.T) {
	q := NewQueue()

	for i := 0; i < 10; i++ {
		require.NoError(t, q.Enqueue(NewFileEvent(fmt.Sprintf("/corpus/%d.txt", i), int64(i), "")))
	}

	go func() {
		for {
			_, err := q.Dequeue(context.Background())
			if err != nil {
				return
			}
			q.TaskDone()
		}
	}()
	defer q.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, q.Join(ctx))
}

func TestQueue_TaskDoneUnbalancedPanics(t *testing.T) {
	q := NewQueue()

	require.Panics(t, func() { q.TaskDone() })
}

func TestQueue_ConcurrentProducers(t *testing.T) {
	q := NewQueue()

	const producers = 8
	const perProducer = 50

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				_ = q.Enqueue(NewFileEvent(fmt.Sprintf("/corpus/%d-%d.txt", p, i), int64(i), ""))
			}
		}(p)
	}
	wg.Wait()

	require.Equal(t, producers*perProducer, q.Len())

	ctx := context.Background()
	seen := 0
	for q.Len() > 0 {
		_, err := q.Dequeue(ctx)
		require.NoError(t, err)
		q.TaskDone()
		seen++
	}
	assert.Equal(t, producers*perProducer, seen)

	joinCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, q.Join(joinCtx))
}
