package indexer

import (
	"context"
	"errors"
	"sync"
)

// ErrQueueClosed is returned by Enqueue after Close, and by Dequeue once
// the queue is closed and drained.
var ErrQueueClosed = errors.New("work queue closed")

// Queue is an unbounded FIFO of work items. Any number of producers may
// Enqueue; the indexing pipeline runs a single consumer, though Dequeue
// itself is safe for concurrent use.
//
// TaskDone and Join give completion accounting: Join blocks until every
// enqueued item has been dequeued and marked done, which is what makes a
// manual reindex report "finished" only after the work actually drained.
type Queue struct {
	mu         sync.Mutex
	items      []WorkItem
	unfinished int
	closed     bool

	// wake nudges a blocked Dequeue after an enqueue. Buffered so
	// producers never block on it.
	wake chan struct{}
	// closedCh unblocks Dequeue when the queue closes.
	closedCh chan struct{}
	// idle is closed whenever the unfinished count drops to zero and
	// replaced when work arrives again. Join waits on the current one.
	idle chan struct{}
}

// NewQueue creates an empty open queue.
func NewQueue() *Queue {
	idle := make(chan struct{})
	close(idle)
	return &Queue{
		wake:     make(chan struct{}, 1),
		closedCh: make(chan struct{}),
		idle:     idle,
	}
}

// Enqueue appends an item. It never blocks; the only failure is enqueueing
// after Close.
func (q *Queue) Enqueue(item WorkItem) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	q.items = append(q.items, item)
	q.unfinished++
	if q.unfinished == 1 {
		q.idle = make(chan struct{})
	}
	depth := len(q.items)
	q.mu.Unlock()

	queueDepth.Set(float64(depth))

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return nil
}

// Dequeue removes and returns the oldest item. It blocks until an item is
// available, ctx is canceled, or the queue is closed and drained.
func (q *Queue) Dequeue(ctx context.Context) (WorkItem, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			item := q.items[0]
			q.items = q.items[1:]
			depth := len(q.items)
			q.mu.Unlock()
			queueDepth.Set(float64(depth))
			return item, nil
		}
		closed := q.closed
		q.mu.Unlock()

		if closed {
			return WorkItem{}, ErrQueueClosed
		}

		select {
		case <-ctx.Done():
			return WorkItem{}, ctx.Err()
		case <-q.wake:
		case <-q.closedCh:
		}
	}
}

// TaskDone marks one previously dequeued item as fully processed. Calling
// it more times than items were enqueued is a programming error and panics.
func (q *Queue) TaskDone() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.unfinished <= 0 {
		panic("indexer: TaskDone called more times than items enqueued")
	}
	q.unfinished--
	if q.unfinished == 0 {
		close(q.idle)
	}
}

// Join blocks until every item enqueued so far has been dequeued and marked
// done via TaskDone, or until ctx is canceled.
func (q *Queue) Join(ctx context.Context) error {
	q.mu.Lock()
	idle := q.idle
	q.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Len returns the number of items waiting to be dequeued.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close stops the queue from accepting new items. Items already queued can
// still be dequeued; once drained, Dequeue returns ErrQueueClosed. Close is
// idempotent.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.closedCh)
}
