package net

import (
	"context"
	"sync"
	"time"

	"github.com/lcx/oldentide-client/metrics"
)

// CorrelationQueue hands reply payloads from the receiver to the waiting
// request, first in first out. It is not keyed by request: whichever waiter
// dequeues first gets the head.
type CorrelationQueue struct {
	mu     sync.Mutex
	items  [][]byte
	maxLen int
	// signal holds at most one pending wake-up.
	signal chan struct{}
}

// NewCorrelationQueue returns an empty queue. maxLen > 0 bounds it, dropping
// the oldest entry on overflow; 0 leaves it unbounded.
func NewCorrelationQueue(maxLen int) *CorrelationQueue {
	return &CorrelationQueue{
		maxLen: maxLen,
		signal: make(chan struct{}, 1),
	}
}

// Enqueue appends payload and wakes one waiter.
func (q *CorrelationQueue) Enqueue(payload []byte) {
	q.mu.Lock()
	if q.maxLen > 0 && len(q.items) >= q.maxLen {
		q.items[0] = nil
		q.items = q.items[1:]
		metrics.IncrCounterWithDimGroup("net", "datagram_dropped_total", 1, metrics.Dimension{"reason": "queue_full"})
	}
	q.items = append(q.items, payload)
	depth := len(q.items)
	q.mu.Unlock()

	metrics.UpdateGaugeWithGroup("net", "queue_depth", metrics.Value(depth))

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

func (q *CorrelationQueue) tryDequeue() ([]byte, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	head := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	metrics.UpdateGaugeWithGroup("net", "queue_depth", metrics.Value(len(q.items)))
	return head, true
}

// WaitDequeue returns the head of the queue, blocking until an entry arrives,
// timeout elapses (ErrTimedOut) or ctx is done (ctx.Err()).
func (q *CorrelationQueue) WaitDequeue(ctx context.Context, timeout time.Duration) ([]byte, error) {
	if p, ok := q.tryDequeue(); ok {
		return p, nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-q.signal:
			if p, ok := q.tryDequeue(); ok {
				return p, nil
			}
		case <-timer.C:
			// an entry may have landed together with the deadline
			if p, ok := q.tryDequeue(); ok {
				return p, nil
			}
			return nil, ErrTimedOut
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Len returns the number of queued payloads.
func (q *CorrelationQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Drain discards every queued payload and returns how many there were.
func (q *CorrelationQueue) Drain() int {
	q.mu.Lock()
	n := len(q.items)
	q.items = nil
	q.mu.Unlock()

	metrics.UpdateGaugeWithGroup("net", "queue_depth", 0)
	return n
}
