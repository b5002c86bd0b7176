package live

import "sync"

// SerialQueue runs enqueued tasks one at a time in submission order. A task
// enqueued while another runs waits its turn; a reentrant enqueue from inside
// a task is deferred, never nested. Flush discards tasks that have not yet
// started, which is how barge-in throws away stale decode work.
type SerialQueue struct {
	mu      sync.Mutex
	pending []func()
	running bool
}

// NewSerialQueue creates an empty queue.
func NewSerialQueue() *SerialQueue {
	return &SerialQueue{}
}

// Enqueue adds fn and drains the queue on the calling goroutine unless a
// drain is already in progress elsewhere.
func (q *SerialQueue) Enqueue(fn func()) {
	q.mu.Lock()
	q.pending = append(q.pending, fn)
	if q.running {
		q.mu.Unlock()
		return
	}
	q.running = true
	for len(q.pending) > 0 {
		next := q.pending[0]
		q.pending = q.pending[1:]
		q.mu.Unlock()
		next()
		q.mu.Lock()
	}
	q.running = false
	q.mu.Unlock()
}

// Flush discards every task that has not started running.
func (q *SerialQueue) Flush() {
	q.mu.Lock()
	q.pending = nil
	q.mu.Unlock()
}

// Len reports how many tasks are waiting to run.
func (q *SerialQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
