package bot

import (
	"sync"
)

// request is one queued chat message waiting for the Run loop.
type request struct {
	incoming Incoming
	reply    chan Response
}

// requestQueue is a thread-safe FIFO of chat requests.
//
// Submit may be called from any goroutine; only the Run loop dequeues, so
// requests are handled one at a time in arrival order.
type requestQueue struct {
	mu     sync.Mutex
	items  []request
	signal chan struct{}
	closed bool
}

func newRequestQueue() *requestQueue {
	return &requestQueue{
		items:  make([]request, 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds a request to the back of the queue.
// Returns false if the queue is closed.
func (q *requestQueue) Enqueue(r request) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.items = append(q.items, r)

	// Non-blocking: a pending signal already covers this request.
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// Dequeue removes and returns the request at the front of the queue.
// Blocks until a request is available or the queue is closed.
// Returns false once the queue is closed and drained.
func (q *requestQueue) Dequeue() (request, bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			r := q.pop()
			q.mu.Unlock()
			return r, true
		}
		if q.closed {
			q.mu.Unlock()
			return request{}, false
		}
		q.mu.Unlock()

		<-q.signal
	}
}

// TryDequeue returns the front request without blocking.
func (q *requestQueue) TryDequeue() (request, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return request{}, false
	}
	return q.pop(), true
}

// pop removes the front item. Caller holds q.mu.
func (q *requestQueue) pop() request {
	r := q.items[0]
	q.items[0] = request{}
	q.items = q.items[1:]
	return r
}

// Wait returns a channel that receives when a request may be available.
// The channel is closed when the queue is closed.
func (q *requestQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the number of queued requests.
func (q *requestQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Closed reports whether Close has been called.
func (q *requestQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Close stops the queue from accepting requests and wakes blocked readers.
// Requests already queued can still be dequeued. Safe to call twice.
func (q *requestQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		q.closed = true
		close(q.signal)
	}
}
