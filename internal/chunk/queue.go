package chunk

import (
	"sync"

	"github.com/gammazero/deque"
)

// Queue is the shared work queue. Every chunk is pending (queued), in flight
// (returned by Get, not yet Done or Retry) or done.
type Queue struct {
	mu        sync.Mutex
	cond      *sync.Cond
	pending   deque.Deque[Chunk]
	attempts  map[int]int
	remaining int
	closed    bool
}

func NewQueue(chunks []Chunk) *Queue {
	q := &Queue{
		attempts:  make(map[int]int, len(chunks)),
		remaining: len(chunks),
	}
	q.cond = sync.NewCond(&q.mu)
	for _, c := range chunks {
		q.pending.PushBack(c)
	}
	return q
}

// Get blocks until a chunk is pending. It returns false once the queue is closed
// or every chunk is done; that is the signal for a worker to exit.
func (q *Queue) Get() (Chunk, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.pending.Len() == 0 && !q.closed && q.remaining > 0 {
		q.cond.Wait()
	}
	if q.closed || q.pending.Len() == 0 {
		return Chunk{}, false
	}
	c := q.pending.PopFront()
	q.attempts[c.Index]++
	return c, true
}

// Retry puts a failed chunk back, unchanged, at the tail of the queue.
func (q *Queue) Retry(c Chunk) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending.PushBack(c)
	q.cond.Broadcast()
}

// Done marks an in-flight chunk as written.
func (q *Queue) Done(c Chunk) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.remaining--
	if q.remaining <= 0 {
		q.cond.Broadcast()
	}
}

// Close stops intake: blocked and future Get calls return false.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}

// Wait is the join barrier: it returns once no chunk is pending or in flight, or the queue is closed.
func (q *Queue) Wait() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.remaining > 0 && !q.closed {
		q.cond.Wait()
	}
}

// Attempts reports how many times the chunk has been handed to a worker.
func (q *Queue) Attempts(c Chunk) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.attempts[c.Index]
}

func (q *Queue) Remaining() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.remaining
}

func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending.Len()
}
