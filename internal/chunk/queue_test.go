package chunk

import (
	"sync"
	"testing"
	"time"
)

func TestQueueFIFOAndRetry(t *testing.T) {
	chunks, _ := Partition(30, 10)
	q := NewQueue(chunks)

	first, ok := q.Get()
	if !ok || first.Index != 0 {
		t.Fatalf("expected chunk 0, got %v %v", first, ok)
	}
	q.Retry(first)
	if q.Pending() != 3 {
		t.Errorf("expected 3 pending after retry, got %d", q.Pending())
	}

	order := []int{}
	for range 3 {
		c, ok := q.Get()
		if !ok {
			t.Fatal("queue closed early")
		}
		order = append(order, c.Index)
		q.Done(c)
	}
	if order[0] != 1 || order[1] != 2 || order[2] != 0 {
		t.Errorf("expected retried chunk at the tail, got order %v", order)
	}
	if q.Attempts(chunks[0]) != 2 {
		t.Errorf("expected 2 attempts for chunk 0, got %d", q.Attempts(chunks[0]))
	}
	if q.Remaining() != 0 {
		t.Errorf("expected nothing remaining, got %d", q.Remaining())
	}
	if _, ok := q.Get(); ok {
		t.Error("Get should report exhaustion once all chunks are done")
	}
}

func TestQueueGetBlocksWhileInFlight(t *testing.T) {
	chunks, _ := Partition(10, 10)
	q := NewQueue(chunks)
	c, _ := q.Get()

	got := make(chan bool, 1)
	go func() {
		_, ok := q.Get()
		got <- ok
	}()
	select {
	case <-got:
		t.Fatal("Get returned while the only chunk was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	q.Retry(c)
	select {
	case ok := <-got:
		if !ok {
			t.Fatal("expected the retried chunk")
		}
	case <-time.After(time.Second):
		t.Fatal("Get did not wake after retry")
	}
}

func TestQueueWaitAndClose(t *testing.T) {
	chunks, _ := Partition(40, 10)
	q := NewQueue(chunks)

	var wg sync.WaitGroup
	for range 3 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				c, ok := q.Get()
				if !ok {
					return
				}
				q.Done(c)
			}
		}()
	}
	waited := make(chan struct{})
	go func() {
		q.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after all chunks completed")
	}
	q.Close()
	wg.Wait()
}

func TestQueueCloseReleasesWaiters(t *testing.T) {
	chunks, _ := Partition(20, 10)
	q := NewQueue(chunks)
	q.Get()
	q.Get()

	done := make(chan struct{})
	go func() {
		q.Get()
		q.Wait()
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)
	q.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close did not release blocked callers")
	}
	if q.Remaining() != 2 {
		t.Errorf("closing must not mark chunks done, remaining = %d", q.Remaining())
	}
}
