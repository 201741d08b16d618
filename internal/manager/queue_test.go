package manager

import (
	"context"
	"testing"
	"time"
)

func TestUnboundedQueueFIFOOrder(t *testing.T) {
	q := newUnboundedQueue[int]()
	for i := 0; i < 5; i++ {
		q.Push(i)
	}
	for i := 0; i < 5; i++ {
		v, ok := q.Pop(context.Background())
		if !ok || v != i {
			t.Fatalf("expected %d, got %d (ok=%v)", i, v, ok)
		}
	}
}

func TestUnboundedQueuePopBlocksUntilPush(t *testing.T) {
	q := newUnboundedQueue[string]()
	done := make(chan string, 1)
	go func() {
		v, _ := q.Pop(context.Background())
		done <- v
	}()

	time.Sleep(20 * time.Millisecond)
	q.Push("hello")

	select {
	case v := <-done:
		if v != "hello" {
			t.Fatalf("expected hello, got %s", v)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected Pop to unblock after Push")
	}
}

func TestUnboundedQueuePopReturnsOnContextCancel(t *testing.T) {
	q := newUnboundedQueue[int]()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, ok := q.Pop(ctx)
	if ok {
		t.Fatalf("expected Pop to report ok=false on a cancelled context")
	}
}

func TestUnboundedQueueLenTracksBacklog(t *testing.T) {
	q := newUnboundedQueue[int]()
	if q.Len() != 0 {
		t.Fatalf("expected empty queue to report len 0")
	}
	q.Push(1)
	q.Push(2)
	if q.Len() != 2 {
		t.Fatalf("expected len 2, got %d", q.Len())
	}
	q.Pop(context.Background())
	if q.Len() != 1 {
		t.Fatalf("expected len 1 after one pop, got %d", q.Len())
	}
}
