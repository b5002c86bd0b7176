package live

import "testing"

func TestSerialQueue_RunsInOrder(t *testing.T) {
	q := NewSerialQueue()
	var order []int
	for i := 0; i < 5; i++ {
		i := i
		q.Enqueue(func() { order = append(order, i) })
	}

	if len(order) != 5 {
		t.Fatalf("Expected 5 tasks run, got %d", len(order))
	}
	for i, v := range order {
		if v != i {
			t.Errorf("Expected task %d at position %d, got %d", i, i, v)
		}
	}
}

func TestSerialQueue_ReentrantEnqueueIsDeferred(t *testing.T) {
	q := NewSerialQueue()
	var order []string

	q.Enqueue(func() {
		order = append(order, "outer")
		q.Enqueue(func() { order = append(order, "inner") })
		// The inner task must not have run yet.
		if len(order) != 1 {
			t.Errorf("Inner task ran nested, order so far: %v", order)
		}
	})

	if len(order) != 2 || order[0] != "outer" || order[1] != "inner" {
		t.Errorf("Expected [outer inner], got %v", order)
	}
}

func TestSerialQueue_FlushDiscardsPending(t *testing.T) {
	q := NewSerialQueue()
	var ran []string

	q.Enqueue(func() {
		ran = append(ran, "first")
		q.Enqueue(func() { ran = append(ran, "stale") })
		q.Enqueue(func() { ran = append(ran, "stale") })
		q.Flush()
	})

	if len(ran) != 1 || ran[0] != "first" {
		t.Errorf("Expected only the first task to run, got %v", ran)
	}
	if q.Len() != 0 {
		t.Errorf("Expected empty queue after flush, got %d", q.Len())
	}
}
