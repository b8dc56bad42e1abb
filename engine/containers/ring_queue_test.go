package containers

import (
	"testing"

	"github.com/cockroachdb/errors"
)

func TestRingQueueFIFO(t *testing.T) {
	q := NewRingQueue[int](3)
	for i := 1; i <= 3; i++ {
		if err := q.Enqueue(i); err != nil {
			t.Fatalf("Enqueue(%d): %v", i, err)
		}
	}
	if err := q.Enqueue(4); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("Enqueue on full queue = %v, want ErrQueueFull", err)
	}
	for want := 1; want <= 3; want++ {
		got, err := q.Dequeue()
		if err != nil || got != want {
			t.Fatalf("Dequeue() = %d, %v, want %d", got, err, want)
		}
	}
	if _, err := q.Dequeue(); !errors.Is(err, ErrQueueEmpty) {
		t.Fatalf("Dequeue on empty queue = %v, want ErrQueueEmpty", err)
	}
}

func TestRingQueuePushOverwritesOldest(t *testing.T) {
	q := NewRingQueue[int](3)
	for i := 1; i <= 5; i++ {
		q.Push(i)
	}
	var got []int
	q.Each(func(v int) { got = append(got, v) })
	want := []int{3, 4, 5}
	if len(got) != len(want) {
		t.Fatalf("Each() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Each() = %v, want %v", got, want)
		}
	}
	if front, _ := q.Peek(); front != 3 {
		t.Fatalf("Peek() = %d, want 3", front)
	}
}
