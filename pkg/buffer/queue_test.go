package buffer

import (
	"io"
	"sync"
	"testing"
	"time"
)

func TestQueueFIFO(t *testing.T) {
	q := NewQueue[int](4)
	for i := 1; i <= 4; i++ {
		if err := q.Put(i); err != nil {
			t.Fatalf("Put(%d): %v", i, err)
		}
	}
	for i := 1; i <= 4; i++ {
		got, err := q.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if got != i {
			t.Errorf("Next = %d; want %d", got, i)
		}
	}
}

func TestQueuePutBlocksWhenFull(t *testing.T) {
	q := NewQueue[int](1)
	if err := q.Put(1); err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := q.Put(2); err != nil {
			t.Errorf("Put: %v", err)
		}
	}()

	select {
	case <-done:
		t.Fatal("Put returned while queue was full")
	case <-time.After(20 * time.Millisecond):
	}

	if _, err := q.Next(); err != nil {
		t.Fatal(err)
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Put did not unblock after Next")
	}
}

func TestQueueTryPut(t *testing.T) {
	q := NewQueue[string](1)
	if !q.TryPut("a") {
		t.Fatal("TryPut rejected on empty queue")
	}
	if q.TryPut("b") {
		t.Fatal("TryPut accepted on full queue")
	}
}

func TestQueueCloseWrite(t *testing.T) {
	q := NewQueue[int](4)
	q.Put(1)
	q.CloseWrite()

	if got, err := q.Next(); err != nil || got != 1 {
		t.Fatalf("Next = (%d, %v); want (1, nil)", got, err)
	}
	if _, err := q.Next(); err != io.EOF {
		t.Fatalf("Next after drain = %v; want io.EOF", err)
	}
	if err := q.Put(2); err == nil {
		t.Fatal("Put after CloseWrite succeeded")
	}
}

func TestQueueDrain(t *testing.T) {
	q := NewQueue[int](8)
	for i := 0; i < 6; i++ {
		q.Put(i)
	}
	removed := q.Drain(func(v int) bool { return v%2 == 0 })
	if removed != 3 {
		t.Fatalf("Drain removed %d; want 3", removed)
	}
	want := []int{1, 3, 5}
	for _, w := range want {
		got, err := q.Next()
		if err != nil {
			t.Fatal(err)
		}
		if got != w {
			t.Errorf("Next = %d; want %d", got, w)
		}
	}
	if q.Len() != 0 {
		t.Errorf("Len = %d; want 0", q.Len())
	}
}

func TestQueueDrainUnblocksProducer(t *testing.T) {
	q := NewQueue[int](1)
	q.Put(1)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		q.Put(2)
	}()

	time.Sleep(10 * time.Millisecond)
	q.Drain(func(int) bool { return true })
	wg.Wait()

	got, err := q.Next()
	if err != nil || got != 2 {
		t.Fatalf("Next = (%d, %v); want (2, nil)", got, err)
	}
}

func TestQueueCloseWithError(t *testing.T) {
	q := NewQueue[int](4)
	q.Put(1)
	wantErr := io.ErrUnexpectedEOF
	q.CloseWithError(wantErr)

	if _, err := q.Next(); err != wantErr {
		t.Fatalf("Next = %v; want %v", err, wantErr)
	}
}

func TestRingOverwrite(t *testing.T) {
	r := NewRing[int](3)
	for i := 1; i <= 5; i++ {
		r.Add(i)
	}
	got := r.Snapshot()
	want := []int{3, 4, 5}
	if len(got) != len(want) {
		t.Fatalf("Snapshot = %v; want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Snapshot = %v; want %v", got, want)
		}
	}
}

func TestRingTail(t *testing.T) {
	r := NewRing[int](8)
	r.AddAll([]int{1, 2, 3, 4})
	got := r.Tail(2)
	if len(got) != 2 || got[0] != 3 || got[1] != 4 {
		t.Fatalf("Tail(2) = %v; want [3 4]", got)
	}
	if got := r.Tail(100); len(got) != 4 {
		t.Fatalf("Tail(100) returned %d elements; want 4", len(got))
	}
}

func TestRingClear(t *testing.T) {
	r := NewRing[int](4)
	r.AddAll([]int{1, 2})
	r.Clear()
	if r.Len() != 0 {
		t.Errorf("Len after Clear = %d; want 0", r.Len())
	}
	r.Add(9)
	if got := r.Snapshot(); len(got) != 1 || got[0] != 9 {
		t.Errorf("Snapshot after Clear+Add = %v; want [9]", got)
	}
}
