package session

import (
	"container/heap"
	"sync"

	"github.com/guri-assistant/guri/pkg/bus"
)

// promptQueue orders pending prompts by priority, FIFO within one
// priority level. Pop blocks until a prompt arrives or the queue
// closes.
type promptQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  promptHeap
	seq    uint64
	closed bool
}

func newPromptQueue() *promptQueue {
	q := &promptQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *promptQueue) push(p *bus.Prompt) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.seq++
	heap.Push(&q.items, queuedPrompt{p: p, seq: q.seq})
	q.cond.Signal()
}

// pop returns the next prompt, or nil after close.
func (q *promptQueue) pop() *bus.Prompt {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return nil
	}
	return heap.Pop(&q.items).(queuedPrompt).p
}

func (q *promptQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *promptQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}

type queuedPrompt struct {
	p   *bus.Prompt
	seq uint64
}

type promptHeap []queuedPrompt

func (h promptHeap) Len() int { return len(h) }

func (h promptHeap) Less(i, j int) bool {
	if h[i].p.Priority != h[j].p.Priority {
		return h[i].p.Priority < h[j].p.Priority
	}
	return h[i].seq < h[j].seq
}

func (h promptHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *promptHeap) Push(x any) { *h = append(*h, x.(queuedPrompt)) }

func (h *promptHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
