package cycle

import "container/heap"

// eventHeap is a priority queue of events ordered by (Time, insertion
// order). Insertion order is the tiebreaker so that events scheduled
// for the same cycle are handled deterministically regardless of heap
// internals.
type eventHeap []Event

func (h eventHeap) Len() int { return len(h) }

func (h eventHeap) Less(i, j int) bool {
	if h[i].Time() != h[j].Time() {
		return h[i].Time() < h[j].Time()
	}
	return h[i].seq() < h[j].seq()
}

func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *eventHeap) Push(x interface{}) {
	*h = append(*h, x.(Event))
}

func (h *eventHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// EventQueue is a priority queue of events. The front of the queue is
// always the next event to happen.
type EventQueue struct {
	heap    eventHeap
	nextSeq uint64
}

// NewEventQueue creates an empty EventQueue.
func NewEventQueue() *EventQueue {
	q := &EventQueue{}
	heap.Init(&q.heap)
	return q
}

// Insert adds an event to the queue, stamping it with the next
// insertion sequence number so same-cycle events stay ordered.
func (q *EventQueue) Insert(e Event) {
	if base, ok := e.(*EventBase); ok {
		base.sequence = q.nextSeq
		q.nextSeq++
	}
	heap.Push(&q.heap, e)
}

// Peek returns the next event without removing it, or nil if the
// queue is empty.
func (q *EventQueue) Peek() Event {
	if len(q.heap) == 0 {
		return nil
	}
	return q.heap[0]
}

// Pop removes and returns the next event, or nil if the queue is
// empty.
func (q *EventQueue) Pop() Event {
	if len(q.heap) == 0 {
		return nil
	}
	return heap.Pop(&q.heap).(Event)
}

// Len returns the number of pending events.
func (q *EventQueue) Len() int { return len(q.heap) }
