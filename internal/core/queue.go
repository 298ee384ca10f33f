package core

import "marketmirror/internal/event"

type queueMode int

const (
	// queueSteady hands events straight to the dispatcher.
	queueSteady queueMode = iota
	// queueBuffering parks events until the state mutation that opened
	// the buffer completes, then they drain in arrival order.
	queueBuffering
)

// actionQueue decides whether incoming feed events apply immediately or
// wait behind an in-flight bulk load. Calls are serialized by the engine
// mutex; the queue itself holds no lock.
type actionQueue struct {
	mode    queueMode
	pending []event.Event
}

// Begin switches the queue into buffering mode. It returns false when the
// queue was already buffering, in which case the caller must not End.
func (q *actionQueue) Begin() bool {
	if q.mode == queueBuffering {
		return false
	}
	q.mode = queueBuffering
	return true
}

// End returns the queue to steady mode. Draining is the caller's job so
// that each drained event runs through the full dispatch path.
func (q *actionQueue) End() {
	q.mode = queueSteady
}

func (q *actionQueue) Buffering() bool {
	return q.mode == queueBuffering
}

func (q *actionQueue) Push(evt event.Event) {
	q.pending = append(q.pending, evt)
}

// Pop removes and returns the oldest buffered event.
func (q *actionQueue) Pop() (event.Event, bool) {
	if len(q.pending) == 0 {
		return nil, false
	}
	evt := q.pending[0]
	q.pending = q.pending[1:]
	return evt, true
}

func (q *actionQueue) Depth() int {
	return len(q.pending)
}
