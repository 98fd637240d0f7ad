package engine

import (
	"sync"

	"github.com/roach88/labstat/internal/model"
)

// Event asks the watch loop to re-execute a plan.
type Event struct {
	Plan   *model.Plan
	Path   string // file whose change triggered the event
	Reason string // fsnotify operation, or "initial"
}

// planQueue holds the plans waiting to execute, at most once each.
//
// Debounce timers push from their own goroutines while the watch loop pops,
// so all executions happen on the loop goroutine. When two inputs of one
// plan change before it runs, the plan keeps its place in line and the
// newer event replaces the older: executing it twice would record the same
// analysis twice.
type planQueue struct {
	mu      sync.Mutex
	order   []string         // plan names, oldest first
	pending map[string]Event // by plan name
	closed  bool
	ready   chan struct{} // buffered 1; a pending send means "look again"
}

func newPlanQueue() *planQueue {
	return &planQueue{
		pending: make(map[string]Event),
		ready:   make(chan struct{}, 1),
	}
}

// Push queues e, or replaces the event already pending for its plan.
// Returns false once the queue is closed.
func (q *planQueue) Push(e Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	name := e.Plan.Name
	if _, ok := q.pending[name]; !ok {
		q.order = append(q.order, name)
	}
	q.pending[name] = e

	select {
	case q.ready <- struct{}{}:
	default:
	}
	return true
}

// Pop removes the oldest pending event.
func (q *planQueue) Pop() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.order) == 0 {
		return Event{}, false
	}
	name := q.order[0]
	q.order = q.order[1:]
	e := q.pending[name]
	delete(q.pending, name)
	return e, true
}

// Ready is signalled after a Push and closed by Close. Drain with Pop.
func (q *planQueue) Ready() <-chan struct{} {
	return q.ready
}

// Len returns the number of plans waiting.
func (q *planQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.order)
}

// Close stops further pushes. Safe to call more than once.
func (q *planQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.ready)
}
