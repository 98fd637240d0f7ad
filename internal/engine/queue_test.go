package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/labstat/internal/model"
)

func planEvent(name, reason string) Event {
	return Event{Plan: &model.Plan{Name: name}, Reason: reason}
}

func TestPlanQueue_Order(t *testing.T) {
	q := newPlanQueue()
	for _, name := range []string{"fig1a", "fig1b", "fig2"} {
		require.True(t, q.Push(planEvent(name, "initial")))
	}
	assert.Equal(t, 3, q.Len())

	for _, want := range []string{"fig1a", "fig1b", "fig2"} {
		e, ok := q.Pop()
		require.True(t, ok)
		assert.Equal(t, want, e.Plan.Name)
	}
	_, ok := q.Pop()
	assert.False(t, ok, "queue should be empty")
}

func TestPlanQueue_PendingPlanReplaced(t *testing.T) {
	q := newPlanQueue()
	q.Push(planEvent("fig1a", "initial"))
	q.Push(planEvent("fig2", "initial"))
	q.Push(planEvent("fig1a", "WRITE"))
	assert.Equal(t, 2, q.Len(), "fig1a is pending once")

	e, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, "fig1a", e.Plan.Name, "keeps its place in line")
	assert.Equal(t, "WRITE", e.Reason, "newest event wins")

	e, _ = q.Pop()
	assert.Equal(t, "fig2", e.Plan.Name)

	q.Push(planEvent("fig1a", "CREATE"))
	assert.Equal(t, 1, q.Len(), "a popped plan can queue again")
}

func TestPlanQueue_ReadySignals(t *testing.T) {
	q := newPlanQueue()

	go func() {
		time.Sleep(10 * time.Millisecond)
		q.Push(planEvent("fig1a", "WRITE"))
	}()

	select {
	case <-q.Ready():
	case <-time.After(time.Second):
		t.Fatal("Ready did not signal after Push")
	}
	e, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, "WRITE", e.Reason)
}

func TestPlanQueue_SignalsCoalesce(t *testing.T) {
	q := newPlanQueue()
	q.Push(planEvent("a", "initial"))
	q.Push(planEvent("b", "initial"))

	<-q.Ready()
	select {
	case <-q.Ready():
		t.Fatal("second signal should have been coalesced")
	default:
	}
	assert.Equal(t, 2, q.Len(), "both plans stay queued")
}

func TestPlanQueue_Close(t *testing.T) {
	q := newPlanQueue()
	q.Close()
	q.Close()

	assert.False(t, q.Push(planEvent("late", "WRITE")))
	_, open := <-q.Ready()
	assert.False(t, open, "Ready channel should be closed")
}

func TestPlanQueue_ConcurrentPush(t *testing.T) {
	q := newPlanQueue()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			q.Push(planEvent([]string{"fig1", "fig2", "fig3"}[i%3], "WRITE"))
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 3, q.Len())
}
