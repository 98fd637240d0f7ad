package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/roach88/labstat/internal/model"
)

// DefaultDebounce is how long an input must stay quiet before its plans rerun.
const DefaultDebounce = 300 * time.Millisecond

// Handler receives the outcome of every execution Watch performs.
type Handler func(ev Event, res *Result, err error)

// Watch executes every plan once, then re-executes plans whenever their
// input file changes, until ctx is cancelled.
//
// Directories are watched rather than files: spreadsheet programs save by
// writing a temp file and renaming it over the original, which drops a
// watch placed on the file itself.
//
// Executions happen on the calling goroutine, one at a time, in event order.
// Failures are passed to h and never stop the loop.
func (e *Engine) Watch(ctx context.Context, plans []*model.Plan, h Handler) error {
	if len(plans) == 0 {
		return fmt.Errorf("watch: no plans")
	}

	byInput := make(map[string][]*model.Plan)
	dirs := make(map[string]bool)
	for _, p := range plans {
		abs, err := filepath.Abs(Resolve(p.Dir, p.Input))
		if err != nil {
			return fmt.Errorf("watch %s: %w", p.Name, err)
		}
		byInput[abs] = append(byInput[abs], p)
		dirs[filepath.Dir(abs)] = true
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer w.Close()
	for dir := range dirs {
		if err := w.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
		e.logger.Debug("watching directory", "dir", dir)
	}

	q := newPlanQueue()
	defer q.Close()
	for _, p := range plans {
		q.Push(Event{Plan: p, Path: Resolve(p.Dir, p.Input), Reason: "initial"})
	}

	d := newDebouncer(e.debounce)
	defer d.Stop()

	e.logger.Info("watch started", "plans", len(plans), "inputs", len(byInput))
	for {
		select {
		case <-ctx.Done():
			e.logger.Info("watch stopping: context cancelled")
			return nil

		case fe, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !fe.Has(fsnotify.Write) && !fe.Has(fsnotify.Create) && !fe.Has(fsnotify.Rename) {
				continue
			}
			path := filepath.Clean(fe.Name)
			affected, watched := byInput[path]
			if !watched {
				continue
			}
			reason := fe.Op.String()
			e.logger.Debug("input changed", "path", path, "op", reason)
			d.Trigger(path, func() {
				for _, p := range affected {
					q.Push(Event{Plan: p, Path: path, Reason: reason})
				}
			})

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			e.logger.Error("watcher error", "error", err)

		case <-q.Ready():
			for {
				ev, ok := q.Pop()
				if !ok {
					break
				}
				if ctx.Err() != nil {
					return nil
				}
				res, err := e.Execute(ctx, ev.Plan)
				if err != nil {
					e.logger.Error("plan failed", "plan", ev.Plan.Name, "reason", ev.Reason, "error", err)
				}
				if h != nil {
					h(ev, res, err)
				}
			}
		}
	}
}

// debouncer runs a callback once a key has seen no triggers for a delay.
type debouncer struct {
	mu     sync.Mutex
	delay  time.Duration
	timers map[string]*time.Timer
}

func newDebouncer(delay time.Duration) *debouncer {
	return &debouncer{delay: delay, timers: make(map[string]*time.Timer)}
}

// Trigger (re)starts the timer for key; fn runs on the timer's goroutine.
func (d *debouncer) Trigger(key string, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t, ok := d.timers[key]; ok {
		t.Stop()
	}
	d.timers[key] = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		delete(d.timers, key)
		d.mu.Unlock()
		fn()
	})
}

// Stop cancels every pending callback.
func (d *debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for key, t := range d.timers {
		t.Stop()
		delete(d.timers, key)
	}
}
