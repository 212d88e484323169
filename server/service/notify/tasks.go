package notify

import (
	"context"
	"sync"
)

// TaskRegistry tracks the background delivery tasks per request UID so they
// can be cancelled as a group when the request reaches a terminal status.
type TaskRegistry struct {
	mu    sync.Mutex
	tasks map[string]map[*task]struct{}
	wg    sync.WaitGroup
}

type task struct {
	cancel context.CancelFunc
}

// NewTaskRegistry creates an empty registry.
func NewTaskRegistry() *TaskRegistry {
	return &TaskRegistry{tasks: make(map[string]map[*task]struct{})}
}

// Start registers a new task for the request UID and returns its context
// plus a done function the task must call when it finishes.
func (r *TaskRegistry) Start(requestUID string) (context.Context, func()) {
	ctx, cancel := context.WithCancel(context.Background())
	t := &task{cancel: cancel}

	r.mu.Lock()
	if r.tasks[requestUID] == nil {
		r.tasks[requestUID] = make(map[*task]struct{})
	}
	r.tasks[requestUID][t] = struct{}{}
	r.wg.Add(1)
	r.mu.Unlock()

	var once sync.Once
	done := func() {
		once.Do(func() {
			cancel()
			r.mu.Lock()
			if set := r.tasks[requestUID]; set != nil {
				delete(set, t)
				if len(set) == 0 {
					delete(r.tasks, requestUID)
				}
			}
			r.mu.Unlock()
			r.wg.Done()
		})
	}
	return ctx, done
}

// CancelForRequest cancels all running tasks for the request UID. Tasks
// observe cancellation through their context and exit on their own.
func (r *TaskRegistry) CancelForRequest(requestUID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for t := range r.tasks[requestUID] {
		t.cancel()
	}
}

// ActiveCount returns the number of running tasks for the request UID.
func (r *TaskRegistry) ActiveCount(requestUID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks[requestUID])
}

// Wait blocks until every task has finished. Used during shutdown.
func (r *TaskRegistry) Wait() {
	r.wg.Wait()
}
