package jobs

import (
	"context"
	"sync"
)

// TaskSet tracks cancellable background tasks per client so that a closed
// connection can tear down exactly the goroutines it owns. Job state lives
// in the Registry and is not touched by cancellation.
type TaskSet struct {
	mu    sync.Mutex
	tasks map[string]map[string]context.CancelFunc
}

// NewTaskSet creates an empty task registry.
func NewTaskSet() *TaskSet {
	return &TaskSet{tasks: make(map[string]map[string]context.CancelFunc)}
}

// Add records a cancel handle for a task owned by clientID.
func (ts *TaskSet) Add(clientID, taskID string, cancel context.CancelFunc) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	owned, ok := ts.tasks[clientID]
	if !ok {
		owned = make(map[string]context.CancelFunc)
		ts.tasks[clientID] = owned
	}
	owned[taskID] = cancel
}

// Remove drops a finished task without cancelling it.
func (ts *TaskSet) Remove(clientID, taskID string) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	owned, ok := ts.tasks[clientID]
	if !ok {
		return
	}
	delete(owned, taskID)
	if len(owned) == 0 {
		delete(ts.tasks, clientID)
	}
}

// CancelAll cancels and forgets every task owned by clientID.
func (ts *TaskSet) CancelAll(clientID string) {
	ts.mu.Lock()
	owned := ts.tasks[clientID]
	delete(ts.tasks, clientID)
	ts.mu.Unlock()

	for _, cancel := range owned {
		cancel()
	}
}

// Count reports how many tasks clientID currently owns.
func (ts *TaskSet) Count(clientID string) int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return len(ts.tasks[clientID])
}
