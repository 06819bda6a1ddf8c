package scheduler

import (
	"container/heap"
	"sync"

	"github.com/RobertSloan22/AiAutoshopSystem-Backend/core/models"
)

// BuildQueue is a priority queue of pack builds, oldest request first
type BuildQueue struct {
	jobs []*QueuedBuild
	mu   sync.Mutex
}

// QueuedBuild wraps a pack job with its heap position
type QueuedBuild struct {
	Job   *models.PackJob
	Index int // For heap.Interface
}

// NewBuildQueue creates a new build queue
func NewBuildQueue() *BuildQueue {
	bq := &BuildQueue{
		jobs: make([]*QueuedBuild, 0),
	}
	heap.Init(bq)
	return bq
}

// Enqueue adds a pack job to the queue
func (bq *BuildQueue) Enqueue(job *models.PackJob) {
	bq.mu.Lock()
	defer bq.mu.Unlock()

	heap.Push(bq, &QueuedBuild{Job: job})
}

// PopBuild removes and returns the oldest queued pack job
func (bq *BuildQueue) PopBuild() *models.PackJob {
	bq.mu.Lock()
	defer bq.mu.Unlock()

	if bq.Len() == 0 {
		return nil
	}

	item := heap.Pop(bq).(*QueuedBuild)
	return item.Job
}

// Len returns the number of queued builds
func (bq *BuildQueue) Len() int {
	return len(bq.jobs)
}

// Less orders builds by creation time, oldest first
func (bq *BuildQueue) Less(i, j int) bool {
	return bq.jobs[i].Job.CreatedAt.Before(bq.jobs[j].Job.CreatedAt)
}

// Swap swaps two queued builds
func (bq *BuildQueue) Swap(i, j int) {
	bq.jobs[i], bq.jobs[j] = bq.jobs[j], bq.jobs[i]
	bq.jobs[i].Index = i
	bq.jobs[j].Index = j
}

// Push implements heap.Interface
func (bq *BuildQueue) Push(x interface{}) {
	n := len(bq.jobs)
	item := x.(*QueuedBuild)
	item.Index = n
	bq.jobs = append(bq.jobs, item)
}

// Pop implements heap.Interface
func (bq *BuildQueue) Pop() interface{} {
	old := bq.jobs
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.Index = -1
	bq.jobs = old[0 : n-1]
	return item
}
