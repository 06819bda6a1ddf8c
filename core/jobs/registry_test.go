package jobs

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RobertSloan22/AiAutoshopSystem-Backend/core/models"
)

func newTestJob(id, clientID string) *models.Job {
	return &models.Job{
		ID:        id,
		ClientID:  clientID,
		Kind:      models.JobKindResearch,
		Status:    models.JobStatusPending,
		StartTime: time.Now(),
	}
}

type captureMirror struct {
	ch chan models.Job
}

func (m *captureMirror) MirrorTerminal(job models.Job) {
	m.ch <- job
}

func TestRegistryLifecycle(t *testing.T) {
	r := NewRegistry()
	r.Put(newTestJob("job_1", "client_a"))

	require.True(t, r.Start("job_1"))
	assert.False(t, r.Start("job_1"), "start is only valid from pending")

	ok := r.SetProgress("job_1", 40, "Initializing research...")
	require.True(t, ok)

	job, found := r.Get("job_1")
	require.True(t, found)
	assert.Equal(t, models.JobStatusProcessing, job.Status)
	assert.Equal(t, 40, job.Progress)
	assert.Equal(t, "Initializing research...", job.Message)

	require.True(t, r.Complete("job_1", "report.md"))
	job, _ = r.Get("job_1")
	assert.Equal(t, models.JobStatusCompleted, job.Status)
	assert.Equal(t, 100, job.Progress)
	assert.Equal(t, "report.md", job.OutputFile)
	require.NotNil(t, job.EndTime)
}

func TestRegistryTerminalStateIsImmutable(t *testing.T) {
	r := NewRegistry()
	r.Put(newTestJob("job_1", "client_a"))
	r.Start("job_1")
	require.True(t, r.Complete("job_1", ""))

	assert.False(t, r.SetProgress("job_1", 55, "late ticker write"))
	_, ticked := r.TickProgress("job_1", 5, 90, "late ticker write")
	assert.False(t, ticked)
	assert.False(t, r.Fail("job_1", "late failure"))
	assert.False(t, r.Complete("job_1", "other.md"))

	job, _ := r.Get("job_1")
	assert.Equal(t, models.JobStatusCompleted, job.Status)
	assert.Equal(t, 100, job.Progress)
	assert.Empty(t, job.Error)
}

func TestRegistryTickerRacesCompletion(t *testing.T) {
	r := NewRegistry()
	r.Put(newTestJob("job_1", "client_a"))
	r.Start("job_1")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				r.TickProgress("job_1", 5, 90, "Performing statistical analysis...")
			}
		}()
	}
	r.Complete("job_1", "")
	wg.Wait()

	job, _ := r.Get("job_1")
	assert.Equal(t, models.JobStatusCompleted, job.Status)
	assert.Equal(t, 100, job.Progress)
}

func TestRegistryTickProgressIsBounded(t *testing.T) {
	r := NewRegistry()
	r.Put(newTestJob("job_1", "client_a"))
	r.Start("job_1")
	r.SetProgress("job_1", 88, "")

	progress, ok := r.TickProgress("job_1", 5, 90, "Generating visualizations...")
	require.True(t, ok)
	assert.Equal(t, 90, progress)

	progress, ok = r.TickProgress("job_1", 5, 90, "Generating visualizations...")
	require.True(t, ok)
	assert.Equal(t, 90, progress, "ticker holds at its bound")
}

func TestRegistryEvictsOldestCompleted(t *testing.T) {
	r := NewRegistry()
	r.SetRetention(3)

	ids := []string{"job_1", "job_2", "job_3", "job_4", "job_5"}
	for _, id := range ids {
		r.Put(newTestJob(id, "client_a"))
		r.Start(id)
		require.True(t, r.Complete(id, ""))
		time.Sleep(2 * time.Millisecond)
	}

	assert.Len(t, r.Completed(), 3)
	for _, id := range []string{"job_1", "job_2"} {
		_, found := r.Get(id)
		assert.False(t, found, "oldest completed job %s should be evicted", id)
	}
	for _, id := range []string{"job_3", "job_4", "job_5"} {
		_, found := r.Get(id)
		assert.True(t, found)
	}
}

func TestRegistryEvictionSkipsActiveJobs(t *testing.T) {
	r := NewRegistry()
	r.SetRetention(1)

	r.Put(newTestJob("job_active", "client_a"))
	r.Start("job_active")

	r.Put(newTestJob("job_1", "client_a"))
	r.Start("job_1")
	r.Complete("job_1", "")
	time.Sleep(2 * time.Millisecond)

	r.Put(newTestJob("job_2", "client_a"))
	r.Start("job_2")
	r.Complete("job_2", "")

	_, found := r.Get("job_active")
	assert.True(t, found, "active jobs are never evicted")
	_, found = r.Get("job_1")
	assert.False(t, found)
	_, found = r.Get("job_2")
	assert.True(t, found)
}

func TestRegistryCompletedForClient(t *testing.T) {
	r := NewRegistry()
	r.Put(newTestJob("job_1", "client_a"))
	r.Start("job_1")
	r.Complete("job_1", "")

	r.Put(newTestJob("job_2", "client_b"))
	r.Start("job_2")
	r.Complete("job_2", "")

	r.Put(newTestJob("job_3", "client_a"))

	completed := r.CompletedForClient("client_a")
	assert.Equal(t, []string{"job_1"}, completed)
}

func TestRegistryStats(t *testing.T) {
	r := NewRegistry()
	r.Put(newTestJob("job_1", "client_a"))
	r.Put(newTestJob("job_2", "client_a"))
	r.Start("job_2")
	r.Put(newTestJob("job_3", "client_a"))
	r.Start("job_3")
	r.Complete("job_3", "")
	r.Put(newTestJob("job_4", "client_a"))
	r.Start("job_4")
	r.Fail("job_4", "agent unreachable")

	stats := r.Stats()
	assert.Equal(t, 1, stats["pending"])
	assert.Equal(t, 1, stats["processing"])
	assert.Equal(t, 1, stats["completed"])
	assert.Equal(t, 1, stats["failed"])
}

func TestRegistryStaleProcessing(t *testing.T) {
	r := NewRegistry()
	old := newTestJob("job_old", "client_a")
	old.StartTime = time.Now().Add(-2 * time.Hour)
	old.Status = models.JobStatusProcessing
	r.Put(old)

	fresh := newTestJob("job_fresh", "client_a")
	fresh.Status = models.JobStatusProcessing
	r.Put(fresh)

	stale := r.StaleProcessing(time.Hour)
	require.Len(t, stale, 1)
	assert.Equal(t, "job_old", stale[0].ID)
}

func TestRegistryMirrorsTerminalTransitions(t *testing.T) {
	mirror := &captureMirror{ch: make(chan models.Job, 2)}
	r := NewRegistry()
	r.SetMirror(mirror)

	r.Put(newTestJob("job_1", "client_a"))
	r.Start("job_1")
	r.SetProgress("job_1", 40, "no mirror for progress writes")
	r.Complete("job_1", "")

	select {
	case job := <-mirror.ch:
		assert.Equal(t, "job_1", job.ID)
		assert.Equal(t, models.JobStatusCompleted, job.Status)
	case <-time.After(time.Second):
		t.Fatal("mirror was not notified of completion")
	}
	assert.Empty(t, mirror.ch)
}

func TestResultsEvictsOldest(t *testing.T) {
	s := NewResults()
	s.SetRetention(2)

	base := time.Now()
	for i, id := range []string{"job_1", "job_2", "job_3"} {
		s.Put(&models.CompletedJob{
			JobID:          id,
			ClientID:       "client_a",
			CompletionTime: base.Add(time.Duration(i) * time.Second),
		})
	}

	assert.Equal(t, 2, s.Len())
	_, found := s.Get("job_1")
	assert.False(t, found)
	_, found = s.Get("job_3")
	assert.True(t, found)
}

func TestResultsForClient(t *testing.T) {
	s := NewResults()
	s.Put(&models.CompletedJob{JobID: "job_1", ClientID: "client_a", CompletionTime: time.Now()})
	s.Put(&models.CompletedJob{JobID: "job_2", ClientID: "client_b", CompletionTime: time.Now()})

	recs := s.ForClient("client_a")
	require.Len(t, recs, 1)
	assert.Equal(t, "job_1", recs[0].JobID)
}

func TestTaskSetCancelAll(t *testing.T) {
	ts := NewTaskSet()

	ctx1, cancel1 := context.WithCancel(context.Background())
	ctx2, cancel2 := context.WithCancel(context.Background())
	ctxOther, cancelOther := context.WithCancel(context.Background())
	defer cancelOther()

	ts.Add("client_a", "job_1", cancel1)
	ts.Add("client_a", "job_2", cancel2)
	ts.Add("client_b", "job_3", cancelOther)
	assert.Equal(t, 2, ts.Count("client_a"))

	ts.CancelAll("client_a")

	assert.Error(t, ctx1.Err())
	assert.Error(t, ctx2.Err())
	assert.NoError(t, ctxOther.Err(), "other clients' tasks keep running")
	assert.Equal(t, 0, ts.Count("client_a"))
	assert.Equal(t, 1, ts.Count("client_b"))
}

func TestTaskSetRemoveWithoutCancel(t *testing.T) {
	ts := NewTaskSet()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ts.Add("client_a", "job_1", cancel)
	ts.Remove("client_a", "job_1")

	assert.NoError(t, ctx.Err())
	assert.Equal(t, 0, ts.Count("client_a"))
}

func TestJobIDFormats(t *testing.T) {
	researchPattern := regexp.MustCompile(`^job_\d+_[0-9a-f]{8}$`)
	analysisPattern := regexp.MustCompile(`^analysis_\d+_[0-9a-f]{8}$`)

	assert.Regexp(t, researchPattern, NewResearchID())
	assert.Regexp(t, analysisPattern, NewAnalysisID())
	assert.NotEqual(t, NewResearchID(), NewResearchID())
}
