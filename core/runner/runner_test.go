package runner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RobertSloan22/AiAutoshopSystem-Backend/agent"
	"github.com/RobertSloan22/AiAutoshopSystem-Backend/core/jobs"
	"github.com/RobertSloan22/AiAutoshopSystem-Backend/core/models"
)

type fakeGen struct {
	mu         sync.Mutex
	calls      []string
	lastPrompt string

	events   func(ctx context.Context, name, prompt string, onChunk agent.ChunkFunc) (agent.Response, error)
	chunked  func(ctx context.Context, name, prompt string, onChunk agent.ChunkFunc) (agent.Response, error)
	lines    func(ctx context.Context, name, prompt string, onChunk agent.ChunkFunc) (agent.Response, error)
	complete func(ctx context.Context, name, prompt string) (agent.Response, error)
}

func (g *fakeGen) record(call, prompt string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, call)
	g.lastPrompt = prompt
}

func (g *fakeGen) callList() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.calls...)
}

func (g *fakeGen) prompt() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastPrompt
}

func (g *fakeGen) StreamEvents(ctx context.Context, name, prompt string, onChunk agent.ChunkFunc) (agent.Response, error) {
	g.record("events:"+name, prompt)
	if g.events == nil {
		return agent.Response{}, errors.New("event stream not supported")
	}
	return g.events(ctx, name, prompt, onChunk)
}

func (g *fakeGen) StreamChunked(ctx context.Context, name, prompt string, onChunk agent.ChunkFunc) (agent.Response, error) {
	g.record("chunked:"+name, prompt)
	if g.chunked == nil {
		return agent.Response{}, errors.New("chunked stream not supported")
	}
	return g.chunked(ctx, name, prompt, onChunk)
}

func (g *fakeGen) StreamLines(ctx context.Context, name, prompt string, onChunk agent.ChunkFunc) (agent.Response, error) {
	g.record("lines:"+name, prompt)
	if g.lines == nil {
		return agent.Response{}, errors.New("line stream not supported")
	}
	return g.lines(ctx, name, prompt, onChunk)
}

func (g *fakeGen) Complete(ctx context.Context, name, prompt string) (agent.Response, error) {
	g.record("complete:"+name, prompt)
	if g.complete == nil {
		return agent.Response{}, errors.New("completion not supported")
	}
	return g.complete(ctx, name, prompt)
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []map[string]interface{}
}

func (n *fakeNotifier) Send(clientID string, event map[string]interface{}) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return true
}

func (n *fakeNotifier) types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.events))
	for _, ev := range n.events {
		out = append(out, ev["type"].(string))
	}
	return out
}

func (n *fakeNotifier) byType(eventType string) []map[string]interface{} {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []map[string]interface{}
	for _, ev := range n.events {
		if ev["type"] == eventType {
			out = append(out, ev)
		}
	}
	return out
}

// assertOrder checks that want appears as a subsequence of got.
func assertOrder(t *testing.T, got, want []string) {
	t.Helper()
	i := 0
	for _, g := range got {
		if i < len(want) && g == want[i] {
			i++
		}
	}
	require.Equalf(t, len(want), i, "event order mismatch: want subsequence %v in %v", want, got)
}

func newTestRunner(t *testing.T, gen Generator) (*Runner, *jobs.Registry, *jobs.Results, *jobs.Results, *jobs.TaskSet, *fakeNotifier, string) {
	t.Helper()
	registry := jobs.NewRegistry()
	research := jobs.NewResults()
	analyses := jobs.NewResults()
	tasks := jobs.NewTaskSet()
	notifier := &fakeNotifier{}
	root := t.TempDir()

	r := New(registry, research, analyses, tasks, notifier, gen)
	r.SetOutputRoot(root)
	return r, registry, research, analyses, tasks, notifier, root
}

func waitTerminal(t *testing.T, registry *jobs.Registry, jobID string) models.Job {
	t.Helper()
	var job models.Job
	require.Eventually(t, func() bool {
		j, ok := registry.Get(jobID)
		if !ok {
			return false
		}
		job = j
		return j.Status.Terminal()
	}, 5*time.Second, 10*time.Millisecond)
	return job
}

func TestResearchStreamsAndCompletes(t *testing.T) {
	gen := &fakeGen{
		events: func(ctx context.Context, name, prompt string, onChunk agent.ChunkFunc) (agent.Response, error) {
			onChunk("Hello ")
			onChunk("world")
			return agent.TextResponse("Hello world"), nil
		},
	}
	r, registry, research, _, tasks, notifier, root := newTestRunner(t, gen)

	jobID := r.StartResearch("client-1", "what is a MAP sensor", "")
	job := waitTerminal(t, registry, jobID)

	assert.Equal(t, models.JobStatusCompleted, job.Status)
	assert.Equal(t, 100, job.Progress)
	assert.True(t, job.StreamingEnabled)
	assert.True(t, strings.HasPrefix(job.OutputFile, "research_report_"))

	content, err := os.ReadFile(filepath.Join(root, job.OutputFile))
	require.NoError(t, err)
	assert.Equal(t, "Hello world", string(content))

	rec, ok := research.Get(jobID)
	require.True(t, ok)
	assert.Equal(t, "Hello world", rec.Content)
	assert.Equal(t, "what is a MAP sensor", rec.Prompt)
	assert.Equal(t, "client-1", rec.ClientID)

	assertOrder(t, notifier.types(), []string{
		"research_status", // started
		"research_status", // processing 40
		"stream",
		"stream",
		"research_status", // processing 70
		"research_status", // processing 80
		"research_status", // completed
		"research_result",
	})

	results := notifier.byType("research_result")
	require.Len(t, results, 1)
	assert.Equal(t, "Hello world", results[0]["content"])
	assert.Equal(t, jobID, results[0]["job_id"])

	statuses := notifier.byType("research_status")
	final := statuses[len(statuses)-1]
	assert.Equal(t, "completed", final["status"])
	assert.Equal(t, 100, final["progress"])
	assert.Equal(t, job.OutputFile, final["output_file"])

	assert.Equal(t, []string{"events:Researcher"}, gen.callList())
	assert.Eventually(t, func() bool { return tasks.Count("client-1") == 0 },
		time.Second, 10*time.Millisecond)
}

func TestResearchFallsBackToCompletion(t *testing.T) {
	gen := &fakeGen{
		complete: func(ctx context.Context, name, prompt string) (agent.Response, error) {
			return agent.Decode([]byte(`{"response": "final answer"}`)), nil
		},
	}
	r, registry, research, _, _, _, _ := newTestRunner(t, gen)

	jobID := r.StartResearch("client-1", "fallback prompt", "report.md")
	job := waitTerminal(t, registry, jobID)

	assert.Equal(t, models.JobStatusCompleted, job.Status)
	assert.False(t, job.StreamingEnabled)
	assert.Equal(t, "report.md", job.OutputFile)

	rec, ok := research.Get(jobID)
	require.True(t, ok)
	assert.Equal(t, "final answer", rec.Content)

	assert.Equal(t, []string{
		"events:Researcher",
		"chunked:Researcher",
		"lines:Researcher",
		"complete:Researcher",
	}, gen.callList())
}

func TestResearchFailsAfterLadderExhaustion(t *testing.T) {
	gen := &fakeGen{}
	r, registry, research, _, _, notifier, root := newTestRunner(t, gen)

	jobID := r.StartResearch("client-1", "doomed prompt", "doomed.md")
	job := waitTerminal(t, registry, jobID)

	assert.Equal(t, models.JobStatusFailed, job.Status)
	assert.Contains(t, job.Error, "all generation strategies failed")
	assert.Equal(t, 0, research.Len())

	// Every rung was attempted, backup agent last.
	assert.Equal(t, []string{
		"events:Researcher",
		"chunked:Researcher",
		"lines:Researcher",
		"complete:Researcher",
		"complete:Researcher",
		"complete:SimpleResearcher",
	}, gen.callList())

	report, err := os.ReadFile(filepath.Join(root, "doomed.md"))
	require.NoError(t, err)
	assert.Contains(t, string(report), "# Research Failed")
	assert.Contains(t, string(report), "backup agent SimpleResearcher")

	statuses := notifier.byType("research_status")
	final := statuses[len(statuses)-1]
	assert.Equal(t, "failed", final["status"])
	assert.Contains(t, final["error"].(string), "all generation strategies failed")
}

func TestAnalysisCompletesAndStoresRecord(t *testing.T) {
	gen := &fakeGen{
		lines: func(ctx context.Context, name, prompt string, onChunk agent.ChunkFunc) (agent.Response, error) {
			onChunk("## Findings\n")
			onChunk("RPM looks healthy.")
			return agent.TextResponse("## Findings\nRPM looks healthy."), nil
		},
	}
	r, registry, _, analyses, _, notifier, root := newTestRunner(t, gen)

	jobID := r.StartAnalysis("client-2", "file-1", "/tmp/data/file-1", "exploratory",
		map[string]interface{}{"focus": "rpm"})
	job := waitTerminal(t, registry, jobID)

	require.Equal(t, models.JobStatusCompleted, job.Status)
	assert.Equal(t, "exploratory", job.AnalysisType)
	assert.Equal(t, filepath.Join(root, jobID), job.OutputDir)

	prompt := gen.prompt()
	assert.Contains(t, prompt, "/tmp/data/file-1")
	assert.Contains(t, prompt, "Focus on exploratory data analysis (EDA):")
	assert.Contains(t, prompt, "- focus: rpm")
	assert.Contains(t, prompt, job.OutputDir)

	reportFile := filepath.Join(job.OutputDir, "analysis_report.md")
	content, err := os.ReadFile(reportFile)
	require.NoError(t, err)
	assert.Equal(t, "## Findings\nRPM looks healthy.", string(content))

	rec, ok := analyses.Get(jobID)
	require.True(t, ok)
	assert.Equal(t, reportFile, rec.ReportFile)
	assert.Equal(t, job.OutputDir, rec.OutputDir)
	assert.Equal(t, "/tmp/data/file-1", rec.FilePath)

	assertOrder(t, notifier.types(), []string{
		"analysis_status", // started
		"analysis_status", // processing 20
		"analysis_stream",
		"analysis_status", // completed
		"analysis_result",
	})

	results := notifier.byType("analysis_result")
	require.Len(t, results, 1)
	assert.Equal(t, reportFile, results[0]["report_file"])
}

func TestAnalysisPushesVisualizations(t *testing.T) {
	release := make(chan struct{})
	gen := &fakeGen{
		complete: func(ctx context.Context, name, prompt string) (agent.Response, error) {
			<-release
			return agent.TextResponse("report body"), nil
		},
	}
	r, registry, _, _, _, notifier, root := newTestRunner(t, gen)
	r.SetWatchInterval(5 * time.Millisecond)

	jobID := r.StartAnalysis("client-2", "file-2", "/tmp/data/file-2", "general", nil)
	vizDir := filepath.Join(root, jobID)

	require.Eventually(t, func() bool {
		_, err := os.Stat(vizDir)
		return err == nil
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(vizDir, "rpm_trend.png"), []byte("png-bytes"), 0o644))

	require.Eventually(t, func() bool {
		return len(notifier.byType("visualization")) == 1
	}, 2*time.Second, 5*time.Millisecond)

	viz := notifier.byType("visualization")[0]
	assert.Equal(t, "rpm_trend.png", viz["filename"])
	assert.Equal(t, jobID, viz["job_id"])
	assert.NotEmpty(t, viz["image_data"])
	assert.Equal(t, "Visualization: rpm_trend.png", viz["description"])

	close(release)
	job := waitTerminal(t, registry, jobID)
	require.Equal(t, models.JobStatusCompleted, job.Status)

	results := notifier.byType("analysis_result")
	require.Len(t, results, 1)
	vizList, ok := results[0]["visualizations"].([]map[string]interface{})
	require.True(t, ok)
	require.Len(t, vizList, 1)
	assert.Equal(t, "rpm_trend.png", vizList[0]["filename"])
}

func TestCancellationFailsInFlightJob(t *testing.T) {
	started := make(chan struct{})
	var once sync.Once
	gen := &fakeGen{
		complete: func(ctx context.Context, name, prompt string) (agent.Response, error) {
			once.Do(func() { close(started) })
			<-ctx.Done()
			return agent.Response{}, ctx.Err()
		},
	}
	r, registry, _, _, tasks, _, _ := newTestRunner(t, gen)

	jobID := r.StartResearch("client-3", "long running prompt", "cancelled.md")

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("generation never started")
	}
	tasks.CancelAll("client-3")

	job := waitTerminal(t, registry, jobID)
	assert.Equal(t, models.JobStatusFailed, job.Status)
	assert.Contains(t, job.Error, "context canceled")
}
