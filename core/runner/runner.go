// Package runner executes research and analysis jobs in the background,
// streaming progress and results to the owning client.
package runner

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/RobertSloan22/AiAutoshopSystem-Backend/agent"
	"github.com/RobertSloan22/AiAutoshopSystem-Backend/core/jobs"
	"github.com/RobertSloan22/AiAutoshopSystem-Backend/core/models"
	"github.com/RobertSloan22/AiAutoshopSystem-Backend/core/monitoring"
	"github.com/RobertSloan22/AiAutoshopSystem-Backend/core/watch"
)

// Agent names expected on the generation service.
const (
	researchAgentName       = "Researcher"
	analysisAgentName       = "data_analysis"
	backupResearchAgentName = "SimpleResearcher"
	backupAnalysisAgentName = "Researcher"
)

// Notifier delivers one event to a client's current connection. Send is
// best effort: it reports delivery so callers can track streaming health,
// and it must never block job execution on a slow client.
type Notifier interface {
	Send(clientID string, event map[string]interface{}) bool
}

// Generator is the slice of the agent service the runner invokes.
// *agent.Client satisfies it.
type Generator interface {
	StreamEvents(ctx context.Context, agentName, prompt string, onChunk agent.ChunkFunc) (agent.Response, error)
	StreamChunked(ctx context.Context, agentName, prompt string, onChunk agent.ChunkFunc) (agent.Response, error)
	StreamLines(ctx context.Context, agentName, prompt string, onChunk agent.ChunkFunc) (agent.Response, error)
	Complete(ctx context.Context, agentName, prompt string) (agent.Response, error)
}

// Runner owns the background execution of research and analysis jobs.
// Each job gets its own goroutine plus a progress ticker, registered with
// the task set so a disconnecting client tears down exactly its own work.
type Runner struct {
	registry *jobs.Registry
	research *jobs.Results
	analyses *jobs.Results
	tasks    *jobs.TaskSet
	notifier Notifier
	gen      Generator

	backup        Generator
	outputRoot    string
	metrics       *monitoring.Collector
	watchInterval time.Duration
}

// New creates a runner. The backup generator defaults to the primary and
// the output root to the working directory; override with the setters.
func New(registry *jobs.Registry, research, analyses *jobs.Results, tasks *jobs.TaskSet, notifier Notifier, gen Generator) *Runner {
	return &Runner{
		registry:      registry,
		research:      research,
		analyses:      analyses,
		tasks:         tasks,
		notifier:      notifier,
		gen:           gen,
		backup:        gen,
		outputRoot:    ".",
		watchInterval: watch.DefaultInterval,
	}
}

// SetOutputRoot sets the directory reports and job output dirs live under.
func (r *Runner) SetOutputRoot(dir string) {
	if dir != "" {
		r.outputRoot = dir
	}
}

// SetBackup sets the generator used by the alternate-agent fallback rung.
func (r *Runner) SetBackup(gen Generator) {
	if gen != nil {
		r.backup = gen
	}
}

// SetMetrics attaches the metrics collector.
func (r *Runner) SetMetrics(m *monitoring.Collector) {
	r.metrics = m
}

// SetWatchInterval overrides the visualization poll cadence.
func (r *Runner) SetWatchInterval(d time.Duration) {
	if d > 0 {
		r.watchInterval = d
	}
}

func (r *Runner) notify(clientID string, event map[string]interface{}) bool {
	if r.notifier == nil {
		return false
	}
	return r.notifier.Send(clientID, event)
}

// statusEvent builds the common job status event shape.
func statusEvent(eventType, jobID, status, message string) map[string]interface{} {
	return map[string]interface{}{
		"type":    eventType,
		"job_id":  jobID,
		"status":  status,
		"message": message,
	}
}

func unixSeconds() float64 {
	return float64(time.Now().UnixMilli()) / 1000.0
}

// ladder assembles the standard six-rung fallback order: three streaming
// conventions, a plain completion, a rephrased prompt, and finally the
// backup agent.
func (r *Runner) ladder(agentName, backupName string, reformat func(string) string) *agent.Ladder {
	return agent.NewLadder(
		agent.Strategy{
			Name: "event stream",
			Invoke: func(ctx context.Context, prompt string, onChunk agent.ChunkFunc) (agent.Response, error) {
				return r.gen.StreamEvents(ctx, agentName, prompt, onChunk)
			},
		},
		agent.Strategy{
			Name: "chunked stream",
			Invoke: func(ctx context.Context, prompt string, onChunk agent.ChunkFunc) (agent.Response, error) {
				return r.gen.StreamChunked(ctx, agentName, prompt, onChunk)
			},
		},
		agent.Strategy{
			Name: "line stream",
			Invoke: func(ctx context.Context, prompt string, onChunk agent.ChunkFunc) (agent.Response, error) {
				return r.gen.StreamLines(ctx, agentName, prompt, onChunk)
			},
		},
		agent.Strategy{
			Name: "completion",
			Invoke: func(ctx context.Context, prompt string, onChunk agent.ChunkFunc) (agent.Response, error) {
				return r.gen.Complete(ctx, agentName, prompt)
			},
		},
		agent.Strategy{
			Name: "rephrased prompt",
			Invoke: func(ctx context.Context, prompt string, onChunk agent.ChunkFunc) (agent.Response, error) {
				return r.gen.Complete(ctx, agentName, reformat(prompt))
			},
		},
		agent.Strategy{
			Name: "backup agent " + backupName,
			Invoke: func(ctx context.Context, prompt string, onChunk agent.ChunkFunc) (agent.Response, error) {
				return r.backup.Complete(ctx, backupName, prompt)
			},
		},
	)
}

// streamChunk forwards one generation fragment to the client and flips the
// job's streaming flag on first successful delivery.
func (r *Runner) streamChunk(clientID, jobID, eventType, chunk string, streamed *bool) {
	ok := r.notify(clientID, map[string]interface{}{
		"type":      eventType,
		"job_id":    jobID,
		"content":   chunk,
		"timestamp": unixSeconds(),
	})
	if ok && !*streamed {
		*streamed = true
		r.registry.MarkStreaming(jobID)
	}
}

// tickProgress advances a job's progress on a fixed cadence, mirroring
// every write to the client, until the ceiling is hit or the job leaves
// Processing. The registry re-checks status under its lock on every write,
// so a tick can never land after a terminal transition.
func (r *Runner) tickProgress(ctx context.Context, jobID, clientID, eventType string, start, ceiling, step int, interval time.Duration, message func(progress int) string) {
	current := start
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for current < ceiling {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		current += step
		if current > ceiling {
			current = ceiling
		}
		msg := message(current)
		if !r.registry.SetProgress(jobID, current, msg) {
			return
		}
		event := statusEvent(eventType, jobID, "processing", msg)
		event["progress"] = current
		r.notify(clientID, event)
	}
}

// milestone writes a fixed progress point and mirrors it to the client.
func (r *Runner) milestone(jobID, clientID, eventType string, progress int, message string) {
	if !r.registry.SetProgress(jobID, progress, message) {
		return
	}
	event := statusEvent(eventType, jobID, "processing", message)
	event["progress"] = progress
	r.notify(clientID, event)
}

// failureReport renders a ladder exhaustion as a readable document, one
// numbered line per attempted strategy.
func failureReport(task string, lerr *agent.LadderError, advice string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s Failed\n\n", task)
	fmt.Fprintf(&b, "Unfortunately, there was an error running the %s task. The system encountered the following issues:\n\n", strings.ToLower(task))
	for i, attempt := range lerr.Attempts {
		fmt.Fprintf(&b, "%d. %s\n", i+1, attempt)
	}
	fmt.Fprintf(&b, "\n%s\n", advice)
	return b.String()
}

// writeReport persists report content, creating parent directories.
func (r *Runner) writeReport(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0o644)
}

// failJob marks the job Failed and tells the client. The transition is
// skipped if the job already reached a terminal state, so metrics count
// each job exactly once.
func (r *Runner) failJob(jobID, clientID string, kind models.JobKind, eventType, messagePrefix string, err error, started time.Time) {
	if !r.registry.Fail(jobID, err.Error()) {
		return
	}
	log.Printf("%s job %s failed: %v", kind, jobID, err)
	r.metrics.RecordJobFailed(string(kind), time.Since(started).Seconds())

	event := statusEvent(eventType, jobID, "failed", messagePrefix+err.Error())
	event["error"] = err.Error()
	r.notify(clientID, event)
}
