package runner

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/RobertSloan22/AiAutoshopSystem-Backend/agent"
	"github.com/RobertSloan22/AiAutoshopSystem-Backend/core/jobs"
	"github.com/RobertSloan22/AiAutoshopSystem-Backend/core/models"
)

// StartResearch registers a research job and launches it in the
// background. The returned job id is immediately queryable; the cancel
// handle is owned by the client's task set.
func (r *Runner) StartResearch(clientID, prompt, outputFile string) string {
	jobID := jobs.NewResearchID()
	if outputFile == "" {
		outputFile = fmt.Sprintf("research_report_%d.md", time.Now().Unix())
	}

	r.registry.Put(&models.Job{
		ID:         jobID,
		ClientID:   clientID,
		Kind:       models.JobKindResearch,
		Status:     models.JobStatusPending,
		Prompt:     prompt,
		OutputFile: outputFile,
		StartTime:  time.Now(),
	})
	r.metrics.RecordJobStarted(string(models.JobKindResearch))

	ctx, cancel := context.WithCancel(context.Background())
	r.tasks.Add(clientID, jobID, cancel)
	go func() {
		defer cancel()
		defer r.tasks.Remove(clientID, jobID)
		r.runResearch(ctx, jobID, clientID, prompt, outputFile)
	}()
	return jobID
}

func (r *Runner) runResearch(ctx context.Context, jobID, clientID, prompt, outputFile string) {
	log.Printf("Starting research job %s for client %s with prompt: %.50s...", jobID, clientID, prompt)
	started := time.Now()

	r.notify(clientID, statusEvent("research_status", jobID, "started", "Research started, analyzing your request..."))
	r.registry.Start(jobID)

	r.milestone(jobID, clientID, "research_status", 40, "Running research query and analyzing information...")

	tickCtx, stopTicker := context.WithCancel(ctx)
	defer stopTicker()
	go r.tickProgress(tickCtx, jobID, clientID, "research_status", 40, 65, 3, 3*time.Second, func(progress int) string {
		if progress < 55 {
			return "Analyzing information and generating insights..."
		}
		return "Compiling research findings..."
	})

	streamed := false
	onChunk := func(chunk string) {
		r.streamChunk(clientID, jobID, "stream", chunk, &streamed)
	}

	ladder := r.ladder(researchAgentName, backupResearchAgentName, rephraseResearch)
	resp, strategy, err := ladder.Run(ctx, prompt, onChunk)
	stopTicker()

	outputPath := outputFile
	if !filepath.IsAbs(outputPath) {
		outputPath = filepath.Join(r.outputRoot, outputFile)
	}

	if err != nil {
		var lerr *agent.LadderError
		if errors.As(err, &lerr) {
			report := failureReport("Research", lerr,
				"Please try again with a more specific research question or contact support.")
			r.streamChunk(clientID, jobID, "stream", report, &streamed)
			if werr := r.writeReport(outputPath, report); werr != nil {
				log.Printf("Failed to persist failure report for job %s: %v", jobID, werr)
			}
		}
		r.failJob(jobID, clientID, models.JobKindResearch, "research_status", "Research failed: ", err, started)
		return
	}
	log.Printf("Research job %s answered via %s", jobID, strategy)

	r.milestone(jobID, clientID, "research_status", 70, "Research data collected, formatting results...")

	content := resp.Extract()
	if strings.TrimSpace(content) == "" {
		content = "# Research Report\n\nNo results were returned from the research agent. Please try another query."
	}

	r.milestone(jobID, clientID, "research_status", 80, "Finalizing research report...")

	if werr := r.writeReport(outputPath, content); werr != nil {
		r.failJob(jobID, clientID, models.JobKindResearch, "research_status", "Research failed: ",
			fmt.Errorf("failed to save research results: %w", werr), started)
		return
	}
	log.Printf("Research results saved to %s", outputPath)

	if !r.registry.Complete(jobID, outputFile) {
		return
	}
	r.metrics.RecordJobCompleted(string(models.JobKindResearch), time.Since(started).Seconds())

	absPath, aerr := filepath.Abs(outputPath)
	if aerr != nil {
		absPath = outputPath
	}
	r.research.Put(&models.CompletedJob{
		JobID:          jobID,
		ClientID:       clientID,
		Kind:           models.JobKindResearch,
		Prompt:         prompt,
		Content:        content,
		OutputFile:     outputFile,
		FilePath:       absPath,
		CompletionTime: time.Now(),
	})

	completed := statusEvent("research_status", jobID, "completed", "Research complete! Results have been prepared.")
	completed["progress"] = 100
	completed["output_file"] = outputFile
	r.notify(clientID, completed)

	r.notify(clientID, map[string]interface{}{
		"type":        "research_result",
		"job_id":      jobID,
		"status":      "completed",
		"output_file": outputFile,
		"content":     content,
		"prompt":      prompt,
	})
}

func rephraseResearch(prompt string) string {
	return fmt.Sprintf("RESEARCH TASK:\n%s\n\nPlease conduct thorough research on this topic and provide a comprehensive report.", prompt)
}
