package runner

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/RobertSloan22/AiAutoshopSystem-Backend/agent"
	"github.com/RobertSloan22/AiAutoshopSystem-Backend/core/jobs"
	"github.com/RobertSloan22/AiAutoshopSystem-Backend/core/models"
	"github.com/RobertSloan22/AiAutoshopSystem-Backend/core/watch"
)

// StartAnalysis registers an analysis job over an uploaded data file and
// launches it in the background. Each job gets its own output directory
// under the output root, watched for visualization artifacts while the
// job runs.
func (r *Runner) StartAnalysis(clientID, fileID, filePath, analysisType string, options map[string]interface{}) string {
	if analysisType == "" {
		analysisType = "general"
	}
	jobID := jobs.NewAnalysisID()
	outputDir := filepath.Join(r.outputRoot, jobID)

	r.registry.Put(&models.Job{
		ID:           jobID,
		ClientID:     clientID,
		Kind:         models.JobKindAnalysis,
		Status:       models.JobStatusPending,
		FileID:       fileID,
		AnalysisType: analysisType,
		Options:      options,
		OutputDir:    outputDir,
		StartTime:    time.Now(),
	})
	r.metrics.RecordJobStarted(string(models.JobKindAnalysis))

	ctx, cancel := context.WithCancel(context.Background())
	r.tasks.Add(clientID, jobID, cancel)
	go func() {
		defer cancel()
		defer r.tasks.Remove(clientID, jobID)
		r.runAnalysis(ctx, jobID, clientID, filePath, analysisType, options, outputDir)
	}()
	return jobID
}

func (r *Runner) runAnalysis(ctx context.Context, jobID, clientID, filePath, analysisType string, options map[string]interface{}, outputDir string) {
	log.Printf("Starting analysis job %s for client %s with file: %s", jobID, clientID, filePath)
	started := time.Now()

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		r.registry.Start(jobID)
		r.failJob(jobID, clientID, models.JobKindAnalysis, "analysis_status", "Analysis failed: ",
			fmt.Errorf("failed to create output directory: %w", err), started)
		return
	}

	r.notify(clientID, statusEvent("analysis_status", jobID, "started", "Analysis started, loading data..."))
	r.registry.Start(jobID)

	tickCtx, stopTicker := context.WithCancel(ctx)
	defer stopTicker()
	go r.tickProgress(tickCtx, jobID, clientID, "analysis_status", 10, 90, 5, 2*time.Second, func(progress int) string {
		switch {
		case progress < 30:
			return "Loading and processing data..."
		case progress < 60:
			return "Performing statistical analysis..."
		default:
			return "Generating visualizations..."
		}
	})

	watcher := watch.NewWithInterval(outputDir, r.watchInterval)
	go watcher.Run(ctx, func() bool {
		job, ok := r.registry.Get(jobID)
		return ok && job.Status == models.JobStatusProcessing
	}, func(path, description string) {
		r.pushVisualization(clientID, jobID, path, description)
	})

	prompt := buildAnalysisPrompt(filePath, outputDir, analysisType, options)

	r.milestone(jobID, clientID, "analysis_status", 20, "Running data analysis...")

	streamed := false
	onChunk := func(chunk string) {
		r.streamChunk(clientID, jobID, "analysis_stream", chunk, &streamed)
	}

	ladder := r.ladder(analysisAgentName, backupAnalysisAgentName, rephraseAnalysis)
	resp, strategy, err := ladder.Run(ctx, prompt, onChunk)
	stopTicker()

	reportFile := filepath.Join(outputDir, "analysis_report.md")

	if err != nil {
		var lerr *agent.LadderError
		if errors.As(err, &lerr) {
			report := failureReport("Analysis", lerr,
				"Please try again with a different file or contact support.")
			r.streamChunk(clientID, jobID, "analysis_stream", report, &streamed)
			if werr := r.writeReport(reportFile, report); werr != nil {
				log.Printf("Failed to persist failure report for job %s: %v", jobID, werr)
			}
		}
		r.failJob(jobID, clientID, models.JobKindAnalysis, "analysis_status", "Analysis failed: ", err, started)
		return
	}
	log.Printf("Analysis job %s answered via %s", jobID, strategy)

	content := resp.Extract()
	if strings.TrimSpace(content) == "" {
		content = "# Analysis Report\n\nNo results were returned from the analysis agent. Please try again with a different file."
	}

	if werr := r.writeReport(reportFile, content); werr != nil {
		r.failJob(jobID, clientID, models.JobKindAnalysis, "analysis_status", "Analysis failed: ",
			fmt.Errorf("failed to save analysis results: %w", werr), started)
		return
	}
	log.Printf("Analysis results saved to %s", reportFile)

	if !r.registry.Complete(jobID, reportFile) {
		return
	}
	r.metrics.RecordJobCompleted(string(models.JobKindAnalysis), time.Since(started).Seconds())

	visualizations := watcher.Found()
	r.analyses.Put(&models.CompletedJob{
		JobID:          jobID,
		ClientID:       clientID,
		Kind:           models.JobKindAnalysis,
		Content:        content,
		OutputDir:      outputDir,
		ReportFile:     reportFile,
		FilePath:       filePath,
		Visualizations: visualizations,
		CompletionTime: time.Now(),
	})

	completed := statusEvent("analysis_status", jobID, "completed", "Analysis complete! Results and visualizations are ready.")
	completed["progress"] = 100
	completed["output_dir"] = outputDir
	r.notify(clientID, completed)

	vizPayload := make([]map[string]interface{}, 0, len(visualizations))
	for _, viz := range visualizations {
		vizPayload = append(vizPayload, map[string]interface{}{
			"filename":    viz.Filename,
			"description": viz.Description,
		})
	}
	r.notify(clientID, map[string]interface{}{
		"type":           "analysis_result",
		"job_id":         jobID,
		"status":         "completed",
		"report_file":    reportFile,
		"content":        content,
		"visualizations": vizPayload,
	})
}

// pushVisualization reads one image and delivers it inline, base64
// encoded, to the owning client.
func (r *Runner) pushVisualization(clientID, jobID, path, description string) {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("Failed to read visualization %s: %v", path, err)
		return
	}
	r.notify(clientID, map[string]interface{}{
		"type":        "visualization",
		"job_id":      jobID,
		"viz_id":      "viz_" + uuid.New().String(),
		"image_data":  base64.StdEncoding.EncodeToString(data),
		"description": description,
		"filename":    filepath.Base(path),
		"timestamp":   unixSeconds(),
	})
}

func buildAnalysisPrompt(filePath, outputDir, analysisType string, options map[string]interface{}) string {
	base := fmt.Sprintf(`Analyze the CSV file located at %s.
Perform a thorough data analysis including:
1. Data overview and basic statistics
2. Identify patterns, correlations, and insights
3. Create meaningful visualizations saved as PNG files in %s

Save each visualization with a descriptive filename in the format: %s/visualization_name.png
`, filePath, outputDir, outputDir)

	var focus string
	switch analysisType {
	case "exploratory":
		focus = `
Focus on exploratory data analysis (EDA):
- Comprehensive summary statistics
- Distribution plots for key variables
- Correlation analysis with heatmaps
- Identify outliers and their impact
`
	case "predictive":
		focus = `
Focus on relationships that could be used for predictive modeling:
- Identify key predictor variables
- Analyze target variable distributions
- Create visualizations showing relationships between features
- Perform basic feature importance analysis
`
	default:
		focus = `
Provide a general analysis:
- Data overview and statistics
- Key trends and patterns
- Important correlations
- Distribution of important variables
- Any anomalies or special cases
`
	}
	prompt := base + focus

	if len(options) > 0 {
		keys := make([]string, 0, len(options))
		for key := range options {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		var b strings.Builder
		b.WriteString("\nAdditional analysis requirements:\n")
		for _, key := range keys {
			fmt.Fprintf(&b, "- %s: %v\n", key, options[key])
		}
		prompt += b.String()
	}
	return prompt
}

func rephraseAnalysis(prompt string) string {
	return fmt.Sprintf("ANALYSIS TASK:\n%s\n\nPlease analyze the data file thoroughly and provide a comprehensive report.", prompt)
}
