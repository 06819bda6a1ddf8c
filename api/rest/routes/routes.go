package routes

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/RobertSloan22/AiAutoshopSystem-Backend/api/rest/handlers"
	"github.com/RobertSloan22/AiAutoshopSystem-Backend/core/analysis"
	"github.com/RobertSloan22/AiAutoshopSystem-Backend/core/jobs"
	"github.com/RobertSloan22/AiAutoshopSystem-Backend/core/repository"
	"github.com/RobertSloan22/AiAutoshopSystem-Backend/core/scheduler"
	"github.com/RobertSloan22/AiAutoshopSystem-Backend/storage"
)

// Deps carries the wired services the route handlers depend on.
type Deps struct {
	DB            *repository.DB
	Scheduler     *scheduler.Scheduler
	PackManager   *storage.PackManager
	Registry      *jobs.Registry
	Results       *jobs.Results
	Analyses      *jobs.Results
	AnalysisStore *jobs.AnalysisStore
	Starter       handlers.ResearchStarter
	Engine        *analysis.Engine
	Health        *handlers.HealthHandler
	WS            func(http.ResponseWriter, *http.Request)
	DataDir       string
}

// SetupRoutes configures all API routes
func SetupRoutes(r *mux.Router, deps Deps) {
	sessionRepo := repository.NewSessionRepository(deps.DB)
	packJobRepo := repository.NewPackJobRepository(deps.DB)
	eventRepo := repository.NewEventRepository(deps.DB)

	packHandler := handlers.NewPackJobHandler(sessionRepo, packJobRepo, eventRepo, deps.PackManager, deps.Scheduler)
	researchHandler := handlers.NewResearchHandler(deps.Registry, deps.Results, deps.Starter)
	analysisHandler := handlers.NewAnalysisHandler(deps.Engine, deps.AnalysisStore)
	uploadHandler := handlers.NewUploadHandler(deps.DataDir)
	vizHandler := handlers.NewVisualizationHandler(deps.Registry, deps.Analyses)
	dashboardHandler := handlers.NewDashboardHandler(deps.Registry)

	// Research/analysis server surface
	r.HandleFunc("/", deps.Health.Root).Methods("GET")
	r.HandleFunc("/health", deps.Health.Health).Methods("GET")
	r.HandleFunc("/research", researchHandler.CreateResearch).Methods("POST")
	r.HandleFunc("/research/results/{job_id}", researchHandler.GetResearchResults).Methods("GET")
	r.HandleFunc("/analysis", analysisHandler.CreateAnalysis).Methods("POST")
	r.HandleFunc("/analysis/{result_id}", analysisHandler.GetAnalysisResult).Methods("GET")
	r.HandleFunc("/upload", uploadHandler.Upload).Methods("POST")
	r.HandleFunc("/visualization/{job_id}/{filename}", vizHandler.GetVisualization).Methods("GET")

	// WebSocket endpoints; /research-ws is the legacy path older clients use
	if deps.WS != nil {
		r.HandleFunc("/ws", deps.WS)
		r.HandleFunc("/research-ws", deps.WS)
	}

	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// Pack build endpoints
	api := r.PathPrefix("/v1").Subrouter()
	api.HandleFunc("/packs", packHandler.SubmitPack).Methods("POST")
	api.HandleFunc("/packs/{id}", packHandler.GetPackJob).Methods("GET")
	api.HandleFunc("/packs/{id}/events", packHandler.GetPackJobEvents).Methods("GET")
	api.HandleFunc("/sessions", packHandler.ListSessions).Methods("GET")
	api.HandleFunc("/sessions/{id}/artifacts", packHandler.GetSessionArtifacts).Methods("GET")
	api.HandleFunc("/sessions/{id}/pack", packHandler.GetLatestPack).Methods("GET")
	api.HandleFunc("/dashboard/jobs", dashboardHandler.GetJobStats).Methods("GET")
}
