package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"github.com/RobertSloan22/AiAutoshopSystem-Backend/agent"
	"github.com/RobertSloan22/AiAutoshopSystem-Backend/api/rest/handlers"
	"github.com/RobertSloan22/AiAutoshopSystem-Backend/api/rest/routes"
	"github.com/RobertSloan22/AiAutoshopSystem-Backend/api/ws"
	"github.com/RobertSloan22/AiAutoshopSystem-Backend/config"
	"github.com/RobertSloan22/AiAutoshopSystem-Backend/core/analysis"
	"github.com/RobertSloan22/AiAutoshopSystem-Backend/core/cache"
	"github.com/RobertSloan22/AiAutoshopSystem-Backend/core/jobs"
	"github.com/RobertSloan22/AiAutoshopSystem-Backend/core/monitoring"
	"github.com/RobertSloan22/AiAutoshopSystem-Backend/core/pack"
	"github.com/RobertSloan22/AiAutoshopSystem-Backend/core/repository"
	"github.com/RobertSloan22/AiAutoshopSystem-Backend/core/runner"
	"github.com/RobertSloan22/AiAutoshopSystem-Backend/core/scheduler"
	"github.com/RobertSloan22/AiAutoshopSystem-Backend/storage"
)

func main() {
	godotenv.Load()
	cfg := config.Load()

	// Initialize database
	db, err := repository.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	log.Println("Database connected successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize repositories
	sessionRepo := repository.NewSessionRepository(db)
	packJobRepo := repository.NewPackJobRepository(db)
	artifactRepo := repository.NewArtifactRepository(db)

	// Initialize pack pipeline
	writer := pack.NewWriter(cfg.OutputDir)
	builder := pack.NewBuilder(sessionRepo, writer)
	packManager := storage.NewPackManager(artifactRepo)

	// Initialize metrics
	metrics := monitoring.NewCollector()

	// Initialize pack build scheduler
	sched := scheduler.NewScheduler(packJobRepo, builder, packManager)
	sched.SetInterval(time.Duration(cfg.SchedulerIntervalSeconds) * time.Second)
	sched.SetMetrics(metrics)
	go sched.Start(ctx)
	defer sched.Stop()

	// Initialize job stores
	registry := jobs.NewRegistry()
	results := jobs.NewResults()
	analyses := jobs.NewResults()
	taskSet := jobs.NewTaskSet()
	analysisStore := jobs.NewAnalysisStore()

	// Optional Redis status mirror
	if cfg.RedisAddr != "" {
		mirror, err := cache.NewMirror(cfg.RedisAddr)
		if err != nil {
			log.Printf("Status mirror disabled: %v", err)
		} else {
			registry.SetMirror(mirror)
			defer mirror.Close()
			log.Println("Status mirror connected")
		}
	}

	// Initialize agent clients and the streaming job runner
	gen := agent.NewClient(cfg.AgentURL)
	backup := agent.NewClient(cfg.BackupAgentURL)

	hub := ws.NewHub()
	hub.SetMetrics(metrics)

	jobRunner := runner.New(registry, results, analyses, taskSet, hub, gen)
	jobRunner.SetBackup(backup)
	jobRunner.SetOutputRoot(cfg.OutputDir)
	jobRunner.SetMetrics(metrics)

	// Watchdog for stuck jobs
	watchdog := monitoring.NewJobMonitor(registry, metrics)
	go watchdog.Start(ctx)

	// WebSocket handler
	wsHandler := ws.NewHandler(hub, registry, results, taskSet, jobRunner, cfg.DataDir)
	wsHandler.SetMetrics(metrics)

	healthHandler := handlers.NewHealthHandler()

	// Advertise whatever agents the generation service exposes
	srvCtx, srvCancel := context.WithTimeout(ctx, 10*time.Second)
	servers := gen.Servers(srvCtx)
	srvCancel()
	wsHandler.SetAvailableServers(servers)
	healthHandler.SetAvailableServers(servers)
	log.Printf("Available agent servers: %v", servers)

	// Setup routes
	r := mux.NewRouter()
	routes.SetupRoutes(r, routes.Deps{
		DB:            db,
		Scheduler:     sched,
		PackManager:   packManager,
		Registry:      registry,
		Results:       results,
		Analyses:      analyses,
		AnalysisStore: analysisStore,
		Starter:       jobRunner,
		Engine:        analysis.NewEngine(),
		Health:        healthHandler,
		WS:            wsHandler.Serve,
		DataDir:       cfg.DataDir,
	})

	// Start server
	server := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	// Graceful shutdown
	go func() {
		log.Printf("Starting server on port %s", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	cancel()
	hub.CloseAll()
	if err := server.Shutdown(context.Background()); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	log.Println("Server exited")
}
