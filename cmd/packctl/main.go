package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/RobertSloan22/AiAutoshopSystem-Backend/config"
	"github.com/RobertSloan22/AiAutoshopSystem-Backend/core/models"
	"github.com/RobertSloan22/AiAutoshopSystem-Backend/core/pack"
	"github.com/RobertSloan22/AiAutoshopSystem-Backend/core/repository"
	"github.com/RobertSloan22/AiAutoshopSystem-Backend/core/spec"
	"github.com/RobertSloan22/AiAutoshopSystem-Backend/storage"
)

var (
	planFile    string
	metricsPort int
)

var rootCmd = &cobra.Command{
	Use:   "packctl",
	Short: "Build and register OBD2 session packs",
	Long: `packctl runs the session-to-pack pipeline against the sample store:
fetch raw samples for a session, normalize them, downsample to a 1 Hz wide
table, compute KPIs, and write the parquet and summary artifacts.`,
	SilenceUsage: true,
}

var buildCmd = &cobra.Command{
	Use:   "build [sessionId]",
	Short: "Build the pack for one session, or for every session in a plan",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if planFile != "" {
			return runPlanBuild(planFile)
		}
		if len(args) != 1 {
			return fmt.Errorf("a session id or --spec is required")
		}
		return runBuild(args[0])
	},
}

var serveMetricsCmd = &cobra.Command{
	Use:   "serve-metrics",
	Short: "Expose Prometheus metrics over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		http.Handle("/metrics", promhttp.Handler())
		addr := fmt.Sprintf(":%d", metricsPort)
		fmt.Fprintf(os.Stderr, "Serving metrics on %s\n", addr)
		return http.ListenAndServe(addr, nil)
	},
}

func init() {
	buildCmd.Flags().StringVar(&planFile, "spec", "", "YAML build plan naming the sessions to build")
	serveMetricsCmd.Flags().IntVar(&metricsPort, "port", 9090, "port to serve /metrics on")
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(serveMetricsCmd)
}

// buildEnv holds the database-backed pipeline shared by build invocations.
type buildEnv struct {
	db      *repository.DB
	builder *pack.Builder
	manager *storage.PackManager
}

func openEnv(outputDir string) (*buildEnv, error) {
	godotenv.Load()
	cfg := config.Load()
	if outputDir == "" {
		outputDir = cfg.OutputDir
	}

	db, err := repository.NewDB(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	sessionRepo := repository.NewSessionRepository(db)
	artifactRepo := repository.NewArtifactRepository(db)
	return &buildEnv{
		db:      db,
		builder: pack.NewBuilder(sessionRepo, pack.NewWriter(outputDir)),
		manager: storage.NewPackManager(artifactRepo),
	}, nil
}

func (e *buildEnv) close() {
	e.db.Close()
}

func (e *buildEnv) buildOne(ctx context.Context, sessionID string) (*models.SessionPack, error) {
	sessionPack, err := e.builder.Build(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := e.manager.RecordPack(sessionPack); err != nil {
		return nil, fmt.Errorf("register pack artifacts: %w", err)
	}
	return sessionPack, nil
}

func runBuild(sessionID string) error {
	env, err := openEnv("")
	if err != nil {
		return err
	}
	defer env.close()

	sessionPack, err := env.buildOne(context.Background(), sessionID)
	if err != nil {
		return err
	}
	return printJSON(sessionPack)
}

func runPlanBuild(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read build plan: %w", err)
	}
	plan, err := spec.ParseBuildPlan(string(raw))
	if err != nil {
		return err
	}

	env, err := openEnv(plan.OutputDir)
	if err != nil {
		return err
	}
	defer env.close()

	ctx := context.Background()
	packs := make([]*models.SessionPack, 0, len(plan.Sessions))
	failed := 0
	for _, sessionID := range plan.Sessions {
		sessionPack, err := env.buildOne(ctx, sessionID)
		if err != nil {
			if !plan.ContinueOnError {
				return err
			}
			fmt.Fprintf(os.Stderr, "build %s: %v\n", sessionID, err)
			failed++
			continue
		}
		packs = append(packs, sessionPack)
	}

	if err := printJSON(packs); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d builds failed", failed, len(plan.Sessions))
	}
	return nil
}

func printJSON(v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
