package config

import (
	"os"
	"strconv"
)

// Config holds the application configuration
type Config struct {
	// Database
	DatabaseURL string

	// Server
	ServerPort string

	// Artifact and upload directories
	OutputDir string
	DataDir   string

	// Agent endpoints
	AgentURL       string
	BackupAgentURL string

	// Optional status mirror; empty disables it
	RedisAddr string

	// Pack build scheduler
	SchedulerIntervalSeconds int

	// Downsample rate, parsed for future use (builds are fixed at 1 Hz)
	DownsampleHz int
}

// Load loads configuration from environment variables
func Load() *Config {
	cfg := &Config{
		DatabaseURL:              getEnv("DATABASE_URL", "postgres://localhost/obd2_diagnostics?sslmode=disable"),
		ServerPort:               getEnv("SERVER_PORT", "8001"),
		OutputDir:                getEnv("OUTPUT_DIR", "./output"),
		DataDir:                  getEnv("DATA_DIR", "./data"),
		AgentURL:                 getEnv("AGENT_URL", "http://localhost:8000"),
		RedisAddr:                getEnv("REDIS_ADDR", ""),
		SchedulerIntervalSeconds: getEnvInt("SCHEDULER_INTERVAL_SECONDS", 5),
		DownsampleHz:             getEnvInt("DOWNSAMPLE_HZ", 1),
	}
	cfg.BackupAgentURL = getEnv("BACKUP_AGENT_URL", cfg.AgentURL)
	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
