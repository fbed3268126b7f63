package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

type Config struct {
	Port              int
	DataDir           string
	ModelsDir         string
	WhisperBin        string
	FfmpegBin         string
	MaxUploadSizeMB   int
	MaxConcurrentJobs int
	LogLevel          string
}

func Load() (*Config, error) {
	port, err := strconv.Atoi(getEnv("PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}

	maxUploadSizeMB, err := strconv.Atoi(getEnv("MAX_UPLOAD_SIZE_MB", "500"))
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_UPLOAD_SIZE_MB: %w", err)
	}

	maxConcurrentJobs, err := strconv.Atoi(getEnv("MAX_CONCURRENT_JOBS", "2"))
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_CONCURRENT_JOBS: %w", err)
	}
	if maxConcurrentJobs < 1 {
		return nil, fmt.Errorf("MAX_CONCURRENT_JOBS must be at least 1")
	}

	dataDir := getEnv("DATA_DIR", "./data")

	return &Config{
		Port:              port,
		DataDir:           dataDir,
		ModelsDir:         getEnv("MODELS_DIR", filepath.Join(dataDir, "models")),
		WhisperBin:        getEnv("WHISPER_BIN", "whisper-cli"),
		FfmpegBin:         getEnv("FFMPEG_BIN", "ffmpeg"),
		MaxUploadSizeMB:   maxUploadSizeMB,
		MaxConcurrentJobs: maxConcurrentJobs,
		LogLevel:          getEnv("LOG_LEVEL", "info"),
	}, nil
}

// UploadDir is where uploaded audio lives until its job reaches a terminal state.
func (c *Config) UploadDir() string {
	return filepath.Join(c.DataDir, "uploads")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
