package main

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every environment-sourced setting. A local .env file is
// honored when present.
type Config struct {
	Addr                string
	ModelPath           string
	OnnxLibPath         string
	InferenceThreads    int
	PoolSize            int
	ConfidenceThreshold float64
	IoUThreshold        float64
	MaxQueueDepth       int
	RequestTimeout      time.Duration
	MaxImagePixels      int
	Debug               bool
}

const (
	defaultConfidenceThreshold = 0.7
	defaultIoUThreshold        = 0.45
	defaultMaxQueueDepth       = 64
	defaultRequestTimeoutMs    = 10000
	defaultMaxImagePixels      = 25_000_000
)

// LoadConfig reads configuration from the environment. MODEL_PATH is required
// and must point at an existing file; the process cannot serve anything
// without the model, so validation failures are fatal to startup.
func LoadConfig() (*Config, error) {
	godotenv.Load()

	cfg := &Config{
		Addr:                getEnv("ADDR", ":8080"),
		ModelPath:           os.Getenv("MODEL_PATH"),
		OnnxLibPath:         os.Getenv("ONNX_LIB_PATH"),
		InferenceThreads:    getEnvAsInt("INFERENCE_THREADS", runtime.NumCPU()),
		PoolSize:            getEnvAsInt("INFERENCE_POOL_SIZE", DefaultPoolSize),
		ConfidenceThreshold: getEnvAsFloat("CONFIDENCE_THRESHOLD", defaultConfidenceThreshold),
		IoUThreshold:        getEnvAsFloat("IOU_THRESHOLD", defaultIoUThreshold),
		MaxQueueDepth:       getEnvAsInt("MAX_REQUEST_QUEUE_DEPTH", defaultMaxQueueDepth),
		RequestTimeout:      time.Duration(getEnvAsInt("REQUEST_TIMEOUT_MS", defaultRequestTimeoutMs)) * time.Millisecond,
		MaxImagePixels:      getEnvAsInt("MAX_IMAGE_PIXELS", defaultMaxImagePixels),
		Debug:               os.Getenv("DEBUG") == "true",
	}

	if cfg.ModelPath == "" {
		return nil, fmt.Errorf("MODEL_PATH is required")
	}
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("MODEL_PATH: %w", err)
	}
	if cfg.InferenceThreads <= 0 {
		return nil, fmt.Errorf("INFERENCE_THREADS must be positive, got %d", cfg.InferenceThreads)
	}
	if cfg.PoolSize <= 0 {
		return nil, fmt.Errorf("INFERENCE_POOL_SIZE must be positive, got %d", cfg.PoolSize)
	}
	if cfg.MaxQueueDepth < 0 {
		return nil, fmt.Errorf("MAX_REQUEST_QUEUE_DEPTH must not be negative, got %d", cfg.MaxQueueDepth)
	}
	if cfg.RequestTimeout <= 0 {
		return nil, fmt.Errorf("REQUEST_TIMEOUT_MS must be positive, got %s", cfg.RequestTimeout)
	}
	if cfg.ConfidenceThreshold <= 0 || cfg.ConfidenceThreshold >= 1 {
		return nil, fmt.Errorf("CONFIDENCE_THRESHOLD must be in (0,1), got %g", cfg.ConfidenceThreshold)
	}
	if cfg.IoUThreshold <= 0 || cfg.IoUThreshold > 1 {
		return nil, fmt.Errorf("IOU_THRESHOLD must be in (0,1], got %g", cfg.IoUThreshold)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
