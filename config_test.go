package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeModelFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "model.onnx")
	if err := os.WriteFile(path, []byte("stub"), 0644); err != nil {
		t.Fatalf("writing model file: %v", err)
	}
	return path
}

func TestLoadConfigRequiresModelPath(t *testing.T) {
	t.Setenv("MODEL_PATH", "")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("want error when MODEL_PATH unset")
	}
}

func TestLoadConfigMissingModelFile(t *testing.T) {
	t.Setenv("MODEL_PATH", filepath.Join(t.TempDir(), "nope.onnx"))
	if _, err := LoadConfig(); err == nil {
		t.Fatal("want error when model file does not exist")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("MODEL_PATH", writeModelFile(t))
	t.Setenv("INFERENCE_THREADS", "")
	t.Setenv("CONFIDENCE_THRESHOLD", "")
	t.Setenv("IOU_THRESHOLD", "")
	t.Setenv("MAX_REQUEST_QUEUE_DEPTH", "")
	t.Setenv("REQUEST_TIMEOUT_MS", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ConfidenceThreshold != defaultConfidenceThreshold {
		t.Errorf("confidence threshold = %g, want %g", cfg.ConfidenceThreshold, float64(defaultConfidenceThreshold))
	}
	if cfg.IoUThreshold != defaultIoUThreshold {
		t.Errorf("IoU threshold = %g, want %g", cfg.IoUThreshold, float64(defaultIoUThreshold))
	}
	if cfg.MaxQueueDepth != defaultMaxQueueDepth {
		t.Errorf("queue depth = %d, want %d", cfg.MaxQueueDepth, defaultMaxQueueDepth)
	}
	if cfg.RequestTimeout != defaultRequestTimeoutMs*time.Millisecond {
		t.Errorf("request timeout = %s, want %dms", cfg.RequestTimeout, defaultRequestTimeoutMs)
	}
	if cfg.InferenceThreads <= 0 {
		t.Errorf("inference threads = %d, want positive default", cfg.InferenceThreads)
	}
	if cfg.Addr != ":8080" {
		t.Errorf("addr = %q, want :8080", cfg.Addr)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("MODEL_PATH", writeModelFile(t))
	t.Setenv("INFERENCE_THREADS", "2")
	t.Setenv("INFERENCE_POOL_SIZE", "3")
	t.Setenv("CONFIDENCE_THRESHOLD", "0.85")
	t.Setenv("IOU_THRESHOLD", "0.3")
	t.Setenv("MAX_REQUEST_QUEUE_DEPTH", "16")
	t.Setenv("REQUEST_TIMEOUT_MS", "2500")
	t.Setenv("ADDR", "127.0.0.1:9090")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.InferenceThreads != 2 || cfg.PoolSize != 3 || cfg.MaxQueueDepth != 16 {
		t.Errorf("int overrides not applied: %+v", cfg)
	}
	if cfg.ConfidenceThreshold != 0.85 || cfg.IoUThreshold != 0.3 {
		t.Errorf("threshold overrides not applied: %+v", cfg)
	}
	if cfg.RequestTimeout != 2500*time.Millisecond {
		t.Errorf("request timeout = %s, want 2.5s", cfg.RequestTimeout)
	}
	if cfg.Addr != "127.0.0.1:9090" {
		t.Errorf("addr = %q", cfg.Addr)
	}
}

func TestLoadConfigUnparsableNumberFallsBack(t *testing.T) {
	t.Setenv("MODEL_PATH", writeModelFile(t))
	t.Setenv("MAX_REQUEST_QUEUE_DEPTH", "many")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.MaxQueueDepth != defaultMaxQueueDepth {
		t.Errorf("queue depth = %d, want default %d", cfg.MaxQueueDepth, defaultMaxQueueDepth)
	}
}

func TestLoadConfigRejectsOutOfRangeThresholds(t *testing.T) {
	t.Setenv("MODEL_PATH", writeModelFile(t))

	t.Setenv("CONFIDENCE_THRESHOLD", "1.5")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("want error for confidence threshold above 1")
	}
	t.Setenv("CONFIDENCE_THRESHOLD", "0.8")

	t.Setenv("INFERENCE_THREADS", "-1")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("want error for negative thread count")
	}
}
