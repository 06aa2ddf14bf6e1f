package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/faceserve/face-detection-service/detections"
)

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "configuration error:", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Debug)
	defer logger.Sync() //nolint:errcheck

	if cfg.OnnxLibPath != "" {
		ort.SetSharedLibraryPath(cfg.OnnxLibPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		logger.Fatal("failed to initialize ONNX runtime", zap.Error(err))
	}
	defer ort.DestroyEnvironment()

	priors := detections.GeneratePriors()

	pool, err := NewSessionPool(func() (detections.Engine, error) {
		return detections.NewModelSession(cfg.ModelPath, cfg.InferenceThreads)
	}, cfg.PoolSize, cfg.MaxQueueDepth)
	if err != nil {
		logger.Fatal("failed to load model",
			zap.String("model_path", cfg.ModelPath), zap.Error(err))
	}
	defer pool.Destroy()

	pipeline := detections.NewPipeline(priors, detections.PostProcessConfig{
		ConfidenceThreshold: float32(cfg.ConfidenceThreshold),
		IoUThreshold:        float32(cfg.IoUThreshold),
	})

	server := NewServer(cfg, pool, pipeline, logger)

	srv := &http.Server{
		Handler:      server.Routes(),
		Addr:         cfg.Addr,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	logger.Info("starting server",
		zap.String("addr", cfg.Addr),
		zap.String("model_path", cfg.ModelPath),
		zap.Int("pool_size", cfg.PoolSize),
		zap.Int("inference_threads", cfg.InferenceThreads),
		zap.Int("anchors", len(priors)),
	)

	if err := serve(srv, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func newLogger(debug bool) *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "timestamp"
	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return logger
}

// serve runs the HTTP server until it fails or a shutdown signal arrives, in
// which case in-flight requests get a bounded drain window.
func serve(srv *http.Server, logger *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		err := srv.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return <-errCh
	}
}
