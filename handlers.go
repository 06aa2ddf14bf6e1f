package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/faceserve/face-detection-service/detections"
	"github.com/faceserve/face-detection-service/models"
)

// MaxUploadBytes bounds the request body size across all payload modes.
const MaxUploadBytes = 20 << 20

// readinessFailureLimit is the number of consecutive inference failures after
// which readiness flips to not-ready.
const readinessFailureLimit = 3

// Server carries the shared read-only state behind the HTTP handlers.
type Server struct {
	cfg      *Config
	pool     *SessionPool
	pipeline *detections.Pipeline
	logger   *zap.Logger
	health   healthState
}

type healthState struct {
	consecutiveFailures atomic.Int64
}

func (h *healthState) markInferenceFailure() { h.consecutiveFailures.Add(1) }
func (h *healthState) markSuccess()          { h.consecutiveFailures.Store(0) }
func (h *healthState) ready() bool {
	return h.consecutiveFailures.Load() < readinessFailureLimit
}

// ErrorResponse is the structured error body. Code distinguishes client from
// server failures on the wire.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewServer(cfg *Config, pool *SessionPool, pipeline *detections.Pipeline, logger *zap.Logger) *Server {
	return &Server{
		cfg:      cfg,
		pool:     pool,
		pipeline: pipeline,
		logger:   logger,
	}
}

// Routes builds the service router.
func (s *Server) Routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/detect", s.handleDetect).Methods("POST")
	r.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	r.HandleFunc("/metrics", s.handleMetrics).Methods("GET")
	return r
}

func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	startTotal := time.Now()
	requestID := uuid.NewString()
	timings := &models.ProcessingTimings{RequestID: requestID}
	logger := s.logger.With(zap.String("request_id", requestID))

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()

	imgBytes, err := readImagePayload(w, r)
	if err != nil {
		writeError(w, "invalid_request", err.Error(), http.StatusBadRequest)
		return
	}

	decodeStart := time.Now()
	img, err := detections.DecodeImage(imgBytes, s.cfg.MaxImagePixels)
	timings.ImageDecode = time.Since(decodeStart)
	if err != nil {
		s.writeFailure(w, logger, err)
		return
	}

	engine, err := s.pool.Acquire(ctx)
	if err != nil {
		s.writeFailure(w, logger, err)
		return
	}
	defer s.pool.Release(engine)

	result, err := s.pipeline.Detect(ctx, img, engine, timings)
	if err != nil {
		if errors.Is(err, detections.ErrInference) {
			s.health.markInferenceFailure()
		}
		s.writeFailure(w, logger, err)
		return
	}
	s.health.markSuccess()

	timings.Total = time.Since(startTotal)
	s.logTimings(logger, timings, len(result))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	ready := s.health.ready()
	status := "ready"
	code := http.StatusOK
	if !ready {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":       status,
		"model_loaded": true,
		"ready":        ready,
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.pool.Snapshot())
}

// writeFailure maps a pipeline error to its wire code. Client-caused failures
// are 4xx, server-side ones 5xx; capacity and timeout carry a retryable
// signal.
func (s *Server) writeFailure(w http.ResponseWriter, logger *zap.Logger, err error) {
	switch {
	case errors.Is(err, detections.ErrDecode):
		writeError(w, "invalid_image", "failed to decode image", http.StatusBadRequest)
	case errors.Is(err, detections.ErrCapacity):
		w.Header().Set("Retry-After", "1")
		writeError(w, "over_capacity", "request queue is full, retry later", http.StatusServiceUnavailable)
	case errors.Is(err, detections.ErrTimeout) || errors.Is(err, context.DeadlineExceeded):
		writeError(w, "timeout", "processing deadline exceeded, retry later", http.StatusGatewayTimeout)
	case errors.Is(err, detections.ErrPreprocess):
		logger.Error("preprocess invariant violated", zap.Error(err))
		writeError(w, "processing_error", "internal processing failure", http.StatusInternalServerError)
	case errors.Is(err, detections.ErrInference):
		logger.Error("inference failed", zap.Error(err))
		writeError(w, "inference_error", "inference failed", http.StatusInternalServerError)
	default:
		logger.Error("request failed", zap.Error(err))
		writeError(w, "internal_error", "internal failure", http.StatusInternalServerError)
	}
}

func (s *Server) logTimings(logger *zap.Logger, t *models.ProcessingTimings, faces int) {
	logger.Debug("request processed",
		zap.Int("faces", faces),
		zap.Duration("image_decode", t.ImageDecode),
		zap.Duration("preprocess", t.Preprocess),
		zap.Duration("inference", t.Inference),
		zap.Duration("postprocess", t.Postprocess),
		zap.Duration("total", t.Total),
	)
}

// readImagePayload extracts image bytes from the request. Three modes are
// supported: raw binary body, multipart upload under the "file" field, and
// JSON {"image": "<base64>"}.
func readImagePayload(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)

	contentType := r.Header.Get("Content-Type")
	switch {
	case strings.HasPrefix(contentType, "application/json"):
		return readJSONPayload(r)
	case strings.HasPrefix(contentType, "multipart/form-data"):
		return readMultipartPayload(r)
	default:
		return io.ReadAll(r.Body)
	}
}

func readJSONPayload(r *http.Request) ([]byte, error) {
	var req struct {
		Image string `json:"image"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, err
	}
	return base64.StdEncoding.DecodeString(req.Image)
}

func readMultipartPayload(r *http.Request) ([]byte, error) {
	if err := r.ParseMultipartForm(MaxUploadBytes); err != nil {
		return nil, err
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return io.ReadAll(file)
}

func writeError(w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Code:    code,
		Message: message,
	})
}
