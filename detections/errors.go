package detections

import "errors"

// Pipeline failure classes. Stage code wraps these with %w so handlers can
// map them to wire codes with errors.Is.
var (
	// ErrDecode marks malformed, unsupported or oversized image payloads.
	ErrDecode = errors.New("image decode failed")
	// ErrPreprocess marks an internal invariant violation while building the
	// input tensor. It is a server defect, not a client error.
	ErrPreprocess = errors.New("preprocess invariant violated")
	// ErrInference marks a rejected input or internal failure in the ONNX
	// runtime. Fatal to the request, not to the process.
	ErrInference = errors.New("inference failed")
	// ErrCapacity marks rejection because the request queue is at its
	// configured depth. Retryable.
	ErrCapacity = errors.New("request queue full")
	// ErrTimeout marks a request that exceeded its processing deadline.
	// Retryable.
	ErrTimeout = errors.New("processing timeout")
)
