package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/faceserve/face-detection-service/detections"
)

// DefaultPoolSize is the fallback number of inference sessions.
const DefaultPoolSize = 4

// SessionPool holds a fixed set of inference engines and bounds how many
// requests may wait for one. A request first claims a queue slot; the slot
// pool is sized to the session count plus the configured queue depth, so once
// every session is busy at most maxQueueDepth requests can be waiting and the
// rest are rejected immediately.
type SessionPool struct {
	sessions chan detections.Engine
	slots    chan struct{}
	size     int

	mu      sync.Mutex
	closed  bool
	metrics PoolMetrics
}

// PoolMetrics aggregates pool usage counters.
type PoolMetrics struct {
	mu              sync.Mutex
	inUse           int
	totalAcquired   int64
	totalReleased   int64
	acquireFailures int64
	waitTime        time.Duration
}

// MetricsSnapshot is a copyable view of the pool counters.
type MetricsSnapshot struct {
	PoolSize        int           `json:"pool_size"`
	InUse           int           `json:"sessions_in_use"`
	TotalAcquired   int64         `json:"total_acquired"`
	TotalReleased   int64         `json:"total_released"`
	AcquireFailures int64         `json:"acquire_failures"`
	TotalWait       time.Duration `json:"total_wait_ns"`
}

// NewSessionPool builds size engines with factory and allows up to
// maxQueueDepth requests to wait for a free one. Any factory failure tears
// down the engines built so far.
func NewSessionPool(factory func() (detections.Engine, error), size, maxQueueDepth int) (*SessionPool, error) {
	if size <= 0 {
		size = DefaultPoolSize
	}
	if maxQueueDepth < 0 {
		maxQueueDepth = 0
	}

	pool := &SessionPool{
		sessions: make(chan detections.Engine, size),
		slots:    make(chan struct{}, size+maxQueueDepth),
		size:     size,
	}

	for i := 0; i < size; i++ {
		engine, err := factory()
		if err != nil {
			pool.Destroy()
			return nil, fmt.Errorf("initializing session %d: %w", i, err)
		}
		pool.sessions <- engine
	}

	return pool, nil
}

// Acquire returns a free engine, waiting until one is released or the context
// ends. When the wait queue is already at capacity the request is rejected
// with ErrCapacity without waiting.
func (p *SessionPool) Acquire(ctx context.Context) (detections.Engine, error) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return nil, errors.New("pool is closed")
	}

	select {
	case p.slots <- struct{}{}:
	default:
		p.metrics.recordFailure()
		return nil, detections.ErrCapacity
	}

	start := time.Now()
	select {
	case engine := <-p.sessions:
		p.metrics.recordAcquire(time.Since(start))
		return engine, nil
	case <-ctx.Done():
		<-p.slots
		p.metrics.recordFailure()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, detections.ErrTimeout
		}
		return nil, ctx.Err()
	}
}

// Release returns an engine to the pool and frees the caller's queue slot.
func (p *SessionPool) Release(engine detections.Engine) {
	p.metrics.recordRelease()

	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		engine.Destroy()
		return
	}

	p.sessions <- engine
	<-p.slots
}

// Destroy tears down all idle engines. Engines checked out at destroy time
// are destroyed on Release.
func (p *SessionPool) Destroy() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	for {
		select {
		case engine := <-p.sessions:
			engine.Destroy()
		default:
			return
		}
	}
}

// Snapshot returns the current pool counters.
func (p *SessionPool) Snapshot() MetricsSnapshot {
	p.metrics.mu.Lock()
	defer p.metrics.mu.Unlock()
	return MetricsSnapshot{
		PoolSize:        p.size,
		InUse:           p.metrics.inUse,
		TotalAcquired:   p.metrics.totalAcquired,
		TotalReleased:   p.metrics.totalReleased,
		AcquireFailures: p.metrics.acquireFailures,
		TotalWait:       p.metrics.waitTime,
	}
}

func (m *PoolMetrics) recordAcquire(wait time.Duration) {
	m.mu.Lock()
	m.inUse++
	m.totalAcquired++
	m.waitTime += wait
	m.mu.Unlock()
}

func (m *PoolMetrics) recordRelease() {
	m.mu.Lock()
	m.inUse--
	m.totalReleased++
	m.mu.Unlock()
}

func (m *PoolMetrics) recordFailure() {
	m.mu.Lock()
	m.acquireFailures++
	m.mu.Unlock()
}
