// Package hooks provides production-ready Hook and Logger implementations.
package hooks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cantaloupe-core/imaging/core"
)

// ── Structured logger adapter ─────────────────────────────────────────────────

// SlogLogger wraps the standard library slog.Logger to satisfy core.Logger.
type SlogLogger struct {
	log *slog.Logger
}

// NewSlogLogger creates a logger backed by slog.
func NewSlogLogger(l *slog.Logger) *SlogLogger { return &SlogLogger{log: l} }

func (s *SlogLogger) Debug(msg string, fields ...interface{}) {
	s.log.Debug(msg, toAttrs(fields)...)
}
func (s *SlogLogger) Info(msg string, fields ...interface{}) {
	s.log.Info(msg, toAttrs(fields)...)
}
func (s *SlogLogger) Warn(msg string, fields ...interface{}) {
	s.log.Warn(msg, toAttrs(fields)...)
}
func (s *SlogLogger) Error(msg string, fields ...interface{}) {
	s.log.Error(msg, toAttrs(fields)...)
}

func toAttrs(fields []interface{}) []any { return fields }

// ── Logging hook ──────────────────────────────────────────────────────────────

// LoggingHook logs before/after each pipeline step.
type LoggingHook struct {
	logger core.Logger
}

// NewLoggingHook creates a LoggingHook.
func NewLoggingHook(l core.Logger) *LoggingHook { return &LoggingHook{logger: l} }

func (h *LoggingHook) BeforeStep(_ context.Context, stepName string, img core.PixelMatrix) {
	h.logger.Debug("pipeline.step.start",
		"step", stepName,
		"width", img.Width,
		"height", img.Height,
	)
}

func (h *LoggingHook) AfterStep(_ context.Context, stepName string, img core.PixelMatrix, d time.Duration, err error) {
	if err != nil {
		h.logger.Error("pipeline.step.error",
			"step", stepName,
			"duration_ms", d.Milliseconds(),
			"error", err.Error(),
		)
		return
	}
	h.logger.Debug("pipeline.step.done",
		"step", stepName,
		"duration_ms", d.Milliseconds(),
		"output", fmt.Sprintf("%dx%d depth=%d", img.Width, img.Height, img.BitDepth),
	)
}

// RequestLogger logs the outer request lifecycle: resolution, fingerprint,
// cache outcome, and the level/reduction-factor chosen for the read. It sits
// above the per-step LoggingHook, which only sees individual pipeline steps.
type RequestLogger struct {
	logger core.Logger
}

// NewRequestLogger creates a RequestLogger.
func NewRequestLogger(l core.Logger) *RequestLogger { return &RequestLogger{logger: l} }

// LogResolved records which provider and media type an identifier resolved
// to.
func (r *RequestLogger) LogResolved(id core.Identifier, providerName string, mt core.MediaType) {
	r.logger.Info("source.resolved",
		"identifier", string(id),
		"provider", providerName,
		"media_type", mt.String(),
	)
}

// LogLevelSelection records the reduction-factor decision for one read.
func (r *RequestLogger) LogLevelSelection(id core.Identifier, sel core.LevelSelection) {
	r.logger.Debug("reduction.level_selected",
		"identifier", string(id),
		"level", sel.LevelIndex,
		"reduction_factor", int(sel.ReductionFactor),
		"software_subsample", sel.SoftwareSubsample,
	)
}

// LogCacheOutcome records a derivative-cache hit/miss/wait/bypass.
func (r *RequestLogger) LogCacheOutcome(fp core.RequestFingerprint, outcome string) {
	r.logger.Debug("cache.derivative",
		"fingerprint", string(fp),
		"outcome", outcome,
	)
}

// ── In-memory metrics collector ───────────────────────────────────────────────

// InMemoryMetrics accumulates metrics atomically; safe for concurrent use.
type InMemoryMetrics struct {
	mu sync.RWMutex

	stepDurationsMs map[string]int64 // cumulative ms per step
	stepCalls       map[string]int64 // call count per step
	stepErrors      map[string]int64
	cacheOutcomes   map[string]int64 // "hit" | "miss" | "wait" | "bypass"

	totalThroughputB int64
	totalMemoryB     int64
	processedTotal   int64
	errorsTotal      int64
}

// NewInMemoryMetrics creates an empty metrics store.
func NewInMemoryMetrics() *InMemoryMetrics {
	return &InMemoryMetrics{
		stepDurationsMs: make(map[string]int64),
		stepCalls:       make(map[string]int64),
		stepErrors:      make(map[string]int64),
		cacheOutcomes:   make(map[string]int64),
	}
}

func (m *InMemoryMetrics) RecordProcessingTime(stepName string, d interface{ Seconds() float64 }) {
	ms := int64(d.Seconds() * 1000)
	m.mu.Lock()
	m.stepDurationsMs[stepName] += ms
	m.stepCalls[stepName]++
	m.mu.Unlock()
}

func (m *InMemoryMetrics) RecordThroughput(bytes int64) {
	atomic.AddInt64(&m.totalThroughputB, bytes)
}

func (m *InMemoryMetrics) RecordMemory(bytes int64) {
	atomic.AddInt64(&m.totalMemoryB, bytes)
}

func (m *InMemoryMetrics) RecordError(stepName string, _ string) {
	m.mu.Lock()
	m.stepErrors[stepName]++
	m.mu.Unlock()
}

func (m *InMemoryMetrics) RecordCacheOutcome(outcome string) {
	m.mu.Lock()
	m.cacheOutcomes[outcome]++
	m.mu.Unlock()
}

// IncrementProcessed records one successful Deliver call; failed calls are
// counted by IncrementError instead, so the two together track outcomes
// across whole requests rather than individual pipeline steps.
func (m *InMemoryMetrics) IncrementProcessed() { atomic.AddInt64(&m.processedTotal, 1) }

// IncrementError records one failed Deliver call.
func (m *InMemoryMetrics) IncrementError() { atomic.AddInt64(&m.errorsTotal, 1) }

// Snapshot returns a copy of current metrics.
func (m *InMemoryMetrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := MetricsSnapshot{
		StepDurationsMs:  make(map[string]int64, len(m.stepDurationsMs)),
		StepCalls:        make(map[string]int64, len(m.stepCalls)),
		StepErrors:       make(map[string]int64, len(m.stepErrors)),
		CacheOutcomes:    make(map[string]int64, len(m.cacheOutcomes)),
		TotalThroughputB: atomic.LoadInt64(&m.totalThroughputB),
		TotalMemoryB:     atomic.LoadInt64(&m.totalMemoryB),
		Processed:        atomic.LoadInt64(&m.processedTotal),
		Errors:           atomic.LoadInt64(&m.errorsTotal),
	}
	for k, v := range m.stepDurationsMs {
		snap.StepDurationsMs[k] = v
	}
	for k, v := range m.stepCalls {
		snap.StepCalls[k] = v
	}
	for k, v := range m.stepErrors {
		snap.StepErrors[k] = v
	}
	for k, v := range m.cacheOutcomes {
		snap.CacheOutcomes[k] = v
	}
	return snap
}

// MetricsSnapshot is an immutable point-in-time copy of metrics.
type MetricsSnapshot struct {
	StepDurationsMs  map[string]int64
	StepCalls        map[string]int64
	StepErrors       map[string]int64
	CacheOutcomes    map[string]int64
	TotalThroughputB int64
	TotalMemoryB     int64
	Processed        int64
	Errors           int64
}

// ── Metrics hook ──────────────────────────────────────────────────────────────

// MetricsHook feeds pipeline events into a MetricsCollector.
type MetricsHook struct {
	collector core.MetricsCollector
}

// NewMetricsHook creates a MetricsHook.
func NewMetricsHook(c core.MetricsCollector) *MetricsHook { return &MetricsHook{collector: c} }

func (h *MetricsHook) BeforeStep(_ context.Context, _ string, _ core.PixelMatrix) {}

func (h *MetricsHook) AfterStep(_ context.Context, stepName string, img core.PixelMatrix, d time.Duration, err error) {
	h.collector.RecordProcessingTime(stepName, d)
	if err != nil {
		h.collector.RecordError(stepName, "pipeline")
		return
	}
	h.collector.RecordThroughput(int64(img.Width) * int64(img.Height) * int64(img.Channels))
}
