package core

import (
	"context"
	"time"
)

// Logger is a minimal structured logging interface, satisfied by
// hooks.SlogLogger.
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
}

// MetricsCollector receives performance observations from the pipeline.
type MetricsCollector interface {
	RecordProcessingTime(stageName string, d interface{ Seconds() float64 })
	RecordThroughput(bytes int64)
	RecordMemory(bytes int64)
	RecordError(stageName string, category string)
	RecordCacheOutcome(outcome string) // "hit" | "miss" | "wait" | "bypass"
}

// Step is one stage of the pipeline executor: crop, scale, transpose,
// rotate, color transform, sharpen, overlay, or encode. Implementations must
// be safe for concurrent use across goroutines (a Step value is shared
// across requests; per-request state lives in its Execute parameters only).
type Step interface {
	Name() string
	Execute(ctx context.Context, img PixelMatrix) (PixelMatrix, error)
}

// Hook is an optional observer invoked around pipeline steps and around the
// outer request lifecycle (source open, cache lookup).
type Hook interface {
	BeforeStep(ctx context.Context, stepName string, img PixelMatrix)
	AfterStep(ctx context.Context, stepName string, img PixelMatrix, d time.Duration, err error)
}
