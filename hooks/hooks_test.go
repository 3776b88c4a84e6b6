package hooks

import (
	"context"
	"testing"
	"time"

	"github.com/cantaloupe-core/imaging/core"
)

func TestMetricsHookRecordsCallsAndErrors(t *testing.T) {
	m := NewInMemoryMetrics()
	hook := NewMetricsHook(m)

	img := core.PixelMatrix{Width: 10, Height: 10, Channels: 4}
	hook.AfterStep(context.Background(), "scale", img, 5*time.Millisecond, nil)
	hook.AfterStep(context.Background(), "scale", img, 3*time.Millisecond, nil)
	hook.AfterStep(context.Background(), "encode", img, time.Millisecond, assertErr{})

	snap := m.Snapshot()
	if snap.StepCalls["scale"] != 2 {
		t.Errorf("expected 2 scale calls, got %d", snap.StepCalls["scale"])
	}
	if snap.StepErrors["encode"] != 1 {
		t.Errorf("expected 1 encode error, got %d", snap.StepErrors["encode"])
	}
	if snap.TotalThroughputB == 0 {
		t.Error("expected throughput to be recorded for successful steps")
	}
}

func TestInMemoryMetricsCacheOutcome(t *testing.T) {
	m := NewInMemoryMetrics()
	m.RecordCacheOutcome("hit")
	m.RecordCacheOutcome("hit")
	m.RecordCacheOutcome("miss")

	snap := m.Snapshot()
	if snap.CacheOutcomes["hit"] != 2 || snap.CacheOutcomes["miss"] != 1 {
		t.Errorf("got %+v", snap.CacheOutcomes)
	}
}

func TestSnapshotIsIndependentCopy(t *testing.T) {
	m := NewInMemoryMetrics()
	m.RecordCacheOutcome("hit")
	snap := m.Snapshot()
	m.RecordCacheOutcome("hit")

	if snap.CacheOutcomes["hit"] != 1 {
		t.Error("a Snapshot taken earlier must not see later mutations")
	}
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }
