package config

import "testing"

func TestDefaultIsValid(t *testing.T) {
	if err := Validate(Default()); err != nil {
		t.Fatalf("Default() must pass Validate, got: %v", err)
	}
}

func TestValidateRejectsBadQuality(t *testing.T) {
	cfg := Default()
	cfg.Processor.DefaultQuality = 0
	if err := Validate(cfg); err == nil {
		t.Error("expected error for DefaultQuality=0")
	}
	cfg.Processor.DefaultQuality = 101
	if err := Validate(cfg); err == nil {
		t.Error("expected error for DefaultQuality=101")
	}
}

func TestValidateRejectsZeroChunkSize(t *testing.T) {
	cfg := Default()
	cfg.ChunkSize = 0
	if err := Validate(cfg); err == nil {
		t.Error("expected error for ChunkSize=0")
	}
}

func TestValidateEvictionPolicyRequirements(t *testing.T) {
	cfg := Default()
	cfg.Cache.Eviction = EvictionSizeLRU
	cfg.Cache.SizeBytes = 0
	if err := Validate(cfg); err == nil {
		t.Error("expected error for size-lru eviction with SizeBytes=0")
	}

	cfg = Default()
	cfg.Cache.Eviction = EvictionTTL
	cfg.Cache.TTLSeconds = 0
	if err := Validate(cfg); err == nil {
		t.Error("expected error for time-ttl eviction with TTLSeconds=0")
	}

	cfg = Default()
	cfg.Cache.Eviction = EvictionNone
	if err := Validate(cfg); err != nil {
		t.Errorf("eviction=none should not require TTL or SizeBytes, got: %v", err)
	}
}

func TestAtomicLoadStore(t *testing.T) {
	a := NewAtomic(Default())
	first := a.Load()
	if first.Processor.DefaultQuality != 85 {
		t.Fatalf("expected default quality 85, got %d", first.Processor.DefaultQuality)
	}

	updated := first
	updated.Processor.DefaultQuality = 95
	a.Store(updated)

	if got := a.Load().Processor.DefaultQuality; got != 95 {
		t.Errorf("expected reloaded quality 95, got %d", got)
	}
	if first.Processor.DefaultQuality != 85 {
		t.Error("a previously captured Load() result must not be mutated by a later Store")
	}
}
