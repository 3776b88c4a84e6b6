package cache

import (
	"context"
	"io"
	"os"
	"testing"

	"github.com/cantaloupe-core/imaging/config"
	"github.com/cantaloupe-core/imaging/core"
)

func newTestDerivative(t *testing.T) *Derivative {
	t.Helper()
	dir := t.TempDir()
	d, err := NewDerivative(config.CacheConfig{
		Enabled:      true,
		Directory:    dir,
		SizeBytes:    16 * 1024 * 1024,
		WaitForBuild: true,
	})
	if err != nil {
		t.Fatalf("NewDerivative: %v", err)
	}
	return d
}

func TestDerivativeGetMissesBeforePut(t *testing.T) {
	d := newTestDerivative(t)
	_, _, ok, err := d.Get(context.Background(), core.RequestFingerprint("nope"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Error("expected a miss for an un-put fingerprint")
	}
}

func TestDerivativePutThenGetRoundTrips(t *testing.T) {
	d := newTestDerivative(t)
	fp := core.RequestFingerprint("fp-1")
	mt := core.MediaTypeOf(core.FormatJPEG)

	w, err := d.Put(context.Background(), core.Identifier("a.jpg"), fp, mt)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := w.Write([]byte("payload-bytes")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	rc, gotMT, ok, err := d.Get(context.Background(), fp)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatal("expected a hit after Put/Close")
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "payload-bytes" {
		t.Errorf("got %q, want %q", data, "payload-bytes")
	}
	if gotMT != mt {
		t.Errorf("got media type %v, want %v", gotMT, mt)
	}
}

func TestDerivativePutSecondCallerForSameFingerprintDiscards(t *testing.T) {
	d := newTestDerivative(t)
	fp := core.RequestFingerprint("fp-dup")
	mt := core.MediaTypeOf(core.FormatPNG)

	w1, err := d.Put(context.Background(), core.Identifier("a.png"), fp, mt)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	w1.Write([]byte("first"))
	w1.Close()

	// A second Put for the same fingerprint, after the first has already
	// installed, must come back as a no-op writer rather than clobbering the
	// already-installed entry.
	w2, err := d.Put(context.Background(), core.Identifier("a.png"), fp, mt)
	if err != nil {
		t.Fatalf("Put (second): %v", err)
	}
	if _, err := w2.Write([]byte("second-should-be-discarded")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w2.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	rc, _, ok, _ := d.Get(context.Background(), fp)
	if !ok {
		t.Fatal("expected entry to still exist")
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "first" {
		t.Errorf("second Put must not overwrite the installed entry, got %q", data)
	}
}

func TestDerivativeAbortDoesNotInstall(t *testing.T) {
	d := newTestDerivative(t)
	fp := core.RequestFingerprint("fp-abort")
	w, err := d.Put(context.Background(), core.Identifier("a.jpg"), fp, core.MediaTypeOf(core.FormatJPEG))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	w.Write([]byte("never-installed"))
	if err := w.Abort(); err != nil {
		t.Fatalf("Abort: %v", err)
	}

	_, _, ok, _ := d.Get(context.Background(), fp)
	if ok {
		t.Error("an aborted build must not be retrievable")
	}
}

func TestDerivativePurgeByFingerprint(t *testing.T) {
	d := newTestDerivative(t)
	fp := core.RequestFingerprint("fp-purge")
	w, _ := d.Put(context.Background(), core.Identifier("a.jpg"), fp, core.MediaTypeOf(core.FormatJPEG))
	w.Write([]byte("x"))
	w.Close()

	if err := d.Purge(context.Background(), core.PurgeSelector{Fingerprint: fp}); err != nil {
		t.Fatalf("Purge: %v", err)
	}
	_, _, ok, _ := d.Get(context.Background(), fp)
	if ok {
		t.Error("expected entry to be gone after purge")
	}
}

func TestDerivativeStatsReflectInstalledEntries(t *testing.T) {
	d := newTestDerivative(t)
	fp := core.RequestFingerprint("fp-stats")
	w, _ := d.Put(context.Background(), core.Identifier("a.jpg"), fp, core.MediaTypeOf(core.FormatJPEG))
	payload := []byte("0123456789")
	w.Write(payload)
	w.Close()

	entries, total := d.Stats()
	if entries != 1 {
		t.Errorf("expected 1 entry, got %d", entries)
	}
	if total != int64(len(payload)) {
		t.Errorf("expected totalBytes=%d, got %d", len(payload), total)
	}
}

func TestNewDerivativeRequiresDirectory(t *testing.T) {
	if _, err := NewDerivative(config.CacheConfig{}); err == nil {
		t.Error("expected error when Directory is unset")
	}
}

func TestNewDerivativeCreatesDirectory(t *testing.T) {
	dir := t.TempDir() + "/nested/cache"
	_, err := NewDerivative(config.CacheConfig{Directory: dir, SizeBytes: 1024 * 1024})
	if err != nil {
		t.Fatalf("NewDerivative: %v", err)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("expected directory to be created: %v", err)
	}
}
