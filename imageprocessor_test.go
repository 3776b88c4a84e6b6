package imaging

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cantaloupe-core/imaging/config"
	"github.com/cantaloupe-core/imaging/core"
)

func writeFixtureJPEG(t *testing.T, dir, name string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 10, G: 200, B: 10, A: 255})
		}
	}
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer f.Close()
	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("jpeg.Encode: %v", err)
	}
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()
	writeFixtureJPEG(t, dir, "a.jpg", 100, 80)

	cfg := DefaultConfig()
	cfg.Filesystem.RootDir = dir
	cfg.Filesystem.LookupStrategy = config.LookupBasic
	cfg.Resolver.Static = config.ResolverFilesystem
	cfg.Cache.Directory = filepath.Join(dir, "cache")

	s, err := New(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestServerInfoReturnsSourceDimensions(t *testing.T) {
	s := newTestServer(t)
	info, err := s.Info(context.Background(), core.Identifier("a.jpg"))
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	if info.Width != 100 || info.Height != 80 {
		t.Errorf("got %dx%d, want 100x80", info.Width, info.Height)
	}
}

func TestServerInfoMissingIdentifierIsNotFound(t *testing.T) {
	s := newTestServer(t)
	_, err := s.Info(context.Background(), core.Identifier("missing.jpg"))
	if err == nil {
		t.Fatal("expected an error for a missing identifier")
	}
}

func TestServerDeliverEncodesAndCachesFullImage(t *testing.T) {
	s := newTestServer(t)
	ops := []core.Operation{{Kind: core.OpEncode, EncodeFormat: core.FormatJPEG, EncodeQuality: 90}}

	var first bytes.Buffer
	mt, err := s.Deliver(context.Background(), core.Identifier("a.jpg"), ops, &first)
	if err != nil {
		t.Fatalf("Deliver (miss): %v", err)
	}
	if mt.Format != core.FormatJPEG {
		t.Errorf("got media type %v, want jpeg", mt)
	}
	if first.Len() == 0 {
		t.Fatal("expected non-empty encoded output")
	}

	var second bytes.Buffer
	if _, err := s.Deliver(context.Background(), core.Identifier("a.jpg"), ops, &second); err != nil {
		t.Fatalf("Deliver (hit): %v", err)
	}
	if !bytes.Equal(first.Bytes(), second.Bytes()) {
		t.Error("a derivative-cache hit must return byte-identical output to the original build")
	}

	processed, errCount, entries, cacheBytes := s.Stats()
	if processed != 2 {
		t.Errorf("got processed=%d, want 2", processed)
	}
	if errCount != 0 {
		t.Errorf("got errors=%d, want 0", errCount)
	}
	if entries != 1 {
		t.Errorf("got cacheEntries=%d, want 1", entries)
	}
	if cacheBytes == 0 {
		t.Error("expected the derivative cache to report nonzero bytes")
	}
}

func TestServerDeliverScalesCrops(t *testing.T) {
	s := newTestServer(t)
	ops := []core.Operation{
		{Kind: core.OpCrop, Crop: core.Crop{Mode: core.CropSquareCenter}},
		{Kind: core.OpScale, Scale: core.Scale{Mode: core.ScaleFitWidth, Width: 20}},
		{Kind: core.OpEncode, EncodeFormat: core.FormatJPEG, EncodeQuality: 85},
	}
	var buf bytes.Buffer
	mt, err := s.Deliver(context.Background(), core.Identifier("a.jpg"), ops, &buf)
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if mt.Format != core.FormatJPEG {
		t.Errorf("got media type %v, want jpeg", mt)
	}
	img, err := jpeg.Decode(&buf)
	if err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if img.Bounds().Dx() != 20 {
		t.Errorf("got width %d, want 20 (square-crop then fit-width 20)", img.Bounds().Dx())
	}
}

// TestServerDeliverPercentScaleAppliesOnce guards against double-applying
// the requested scale: buildDerivative picks a resolution level/subsample
// using the same residual scale, so the decoded matrix handed to the
// pipeline is already reduced. Unlike an absolute target (fitWidth, which
// hardcodes its output width regardless of input size and so can't expose
// this), a percent Scale multiplies whatever dimensions it's given — if the
// pipeline naively re-applied the original percent to the already-reduced
// image, the output would come out scaled down twice.
func TestServerDeliverPercentScaleAppliesOnce(t *testing.T) {
	s := newTestServer(t)
	ops := []core.Operation{
		{Kind: core.OpCrop, Crop: core.Crop{Mode: core.CropSquareCenter}},
		{Kind: core.OpScale, Scale: core.Scale{Mode: core.ScalePercent, Percent: 0.25}},
		{Kind: core.OpEncode, EncodeFormat: core.FormatJPEG, EncodeQuality: 85},
	}
	var buf bytes.Buffer
	if _, err := s.Deliver(context.Background(), core.Identifier("a.jpg"), ops, &buf); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	img, err := jpeg.Decode(&buf)
	if err != nil {
		t.Fatalf("decode result: %v", err)
	}
	// Square-center crop of 100x80 -> 80x80; 25% of that is 20x20. A double
	// application would instead yield 5x5.
	if img.Bounds().Dx() != 20 || img.Bounds().Dy() != 20 {
		t.Errorf("got %dx%d, want 20x20 (square-crop 80x80 then scale=25%%)", img.Bounds().Dx(), img.Bounds().Dy())
	}
}

func TestServerDeliverUnsupportedIdentifierIncrementsErrorStat(t *testing.T) {
	s := newTestServer(t)
	var buf bytes.Buffer
	ops := []core.Operation{{Kind: core.OpEncode, EncodeFormat: core.FormatJPEG}}
	if _, err := s.Deliver(context.Background(), core.Identifier("missing.jpg"), ops, &buf); err == nil {
		t.Fatal("expected an error for a missing identifier")
	}
	_, errCount, _, _ := s.Stats()
	if errCount != 1 {
		t.Errorf("got errors=%d, want 1", errCount)
	}
}

func TestServerReloadSwapsConfigForLaterCalls(t *testing.T) {
	s := newTestServer(t)
	cfg := s.cfg.Load()
	cfg.Processor.DefaultQuality = 42
	if err := s.Reload(cfg); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if got := s.cfg.Load().Processor.DefaultQuality; got != 42 {
		t.Errorf("got DefaultQuality=%d after Reload, want 42", got)
	}
}

func TestServerReloadRejectsInvalidConfig(t *testing.T) {
	s := newTestServer(t)
	cfg := s.cfg.Load()
	cfg.Processor.DefaultQuality = 0
	if err := s.Reload(cfg); err == nil {
		t.Error("expected Reload to reject an invalid config")
	}
}

func TestServerAddHookIsInvokedDuringDeliver(t *testing.T) {
	s := newTestServer(t)
	calls := 0
	s.AddHook(countingHook{calls: &calls})

	ops := []core.Operation{{Kind: core.OpEncode, EncodeFormat: core.FormatJPEG}}
	var buf bytes.Buffer
	if _, err := s.Deliver(context.Background(), core.Identifier("a.jpg"), ops, &buf); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if calls == 0 {
		t.Error("expected the added hook to observe at least one pipeline step")
	}
}

type countingHook struct {
	calls *int
}

func (h countingHook) BeforeStep(context.Context, string, core.PixelMatrix) {}
func (h countingHook) AfterStep(context.Context, string, core.PixelMatrix, time.Duration, error) {
	*h.calls++
}
