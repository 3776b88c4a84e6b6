package writer

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/cantaloupe-core/imaging/core"
)

func testMatrix(w, h int) core.PixelMatrix {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 100, G: 150, B: 200, A: 255})
		}
	}
	return core.PixelMatrix{Image: img, Width: w, Height: h}
}

func TestJPEGWriteRoundTrips(t *testing.T) {
	factory := NewJPEG(85)
	w := factory()
	var buf bytes.Buffer
	if err := w.Write(context.Background(), &buf, testMatrix(40, 30), core.WriteOptions{Quality: 90}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if buf.Len() == 0 {
		t.Fatal("expected non-empty encoded output")
	}
	if w.Format() != core.FormatJPEG {
		t.Errorf("Format() = %s, want jpeg", w.Format())
	}
}

func TestJPEGWriteFallsBackToDefaultQuality(t *testing.T) {
	factory := NewJPEG(77)
	w := factory()
	var buf bytes.Buffer
	if err := w.Write(context.Background(), &buf, testMatrix(10, 10), core.WriteOptions{}); err != nil {
		t.Fatalf("Write with Quality=0 should fall back to default: %v", err)
	}
}

func TestJPEGWriteRejectsEmptyInput(t *testing.T) {
	factory := NewJPEG(85)
	w := factory()
	var buf bytes.Buffer
	if err := w.Write(context.Background(), &buf, core.PixelMatrix{}, core.WriteOptions{}); err == nil {
		t.Error("expected error for an empty PixelMatrix")
	}
}

func TestPNGWriteProducesDecodableImage(t *testing.T) {
	w := NewPNG()()
	var buf bytes.Buffer
	m := testMatrix(20, 20)
	if err := w.Write(context.Background(), &buf, m, core.WriteOptions{}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	decoded, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("decode produced PNG: %v", err)
	}
	if decoded.Bounds().Dx() != 20 || decoded.Bounds().Dy() != 20 {
		t.Errorf("decoded dims = %v, want 20x20", decoded.Bounds())
	}
}

func TestRegisterAllWiresEveryWritableFormat(t *testing.T) {
	reg := core.NewRegistry()
	RegisterAll(reg, 85)
	for _, f := range core.WritableFormats {
		if _, ok := reg.WriterFactoryFor(f); !ok {
			t.Errorf("no writer registered for %s", f)
		}
	}
}

func TestWriteRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := NewPNG()()
	var buf bytes.Buffer
	if err := w.Write(ctx, &buf, testMatrix(10, 10), core.WriteOptions{}); err == nil {
		t.Error("expected error for a canceled context")
	}
}
