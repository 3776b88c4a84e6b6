// Package reader provides the per-format decoding capability: implementations
// of core.Reader for every format core.DetectFormat can recognize.
package reader

import (
	"bufio"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"io"

	"github.com/cantaloupe-core/imaging/core"
	apperrors "github.com/cantaloupe-core/imaging/errors"
)

// JPEGReader decodes baseline/progressive JPEG. It has a single resolution
// level; region selection and subsampling are applied in software after a
// full decode, since the stdlib decoder exposes no partial-DCT API.
type JPEGReader struct {
	open    core.StreamFactory
	opts    core.ReaderOptions
	info    *core.ImageInfo
	decoded image.Image
}

// NewJPEGReaderFactory returns a core.ReaderFactory for JPEG sources.
func NewJPEGReaderFactory() core.ReaderFactory {
	return func(_ context.Context, handle core.SourceHandle, opts core.ReaderOptions) (core.Reader, error) {
		return &JPEGReader{open: handleToFactory(handle), opts: opts}, nil
	}
}

func (r *JPEGReader) GetInfo(ctx context.Context) (core.ImageInfo, error) {
	if r.info != nil {
		return *r.info, nil
	}
	rc, err := r.open(ctx)
	if err != nil {
		return core.ImageInfo{}, apperrors.Wrap(apperrors.CategoryDecode, "jpeg.info", err)
	}
	defer rc.Close()

	cfg, err := jpeg.DecodeConfig(bufio.NewReader(rc))
	if err != nil {
		return core.ImageInfo{}, apperrors.Wrap(apperrors.CategoryDecode, "jpeg.info", err)
	}
	info := core.ImageInfo{
		Width:      cfg.Width,
		Height:     cfg.Height,
		Levels:     []core.Level{{Width: cfg.Width, Height: cfg.Height}},
		BitDepth:   8,
		NumSamples: samplesForColorModel(cfg.ColorModel),
		MediaType:  core.MediaTypeOf(core.FormatJPEG),
	}
	r.info = &info
	return info, nil
}

func (r *JPEGReader) GetMetadata(ctx context.Context, _ int) ([]byte, error) {
	return nil, nil
}

func (r *JPEGReader) Read(ctx context.Context, level int, region *core.Region, subsample int) (core.PixelMatrix, core.Hints, error) {
	if err := ctx.Err(); err != nil {
		return core.PixelMatrix{}, core.Hints{}, apperrors.Wrap(apperrors.CategoryDecode, "jpeg.read", err)
	}
	if r.decoded == nil {
		rc, err := r.open(ctx)
		if err != nil {
			return core.PixelMatrix{}, core.Hints{}, apperrors.Wrap(apperrors.CategoryDecode, "jpeg.read", err)
		}
		defer rc.Close()
		img, err := jpeg.Decode(bufio.NewReader(rc))
		if err != nil {
			return core.PixelMatrix{}, core.Hints{}, apperrors.Wrap(apperrors.CategoryDecode, "jpeg.read", err)
		}
		r.decoded = img
	}
	return cropAndSubsample(r.decoded, region, subsample)
}

func (r *JPEGReader) Close() error { return nil }

// ── shared helpers used by the stdlib-backed single-level readers ───────────

func handleToFactory(h core.SourceHandle) core.StreamFactory {
	if h.IsFile() {
		path := h.FilePath
		return func(_ context.Context) (io.ReadCloser, error) { return openFile(path) }
	}
	return h.Stream
}

func samplesForColorModel(m color.Model) int {
	switch m {
	case color.GrayModel, color.Gray16Model:
		return 1
	case color.CMYKModel:
		return 4
	default:
		return 3
	}
}

// cropAndSubsample applies region (nil = full image) and a power-of-two
// software subsample to a fully decoded image.Image.
func cropAndSubsample(src image.Image, region *core.Region, subsample int) (core.PixelMatrix, core.Hints, error) {
	b := src.Bounds()
	rx, ry, rw, rh := b.Min.X, b.Min.Y, b.Dx(), b.Dy()
	if region != nil {
		rx, ry, rw, rh = region.X, region.Y, region.Width, region.Height
	}
	if subsample <= 0 {
		subsample = 1
	}

	outW, outH := rw, rh
	if subsample > 1 {
		outW, outH = rw/subsample, rh/subsample
	}
	if outW <= 0 {
		outW = 1
	}
	if outH <= 0 {
		outH = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, outW, outH))
	for y := 0; y < outH; y++ {
		for x := 0; x < outW; x++ {
			sx := rx + x*subsample
			sy := ry + y*subsample
			dst.Set(x, y, src.At(sx, sy))
		}
	}

	pm := core.PixelMatrix{Image: dst, Width: outW, Height: outH, Channels: 4, BitDepth: 8}
	return pm, core.Hints{AlreadyCropped: region != nil}, nil
}
