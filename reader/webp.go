package reader

import (
	"bufio"
	"context"
	"image"

	"golang.org/x/image/webp"

	"github.com/cantaloupe-core/imaging/core"
	apperrors "github.com/cantaloupe-core/imaging/errors"
)

// WebPReader decodes lossy WebP via golang.org/x/image/webp; lossless and
// animated WebP are not supported by that package and are rejected by its
// Decode call. Single resolution level; region/subsample are applied in
// software after a full decode.
type WebPReader struct {
	open    core.StreamFactory
	info    *core.ImageInfo
	decoded image.Image
}

// NewWebPReaderFactory returns a core.ReaderFactory for WebP sources.
func NewWebPReaderFactory() core.ReaderFactory {
	return func(_ context.Context, handle core.SourceHandle, _ core.ReaderOptions) (core.Reader, error) {
		return &WebPReader{open: handleToFactory(handle)}, nil
	}
}

func (r *WebPReader) GetInfo(ctx context.Context) (core.ImageInfo, error) {
	if r.info != nil {
		return *r.info, nil
	}
	rc, err := r.open(ctx)
	if err != nil {
		return core.ImageInfo{}, apperrors.Wrap(apperrors.CategoryDecode, "webp.info", err)
	}
	defer rc.Close()

	cfg, err := webp.DecodeConfig(bufio.NewReader(rc))
	if err != nil {
		return core.ImageInfo{}, apperrors.Wrap(apperrors.CategoryDecode, "webp.info", err)
	}
	info := core.ImageInfo{
		Width:      cfg.Width,
		Height:     cfg.Height,
		Levels:     []core.Level{{Width: cfg.Width, Height: cfg.Height}},
		BitDepth:   8,
		NumSamples: samplesForColorModel(cfg.ColorModel),
		MediaType:  core.MediaTypeOf(core.FormatWebP),
	}
	r.info = &info
	return info, nil
}

func (r *WebPReader) GetMetadata(context.Context, int) ([]byte, error) { return nil, nil }

func (r *WebPReader) Read(ctx context.Context, _ int, region *core.Region, subsample int) (core.PixelMatrix, core.Hints, error) {
	if err := ctx.Err(); err != nil {
		return core.PixelMatrix{}, core.Hints{}, apperrors.Wrap(apperrors.CategoryDecode, "webp.read", err)
	}
	if r.decoded == nil {
		rc, err := r.open(ctx)
		if err != nil {
			return core.PixelMatrix{}, core.Hints{}, apperrors.Wrap(apperrors.CategoryDecode, "webp.read", err)
		}
		defer rc.Close()
		img, err := webp.Decode(bufio.NewReader(rc))
		if err != nil {
			return core.PixelMatrix{}, core.Hints{}, apperrors.Wrap(apperrors.CategoryDecode, "webp.read", err)
		}
		r.decoded = img
	}
	return cropAndSubsample(r.decoded, region, subsample)
}

func (r *WebPReader) Close() error { return nil }
