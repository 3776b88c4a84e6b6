package reader

import (
	"bufio"
	"context"
	"image"
	"image/gif"

	"github.com/cantaloupe-core/imaging/core"
	apperrors "github.com/cantaloupe-core/imaging/errors"
)

// GIFReader decodes the first frame of a GIF. Single resolution level.
type GIFReader struct {
	open    core.StreamFactory
	info    *core.ImageInfo
	decoded image.Image
}

// NewGIFReaderFactory returns a core.ReaderFactory for GIF sources.
func NewGIFReaderFactory() core.ReaderFactory {
	return func(_ context.Context, handle core.SourceHandle, _ core.ReaderOptions) (core.Reader, error) {
		return &GIFReader{open: handleToFactory(handle)}, nil
	}
}

func (r *GIFReader) GetInfo(ctx context.Context) (core.ImageInfo, error) {
	if r.info != nil {
		return *r.info, nil
	}
	rc, err := r.open(ctx)
	if err != nil {
		return core.ImageInfo{}, apperrors.Wrap(apperrors.CategoryDecode, "gif.info", err)
	}
	defer rc.Close()

	cfg, err := gif.DecodeConfig(bufio.NewReader(rc))
	if err != nil {
		return core.ImageInfo{}, apperrors.Wrap(apperrors.CategoryDecode, "gif.info", err)
	}
	info := core.ImageInfo{
		Width:      cfg.Width,
		Height:     cfg.Height,
		Levels:     []core.Level{{Width: cfg.Width, Height: cfg.Height}},
		BitDepth:   8,
		NumSamples: 3,
		MediaType:  core.MediaTypeOf(core.FormatGIF),
	}
	r.info = &info
	return info, nil
}

func (r *GIFReader) GetMetadata(context.Context, int) ([]byte, error) { return nil, nil }

func (r *GIFReader) Read(ctx context.Context, _ int, region *core.Region, subsample int) (core.PixelMatrix, core.Hints, error) {
	if err := ctx.Err(); err != nil {
		return core.PixelMatrix{}, core.Hints{}, apperrors.Wrap(apperrors.CategoryDecode, "gif.read", err)
	}
	if r.decoded == nil {
		rc, err := r.open(ctx)
		if err != nil {
			return core.PixelMatrix{}, core.Hints{}, apperrors.Wrap(apperrors.CategoryDecode, "gif.read", err)
		}
		defer rc.Close()
		img, err := gif.Decode(bufio.NewReader(rc))
		if err != nil {
			return core.PixelMatrix{}, core.Hints{}, apperrors.Wrap(apperrors.CategoryDecode, "gif.read", err)
		}
		r.decoded = img
	}
	return cropAndSubsample(r.decoded, region, subsample)
}

func (r *GIFReader) Close() error { return nil }
