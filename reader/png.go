package reader

import (
	"bufio"
	"context"
	"image"
	"image/png"

	"github.com/cantaloupe-core/imaging/core"
	apperrors "github.com/cantaloupe-core/imaging/errors"
)

// PNGReader decodes PNG. Single resolution level; region/subsample are
// applied in software after a full decode.
type PNGReader struct {
	open    core.StreamFactory
	info    *core.ImageInfo
	decoded image.Image
}

// NewPNGReaderFactory returns a core.ReaderFactory for PNG sources.
func NewPNGReaderFactory() core.ReaderFactory {
	return func(_ context.Context, handle core.SourceHandle, _ core.ReaderOptions) (core.Reader, error) {
		return &PNGReader{open: handleToFactory(handle)}, nil
	}
}

func (r *PNGReader) GetInfo(ctx context.Context) (core.ImageInfo, error) {
	if r.info != nil {
		return *r.info, nil
	}
	rc, err := r.open(ctx)
	if err != nil {
		return core.ImageInfo{}, apperrors.Wrap(apperrors.CategoryDecode, "png.info", err)
	}
	defer rc.Close()

	cfg, err := png.DecodeConfig(bufio.NewReader(rc))
	if err != nil {
		return core.ImageInfo{}, apperrors.Wrap(apperrors.CategoryDecode, "png.info", err)
	}
	info := core.ImageInfo{
		Width:      cfg.Width,
		Height:     cfg.Height,
		Levels:     []core.Level{{Width: cfg.Width, Height: cfg.Height}},
		BitDepth:   8,
		NumSamples: samplesForColorModel(cfg.ColorModel),
		MediaType:  core.MediaTypeOf(core.FormatPNG),
	}
	r.info = &info
	return info, nil
}

func (r *PNGReader) GetMetadata(context.Context, int) ([]byte, error) { return nil, nil }

func (r *PNGReader) Read(ctx context.Context, _ int, region *core.Region, subsample int) (core.PixelMatrix, core.Hints, error) {
	if err := ctx.Err(); err != nil {
		return core.PixelMatrix{}, core.Hints{}, apperrors.Wrap(apperrors.CategoryDecode, "png.read", err)
	}
	if r.decoded == nil {
		rc, err := r.open(ctx)
		if err != nil {
			return core.PixelMatrix{}, core.Hints{}, apperrors.Wrap(apperrors.CategoryDecode, "png.read", err)
		}
		defer rc.Close()
		img, err := png.Decode(bufio.NewReader(rc))
		if err != nil {
			return core.PixelMatrix{}, core.Hints{}, apperrors.Wrap(apperrors.CategoryDecode, "png.read", err)
		}
		r.decoded = img
	}
	return cropAndSubsample(r.decoded, region, subsample)
}

func (r *PNGReader) Close() error { return nil }
