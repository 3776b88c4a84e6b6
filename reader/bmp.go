package reader

import (
	"bufio"
	"context"
	"image"

	"github.com/cantaloupe-core/imaging/core"
	apperrors "github.com/cantaloupe-core/imaging/errors"
	"golang.org/x/image/bmp"
)

// BMPReader decodes Windows BMP via golang.org/x/image/bmp. Single
// resolution level.
type BMPReader struct {
	open    core.StreamFactory
	info    *core.ImageInfo
	decoded image.Image
}

// NewBMPReaderFactory returns a core.ReaderFactory for BMP sources.
func NewBMPReaderFactory() core.ReaderFactory {
	return func(_ context.Context, handle core.SourceHandle, _ core.ReaderOptions) (core.Reader, error) {
		return &BMPReader{open: handleToFactory(handle)}, nil
	}
}

func (r *BMPReader) GetInfo(ctx context.Context) (core.ImageInfo, error) {
	if r.info != nil {
		return *r.info, nil
	}
	rc, err := r.open(ctx)
	if err != nil {
		return core.ImageInfo{}, apperrors.Wrap(apperrors.CategoryDecode, "bmp.info", err)
	}
	defer rc.Close()

	cfg, err := bmp.DecodeConfig(bufio.NewReader(rc))
	if err != nil {
		return core.ImageInfo{}, apperrors.Wrap(apperrors.CategoryDecode, "bmp.info", err)
	}
	info := core.ImageInfo{
		Width:      cfg.Width,
		Height:     cfg.Height,
		Levels:     []core.Level{{Width: cfg.Width, Height: cfg.Height}},
		BitDepth:   8,
		NumSamples: 3,
		MediaType:  core.MediaTypeOf(core.FormatBMP),
	}
	r.info = &info
	return info, nil
}

func (r *BMPReader) GetMetadata(context.Context, int) ([]byte, error) { return nil, nil }

func (r *BMPReader) Read(ctx context.Context, _ int, region *core.Region, subsample int) (core.PixelMatrix, core.Hints, error) {
	if err := ctx.Err(); err != nil {
		return core.PixelMatrix{}, core.Hints{}, apperrors.Wrap(apperrors.CategoryDecode, "bmp.read", err)
	}
	if r.decoded == nil {
		rc, err := r.open(ctx)
		if err != nil {
			return core.PixelMatrix{}, core.Hints{}, apperrors.Wrap(apperrors.CategoryDecode, "bmp.read", err)
		}
		defer rc.Close()
		img, err := bmp.Decode(bufio.NewReader(rc))
		if err != nil {
			return core.PixelMatrix{}, core.Hints{}, apperrors.Wrap(apperrors.CategoryDecode, "bmp.read", err)
		}
		r.decoded = img
	}
	return cropAndSubsample(r.decoded, region, subsample)
}

func (r *BMPReader) Close() error { return nil }
