// Package writer provides the per-format encoding capability: implementations
// of core.Writer for each format in core.WritableFormats.
package writer

import (
	"context"
	"image"
	"image/jpeg"
	"io"

	"github.com/cantaloupe-core/imaging/core"
	apperrors "github.com/cantaloupe-core/imaging/errors"
)

// JPEG encodes a PixelMatrix as baseline JPEG.
type JPEG struct {
	DefaultQuality int
}

// NewJPEG returns a JPEG writer factory bound to core.Registry.
func NewJPEG(defaultQuality int) core.WriterFactory {
	if defaultQuality <= 0 {
		defaultQuality = 85
	}
	return func() core.Writer { return &JPEG{DefaultQuality: defaultQuality} }
}

func (j *JPEG) Format() core.Format { return core.FormatJPEG }

func (j *JPEG) Write(ctx context.Context, w io.Writer, img core.PixelMatrix, opts core.WriteOptions) error {
	if err := ctx.Err(); err != nil {
		return apperrors.Wrap(apperrors.CategoryEncode, "jpeg.write", err)
	}
	src, ok := img.Image.(image.Image)
	if !ok || src == nil {
		return apperrors.New(apperrors.CategoryEncode, "jpeg.write", apperrors.ErrEmptyInput)
	}

	quality := opts.Quality
	if quality <= 0 {
		quality = j.DefaultQuality
	}
	if err := jpeg.Encode(w, src, &jpeg.Options{Quality: quality}); err != nil {
		return apperrors.Wrap(apperrors.CategoryEncode, "jpeg.write", err)
	}
	return nil
}
