package writer

import (
	"context"
	"image"
	"io"

	"github.com/cantaloupe-core/imaging/core"
	apperrors "github.com/cantaloupe-core/imaging/errors"
	"golang.org/x/image/tiff"
)

// TIFF encodes a PixelMatrix as baseline-TIFF, deflate-compressed by
// default; Compression in WriteOptions selects "none"|"deflate" (LZW
// encode is not exposed by golang.org/x/image/tiff, so a "lzw" request
// falls back to deflate).
type TIFF struct{}

// NewTIFF returns a TIFF writer factory.
func NewTIFF() core.WriterFactory {
	return func() core.Writer { return &TIFF{} }
}

func (t *TIFF) Format() core.Format { return core.FormatTIFF }

func (t *TIFF) Write(ctx context.Context, w io.Writer, img core.PixelMatrix, opts core.WriteOptions) error {
	if err := ctx.Err(); err != nil {
		return apperrors.Wrap(apperrors.CategoryEncode, "tiff.write", err)
	}
	src, ok := img.Image.(image.Image)
	if !ok || src == nil {
		return apperrors.New(apperrors.CategoryEncode, "tiff.write", apperrors.ErrEmptyInput)
	}

	compression := tiff.Deflate
	if opts.Compression == "none" {
		compression = tiff.Uncompressed
	}
	if err := tiff.Encode(w, src, &tiff.Options{Compression: compression, Predictor: true}); err != nil {
		return apperrors.Wrap(apperrors.CategoryEncode, "tiff.write", err)
	}
	return nil
}
