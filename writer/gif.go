package writer

import (
	"context"
	"image"
	"image/gif"
	"io"

	"github.com/cantaloupe-core/imaging/core"
	apperrors "github.com/cantaloupe-core/imaging/errors"
)

// GIF encodes a PixelMatrix as a single-frame GIF (256-color palette,
// chosen by the stdlib encoder's default quantizer).
type GIF struct{}

// NewGIF returns a GIF writer factory.
func NewGIF() core.WriterFactory {
	return func() core.Writer { return &GIF{} }
}

func (g *GIF) Format() core.Format { return core.FormatGIF }

func (g *GIF) Write(ctx context.Context, w io.Writer, img core.PixelMatrix, _ core.WriteOptions) error {
	if err := ctx.Err(); err != nil {
		return apperrors.Wrap(apperrors.CategoryEncode, "gif.write", err)
	}
	src, ok := img.Image.(image.Image)
	if !ok || src == nil {
		return apperrors.New(apperrors.CategoryEncode, "gif.write", apperrors.ErrEmptyInput)
	}
	if err := gif.Encode(w, src, nil); err != nil {
		return apperrors.Wrap(apperrors.CategoryEncode, "gif.write", err)
	}
	return nil
}
