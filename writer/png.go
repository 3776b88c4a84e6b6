package writer

import (
	"context"
	"image"
	"image/png"
	"io"

	"github.com/cantaloupe-core/imaging/core"
	apperrors "github.com/cantaloupe-core/imaging/errors"
)

// PNG encodes a PixelMatrix as PNG, lossless at any bit depth stdlib
// image/png supports.
type PNG struct{}

// NewPNG returns a PNG writer factory.
func NewPNG() core.WriterFactory {
	return func() core.Writer { return &PNG{} }
}

func (p *PNG) Format() core.Format { return core.FormatPNG }

func (p *PNG) Write(ctx context.Context, w io.Writer, img core.PixelMatrix, _ core.WriteOptions) error {
	if err := ctx.Err(); err != nil {
		return apperrors.Wrap(apperrors.CategoryEncode, "png.write", err)
	}
	src, ok := img.Image.(image.Image)
	if !ok || src == nil {
		return apperrors.New(apperrors.CategoryEncode, "png.write", apperrors.ErrEmptyInput)
	}
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(w, src); err != nil {
		return apperrors.Wrap(apperrors.CategoryEncode, "png.write", err)
	}
	return nil
}
