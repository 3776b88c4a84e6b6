package reader

import (
	"bufio"
	"context"
	"image"

	"github.com/cantaloupe-core/imaging/core"
	apperrors "github.com/cantaloupe-core/imaging/errors"
	jp2 "github.com/mrjoshuak/go-jpeg2000"
)

// JPEG2000Reader decodes JP2/J2K via mrjoshuak/go-jpeg2000, which exposes
// exactly the capability this reader needs: DecodeArea maps onto a Region,
// and ReduceResolution maps onto the reduction factor's DWT level, so both
// can be pushed down into the decoder instead of decoded-then-discarded.
type JPEG2000Reader struct {
	open core.StreamFactory
	info *core.ImageInfo
	meta *jp2.Metadata
}

// NewJPEG2000ReaderFactory returns a core.ReaderFactory for JP2/J2K sources.
func NewJPEG2000ReaderFactory() core.ReaderFactory {
	return func(_ context.Context, handle core.SourceHandle, _ core.ReaderOptions) (core.Reader, error) {
		return &JPEG2000Reader{open: handleToFactory(handle)}, nil
	}
}

func (r *JPEG2000Reader) GetInfo(ctx context.Context) (core.ImageInfo, error) {
	if r.info != nil {
		return *r.info, nil
	}
	rc, err := r.open(ctx)
	if err != nil {
		return core.ImageInfo{}, apperrors.Wrap(apperrors.CategoryDecode, "jp2.info", err)
	}
	defer rc.Close()

	meta, err := jp2.DecodeMetadata(bufio.NewReader(rc))
	if err != nil {
		return core.ImageInfo{}, apperrors.Wrap(apperrors.CategoryDecode, "jp2.info", err)
	}
	r.meta = meta

	levels := make([]core.Level, 0, meta.NumResolutions)
	w, h := meta.Width, meta.Height
	for i := 0; i < meta.NumResolutions; i++ {
		levels = append(levels, core.Level{
			Width: w, Height: h,
			TileWidth: meta.TileWidth, TileHeight: meta.TileHeight,
		})
		w, h = (w+1)/2, (h+1)/2
	}
	if len(levels) == 0 {
		levels = []core.Level{{Width: meta.Width, Height: meta.Height}}
	}

	info := core.ImageInfo{
		Width:      meta.Width,
		Height:     meta.Height,
		Levels:     levels,
		BitDepth:   meta.BitsPerComponent,
		NumSamples: meta.NumComponents,
		HasICC:     len(meta.ICCProfile) > 0,
		MediaType:  core.MediaTypeOf(core.FormatJPEG2000),
	}
	r.info = &info
	return info, nil
}

func (r *JPEG2000Reader) GetMetadata(ctx context.Context, _ int) ([]byte, error) {
	if _, err := r.GetInfo(ctx); err != nil {
		return nil, err
	}
	if r.meta == nil {
		return nil, nil
	}
	return r.meta.ICCProfile, nil
}

func (r *JPEG2000Reader) Read(ctx context.Context, level int, region *core.Region, subsample int) (core.PixelMatrix, core.Hints, error) {
	if err := ctx.Err(); err != nil {
		return core.PixelMatrix{}, core.Hints{}, apperrors.Wrap(apperrors.CategoryDecode, "jp2.read", err)
	}
	info, err := r.GetInfo(ctx)
	if err != nil {
		return core.PixelMatrix{}, core.Hints{}, err
	}

	rc, err := r.open(ctx)
	if err != nil {
		return core.PixelMatrix{}, core.Hints{}, apperrors.Wrap(apperrors.CategoryDecode, "jp2.read", err)
	}
	defer rc.Close()

	cfg := jp2.Config{ReduceResolution: level}
	if cfg.ReduceResolution < 0 {
		cfg.ReduceResolution = 0
	}
	if region != nil {
		rect := image.Rect(region.X, region.Y, region.X+region.Width, region.Y+region.Height)
		cfg.DecodeArea = &rect
	}

	img, err := jp2.DecodeConfig(bufio.NewReader(rc), cfg)
	if err != nil {
		return core.PixelMatrix{}, core.Hints{}, apperrors.Wrap(apperrors.CategoryDecode, "jp2.read", err)
	}

	pm, hints, err := cropAndSubsample(img, nil, subsample)
	if err != nil {
		return core.PixelMatrix{}, core.Hints{}, err
	}
	pm.BitDepth = info.BitDepth
	if len(r.meta.ICCProfile) > 0 {
		pm.ICCProfile = r.meta.ICCProfile
	}
	hints.AlreadyCropped = region != nil
	return pm, hints, nil
}

func (r *JPEG2000Reader) Close() error { return nil }
