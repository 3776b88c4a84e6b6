package imaging

import (
	"bytes"
	"context"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"

	"github.com/cantaloupe-core/imaging/config"
	"github.com/cantaloupe-core/imaging/core"
	apperrors "github.com/cantaloupe-core/imaging/errors"
	"github.com/cantaloupe-core/imaging/pipeline"
)

// buildDerivative runs the full decode → pipeline → encode chain for a
// cache-miss request, installing the result into the derivative cache (if
// enabled) before returning it to the caller that lost the singleflight
// race or the one that won it.
func (s *Server) buildDerivative(
	ctx context.Context,
	cfg config.Config,
	id core.Identifier,
	list core.OperationList,
	fp core.RequestFingerprint,
	encodeOp core.Operation,
) (builtDerivative, error) {
	provider, err := s.resolveProvider(ctx, cfg, id)
	if err != nil {
		return builtDerivative{}, err
	}
	if provider == nil {
		return builtDerivative{}, apperrors.Internal("deliver.resolve", errNoProvider)
	}

	probe, err := provider.Probe(ctx, id)
	if err != nil {
		return builtDerivative{}, err
	}
	if probe.NotFound {
		return builtDerivative{}, apperrors.NotFound("deliver.probe")
	}
	if probe.Denied {
		return builtDerivative{}, apperrors.AccessDenied("deliver.probe")
	}
	factory, ok := s.reg.ReaderFactoryFor(probe.MediaType.Format)
	if !ok {
		return builtDerivative{}, apperrors.New(apperrors.CategoryUnsupportedSourceFormat, "deliver.reader", apperrors.ErrUnsupportedFormat)
	}

	handle, err := provider.Open(ctx, id)
	if err != nil {
		return builtDerivative{}, err
	}
	rdr, err := factory(ctx, handle, core.ReaderOptions{
		LimitTo8Bits: cfg.Processor.LimitTo8Bits,
		Normalize:    cfg.Processor.Normalize,
	})
	if err != nil {
		return builtDerivative{}, apperrors.Wrap(apperrors.CategoryDecode, "deliver.reader.new", err)
	}
	defer rdr.Close()

	info, err := rdr.GetInfo(ctx)
	if err != nil {
		return builtDerivative{}, err
	}
	info.Identifier = id
	s.info.Put(id, info)

	crop := list.Crop()
	scale := list.Scale()
	x, y, w, h := crop.Rect(info.Width, info.Height)

	// dstW/dstH are the full-resolution target dimensions the request asks
	// for, computed against the crop extent before any level/subsample
	// reduction. The reader already returns an image reduced by sel's level
	// and software subsample, so ScaleStep must resize to these absolute
	// pixels rather than re-apply scale's own (pre-reduction) factor to an
	// already-reduced image.
	dstW, dstH := scale.ResolveWH(w, h)

	residual := scale.ResidualScale(w, h)
	sel := core.SelectLevel(info, residual)
	s.logger.LogLevelSelection(id, sel)

	var region *core.Region
	if !crop.IsIdentity() {
		shift := uint(sel.LevelIndex)
		region = &core.Region{
			X:      x >> shift,
			Y:      y >> shift,
			Width:  w >> shift,
			Height: h >> shift,
		}
		if region.Width <= 0 {
			region.Width = 1
		}
		if region.Height <= 0 {
			region.Height = 1
		}
	}

	decoded, readHints, err := rdr.Read(ctx, sel.LevelIndex, region, sel.SoftwareSubsample)
	if err != nil {
		return builtDerivative{}, err
	}

	var buf bytes.Buffer
	pl := s.buildPipeline(list, readHints, cfg, dstW, dstH, &buf)
	pl.WithRetry(cfg.MaxRetries, cfg.RetryDelay)

	if _, _, err := pl.Run(ctx, decoded); err != nil {
		return builtDerivative{}, err
	}

	mt := core.MediaTypeOf(encodeOp.EncodeFormat)
	result := builtDerivative{bytes: buf.Bytes(), mediaType: mt}

	if s.derivative != nil {
		w, err := s.derivative.Put(ctx, id, fp, mt)
		if err == nil {
			if _, werr := w.Write(result.bytes); werr != nil {
				w.Abort()
			} else if cerr := w.Close(); cerr != nil {
				w.Abort()
			}
		}
	}
	return result, nil
}

// buildPipeline assembles the step chain for a normalized operation list,
// skipping the crop step when the reader already delivered the exact
// requested region, and appends an EncodeStep writing to out. dstW/dstH are
// the absolute full-resolution target dimensions computed in buildDerivative
// before the level/subsample reduction was applied to the decode; ScaleStep
// is wired to resize straight to them rather than re-applying the request's
// own (pre-reduction) scale factor to the already-reduced decoded image.
func (s *Server) buildPipeline(list core.OperationList, readHints core.Hints, cfg config.Config, dstW, dstH int, out io.Writer) *pipeline.Pipeline {
	pl := pipeline.New()
	for _, op := range list.Ops {
		switch op.Kind {
		case core.OpCrop:
			pl.Use(&pipeline.CropStep{Crop: op.Crop, Skip: readHints.AlreadyCropped})
		case core.OpScale:
			pl.Use(&pipeline.ScaleStep{Scale: core.Scale{Mode: core.ScaleNonAspectFill, Width: dstW, Height: dstH}})
		case core.OpTranspose:
			pl.Use(&pipeline.TransposeStep{Axis: op.Transpose})
		case core.OpRotate:
			pl.Use(&pipeline.RotateStep{Degrees: op.RotateDegrees})
		case core.OpColorTransform:
			pl.Use(&pipeline.ColorTransformStep{Mode: op.Color})
		case core.OpSharpen:
			pl.Use(&pipeline.SharpenStep{Amount: op.SharpenAmount})
		case core.OpOverlay:
			img, _, err := image.Decode(bytes.NewReader(op.OverlayImage))
			if err != nil {
				continue
			}
			pl.Use(&pipeline.OverlayStep{Image: img, Position: op.OverlayPosition})
		case core.OpEncode:
			pl.Use(&pipeline.EncodeStep{
				Registry: s.reg,
				Format:   op.EncodeFormat,
				Options: core.WriteOptions{
					Quality:     op.EncodeQuality,
					Compression: op.EncodeCompression,
					Preserve:    cfg.Processor.MetadataPreserve,
				},
				Output: out,
			})
		}
	}
	for _, h := range s.hookSet {
		pl.AddHook(h)
	}
	return pl
}
