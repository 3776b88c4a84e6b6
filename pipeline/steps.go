// Package pipeline provides the built-in IIIF operation steps and the
// extensible Step API.
package pipeline

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"io"
	"math"

	"github.com/cantaloupe-core/imaging/core"
	apperrors "github.com/cantaloupe-core/imaging/errors"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

func asImage(img core.PixelMatrix) (image.Image, error) {
	if img.Image == nil {
		return nil, apperrors.ErrEmptyInput
	}
	return img.Image, nil
}

// ── Crop ──────────────────────────────────────────────────────────────────────

// CropStep crops src to the rectangle produced by core.Crop.Rect, unless
// Hints.AlreadyCropped reports the reader already limited its decode to this
// region, in which case it is a no-op.
type CropStep struct {
	Crop core.Crop
	Skip bool // set from Hints.AlreadyCropped by the caller wiring the pipeline
}

func (s *CropStep) Name() string { return "crop" }

func (s *CropStep) Execute(ctx context.Context, img core.PixelMatrix) (core.PixelMatrix, error) {
	if err := ctx.Err(); err != nil {
		return core.PixelMatrix{}, apperrors.Wrap(apperrors.CategoryPipeline, s.Name(), err)
	}
	if s.Skip || s.Crop.IsIdentity() {
		return img, nil
	}
	src, err := asImage(img)
	if err != nil {
		return core.PixelMatrix{}, apperrors.New(apperrors.CategoryPipeline, s.Name(), err)
	}

	x, y, w, h := s.Crop.Rect(img.Width, img.Height)
	if w <= 0 || h <= 0 {
		return core.PixelMatrix{}, apperrors.New(apperrors.CategoryPipeline, s.Name(), apperrors.ErrInvalidDimensions)
	}
	rect := image.Rect(x, y, x+w, y+h)

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), src, rect.Min, draw.Src)

	out := img
	out.Image = dst
	out.Width, out.Height = w, h
	return out, nil
}

// ── Scale ─────────────────────────────────────────────────────────────────────

// ScaleStep resizes the image per core.Scale's resolved output dimensions.
type ScaleStep struct {
	Scale core.Scale
	// Resampler controls quality vs speed. Defaults to xdraw.CatmullRom.
	Resampler xdraw.Interpolator
}

func (s *ScaleStep) Name() string { return "scale" }

func (s *ScaleStep) Execute(ctx context.Context, img core.PixelMatrix) (core.PixelMatrix, error) {
	if err := ctx.Err(); err != nil {
		return core.PixelMatrix{}, apperrors.Wrap(apperrors.CategoryPipeline, s.Name(), err)
	}
	if s.Scale.IsIdentity() {
		return img, nil
	}
	src, err := asImage(img)
	if err != nil {
		return core.PixelMatrix{}, apperrors.New(apperrors.CategoryPipeline, s.Name(), err)
	}

	dstW, dstH := s.Scale.ResolveWH(img.Width, img.Height)
	if dstW <= 0 || dstH <= 0 {
		return core.PixelMatrix{}, apperrors.New(apperrors.CategoryPipeline, s.Name(), apperrors.ErrInvalidDimensions)
	}
	if dstW == img.Width && dstH == img.Height {
		return img, nil
	}

	sampler := s.Resampler
	if sampler == nil {
		sampler = xdraw.CatmullRom
	}

	dst := image.NewRGBA(image.Rect(0, 0, dstW, dstH))
	sampler.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Over, nil)

	out := img
	out.Image = dst
	out.Width, out.Height = dstW, dstH
	return out, nil
}

// ── Transpose ─────────────────────────────────────────────────────────────────

// TransposeStep mirrors the image across the horizontal or vertical axis.
type TransposeStep struct {
	Axis core.TransposeAxis
}

func (s *TransposeStep) Name() string { return "transpose" }

func (s *TransposeStep) Execute(_ context.Context, img core.PixelMatrix) (core.PixelMatrix, error) {
	src, err := asImage(img)
	if err != nil {
		return core.PixelMatrix{}, apperrors.New(apperrors.CategoryPipeline, s.Name(), err)
	}

	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			var dx, dy int
			switch s.Axis {
			case core.TransposeHorizontal:
				dx, dy = b.Max.X-1-x, y
			case core.TransposeVertical:
				dx, dy = x, b.Max.Y-1-y
			default:
				dx, dy = x, y
			}
			dst.Set(dx-b.Min.X, dy-b.Min.Y, src.At(x, y))
		}
	}

	out := img
	out.Image = dst
	return out, nil
}

// ── Rotate ────────────────────────────────────────────────────────────────────

// RotateStep rotates the image clockwise by Degrees (normalized to
// [0, 360)), expanding the canvas to fit and filling uncovered corners with
// Background (defaults to opaque white, the IIIF convention for non-90°
// rotations).
type RotateStep struct {
	Degrees    float64
	Background color.Color
}

func (s *RotateStep) Name() string { return "rotate" }

func (s *RotateStep) Execute(_ context.Context, img core.PixelMatrix) (core.PixelMatrix, error) {
	deg := math.Mod(s.Degrees, 360)
	if deg < 0 {
		deg += 360
	}
	if deg == 0 {
		return img, nil
	}
	src, err := asImage(img)
	if err != nil {
		return core.PixelMatrix{}, apperrors.New(apperrors.CategoryPipeline, s.Name(), err)
	}

	// Fast, lossless paths for the three axis-aligned rotations.
	switch deg {
	case 90, 180, 270:
		return rotateAxisAligned(img, src, deg)
	}

	bg := s.Background
	if bg == nil {
		bg = color.White
	}
	theta := deg * math.Pi / 180
	sin, cos := math.Sin(theta), math.Cos(theta)

	srcB := src.Bounds()
	w, h := float64(srcB.Dx()), float64(srcB.Dy())
	dstW := int(math.Ceil(math.Abs(w*cos) + math.Abs(h*sin)))
	dstH := int(math.Ceil(math.Abs(w*sin) + math.Abs(h*cos)))

	dst := image.NewRGBA(image.Rect(0, 0, dstW, dstH))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)

	// Rotate about the source center, then translate so the rotated bounds
	// land at (0,0)-(dstW,dstH).
	srcCx, srcCy := w/2, h/2
	dstCx, dstCy := float64(dstW)/2, float64(dstH)/2
	m := f64.Aff3{
		cos, -sin, dstCx - srcCx*cos + srcCy*sin,
		sin, cos, dstCy - srcCx*sin - srcCy*cos,
	}
	xdraw.CatmullRom.Transform(dst, m, src, srcB, xdraw.Over, nil)

	out := img
	out.Image = dst
	out.Width, out.Height = dstW, dstH
	return out, nil
}

func rotateAxisAligned(img core.PixelMatrix, src image.Image, deg float64) (core.PixelMatrix, error) {
	b := src.Bounds()
	var dst *image.RGBA
	switch deg {
	case 180:
		dst = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				dst.Set(b.Max.X-1-x-b.Min.X, b.Max.Y-1-y-b.Min.Y, src.At(x, y))
			}
		}
	case 90:
		dst = image.NewRGBA(image.Rect(0, 0, b.Dy(), b.Dx()))
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				dst.Set(b.Max.Y-1-y-b.Min.Y, x-b.Min.X, src.At(x, y))
			}
		}
	case 270:
		dst = image.NewRGBA(image.Rect(0, 0, b.Dy(), b.Dx()))
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				dst.Set(y-b.Min.Y, b.Max.X-1-x-b.Min.X, src.At(x, y))
			}
		}
	}
	out := img
	out.Image = dst
	out.Width, out.Height = dst.Bounds().Dx(), dst.Bounds().Dy()
	return out, nil
}

// ── Color transform ───────────────────────────────────────────────────────────

// ColorTransformStep reduces the image to grayscale or bitonal, or leaves it
// untouched for ColorIdentity. Luminance comes from color.GrayModel applied
// to the pixel values as they are; an embedded ICC profile
// (PixelMatrix.ICCProfile) is not consulted.
type ColorTransformStep struct {
	Mode core.ColorMode
}

func (s *ColorTransformStep) Name() string { return "color_transform" }

func (s *ColorTransformStep) Execute(_ context.Context, img core.PixelMatrix) (core.PixelMatrix, error) {
	if s.Mode == core.ColorIdentity {
		return img, nil
	}
	src, err := asImage(img)
	if err != nil {
		return core.PixelMatrix{}, apperrors.New(apperrors.CategoryPipeline, s.Name(), err)
	}

	b := src.Bounds()
	switch s.Mode {
	case core.ColorGray:
		dst := image.NewGray(b)
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				dst.Set(x, y, color.GrayModel.Convert(src.At(x, y)))
			}
		}
		out := img
		out.Image = dst
		return out, nil
	case core.ColorBitonal:
		dst := image.NewGray(b)
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				gray := color.GrayModel.Convert(src.At(x, y)).(color.Gray)
				if gray.Y >= 128 {
					dst.SetGray(x, y, color.Gray{Y: 255})
				} else {
					dst.SetGray(x, y, color.Gray{Y: 0})
				}
			}
		}
		out := img
		out.Image = dst
		return out, nil
	}
	return img, nil
}

// ── Sharpen ───────────────────────────────────────────────────────────────────

// SharpenStep applies an unsharp-mask convolution scaled by Amount (0 = no
// effect; 1.0 is a typical default strength).
type SharpenStep struct {
	Amount float64
}

func (s *SharpenStep) Name() string { return "sharpen" }

func (s *SharpenStep) Execute(_ context.Context, img core.PixelMatrix) (core.PixelMatrix, error) {
	if s.Amount <= 0 {
		return img, nil
	}
	src, err := asImage(img)
	if err != nil {
		return core.PixelMatrix{}, apperrors.New(apperrors.CategoryPipeline, s.Name(), err)
	}

	b := src.Bounds()
	rgba := toRGBA(src)
	dst := image.NewRGBA(b)

	k := s.Amount
	center := 1 + 4*k
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bch, a := sharpenPixel(rgba, x, y, b, center, k)
			dst.SetRGBA(x, y, color.RGBA{R: r, G: g, B: bch, A: a})
		}
	}

	out := img
	out.Image = dst
	return out, nil
}

func toRGBA(src image.Image) *image.RGBA {
	if r, ok := src.(*image.RGBA); ok {
		return r
	}
	b := src.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, src, b.Min, draw.Src)
	return dst
}

func sharpenPixel(src *image.RGBA, x, y int, b image.Rectangle, center, k float64) (r, g, bl, a uint8) {
	type acc struct{ r, g, b, a float64 }
	var sum acc
	neighbors := []image.Point{{x, y - 1}, {x, y + 1}, {x - 1, y}, {x + 1, y}}
	cr, cg, cb, ca := src.RGBAAt(x, y).R, src.RGBAAt(x, y).G, src.RGBAAt(x, y).B, src.RGBAAt(x, y).A
	sum.r, sum.g, sum.b, sum.a = float64(cr)*center, float64(cg)*center, float64(cb)*center, float64(ca)
	for _, n := range neighbors {
		nx, ny := n.X, n.Y
		if nx < b.Min.X {
			nx = b.Min.X
		}
		if nx >= b.Max.X {
			nx = b.Max.X - 1
		}
		if ny < b.Min.Y {
			ny = b.Min.Y
		}
		if ny >= b.Max.Y {
			ny = b.Max.Y - 1
		}
		c := src.RGBAAt(nx, ny)
		sum.r -= float64(c.R) * k
		sum.g -= float64(c.G) * k
		sum.b -= float64(c.B) * k
	}
	return clamp255(sum.r), clamp255(sum.g), clamp255(sum.b), ca
}

func clamp255(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

// ── Overlay ───────────────────────────────────────────────────────────────────

// OverlayStep composites a watermark image at one of the fixed corner/center
// positions, or tiled to repeat across the canvas.
type OverlayStep struct {
	Image    image.Image
	Position core.OverlayPosition
}

func (s *OverlayStep) Name() string { return "overlay" }

func (s *OverlayStep) Execute(_ context.Context, img core.PixelMatrix) (core.PixelMatrix, error) {
	if s.Image == nil {
		return img, nil
	}
	src, err := asImage(img)
	if err != nil {
		return core.PixelMatrix{}, apperrors.New(apperrors.CategoryPipeline, s.Name(), err)
	}

	dst := image.NewRGBA(src.Bounds())
	draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Src)

	ob := s.Image.Bounds()
	ow, oh := ob.Dx(), ob.Dy()
	b := dst.Bounds()

	if s.Position == core.OverlayRepeat {
		for y := b.Min.Y; y < b.Max.Y; y += oh {
			for x := b.Min.X; x < b.Max.X; x += ow {
				draw.Draw(dst, image.Rect(x, y, x+ow, y+oh), s.Image, ob.Min, draw.Over)
			}
		}
		out := img
		out.Image = dst
		return out, nil
	}

	var px, py int
	switch s.Position {
	case core.OverlayTopLeft:
		px, py = b.Min.X, b.Min.Y
	case core.OverlayTopRight:
		px, py = b.Max.X-ow, b.Min.Y
	case core.OverlayBottomLeft:
		px, py = b.Min.X, b.Max.Y-oh
	case core.OverlayBottomRight:
		px, py = b.Max.X-ow, b.Max.Y-oh
	case core.OverlayCenter:
		px, py = b.Min.X+(b.Dx()-ow)/2, b.Min.Y+(b.Dy()-oh)/2
	}
	draw.Draw(dst, image.Rect(px, py, px+ow, py+oh), s.Image, ob.Min, draw.Over)

	out := img
	out.Image = dst
	return out, nil
}

// ── Encode ────────────────────────────────────────────────────────────────────

// EncodeStep serializes the final PixelMatrix using the Writer registered
// for Format and writes the result to Output.
type EncodeStep struct {
	Registry core.Registry
	Format   core.Format
	Options  core.WriteOptions
	Output   io.Writer
}

func (s *EncodeStep) Name() string { return "encode" }

func (s *EncodeStep) Execute(ctx context.Context, img core.PixelMatrix) (core.PixelMatrix, error) {
	w, ok := s.Registry.WriterFactoryFor(s.Format)
	if !ok {
		return core.PixelMatrix{}, apperrors.New(apperrors.CategoryEncode, s.Name(),
			fmt.Errorf("%w: %s", apperrors.ErrUnsupportedFormat, s.Format))
	}
	if err := w().Write(ctx, s.Output, img, s.Options); err != nil {
		return core.PixelMatrix{}, err
	}
	return img, nil
}
