package core

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// ── Scale ───────────────────────────────────────────────────────────────────

// ScaleMode selects how a Scale operation's dimensions are interpreted.
type ScaleMode int

const (
	ScaleFull ScaleMode = iota
	ScalePercent
	ScaleFitWidth
	ScaleFitHeight
	ScaleFitInside
	ScaleNonAspectFill
)

// Scale is one of {full, percent p, fitWidth w, fitHeight h, fitInside
// (w,h), nonAspectFill (w,h)}. full is equivalent to percent 1.0.
type Scale struct {
	Mode    ScaleMode
	Percent float64
	Width   int
	Height  int
}

// IsIdentity reports whether this Scale leaves the image unchanged.
func (s Scale) IsIdentity() bool {
	return s.Mode == ScaleFull || (s.Mode == ScalePercent && s.Percent == 1.0)
}

// ResolveWH computes the output (width, height) for a source of size
// (srcW, srcH) under this Scale.
func (s Scale) ResolveWH(srcW, srcH int) (int, int) {
	switch s.Mode {
	case ScaleFull:
		return srcW, srcH
	case ScalePercent:
		return int(round(float64(srcW) * s.Percent)), int(round(float64(srcH) * s.Percent))
	case ScaleFitWidth:
		ratio := float64(s.Width) / float64(srcW)
		return s.Width, int(round(float64(srcH) * ratio))
	case ScaleFitHeight:
		ratio := float64(s.Height) / float64(srcH)
		return int(round(float64(srcW) * ratio)), s.Height
	case ScaleFitInside:
		rw := float64(s.Width) / float64(srcW)
		rh := float64(s.Height) / float64(srcH)
		ratio := rw
		if rh < rw {
			ratio = rh
		}
		return int(round(float64(srcW) * ratio)), int(round(float64(srcH) * ratio))
	case ScaleNonAspectFill:
		return s.Width, s.Height
	}
	return srcW, srcH
}

// ResidualScale returns the scalar factor this Scale represents relative to
// its (srcW, srcH) input, using the width axis as representative for
// non-uniform modes (fitWidth/nonAspectFill); used to pick a reduction
// factor before the exact output dimensions are known.
func (s Scale) ResidualScale(srcW, srcH int) float64 {
	w, _ := s.ResolveWH(srcW, srcH)
	if srcW == 0 {
		return 1.0
	}
	return float64(w) / float64(srcW)
}

func round(f float64) float64 {
	if f >= 0 {
		return float64(int64(f + 0.5))
	}
	return float64(int64(f - 0.5))
}

// ── Crop ────────────────────────────────────────────────────────────────────

// CropMode selects how a Crop operation's rectangle is interpreted.
type CropMode int

const (
	CropFull CropMode = iota
	CropPixel
	CropPercent
	CropSquareCenter
)

// Crop is one of {full, pixel rect, percent rect, squareCenter}.
type Crop struct {
	Mode                CropMode
	X, Y, Width, Height float64 // pixel units for CropPixel, [0,1] for CropPercent
}

// IsIdentity reports whether this Crop leaves the image unchanged.
func (c Crop) IsIdentity() bool { return c.Mode == CropFull }

// Rect resolves this Crop into an absolute pixel rectangle against a source
// of size (srcW, srcH), clipping pixel rects to the full image extent as
// required by.
func (c Crop) Rect(srcW, srcH int) (x, y, w, h int) {
	switch c.Mode {
	case CropFull:
		return 0, 0, srcW, srcH
	case CropPixel:
		x, y = int(c.X), int(c.Y)
		w, h = int(c.Width), int(c.Height)
	case CropPercent:
		x = int(round(c.X * float64(srcW)))
		y = int(round(c.Y * float64(srcH)))
		w = int(round(c.Width * float64(srcW)))
		h = int(round(c.Height * float64(srcH)))
	case CropSquareCenter:
		side := srcW
		if srcH < side {
			side = srcH
		}
		x = (srcW - side) / 2
		y = (srcH - side) / 2
		w, h = side, side
	}
	if x < 0 {
		w += x
		x = 0
	}
	if y < 0 {
		h += y
		y = 0
	}
	if x+w > srcW {
		w = srcW - x
	}
	if y+h > srcH {
		h = srcH - y
	}
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	return x, y, w, h
}

// ── ColorTransform ──────────────────────────────────────────────────────────

// ColorMode selects a ColorTransform operation's target representation.
type ColorMode int

const (
	ColorIdentity ColorMode = iota
	ColorGray
	ColorBitonal
)

// ── Overlay ───────────────────────────────────────────────────────────────────

// OverlayPosition names where an overlay image is composited: one of five
// fixed corners/center, or tiled across the whole image.
type OverlayPosition int

const (
	OverlayTopLeft OverlayPosition = iota
	OverlayTopRight
	OverlayBottomLeft
	OverlayBottomRight
	OverlayCenter
	OverlayRepeat
)

// ── Operation ───────────────────────────────────────────────────────────────

// OpKind tags the variant held by an Operation.
type OpKind int

const (
	OpCrop OpKind = iota
	OpScale
	OpRotate
	OpTranspose
	OpColorTransform
	OpSharpen
	OpOverlay
	OpEncode
)

func (k OpKind) String() string {
	switch k {
	case OpCrop:
		return "crop"
	case OpScale:
		return "scale"
	case OpRotate:
		return "rotate"
	case OpTranspose:
		return "transpose"
	case OpColorTransform:
		return "color"
	case OpSharpen:
		return "sharpen"
	case OpOverlay:
		return "overlay"
	case OpEncode:
		return "encode"
	}
	return "unknown"
}

// TransposeAxis selects the flip axis for a Transpose operation.
type TransposeAxis int

const (
	TransposeHorizontal TransposeAxis = iota
	TransposeVertical
)

// Operation is a tagged variant: Crop | Scale | Rotate(deg) |
// Transpose(axis) | ColorTransform | Sharpen(amount) | Overlay(image,pos)
// | Encode(format,quality,compression). Only the field matching Kind is
// meaningful; the rest are zero.
type Operation struct {
	Kind OpKind

	Crop  Crop
	Scale Scale

	RotateDegrees float64
	Transpose     TransposeAxis
	Color         ColorMode
	SharpenAmount float64

	OverlayImage    []byte // opaque encoded bytes; decoded lazily by the pipeline
	OverlayPosition OverlayPosition

	EncodeFormat      Format
	EncodeQuality     int
	EncodeCompression string // TIFF: "none"|"lzw"|"deflate"|"jpeg"
}

// ── OperationList ───────────────────────────────────────────────────────────

// OperationList is an ordered sequence of Operations, normalized so that at
// most one Crop, at most one Scale, and exactly one terminal Encode are
// present; Crop precedes Scale; Rotate/Transpose precede ColorTransform.
type OperationList struct {
	Ops []Operation
}

// Crop returns the list's Crop operation, or a full-image Crop if none is
// present.
func (l OperationList) Crop() Crop {
	for _, op := range l.Ops {
		if op.Kind == OpCrop {
			return op.Crop
		}
	}
	return Crop{Mode: CropFull}
}

// Scale returns the list's Scale operation, or an identity Scale if none is
// present.
func (l OperationList) Scale() Scale {
	for _, op := range l.Ops {
		if op.Kind == OpScale {
			return op.Scale
		}
	}
	return Scale{Mode: ScaleFull}
}

// Encode returns the list's terminal Encode operation. ok is false if the
// list has not been normalized (Normalize always appends one).
func (l OperationList) Encode() (Operation, bool) {
	if n := len(l.Ops); n > 0 && l.Ops[n-1].Kind == OpEncode {
		return l.Ops[n-1], true
	}
	return Operation{}, false
}

// opPriority orders operation kinds/: Crop, Scale, Transpose,
// Rotate, ColorTransform, Sharpen, Overlay, Encode.
var opPriority = map[OpKind]int{
	OpCrop:           0,
	OpScale:          1,
	OpTranspose:      2,
	OpRotate:         3,
	OpColorTransform: 4,
	OpSharpen:        5,
	OpOverlay:        6,
	OpEncode:         7,
}

// Normalize returns a canonicalized copy of ops: drops no-op Crop/Scale/
// Rotate(0) entries, collapses multiple Crop/Scale entries into their last
// occurrence, reorders to the canonical sequence, and appends a terminal
// Encode (defaultFormat) if the caller did not supply one. Two op-lists that
// normalize to equal sequences must produce equal Fingerprints — see
// Fingerprint below.
func Normalize(ops []Operation, defaultFormat Format) OperationList {
	var crop *Operation
	var scale *Operation
	var rest []Operation
	var encode *Operation

	for i := range ops {
		op := ops[i]
		switch op.Kind {
		case OpCrop:
			if op.Crop.IsIdentity() {
				continue
			}
			c := op
			crop = &c
		case OpScale:
			if op.Scale.IsIdentity() {
				continue
			}
			s := op
			scale = &s
		case OpRotate:
			norm := normalizeDegrees(op.RotateDegrees)
			if norm == 0 {
				continue
			}
			op.RotateDegrees = norm
			rest = append(rest, op)
		case OpEncode:
			e := op
			encode = &e
		default:
			rest = append(rest, op)
		}
	}

	sort.SliceStable(rest, func(i, j int) bool {
		return opPriority[rest[i].Kind] < opPriority[rest[j].Kind]
	})

	out := make([]Operation, 0, len(rest)+3)
	if crop != nil {
		out = append(out, *crop)
	}
	if scale != nil {
		out = append(out, *scale)
	}
	out = append(out, rest...)
	if encode != nil {
		out = append(out, *encode)
	} else {
		out = append(out, Operation{Kind: OpEncode, EncodeFormat: defaultFormat})
	}

	return OperationList{Ops: out}
}

func normalizeDegrees(d float64) float64 {
	d = math_mod(d, 360)
	if d < 0 {
		d += 360
	}
	return d
}

func math_mod(a, b float64) float64 {
	m := a
	for m >= b {
		m -= b
	}
	for m < 0 {
		m += b
	}
	return m
}

// RequestFingerprint is a stable hash over (identifier, normalized op-list,
// relevant config subset) such that equal fingerprints permit byte-identical
// output.
type RequestFingerprint string

// Fingerprint computes a deterministic RequestFingerprint. configSubset
// should contain only the config keys that affect pixel output (e.g.
// "limit_to_8_bits=true", "normalize=false") in a caller-chosen stable order.
func Fingerprint(id Identifier, list OperationList, configSubset []string) RequestFingerprint {
	h := sha256.New()
	fmt.Fprintf(h, "id=%s\n", string(id))
	for _, op := range list.Ops {
		fmt.Fprintf(h, "op=%s", op.Kind)
		switch op.Kind {
		case OpCrop:
			fmt.Fprintf(h, " mode=%d x=%g y=%g w=%g h=%g", op.Crop.Mode, op.Crop.X, op.Crop.Y, op.Crop.Width, op.Crop.Height)
		case OpScale:
			fmt.Fprintf(h, " mode=%d pct=%g w=%d h=%d", op.Scale.Mode, op.Scale.Percent, op.Scale.Width, op.Scale.Height)
		case OpRotate:
			fmt.Fprintf(h, " deg=%g", op.RotateDegrees)
		case OpTranspose:
			fmt.Fprintf(h, " axis=%d", op.Transpose)
		case OpColorTransform:
			fmt.Fprintf(h, " mode=%d", op.Color)
		case OpSharpen:
			fmt.Fprintf(h, " amount=%g", op.SharpenAmount)
		case OpOverlay:
			fmt.Fprintf(h, " pos=%d img=%x", op.OverlayPosition, sha256Short(op.OverlayImage))
		case OpEncode:
			fmt.Fprintf(h, " fmt=%s q=%d comp=%s", op.EncodeFormat, op.EncodeQuality, op.EncodeCompression)
		}
		h.Write([]byte{'\n'})
	}
	fmt.Fprintf(h, "cfg=%s\n", strings.Join(configSubset, "&"))
	return RequestFingerprint(hex.EncodeToString(h.Sum(nil)))
}

func sha256Short(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	sum := sha256.Sum256(b)
	return sum[:8]
}
