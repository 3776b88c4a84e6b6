package core

import "image"

// Hints reports properties of a Reader.Read result that let the pipeline
// executor skip redundant work.
type Hints struct {
	// AlreadyCropped is true when the returned PixelMatrix is already
	// limited to the requested region (e.g. a TIFF tile-walk composited
	// exactly the requested rectangle), so the executor's own crop step
	// is a no-op and can be skipped.
	AlreadyCropped bool
}

// PixelMatrix is the in-memory decoded-region result passed from a Reader
// into the pipeline executor. It wraps a standard image.Image so the
// pipeline can use golang.org/x/image/draw directly, while carrying the
// extra fields the executor needs (bit depth, embedded ICC profile, opaque
// per-level metadata).
type PixelMatrix struct {
	Image image.Image

	Width      int
	Height     int
	Channels   int
	BitDepth   int
	ICCProfile []byte // nil if absent

	// Metadata carries the opaque per-format blob returned by
	// Reader.GetMetadata for the level this matrix was decoded from (EXIF,
	// IPTC IIM, XMP, or native tags). The core never parses it.
	Metadata []byte
}

// Bounds returns the matrix's pixel rectangle, always anchored at (0,0).
func (m PixelMatrix) Bounds() image.Rectangle { return image.Rect(0, 0, m.Width, m.Height) }
