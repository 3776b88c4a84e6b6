package core

import "context"

// Region is a rectangle in the coordinate space of a specific resolution
// level, as computed by the pipeline executor from the request's Crop (
// step 2). A nil *Region passed to Reader.Read means "the full level".
type Region struct {
	X, Y, Width, Height int
}

// Reader is the per-format decoding capability. One implementation exists
// per readable Format (TIFF, JPEG2000, JPEG, PNG, GIF, BMP, WebP); all must
// satisfy this common capability set so the pipeline executor never
// branches on format.
type Reader interface {
	// GetInfo returns the image's dimensions and resolution-level layout.
	// Implementations should make this cheap to call repeatedly; the info
	// cache memoizes the result by identifier so most callers only pay for
	// it once.
	GetInfo(ctx context.Context) (ImageInfo, error)

	// GetMetadata returns the opaque metadata blob (EXIF/IPTC/XMP/native)
	// associated with the given resolution level, or nil if none is
	// embedded there.
	GetMetadata(ctx context.Context, level int) ([]byte, error)

	// Read decodes region (nil = full level) of the given resolution level
	// with the given subsample factor (1 = none; must be a power of two).
	// The readers in package reader return 8 bits per sample whatever the
	// source depth, and none applies ReaderOptions.Normalize.
	Read(ctx context.Context, level int, region *Region, subsample int) (PixelMatrix, Hints, error)

	// Close releases any resources (open file handles, staging buffers)
	// held by the reader. Safe to call multiple times.
	Close() error
}

// ReaderFactory constructs a Reader bound to a specific SourceHandle. The
// per-format reader table maps MediaType.Format to a ReaderFactory.
type ReaderFactory func(ctx context.Context, handle SourceHandle, opts ReaderOptions) (Reader, error)

// ReaderOptions carries the bit-depth configuration handed to a
// ReaderFactory. The readers in package reader accept it but do not act on
// it: output is always 8 bits per sample, and no range stretch is applied.
type ReaderOptions struct {
	LimitTo8Bits bool
	Normalize    bool
}
