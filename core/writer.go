package core

import (
	"context"
	"io"
)

// WriteOptions carries the per-format encode parameters a Writer needs.
type WriteOptions struct {
	Quality     int    // 0-100; JPEG only
	Compression string // TIFF: "none"|"lzw"|"deflate"|"jpeg"
	Preserve    bool   // metadata-preserve flag

	// SourceFormat and SourceMetadata are supplied so a writer can
	// re-embed opaque metadata when Preserve is set and SourceFormat
	// equals the target format; cross-format preservation is best-effort
	// and may silently drop unsupported tags.
	SourceFormat   Format
	SourceMetadata []byte
}

// Writer is the per-format encoding capability. One implementation exists
// per writable Format (JPEG, PNG, TIFF, GIF).
type Writer interface {
	Format() Format
	Write(ctx context.Context, w io.Writer, img PixelMatrix, opts WriteOptions) error
}

// WriterFactory constructs a Writer for a given Format.
type WriterFactory func() Writer
