package core

import (
	"context"
	"io"
)

// StreamFactory produces an independent, freshly-seeked-to-zero byte stream
// each time it is invoked. It must be safe to call any number of times; each
// call is expected to open its own underlying connection/file descriptor.
type StreamFactory func(ctx context.Context) (io.ReadCloser, error)

// SourceHandle is a capability-tagged variant: either a seekable local
// file path, or a stream factory. Every provider must support the factory
// form; the file-path form is an optimization available only to providers
// backed by a local filesystem (it lets readers like the TIFF reader use
// os.File.ReadAt directly instead of buffering).
type SourceHandle struct {
	// FilePath is non-empty when the handle names a local, seekable file.
	FilePath string

	// Stream is non-nil when FilePath is empty; it must be supported by
	// every provider.
	Stream StreamFactory
}

// IsFile reports whether this handle exposes a local file path.
func (h SourceHandle) IsFile() bool { return h.FilePath != "" }

// ProbeResult is the outcome of SourceProvider.Probe.
type ProbeResult struct {
	MediaType MediaType
	NotFound  bool
	Denied    bool
}

// SourceProvider is implemented by each backing-store variant (filesystem,
// HTTP(S), JDBC/BLOB, S3-compatible, Azure-compatible object storage). It
// resolves an Identifier to a SourceHandle, deferring to the delegate
// bridge when configured to do so.
type SourceProvider interface {
	// Name identifies the provider for logging and config lookup (e.g.
	// "filesystem", "http", "s3", "azure", "jdbc").
	Name() string

	// Probe performs a cheap type inference without necessarily opening the
	// full source: the identifier's extension first, then a provider-specific
	// fallback (a short byte read and magic-number sniff for the filesystem,
	// the store-reported content type for the remote providers).
	Probe(ctx context.Context, id Identifier) (ProbeResult, error)

	// Open returns a SourceHandle for id. Implementations must not hold
	// any lock while blocking on I/O or on a delegate call.
	Open(ctx context.Context, id Identifier) (SourceHandle, error)
}
