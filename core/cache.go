package core

import (
	"context"
	"io"
	"time"
)

// CacheEntry is the derivative cache's index record. Payload is stored
// separately (opaque byte string); the cache is content-agnostic.
type CacheEntry struct {
	Fingerprint RequestFingerprint
	MediaType   MediaType
	SizeBytes   int64
	LastAccess  time.Time
	Created     time.Time
}

// PurgeSelector chooses which derivative cache entries to remove: by
// fingerprint, by identifier prefix, or (when both are empty) everything.
type PurgeSelector struct {
	Fingerprint      RequestFingerprint
	IdentifierPrefix string
}

// EntryWriter is returned by DerivativeCache.Put. Callers must Close it;
// only a successful Close installs the entry atomically.
type EntryWriter interface {
	io.Writer
	// Close finalizes the entry. On error, the cache discards whatever was
	// written; a non-nil error propagates the underlying failure.
	Close() error
	// Abort discards the staged write without installing anything.
	Abort() error
}

// DerivativeCache memoizes encoded outputs under a RequestFingerprint.
// It is a hint, never a source of truth: a stale or evicted entry only
// wastes work, it never changes the bytes a cache-miss would have produced.
type DerivativeCache interface {
	// Get returns a reader for the payload and its media type, or ok=false
	// on a miss. Callers must Close the returned ReadCloser.
	Get(ctx context.Context, fp RequestFingerprint) (rc io.ReadCloser, mt MediaType, ok bool, err error)

	// Put returns a staging writer for fp/mt, recorded against id so that a
	// later Purge by identifier prefix can find it. In the default
	// single-flight mode, concurrent callers for the same fingerprint block
	// in Put until the in-flight build completes, then get back a writer that
	// discards its input since the entry is already installed. An
	// implementation configured not to wait hands each such caller its own
	// staging writer instead.
	Put(ctx context.Context, id Identifier, fp RequestFingerprint, mt MediaType) (EntryWriter, error)

	// Purge removes entries matching sel.
	Purge(ctx context.Context, sel PurgeSelector) error

	// Stats reports current entry count and total size, for monitoring.
	Stats() (entries int, totalBytes int64)
}

// InfoCache memoizes ImageInfo by Identifier, populated on first decode
// and invalidated only on explicit purge.
type InfoCache interface {
	Get(id Identifier) (ImageInfo, bool)
	Put(id Identifier, info ImageInfo)
	Purge(id Identifier)
	PurgeAll()
}
