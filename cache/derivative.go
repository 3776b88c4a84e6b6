package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/cantaloupe-core/imaging/config"
	"github.com/cantaloupe-core/imaging/core"
	apperrors "github.com/cantaloupe-core/imaging/errors"
)

// avgEntryBytes estimates a typical derivative size when translating a
// byte-budget config (CacheConfig.SizeBytes) into an entry-count capacity for
// the underlying count-bounded LRU.
const avgEntryBytes = 256 * 1024

type entryMeta struct {
	identifier core.Identifier
	path       string
	mediaType  core.MediaType
	size       int64
	created    time.Time
	lastAccess time.Time
}

// Derivative is a content-addressed, disk-backed cache of encoded image
// bytes keyed by RequestFingerprint. Builds for the same fingerprint are
// de-duplicated: a second Put for an in-flight fingerprint either blocks
// until the first finishes (WaitForBuild) or stages its own independent
// temp file; whichever staged write closes first is installed, and a later
// Close for the same fingerprint discards its file.
type Derivative struct {
	dir          string
	ttl          time.Duration
	waitForBuild bool

	mu       sync.Mutex
	index    *lru.Cache[core.RequestFingerprint, *entryMeta]
	inFlight map[core.RequestFingerprint]chan struct{}

	totalBytes atomic.Int64
}

// NewDerivative creates a Derivative rooted at cfg.Directory. If cfg.Enabled
// is false, callers should not construct one; Deliver then builds every
// request afresh and skips the cache install step.
func NewDerivative(cfg config.CacheConfig) (*Derivative, error) {
	if cfg.Directory == "" {
		return nil, apperrors.New(apperrors.CategoryConfig, "cache.new", fmt.Errorf("cache.Directory must be set"))
	}
	if err := os.MkdirAll(cfg.Directory, 0o755); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryConfig, "cache.new.mkdir", err)
	}
	capacity := 64
	if cfg.SizeBytes > 0 {
		capacity = int(cfg.SizeBytes / avgEntryBytes)
		if capacity < 16 {
			capacity = 16
		}
	}
	d := &Derivative{
		dir:          cfg.Directory,
		waitForBuild: cfg.WaitForBuild,
		inFlight:     make(map[core.RequestFingerprint]chan struct{}),
	}
	if cfg.Eviction == config.EvictionTTL && cfg.TTLSeconds > 0 {
		d.ttl = time.Duration(cfg.TTLSeconds) * time.Second
	}
	idx, err := lru.NewWithEvict[core.RequestFingerprint, *entryMeta](capacity, d.onEvict)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryConfig, "cache.new.lru", err)
	}
	d.index = idx
	return d, nil
}

func (d *Derivative) onEvict(_ core.RequestFingerprint, meta *entryMeta) {
	if meta == nil {
		return
	}
	d.totalBytes.Add(-meta.size)
	os.Remove(meta.path)
}

func (d *Derivative) pathFor(fp core.RequestFingerprint) string {
	sum := sha256.Sum256([]byte(fp))
	return filepath.Join(d.dir, hex.EncodeToString(sum[:]))
}

func (d *Derivative) expired(meta *entryMeta) bool {
	return d.ttl > 0 && time.Since(meta.created) > d.ttl
}

// Get returns the cached payload for fp, or ok=false on a miss or expiry.
func (d *Derivative) Get(ctx context.Context, fp core.RequestFingerprint) (io.ReadCloser, core.MediaType, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, core.MediaType{}, false, err
	}
	d.mu.Lock()
	meta, ok := d.index.Get(fp)
	if ok && d.expired(meta) {
		d.index.Remove(fp)
		ok = false
	}
	d.mu.Unlock()
	if !ok {
		return nil, core.MediaType{}, false, nil
	}
	f, err := os.Open(meta.path)
	if err != nil {
		if os.IsNotExist(err) {
			d.mu.Lock()
			d.index.Remove(fp)
			d.mu.Unlock()
			return nil, core.MediaType{}, false, nil
		}
		return nil, core.MediaType{}, false, apperrors.Wrap(apperrors.CategoryStorage, "cache.get", err)
	}
	meta.lastAccess = time.Now()
	return f, meta.mediaType, true, nil
}

// Put stages a new entry for fp. The first caller for a given fingerprint
// gets a writer backed by a temp file that's renamed into place on Close.
// Any caller that arrives while a build for the same fp is in flight blocks
// (when waitForBuild) until that build finishes, then receives a writer that
// silently discards whatever it's given — the entry already exists by the
// time it would write anything.
//
// This is the single-flight invariant the derivative cache owns directly;
// it's a map of completion channels rather than golang.org/x/sync/singleflight
// because the "work" here spans the lifetime of an externally driven
// io.Writer (open now, write over time, Close later), not a single function
// call singleflight.Group could wrap. The orchestration layer uses
// singleflight.Group for the coarser "only one full derivative build in
// flight" case, where the whole pipeline runs inside one function.
func (d *Derivative) Put(ctx context.Context, id core.Identifier, fp core.RequestFingerprint, mt core.MediaType) (core.EntryWriter, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	if _, ok := d.index.Get(fp); ok {
		d.mu.Unlock()
		return discardWriter{}, nil
	}
	if ch, building := d.inFlight[fp]; building {
		d.mu.Unlock()
		if !d.waitForBuild {
			return d.newStagingWriter(id, fp, mt)
		}
		<-ch
		return discardWriter{}, nil
	}
	done := make(chan struct{})
	d.inFlight[fp] = done
	d.mu.Unlock()

	w, err := d.newStagingWriter(id, fp, mt)
	if err != nil {
		d.finishBuild(fp, done)
		return nil, err
	}
	w.onDone = func() { d.finishBuild(fp, done) }
	return w, nil
}

func (d *Derivative) finishBuild(fp core.RequestFingerprint, done chan struct{}) {
	d.mu.Lock()
	if d.inFlight[fp] == done {
		delete(d.inFlight, fp)
	}
	d.mu.Unlock()
	close(done)
}

func (d *Derivative) newStagingWriter(id core.Identifier, fp core.RequestFingerprint, mt core.MediaType) (*stagingWriter, error) {
	tmp, err := os.CreateTemp(d.dir, "build-*.tmp")
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryStorage, "cache.put", err)
	}
	return &stagingWriter{
		cache:      d,
		file:       tmp,
		identifier: id,
		fp:         fp,
		mediaType:  mt,
	}, nil
}

// Purge removes entries matching sel. An empty selector purges everything.
func (d *Derivative) Purge(ctx context.Context, sel core.PurgeSelector) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch {
	case sel.Fingerprint != "":
		d.index.Remove(sel.Fingerprint)
	case sel.IdentifierPrefix != "":
		for _, fp := range d.index.Keys() {
			meta, ok := d.index.Peek(fp)
			if ok && strings.HasPrefix(string(meta.identifier), sel.IdentifierPrefix) {
				d.index.Remove(fp)
			}
		}
	default:
		d.index.Purge()
	}
	return nil
}

// Stats reports the current entry count and the best-known total size.
// Size tracking is approximate: it reflects entries this process installed
// or evicted, not a full directory walk.
func (d *Derivative) Stats() (entries int, totalBytes int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.index.Len(), d.totalBytes.Load()
}

type stagingWriter struct {
	cache      *Derivative
	file       *os.File
	identifier core.Identifier
	fp         core.RequestFingerprint
	mediaType  core.MediaType
	written    int64
	done       bool
	onDone     func()
}

func (w *stagingWriter) Write(p []byte) (int, error) {
	n, err := w.file.Write(p)
	w.written += int64(n)
	return n, err
}

func (w *stagingWriter) Close() error {
	if w.done {
		return nil
	}
	w.done = true
	if w.onDone != nil {
		defer w.onDone()
	}
	if err := w.file.Close(); err != nil {
		os.Remove(w.file.Name())
		return apperrors.Wrap(apperrors.CategoryStorage, "cache.put.close", err)
	}
	w.cache.mu.Lock()
	defer w.cache.mu.Unlock()
	if w.cache.index.Contains(w.fp) {
		// Another staged write for this fingerprint was installed first.
		os.Remove(w.file.Name())
		return nil
	}
	finalPath := w.cache.pathFor(w.fp)
	if err := os.Rename(w.file.Name(), finalPath); err != nil {
		os.Remove(w.file.Name())
		return apperrors.Wrap(apperrors.CategoryStorage, "cache.put.rename", err)
	}
	meta := &entryMeta{
		identifier: w.identifier,
		path:       finalPath,
		mediaType:  w.mediaType,
		size:       w.written,
		created:    time.Now(),
		lastAccess: time.Now(),
	}
	w.cache.index.Add(w.fp, meta)
	w.cache.totalBytes.Add(w.written)
	return nil
}

func (w *stagingWriter) Abort() error {
	if w.done {
		return nil
	}
	w.done = true
	if w.onDone != nil {
		defer w.onDone()
	}
	w.file.Close()
	os.Remove(w.file.Name())
	return nil
}

// discardWriter satisfies core.EntryWriter for a caller that arrived after
// another build for the same fingerprint already completed.
type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }
func (discardWriter) Close() error                { return nil }
func (discardWriter) Abort() error                 { return nil }
