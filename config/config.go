// Package config defines the immutable configuration snapshot consumed by
// the core. Callers build one Config per process (or per reload) and pass
// it by value; Atomic supports swapping the snapshot pointer between
// requests without any request observing a torn read.
package config

import (
	"errors"
	"sync/atomic"
	"time"
)

// ResolverName selects the default source provider for the resolver's static lookup path.
type ResolverName string

const (
	ResolverFilesystem ResolverName = "filesystem"
	ResolverHTTP       ResolverName = "http"
	ResolverS3         ResolverName = "s3"
	ResolverAzure      ResolverName = "azure"
	ResolverJDBC       ResolverName = "jdbc"
)

// LookupStrategy selects how a provider maps an identifier to its backing
// locator: a fixed prefix/suffix rule, or a delegate script call.
type LookupStrategy string

const (
	LookupBasic  LookupStrategy = "basic"
	LookupScript LookupStrategy = "script"
)

// EvictionPolicy selects the derivative cache's eviction strategy.
type EvictionPolicy string

const (
	EvictionSizeLRU EvictionPolicy = "size-lru"
	EvictionTTL     EvictionPolicy = "time-ttl"
	EvictionNone    EvictionPolicy = "none"
)

// Config is the top-level configuration snapshot. All fields have safe
// defaults so callers can start with Default() and override only what they
// need; a zero-value Config is never passed to the core directly.
type Config struct {
	// Concurrency settings. They are carried in the snapshot, but no package
	// in this module reads them: there is no worker pool or job queue.
	WorkerCount int // default 0
	QueueSize   int // default 256

	// Timeouts.
	SourceOpenTimeout time.Duration // default 30s
	ReadTimeout       time.Duration // default 30s
	RequestTimeout    time.Duration // 0 = no overall deadline
	CancelGracePeriod time.Duration // default 2s

	// Retry applies only to the core's own transient-error retries per
	// step, e.g. a single upstream range-read hiccup. Whole-request retries
	// are an upstream concern, not the core's.
	MaxRetries int
	RetryDelay time.Duration

	Processor ProcessorConfig
	Cache     CacheConfig
	Resolver  ResolverConfig

	Filesystem FilesystemConfig
	HTTP       HTTPConfig
	S3         S3Config
	Azure      AzureConfig
	JDBC       JDBCConfig

	ChunkSize int // streaming chunk size in bytes; default 32 KiB

	LogLevel string // "debug", "info", "warn", "error"
}

// ProcessorConfig holds reader/writer-affecting tuning keys.
type ProcessorConfig struct {
	LimitTo8Bits     bool // processor.limit_to_8_bits
	Normalize        bool // processor.normalize
	MetadataPreserve bool // processor.metadata.preserve
	DefaultQuality   int  // 1-100; default 85; used when an Encode op omits quality
}

// CacheConfig holds the derivative cache's tunables.
type CacheConfig struct {
	Enabled      bool
	TTLSeconds   int64          // cache.derivative.ttl_seconds
	SizeBytes    int64          // cache.derivative.size_bytes (soft cap)
	Eviction     EvictionPolicy
	WaitForBuild bool // single-flight default: wait; false = run independently
	Directory    string
}

// ResolverConfig selects the default provider and whether the delegate may
// override it per request.
type ResolverConfig struct {
	Static       ResolverName
	DelegateUsed bool // resolver.delegate: consult get_resolver
}

// FilesystemConfig configures the local-filesystem source provider.
type FilesystemConfig struct {
	RootDir        string
	PathPrefix     string
	PathSuffix     string
	LookupStrategy LookupStrategy
}

// HTTPConfig configures the HTTP(S) source provider.
type HTTPConfig struct {
	URLPrefix      string
	URLSuffix      string
	LookupStrategy LookupStrategy
	BasicAuthUser  string
	BasicAuthPass  string
	TrustAllCerts  bool
	RequestTimeout time.Duration
}

// S3Config configures the S3-compatible object-store source provider.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string // optional custom endpoint (MinIO, etc.)
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
	LookupStrategy  LookupStrategy // basic: identifier == key; script: delegate get_s3_object_key
}

// AzureConfig configures the Azure Blob Storage source provider.
type AzureConfig struct {
	AccountName    string
	AccountKey     string
	Container      string
	LookupStrategy LookupStrategy // script: delegate get_azure_blob_key
}

// JDBCConfig configures the RDBMS BLOB source provider. Query text is
// supplied by the delegate; the core only ever substitutes positional bind
// values, never interpolates the identifier into SQL text.
type JDBCConfig struct {
	DriverName     string // e.g. "postgres"
	DSN            string
	MaxOpenConns   int
	MaxIdleConns   int
	ConnMaxLife    time.Duration
}

// Default returns a Config populated with sensible production defaults.
func Default() Config {
	return Config{
		WorkerCount:       0,
		QueueSize:         256,
		SourceOpenTimeout: 30 * time.Second,
		ReadTimeout:       30 * time.Second,
		CancelGracePeriod: 2 * time.Second,
		MaxRetries:        3,
		RetryDelay:        200 * time.Millisecond,
		Processor: ProcessorConfig{
			DefaultQuality: 85,
		},
		Cache: CacheConfig{
			Enabled:      true,
			Eviction:     EvictionSizeLRU,
			SizeBytes:    512 * 1024 * 1024,
			WaitForBuild: true,
			Directory:    "cantaloupe-cache",
		},
		Resolver: ResolverConfig{
			Static: ResolverFilesystem,
		},
		ChunkSize: 32 * 1024,
		LogLevel:  "info",
	}
}

// Validate returns an error if the configuration is inconsistent.
func Validate(c Config) error {
	if c.Processor.DefaultQuality < 1 || c.Processor.DefaultQuality > 100 {
		return errors.New("config: Processor.DefaultQuality must be between 1 and 100")
	}
	if c.ChunkSize <= 0 {
		return errors.New("config: ChunkSize must be positive")
	}
	if c.Cache.Eviction == EvictionTTL && c.Cache.TTLSeconds <= 0 {
		return errors.New("config: Cache.TTLSeconds must be positive when Eviction is time-ttl")
	}
	if c.Cache.Eviction == EvictionSizeLRU && c.Cache.SizeBytes <= 0 {
		return errors.New("config: Cache.SizeBytes must be positive when Eviction is size-lru")
	}
	return nil
}

// Atomic holds a Config snapshot that can be swapped atomically between
// requests, so a config reload never tears an in-flight request's view of it.
type Atomic struct {
	ptr atomic.Pointer[Config]
}

// NewAtomic creates an Atomic seeded with cfg.
func NewAtomic(cfg Config) *Atomic {
	a := &Atomic{}
	a.Store(cfg)
	return a
}

// Load returns the current snapshot.
func (a *Atomic) Load() Config { return *a.ptr.Load() }

// Store atomically replaces the snapshot. In-flight requests keep using the
// Config value they already captured from Load.
func (a *Atomic) Store(cfg Config) { a.ptr.Store(&cfg) }
