// Package imaging is the primary entry point: it wires the registry,
// config, hooks, pipeline, source providers, and caches from the other
// packages into a single Deliver call that turns (identifier, operation
// list) into encoded bytes.
package imaging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/cantaloupe-core/imaging/cache"
	"github.com/cantaloupe-core/imaging/config"
	"github.com/cantaloupe-core/imaging/core"
	apperrors "github.com/cantaloupe-core/imaging/errors"
	"github.com/cantaloupe-core/imaging/hooks"
	"github.com/cantaloupe-core/imaging/reader"
	"github.com/cantaloupe-core/imaging/source"
	"github.com/cantaloupe-core/imaging/writer"
)

// errNoProvider reports an unconfigured resolver at request time, a case
// config.Validate cannot catch statically because BuildAll only ever fails
// at New.
var errNoProvider = errors.New("imaging: no source provider resolved")

// Re-export Format constants for convenience.
const (
	JPEG     = core.FormatJPEG
	PNG      = core.FormatPNG
	TIFF     = core.FormatTIFF
	GIF      = core.FormatGIF
	JPEG2000 = core.FormatJPEG2000
	BMP      = core.FormatBMP
)

// DefaultConfig returns a sensible production configuration.
func DefaultConfig() config.Config { return config.Default() }

// Server is the primary entry point. It owns the format registry, the
// derivative/info caches, and the set of live source providers, and exposes
// Deliver as the single request-serving operation.
type Server struct {
	cfg      *config.Atomic
	reg      *core.DefaultRegistry
	delegate core.Delegate
	sources  map[config.ResolverName]core.SourceProvider

	info       *cache.InfoCache
	derivative *cache.Derivative

	logger  *hooks.RequestLogger
	metrics *hooks.InMemoryMetrics
	hookSet []core.Hook

	build singleflight.Group
}

// New constructs a fully wired Server. Pass a custom config.Config to
// override defaults; pass a nil Delegate to disable dynamic lookup hooks.
func New(ctx context.Context, cfg config.Config, delegate core.Delegate) (*Server, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	if delegate == nil {
		delegate = core.NoDelegate{}
	}

	reg := core.NewRegistry()
	reader.RegisterAll(reg)
	writer.RegisterAll(reg, cfg.Processor.DefaultQuality)

	sources, err := source.BuildAll(ctx, cfg, delegate)
	if err != nil {
		return nil, err
	}
	if _, ok := sources[cfg.Resolver.Static]; !ok {
		return nil, fmt.Errorf("imaging: resolver %q has no configured provider", cfg.Resolver.Static)
	}

	slogger := hooks.NewSlogLogger(slog.Default())
	s := &Server{
		cfg:      config.NewAtomic(cfg),
		reg:      reg,
		delegate: delegate,
		sources:  sources,
		info:     cache.NewInfoCache(4096),
		logger:   hooks.NewRequestLogger(slogger),
		metrics:  hooks.NewInMemoryMetrics(),
	}
	s.hookSet = []core.Hook{
		hooks.NewLoggingHook(slogger),
		hooks.NewMetricsHook(s.metrics),
	}

	if cfg.Cache.Enabled {
		d, err := cache.NewDerivative(cfg.Cache)
		if err != nil {
			return nil, err
		}
		s.derivative = d
	}
	return s, nil
}

// Reload atomically swaps the live config snapshot. In-flight requests keep
// using the Config value they already captured.
func (s *Server) Reload(cfg config.Config) error {
	if err := config.Validate(cfg); err != nil {
		return err
	}
	s.cfg.Store(cfg)
	return nil
}

// AddHook registers an additional pipeline observer.
func (s *Server) AddHook(h core.Hook) { s.hookSet = append(s.hookSet, h) }

// Stats returns lightweight processing and cache statistics.
func (s *Server) Stats() (processed, errors int64, cacheEntries int, cacheBytes int64) {
	snap := s.metrics.Snapshot()
	if s.derivative != nil {
		cacheEntries, cacheBytes = s.derivative.Stats()
	}
	return snap.Processed, snap.Errors, cacheEntries, cacheBytes
}

// resolveProvider picks the source provider for id: the delegate's
// get_resolver override, if configured and answered, else the static
// default named in cfg.Resolver.Static.
func (s *Server) resolveProvider(ctx context.Context, cfg config.Config, id core.Identifier) (core.SourceProvider, error) {
	if cfg.Resolver.DelegateUsed {
		if name, ok, err := s.delegate.Call(ctx, core.DelegateGetResolver, string(id)); err != nil {
			return nil, apperrors.Internal("resolve.delegate", err)
		} else if ok {
			if p, ok := s.sources[config.ResolverName(name)]; ok {
				return p, nil
			}
		}
	}
	return s.sources[cfg.Resolver.Static], nil
}

// Info returns the ImageInfo for id, probing and consulting the source
// provider only on an info-cache miss.
func (s *Server) Info(ctx context.Context, id core.Identifier) (core.ImageInfo, error) {
	if info, ok := s.info.Get(id); ok {
		return info, nil
	}
	cfg := s.cfg.Load()
	provider, err := s.resolveProvider(ctx, cfg, id)
	if err != nil {
		return core.ImageInfo{}, err
	}
	if provider == nil {
		return core.ImageInfo{}, apperrors.Internal("info.resolve", fmt.Errorf("no source provider configured"))
	}

	probe, err := provider.Probe(ctx, id)
	if err != nil {
		return core.ImageInfo{}, err
	}
	if probe.NotFound {
		return core.ImageInfo{}, apperrors.NotFound("info.probe")
	}
	if probe.Denied {
		return core.ImageInfo{}, apperrors.AccessDenied("info.probe")
	}
	if probe.MediaType.Format == core.FormatUnknown {
		return core.ImageInfo{}, apperrors.New(apperrors.CategoryUnsupportedSourceFormat, "info.probe", apperrors.ErrUnsupportedFormat)
	}

	factory, ok := s.reg.ReaderFactoryFor(probe.MediaType.Format)
	if !ok {
		return core.ImageInfo{}, apperrors.New(apperrors.CategoryUnsupportedSourceFormat, "info.reader", apperrors.ErrUnsupportedFormat)
	}
	handle, err := provider.Open(ctx, id)
	if err != nil {
		return core.ImageInfo{}, err
	}
	rdr, err := factory(ctx, handle, core.ReaderOptions{LimitTo8Bits: cfg.Processor.LimitTo8Bits, Normalize: cfg.Processor.Normalize})
	if err != nil {
		return core.ImageInfo{}, apperrors.Wrap(apperrors.CategoryDecode, "info.reader.new", err)
	}
	defer rdr.Close()

	info, err := rdr.GetInfo(ctx)
	if err != nil {
		return core.ImageInfo{}, err
	}
	info.Identifier = id
	s.info.Put(id, info)
	s.logger.LogResolved(id, provider.Name(), probe.MediaType)
	return info, nil
}

// Deliver is the primary operation: it resolves id, decodes the minimum
// region needed for list, runs the residual operations, and writes the
// encoded result to out. A derivative-cache hit skips decode/pipeline/encode
// entirely.
func (s *Server) Deliver(ctx context.Context, id core.Identifier, ops []core.Operation, out io.Writer) (mt core.MediaType, err error) {
	defer func() {
		if err != nil {
			s.metrics.IncrementError()
		} else {
			s.metrics.IncrementProcessed()
		}
	}()

	cfg := s.cfg.Load()

	defaultFormat := core.FormatJPEG
	list := core.Normalize(ops, defaultFormat)
	encodeOp, _ := list.Encode()

	configSubset := []string{
		fmt.Sprintf("limit_to_8_bits=%v", cfg.Processor.LimitTo8Bits),
		fmt.Sprintf("normalize=%v", cfg.Processor.Normalize),
	}
	fp := core.Fingerprint(id, list, configSubset)

	if s.derivative != nil {
		if rc, mt, ok, err := s.derivative.Get(ctx, fp); err != nil {
			return core.MediaType{}, err
		} else if ok {
			defer rc.Close()
			s.logger.LogCacheOutcome(fp, "hit")
			s.metrics.RecordCacheOutcome("hit")
			_, err := io.Copy(out, rc)
			return core.MediaTypeOf(encodeOp.EncodeFormat), err
		}
	}
	s.logger.LogCacheOutcome(fp, "miss")
	s.metrics.RecordCacheOutcome("miss")

	v, err, _ := s.build.Do(string(fp), func() (any, error) {
		return s.buildDerivative(ctx, cfg, id, list, fp, encodeOp)
	})
	if err != nil {
		return core.MediaType{}, err
	}
	built := v.(builtDerivative)

	if _, err := out.Write(built.bytes); err != nil {
		return core.MediaType{}, err
	}
	return built.mediaType, nil
}

type builtDerivative struct {
	bytes     []byte
	mediaType core.MediaType
}

// MediaType is re-exported so callers can type Deliver's result without an
// extra import.
type MediaType = core.MediaType
