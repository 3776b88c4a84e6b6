package source

import (
	"context"
	"fmt"

	"github.com/cantaloupe-core/imaging/config"
	"github.com/cantaloupe-core/imaging/core"
)

// Build constructs the core.SourceProvider selected by cfg.Resolver.Static. The
// delegate may override the selection per request via get_resolver when
// cfg.Resolver.DelegateUsed is set; that override is applied by the caller,
// not here, since it requires a request-scoped identifier.
func Build(ctx context.Context, cfg config.Config, delegate core.Delegate) (core.SourceProvider, error) {
	switch cfg.Resolver.Static {
	case config.ResolverFilesystem:
		return NewFilesystem(cfg.Filesystem, delegate), nil
	case config.ResolverHTTP:
		return NewHTTP(cfg.HTTP, delegate), nil
	case config.ResolverS3:
		return NewS3(ctx, cfg.S3, delegate)
	case config.ResolverAzure:
		return NewAzure(cfg.Azure, delegate)
	case config.ResolverJDBC:
		return NewJDBC(cfg.JDBC, delegate)
	default:
		return nil, fmt.Errorf("source: unknown resolver %q", cfg.Resolver.Static)
	}
}

// BuildAll constructs every provider named in cfg, keyed by ResolverName, for
// callers that need the delegate's per-request get_resolver override to pick
// among several live providers rather than a single static choice.
func BuildAll(ctx context.Context, cfg config.Config, delegate core.Delegate) (map[config.ResolverName]core.SourceProvider, error) {
	out := make(map[config.ResolverName]core.SourceProvider, 5)
	if cfg.Filesystem.RootDir != "" {
		out[config.ResolverFilesystem] = NewFilesystem(cfg.Filesystem, delegate)
	}
	if cfg.HTTP.URLPrefix != "" || cfg.HTTP.LookupStrategy == config.LookupScript {
		out[config.ResolverHTTP] = NewHTTP(cfg.HTTP, delegate)
	}
	if cfg.S3.Bucket != "" {
		p, err := NewS3(ctx, cfg.S3, delegate)
		if err != nil {
			return nil, err
		}
		out[config.ResolverS3] = p
	}
	if cfg.Azure.Container != "" {
		p, err := NewAzure(cfg.Azure, delegate)
		if err != nil {
			return nil, err
		}
		out[config.ResolverAzure] = p
	}
	if cfg.JDBC.DriverName != "" {
		p, err := NewJDBC(cfg.JDBC, delegate)
		if err != nil {
			return nil, err
		}
		out[config.ResolverJDBC] = p
	}
	return out, nil
}
