// Package source provides SourceProvider implementations for filesystem,
// HTTP(S), S3-compatible, Azure Blob, and JDBC/RDBMS-BLOB backing stores.
package source

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/cantaloupe-core/imaging/config"
	"github.com/cantaloupe-core/imaging/core"
	apperrors "github.com/cantaloupe-core/imaging/errors"
)

// Filesystem resolves identifiers against a root directory, either by a
// fixed prefix/suffix rule or by delegating to a script-backed lookup for
// LookupScript.
type Filesystem struct {
	cfg      config.FilesystemConfig
	delegate core.Delegate
}

// NewFilesystem creates a Filesystem provider.
func NewFilesystem(cfg config.FilesystemConfig, delegate core.Delegate) *Filesystem {
	if delegate == nil {
		delegate = core.NoDelegate{}
	}
	return &Filesystem{cfg: cfg, delegate: delegate}
}

func (f *Filesystem) Name() string { return "filesystem" }

func (f *Filesystem) resolvePath(ctx context.Context, id core.Identifier) (string, error) {
	if id.HasTraversal() {
		return "", apperrors.New(apperrors.CategoryInvalidRequest, "filesystem.resolve", apperrors.ErrIdentifierTraversal)
	}
	if f.cfg.LookupStrategy == config.LookupScript {
		result, ok, err := f.delegate.Call(ctx, core.DelegateGetPathname, string(id))
		if err != nil {
			return "", apperrors.Internal("filesystem.resolve.delegate", err)
		}
		if !ok {
			return "", apperrors.NotFound("filesystem.resolve")
		}
		return filepath.Join(f.cfg.RootDir, filepath.Clean(result)), nil
	}
	name := f.cfg.PathPrefix + string(id) + f.cfg.PathSuffix
	return filepath.Join(f.cfg.RootDir, filepath.Clean(name)), nil
}

func (f *Filesystem) Probe(ctx context.Context, id core.Identifier) (core.ProbeResult, error) {
	if err := ctx.Err(); err != nil {
		return core.ProbeResult{}, apperrors.Wrap(apperrors.CategoryStorage, "filesystem.probe", err)
	}
	path, err := f.resolvePath(ctx, id)
	if err != nil {
		return core.ProbeResult{NotFound: true}, nil
	}
	if mt := core.MediaTypeOf(core.FormatFromExtension(filepath.Ext(path))); mt.Format != core.FormatUnknown {
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				return core.ProbeResult{NotFound: true}, nil
			}
			return core.ProbeResult{}, apperrors.Wrap(apperrors.CategoryStorage, "filesystem.probe.stat", err)
		}
		return core.ProbeResult{MediaType: mt}, nil
	}

	fh, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return core.ProbeResult{NotFound: true}, nil
		}
		return core.ProbeResult{}, apperrors.Wrap(apperrors.CategoryStorage, "filesystem.probe.open", err)
	}
	defer fh.Close()

	buf := make([]byte, 16)
	n, _ := io.ReadFull(fh, buf)
	return core.ProbeResult{MediaType: core.MediaTypeOf(core.DetectFormat(buf[:n]))}, nil
}

func (f *Filesystem) Open(ctx context.Context, id core.Identifier) (core.SourceHandle, error) {
	if err := ctx.Err(); err != nil {
		return core.SourceHandle{}, apperrors.Wrap(apperrors.CategoryStorage, "filesystem.open", err)
	}
	path, err := f.resolvePath(ctx, id)
	if err != nil {
		return core.SourceHandle{}, err
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return core.SourceHandle{}, apperrors.NotFound("filesystem.open")
		}
		return core.SourceHandle{}, apperrors.Wrap(apperrors.CategoryStorage, "filesystem.open.stat", err)
	}
	return core.SourceHandle{FilePath: path}, nil
}
