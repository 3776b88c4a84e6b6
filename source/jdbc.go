package source

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"path"

	_ "github.com/lib/pq"

	"github.com/cantaloupe-core/imaging/config"
	"github.com/cantaloupe-core/imaging/core"
	apperrors "github.com/cantaloupe-core/imaging/errors"
)

// JDBC resolves identifiers to BLOB columns in a relational database. The
// lookup and media-type queries are supplied by the delegate; the provider
// only ever binds the identifier as a positional parameter, never
// interpolates it into SQL text.
type JDBC struct {
	cfg      config.JDBCConfig
	delegate core.Delegate
	db       *sql.DB
}

// NewJDBC opens a connection pool against cfg.DSN using cfg.DriverName.
func NewJDBC(cfg config.JDBCConfig, delegate core.Delegate) (*JDBC, error) {
	if delegate == nil {
		delegate = core.NoDelegate{}
	}
	db, err := sql.Open(cfg.DriverName, cfg.DSN)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryConfig, "jdbc.new", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLife > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLife)
	}
	return &JDBC{cfg: cfg, delegate: delegate, db: db}, nil
}

func (j *JDBC) Name() string { return "jdbc" }

// lookupQuery asks the delegate for the SELECT statement to run, with a
// single "?"-or-"$1"-style placeholder for the identifier. The delegate
// owns schema knowledge; this provider only ever sees the identifier value.
func (j *JDBC) lookupQuery(ctx context.Context, purpose string, id core.Identifier) (string, bool, error) {
	query, ok, err := j.delegate.Call(ctx, purpose, string(id))
	if err != nil {
		return "", false, apperrors.Internal("jdbc.resolve.delegate", err)
	}
	return query, ok, nil
}

func (j *JDBC) Probe(ctx context.Context, id core.Identifier) (core.ProbeResult, error) {
	query, ok, err := j.lookupQuery(ctx, core.DelegateGetJDBCLookupSQL, id)
	if err != nil {
		return core.ProbeResult{}, err
	}
	if !ok {
		return core.ProbeResult{NotFound: true}, nil
	}
	row := j.db.QueryRowContext(ctx, query, string(id))
	var mediaType string
	if err := row.Scan(&mediaType); err != nil {
		if err == sql.ErrNoRows {
			return core.ProbeResult{NotFound: true}, nil
		}
		return core.ProbeResult{}, apperrors.Transient("jdbc.probe", err)
	}
	mt := core.MediaTypeOf(core.FormatFromExtension(path.Ext(string(id))))
	if mt.Format == core.FormatUnknown {
		mt = core.MediaTypeOf(core.FormatFromContentType(mediaType))
	}
	return core.ProbeResult{MediaType: mt}, nil
}

func (j *JDBC) Open(ctx context.Context, id core.Identifier) (core.SourceHandle, error) {
	query, ok, err := j.lookupQuery(ctx, core.DelegateGetJDBCBlobSQL, id)
	if err != nil {
		return core.SourceHandle{}, err
	}
	if !ok {
		return core.SourceHandle{}, apperrors.NotFound("jdbc.open")
	}
	return core.SourceHandle{
		Stream: func(ctx context.Context) (io.ReadCloser, error) {
			row := j.db.QueryRowContext(ctx, query, string(id))
			var blob []byte
			if err := row.Scan(&blob); err != nil {
				if err == sql.ErrNoRows {
					return nil, apperrors.NotFound("jdbc.open")
				}
				return nil, apperrors.Transient("jdbc.open", err)
			}
			return io.NopCloser(bytes.NewReader(blob)), nil
		},
	}, nil
}
