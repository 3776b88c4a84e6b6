package source

import (
	"context"
	"testing"

	"github.com/cantaloupe-core/imaging/config"
	"github.com/cantaloupe-core/imaging/core"
	apperrors "github.com/cantaloupe-core/imaging/errors"
)

// stubDelegate answers a single configured hook name; everything else misses.
type stubDelegate struct {
	hook   string
	result string
	ok     bool
	err    error
}

func (d stubDelegate) Call(_ context.Context, hook, _ string) (string, bool, error) {
	if hook != d.hook {
		return "", false, nil
	}
	return d.result, d.ok, d.err
}

func TestS3ResolveKeyBasicStrategyUsesIdentifierVerbatim(t *testing.T) {
	s := &S3{cfg: config.S3Config{LookupStrategy: config.LookupBasic}, delegate: core.NoDelegate{}}
	key, err := s.resolveKey(context.Background(), core.Identifier("foo/bar.jpg"))
	if err != nil {
		t.Fatalf("resolveKey: %v", err)
	}
	if key != "foo/bar.jpg" {
		t.Errorf("got key %q, want identifier verbatim", key)
	}
}

func TestS3ResolveKeyScriptStrategyUsesDelegate(t *testing.T) {
	s := &S3{
		cfg:      config.S3Config{LookupStrategy: config.LookupScript},
		delegate: stubDelegate{hook: core.DelegateGetS3ObjectKey, result: "mapped/key.jpg", ok: true},
	}
	key, err := s.resolveKey(context.Background(), core.Identifier("id"))
	if err != nil {
		t.Fatalf("resolveKey: %v", err)
	}
	if key != "mapped/key.jpg" {
		t.Errorf("got key %q, want the delegate-resolved key", key)
	}
}

func TestS3ResolveKeyScriptStrategyMissReturnsNotFound(t *testing.T) {
	s := &S3{
		cfg:      config.S3Config{LookupStrategy: config.LookupScript},
		delegate: stubDelegate{hook: core.DelegateGetS3ObjectKey, ok: false},
	}
	_, err := s.resolveKey(context.Background(), core.Identifier("id"))
	if !apperrors.IsCategory(err, apperrors.CategoryNotFound) {
		t.Errorf("expected a not-found error when the delegate answers ok=false, got %v", err)
	}
}
