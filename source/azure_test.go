package source

import (
	"context"
	"testing"

	"github.com/cantaloupe-core/imaging/config"
	"github.com/cantaloupe-core/imaging/core"
	apperrors "github.com/cantaloupe-core/imaging/errors"
)

func TestAzureResolveBlobKeyBasicStrategyUsesIdentifierVerbatim(t *testing.T) {
	a := &Azure{cfg: config.AzureConfig{LookupStrategy: config.LookupBasic}, delegate: core.NoDelegate{}}
	key, err := a.resolveBlobKey(context.Background(), core.Identifier("foo/bar.png"))
	if err != nil {
		t.Fatalf("resolveBlobKey: %v", err)
	}
	if key != "foo/bar.png" {
		t.Errorf("got key %q, want identifier verbatim", key)
	}
}

func TestAzureResolveBlobKeyScriptStrategyUsesDelegate(t *testing.T) {
	a := &Azure{
		cfg:      config.AzureConfig{LookupStrategy: config.LookupScript},
		delegate: stubDelegate{hook: core.DelegateGetAzureBlobKey, result: "mapped/blob.png", ok: true},
	}
	key, err := a.resolveBlobKey(context.Background(), core.Identifier("id"))
	if err != nil {
		t.Fatalf("resolveBlobKey: %v", err)
	}
	if key != "mapped/blob.png" {
		t.Errorf("got key %q, want the delegate-resolved key", key)
	}
}

func TestAzureResolveBlobKeyScriptStrategyMissReturnsNotFound(t *testing.T) {
	a := &Azure{
		cfg:      config.AzureConfig{LookupStrategy: config.LookupScript},
		delegate: stubDelegate{hook: core.DelegateGetAzureBlobKey, ok: false},
	}
	_, err := a.resolveBlobKey(context.Background(), core.Identifier("id"))
	if !apperrors.IsCategory(err, apperrors.CategoryNotFound) {
		t.Errorf("expected a not-found error when the delegate answers ok=false, got %v", err)
	}
}
