package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cantaloupe-core/imaging/config"
	"github.com/cantaloupe-core/imaging/core"
	apperrors "github.com/cantaloupe-core/imaging/errors"
)

func TestHTTPProbeResolvesMediaTypeFromContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg; charset=binary")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	h := NewHTTP(config.HTTPConfig{URLPrefix: srv.URL + "/"}, nil)
	res, err := h.Probe(context.Background(), core.Identifier("a"))
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if res.MediaType.Format != core.FormatJPEG {
		t.Errorf("got format %s, want jpeg", res.MediaType.Format)
	}
}

func TestHTTPProbeReportsNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	h := NewHTTP(config.HTTPConfig{URLPrefix: srv.URL + "/"}, nil)
	res, err := h.Probe(context.Background(), core.Identifier("missing.jpg"))
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if !res.NotFound {
		t.Error("expected NotFound for a 404 response")
	}
}

func TestHTTPProbeReportsDenied(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	h := NewHTTP(config.HTTPConfig{URLPrefix: srv.URL + "/"}, nil)
	res, err := h.Probe(context.Background(), core.Identifier("secret.jpg"))
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if !res.Denied {
		t.Error("expected Denied for a 403 response")
	}
}

func TestHTTPOpenStreamsBody(t *testing.T) {
	const payload = "jpeg-bytes"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(payload))
	}))
	defer srv.Close()

	h := NewHTTP(config.HTTPConfig{URLPrefix: srv.URL + "/"}, nil)
	handle, err := h.Open(context.Background(), core.Identifier("a.jpg"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	rc, err := handle.Stream(context.Background())
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	defer rc.Close()
	buf := make([]byte, len(payload))
	if _, err := rc.Read(buf); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(buf) != payload {
		t.Errorf("got %q, want %q", buf, payload)
	}
}

func TestHTTPResolveURLScriptStrategyMissReturnsNotFound(t *testing.T) {
	h := NewHTTP(config.HTTPConfig{LookupStrategy: config.LookupScript}, stubDelegate{hook: core.DelegateGetURL, ok: false})
	_, err := h.resolveURL(context.Background(), core.Identifier("id"))
	if !apperrors.IsCategory(err, apperrors.CategoryNotFound) {
		t.Errorf("expected a not-found error when the delegate answers ok=false, got %v", err)
	}
}
