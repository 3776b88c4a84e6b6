package source

import (
	"context"
	"io"
	"net/http"
	"path"

	"github.com/cantaloupe-core/imaging/config"
	"github.com/cantaloupe-core/imaging/core"
	apperrors "github.com/cantaloupe-core/imaging/errors"
	retryablehttp "github.com/hashicorp/go-retryablehttp"
)

// HTTP resolves identifiers to URLs and reads them over HTTP(S), retrying
// transient failures (connection resets, 5xx) via retryablehttp.
type HTTP struct {
	cfg      config.HTTPConfig
	delegate core.Delegate
	client   *retryablehttp.Client
}

// NewHTTP creates an HTTP provider.
func NewHTTP(cfg config.HTTPConfig, delegate core.Delegate) *HTTP {
	if delegate == nil {
		delegate = core.NoDelegate{}
	}
	client := retryablehttp.NewClient()
	client.Logger = nil
	if cfg.RequestTimeout > 0 {
		client.HTTPClient.Timeout = cfg.RequestTimeout
	}
	return &HTTP{cfg: cfg, delegate: delegate, client: client}
}

func (h *HTTP) Name() string { return "http" }

func (h *HTTP) resolveURL(ctx context.Context, id core.Identifier) (string, error) {
	if h.cfg.LookupStrategy == config.LookupScript {
		result, ok, err := h.delegate.Call(ctx, core.DelegateGetURL, string(id))
		if err != nil {
			return "", apperrors.Internal("http.resolve.delegate", err)
		}
		if !ok {
			return "", apperrors.NotFound("http.resolve")
		}
		return result, nil
	}
	return h.cfg.URLPrefix + string(id) + h.cfg.URLSuffix, nil
}

func (h *HTTP) newRequest(ctx context.Context, method, url string) (*retryablehttp.Request, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, err
	}
	if h.cfg.BasicAuthUser != "" {
		req.SetBasicAuth(h.cfg.BasicAuthUser, h.cfg.BasicAuthPass)
	}
	return req, nil
}

func (h *HTTP) Probe(ctx context.Context, id core.Identifier) (core.ProbeResult, error) {
	url, err := h.resolveURL(ctx, id)
	if err != nil {
		return core.ProbeResult{NotFound: true}, nil
	}
	req, err := h.newRequest(ctx, http.MethodHead, url)
	if err != nil {
		return core.ProbeResult{}, apperrors.Wrap(apperrors.CategoryStorage, "http.probe", err)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return core.ProbeResult{}, apperrors.Wrap(apperrors.CategoryUpstreamUnavailable, "http.probe", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return core.ProbeResult{NotFound: true}, nil
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized:
		return core.ProbeResult{Denied: true}, nil
	case resp.StatusCode >= 400:
		return core.ProbeResult{}, apperrors.New(apperrors.CategoryUpstreamUnavailable, "http.probe", apperrors.ErrStorageUnavailable)
	}

	mt := core.MediaTypeOf(core.FormatFromExtension(path.Ext(string(id))))
	if mt.Format == core.FormatUnknown {
		mt = core.MediaTypeOf(core.FormatFromContentType(resp.Header.Get("Content-Type")))
	}
	return core.ProbeResult{MediaType: mt}, nil
}

func (h *HTTP) Open(ctx context.Context, id core.Identifier) (core.SourceHandle, error) {
	url, err := h.resolveURL(ctx, id)
	if err != nil {
		return core.SourceHandle{}, err
	}
	return core.SourceHandle{
		Stream: func(ctx context.Context) (io.ReadCloser, error) {
			req, err := h.newRequest(ctx, http.MethodGet, url)
			if err != nil {
				return nil, apperrors.Wrap(apperrors.CategoryStorage, "http.open", err)
			}
			resp, err := h.client.Do(req)
			if err != nil {
				return nil, apperrors.Wrap(apperrors.CategoryUpstreamUnavailable, "http.open", err)
			}
			if resp.StatusCode == http.StatusNotFound {
				resp.Body.Close()
				return nil, apperrors.NotFound("http.open")
			}
			if resp.StatusCode >= 400 {
				resp.Body.Close()
				return nil, apperrors.New(apperrors.CategoryUpstreamUnavailable, "http.open", apperrors.ErrStorageUnavailable)
			}
			return resp.Body, nil
		},
	}, nil
}
