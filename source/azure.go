package source

import (
	"context"
	"errors"
	"io"
	"path"

	azblob "github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	azcore "github.com/Azure/azure-sdk-for-go/sdk/azcore"

	appconfig "github.com/cantaloupe-core/imaging/config"
	"github.com/cantaloupe-core/imaging/core"
	apperrors "github.com/cantaloupe-core/imaging/errors"
)

// Azure resolves identifiers to blobs in an Azure Storage container.
type Azure struct {
	cfg      appconfig.AzureConfig
	delegate core.Delegate
	client   *azblob.Client
}

// NewAzure builds an Azure provider using shared-key credentials from cfg.
func NewAzure(cfg appconfig.AzureConfig, delegate core.Delegate) (*Azure, error) {
	if delegate == nil {
		delegate = core.NoDelegate{}
	}
	cred, err := azblob.NewSharedKeyCredential(cfg.AccountName, cfg.AccountKey)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryConfig, "azure.new", err)
	}
	serviceURL := "https://" + cfg.AccountName + ".blob.core.windows.net/"
	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryConfig, "azure.new", err)
	}
	return &Azure{cfg: cfg, delegate: delegate, client: client}, nil
}

func (a *Azure) Name() string { return "azure" }

func (a *Azure) resolveBlobKey(ctx context.Context, id core.Identifier) (string, error) {
	if a.cfg.LookupStrategy == appconfig.LookupScript {
		result, ok, err := a.delegate.Call(ctx, core.DelegateGetAzureBlobKey, string(id))
		if err != nil {
			return "", apperrors.Internal("azure.resolve.delegate", err)
		}
		if !ok {
			return "", apperrors.NotFound("azure.resolve")
		}
		return result, nil
	}
	return string(id), nil
}

func (a *Azure) Probe(ctx context.Context, id core.Identifier) (core.ProbeResult, error) {
	key, err := a.resolveBlobKey(ctx, id)
	if err != nil {
		return core.ProbeResult{NotFound: true}, nil
	}
	props, err := a.client.ServiceClient().NewContainerClient(a.cfg.Container).NewBlobClient(key).GetProperties(ctx, nil)
	if err != nil {
		if isAzureNotFound(err) {
			return core.ProbeResult{NotFound: true}, nil
		}
		return core.ProbeResult{}, apperrors.Transient("azure.probe", err)
	}
	mt := core.MediaTypeOf(core.FormatFromExtension(path.Ext(key)))
	if props.ContentType != nil && mt.Format == core.FormatUnknown {
		mt = core.MediaTypeOf(core.FormatFromContentType(*props.ContentType))
	}
	return core.ProbeResult{MediaType: mt}, nil
}

func (a *Azure) Open(ctx context.Context, id core.Identifier) (core.SourceHandle, error) {
	key, err := a.resolveBlobKey(ctx, id)
	if err != nil {
		return core.SourceHandle{}, err
	}
	return core.SourceHandle{
		Stream: func(ctx context.Context) (io.ReadCloser, error) {
			resp, err := a.client.DownloadStream(ctx, a.cfg.Container, key, nil)
			if err != nil {
				if isAzureNotFound(err) {
					return nil, apperrors.NotFound("azure.open")
				}
				return nil, apperrors.Transient("azure.open", err)
			}
			return resp.Body, nil
		},
	}, nil
}

func isAzureNotFound(err error) bool {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		return respErr.StatusCode == 404
	}
	return false
}
