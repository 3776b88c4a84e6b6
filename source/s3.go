package source

import (
	"context"
	"errors"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/cantaloupe-core/imaging/config"
	"github.com/cantaloupe-core/imaging/core"
	apperrors "github.com/cantaloupe-core/imaging/errors"
)

// S3 resolves identifiers to object keys in an S3-compatible bucket.
type S3 struct {
	cfg      config.S3Config
	delegate core.Delegate
	client   *s3.Client
}

// NewS3 builds an S3 provider, loading credentials the standard AWS way
// (env vars, shared config) or from cfg's static keys when both are set.
// A non-empty Endpoint points the client at an S3-compatible store such as
// MinIO.
func NewS3(ctx context.Context, cfg config.S3Config, delegate core.Delegate) (*S3, error) {
	if delegate == nil {
		delegate = core.NoDelegate{}
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(aws.CredentialsProviderFunc(
			func(context.Context) (aws.Credentials, error) {
				return aws.Credentials{AccessKeyID: cfg.AccessKeyID, SecretAccessKey: cfg.SecretAccessKey}, nil
			})))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryConfig, "s3.new", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = &cfg.Endpoint
		}
		o.UsePathStyle = cfg.UsePathStyle
	})
	return &S3{cfg: cfg, delegate: delegate, client: client}, nil
}

func (s *S3) Name() string { return "s3" }

func (s *S3) resolveKey(ctx context.Context, id core.Identifier) (string, error) {
	if s.cfg.LookupStrategy == config.LookupScript {
		result, ok, err := s.delegate.Call(ctx, core.DelegateGetS3ObjectKey, string(id))
		if err != nil {
			return "", apperrors.Internal("s3.resolve.delegate", err)
		}
		if !ok {
			return "", apperrors.NotFound("s3.resolve")
		}
		return result, nil
	}
	return string(id), nil
}

func (s *S3) Probe(ctx context.Context, id core.Identifier) (core.ProbeResult, error) {
	key, err := s.resolveKey(ctx, id)
	if err != nil {
		return core.ProbeResult{NotFound: true}, nil
	}
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: &s.cfg.Bucket, Key: &key})
	if err != nil {
		if isNotFound(err) {
			return core.ProbeResult{NotFound: true}, nil
		}
		return core.ProbeResult{}, apperrors.Transient("s3.probe", err)
	}
	mt := core.MediaTypeOf(core.FormatFromExtension(path.Ext(key)))
	if out.ContentType != nil && mt.Format == core.FormatUnknown {
		mt = core.MediaTypeOf(core.FormatFromContentType(*out.ContentType))
	}
	return core.ProbeResult{MediaType: mt}, nil
}

func (s *S3) Open(ctx context.Context, id core.Identifier) (core.SourceHandle, error) {
	key, err := s.resolveKey(ctx, id)
	if err != nil {
		return core.SourceHandle{}, err
	}
	return core.SourceHandle{
		Stream: func(ctx context.Context) (io.ReadCloser, error) {
			out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &s.cfg.Bucket, Key: &key})
			if err != nil {
				if isNotFound(err) {
					return nil, apperrors.NotFound("s3.open")
				}
				return nil, apperrors.Transient("s3.open", err)
			}
			return out.Body, nil
		},
	}, nil
}

func isNotFound(err error) bool {
	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		return respErr.HTTPStatusCode() == 404
	}
	return false
}
