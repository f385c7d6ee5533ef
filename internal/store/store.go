// Package store wraps the remote object store. It owns the
// download–verify–install protocol that guarantees consumers never observe a
// partially written artifact: every download lands in a staging file first
// and is published onto its final path with a single atomic rename.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/dmitrijs2005/modelsync/internal/artifact"
	"github.com/dmitrijs2005/modelsync/internal/config"
	"github.com/dmitrijs2005/modelsync/internal/logging"
)

// StagingSuffix is appended to an artifact's final path to form the staging
// path owned by an in-flight download.
const StagingSuffix = ".tmp"

// S3API is the subset of the S3 client the store uses. It is satisfied by
// *s3.Client and by test fakes.
type S3API interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// ObjectInfo describes a remote object. It is fetched on demand and never
// cached across calls.
type ObjectInfo struct {
	Size         int64
	LastModified time.Time
	ETag         string
}

type Client struct {
	api       S3API
	bucket    string
	diskSlack int64
	validator *artifact.Validator
	logger    logging.Logger
}

func NewClient(api S3API, bucket string, diskSlack int64, validator *artifact.Validator, logger logging.Logger) *Client {
	return &Client{
		api:       api,
		bucket:    bucket,
		diskSlack: diskSlack,
		validator: validator,
		logger:    logger,
	}
}

// NewClientFromConfig builds a Client backed by a real S3 client. Static
// credentials and a custom base endpoint (MinIO etc.) are applied when
// configured; otherwise the default AWS chain is used.
func NewClientFromConfig(ctx context.Context, cfg *config.Config, validator *artifact.Validator, logger logging.Logger) (*Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.S3AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3BaseEndpoint)
			o.UsePathStyle = true
		}
	})

	return NewClient(client, cfg.Bucket, cfg.DiskSlack, validator, logger), nil
}

// Describe fetches remote metadata for key. A missing object is reported as
// (nil, nil), not as an error; any other failure propagates.
func (c *Client) Describe(ctx context.Context, key string) (*ObjectInfo, error) {
	out, err := c.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nf *types.NotFound
		if errors.As(err, &nf) {
			return nil, nil
		}
		return nil, fmt.Errorf("head %s: %w", key, err)
	}

	info := &ObjectInfo{}
	if out.ContentLength != nil {
		info.Size = *out.ContentLength
	}
	if out.LastModified != nil {
		info.LastModified = *out.LastModified
	}
	if out.ETag != nil {
		info.ETag = *out.ETag
	}
	return info, nil
}

// ListQualifyingObjects enumerates every artifact key in the bucket,
// following the listing's continuation tokens to completion and filtering
// through the validator's qualification predicate.
func (c *Client) ListQualifyingObjects(ctx context.Context) ([]string, error) {
	var keys []string

	paginator := s3.NewListObjectsV2Paginator(c.api, &s3.ListObjectsV2Input{
		Bucket: aws.String(c.bucket),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list bucket %s: %w", c.bucket, err)
		}
		for _, obj := range page.Contents {
			if obj.Key == nil {
				continue
			}
			if c.validator.Qualifies(*obj.Key) {
				keys = append(keys, *obj.Key)
			}
		}
	}

	return keys, nil
}
