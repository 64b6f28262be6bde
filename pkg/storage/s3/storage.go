package s3

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/mosajjal/iamwatch/pkg/models"
	"github.com/mosajjal/iamwatch/pkg/storage"
)

// GetObjectAPI is the part of the S3 client the storage needs
type GetObjectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Storage reads CloudTrail archives from S3
type Storage struct {
	config storage.StorageConfig
	client GetObjectAPI
	logger *slog.Logger
}

// NewStorage creates a new S3 storage backend
func NewStorage(cfg storage.StorageConfig, awsCfg aws.Config) *Storage {
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Region != "" {
			o.Region = cfg.Region
		}
	})
	return NewWithClient(cfg, client)
}

// NewWithClient wraps an existing client
func NewWithClient(cfg storage.StorageConfig, client GetObjectAPI) *Storage {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Storage{config: cfg, client: client, logger: logger}
}

// Fetch downloads bucket/key and gunzips it
func (s *Storage) Fetch(ctx context.Context, bucket, key string) (*models.Object, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get s3://%s/%s: %w", bucket, key, classify(err))
	}
	defer out.Body.Close()

	body, err := storage.Decompress(out.Body)
	if err != nil {
		return nil, fmt.Errorf("s3://%s/%s: %w", bucket, key, err)
	}

	s.logger.Debug("fetched object", "bucket", bucket, "key", key, "bytes", len(body))
	return &models.Object{
		ContentType: aws.ToString(out.ContentType),
		Body:        body,
	}, nil
}

// classify maps S3 API errors onto the storage error kinds, keeping the
// original error in the chain.
func classify(err error) error {
	var noKey *types.NoSuchKey
	var noBucket *types.NoSuchBucket
	if errors.As(err, &noKey) || errors.As(err, &noBucket) {
		return fmt.Errorf("%w: %w", storage.ErrObjectNotFound, err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NoSuchBucket", "NotFound":
			return fmt.Errorf("%w: %w", storage.ErrObjectNotFound, err)
		case "AccessDenied", "Forbidden", "AllAccessDisabled", "InvalidObjectState":
			return fmt.Errorf("%w: %w", storage.ErrAccessDenied, err)
		}
	}
	return err
}
