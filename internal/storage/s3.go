package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"
)

// S3API is the subset of the S3 client used by the store.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// s3Store keeps each key as a JSON object under a bucket prefix.
type s3Store struct {
	client S3API
	bucket string
	prefix string
	logger zerolog.Logger
}

// NewS3Store creates an S3-backed store using the default AWS credential chain.
func NewS3Store(ctx context.Context, bucket, region, prefix string, logger zerolog.Logger) (Store, error) {
	logger = logger.With().Str("component", "s3-storage").Logger()

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		logger.Error().Err(err).Msg("failed to load AWS configuration")
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	logger.Info().
		Str("bucket", bucket).
		Str("region", region).
		Str("prefix", prefix).
		Msg("S3 storage initialised")

	return NewS3StoreWithClient(s3.NewFromConfig(cfg), bucket, prefix, logger), nil
}

// NewS3StoreWithClient creates an S3-backed store on an existing client.
func NewS3StoreWithClient(client S3API, bucket, prefix string, logger zerolog.Logger) Store {
	return &s3Store{
		client: client,
		bucket: bucket,
		prefix: prefix,
		logger: logger,
	}
}

func (s *s3Store) objectKey(key string) string {
	return s.prefix + key + ".json"
}

func (s *s3Store) Get(ctx context.Context, key string) ([]byte, error) {
	objectKey := s.objectKey(key)

	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, ErrNotFound
		}
		s.logger.Error().
			Err(err).
			Str("bucket", s.bucket).
			Str("key", objectKey).
			Msg("failed to get object from S3")
		return nil, fmt.Errorf("failed to get object from S3 (bucket=%s, key=%s): %w", s.bucket, objectKey, err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read S3 object %s: %w", objectKey, err)
	}
	return data, nil
}

func (s *s3Store) Put(ctx context.Context, key string, value []byte) error {
	objectKey := s.objectKey(key)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(objectKey),
		Body:        bytes.NewReader(value),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("bucket", s.bucket).
			Str("key", objectKey).
			Msg("failed to put object to S3")
		return fmt.Errorf("failed to put object to S3 (bucket=%s, key=%s): %w", s.bucket, objectKey, err)
	}
	return nil
}

func (s *s3Store) Delete(ctx context.Context, key string) error {
	objectKey := s.objectKey(key)

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object from S3 (bucket=%s, key=%s): %w", s.bucket, objectKey, err)
	}
	return nil
}
