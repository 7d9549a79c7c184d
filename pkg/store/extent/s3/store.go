// Package s3 stores extents as objects in an S3 bucket.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/marmos91/dittoblk/internal/telemetry"
	"github.com/marmos91/dittoblk/pkg/store/extent"
)

// Config holds configuration for the S3 extent store.
type Config struct {
	Bucket string `mapstructure:"bucket"`

	// Region is the AWS region (optional, uses SDK default if empty).
	Region string `mapstructure:"region"`

	// Endpoint is the S3 endpoint URL for S3-compatible services.
	Endpoint string `mapstructure:"endpoint"`

	// KeyPrefix is prepended to every extent key, e.g. "disks/".
	KeyPrefix string `mapstructure:"key_prefix"`

	// AccessKeyID and SecretAccessKey select static credentials. Empty
	// values fall back to the SDK credential chain.
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`

	// ForcePathStyle forces path-style addressing (Localstack, MinIO).
	ForcePathStyle bool `mapstructure:"force_path_style"`
}

// Store is an S3-backed extent.Store.
type Store struct {
	client    *s3.Client
	bucket    string
	keyPrefix string

	mu     sync.RWMutex
	closed bool
}

// New creates a store on an existing client.
func New(client *s3.Client, cfg Config) *Store {
	return &Store{
		client:    client,
		bucket:    cfg.Bucket,
		keyPrefix: cfg.KeyPrefix,
	}
}

// NewFromConfig builds the S3 client from cfg and the environment.
func NewFromConfig(ctx context.Context, cfg Config) (*Store, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})
	return New(client, cfg), nil
}

func (s *Store) check() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return extent.ErrStoreClosed
	}
	return nil
}

func (s *Store) key(volume string, idx uint64) string {
	return s.keyPrefix + extent.Key(volume, idx)
}

func (s *Store) WriteExtent(ctx context.Context, volume string, idx uint64, data []byte) error {
	if err := s.check(); err != nil {
		return err
	}
	if err := extent.ValidateVolume(volume); err != nil {
		return err
	}

	key := s.key(volume, idx)
	ctx, span := telemetry.StartStoreSpan(ctx, telemetry.SpanStoreWrite, "s3", volume,
		telemetry.Bucket(s.bucket), telemetry.StorageKey(key))
	defer span.End()

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		telemetry.RecordError(ctx, err)
		return fmt.Errorf("s3 put object: %w", err)
	}
	return nil
}

func (s *Store) ReadExtent(ctx context.Context, volume string, idx uint64) ([]byte, error) {
	if err := s.check(); err != nil {
		return nil, err
	}

	key := s.key(volume, idx)
	ctx, span := telemetry.StartStoreSpan(ctx, telemetry.SpanStoreRead, "s3", volume,
		telemetry.Bucket(s.bucket), telemetry.StorageKey(key))
	defer span.End()

	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, extent.ErrExtentNotFound
		}
		telemetry.RecordError(ctx, err)
		return nil, fmt.Errorf("s3 get object: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read s3 object body: %w", err)
	}
	return data, nil
}

func (s *Store) DeleteExtent(ctx context.Context, volume string, idx uint64) error {
	if err := s.check(); err != nil {
		return err
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(volume, idx)),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("s3 delete object: %w", err)
	}
	return nil
}

// listKeys walks every object under the volume prefix.
func (s *Store) listKeys(ctx context.Context, volume string, fn func(page []types.Object) error) error {
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.keyPrefix + extent.Prefix(volume)),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("s3 list objects: %w", err)
		}
		if len(page.Contents) == 0 {
			continue
		}
		if err := fn(page.Contents); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) ListExtents(ctx context.Context, volume string) ([]uint64, error) {
	if err := s.check(); err != nil {
		return nil, err
	}

	ctx, span := telemetry.StartStoreSpan(ctx, telemetry.SpanStoreList, "s3", volume, telemetry.Bucket(s.bucket))
	defer span.End()

	var out []uint64
	err := s.listKeys(ctx, volume, func(objs []types.Object) error {
		for _, obj := range objs {
			key := strings.TrimPrefix(aws.ToString(obj.Key), s.keyPrefix)
			if _, idx, err := extent.ParseKey(key); err == nil {
				out = append(out, idx)
			}
		}
		return nil
	})
	if err != nil {
		telemetry.RecordError(ctx, err)
		return nil, err
	}
	slices.Sort(out)
	return out, nil
}

// DeleteVolume removes the volume's objects in batches of at most 1000, one
// batch per listing page.
func (s *Store) DeleteVolume(ctx context.Context, volume string) error {
	if err := s.check(); err != nil {
		return err
	}
	if err := extent.ValidateVolume(volume); err != nil {
		return err
	}

	ctx, span := telemetry.StartStoreSpan(ctx, telemetry.SpanStoreDelete, "s3", volume, telemetry.Bucket(s.bucket))
	defer span.End()

	return s.listKeys(ctx, volume, func(objs []types.Object) error {
		ids := make([]types.ObjectIdentifier, len(objs))
		for i, obj := range objs {
			ids[i] = types.ObjectIdentifier{Key: obj.Key}
		}
		_, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &types.Delete{Objects: ids, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return fmt.Errorf("s3 delete objects: %w", err)
		}
		return nil
	})
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// HealthCheck issues HeadBucket to verify connectivity and permissions.
func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.check(); err != nil {
		return err
	}
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		return fmt.Errorf("S3 health check failed: %w", err)
	}
	return nil
}

func isNotFound(err error) bool {
	var noKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noKey) || errors.As(err, &notFound) {
		return true
	}
	// Some S3-compatible services only report the status in the message.
	msg := err.Error()
	return strings.Contains(msg, "NoSuchKey") || strings.Contains(msg, "NotFound") || strings.Contains(msg, "StatusCode: 404")
}

var _ extent.Store = (*Store)(nil)
