package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/tendant/content-registry/pkg/registry"
)

// DefaultExtension is appended to every object key
const DefaultExtension = ".json"

// Client is the subset of the S3 API used by the backend. *s3.Client satisfies it.
type Client interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Config options for the S3 backend
type Config struct {
	Region          string // AWS region
	Bucket          string // S3 bucket name
	Prefix          string // Optional key prefix, e.g. "registry/"
	Extension       string // Object key extension (default: ".json")
	AccessKeyID     string // AWS access key ID
	SecretAccessKey string // AWS secret access key
	Endpoint        string // Optional custom endpoint for S3-compatible services
	UsePathStyle    bool   // Use path-style addressing (default: false)

	// MinIO/S3-compatible service options
	CreateBucketIfNotExist bool // Create bucket during Initialize if it doesn't exist

	Logger *slog.Logger // Receives swallowed request and decode failures (default: slog.Default())
}

// Backend is an S3-compatible implementation of the registry.Storage interface.
// Each item is one JSON object; adds use a conditional put so concurrent
// writers of the same key cannot overwrite each other.
type Backend struct {
	client Client
	config Config
	logger *slog.Logger
}

// New creates a new S3-compatible storage backend
func New(config Config) (*Backend, error) {
	if config.Bucket == "" {
		return nil, fmt.Errorf("%w: bucket name is required", registry.ErrInvalidArgument)
	}

	if config.Region == "" {
		config.Region = "us-east-1"
	}

	// Set up AWS config
	var awsCfg aws.Config
	var err error

	if config.AccessKeyID != "" && config.SecretAccessKey != "" {
		// Use provided credentials
		awsCfg, err = awsconfig.LoadDefaultConfig(context.Background(),
			awsconfig.WithRegion(config.Region),
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				config.AccessKeyID,
				config.SecretAccessKey,
				"",
			)),
		)
	} else {
		// Use default credential chain
		awsCfg, err = awsconfig.LoadDefaultConfig(context.Background(),
			awsconfig.WithRegion(config.Region),
		)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Options []func(*s3.Options)
	if config.Endpoint != "" {
		s3Options = append(s3Options, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(config.Endpoint)
			o.UsePathStyle = config.UsePathStyle
		})
	}

	return NewWithClient(s3.NewFromConfig(awsCfg, s3Options...), config)
}

// NewWithClient creates a backend on top of an existing client
func NewWithClient(client Client, config Config) (*Backend, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: client is required", registry.ErrInvalidArgument)
	}
	if config.Bucket == "" {
		return nil, fmt.Errorf("%w: bucket name is required", registry.ErrInvalidArgument)
	}
	if config.Region == "" {
		config.Region = "us-east-1"
	}
	if config.Extension == "" {
		config.Extension = DefaultExtension
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Backend{client: client, config: config, logger: logger}, nil
}

// Initialize checks that the bucket is reachable, creating it when configured to
func (b *Backend) Initialize(ctx context.Context) error {
	if b.config.CreateBucketIfNotExist {
		if err := b.createBucketIfNotExists(ctx); err != nil {
			return &registry.StorageError{Backend: "s3", Op: "initialize", Err: err}
		}
		return nil
	}

	if _, err := b.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(b.config.Bucket)}); err != nil {
		return &registry.StorageError{Backend: "s3", Op: "initialize", Err: fmt.Errorf("failed to check bucket: %w", err)}
	}
	return nil
}

// createBucketIfNotExists creates the bucket if it doesn't exist
func (b *Backend) createBucketIfNotExists(ctx context.Context) error {
	_, err := b.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(b.config.Bucket),
	})
	if err == nil {
		return nil
	}

	// MinIO reports a missing bucket in several ways
	var noSuchBucket *types.NoSuchBucket
	if !isNotFound(err) && !errors.As(err, &noSuchBucket) &&
		!strings.Contains(err.Error(), "BadRequest") &&
		!strings.Contains(err.Error(), "NoSuchBucket") {
		return fmt.Errorf("failed to check bucket: %w", err)
	}

	createInput := &s3.CreateBucketInput{
		Bucket: aws.String(b.config.Bucket),
	}

	// Add location constraint for regions other than us-east-1
	if b.config.Region != "us-east-1" {
		createInput.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(b.config.Region),
		}
	}

	if _, err := b.client.CreateBucket(ctx, createInput); err != nil {
		if hasErrorCode(err, "BucketAlreadyExists", "BucketAlreadyOwnedByYou") {
			return nil
		}
		return fmt.Errorf("failed to create bucket: %w", err)
	}

	return nil
}

// TryAdd uploads item unless an object already exists for key
func (b *Backend) TryAdd(ctx context.Context, key string, item *registry.Item) (bool, error) {
	if err := registry.CheckKey(key); err != nil {
		return false, err
	}
	if err := registry.CheckItem(item); err != nil {
		return false, err
	}

	objectKey := b.objectKey(key)
	exists, err := b.exists(ctx, objectKey)
	if err != nil {
		b.logger.WarnContext(ctx, "Failed to check object", "key", key, "object_key", objectKey, "err", err)
		return false, nil
	}
	if exists {
		return false, nil
	}

	data, err := registry.EncodeRecord(item)
	if err != nil {
		b.logger.WarnContext(ctx, "Failed to encode record", "key", key, "err", err)
		return false, nil
	}

	_, err = b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.config.Bucket),
		Key:         aws.String(objectKey),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
		IfNoneMatch: aws.String("*"),
	})
	if err != nil {
		if hasErrorCode(err, "PreconditionFailed", "ConditionalRequestConflict") {
			return false, nil
		}
		b.logger.WarnContext(ctx, "Failed to upload record", "key", key, "object_key", objectKey, "err", err)
		return false, nil
	}

	return true, nil
}

// TryGet downloads and decodes the object for key
func (b *Backend) TryGet(ctx context.Context, key string) (*registry.Item, bool, error) {
	if err := registry.CheckKey(key); err != nil {
		return nil, false, err
	}

	objectKey := b.objectKey(key)
	result, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.config.Bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		if !isNotFound(err) {
			b.logger.WarnContext(ctx, "Failed to download record", "key", key, "object_key", objectKey, "err", err)
		}
		return nil, false, nil
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		b.logger.WarnContext(ctx, "Failed to read record", "key", key, "object_key", objectKey, "err", err)
		return nil, false, nil
	}

	item, err := registry.DecodeRecord(data)
	if errors.Is(err, registry.ErrUnsupported) {
		return nil, false, &registry.StorageError{Backend: "s3", Key: key, Op: "get", Err: err}
	} else if err != nil {
		b.logger.WarnContext(ctx, "Failed to decode record", "key", key, "object_key", objectKey, "err", err)
		return nil, false, nil
	}

	return item, true, nil
}

// TryRemove deletes the object for key if it exists
func (b *Backend) TryRemove(ctx context.Context, key string) (bool, error) {
	if err := registry.CheckKey(key); err != nil {
		return false, err
	}

	objectKey := b.objectKey(key)
	exists, err := b.exists(ctx, objectKey)
	if err != nil {
		b.logger.WarnContext(ctx, "Failed to check object", "key", key, "object_key", objectKey, "err", err)
		return false, nil
	}
	if !exists {
		return false, nil
	}

	_, err = b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.config.Bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		b.logger.WarnContext(ctx, "Failed to delete record", "key", key, "object_key", objectKey, "err", err)
		return false, nil
	}

	return true, nil
}

// ContainsKey reports whether an object exists for key
func (b *Backend) ContainsKey(ctx context.Context, key string) (bool, error) {
	if err := registry.CheckKey(key); err != nil {
		return false, err
	}

	objectKey := b.objectKey(key)
	exists, err := b.exists(ctx, objectKey)
	if err != nil {
		b.logger.WarnContext(ctx, "Failed to check object", "key", key, "object_key", objectKey, "err", err)
		return false, nil
	}
	return exists, nil
}

// ObjectKey returns the object key used for key
func (b *Backend) ObjectKey(key string) string {
	return b.objectKey(key)
}

func (b *Backend) objectKey(key string) string {
	return b.config.Prefix + registry.SanitizeFileName(registry.NormalizeKey(key)) + b.config.Extension
}

func (b *Backend) exists(ctx context.Context, objectKey string) (bool, error) {
	_, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.config.Bucket),
		Key:    aws.String(objectKey),
	})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, err
}

func isNotFound(err error) bool {
	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &notFound) || errors.As(err, &noSuchKey) {
		return true
	}
	return hasErrorCode(err, "NotFound", "NoSuchKey")
}

func hasErrorCode(err error, codes ...string) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	for _, code := range codes {
		if apiErr.ErrorCode() == code {
			return true
		}
	}
	return false
}
