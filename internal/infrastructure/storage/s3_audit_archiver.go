// Package storage writes audit trail exports to S3-compatible object storage.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/erp/finkernel/internal/domain/audit"
	"github.com/erp/finkernel/internal/infrastructure/config"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ContentTypeNDJSON is the media type of archive objects.
const ContentTypeNDJSON = "application/x-ndjson"

// ObjectAPI is the subset of the S3 client used by the archiver.
type ObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, opts ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, in *s3.CreateBucketInput, opts ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
}

// S3AuditArchiver writes one NDJSON object per tenant and UTC day under
// <prefix>/<tenant>/<yyyy>/<mm>/<dd>.ndjson. Re-archiving a day replaces the
// object.
type S3AuditArchiver struct {
	client ObjectAPI
	bucket string
	prefix string
	logger *zap.Logger
}

// S3AuditArchiverOption configures an S3AuditArchiver
type S3AuditArchiverOption func(*S3AuditArchiver)

// WithLogger sets the archiver logger
func WithLogger(logger *zap.Logger) S3AuditArchiverOption {
	return func(a *S3AuditArchiver) {
		a.logger = logger
	}
}

// WithClient replaces the S3 client
func WithClient(client ObjectAPI) S3AuditArchiverOption {
	return func(a *S3AuditArchiver) {
		a.client = client
	}
}

// NewS3AuditArchiver builds an archiver from configuration. Static
// credentials are used when both keys are set; otherwise the default AWS
// credential chain applies.
func NewS3AuditArchiver(ctx context.Context, cfg config.AuditArchiveConfig, opts ...S3AuditArchiverOption) (*S3AuditArchiver, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("audit archive bucket is required")
	}
	if (cfg.AccessKey == "") != (cfg.SecretKey == "") {
		return nil, errors.New("audit archive access key and secret key must be set together")
	}

	a := &S3AuditArchiver{
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.client != nil {
		return a, nil
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	a.client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.ForcePathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return a, nil
}

// EnsureBucket creates the bucket when it does not exist
func (a *S3AuditArchiver) EnsureBucket(ctx context.Context) error {
	_, err := a.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(a.bucket)})
	if err == nil {
		return nil
	}
	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if !errors.As(err, &notFound) && !errors.As(err, &noSuchBucket) {
		return fmt.Errorf("failed to check bucket %s: %w", a.bucket, err)
	}

	a.logger.Info("Creating audit archive bucket", zap.String("bucket", a.bucket))
	_, err = a.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(a.bucket)})
	var owned *types.BucketAlreadyOwnedByYou
	if err != nil && !errors.As(err, &owned) {
		return fmt.Errorf("failed to create bucket %s: %w", a.bucket, err)
	}
	return nil
}

// Key returns the object key of a tenant day
func (a *S3AuditArchiver) Key(tenantID uuid.UUID, day time.Time) string {
	day = day.UTC()
	return path.Join(a.prefix, tenantID.String(), day.Format("2006"), day.Format("01"), day.Format("02")+".ndjson")
}

// ArchiveDay writes events as NDJSON and returns the s3:// location
func (a *S3AuditArchiver) ArchiveDay(ctx context.Context, tenantID uuid.UUID, day time.Time, events []audit.Event) (string, error) {
	body, err := EncodeNDJSON(tenantID, events)
	if err != nil {
		return "", err
	}
	key := a.Key(tenantID, day)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:            aws.String(a.bucket),
		Key:               aws.String(key),
		Body:              bytes.NewReader(body),
		ContentType:       aws.String(ContentTypeNDJSON),
		ChecksumAlgorithm: types.ChecksumAlgorithmSha256,
		Metadata: map[string]string{
			"tenant-id":   tenantID.String(),
			"event-count": strconv.Itoa(len(events)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload audit archive %s: %w", key, err)
	}

	a.logger.Info("Audit archive written",
		zap.String("tenant_id", tenantID.String()),
		zap.String("key", key),
		zap.Int("events", len(events)),
	)
	return "s3://" + a.bucket + "/" + key, nil
}

// EncodeNDJSON renders one JSON object per line. Every event must belong to
// tenantID.
func EncodeNDJSON(tenantID uuid.UUID, events []audit.Event) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, e := range events {
		if e.TenantID != tenantID {
			return nil, fmt.Errorf("audit event %s belongs to another tenant", e.ID)
		}
		if err := enc.Encode(e); err != nil {
			return nil, fmt.Errorf("failed to encode audit event %s: %w", e.ID, err)
		}
	}
	return buf.Bytes(), nil
}

// Bucket returns the bucket name
func (a *S3AuditArchiver) Bucket() string {
	return a.bucket
}
