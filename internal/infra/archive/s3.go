package archive

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/yanqian/health-insight/internal/domain/healthdata"
)

// S3Archive stores raw ingest payloads in an S3 compatible bucket.
type S3Archive struct {
	client *minio.Client
	bucket string
	logger *slog.Logger

	mu    sync.Mutex
	ready bool
}

// NewS3Archive constructs the archive adapter.
func NewS3Archive(endpoint, accessKey, secretKey, bucket, region string, useSSL bool, logger *slog.Logger) (*S3Archive, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(endpoint)), "https") {
		useSSL = true
	}
	client, err := minio.New(sanitizeEndpoint(endpoint), &minio.Options{
		Creds:        credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure:       useSSL,
		Region:       region,
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		return nil, fmt.Errorf("init archive client: %w", err)
	}
	return &S3Archive{client: client, bucket: bucket, logger: logger.With("component", "healthdata.archive")}, nil
}

func (a *S3Archive) ensureBucket(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ready {
		return nil
	}
	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil || !exists {
		err = a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{})
		if err != nil && minio.ToErrorResponse(err).Code != "BucketAlreadyOwnedByYou" {
			return err
		}
		a.logger.Info("archive bucket ready", "bucket", a.bucket)
	}
	a.ready = true
	return nil
}

// Put uploads one payload as a single part object.
func (a *S3Archive) Put(ctx context.Context, key, contentType string, body []byte) error {
	if err := a.ensureBucket(ctx); err != nil {
		return err
	}
	_, err := a.client.PutObject(ctx, a.bucket, key, bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
		ContentType:      contentType,
		DisableMultipart: true,
	})
	return err
}

// sanitizeEndpoint strips scheme and path so minio.New accepts the host.
func sanitizeEndpoint(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return raw
	}
	raw = strings.TrimPrefix(strings.TrimPrefix(raw, "https://"), "http://")
	if idx := strings.Index(raw, "/"); idx >= 0 {
		raw = raw[:idx]
	}
	return raw
}

var _ healthdata.Archive = (*S3Archive)(nil)
