// Package storage archives uploaded source documents in MinIO.
package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/iexcalibur/invoice-extractor/internal/models"
)

// Archive stores original uploads so extractions can be audited later.
type Archive struct {
	client *minio.Client
	bucket string
	logger *zap.Logger
}

// NewArchive connects to MinIO and ensures the bucket exists.
func NewArchive(ctx context.Context, cfg models.StorageConfig, logger *zap.Logger) (*Archive, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
		logger.Info("bucket created", zap.String("bucket", cfg.Bucket))
	}

	return &Archive{client: client, bucket: cfg.Bucket, logger: logger}, nil
}

// Upload stores a local file under a date-partitioned object key and returns
// that key.
func (a *Archive) Upload(ctx context.Context, localPath, originalName string) (string, error) {
	object := objectKey(time.Now().UTC(), originalName)

	info, err := a.client.FPutObject(ctx, a.bucket, object, localPath, minio.PutObjectOptions{
		ContentType: contentTypeFor(originalName),
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", originalName, err)
	}

	a.logger.Info("document archived",
		zap.String("object", object),
		zap.Int64("size", info.Size))
	return object, nil
}

// PresignedURL returns a download URL valid for 24 hours.
func (a *Archive) PresignedURL(ctx context.Context, object string) (string, error) {
	u, err := a.client.PresignedGetObject(ctx, a.bucket, object, 24*time.Hour, nil)
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", object, err)
	}
	return u.String(), nil
}

// Remove deletes an archived object.
func (a *Archive) Remove(ctx context.Context, object string) error {
	if err := a.client.RemoveObject(ctx, a.bucket, object, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove %s: %w", object, err)
	}
	return nil
}

// objectKey partitions uploads by year and month so the bucket stays
// browsable. The uuid prevents collisions between same-named uploads.
func objectKey(now time.Time, originalName string) string {
	ext := strings.ToLower(filepath.Ext(originalName))
	return fmt.Sprintf("%d/%02d/%s%s", now.Year(), now.Month(), uuid.New().String(), ext)
}

func contentTypeFor(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return "application/pdf"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".tif", ".tiff":
		return "image/tiff"
	default:
		return "application/octet-stream"
	}
}
