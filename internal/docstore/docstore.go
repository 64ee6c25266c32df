// Package docstore persists uploaded documents and signature images in
// object storage. Applications reference objects by URL only; raw bytes never
// land in the record store.
package docstore

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"lifecert/internal/platform/config"
	domainerrors "lifecert/pkg/domain-errors"
)

// Storage wraps MinIO for document uploads and presigned downloads.
type Storage struct {
	client *minio.Client
	bucket string
}

// New creates a MinIO client from the Config.
func New(cfg config.MinioConfig) (*Storage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}
	return &Storage{client: client, bucket: cfg.Bucket}, nil
}

// EnsureBucket makes sure the document bucket exists before use.
func (s *Storage) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("make bucket %s: %w", s.bucket, err)
		}
	}
	return nil
}

// Upload stores one document under the owner's prefix and returns the durable
// URL an application record may reference.
func (s *Storage) Upload(ctx context.Context, ownerID, filename, contentType string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", domainerrors.New(domainerrors.CodeInvalidInput, "empty document upload")
	}
	key := path.Join(ownerID, uuid.NewString()+path.Ext(filename))
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", domainerrors.Wrap(err, domainerrors.CodeUnavailable, "store document")
	}
	return s.objectURL(key), nil
}

// PresignGet returns a time-limited download URL for handing to clients.
func (s *Storage) PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, expiry, url.Values{})
	if err != nil {
		return "", domainerrors.Wrap(err, domainerrors.CodeUnavailable, "presign document")
	}
	return u.String(), nil
}

func (s *Storage) objectURL(key string) string {
	scheme := "http"
	if s.client.EndpointURL().Scheme == "https" {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, s.client.EndpointURL().Host, s.bucket, key)
}
