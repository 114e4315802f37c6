package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/inhalecare/inhalecare/internal/platform/apperr"
)

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// MinioStore keeps objects in a single S3-compatible bucket.
type MinioStore struct {
	client *minio.Client
	bucket string
}

// NewMinioStore connects to the endpoint and creates the bucket if it does
// not exist yet.
func NewMinioStore(ctx context.Context, cfg MinioConfig) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("creating minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("checking bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("creating bucket %s: %w", cfg.Bucket, err)
		}
	}
	return &MinioStore{client: client, bucket: cfg.Bucket}, nil
}

func (s *MinioStore) Put(ctx context.Context, key, contentType string, content io.Reader, maxSize int64) (*Object, error) {
	data, err := readLimited(content, maxSize)
	if err != nil {
		return nil, err
	}
	sum := checksum(data)

	_, err = s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:  contentType,
		UserMetadata: map[string]string{"sha256": sum},
	})
	if err != nil {
		return nil, apperr.Unavailable(err, "storing object %s", key)
	}
	return &Object{
		Key:         key,
		ContentType: contentType,
		Size:        int64(len(data)),
		SHA256:      sum,
		StoredAt:    time.Now().UTC(),
	}, nil
}

func (s *MinioStore) Get(ctx context.Context, key string) (io.ReadCloser, *Object, error) {
	info, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return nil, nil, mapMinioError(err, key)
	}
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, nil, mapMinioError(err, key)
	}
	return obj, &Object{
		Key:         key,
		ContentType: info.ContentType,
		Size:        info.Size,
		SHA256:      info.UserMetadata["Sha256"],
		StoredAt:    info.LastModified,
	}, nil
}

func (s *MinioStore) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return mapMinioError(err, key)
	}
	return nil
}

// Ping checks that the bucket is reachable, for readiness probes.
func (s *MinioStore) Ping(ctx context.Context) error {
	if _, err := s.client.BucketExists(ctx, s.bucket); err != nil {
		return apperr.Unavailable(err, "object store unreachable")
	}
	return nil
}

func mapMinioError(err error, key string) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return apperr.NotFound("object %s not found", key)
	}
	return apperr.Unavailable(err, "object store request for %s failed", key)
}
