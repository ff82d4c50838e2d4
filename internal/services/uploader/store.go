package uploader

import (
	"context"
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"nvr-worker-go/internal/config"
)

// ObjectStore uploads a local file under bucket/key and returns the number
// of bytes stored.
type ObjectStore interface {
	Put(ctx context.Context, bucket, key, path string) (int64, error)
}

// MinioStore talks to MinIO or any S3 compatible endpoint.
type MinioStore struct {
	client *minio.Client
	region string

	mu      sync.Mutex
	buckets map[string]bool
}

func NewMinioStore(cfg *config.Config) (*MinioStore, error) {
	client, err := minio.New(cfg.StorageEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.StorageAccessKey, cfg.StorageSecretKey, ""),
		Secure: cfg.StorageUseSSL,
		Region: cfg.StorageRegion,
	})
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &MinioStore{
		client:  client,
		region:  cfg.StorageRegion,
		buckets: make(map[string]bool),
	}, nil
}

// EnsureBucket creates the bucket when it does not exist yet.
func (s *MinioStore) EnsureBucket(ctx context.Context, bucket string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.buckets[bucket] {
		return nil
	}
	exists, err := s.client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
			return fmt.Errorf("create bucket %s: %w", bucket, err)
		}
	}
	s.buckets[bucket] = true
	return nil
}

func (s *MinioStore) Put(ctx context.Context, bucket, key, path string) (int64, error) {
	if err := s.EnsureBucket(ctx, bucket); err != nil {
		return 0, err
	}
	info, err := s.client.FPutObject(ctx, bucket, key, path, minio.PutObjectOptions{
		ContentType: contentType(key),
	})
	if err != nil {
		return 0, err
	}
	return info.Size, nil
}

func contentType(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".mp4":
		return "video/mp4"
	case ".jpeg", ".jpg":
		return "image/jpeg"
	default:
		return "application/octet-stream"
	}
}
