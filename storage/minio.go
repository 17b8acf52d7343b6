package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"soundscape/config"
	"soundscape/logger"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioStorage persists audio in an object-storage bucket. Objects are served
// via the bucket's public URL.
type MinioStorage struct {
	client    *minio.Client
	bucket    string
	publicURL string
	quota     int64
}

// NewMinioStorage connects to the bucket and ensures it exists.
func NewMinioStorage(cfg *config.Config) (*MinioStorage, error) {
	logger.Info("Connecting to MinIO",
		logger.String("endpoint", cfg.MinioEndpoint),
		logger.String("bucket", cfg.MinioBucket))

	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
		Region: cfg.MinioRegion,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.MinioBucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", cfg.MinioBucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.MinioBucket, minio.MakeBucketOptions{Region: cfg.MinioRegion}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", cfg.MinioBucket, err)
		}
		logger.Info("Created bucket", logger.String("bucket", cfg.MinioBucket))
	}

	scheme := "http"
	if cfg.MinioUseSSL {
		scheme = "https"
	}

	return &MinioStorage{
		client:    client,
		bucket:    cfg.MinioBucket,
		publicURL: fmt.Sprintf("%s://%s/%s", scheme, cfg.MinioEndpoint, cfg.MinioBucket),
		quota:     cfg.QuotaBytes(),
	}, nil
}

func (s *MinioStorage) Save(ctx context.Context, key string, r io.Reader, size int64, contentType string) (StoredObject, error) {
	_, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return StoredObject{}, fmt.Errorf("failed to upload object %s: %w", key, err)
	}
	return StoredObject{Key: key, URL: s.publicURL + "/" + key}, nil
}

func (s *MinioStorage) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	object, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s: %w", key, err)
	}

	// GetObject is lazy; Stat forces the first request so a missing key
	// surfaces here instead of on the first read.
	if _, err := object.Stat(); err != nil {
		object.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("failed to stat object %s: %w", key, err)
	}
	return object, nil
}

func (s *MinioStorage) Delete(ctx context.Context, key string) error {
	if _, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return ErrObjectNotFound
		}
		return fmt.Errorf("failed to stat object %s: %w", key, err)
	}

	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to remove object %s: %w", key, err)
	}
	return nil
}

// Usage sums object sizes in the bucket against the configured quota.
func (s *MinioStorage) Usage(ctx context.Context) (Usage, error) {
	var used int64
	for object := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Recursive: true}) {
		if object.Err != nil {
			return Usage{}, fmt.Errorf("failed to list bucket %s: %w", s.bucket, object.Err)
		}
		used += object.Size
	}
	return Usage{UsedBytes: used, TotalBytes: s.quota}, nil
}

func (s *MinioStorage) Status() Status {
	return Status{
		StorageClass:   "MinIO",
		Working:        true,
		AvailableSpace: "Unlimited",
	}
}
