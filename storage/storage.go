package storage

import (
	"context"
	"errors"
	"io"
)

// ErrObjectNotFound is returned when a key has no stored bytes behind it.
var ErrObjectNotFound = errors.New("stored object not found")

// StoredObject is the durable reference a backend hands back after a save.
type StoredObject struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

// Usage describes how much of the configured quota a backend consumes.
type Usage struct {
	UsedBytes  int64 `json:"usedSpaceBytes"`
	TotalBytes int64 `json:"totalSpaceBytes"`
}

// Status is the backend summary reported by the health endpoint.
type Status struct {
	StorageClass   string `json:"storageClass"`
	Working        bool   `json:"working"`
	AvailableSpace string `json:"availableSpace"`
}

// Storage persists raw bytes under a key and returns a dereferenceable URL.
// Implementations: local disk, MinIO bucket, and the fallback adapter that
// combines the two.
type Storage interface {
	// Save persists the reader's content under key. Size must match the
	// number of bytes the reader yields.
	Save(ctx context.Context, key string, r io.Reader, size int64, contentType string) (StoredObject, error)
	// Open returns the stored bytes for key, or ErrObjectNotFound.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes the stored bytes. Missing keys yield ErrObjectNotFound.
	Delete(ctx context.Context, key string) error
	// Usage reports consumed and total space.
	Usage(ctx context.Context) (Usage, error)
	// Status summarizes the backend for health reporting.
	Status() Status
}
