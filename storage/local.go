package storage

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// LocalStorage copies uploads into a served directory. URLs point back at the
// service's own audio route.
type LocalStorage struct {
	dir     string
	baseURL string // prefix for stored URLs, e.g. "http://host/api/uploads"
	quota   int64
}

// NewLocalStorage creates the directory if needed and returns the backend.
func NewLocalStorage(dir, baseURL string, quota int64) (*LocalStorage, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory %s: %w", dir, err)
	}
	return &LocalStorage{
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
		quota:   quota,
	}, nil
}

// validKey rejects anything that could escape the upload directory.
func validKey(key string) error {
	if key == "" || key != filepath.Base(key) || strings.HasPrefix(key, ".") {
		return fmt.Errorf("invalid storage key %q", key)
	}
	return nil
}

func (s *LocalStorage) path(key string) string {
	return filepath.Join(s.dir, key)
}

func (s *LocalStorage) Save(ctx context.Context, key string, r io.Reader, size int64, contentType string) (StoredObject, error) {
	if err := validKey(key); err != nil {
		return StoredObject{}, err
	}

	out, err := os.Create(s.path(key))
	if err != nil {
		return StoredObject{}, fmt.Errorf("failed to create file for key %s: %w", key, err)
	}

	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		os.Remove(s.path(key))
		return StoredObject{}, fmt.Errorf("failed to write file for key %s: %w", key, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(s.path(key))
		return StoredObject{}, fmt.Errorf("failed to close file for key %s: %w", key, err)
	}

	return StoredObject{Key: key, URL: s.baseURL + "/" + key}, nil
}

func (s *LocalStorage) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := validKey(key); err != nil {
		return nil, ErrObjectNotFound
	}

	f, err := os.Open(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("failed to open file for key %s: %w", key, err)
	}
	return f, nil
}

func (s *LocalStorage) Delete(ctx context.Context, key string) error {
	if err := validKey(key); err != nil {
		return ErrObjectNotFound
	}

	if err := os.Remove(s.path(key)); err != nil {
		if os.IsNotExist(err) {
			return ErrObjectNotFound
		}
		return fmt.Errorf("failed to remove file for key %s: %w", key, err)
	}
	return nil
}

// Usage walks the upload directory and sums file sizes against the quota.
func (s *LocalStorage) Usage(ctx context.Context) (Usage, error) {
	var used int64
	err := filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		used += info.Size()
		return nil
	})
	if err != nil {
		return Usage{}, fmt.Errorf("failed to measure upload directory: %w", err)
	}
	return Usage{UsedBytes: used, TotalBytes: s.quota}, nil
}

func (s *LocalStorage) Status() Status {
	_, err := os.Stat(s.dir)
	return Status{
		StorageClass:   "Local disk",
		Working:        err == nil,
		AvailableSpace: fmt.Sprintf("%d MB quota", s.quota>>20),
	}
}
