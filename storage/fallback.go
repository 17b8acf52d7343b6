package storage

import (
	"context"
	"errors"
	"io"
	"sync/atomic"

	"soundscape/logger"
)

// State is the fallback adapter's write target.
type State int32

const (
	// StateRemote routes writes to the bucket.
	StateRemote State = iota
	// StateLocalFallback routes writes to disk. The transition from
	// StateRemote is one-way for the process lifetime; resuming the bucket
	// path requires a restart.
	StateLocalFallback
)

func (s State) String() string {
	if s == StateRemote {
		return "remote"
	}
	return "local-fallback"
}

// FallbackStorage writes to the remote backend until the first failure, then
// permanently to the local backend. Reads and deletes consult both backends,
// local first, so objects stored on either side of the transition resolve.
type FallbackStorage struct {
	remote Storage
	local  Storage
	state  atomic.Int32
}

// NewFallbackStorage starts in StateRemote.
func NewFallbackStorage(remote, local Storage) *FallbackStorage {
	f := &FallbackStorage{remote: remote, local: local}
	f.state.Store(int32(StateRemote))
	return f
}

// State returns the current write target.
func (f *FallbackStorage) State() State {
	return State(f.state.Load())
}

// Save uploads to the bucket while in StateRemote. Any remote error flips the
// adapter to StateLocalFallback and the same content is written to disk,
// which requires the reader to be seekable (uploads hand in a temp file).
func (f *FallbackStorage) Save(ctx context.Context, key string, r io.Reader, size int64, contentType string) (StoredObject, error) {
	if f.State() == StateRemote {
		obj, err := f.remote.Save(ctx, key, r, size, contentType)
		if err == nil {
			return obj, nil
		}

		logger.Error("Remote storage failed, switching to local fallback for the rest of the process lifetime",
			logger.String("key", key),
			logger.ErrorField(err))
		f.state.Store(int32(StateLocalFallback))

		seeker, ok := r.(io.Seeker)
		if !ok {
			return StoredObject{}, err
		}
		if _, serr := seeker.Seek(0, io.SeekStart); serr != nil {
			return StoredObject{}, errors.Join(err, serr)
		}
	}

	return f.local.Save(ctx, key, r, size, contentType)
}

func (f *FallbackStorage) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	rc, err := f.local.Open(ctx, key)
	if err == nil {
		return rc, nil
	}
	if !errors.Is(err, ErrObjectNotFound) {
		return nil, err
	}
	return f.remote.Open(ctx, key)
}

func (f *FallbackStorage) Delete(ctx context.Context, key string) error {
	err := f.local.Delete(ctx, key)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrObjectNotFound) {
		return err
	}
	return f.remote.Delete(ctx, key)
}

// Usage combines both backends. A remote failure after the fallback
// transition should not hide the local numbers, so it is logged and skipped.
func (f *FallbackStorage) Usage(ctx context.Context) (Usage, error) {
	local, err := f.local.Usage(ctx)
	if err != nil {
		return Usage{}, err
	}

	remote, err := f.remote.Usage(ctx)
	if err != nil {
		logger.Warn("Failed to measure remote storage usage", logger.ErrorField(err))
		return local, nil
	}

	return Usage{
		UsedBytes:  local.UsedBytes + remote.UsedBytes,
		TotalBytes: remote.TotalBytes,
	}, nil
}

func (f *FallbackStorage) Status() Status {
	if f.State() == StateRemote {
		return f.remote.Status()
	}

	st := f.local.Status()
	st.StorageClass = "Local disk (bucket fallback)"
	return st
}
