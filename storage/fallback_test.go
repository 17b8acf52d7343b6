package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubRemote is a scriptable remote backend.
type stubRemote struct {
	failSaves bool
	saves     int
	deletes   int
	objects   map[string][]byte
}

func newStubRemote() *stubRemote {
	return &stubRemote{objects: make(map[string][]byte)}
}

func (s *stubRemote) Save(ctx context.Context, key string, r io.Reader, size int64, contentType string) (StoredObject, error) {
	s.saves++
	if s.failSaves {
		// Consume part of the reader to mimic an upload dying mid-flight.
		io.CopyN(io.Discard, r, 1)
		return StoredObject{}, errors.New("bucket unavailable")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return StoredObject{}, err
	}
	s.objects[key] = data
	return StoredObject{Key: key, URL: "https://bucket.example.com/" + key}, nil
}

func (s *stubRemote) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	data, ok := s.objects[key]
	if !ok {
		return nil, ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *stubRemote) Delete(ctx context.Context, key string) error {
	s.deletes++
	if _, ok := s.objects[key]; !ok {
		return ErrObjectNotFound
	}
	delete(s.objects, key)
	return nil
}

func (s *stubRemote) Usage(ctx context.Context) (Usage, error) {
	var used int64
	for _, data := range s.objects {
		used += int64(len(data))
	}
	return Usage{UsedBytes: used, TotalBytes: 1 << 30}, nil
}

func (s *stubRemote) Status() Status {
	return Status{StorageClass: "stub", Working: true, AvailableSpace: "Unlimited"}
}

func seekerFor(t *testing.T, content []byte) io.ReadSeeker {
	t.Helper()
	return bytes.NewReader(content)
}

func TestFallbackStaysRemoteWhileHealthy(t *testing.T) {
	remote := newStubRemote()
	local := newLocalStorage(t)
	f := NewFallbackStorage(remote, local)
	ctx := context.Background()

	obj, err := f.Save(ctx, "a.mp3", seekerFor(t, []byte("remote bytes")), 12, "audio/mpeg")
	require.NoError(t, err)
	assert.Equal(t, "https://bucket.example.com/a.mp3", obj.URL)
	assert.Equal(t, StateRemote, f.State())

	// Reads resolve through the remote side.
	rc, err := f.Open(ctx, "a.mp3")
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, []byte("remote bytes"), data)
}

func TestFallbackSwitchesToLocalOnRemoteFailure(t *testing.T) {
	remote := newStubRemote()
	remote.failSaves = true
	local := newLocalStorage(t)
	f := NewFallbackStorage(remote, local)
	ctx := context.Background()

	content := []byte("fallback bytes")
	obj, err := f.Save(ctx, "b.mp3", seekerFor(t, content), int64(len(content)), "audio/mpeg")
	require.NoError(t, err)
	assert.Equal(t, StateLocalFallback, f.State())
	assert.Equal(t, "/api/uploads/b.mp3", obj.URL)

	// The full content landed on disk despite the partially consumed reader.
	rc, err := local.Open(ctx, "b.mp3")
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, content, data)
}

func TestFallbackTransitionIsOneWay(t *testing.T) {
	remote := newStubRemote()
	remote.failSaves = true
	local := newLocalStorage(t)
	f := NewFallbackStorage(remote, local)
	ctx := context.Background()

	_, err := f.Save(ctx, "first.mp3", seekerFor(t, []byte("x")), 1, "audio/mpeg")
	require.NoError(t, err)
	require.Equal(t, StateLocalFallback, f.State())
	savesAfterFailure := remote.saves

	// The remote recovers, but the adapter must not go back.
	remote.failSaves = false
	_, err = f.Save(ctx, "second.mp3", seekerFor(t, []byte("y")), 1, "audio/mpeg")
	require.NoError(t, err)
	assert.Equal(t, StateLocalFallback, f.State())
	assert.Equal(t, savesAfterFailure, remote.saves, "remote must not be attempted again")
}

func TestFallbackDeleteDispatchesToOwningBackend(t *testing.T) {
	remote := newStubRemote()
	local := newLocalStorage(t)
	f := NewFallbackStorage(remote, local)
	ctx := context.Background()

	_, err := f.Save(ctx, "remote.mp3", seekerFor(t, []byte("r")), 1, "audio/mpeg")
	require.NoError(t, err)
	_, err = local.Save(ctx, "local.mp3", bytes.NewReader([]byte("l")), 1, "audio/mpeg")
	require.NoError(t, err)

	require.NoError(t, f.Delete(ctx, "local.mp3"))
	require.NoError(t, f.Delete(ctx, "remote.mp3"))
	assert.Empty(t, remote.objects)

	assert.ErrorIs(t, f.Delete(ctx, "gone.mp3"), ErrObjectNotFound)
}

func TestFallbackStatusFollowsState(t *testing.T) {
	remote := newStubRemote()
	remote.failSaves = true
	local := newLocalStorage(t)
	f := NewFallbackStorage(remote, local)

	assert.Equal(t, "stub", f.Status().StorageClass)

	_, err := f.Save(context.Background(), "c.mp3", seekerFor(t, []byte("z")), 1, "audio/mpeg")
	require.NoError(t, err)
	assert.Equal(t, "Local disk (bucket fallback)", f.Status().StorageClass)
}
