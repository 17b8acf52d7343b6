package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"testing"

	"soundscape/config"
	"soundscape/core/auth"
	"soundscape/model"
	"soundscape/repository"
	"soundscape/storage"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	handler   *APIHandler
	router    *mux.Router
	cfg       *config.Config
	uploadDir string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	uploadDir := t.TempDir()
	cfg := &config.Config{
		Port:           "0",
		WebAppDir:      t.TempDir(),
		UploadDir:      uploadDir,
		TempDir:        t.TempDir(),
		MaxUploadMB:    30,
		QuotaMB:        100,
		AllowedMIME:    "audio/",
		CatalogLimit:   100,
		CatalogDriver:  "memory",
		AdminUsername:  "admin",
		AdminPassword:  "test-password",
		JWTSecret:      "test-secret",
		AllowedOrigins: []string{"*"},
	}

	local, err := storage.NewLocalStorage(cfg.UploadDir, "/api/uploads", cfg.QuotaBytes())
	require.NoError(t, err)

	repo := repository.NewMemoryRecordingRepository()
	h := NewAPIHandler(repo, local, cfg)
	return &testServer{
		handler:   h,
		router:    NewRouter(h, cfg),
		cfg:       cfg,
		uploadDir: uploadDir,
	}
}

// multipartUpload builds a multipart body with an explicit part content type.
func multipartUpload(t *testing.T, filename, contentType string, data []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)

	if filename != "" {
		hdr := textproto.MIMEHeader{}
		hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="audio"; filename="%s"`, filename))
		hdr.Set("Content-Type", contentType)
		part, err := mw.CreatePart(hdr)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}

	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())
	return buf, mw.FormDataContentType()
}

func (ts *testServer) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) upload(t *testing.T, filename, contentType string, data []byte, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	body, formType := multipartUpload(t, filename, contentType, data, fields)
	req := httptest.NewRequest(http.MethodPost, "/api/recordings", body)
	req.Header.Set("Content-Type", formType)
	return ts.do(t, req)
}

func (ts *testServer) listRecordings(t *testing.T, query string) listResponse {
	t.Helper()
	rec := ts.do(t, httptest.NewRequest(http.MethodGet, "/api/recordings"+query, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp listResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func (ts *testServer) adminToken(t *testing.T) string {
	t.Helper()
	token, err := auth.GenerateAdminToken(ts.cfg.JWTSecret)
	require.NoError(t, err)
	return token
}

func decodeRecording(t *testing.T, rec *httptest.ResponseRecorder) *model.Recording {
	t.Helper()
	var resp recordingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	require.NotNil(t, resp.Data)
	return resp.Data
}

func TestUploadRecording(t *testing.T) {
	ts := newTestServer(t)
	content := make([]byte, 1<<20) // 1MB

	rec := ts.upload(t, "street.webm", "audio/webm", content, map[string]string{
		"lat":         "10.7719",
		"lng":         "106.6953",
		"description": "Street noise",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	created := decodeRecording(t, rec)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, 10.7719, created.Location.Lat)
	assert.Equal(t, 106.6953, created.Location.Lng)
	assert.Equal(t, "Street noise", created.Description)
	assert.Equal(t, "audio/webm", created.Metadata.MimeType)
	assert.Equal(t, int64(len(content)), created.Metadata.Size)
	assert.Equal(t, ".webm", filepath.Ext(created.AudioKey))
	assert.False(t, created.CreatedAt.IsZero())

	list := ts.listRecordings(t, "")
	assert.Equal(t, 1, list.Count)
	assert.Equal(t, int64(1), list.Total)
	require.Len(t, list.Data, 1)
	assert.Equal(t, created.ID, list.Data[0].ID)
	assert.Equal(t, created.Location, list.Data[0].Location)
	assert.Equal(t, created.Metadata.Size, list.Data[0].Metadata.Size)
}

func TestUploadRejectsNonAudio(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.upload(t, "notes.txt", "text/plain", []byte("hello"), map[string]string{
		"lat": "10.0", "lng": "106.0",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	list := ts.listRecordings(t, "")
	assert.Zero(t, list.Count)
	assertDirEmpty(t, ts.uploadDir)
}

func TestUploadRejectsMissingFile(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.upload(t, "", "", nil, map[string]string{"lat": "10.0", "lng": "106.0"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp messageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, "No audio file uploaded", resp.Message)
}

func TestUploadRejectsOversizedFile(t *testing.T) {
	ts := newTestServer(t)
	ts.cfg.MaxUploadMB = 1

	rec := ts.upload(t, "big.mp3", "audio/mpeg", make([]byte, 2<<20), map[string]string{
		"lat": "10.0", "lng": "106.0",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	list := ts.listRecordings(t, "")
	assert.Zero(t, list.Count)
	assertDirEmpty(t, ts.uploadDir)
	assertDirEmpty(t, ts.cfg.TempDir)
}

func TestUploadValidatesCoordinates(t *testing.T) {
	ts := newTestServer(t)

	cases := []struct {
		name   string
		fields map[string]string
	}{
		{"missing", map[string]string{}},
		{"missing lng", map[string]string{"lat": "10.0"}},
		{"not numbers", map[string]string{"lat": "north", "lng": "east"}},
		{"lat out of range", map[string]string{"lat": "91.0", "lng": "106.0"}},
		{"lng out of range", map[string]string{"lat": "10.0", "lng": "181.0"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := ts.upload(t, "a.mp3", "audio/mpeg", []byte("xx"), tc.fields)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}

	list := ts.listRecordings(t, "")
	assert.Zero(t, list.Count)
}

func TestUploadRejectsLongDescription(t *testing.T) {
	ts := newTestServer(t)

	long := bytes.Repeat([]byte("a"), model.MaxDescriptionLength+1)
	rec := ts.upload(t, "a.mp3", "audio/mpeg", []byte("xx"), map[string]string{
		"lat": "10.0", "lng": "106.0", "description": string(long),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadRoundTrip(t *testing.T) {
	ts := newTestServer(t)
	content := []byte("pretend this is an mp3 frame sequence")

	rec := ts.upload(t, "clip.mp3", "audio/mpeg", content, map[string]string{
		"lat": "10.7719", "lng": "106.6953",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeRecording(t, rec)

	for _, route := range []string{"/api/uploads/", "/api/recordings/"} {
		got := ts.do(t, httptest.NewRequest(http.MethodGet, route+created.AudioKey, nil))
		require.Equal(t, http.StatusOK, got.Code, route)
		assert.Equal(t, "audio/mpeg", got.Header().Get("Content-Type"))
		assert.Equal(t, content, got.Body.Bytes())
	}
}

func TestServeAudioContentTypes(t *testing.T) {
	ts := newTestServer(t)

	cases := map[string]string{
		"a.mp3":  "audio/mpeg",
		"b.wav":  "audio/wav",
		"c.webm": "audio/webm",
		"d.ogg":  "audio/ogg",
		"e.m4a":  "audio/mp4",
		"f.bin":  "application/octet-stream",
	}
	for name, want := range cases {
		require.NoError(t, os.WriteFile(filepath.Join(ts.uploadDir, name), []byte("x"), 0644))

		rec := ts.do(t, httptest.NewRequest(http.MethodGet, "/api/uploads/"+name, nil))
		require.Equal(t, http.StatusOK, rec.Code, name)
		assert.Equal(t, want, rec.Header().Get("Content-Type"), name)
	}
}

func TestServeAudioMissing(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, httptest.NewRequest(http.MethodGet, "/api/uploads/ghost.mp3", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var resp messageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
}

func TestListBBoxAndPagination(t *testing.T) {
	ts := newTestServer(t)

	coords := []struct{ lat, lng string }{
		{"10.77", "106.69"}, // Saigon
		{"10.80", "106.70"}, // Saigon
		{"48.85", "2.35"},   // Paris
	}
	for _, c := range coords {
		rec := ts.upload(t, "a.mp3", "audio/mpeg", []byte("x"), map[string]string{
			"lat": c.lat, "lng": c.lng,
		})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	saigon := ts.listRecordings(t, "?bbox=106.0,10.0,107.0,11.0")
	assert.Equal(t, 2, saigon.Count)
	assert.Equal(t, int64(2), saigon.Total)

	page := ts.listRecordings(t, "?limit=1&offset=1")
	assert.Equal(t, 1, page.Count)
	assert.Equal(t, int64(3), page.Total)

	bad := ts.do(t, httptest.NewRequest(http.MethodGet, "/api/recordings?bbox=1,2,3", nil))
	assert.Equal(t, http.StatusBadRequest, bad.Code)
}

func TestListIsNewestFirstAndIdempotent(t *testing.T) {
	ts := newTestServer(t)

	var ids []string
	for i := 0; i < 3; i++ {
		rec := ts.upload(t, "a.mp3", "audio/mpeg", []byte("x"), map[string]string{
			"lat": "10.0", "lng": "106.0",
		})
		require.Equal(t, http.StatusCreated, rec.Code)
		ids = append(ids, decodeRecording(t, rec).ID)
	}

	first := ts.listRecordings(t, "")
	require.Len(t, first.Data, 3)
	assert.Equal(t, ids[2], first.Data[0].ID)
	assert.Equal(t, ids[0], first.Data[2].ID)

	second := ts.listRecordings(t, "")
	for i := range first.Data {
		assert.Equal(t, first.Data[i].ID, second.Data[i].ID)
	}
}

func TestDeleteRequiresAuth(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.upload(t, "a.mp3", "audio/mpeg", []byte("x"), map[string]string{
		"lat": "10.0", "lng": "106.0",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeRecording(t, rec)

	t.Run("no header", func(t *testing.T) {
		del := ts.do(t, httptest.NewRequest(http.MethodDelete, "/api/recordings/"+created.ID, nil))
		assert.Equal(t, http.StatusUnauthorized, del.Code)
	})

	t.Run("malformed header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodDelete, "/api/recordings/"+created.ID, nil)
		req.Header.Set("Authorization", "Token abc")
		assert.Equal(t, http.StatusUnauthorized, ts.do(t, req).Code)
	})

	t.Run("invalid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodDelete, "/api/recordings/"+created.ID, nil)
		req.Header.Set("Authorization", "Bearer not-a-token")
		assert.Equal(t, http.StatusUnauthorized, ts.do(t, req).Code)
	})

	// The recording must remain listed after every rejected attempt.
	list := ts.listRecordings(t, "")
	assert.Equal(t, 1, list.Count)
}

func TestDeleteRecording(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.upload(t, "a.mp3", "audio/mpeg", []byte("x"), map[string]string{
		"lat": "10.0", "lng": "106.0",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeRecording(t, rec)
	token := ts.adminToken(t)

	req := httptest.NewRequest(http.MethodDelete, "/api/recordings/"+created.ID, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	del := ts.do(t, req)
	require.Equal(t, http.StatusOK, del.Code, del.Body.String())

	list := ts.listRecordings(t, "")
	assert.Zero(t, list.Count)

	audio := ts.do(t, httptest.NewRequest(http.MethodGet, "/api/uploads/"+created.AudioKey, nil))
	assert.Equal(t, http.StatusNotFound, audio.Code)

	t.Run("unknown id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodDelete, "/api/recordings/"+created.ID, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		assert.Equal(t, http.StatusNotFound, ts.do(t, req).Code)
	})
}

// assertDirEmpty checks that no stray files survive a failed upload.
func assertDirEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Empty(t, names, "directory %s should be empty", dir)
}
