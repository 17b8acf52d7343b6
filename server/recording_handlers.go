package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"soundscape/cache"
	"soundscape/logger"
	"soundscape/model"
	"soundscape/repository"
	"soundscape/storage"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// multipartMemoryLimit is how much of a parsed form is held in memory before
// net/http spills to disk. Uploads themselves are bounded by MaxUploadBytes.
const multipartMemoryLimit = 8 << 20

// UploadRecordingHandler accepts a multipart form with an `audio` file plus
// `lat`, `lng` and an optional `description`, stores the bytes through the
// storage adapter and appends the recording to the catalog. Either both
// byte storage and the catalog append succeed, or neither is visible
// afterwards.
func (h *APIHandler) UploadRecordingHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	maxBytes := h.cfg.MaxUploadBytes()

	if r.ContentLength > maxBytes+multipartMemoryLimit {
		logger.Warn("Rejecting oversized upload request",
			logger.Int64("contentLength", r.ContentLength),
			logger.Int64("maxBytes", maxBytes))
		respondError(w, http.StatusBadRequest,
			fmt.Sprintf("File too large. Maximum size is %d MB", h.cfg.MaxUploadMB))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartMemoryLimit)

	if err := r.ParseMultipartForm(multipartMemoryLimit); err != nil {
		logger.Warn("Failed to parse upload form",
			logger.ErrorField(err),
			logger.String("remoteAddr", r.RemoteAddr))
		if strings.Contains(err.Error(), "request body too large") {
			respondError(w, http.StatusBadRequest,
				fmt.Sprintf("File too large. Maximum size is %d MB", h.cfg.MaxUploadMB))
			return
		}
		respondError(w, http.StatusBadRequest, "Failed to parse upload form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("audio")
	if err != nil {
		respondError(w, http.StatusBadRequest, "No audio file uploaded")
		return
	}
	defer file.Close()

	if header.Size > maxBytes {
		logger.Warn("Uploaded file exceeds size limit",
			logger.Int64("size", header.Size),
			logger.String("filename", header.Filename))
		respondError(w, http.StatusBadRequest,
			fmt.Sprintf("File too large. Maximum size is %d MB", h.cfg.MaxUploadMB))
		return
	}

	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, h.cfg.AllowedMIME) {
		logger.Warn("Rejecting non-audio upload",
			logger.String("contentType", contentType),
			logger.String("filename", header.Filename))
		respondError(w, http.StatusBadRequest, "Only audio files are allowed")
		return
	}

	location, err := parseLocation(r.FormValue("lat"), r.FormValue("lng"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	description := strings.TrimSpace(r.FormValue("description"))
	if len(description) > model.MaxDescriptionLength {
		respondError(w, http.StatusBadRequest,
			fmt.Sprintf("Description must be at most %d characters", model.MaxDescriptionLength))
		return
	}

	// Spool to a temp file so the storage adapter gets a seekable reader.
	// The file is removed on every exit path.
	tmp, err := os.CreateTemp(h.cfg.TempDir, "upload-*")
	if err != nil {
		logger.Error("Failed to create temp file", logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	defer func() {
		tmp.Close()
		if err := os.Remove(tmp.Name()); err != nil && !os.IsNotExist(err) {
			logger.Warn("Failed to remove temp file",
				logger.String("path", tmp.Name()),
				logger.ErrorField(err))
		}
	}()

	size, err := io.Copy(tmp, file)
	if err != nil {
		logger.Error("Failed to spool upload to temp file", logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		logger.Error("Failed to rewind temp file", logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	key := uuid.NewString() + strings.ToLower(filepath.Ext(header.Filename))

	obj, err := h.store.Save(r.Context(), key, tmp, size, contentType)
	if err != nil {
		logger.Error("Failed to store audio bytes",
			logger.String("key", key),
			logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "Server error while processing recording")
		return
	}

	rec := &model.Recording{
		ID:          uuid.NewString(),
		Location:    location,
		Description: description,
		AudioURL:    obj.URL,
		AudioKey:    obj.Key,
		Metadata: model.FileMetadata{
			MimeType: contentType,
			Size:     size,
		},
		CreatedAt: time.Now().UTC(),
	}

	if err := h.repo.Create(r.Context(), rec); err != nil {
		logger.Error("Failed to append recording to catalog",
			logger.String("id", rec.ID),
			logger.ErrorField(err))
		// Remove the just-stored bytes so no orphan survives a failed create.
		if derr := h.store.Delete(r.Context(), obj.Key); derr != nil && !errors.Is(derr, storage.ErrObjectNotFound) {
			logger.Warn("Failed to remove stored bytes after catalog failure",
				logger.String("key", obj.Key),
				logger.ErrorField(derr))
		}
		respondError(w, http.StatusInternalServerError, "Server error while processing recording")
		return
	}

	cache.InvalidateRecordingList(r.Context())

	logger.Info("Recording archived",
		logger.String("id", rec.ID),
		logger.String("key", obj.Key),
		logger.Int64("size", size),
		logger.Float64("lat", location.Lat),
		logger.Float64("lng", location.Lng),
		logger.Duration("elapsed", time.Since(start)))

	respondJSON(w, http.StatusCreated, recordingResponse{
		Success: true,
		Data:    rec,
		Message: "Recording archived successfully",
	})
}

// parseLocation validates the lat/lng form fields.
func parseLocation(latStr, lngStr string) (model.Point, error) {
	if latStr == "" || lngStr == "" {
		return model.Point{}, errors.New("Location coordinates are required")
	}

	lat, latErr := strconv.ParseFloat(latStr, 64)
	lng, lngErr := strconv.ParseFloat(lngStr, 64)
	if latErr != nil || lngErr != nil {
		return model.Point{}, errors.New("Location coordinates must be numbers")
	}

	p := model.Point{Lat: lat, Lng: lng}
	if !p.Valid() {
		return model.Point{}, errors.New("Location coordinates are out of range")
	}
	return p, nil
}

// ListRecordingsHandler returns recordings newest-first, optionally filtered
// by a west,south,east,north bounding box and paginated by limit/offset.
func (h *APIHandler) ListRecordingsHandler(w http.ResponseWriter, r *http.Request) {
	filter := repository.ListFilter{
		Limit:  h.cfg.CatalogLimit,
		Offset: 0,
	}

	if raw := r.URL.Query().Get("bbox"); raw != "" {
		bbox, err := parseBBox(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid bbox parameter, expected west,south,east,north")
			return
		}
		filter.BBox = bbox
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			filter.Limit = v
		}
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v >= 0 {
			filter.Offset = v
		}
	}

	// Only the default, unfiltered page is cached; it is what the map client
	// fetches on every marker rebuild.
	cacheable := filter.BBox == nil && filter.Offset == 0 && filter.Limit == h.cfg.CatalogLimit
	if cacheable {
		if recs, total, ok := cache.GetRecordingList(r.Context()); ok {
			respondJSON(w, http.StatusOK, listResponse{
				Success: true,
				Count:   len(recs),
				Total:   total,
				Data:    recs,
			})
			return
		}
	}

	recs, total, err := h.repo.List(r.Context(), filter)
	if err != nil {
		logger.Error("Failed to list recordings", logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "Server error while fetching recordings")
		return
	}

	if cacheable {
		cache.SetRecordingList(r.Context(), recs, total)
	}

	respondJSON(w, http.StatusOK, listResponse{
		Success: true,
		Count:   len(recs),
		Total:   total,
		Data:    recs,
	})
}

// parseBBox parses a west,south,east,north query value.
func parseBBox(raw string) (*repository.BoundingBox, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("bbox must have 4 components, got %d", len(parts))
	}

	vals := make([]float64, 4)
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("bbox component %d is not a number: %w", i, err)
		}
		vals[i] = v
	}

	return &repository.BoundingBox{
		West:  vals[0],
		South: vals[1],
		East:  vals[2],
		North: vals[3],
	}, nil
}

// ServeAudioHandler streams stored audio bytes by filename with a
// Content-Type derived from the extension.
func (h *APIHandler) ServeAudioHandler(w http.ResponseWriter, r *http.Request) {
	filename := mux.Vars(r)["filename"]

	obj, err := h.store.Open(r.Context(), filename)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			respondError(w, http.StatusNotFound, "Audio file not found")
			return
		}
		logger.Error("Failed to open stored audio",
			logger.String("filename", filename),
			logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	defer obj.Close()

	w.Header().Set("Content-Type", contentTypeForFilename(filename))
	w.Header().Set("Cache-Control", "public, max-age=31536000")
	if _, err := io.Copy(w, obj); err != nil {
		logger.Error("Error streaming audio file",
			logger.String("filename", filename),
			logger.ErrorField(err))
	}
}

// DeleteRecordingHandler removes the catalog entry and best-effort removes
// the stored bytes. Byte-deletion failures are logged, never surfaced; the
// catalog entry being gone is the authoritative outcome.
func (h *APIHandler) DeleteRecordingHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	rec, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Recording not found")
			return
		}
		logger.Error("Failed to look up recording", logger.String("id", id), logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	if err := h.repo.Delete(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Recording not found")
			return
		}
		logger.Error("Failed to delete recording", logger.String("id", id), logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	if err := h.store.Delete(r.Context(), rec.AudioKey); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
		logger.Warn("Failed to delete stored bytes for recording",
			logger.String("id", id),
			logger.String("key", rec.AudioKey),
			logger.ErrorField(err))
	}

	cache.InvalidateRecordingList(r.Context())

	logger.Info("Recording deleted", logger.String("id", id), logger.String("key", rec.AudioKey))
	respondJSON(w, http.StatusOK, messageResponse{
		Success: true,
		Message: "Recording deleted successfully",
	})
}
