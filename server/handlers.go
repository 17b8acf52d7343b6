package server

import (
	"net/http"
	"path/filepath"
	"strings"

	"soundscape/config"
	"soundscape/core/auth"
	"soundscape/logger"
	"soundscape/repository"
	"soundscape/storage"
)

// APIHandler carries the dependencies shared by all HTTP handlers.
type APIHandler struct {
	repo  repository.RecordingRepository
	store storage.Storage
	cfg   *config.Config

	// The configured admin password is hashed once at startup so request
	// handling never touches the plaintext.
	adminPasswordHash string
}

// NewAPIHandler creates the handler set.
func NewAPIHandler(repo repository.RecordingRepository, store storage.Storage, cfg *config.Config) *APIHandler {
	h := &APIHandler{
		repo:  repo,
		store: store,
		cfg:   cfg,
	}

	if cfg.AdminPassword != "" {
		hash, err := auth.HashPassword(cfg.AdminPassword)
		if err != nil {
			logger.Fatal("Failed to hash admin password", logger.ErrorField(err))
		}
		h.adminPasswordHash = hash
	} else {
		logger.Warn("ADMIN_PASSWORD is not set, admin endpoints will reject every login")
	}

	return h
}

// AdminAuthMiddleware rejects requests without a valid admin bearer token.
func (h *APIHandler) AdminAuthMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			respondError(w, http.StatusUnauthorized, "No token provided")
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			respondError(w, http.StatusUnauthorized, "Invalid authorization header format")
			return
		}

		claims, err := auth.ParseToken(parts[1], h.cfg.JWTSecret)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "Invalid token")
			return
		}

		if claims.Role != auth.RoleAdmin {
			respondError(w, http.StatusForbidden, "Unauthorized access")
			return
		}

		next.ServeHTTP(w, r)
	}
}

// contentTypeForFilename maps a stored filename's extension to the
// Content-Type used when serving the bytes back.
func contentTypeForFilename(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	case ".webm":
		return "audio/webm"
	case ".ogg":
		return "audio/ogg"
	case ".m4a":
		return "audio/mp4"
	default:
		return "application/octet-stream"
	}
}
