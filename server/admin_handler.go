package server

import (
	"encoding/json"
	"net/http"
	"time"

	"soundscape/core/auth"
	"soundscape/logger"
)

// LoginRequest is the admin login request body.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AdminLoginHandler checks the shared admin credential and issues a
// short-lived admin token.
func (h *APIHandler) AdminLoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Username != h.cfg.AdminUsername ||
		h.adminPasswordHash == "" ||
		!auth.CheckPasswordHash(req.Password, h.adminPasswordHash) {
		logger.Warn("Rejected admin login", logger.String("username", req.Username))
		respondError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := auth.GenerateAdminToken(h.cfg.JWTSecret)
	if err != nil {
		logger.Error("Failed to generate admin token", logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	logger.Info("Admin login successful", logger.String("username", req.Username))
	respondJSON(w, http.StatusOK, loginResponse{
		Success: true,
		Token:   token,
		Message: "Admin login successful",
	})
}

// StorageUsageHandler reports used and total space of the storage adapter.
func (h *APIHandler) StorageUsageHandler(w http.ResponseWriter, r *http.Request) {
	usage, err := h.store.Usage(r.Context())
	if err != nil {
		logger.Error("Failed to measure storage usage", logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	var pct float64
	if usage.TotalBytes > 0 {
		pct = float64(usage.UsedBytes) / float64(usage.TotalBytes) * 100
	}

	respondJSON(w, http.StatusOK, usageResponse{
		Success: true,
		Data: usageData{
			UsedSpaceBytes:  usage.UsedBytes,
			TotalSpaceBytes: usage.TotalBytes,
			UsedPercentage:  pct,
		},
	})
}

// HealthHandler reports service and storage status plus the catalog size.
func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	count, err := h.repo.Count(r.Context())
	if err != nil {
		logger.Warn("Failed to count recordings for health check", logger.ErrorField(err))
	}

	respondJSON(w, http.StatusOK, healthResponse{
		Status:          "OK",
		Message:         "API server is running",
		Timestamp:       time.Now().UTC().Format(time.RFC3339),
		Storage:         h.store.Status(),
		RecordingsCount: count,
	})
}
