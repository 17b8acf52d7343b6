package server

import (
	"encoding/json"
	"net/http"

	"soundscape/logger"
	"soundscape/model"
	"soundscape/storage"
)

// messageResponse is the generic success/failure envelope.
type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// recordingResponse wraps a single recording.
type recordingResponse struct {
	Success bool             `json:"success"`
	Data    *model.Recording `json:"data"`
	Message string           `json:"message,omitempty"`
}

// listResponse wraps a page of recordings.
type listResponse struct {
	Success bool               `json:"success"`
	Count   int                `json:"count"`
	Total   int64              `json:"total"`
	Data    []*model.Recording `json:"data"`
}

// loginResponse carries an issued admin token.
type loginResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token"`
	Message string `json:"message,omitempty"`
}

type usageData struct {
	UsedSpaceBytes  int64   `json:"usedSpaceBytes"`
	TotalSpaceBytes int64   `json:"totalSpaceBytes"`
	UsedPercentage  float64 `json:"usedPercentage"`
}

// usageResponse reports storage consumption.
type usageResponse struct {
	Success bool      `json:"success"`
	Data    usageData `json:"data"`
}

// healthResponse is the health endpoint payload.
type healthResponse struct {
	Status          string         `json:"status"`
	Message         string         `json:"message"`
	Timestamp       string         `json:"timestamp"`
	Storage         storage.Status `json:"storage"`
	RecordingsCount int64          `json:"recordingsCount"`
}

// respondJSON writes payload with the given status code.
func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("Failed to encode response", logger.ErrorField(err))
	}
}

// respondError writes a {success:false, message} body.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, messageResponse{Success: false, Message: message})
}
