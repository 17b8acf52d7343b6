package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"soundscape/db"
	"soundscape/logger"
	"soundscape/model"

	"github.com/redis/go-redis/v9"
)

const (
	recordingListKey = "recordings:list"
	recordingListTTL = 30 * time.Second
)

// recordingListEntry is the cached shape of an unfiltered list response.
type recordingListEntry struct {
	Total      int64              `json:"total"`
	Recordings []*model.Recording `json:"recordings"`
}

// GetRecordingList returns the cached unfiltered recording list, or ok=false
// on a miss, a disabled cache, or any Redis error.
func GetRecordingList(ctx context.Context) ([]*model.Recording, int64, bool) {
	if db.RedisClient == nil {
		return nil, 0, false
	}

	raw, err := db.RedisClient.Get(ctx, recordingListKey).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Warn("Failed to read recording list cache", logger.ErrorField(err))
		}
		return nil, 0, false
	}

	var entry recordingListEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		logger.Warn("Corrupt recording list cache entry, dropping it", logger.ErrorField(err))
		db.RedisClient.Del(ctx, recordingListKey)
		return nil, 0, false
	}
	return entry.Recordings, entry.Total, true
}

// SetRecordingList stores the unfiltered recording list with a short TTL.
func SetRecordingList(ctx context.Context, recordings []*model.Recording, total int64) {
	if db.RedisClient == nil {
		return
	}

	raw, err := json.Marshal(recordingListEntry{Total: total, Recordings: recordings})
	if err != nil {
		logger.Warn("Failed to marshal recording list for cache", logger.ErrorField(err))
		return
	}

	if err := db.RedisClient.Set(ctx, recordingListKey, raw, recordingListTTL).Err(); err != nil {
		logger.Warn("Failed to write recording list cache", logger.ErrorField(err))
	}
}

// InvalidateRecordingList drops the cached list. Called after every create
// and delete so readers never see a stale catalog for longer than one fetch.
func InvalidateRecordingList(ctx context.Context) {
	if db.RedisClient == nil {
		return
	}

	if err := db.RedisClient.Del(ctx, recordingListKey).Err(); err != nil {
		logger.Warn("Failed to invalidate recording list cache", logger.ErrorField(err))
	}
}
