package uploader

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// UploadStatus is the operational state of the uploader, kept in Redis so
// the minimum post interval survives restarts and operators can probe
// delivery health. The pipeline runs fine without it.
type UploadStatus struct {
	LastPost    time.Time `json:"last_post"`
	LastSuccess time.Time `json:"last_success"`
	Posted      int64     `json:"posted"`
	Failed      int64     `json:"failed"`
	Dropped     int64     `json:"dropped"`
}

// StatusStore persists UploadStatus per station.
type StatusStore struct {
	redis *redis.Client
}

// NewStatusStore creates a status store on an existing Redis client.
func NewStatusStore(redisClient *redis.Client) *StatusStore {
	return &StatusStore{redis: redisClient}
}

func statusKey(station string) string {
	return fmt.Sprintf("wns:status:%s", station)
}

// Get retrieves the stored status; a missing key yields a zero status.
func (s *StatusStore) Get(ctx context.Context, station string) (*UploadStatus, error) {
	data, err := s.redis.Get(ctx, statusKey(station)).Result()
	if err == redis.Nil {
		return &UploadStatus{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get upload status: %w", err)
	}

	var status UploadStatus
	if err := json.Unmarshal([]byte(data), &status); err != nil {
		return nil, fmt.Errorf("failed to unmarshal upload status: %w", err)
	}
	return &status, nil
}

// Set saves the status with an expiry so stale stations age out.
func (s *StatusStore) Set(ctx context.Context, station string, status *UploadStatus) error {
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to marshal upload status: %w", err)
	}
	if err := s.redis.Set(ctx, statusKey(station), data, 7*24*time.Hour).Err(); err != nil {
		return fmt.Errorf("failed to set upload status: %w", err)
	}
	return nil
}
