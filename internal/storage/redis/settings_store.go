package redis

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/goodtune/paceclock/internal/storage"
	"github.com/redis/go-redis/v9"
)

type settingsStore struct {
	client *redis.Client
}

// Get loads the persisted settings record
func (s *settingsStore) Get(ctx context.Context) (*storage.Settings, error) {
	data, err := s.client.Get(ctx, settingsKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var record storage.Settings
	if err := json.Unmarshal([]byte(data), &record); err != nil {
		// A malformed record reads as absent so defaults apply.
		return nil, storage.ErrNotFound
	}
	return &record, nil
}

// Put stores the settings record
func (s *settingsStore) Put(ctx context.Context, settings storage.Settings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, settingsKey, data, 0).Err()
}
