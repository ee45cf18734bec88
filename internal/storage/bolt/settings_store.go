package bolt

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/goodtune/paceclock/internal/storage"
	"go.etcd.io/bbolt"
)

type settingsStore struct {
	db *bbolt.DB
}

func (s *settingsStore) Get(ctx context.Context) (*storage.Settings, error) {
	var out *storage.Settings
	err := s.db.View(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		bucket := tx.Bucket([]byte(bucketSettings))
		if bucket == nil {
			return fmt.Errorf("settings bucket missing")
		}
		data := bucket.Get([]byte(storage.SettingsKey))
		if data == nil {
			return storage.ErrNotFound
		}
		var record storage.Settings
		if err := json.Unmarshal(data, &record); err != nil {
			// A malformed record reads as absent so defaults apply.
			return storage.ErrNotFound
		}
		out = &record
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *settingsStore) Put(ctx context.Context, settings storage.Settings) error {
	data, err := marshal(settings)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		bucket := tx.Bucket([]byte(bucketSettings))
		if bucket == nil {
			return fmt.Errorf("settings bucket missing")
		}
		return bucket.Put([]byte(storage.SettingsKey), data)
	})
}
