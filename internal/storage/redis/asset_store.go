package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/goodtune/paceclock/internal/storage"
	"github.com/redis/go-redis/v9"
)

type assetStore struct {
	client *redis.Client
}

func assetHashKey(generation string) string {
	return assetKeyPrefix + generation
}

// PutGeneration stores every asset in a hash keyed by generation name. The
// whole write runs inside one MULTI/EXEC pipeline so the generation never
// becomes visible partially populated.
func (s *assetStore) PutGeneration(ctx context.Context, name string, assets []storage.Asset) error {
	if name == "" {
		return fmt.Errorf("generation name is empty")
	}

	fields := make(map[string]interface{}, len(assets))
	for _, asset := range assets {
		data, err := json.Marshal(asset)
		if err != nil {
			return fmt.Errorf("marshal asset %s: %w", asset.Path, err)
		}
		fields[asset.Path] = data
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, assetHashKey(name))
	if len(fields) > 0 {
		pipe.HSet(ctx, assetHashKey(name), fields)
	}
	pipe.SAdd(ctx, generationsKey, name)
	_, err := pipe.Exec(ctx)
	return err
}

// GetAsset retrieves one asset from a generation
func (s *assetStore) GetAsset(ctx context.Context, generation, path string) (*storage.Asset, error) {
	data, err := s.client.HGet(ctx, assetHashKey(generation), path).Result()
	if errors.Is(err, redis.Nil) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var asset storage.Asset
	if err := json.Unmarshal([]byte(data), &asset); err != nil {
		return nil, fmt.Errorf("unmarshal asset %s: %w", path, err)
	}
	return &asset, nil
}

// ListGenerations returns all stored generation names
func (s *assetStore) ListGenerations(ctx context.Context) ([]string, error) {
	names, err := s.client.SMembers(ctx, generationsKey).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

// DeleteGeneration removes a generation and its assets
func (s *assetStore) DeleteGeneration(ctx context.Context, name string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, assetHashKey(name))
	pipe.SRem(ctx, generationsKey, name)
	_, err := pipe.Exec(ctx)
	return err
}
