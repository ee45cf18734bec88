package bolt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/goodtune/paceclock/internal/storage"
	"go.etcd.io/bbolt"
)

type assetStore struct {
	db *bbolt.DB
}

// PutGeneration stores every asset under a nested bucket named after the
// generation. A single Update transaction makes the install all-or-nothing:
// any failure rolls the whole generation back.
func (s *assetStore) PutGeneration(ctx context.Context, name string, assets []storage.Asset) error {
	if name == "" {
		return fmt.Errorf("generation name is empty")
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		root := tx.Bucket([]byte(bucketAssets))
		if root == nil {
			return fmt.Errorf("assets bucket missing")
		}
		if root.Bucket([]byte(name)) != nil {
			if err := root.DeleteBucket([]byte(name)); err != nil {
				return fmt.Errorf("replace generation %s: %w", name, err)
			}
		}
		gen, err := root.CreateBucket([]byte(name))
		if err != nil {
			return fmt.Errorf("create generation %s: %w", name, err)
		}
		for _, asset := range assets {
			data, err := marshal(asset)
			if err != nil {
				return err
			}
			if err := gen.Put([]byte(asset.Path), data); err != nil {
				return fmt.Errorf("store asset %s: %w", asset.Path, err)
			}
		}
		return nil
	})
}

func (s *assetStore) GetAsset(ctx context.Context, generation, path string) (*storage.Asset, error) {
	var out *storage.Asset
	err := s.db.View(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		root := tx.Bucket([]byte(bucketAssets))
		if root == nil {
			return fmt.Errorf("assets bucket missing")
		}
		gen := root.Bucket([]byte(generation))
		if gen == nil {
			return storage.ErrNotFound
		}
		data := gen.Get([]byte(path))
		if data == nil {
			return storage.ErrNotFound
		}
		var asset storage.Asset
		if err := json.Unmarshal(data, &asset); err != nil {
			return fmt.Errorf("unmarshal asset %s: %w", path, err)
		}
		out = &asset
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *assetStore) ListGenerations(ctx context.Context) ([]string, error) {
	var names []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		root := tx.Bucket([]byte(bucketAssets))
		if root == nil {
			return fmt.Errorf("assets bucket missing")
		}
		c := root.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			// Nested buckets carry a nil value.
			if v == nil {
				names = append(names, string(k))
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return names, nil
}

func (s *assetStore) DeleteGeneration(ctx context.Context, name string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		root := tx.Bucket([]byte(bucketAssets))
		if root == nil {
			return fmt.Errorf("assets bucket missing")
		}
		err := root.DeleteBucket([]byte(name))
		if errors.Is(err, bbolt.ErrBucketNotFound) {
			return nil
		}
		return err
	})
}
