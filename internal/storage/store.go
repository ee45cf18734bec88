package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a record is missing from storage.
var ErrNotFound = errors.New("storage: record not found")

// Store represents the root storage interface.
type Store interface {
	Close() error
	Settings() SettingsStore
	Assets() AssetStore
}

// SettingsStore persists the user-facing clock settings record.
type SettingsStore interface {
	Get(ctx context.Context) (*Settings, error)
	Put(ctx context.Context, settings Settings) error
}

// AssetStore manages versioned generations of cached shell assets.
//
// PutGeneration is all-or-nothing: either every asset is stored under the
// generation name, or none are. Generations are disjoint, so deleting one
// never affects another.
type AssetStore interface {
	PutGeneration(ctx context.Context, name string, assets []Asset) error
	GetAsset(ctx context.Context, generation, path string) (*Asset, error)
	ListGenerations(ctx context.Context) ([]string, error)
	DeleteGeneration(ctx context.Context, name string) error
}
