package settings

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/goodtune/paceclock/internal/storage"
	"github.com/rs/zerolog"
)

// Setting keys accepted by Set. They match the field names of the persisted
// record.
const (
	KeyDark         = "dark"
	KeyTrackRest    = "trackRest"
	KeyGuard        = "guard"
	KeyGhostHand    = "ghostHand"
	KeyThickerHands = "thickerHands"
)

// Settings is the resolved user configuration after the stored record has
// been merged over built-in defaults.
type Settings struct {
	Dark         bool `json:"dark"`
	TrackRest    bool `json:"trackRest"`
	Guard        bool `json:"guard"`
	GhostHand    bool `json:"ghostHand"`
	ThickerHands bool `json:"thickerHands"`
}

// Engine is the subset of the timing engine that settings changes flow into.
// Display-only settings (dark, ghostHand, thickerHands) never reach it.
type Engine interface {
	SetTrackRest(on bool)
	SetGuard(on bool)
}

// Manager owns the resolved settings, persists every change, and pushes the
// behavioral fields into the timing engine.
type Manager struct {
	store    storage.SettingsStore
	engine   Engine
	defaults Settings
	logger   zerolog.Logger

	mu      sync.RWMutex
	current Settings
}

// NewManager creates a settings manager
func NewManager(store storage.SettingsStore, defaults Settings, engine Engine, logger zerolog.Logger) *Manager {
	return &Manager{
		store:    store,
		engine:   engine,
		defaults: defaults,
		current:  defaults,
		logger:   logger.With().Str("component", "settings").Logger(),
	}
}

// Load reads the stored record, merges it over the defaults field by field,
// and applies the result to the engine. A missing or malformed record just
// means defaults.
func (m *Manager) Load(ctx context.Context) (Settings, error) {
	record, err := m.store.Get(ctx)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return Settings{}, fmt.Errorf("load settings: %w", err)
	}

	m.mu.Lock()
	m.current = m.merge(record)
	current := m.current
	m.mu.Unlock()

	m.Sync()

	m.logger.Info().
		Bool("stored", record != nil).
		Bool("track_rest", current.TrackRest).
		Bool("guard", current.Guard).
		Msg("Settings loaded")

	return current, nil
}

// merge resolves a stored record over the defaults. Missing or invalid
// fields fall back individually; they never block the valid ones.
func (m *Manager) merge(record *storage.Settings) Settings {
	out := m.defaults
	if record == nil {
		return out
	}
	if record.Dark != nil {
		out.Dark = *record.Dark
	}
	if record.TrackRest != nil {
		out.TrackRest = *record.TrackRest
	}
	if record.Guard != nil {
		out.Guard = *record.Guard
	}
	if record.GhostHand != nil {
		out.GhostHand = *record.GhostHand
	}
	if record.ThickerHands != nil {
		out.ThickerHands = *record.ThickerHands
	}
	return out
}

// Current returns the resolved settings.
func (m *Manager) Current() Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Set mutates one settings field, persists the full record, and signals the
// engine when the field affects timing behavior.
func (m *Manager) Set(ctx context.Context, key string, value bool) (Settings, error) {
	m.mu.Lock()
	switch key {
	case KeyDark:
		m.current.Dark = value
	case KeyTrackRest:
		m.current.TrackRest = value
	case KeyGuard:
		m.current.Guard = value
	case KeyGhostHand:
		m.current.GhostHand = value
	case KeyThickerHands:
		m.current.ThickerHands = value
	default:
		m.mu.Unlock()
		return Settings{}, fmt.Errorf("unknown setting %q", key)
	}
	current := m.current
	m.mu.Unlock()

	if err := m.store.Put(ctx, record(current)); err != nil {
		return Settings{}, fmt.Errorf("persist settings: %w", err)
	}

	switch key {
	case KeyTrackRest:
		m.engine.SetTrackRest(value)
	case KeyGuard:
		m.engine.SetGuard(value)
	}

	m.logger.Debug().Str("key", key).Bool("value", value).Msg("Setting changed")

	return current, nil
}

// Sync pushes the behavioral fields into the engine. Called after a session
// reset so the fresh session starts from the persisted settings again.
func (m *Manager) Sync() {
	current := m.Current()
	m.engine.SetTrackRest(current.TrackRest)
	m.engine.SetGuard(current.Guard)
}

// record converts resolved settings into the stored form with every field
// present.
func record(s Settings) storage.Settings {
	return storage.Settings{
		Dark:         &s.Dark,
		TrackRest:    &s.TrackRest,
		Guard:        &s.Guard,
		GhostHand:    &s.GhostHand,
		ThickerHands: &s.ThickerHands,
	}
}
