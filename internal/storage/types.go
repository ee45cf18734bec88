package storage

import "time"

// SettingsKey is the key the settings record is stored under. It matches the
// key the original web app used in local storage, so an exported record from
// the browser version can be imported verbatim.
const SettingsKey = "clockSettings"

// Settings is the persisted user settings record. Every field is optional so
// a record written by an older build still merges over built-in defaults
// field by field; there is no versioning or migration.
type Settings struct {
	Dark         *bool `json:"dark,omitempty"`
	TrackRest    *bool `json:"trackRest,omitempty"`
	Guard        *bool `json:"guard,omitempty"`
	GhostHand    *bool `json:"ghostHand,omitempty"`
	ThickerHands *bool `json:"thickerHands,omitempty"`
}

// Asset is one cached shell asset inside a cache generation.
type Asset struct {
	Path        string    `json:"path"`
	ContentType string    `json:"content_type"`
	Body        []byte    `json:"body"`
	FetchedAt   time.Time `json:"fetched_at"`
}
