package engine

import "time"

// Mode identifies the kind of interval currently being timed.
type Mode string

const (
	ModeLap  Mode = "lap"
	ModeRest Mode = "rest"
)

// Interval is one recorded lap or rest entry. Entries are immutable once
// recorded and the sequence is append-only.
type Interval struct {
	Type Mode `json:"type"`

	// Time is the interval duration in milliseconds since the previous tap.
	Time int64 `json:"time"`

	// Number is the 1-indexed lap number. Zero for rest entries.
	Number int `json:"number,omitempty"`

	// Delta is the difference in milliseconds against the previous lap.
	// Nil for rest entries and for the first lap. Negative means faster.
	Delta *int64 `json:"delta,omitempty"`

	// Faster reports whether Delta is negative.
	Faster bool `json:"faster,omitempty"`
}

// TapResult describes what a single tap did, so the caller can refresh the
// display without another query.
type TapResult struct {
	// Accepted is false when the tap was ignored (guard window, finished).
	Accepted bool `json:"accepted"`

	// Started is true for the tap that opened the session.
	Started bool `json:"started"`

	// Recorded is the interval this tap closed out, if any.
	Recorded *Interval `json:"recorded,omitempty"`

	// Mode is the interval kind now being timed.
	Mode Mode `json:"mode"`

	// Ghost is the prediction recomputed by this tap.
	Ghost *Ghost `json:"ghost,omitempty"`
}

// Snapshot is a read-only copy of the session state. The render layer and
// the display feed pull snapshots instead of sharing fields with the engine.
type Snapshot struct {
	Active          bool       `json:"active"`
	Finished        bool       `json:"finished"`
	Mode            Mode       `json:"mode"`
	TrackRest       bool       `json:"trackRest"`
	Guard           bool       `json:"guard"`
	SessionStart    time.Time  `json:"sessionStart"`
	LastTap         time.Time  `json:"lastTap"`
	LapCount        int        `json:"lapCount"`
	HasCompletedLap bool       `json:"hasCompletedLap"`
	Intervals       []Interval `json:"intervals"`
	Ghost           *Ghost     `json:"ghost,omitempty"`
}
