package engine

import (
	"math"
	"time"
)

// Hand is one continuously sweeping pace hand. Hands run off the wall clock
// alone; tap events never move them.
type Hand struct {
	Color  string  `json:"color"`
	Offset float64 `json:"offset"` // seconds of phase lead, [0, 60)
}

// Hands is an ordered hand set. Order matters: prediction ties go to the
// earliest declared hand.
type Hands []Hand

// DefaultHands returns the four stock pace hands.
func DefaultHands() Hands {
	return Hands{
		{Color: "#ff4d4d", Offset: 0},
		{Color: "#4da3ff", Offset: 15},
		{Color: "#4dff88", Offset: 30},
		{Color: "#ffd24d", Offset: 45},
	}
}

// Ghost marks the hand that will next sweep past zero. It is advisory
// display data only and is recomputed on every tap.
type Ghost struct {
	// Seconds is the hand's position on the face, [0, 60).
	Seconds float64 `json:"seconds"`

	// Color identifies which hand the prediction tracks.
	Color string `json:"color"`

	// Remaining is how many seconds until the hand completes its revolution.
	Remaining float64 `json:"remaining"`
}

// Predict returns the hand closest to completing a full revolution at t.
// Positions use fractional wall-clock seconds, so two calls in the same
// second still differ.
func (h Hands) Predict(t time.Time) Ghost {
	base := math.Mod(float64(t.UnixMilli())/1000.0, 60)

	best := Ghost{Remaining: math.Inf(1)}
	for _, hand := range h {
		s := math.Mod(base+hand.Offset, 60)
		d := 60 - s
		if d >= 0 && d < best.Remaining {
			best = Ghost{Seconds: s, Color: hand.Color, Remaining: d}
		}
	}
	return best
}
