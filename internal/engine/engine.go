package engine

import (
	"sync"
	"time"

	"github.com/goodtune/paceclock/internal/metrics"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// DefaultGuardWindow is the minimum gap between taps when the double-tap
// guard is enabled. Shorter taps are ignored as accidental double-presses.
const DefaultGuardWindow = time.Second

// Config holds timing engine configuration
type Config struct {
	InitialMode Mode
	GuardWindow time.Duration
	Hands       Hands
	TrackRest   bool
	Guard       bool
}

// Engine owns the lap/rest session state machine. It is the single writer of
// session state; everything else reads through Snapshot or the TapResult
// returned by each operation.
type Engine struct {
	clock  clockwork.Clock
	logger zerolog.Logger

	mu sync.RWMutex

	initialMode Mode
	guardWindow time.Duration
	hands       Hands

	trackRest bool
	guard     bool

	sessionStart    time.Time // zero until the first tap
	lastTap         time.Time
	mode            Mode
	finished        bool
	hasCompletedLap bool
	lapCount        int
	intervals       []Interval
	ghost           *Ghost
}

// New creates a timing engine
func New(cfg Config, clock clockwork.Clock, logger zerolog.Logger) *Engine {
	if cfg.InitialMode == "" {
		cfg.InitialMode = ModeLap
	}
	if cfg.GuardWindow == 0 {
		cfg.GuardWindow = DefaultGuardWindow
	}
	if len(cfg.Hands) == 0 {
		cfg.Hands = DefaultHands()
	}

	return &Engine{
		clock:       clock,
		logger:      logger.With().Str("component", "engine").Logger(),
		initialMode: cfg.InitialMode,
		guardWindow: cfg.GuardWindow,
		hands:       cfg.Hands,
		trackRest:   cfg.TrackRest,
		guard:       cfg.Guard,
		mode:        cfg.InitialMode,
		lapCount:    1,
	}
}

// RecordTap processes one tap event at the current clock time.
//
// The first tap opens the session without recording an interval; every later
// tap closes out the interval since the previous one. Taps inside the guard
// window and taps after Finish are silent no-ops.
func (e *Engine) RecordTap() TapResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	res := TapResult{Mode: e.mode, Ghost: e.ghost}

	if e.finished {
		metrics.TapsRejected.WithLabelValues("finished").Inc()
		return res
	}

	now := e.clock.Now()

	if e.guard && !e.lastTap.IsZero() && now.Sub(e.lastTap) < e.guardWindow {
		metrics.TapsRejected.WithLabelValues("guard").Inc()
		e.logger.Debug().
			Dur("since_last", now.Sub(e.lastTap)).
			Dur("window", e.guardWindow).
			Msg("Tap ignored by double-tap guard")
		return res
	}

	res.Accepted = true

	if e.sessionStart.IsZero() {
		// First tap: open the session. There is no prior tap to measure
		// from and the mode stays put, so the opening interval keeps the
		// kind it started as.
		e.sessionStart = now
		res.Started = true
	} else {
		interval := Interval{
			Type: e.mode,
			Time: now.Sub(e.lastTap).Milliseconds(),
		}
		if e.mode == ModeLap {
			interval.Number = e.lapCount
			e.lapCount++
			e.hasCompletedLap = true
			if prev, ok := e.previousLap(); ok {
				delta := interval.Time - prev.Time
				interval.Delta = &delta
				interval.Faster = delta < 0
			}
		}
		e.intervals = append(e.intervals, interval)
		res.Recorded = &interval

		metrics.IntervalsRecorded.WithLabelValues(string(interval.Type)).Inc()

		// Alternate: lap -> rest only while rest tracking is on, rest -> lap
		// always.
		if e.trackRest && e.mode == ModeLap {
			e.mode = ModeRest
		} else if e.mode == ModeRest {
			e.mode = ModeLap
		}
	}

	e.lastTap = now
	res.Mode = e.mode

	ghost := e.hands.Predict(now)
	e.ghost = &ghost
	res.Ghost = e.ghost

	metrics.TapsTotal.Inc()
	metrics.GhostPredictions.WithLabelValues(ghost.Color).Inc()

	e.logger.Debug().
		Str("mode", string(e.mode)).
		Bool("started", res.Started).
		Int("intervals", len(e.intervals)).
		Msg("Tap recorded")

	return res
}

// previousLap returns the most recent lap-type interval.
func (e *Engine) previousLap() (Interval, bool) {
	for i := len(e.intervals) - 1; i >= 0; i-- {
		if e.intervals[i].Type == ModeLap {
			return e.intervals[i], true
		}
	}
	return Interval{}, false
}

// Finish moves the session into its terminal state. Finished is absorbing:
// further taps are ignored and a second Finish changes nothing.
func (e *Engine) Finish() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.finished {
		return
	}

	e.finished = true
	e.trackRest = false
	e.hasCompletedLap = false

	metrics.SessionsFinished.Inc()
	e.logger.Info().
		Int("intervals", len(e.intervals)).
		Int("laps", e.lapCount-1).
		Msg("Session finished")
}

// Reset discards the session, the interval sequence, and the ghost
// prediction, returning the engine to its freshly-loaded state. Persisted
// settings are not touched; the caller re-applies them after a reset.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.sessionStart = time.Time{}
	e.lastTap = time.Time{}
	e.mode = e.initialMode
	e.finished = false
	e.hasCompletedLap = false
	e.lapCount = 1
	e.intervals = nil
	e.ghost = nil

	metrics.SessionsReset.Inc()
	e.logger.Info().Msg("Session reset")
}

// SetTrackRest toggles rest tracking. Turning it off pins the mode to lap;
// turning it on mid-session flips an in-progress lap over to rest, matching
// the toggle button behavior.
func (e *Engine) SetTrackRest(on bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.trackRest = on
	if !on {
		e.mode = ModeLap
	} else if !e.sessionStart.IsZero() && e.mode == ModeLap {
		e.mode = ModeRest
	}
}

// SetGuard toggles the double-tap guard.
func (e *Engine) SetGuard(on bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.guard = on
}

// Snapshot returns a read-only copy of the current session state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()

	snap := Snapshot{
		Active:          !e.sessionStart.IsZero(),
		Finished:        e.finished,
		Mode:            e.mode,
		TrackRest:       e.trackRest,
		Guard:           e.guard,
		SessionStart:    e.sessionStart,
		LastTap:         e.lastTap,
		LapCount:        e.lapCount,
		HasCompletedLap: e.hasCompletedLap,
		Intervals:       make([]Interval, len(e.intervals)),
	}
	copy(snap.Intervals, e.intervals)

	if e.ghost != nil {
		ghost := *e.ghost
		snap.Ghost = &ghost
	}

	return snap
}

// Hands returns the configured hand set.
func (e *Engine) Hands() Hands {
	return e.hands
}

// PredictGhost predicts the next pace hand from the current clock time.
func (e *Engine) PredictGhost() (Ghost, time.Time) {
	now := e.clock.Now()
	return e.hands.Predict(now), now
}
