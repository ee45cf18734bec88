package feed

import (
	"sync"
	"time"

	"github.com/goodtune/paceclock/internal/engine"
	"github.com/goodtune/paceclock/internal/metrics"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// DefaultInterval is the refresh cadence of the live readouts.
const DefaultInterval = 100 * time.Millisecond

// TerminalLabel replaces the readouts once the session finishes.
const TerminalLabel = "Session Finished"

// Update is one display-feed frame.
type Update struct {
	// Split is the formatted time since the last tap.
	Split string `json:"split"`

	// Total is the formatted time since the session started.
	Total string `json:"total"`

	Mode     engine.Mode `json:"mode"`
	Finished bool        `json:"finished"`
}

// Broadcaster delivers frames to connected display clients.
type Broadcaster interface {
	Broadcast(update Update)
}

// Feed is the free-running readout loop. It only reads engine snapshots,
// never mutates them, and its cadence is independent of tap events. The loop
// is idle until Start and stops for good at Stop; Reset returns it to idle
// for a fresh session.
type Feed struct {
	engine      *engine.Engine
	broadcaster Broadcaster
	clock       clockwork.Clock
	interval    time.Duration
	logger      zerolog.Logger

	mu      sync.Mutex
	started bool
	stopped bool
	stopCh  chan struct{}
}

// New creates a display feed
func New(eng *engine.Engine, broadcaster Broadcaster, clock clockwork.Clock, interval time.Duration, logger zerolog.Logger) *Feed {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Feed{
		engine:      eng,
		broadcaster: broadcaster,
		clock:       clock,
		interval:    interval,
		logger:      logger.With().Str("component", "feed").Logger(),
	}
}

// Start schedules the refresh loop. Called on the first tap of a session; a
// second call is a no-op, and a stopped feed will not restart.
func (f *Feed) Start() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.started || f.stopped {
		return
	}
	f.started = true
	f.stopCh = make(chan struct{})

	go f.run(f.stopCh)
	f.logger.Debug().Dur("interval", f.interval).Msg("Display feed started")
}

// Stop halts the loop permanently and pushes one frozen terminal frame.
func (f *Feed) Stop() {
	f.mu.Lock()
	if f.stopped {
		f.mu.Unlock()
		return
	}
	f.stopped = true
	started := f.started
	stopCh := f.stopCh
	f.mu.Unlock()

	if started {
		close(stopCh)
	}

	snap := f.engine.Snapshot()
	f.broadcast(Update{
		Split:    TerminalLabel,
		Total:    TerminalLabel,
		Mode:     snap.Mode,
		Finished: true,
	})
	f.logger.Debug().Msg("Display feed stopped")
}

// Reset returns the feed to its idle pre-session state, ready to Start on
// the next session's first tap.
func (f *Feed) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.started && !f.stopped {
		close(f.stopCh)
	}
	f.started = false
	f.stopped = false
	f.stopCh = nil
}

func (f *Feed) run(stopCh <-chan struct{}) {
	ticker := f.clock.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			f.tick()
		case <-stopCh:
			return
		}
	}
}

// tick reads a snapshot and broadcasts the live readouts.
func (f *Feed) tick() {
	snap := f.engine.Snapshot()
	if !snap.Active || snap.Finished {
		return
	}

	now := f.clock.Now()
	f.broadcast(Update{
		Split: engine.FormatSplit(now.Sub(snap.LastTap)),
		Total: engine.FormatSplit(now.Sub(snap.SessionStart)),
		Mode:  snap.Mode,
	})
}

func (f *Feed) broadcast(update Update) {
	f.broadcaster.Broadcast(update)
	metrics.FeedUpdates.Inc()
}
