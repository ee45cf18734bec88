package metrics

import (
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	// Timing engine metrics
	TapsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "paceclock_taps_total",
			Help: "Total taps accepted by the timing engine",
		},
	)

	TapsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paceclock_taps_rejected_total",
			Help: "Taps ignored by the timing engine",
		},
		[]string{"reason"},
	)

	IntervalsRecorded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paceclock_intervals_total",
			Help: "Intervals recorded, by type",
		},
		[]string{"type"},
	)

	SessionsFinished = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "paceclock_sessions_finished_total",
			Help: "Sessions moved to the finished state",
		},
	)

	SessionsReset = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "paceclock_sessions_reset_total",
			Help: "Sessions discarded by reset",
		},
	)

	GhostPredictions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paceclock_ghost_predictions_total",
			Help: "Ghost hand predictions, by winning hand color",
		},
		[]string{"color"},
	)

	// Offline cache metrics
	CacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "paceclock_cache_hits_total",
			Help: "Asset requests served from the cache",
		},
	)

	CacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "paceclock_cache_misses_total",
			Help: "Asset requests not found in the cache",
		},
	)

	CacheInstalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paceclock_cache_installs_total",
			Help: "Cache generation install attempts, by result",
		},
		[]string{"result"},
	)

	CacheShellFallbacks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "paceclock_cache_shell_fallbacks_total",
			Help: "Navigation requests served the cached shell after a network failure",
		},
	)

	// Display feed metrics
	FeedClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "paceclock_feed_clients",
			Help: "Connected display feed clients",
		},
	)

	FeedUpdates = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "paceclock_feed_updates_total",
			Help: "Display feed frames broadcast",
		},
	)
)

func init() {
	prometheus.MustRegister(
		TapsTotal,
		TapsRejected,
		IntervalsRecorded,
		SessionsFinished,
		SessionsReset,
		GhostPredictions,
		CacheHits,
		CacheMisses,
		CacheInstalls,
		CacheShellFallbacks,
		FeedClients,
		FeedUpdates,
	)
}

// Server serves the Prometheus metrics endpoint
type Server struct {
	server   *http.Server
	listener net.Listener
	logger   zerolog.Logger
}

// NewServer creates a new metrics server
func NewServer(addr string, logger zerolog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return &Server{
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
		logger: logger.With().Str("component", "metrics").Logger(),
	}
}

// SetListener sets a pre-created listener for systemd socket activation
func (s *Server) SetListener(ln net.Listener) {
	s.listener = ln
}

// Start starts the metrics server
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("Starting metrics server")
	go func() {
		var err error
		if s.listener != nil {
			s.logger.Debug().Msg("Using systemd socket-activated metrics listener")
			err = s.server.Serve(s.listener)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Metrics server error")
		}
	}()
	return nil
}

// Stop stops the metrics server
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping metrics server")
	return s.server.Close()
}
