package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goodtune/paceclock/internal/cache"
	"github.com/goodtune/paceclock/internal/config"
	"github.com/goodtune/paceclock/internal/engine"
	"github.com/goodtune/paceclock/internal/feed"
	"github.com/goodtune/paceclock/internal/metrics"
	"github.com/goodtune/paceclock/internal/server"
	"github.com/goodtune/paceclock/internal/settings"
	"github.com/goodtune/paceclock/internal/storage"
	"github.com/goodtune/paceclock/internal/storage/bolt"
	"github.com/goodtune/paceclock/internal/storage/redis"
	"github.com/goodtune/paceclock/internal/systemd"
	"github.com/goodtune/paceclock/web"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the paceclock server",
	Long:  `Start the paceclock server with the timing API, websocket display feed, cached shell, and metrics endpoints.`,
	RunE:  runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)
}

func runServer(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Setup logger
	logger := setupLogger(cfg.Logging)
	log.Logger = logger

	logger.Info().
		Str("version", version).
		Str("config", configPath).
		Msg("Starting paceclock")

	// Check for systemd socket activation
	sdListeners, err := systemd.GetListeners()
	if err != nil {
		return fmt.Errorf("failed to get systemd listeners: %w", err)
	}
	if sdListeners.Activated {
		logger.Info().Msg("Running with systemd socket activation")
	}

	// Initialize storage
	store, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close storage")
		}
	}()

	logger.Info().
		Str("type", cfg.Storage.Type).
		Str("path", cfg.Storage.Path).
		Msg("Storage initialized")

	// Initialize timing engine
	clock := clockwork.NewRealClock()
	hands := make(engine.Hands, 0, len(cfg.Session.Hands))
	for _, hand := range cfg.Session.Hands {
		hands = append(hands, engine.Hand{Color: hand.Color, Offset: hand.Offset})
	}

	eng := engine.New(engine.Config{
		InitialMode: engine.Mode(cfg.Session.InitialMode),
		GuardWindow: parseDuration(cfg.Session.GuardWindow, engine.DefaultGuardWindow),
		Hands:       hands,
		TrackRest:   cfg.Settings.TrackRest,
		Guard:       cfg.Settings.Guard,
	}, clock, logger)

	logger.Info().
		Str("initial_mode", cfg.Session.InitialMode).
		Int("hands", len(hands)).
		Msg("Timing engine initialized")

	// Load persisted settings over the configured defaults
	manager := settings.NewManager(store.Settings(), settings.Settings{
		Dark:         cfg.Settings.Dark,
		TrackRest:    cfg.Settings.TrackRest,
		Guard:        cfg.Settings.Guard,
		GhostHand:    cfg.Settings.GhostHand,
		ThickerHands: cfg.Settings.ThickerHands,
	}, eng, logger)

	loadCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	current, err := manager.Load(loadCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	logger.Info().
		Bool("track_rest", current.TrackRest).
		Bool("guard", current.Guard).
		Msg("Settings loaded")

	// Initialize display feed
	hub := feed.NewHub(logger)
	displayFeed := feed.New(eng, hub, clock, feed.DefaultInterval, logger)

	// Initialize asset cache. An empty origin URL means the embedded shell,
	// answered in-process.
	origin := cfg.Cache.OriginURL
	var originClient *http.Client
	if origin == "" {
		origin = web.DefaultOrigin
		originClient = web.NewClient()
		logger.Info().Msg("Serving the embedded application shell")
	}

	assetCache, err := cache.New(cache.Config{
		Version:      cfg.Cache.Version,
		Origin:       origin,
		Manifest:     cfg.Cache.Manifest,
		ShellPath:    cfg.Cache.ShellPath,
		LRUSize:      cfg.Cache.LRUSize,
		FetchTimeout: parseDuration(cfg.Cache.FetchTimeout, 10*time.Second),
	}, store.Assets(), originClient, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize asset cache: %w", err)
	}

	// Install the current generation. A failed install is survivable: the
	// previous generation keeps serving and the next startup retries.
	installCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := assetCache.Install(installCtx); err != nil {
		logger.Warn().Err(err).Msg("Shell install failed, serving the previous generation")
	} else if err := assetCache.Activate(installCtx); err != nil {
		logger.Error().Err(err).Msg("Failed to purge old cache generations")
	}
	cancel()

	// Initialize HTTP server
	httpAddr := fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.HTTPPort)
	httpServer := server.NewServer(server.Config{ListenAddr: httpAddr}, eng, manager, displayFeed, hub, assetCache, logger)

	if sdListeners.Activated && sdListeners.HTTP != nil {
		httpServer.SetListener(sdListeners.HTTP)
	}

	if err := httpServer.Start(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	logger.Info().Str("addr", httpAddr).Msg("HTTP server started")

	// Initialize Metrics Server
	metricsAddr := fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.MetricsPort)
	metricsServer := metrics.NewServer(metricsAddr, logger)

	if sdListeners.Activated && sdListeners.Metrics != nil {
		metricsServer.SetListener(sdListeners.Metrics)
	}

	if err := metricsServer.Start(); err != nil {
		return fmt.Errorf("failed to start Metrics Server: %w", err)
	}

	logger.Info().Str("addr", metricsAddr).Msg("Metrics Server started")

	logger.Info().Msg("Paceclock startup complete")
	logger.Info().Msgf("Clock: http://%s:%d/", cfg.Server.BindAddress, cfg.Server.HTTPPort)
	logger.Info().Msgf("Metrics: http://%s:%d/metrics", cfg.Server.BindAddress, cfg.Server.MetricsPort)

	// Notify systemd that we're ready to serve requests
	if err := systemd.NotifyReady(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd ready notification")
	}

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan

	logger.Info().Msg("Shutdown signal received, gracefully stopping...")

	// Notify systemd that we're stopping
	if err := systemd.NotifyStopping(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd stopping notification")
	}

	// Stop servers
	displayFeed.Stop()
	hub.Close()

	if err := httpServer.Stop(); err != nil {
		logger.Error().Err(err).Msg("Error stopping HTTP server")
	}

	if err := metricsServer.Stop(); err != nil {
		logger.Error().Err(err).Msg("Error stopping Metrics Server")
	}

	logger.Info().Msg("Paceclock stopped")

	return nil
}

func openStorage(cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Type {
	case "bolt", "":
		return bolt.Open(cfg.Path)
	case "redis":
		return redis.Open(cfg.Redis)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

// setupLogger configures the logger based on configuration
func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	// Set log level
	level := zerolog.InfoLevel
	switch cfg.Level {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	zerolog.SetGlobalLevel(level)

	// Set output format
	if cfg.Format == "text" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Default to JSON
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// parseDuration parses a duration string with a fallback
func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
