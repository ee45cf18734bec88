package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the complete application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Session  SessionConfig  `mapstructure:"session"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Settings SettingsConfig `mapstructure:"settings"`
}

// ServerConfig defines server ports and addresses
type ServerConfig struct {
	BindAddress string `mapstructure:"bind_address"`
	HTTPPort    int    `mapstructure:"http_port"`
	MetricsPort int    `mapstructure:"metrics_port"`
}

// LoggingConfig defines logging behavior
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// StorageConfig defines storage backend settings
type StorageConfig struct {
	Type  string      `mapstructure:"type"`
	Path  string      `mapstructure:"path"`
	Redis RedisConfig `mapstructure:"redis"`
}

// RedisConfig defines the Redis backend connection
type RedisConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
	DialTimeout  string `mapstructure:"dial_timeout"`
	ReadTimeout  string `mapstructure:"read_timeout"`
	WriteTimeout string `mapstructure:"write_timeout"`
}

// SessionConfig defines timing engine behavior
type SessionConfig struct {
	InitialMode string       `mapstructure:"initial_mode"` // "lap" or "rest"
	GuardWindow string       `mapstructure:"guard_window"` // minimum gap between taps
	Hands       []HandConfig `mapstructure:"hands"`
}

// HandConfig defines one sweeping pace hand
type HandConfig struct {
	Color  string  `mapstructure:"color"`
	Offset float64 `mapstructure:"offset"` // seconds of phase lead, [0, 60)
}

// CacheConfig defines the offline asset cache
type CacheConfig struct {
	Version      string   `mapstructure:"version"`       // cache generation identifier; bump on every deploy
	OriginURL    string   `mapstructure:"origin_url"`    // empty means the embedded shell
	Manifest     []string `mapstructure:"manifest"`      // asset paths installed as one generation
	ShellPath    string   `mapstructure:"shell_path"`    // navigation fallback document
	LRUSize      int      `mapstructure:"lru_size"`      // hot-layer entries
	FetchTimeout string   `mapstructure:"fetch_timeout"` // per-asset fetch timeout
}

// SettingsConfig defines built-in defaults for the persisted user settings
type SettingsConfig struct {
	Dark         bool `mapstructure:"dark"`
	TrackRest    bool `mapstructure:"track_rest"`
	Guard        bool `mapstructure:"guard"`
	GhostHand    bool `mapstructure:"ghost_hand"`
	ThickerHands bool `mapstructure:"thicker_hands"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	SetDefaults(v)

	// Configure viper
	v.SetConfigFile(configPath)
	v.SetEnvPrefix("PACECLOCK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults and environment variables
	}

	// Unmarshal config
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate config
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// SetDefaults sets default configuration values
func SetDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.bind_address", "0.0.0.0")
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.metrics_port", 9090)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Storage defaults
	v.SetDefault("storage.type", "bolt")
	v.SetDefault("storage.path", "/var/lib/paceclock/paceclock.db")
	v.SetDefault("storage.redis.host", "localhost")
	v.SetDefault("storage.redis.port", 6379)
	v.SetDefault("storage.redis.password", "")
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.pool_size", 10)
	v.SetDefault("storage.redis.min_idle_conns", 5)
	v.SetDefault("storage.redis.dial_timeout", "5s")
	v.SetDefault("storage.redis.read_timeout", "3s")
	v.SetDefault("storage.redis.write_timeout", "3s")

	// Session defaults
	v.SetDefault("session.initial_mode", "lap")
	v.SetDefault("session.guard_window", "1s")
	v.SetDefault("session.hands", []map[string]interface{}{
		{"color": "#ff4d4d", "offset": 0.0},
		{"color": "#4da3ff", "offset": 15.0},
		{"color": "#4dff88", "offset": 30.0},
		{"color": "#ffd24d", "offset": 45.0},
	})

	// Cache defaults
	v.SetDefault("cache.version", "pace-clock-v7")
	v.SetDefault("cache.origin_url", "")
	v.SetDefault("cache.manifest", []string{
		"/",
		"/index.html",
		"/style.css",
		"/app.js",
		"/manifest.webmanifest",
	})
	v.SetDefault("cache.shell_path", "/index.html")
	v.SetDefault("cache.lru_size", 64)
	v.SetDefault("cache.fetch_timeout", "10s")

	// Settings defaults
	v.SetDefault("settings.dark", true)
	v.SetDefault("settings.track_rest", false)
	v.SetDefault("settings.guard", true)
	v.SetDefault("settings.ghost_hand", true)
	v.SetDefault("settings.thicker_hands", true)
}

// validate performs semantic validation of the configuration
func validate(c *Config) error {
	if c.Server.HTTPPort < 1 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port out of range: %d", c.Server.HTTPPort)
	}
	if c.Server.MetricsPort < 1 || c.Server.MetricsPort > 65535 {
		return fmt.Errorf("server.metrics_port out of range: %d", c.Server.MetricsPort)
	}

	switch c.Storage.Type {
	case "bolt", "redis":
	default:
		return fmt.Errorf("storage.type must be bolt or redis, got %q", c.Storage.Type)
	}
	if c.Storage.Type == "bolt" && c.Storage.Path == "" {
		return fmt.Errorf("storage.path is required for the bolt backend")
	}

	switch c.Session.InitialMode {
	case "lap", "rest":
	default:
		return fmt.Errorf("session.initial_mode must be lap or rest, got %q", c.Session.InitialMode)
	}
	if _, err := time.ParseDuration(c.Session.GuardWindow); err != nil {
		return fmt.Errorf("session.guard_window: %w", err)
	}
	if len(c.Session.Hands) == 0 {
		return fmt.Errorf("session.hands must declare at least one hand")
	}
	for i, hand := range c.Session.Hands {
		if hand.Color == "" {
			return fmt.Errorf("session.hands[%d].color is empty", i)
		}
		if hand.Offset < 0 || hand.Offset >= 60 {
			return fmt.Errorf("session.hands[%d].offset must be in [0, 60), got %v", i, hand.Offset)
		}
	}

	if c.Cache.Version == "" {
		return fmt.Errorf("cache.version is required")
	}
	if len(c.Cache.Manifest) == 0 {
		return fmt.Errorf("cache.manifest must list at least one asset path")
	}
	for i, path := range c.Cache.Manifest {
		if !strings.HasPrefix(path, "/") {
			return fmt.Errorf("cache.manifest[%d] must be an absolute path, got %q", i, path)
		}
	}
	if c.Cache.ShellPath == "" {
		return fmt.Errorf("cache.shell_path is required")
	}
	if _, err := time.ParseDuration(c.Cache.FetchTimeout); err != nil {
		return fmt.Errorf("cache.fetch_timeout: %w", err)
	}

	return nil
}
