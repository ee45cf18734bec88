package cache

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goodtune/paceclock/internal/metrics"
	"github.com/goodtune/paceclock/internal/storage"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
)

const defaultLRUSize = 64

// Config holds cache controller configuration
type Config struct {
	// Version names the cache generation. Bumping it is the sole
	// invalidation mechanism: activation deletes every other generation.
	Version string

	// Origin is the base URL shell assets are installed from and proxied to
	// on a cache miss.
	Origin string

	// Manifest lists the asset paths that must all install together.
	Manifest []string

	// ShellPath is the cached document served to navigation requests when
	// the network is unreachable.
	ShellPath string

	LRUSize      int
	FetchTimeout time.Duration
}

// Controller guarantees the application shell stays available without a
// network connection. It installs manifest assets as an atomic generation,
// purges stale generations on activation, and intercepts asset requests
// cache-first.
type Controller struct {
	cfg    Config
	origin *url.URL
	store  storage.AssetStore
	hot    *lru.Cache[string, *storage.Asset]
	client *http.Client
	logger zerolog.Logger
}

// CheckResult reports one manifest asset's fetchability.
type CheckResult struct {
	Path string
	Size int
	Err  error
}

// New creates a cache controller. A nil client gets a default with the
// configured fetch timeout.
func New(cfg Config, store storage.AssetStore, client *http.Client, logger zerolog.Logger) (*Controller, error) {
	if cfg.Version == "" {
		return nil, fmt.Errorf("cache version is required")
	}
	origin, err := url.Parse(cfg.Origin)
	if err != nil || origin.Scheme == "" || origin.Host == "" {
		return nil, fmt.Errorf("invalid cache origin %q", cfg.Origin)
	}

	size := cfg.LRUSize
	if size <= 0 {
		size = defaultLRUSize
	}
	hot, err := lru.New[string, *storage.Asset](size)
	if err != nil {
		return nil, fmt.Errorf("create asset cache: %w", err)
	}

	if client == nil {
		timeout := cfg.FetchTimeout
		if timeout == 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	return &Controller{
		cfg:    cfg,
		origin: origin,
		store:  store,
		hot:    hot,
		client: client,
		logger: logger.With().Str("component", "cache").Logger(),
	}, nil
}

// Version returns the current generation name.
func (c *Controller) Version() string {
	return c.cfg.Version
}

// Install fetches every manifest asset from the origin and commits them as
// one generation. Any single fetch failure abandons the whole install; the
// previous generation, if any, stays live and the next startup retries.
func (c *Controller) Install(ctx context.Context) error {
	assets := make([]storage.Asset, 0, len(c.cfg.Manifest))
	for _, path := range c.cfg.Manifest {
		asset, err := c.fetchAsset(ctx, path)
		if err != nil {
			metrics.CacheInstalls.WithLabelValues("failure").Inc()
			return fmt.Errorf("install %s: %w", c.cfg.Version, err)
		}
		assets = append(assets, *asset)
	}

	if err := c.store.PutGeneration(ctx, c.cfg.Version, assets); err != nil {
		metrics.CacheInstalls.WithLabelValues("failure").Inc()
		return fmt.Errorf("install %s: %w", c.cfg.Version, err)
	}

	c.hot.Purge()
	metrics.CacheInstalls.WithLabelValues("success").Inc()
	c.logger.Info().
		Str("generation", c.cfg.Version).
		Int("assets", len(assets)).
		Msg("Pre-cached app shell")

	return nil
}

// Activate deletes every generation whose name differs from the current
// version. Generations are disjoint, so deletions need no ordering.
func (c *Controller) Activate(ctx context.Context) error {
	generations, err := c.store.ListGenerations(ctx)
	if err != nil {
		return fmt.Errorf("activate: list generations: %w", err)
	}

	for _, name := range generations {
		if name == c.cfg.Version {
			continue
		}
		if err := c.store.DeleteGeneration(ctx, name); err != nil {
			return fmt.Errorf("activate: purge %s: %w", name, err)
		}
		c.logger.Info().Str("generation", name).Msg("Purged old cache")
	}

	return nil
}

// Check dry-runs the install, reporting each manifest asset's fetchability
// without writing anything.
func (c *Controller) Check(ctx context.Context) []CheckResult {
	results := make([]CheckResult, 0, len(c.cfg.Manifest))
	for _, path := range c.cfg.Manifest {
		asset, err := c.fetchAsset(ctx, path)
		result := CheckResult{Path: path, Err: err}
		if err == nil {
			result.Size = len(asset.Body)
		}
		results = append(results, result)
	}
	return results
}

// ServeHTTP intercepts asset requests: cache first, then network, then the
// cached shell for navigations that hit a dead network. Non-GET requests
// pass straight through to the origin and their failures propagate.
func (c *Controller) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		c.forward(w, r)
		return
	}

	if asset := c.lookup(r.Context(), r.URL.Path); asset != nil {
		metrics.CacheHits.Inc()
		serveAsset(w, asset)
		return
	}
	metrics.CacheMisses.Inc()

	resp, err := c.fetch(r.Context(), r.URL.Path)
	if err != nil {
		if isNavigation(r) {
			c.serveShell(w, r)
			return
		}
		c.logger.Warn().Err(err).Str("path", r.URL.Path).Msg("Origin unreachable")
		http.Error(w, "origin unreachable", http.StatusBadGateway)
		return
	}
	defer func() { _ = resp.Body.Close() }()

	relay(w, resp)
}

// lookup consults the hot layer, then the stored generation.
func (c *Controller) lookup(ctx context.Context, path string) *storage.Asset {
	if asset, ok := c.hot.Get(path); ok {
		return asset
	}

	asset, err := c.store.GetAsset(ctx, c.cfg.Version, path)
	if err != nil {
		return nil
	}
	c.hot.Add(path, asset)
	return asset
}

// serveShell answers a navigation request with the cached shell document.
func (c *Controller) serveShell(w http.ResponseWriter, r *http.Request) {
	shell := c.lookup(r.Context(), c.cfg.ShellPath)
	if shell == nil {
		// Offline with no cached copy: nothing left to serve.
		http.Error(w, "offline and no cached shell", http.StatusServiceUnavailable)
		return
	}
	metrics.CacheShellFallbacks.Inc()
	c.logger.Info().Str("path", r.URL.Path).Msg("Serving cached shell for navigation")
	serveAsset(w, shell)
}

// fetchAsset retrieves one manifest asset from the origin for installation.
func (c *Controller) fetchAsset(ctx context.Context, path string) (*storage.Asset, error) {
	resp, err := c.fetch(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	return &storage.Asset{
		Path:        path,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
		FetchedAt:   time.Now().UTC(),
	}, nil
}

// fetch issues a GET against the origin, treating HTTP errors as failures.
func (c *Controller) fetch(ctx context.Context, path string) (*http.Response, error) {
	target := c.origin.JoinPath(path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("origin returned %s", resp.Status)
	}
	return resp, nil
}

// forward relays a non-GET request to the origin unmodified.
func (c *Controller) forward(w http.ResponseWriter, r *http.Request) {
	target := c.origin.JoinPath(r.URL.Path)
	target.RawQuery = r.URL.RawQuery

	req, err := http.NewRequestWithContext(r.Context(), r.Method, target.String(), r.Body)
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	req.Header = r.Header.Clone()

	resp, err := c.client.Do(req)
	if err != nil {
		http.Error(w, "origin unreachable", http.StatusBadGateway)
		return
	}
	defer func() { _ = resp.Body.Close() }()

	relay(w, resp)
}

func serveAsset(w http.ResponseWriter, asset *storage.Asset) {
	if asset.ContentType != "" {
		w.Header().Set("Content-Type", asset.ContentType)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(asset.Body)
}

func relay(w http.ResponseWriter, resp *http.Response) {
	for key, values := range resp.Header {
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = io.Copy(w, resp.Body)
}

// isNavigation reports whether a request is a page navigation, the only kind
// that falls back to the cached shell.
func isNavigation(r *http.Request) bool {
	if r.Header.Get("Sec-Fetch-Mode") == "navigate" {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}
