package cache

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/goodtune/paceclock/internal/storage"
	"github.com/goodtune/paceclock/internal/storage/bolt"
	"github.com/rs/zerolog"
)

var testManifest = []string{"/", "/index.html", "/style.css", "/app.js", "/manifest.webmanifest", "/icon.svg"}

// newOrigin serves the test manifest, optionally failing specific paths.
func newOrigin(t *testing.T, failing map[string]bool) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failing[r.URL.Path] {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusAccepted)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		_, _ = io.WriteString(w, "asset:"+r.URL.Path)
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestStore(t *testing.T) storage.AssetStore {
	t.Helper()

	store, err := bolt.Open(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store.Assets()
}

func newController(t *testing.T, store storage.AssetStore, version, origin string) *Controller {
	t.Helper()

	controller, err := New(Config{
		Version:   version,
		Origin:    origin,
		Manifest:  testManifest,
		ShellPath: "/index.html",
	}, store, nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}
	return controller
}

func TestInstallStoresAllAssets(t *testing.T) {
	origin := newOrigin(t, nil)
	store := newTestStore(t)
	controller := newController(t, store, "pace-clock-v7", origin.URL)

	if err := controller.Install(context.Background()); err != nil {
		t.Fatalf("install: %v", err)
	}

	for _, path := range testManifest {
		asset, err := store.GetAsset(context.Background(), "pace-clock-v7", path)
		if err != nil {
			t.Fatalf("asset %s missing after install: %v", path, err)
		}
		if string(asset.Body) != "asset:"+path {
			t.Errorf("asset %s body = %q", path, asset.Body)
		}
	}
}

func TestInstallIsAllOrNothing(t *testing.T) {
	origin := newOrigin(t, map[string]bool{"/app.js": true})
	store := newTestStore(t)
	controller := newController(t, store, "pace-clock-v7", origin.URL)

	if err := controller.Install(context.Background()); err == nil {
		t.Fatal("expected install to fail")
	}

	// One failing asset out of six means zero assets are retained.
	for _, path := range testManifest {
		if _, err := store.GetAsset(context.Background(), "pace-clock-v7", path); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("asset %s retained after failed install (err=%v)", path, err)
		}
	}

	generations, err := store.ListGenerations(context.Background())
	if err != nil {
		t.Fatalf("list generations: %v", err)
	}
	if len(generations) != 0 {
		t.Errorf("failed install left generations %v", generations)
	}
}

func TestInstallFailureKeepsPreviousGeneration(t *testing.T) {
	origin := newOrigin(t, nil)
	store := newTestStore(t)

	previous := newController(t, store, "pace-clock-v6", origin.URL)
	if err := previous.Install(context.Background()); err != nil {
		t.Fatalf("install previous generation: %v", err)
	}

	broken := newOrigin(t, map[string]bool{"/style.css": true})
	next := newController(t, store, "pace-clock-v7", broken.URL)
	if err := next.Install(context.Background()); err == nil {
		t.Fatal("expected install to fail")
	}

	if _, err := store.GetAsset(context.Background(), "pace-clock-v6", "/index.html"); err != nil {
		t.Errorf("previous generation damaged by failed install: %v", err)
	}
}

func TestActivatePurgesStaleGenerations(t *testing.T) {
	origin := newOrigin(t, nil)
	store := newTestStore(t)

	for _, version := range []string{"pace-clock-v5", "pace-clock-v6", "pace-clock-v7"} {
		c := newController(t, store, version, origin.URL)
		if err := c.Install(context.Background()); err != nil {
			t.Fatalf("install %s: %v", version, err)
		}
	}

	current := newController(t, store, "pace-clock-v7", origin.URL)
	if err := current.Activate(context.Background()); err != nil {
		t.Fatalf("activate: %v", err)
	}

	generations, err := store.ListGenerations(context.Background())
	if err != nil {
		t.Fatalf("list generations: %v", err)
	}
	if len(generations) != 1 || generations[0] != "pace-clock-v7" {
		t.Errorf("expected only pace-clock-v7 to survive, got %v", generations)
	}
}

func TestServeCacheFirstWhileOffline(t *testing.T) {
	origin := newOrigin(t, nil)
	store := newTestStore(t)
	controller := newController(t, store, "pace-clock-v7", origin.URL)

	if err := controller.Install(context.Background()); err != nil {
		t.Fatalf("install: %v", err)
	}

	// Kill the network. Cached assets must still serve.
	origin.Close()

	rec := httptest.NewRecorder()
	controller.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/style.css", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, want 200", rec.Code)
	}
	if rec.Body.String() != "asset:/style.css" {
		t.Errorf("body %q", rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/plain" {
		t.Errorf("content type %q, want text/plain", ct)
	}
}

func TestNavigationFallsBackToShell(t *testing.T) {
	origin := newOrigin(t, nil)
	store := newTestStore(t)
	controller := newController(t, store, "pace-clock-v7", origin.URL)

	if err := controller.Install(context.Background()); err != nil {
		t.Fatalf("install: %v", err)
	}
	origin.Close()

	req := httptest.NewRequest(http.MethodGet, "/some/deep/route", nil)
	req.Header.Set("Sec-Fetch-Mode", "navigate")

	rec := httptest.NewRecorder()
	controller.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, want 200", rec.Code)
	}
	if rec.Body.String() != "asset:/index.html" {
		t.Errorf("expected cached shell, got %q", rec.Body.String())
	}
}

func TestNonNavigationMissFailsWithoutFallback(t *testing.T) {
	origin := newOrigin(t, nil)
	store := newTestStore(t)
	controller := newController(t, store, "pace-clock-v7", origin.URL)

	if err := controller.Install(context.Background()); err != nil {
		t.Fatalf("install: %v", err)
	}
	origin.Close()

	req := httptest.NewRequest(http.MethodGet, "/data.json", nil)
	req.Header.Set("Accept", "application/json")

	rec := httptest.NewRecorder()
	controller.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Errorf("status %d, want 502", rec.Code)
	}
}

func TestMissServedFromNetwork(t *testing.T) {
	origin := newOrigin(t, nil)
	store := newTestStore(t)
	controller := newController(t, store, "pace-clock-v7", origin.URL)

	// Nothing installed: every GET is a miss answered by the origin.
	rec := httptest.NewRecorder()
	controller.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/late-addition.css", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, want 200", rec.Code)
	}
	if rec.Body.String() != "asset:/late-addition.css" {
		t.Errorf("body %q", rec.Body.String())
	}
}

func TestNonGETPassesThrough(t *testing.T) {
	origin := newOrigin(t, nil)
	store := newTestStore(t)
	controller := newController(t, store, "pace-clock-v7", origin.URL)

	rec := httptest.NewRecorder()
	controller.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/submit", nil))

	if rec.Code != http.StatusAccepted {
		t.Errorf("status %d, want 202 from origin", rec.Code)
	}
}

func TestCheckReportsPerAsset(t *testing.T) {
	origin := newOrigin(t, map[string]bool{"/icon.svg": true})
	store := newTestStore(t)
	controller := newController(t, store, "pace-clock-v7", origin.URL)

	results := controller.Check(context.Background())
	if len(results) != len(testManifest) {
		t.Fatalf("expected %d results, got %d", len(testManifest), len(results))
	}

	failures := 0
	for _, result := range results {
		if result.Err != nil {
			failures++
			if result.Path != "/icon.svg" {
				t.Errorf("unexpected failure for %s: %v", result.Path, result.Err)
			}
		}
	}
	if failures != 1 {
		t.Errorf("expected exactly 1 failure, got %d", failures)
	}
}
