package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goodtune/paceclock/internal/cache"
	"github.com/goodtune/paceclock/internal/engine"
	"github.com/goodtune/paceclock/internal/feed"
	"github.com/goodtune/paceclock/internal/settings"
	"github.com/goodtune/paceclock/internal/storage/bolt"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

var shellManifest = []string{"/", "/index.html", "/style.css", "/app.js"}

func newOrigin(t *testing.T) *httptest.Server {
	t.Helper()
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusAccepted)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("origin:" + r.URL.Path))
	}))
	t.Cleanup(origin.Close)
	return origin
}

type testHarness struct {
	srv    *httptest.Server
	clock  *clockwork.FakeClock
	engine *engine.Engine
	origin *httptest.Server
}

func newTestServer(t *testing.T) *testHarness {
	t.Helper()
	logger := zerolog.Nop()

	store, err := bolt.Open(filepath.Join(t.TempDir(), "paceclock.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	clock := clockwork.NewFakeClockAt(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	eng := engine.New(engine.Config{Guard: true}, clock, logger)

	manager := settings.NewManager(store.Settings(), settings.Settings{
		Dark:      true,
		Guard:     true,
		GhostHand: true,
	}, eng, logger)
	if _, err := manager.Load(context.Background()); err != nil {
		t.Fatalf("load settings: %v", err)
	}

	hub := feed.NewHub(logger)
	t.Cleanup(hub.Close)
	displayFeed := feed.New(eng, hub, clock, feed.DefaultInterval, logger)
	t.Cleanup(displayFeed.Stop)

	origin := newOrigin(t)
	ctrl, err := cache.New(cache.Config{
		Version:   "pace-clock-v7",
		Origin:    origin.URL,
		Manifest:  shellManifest,
		ShellPath: "/index.html",
	}, store.Assets(), origin.Client(), logger)
	if err != nil {
		t.Fatalf("create cache controller: %v", err)
	}
	if err := ctrl.Install(context.Background()); err != nil {
		t.Fatalf("install shell: %v", err)
	}

	s := NewServer(Config{ListenAddr: ":0"}, eng, manager, displayFeed, hub, ctrl, logger)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	return &testHarness{srv: srv, clock: clock, engine: eng, origin: origin}
}

func (h *testHarness) post(t *testing.T, path string, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(h.srv.URL+path, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

func (h *testHarness) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(h.srv.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	return resp
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestTapOpensSessionThenRecords(t *testing.T) {
	h := newTestServer(t)

	var first tapResponse
	decode(t, h.post(t, "/api/tap", ""), &first)
	if !first.Accepted || !first.Started {
		t.Fatalf("first tap = %+v, want accepted and started", first)
	}
	if first.Recorded != nil {
		t.Errorf("first tap recorded an interval: %+v", first.Recorded)
	}

	h.clock.Advance(5 * time.Second)

	var second tapResponse
	decode(t, h.post(t, "/api/tap", ""), &second)
	if !second.Accepted || second.Started {
		t.Fatalf("second tap = %+v, want accepted and not started", second)
	}
	if second.Recorded == nil || second.Recorded.Number != 1 || second.Recorded.Time != 5000 {
		t.Errorf("second tap recorded = %+v, want lap 1 at 5000ms", second.Recorded)
	}
}

func TestGuardRejectsRapidTap(t *testing.T) {
	h := newTestServer(t)

	decode(t, h.post(t, "/api/tap", ""), &tapResponse{})
	h.clock.Advance(200 * time.Millisecond)

	var res tapResponse
	decode(t, h.post(t, "/api/tap", ""), &res)
	if res.Accepted {
		t.Error("tap inside guard window was accepted")
	}
}

func TestFinishThenReset(t *testing.T) {
	h := newTestServer(t)

	decode(t, h.post(t, "/api/tap", ""), &tapResponse{})
	h.clock.Advance(3 * time.Second)
	decode(t, h.post(t, "/api/tap", ""), &tapResponse{})

	resp := h.post(t, "/api/finish", "")
	_ = resp.Body.Close()

	var snap engine.Snapshot
	decode(t, h.get(t, "/api/session"), &snap)
	if !snap.Finished {
		t.Fatal("session not finished after /api/finish")
	}

	h.clock.Advance(3 * time.Second)
	var rejected tapResponse
	decode(t, h.post(t, "/api/tap", ""), &rejected)
	if rejected.Accepted {
		t.Error("tap accepted on finished session")
	}

	resp = h.post(t, "/api/reset", "")
	_ = resp.Body.Close()

	decode(t, h.get(t, "/api/session"), &snap)
	if snap.Active || snap.Finished || len(snap.Intervals) != 0 {
		t.Errorf("session after reset = %+v, want idle", snap)
	}

	var fresh tapResponse
	decode(t, h.post(t, "/api/tap", ""), &fresh)
	if !fresh.Accepted || !fresh.Started {
		t.Errorf("tap after reset = %+v, want a fresh session start", fresh)
	}
}

func TestIntervalsEndpoint(t *testing.T) {
	h := newTestServer(t)

	decode(t, h.post(t, "/api/tap", ""), &tapResponse{})
	for i := 0; i < 3; i++ {
		h.clock.Advance(4 * time.Second)
		decode(t, h.post(t, "/api/tap", ""), &tapResponse{})
	}

	var intervals []engine.Interval
	decode(t, h.get(t, "/api/intervals"), &intervals)
	if len(intervals) != 3 {
		t.Fatalf("got %d intervals, want 3", len(intervals))
	}
	for i, in := range intervals {
		if in.Number != i+1 {
			t.Errorf("interval %d numbered %d", i, in.Number)
		}
	}
}

func TestGhostEndpoint(t *testing.T) {
	h := newTestServer(t)

	// 09:00:35 puts the 15s-offset hand closest to completing.
	h.clock.Advance(35 * time.Second)

	var res ghostResponse
	decode(t, h.get(t, "/api/ghost"), &res)
	if res.Ghost.Color != "#4da3ff" {
		t.Errorf("ghost color = %s, want #4da3ff", res.Ghost.Color)
	}
	if res.Ghost.Remaining != 10 {
		t.Errorf("ghost remaining = %v, want 10", res.Ghost.Remaining)
	}
}

func TestSettingsUpdateReachesEngine(t *testing.T) {
	h := newTestServer(t)

	var current settings.Settings
	decode(t, h.get(t, "/api/settings"), &current)
	if current.TrackRest {
		t.Fatal("trackRest defaulted on")
	}

	req, err := http.NewRequest(http.MethodPut, h.srv.URL+"/api/settings",
		bytes.NewReader([]byte(`{"key":"trackRest","value":true}`)))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	decode(t, resp, &current)
	if !current.TrackRest {
		t.Error("trackRest not set in response")
	}

	if snap := h.engine.Snapshot(); !snap.TrackRest {
		t.Error("trackRest did not reach the engine")
	}
}

func TestSettingsRejectsUnknownKey(t *testing.T) {
	h := newTestServer(t)

	req, err := http.NewRequest(http.MethodPut, h.srv.URL+"/api/settings",
		bytes.NewReader([]byte(`{"key":"bogus","value":true}`)))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestShellServedWhileOriginDown(t *testing.T) {
	h := newTestServer(t)
	h.origin.Close()

	resp := h.get(t, "/style.css")
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body bytes.Buffer
	if _, err := body.ReadFrom(resp.Body); err != nil {
		t.Fatal(err)
	}
	if body.String() != "origin:/style.css" {
		t.Errorf("body = %q, want cached origin copy", body.String())
	}
}

func TestFinishPushesTerminalFrameToWebsocket(t *testing.T) {
	h := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(h.srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	defer func() { _ = conn.Close() }()

	decode(t, h.post(t, "/api/tap", ""), &tapResponse{})
	resp := h.post(t, "/api/finish", "")
	_ = resp.Body.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var update feed.Update
	if err := conn.ReadJSON(&update); err != nil {
		t.Fatalf("read websocket frame: %v", err)
	}
	if update.Split != feed.TerminalLabel || !update.Finished {
		t.Errorf("terminal frame = %+v", update)
	}
}

func TestHealthEndpoint(t *testing.T) {
	h := newTestServer(t)

	resp := h.get(t, "/health")
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}
