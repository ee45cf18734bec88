package web

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHandlerServesShellAssets(t *testing.T) {
	handler := Handler()

	for _, path := range Manifest() {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, rec.Code)
		}
		if rec.Body.Len() == 0 {
			t.Errorf("GET %s returned an empty body", path)
		}
	}
}

func TestHandlerRootServesDocument(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, req)

	if ctype := rec.Header().Get("Content-Type"); !strings.HasPrefix(ctype, "text/html") {
		t.Errorf("root content type = %q", ctype)
	}
	if !strings.Contains(rec.Body.String(), "<canvas") {
		t.Error("root document is missing the clock face")
	}
}

func TestHandlerUnknownPath(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/nope.png", nil)
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestClientAnswersInProcess(t *testing.T) {
	client := NewClient()

	resp, err := client.Get(DefaultOrigin + "/app.js")
	if err != nil {
		t.Fatalf("get app.js: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ctype := resp.Header.Get("Content-Type"); !strings.HasPrefix(ctype, "text/javascript") {
		t.Errorf("content type = %q", ctype)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if len(body) == 0 {
		t.Error("empty body")
	}
}

func TestClientMissingAsset(t *testing.T) {
	client := NewClient()

	resp, err := client.Get(DefaultOrigin + "/missing.css")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}
