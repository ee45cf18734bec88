package web

import (
	"bytes"
	"embed"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"path"
	"strings"
)

// Embed the application shell assets
//
//go:embed shell
var shellFS embed.FS

// DefaultOrigin is the placeholder origin URL for the embedded shell. It
// never resolves on the network; requests to it are answered in-process by
// the transport from NewClient.
const DefaultOrigin = "http://paceclock.internal"

// Manifest lists the embedded shell asset paths.
func Manifest() []string {
	return []string{"/", "/index.html", "/style.css", "/app.js", "/manifest.webmanifest"}
}

// readAsset resolves a request path to an embedded shell asset.
func readAsset(requestPath string) ([]byte, string, error) {
	p := path.Clean(requestPath)
	if p == "/" || p == "." {
		p = "/index.html"
	}

	data, err := fs.ReadFile(shellFS, path.Join("shell", strings.TrimPrefix(p, "/")))
	if err != nil {
		return nil, "", err
	}
	return data, contentType(p), nil
}

func contentType(p string) string {
	switch path.Ext(p) {
	case ".html":
		return "text/html; charset=utf-8"
	case ".css":
		return "text/css; charset=utf-8"
	case ".js":
		return "text/javascript; charset=utf-8"
	case ".webmanifest":
		return "application/manifest+json"
	case ".svg":
		return "image/svg+xml"
	default:
		return "application/octet-stream"
	}
}

// Handler serves the embedded shell assets directly.
func Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, ctype, err := readAsset(r.URL.Path)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", ctype)
		_, _ = w.Write(data)
	})
}

// NewClient returns an HTTP client whose transport answers every request
// from the embedded shell, so the cache controller can install without a
// network origin.
func NewClient() *http.Client {
	return &http.Client{Transport: &shellTransport{}}
}

type shellTransport struct{}

func (t *shellTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodGet {
		return response(req, http.StatusMethodNotAllowed, "", nil), nil
	}

	data, ctype, err := readAsset(req.URL.Path)
	if err != nil {
		return response(req, http.StatusNotFound, "", nil), nil
	}
	return response(req, http.StatusOK, ctype, data), nil
}

func response(req *http.Request, statusCode int, ctype string, body []byte) *http.Response {
	header := make(http.Header)
	if ctype != "" {
		header.Set("Content-Type", ctype)
	}
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", statusCode, http.StatusText(statusCode)),
		StatusCode:    statusCode,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}
}
