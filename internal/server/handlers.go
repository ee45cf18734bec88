package server

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/goodtune/paceclock/internal/engine"
)

type tapResponse struct {
	Accepted bool             `json:"accepted"`
	Started  bool             `json:"started"`
	Mode     engine.Mode      `json:"mode"`
	Recorded *engine.Interval `json:"recorded,omitempty"`
	Ghost    *engine.Ghost    `json:"ghost,omitempty"`
}

func (s *Server) handleTap(w http.ResponseWriter, r *http.Request) {
	res := s.engine.RecordTap()
	if res.Started {
		s.feed.Start()
	}
	writeJSON(w, http.StatusOK, tapResponse{
		Accepted: res.Accepted,
		Started:  res.Started,
		Mode:     res.Mode,
		Recorded: res.Recorded,
		Ghost:    res.Ghost,
	})
}

func (s *Server) handleFinish(w http.ResponseWriter, r *http.Request) {
	s.engine.Finish()
	s.feed.Stop()
	writeJSON(w, http.StatusOK, map[string]bool{"finished": true})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.engine.Reset()
	s.settings.Sync()
	s.feed.Reset()
	writeJSON(w, http.StatusOK, map[string]bool{"reset": true})
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Snapshot())
}

func (s *Server) handleIntervals(w http.ResponseWriter, r *http.Request) {
	snap := s.engine.Snapshot()
	writeJSON(w, http.StatusOK, snap.Intervals)
}

type ghostResponse struct {
	Ghost engine.Ghost `json:"ghost"`
	Now   int64        `json:"now"`
}

func (s *Server) handleGhost(w http.ResponseWriter, r *http.Request) {
	ghost, now := s.engine.PredictGhost()
	writeJSON(w, http.StatusOK, ghostResponse{Ghost: ghost, Now: now.UnixMilli()})
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.settings.Current())
}

type settingsUpdate struct {
	Key   string `json:"key"`
	Value bool   `json:"value"`
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var update settingsUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	current, err := s.settings.Set(r.Context(), update.Key, update.Value)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, current)
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(data); err != nil {
		http.Error(w, `{"error":"Internal Server Error","message":"Failed to encode response"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_, _ = w.Write(buf.Bytes())
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	})
}

// ErrorResponse is the standard error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}
