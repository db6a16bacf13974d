package apiserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"

	"auspex/internal/correlate"
	"auspex/internal/facts"
	"auspex/internal/pipeline"
)

// analyzeRequest is the POST /v1/analyze body. An empty body means an
// unscoped, unforced run.
type analyzeRequest struct {
	Hosts []string `json:"hosts"`
	Force bool     `json:"force"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": s.version,
	})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	body := http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body: "+err.Error())
		return
	}

	res, err := s.runner.Run(r.Context(), pipeline.Options{Hosts: req.Hosts, Force: req.Force})
	switch {
	case errors.Is(err, pipeline.ErrBusy):
		writeError(w, http.StatusConflict, "RUN_IN_PROGRESS", pipeline.ErrBusy.Error())
	case err != nil:
		writeError(w, http.StatusInternalServerError, "RUN_FAILED", err.Error())
	default:
		writeJSON(w, http.StatusOK, res)
	}
}

func (s *Server) handleFacts(w http.ResponseWriter, r *http.Request) {
	host := r.PathValue("host")
	doc, err := facts.Load(s.paths, host)
	switch {
	case errors.Is(err, os.ErrNotExist):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "no facts for host "+host)
	case err != nil:
		writeError(w, http.StatusInternalServerError, "INTERNAL", err.Error())
	default:
		writeJSON(w, http.StatusOK, doc)
	}
}

func (s *Server) handleReport(w http.ResponseWriter, _ *http.Request) {
	doc, err := correlate.Load(s.paths)
	switch {
	case errors.Is(err, os.ErrNotExist):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "no network report; run an analysis first")
	case err != nil:
		writeError(w, http.StatusInternalServerError, "INTERNAL", err.Error())
	default:
		writeJSON(w, http.StatusOK, doc)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{
		"error":   code,
		"message": message,
	})
}
