package api

import (
	"encoding/json"
	"net/http"

	"teraext/internal"
)

type extractRequest struct {
	URL     string `json:"url"`
	Backend string `json:"backend,omitempty"`
}

type linksRequest struct {
	FsID    string               `json:"fs_id"`
	Backend string               `json:"backend,omitempty"`
	Auth    *internal.AuthBundle `json:"auth"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// parseBackend resolves the optional backend field; empty selects scrape.
func parseBackend(name string) (internal.Backend, error) {
	return internal.ParseBackend(name)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleExtract resolves a share URL to its file tree. Extraction failures
// still return 200 with a failed result body; only malformed requests are
// HTTP errors.
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	var req extractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	backend, err := parseBackend(req.Backend)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result := s.service.Extract(req.URL, backend)
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleLinks(w http.ResponseWriter, r *http.Request) {
	var req linksRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.FsID == "" {
		writeError(w, http.StatusBadRequest, "fs_id is required")
		return
	}
	if req.Auth == nil {
		writeError(w, http.StatusBadRequest, "auth is required")
		return
	}
	backend, err := parseBackend(req.Backend)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	links := s.service.GenerateLinks(req.FsID, req.Auth, backend)
	writeJSON(w, http.StatusOK, links)
}

func (s *Server) handleCacheSweep(w http.ResponseWriter, r *http.Request) {
	if s.cache == nil {
		writeError(w, http.StatusNotFound, "cache is not configured")
		return
	}
	removed := s.cache.SweepExpired()
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	if s.cache == nil {
		writeError(w, http.StatusNotFound, "cache is not configured")
		return
	}
	removed := s.cache.Clear()
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}
