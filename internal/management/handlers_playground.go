package management

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/grixate/missioncontrol/internal/playground"
)

func (s *Server) handleExperimentList(w http.ResponseWriter, r *http.Request) {
	items, err := s.playground.List(r.Context())
	if err != nil {
		s.writeManageError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"experiments": items})
}

func (s *Server) handleExperimentCreate(w http.ResponseWriter, r *http.Request) {
	var in playground.ExperimentInput
	if err := readJSON(r.Body, &in); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	exp, err := s.playground.Create(r.Context(), in)
	if err != nil {
		s.writeManageError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, exp)
}

func (s *Server) handleExperimentGet(w http.ResponseWriter, r *http.Request) {
	exp, err := s.playground.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeManageError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, exp)
}

func (s *Server) handleExperimentDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.playground.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeManageError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handlePlaygroundRun is throttled per client IP since each run spends
// provider credit.
func (s *Server) handlePlaygroundRun(w http.ResponseWriter, r *http.Request) {
	if ok, wait := s.throttle.Allow(clientIP(r)); !ok {
		writeRetryAfter(w, wait, "playground rate limit exceeded")
		return
	}
	var req playground.RunRequest
	if err := readJSON(r.Body, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	results, err := s.playground.Run(r.Context(), req)
	if err != nil {
		s.writeManageError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}
