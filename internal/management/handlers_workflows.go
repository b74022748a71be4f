package management

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/grixate/missioncontrol/internal/activity"
	"github.com/grixate/missioncontrol/internal/workflows"
)

func (s *Server) handleWorkflowList(w http.ResponseWriter, r *http.Request) {
	items, err := s.workflows.List(r.Context())
	if err != nil {
		s.writeManageError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"workflows": items})
}

func (s *Server) handleWorkflowCreate(w http.ResponseWriter, r *http.Request) {
	var in workflows.Input
	if err := readJSON(r.Body, &in); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	wf, err := s.workflows.Create(r.Context(), in)
	if err != nil {
		s.writeManageError(w, r, err)
		return
	}
	s.recordWorkflow(r, "Created workflow "+wf.Name, wf.ID)
	writeJSON(w, http.StatusCreated, wf)
}

func (s *Server) handleWorkflowGet(w http.ResponseWriter, r *http.Request) {
	wf, err := s.workflows.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeManageError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wf)
}

func (s *Server) handleWorkflowUpdate(w http.ResponseWriter, r *http.Request) {
	var in workflows.Input
	if err := readJSON(r.Body, &in); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	wf, err := s.workflows.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		s.writeManageError(w, r, err)
		return
	}
	s.recordWorkflow(r, "Updated workflow "+wf.Name, wf.ID)
	writeJSON(w, http.StatusOK, wf)
}

func (s *Server) handleWorkflowDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	deleted, err := s.workflows.Delete(r.Context(), id)
	if err != nil {
		s.writeManageError(w, r, err)
		return
	}
	if !deleted {
		s.writeManageError(w, r, workflows.ErrNotFound)
		return
	}
	s.recordWorkflow(r, "Deleted workflow "+id, id)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleWorkflowRun(w http.ResponseWriter, r *http.Request) {
	s.writeManageError(w, r, s.workflows.Run(r.Context(), chi.URLParam(r, "id")))
}

func (s *Server) recordWorkflow(r *http.Request, description, id string) {
	s.activity.Record(r.Context(), activity.Activity{
		Type:        activity.TypeWorkflow,
		Description: description,
		Metadata:    map[string]any{"workflowId": id},
	})
}
