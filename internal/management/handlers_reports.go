package management

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/grixate/missioncontrol/internal/apperr"
	"github.com/grixate/missioncontrol/internal/reports"
)

func (s *Server) handleReportGenerate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		StartDate string `json:"startDate"`
		EndDate   string `json:"endDate"`
	}
	if err := readJSON(r.Body, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	generated, err := s.reports.Generate(r.Context(), strings.TrimSpace(req.StartDate), strings.TrimSpace(req.EndDate))
	if err != nil {
		s.writeManageError(w, r, err)
		return
	}
	s.notifications.Notify(r.Context(), "report", "Report ready",
		fmt.Sprintf("Usage report for %s to %s is shareable until %s.", req.StartDate, req.EndDate, generated.ExpiresAt.Format("2006-01-02")))
	writeJSON(w, http.StatusOK, generated)
}

// handleReportShared is public: the token is the credential.
func (s *Server) handleReportShared(w http.ResponseWriter, r *http.Request) {
	payload, err := s.reports.Get(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		s.writeManageError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleReportExport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	token := strings.TrimSpace(q.Get("token"))
	if token == "" {
		s.writeManageError(w, r, apperr.Invalid("token is required"))
		return
	}
	format, err := reports.ParseFormat(q.Get("format"))
	if err != nil {
		s.writeManageError(w, r, err)
		return
	}
	payload, err := s.reports.Get(r.Context(), token)
	if err != nil {
		s.writeManageError(w, r, err)
		return
	}
	data, err := s.exporter.Export(r.Context(), payload, format)
	if err != nil {
		s.logger.Warn("report export failed", zap.String("format", string(format)), zap.Error(err))
		s.writeManageError(w, r, err)
		return
	}
	s.metrics.ReportsExported.Add(1)
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", format.Filename(payload)))
	w.Header().Set("Content-Length", fmt.Sprint(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
