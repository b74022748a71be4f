package management

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/grixate/missioncontrol/internal/activity"
	"github.com/grixate/missioncontrol/internal/apperr"
	"github.com/grixate/missioncontrol/internal/usage"
)

const defaultStatsWindow = 7 * 24 * time.Hour

func (s *Server) handleCosts(w http.ResponseWriter, r *http.Request) {
	days, err := usage.ParseTimeframe(r.URL.Query().Get("timeframe"))
	if err != nil {
		s.writeManageError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.usage.Summary(r.Context(), days))
}

func (s *Server) handleConfigGet(w http.ResponseWriter, r *http.Request) {
	doc, err := s.agentConfig.Read(r.Context())
	if err != nil {
		s.writeManageError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"path":   s.agentConfig.Path(),
		"config": doc,
	})
}

func (s *Server) handleConfigPatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Updates map[string]any `json:"updates"`
	}
	// Numbers stay json.Number so large integers survive the round trip.
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	result, err := s.agentConfig.Patch(r.Context(), req.Updates)
	if err != nil {
		s.writeManageError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"suggestions": s.suggestions.List(r.Context()),
	})
}

func (s *Server) handleSuggestionDismiss(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SuggestionID string `json:"suggestionId"`
		Applied      bool   `json:"applied"`
	}
	if err := readJSON(r.Body, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.suggestions.Dismiss(r.Context(), req.SuggestionID, req.Applied); err != nil {
		s.writeManageError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"sessions": s.agents.Sessions(r.Context())})
}

func (s *Server) handleCron(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"jobs": s.agents.CronJobs(r.Context())})
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"agents": s.agents.Agents(r.Context()),
		"status": s.agents.Status(r.Context()),
	})
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := activity.Filter{
		Type:   strings.TrimSpace(q.Get("type")),
		Status: activity.Status(strings.TrimSpace(q.Get("status"))),
		Agent:  strings.TrimSpace(q.Get("agent")),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		s.writeManageError(w, r, apperr.Invalid("unknown status %q", filter.Status))
		return
	}
	var err error
	if filter.Since, err = parseTimeParam(q.Get("since")); err != nil {
		s.writeManageError(w, r, err)
		return
	}
	if filter.Until, err = parseTimeParam(q.Get("until")); err != nil {
		s.writeManageError(w, r, err)
		return
	}
	if raw := q.Get("limit"); raw != "" {
		if filter.Limit, err = strconv.Atoi(raw); err != nil || filter.Limit < 0 {
			s.writeManageError(w, r, apperr.Invalid("invalid limit %q", raw))
			return
		}
	}
	items, err := s.activity.List(r.Context(), filter)
	if err != nil {
		s.writeManageError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"activities": items})
}

func (s *Server) handleActivityStats(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	until, err := parseTimeParam(q.Get("until"))
	if err != nil {
		s.writeManageError(w, r, err)
		return
	}
	if until.IsZero() {
		until = s.now()
	}
	since, err := parseTimeParam(q.Get("since"))
	if err != nil {
		s.writeManageError(w, r, err)
		return
	}
	if since.IsZero() {
		since = until.Add(-defaultStatsWindow)
	}
	stats, err := s.activity.Stats(r.Context(), since, until)
	if err != nil {
		s.writeManageError(w, r, err)
		return
	}
	hourly, err := s.activity.HourlyHistogram(r.Context(), since)
	if err != nil {
		s.writeManageError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"since":  since.UTC().Format(time.RFC3339),
		"until":  until.UTC().Format(time.RFC3339),
		"stats":  stats,
		"hourly": hourly,
	})
}

func (s *Server) handleSkills(w http.ResponseWriter, r *http.Request) {
	list, err := s.skills.List(r.Context())
	if err != nil {
		s.writeManageError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"skills": list})
}

func (s *Server) handleSkillToggle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := readJSON(r.Body, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	skill, err := s.skills.Toggle(r.Context(), chi.URLParam(r, "name"), req.Enabled)
	if err != nil {
		s.writeManageError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, skill)
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		var err error
		if limit, err = strconv.Atoi(raw); err != nil || limit < 0 {
			s.writeManageError(w, r, apperr.Invalid("invalid limit %q", raw))
			return
		}
	}
	items, unread, err := s.notifications.List(r.Context(), limit)
	if err != nil {
		s.writeManageError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"notifications": items,
		"unread":        unread,
	})
}

func (s *Server) handleNotificationsRead(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID  string `json:"id"`
		All bool   `json:"all"`
	}
	if err := readJSON(r.Body, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	switch {
	case req.All:
		n, err := s.notifications.MarkAllRead(r.Context())
		if err != nil {
			s.writeManageError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "updated": n})
	case strings.TrimSpace(req.ID) != "":
		if err := s.notifications.MarkRead(r.Context(), strings.TrimSpace(req.ID)); err != nil {
			s.writeManageError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "updated": 1})
	default:
		s.writeManageError(w, r, apperr.Invalid("id or all is required"))
	}
}

func (s *Server) handleNotificationDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.notifications.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeManageError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// parseTimeParam accepts RFC 3339 timestamps or YYYY-MM-DD dates (UTC
// midnight). Empty input is the zero time.
func parseTimeParam(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}
	return time.Time{}, apperr.Invalid("invalid time %q", raw)
}
