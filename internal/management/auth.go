package management

import (
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/grixate/missioncontrol/internal/auth"
)

func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.authEnabled {
			next.ServeHTTP(w, r)
			return
		}
		if _, ok := s.sessionFromRequest(r); !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) sessionFromRequest(r *http.Request) (auth.Session, bool) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return auth.Session{}, false
	}
	return s.sessions.Touch(strings.TrimSpace(cookie.Value))
}

func (s *Server) handleAuthLogin(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r)
	if ok, wait := s.login.Check(ip); !ok {
		writeRetryAfter(w, wait, "too many failed login attempts")
		return
	}

	var req struct {
		Password string `json:"password"`
	}
	if err := readJSON(r.Body, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !s.authEnabled {
		http.Error(w, "authentication is not configured", http.StatusConflict)
		return
	}
	if !auth.VerifyPassword(req.Password, s.cfg.Auth.PasswordHash) {
		s.metrics.LoginFailures.Add(1)
		if locked, lockout := s.login.Fail(ip); locked {
			s.metrics.LoginLockouts.Add(1)
			s.logger.Warn("login locked out", zap.String("ip", ip), zap.Duration("lockout", lockout))
			writeRetryAfter(w, lockout, "too many failed login attempts")
			return
		}
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	s.login.Succeed(ip)

	rec, err := s.sessions.Create()
	if err != nil {
		http.Error(w, "failed to create session", http.StatusInternalServerError)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    rec.ID,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
		Path:     "/",
		MaxAge:   int(s.sessions.MaxTTL().Seconds()),
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":        true,
		"expiresAt": s.sessions.ExpiresAt(rec).Format(time.RFC3339),
	})
}

func (s *Server) handleAuthLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		s.sessions.Revoke(strings.TrimSpace(cookie.Value))
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Path:     "/",
		MaxAge:   -1,
	})
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleAuthSession(w http.ResponseWriter, r *http.Request) {
	authenticated := !s.authEnabled
	expiresAt := ""
	if rec, ok := s.sessionFromRequest(r); ok {
		authenticated = true
		expiresAt = s.sessions.ExpiresAt(rec).Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"authenticated": authenticated,
		"authRequired":  s.authEnabled,
		"expiresAt":     expiresAt,
	})
}
