package management

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/grixate/missioncontrol/internal/activity"
	"github.com/grixate/missioncontrol/internal/agentconfig"
	"github.com/grixate/missioncontrol/internal/apperr"
	"github.com/grixate/missioncontrol/internal/auth"
	"github.com/grixate/missioncontrol/internal/config"
	"github.com/grixate/missioncontrol/internal/notifications"
	"github.com/grixate/missioncontrol/internal/openclaw"
	"github.com/grixate/missioncontrol/internal/playground"
	"github.com/grixate/missioncontrol/internal/ratelimit"
	"github.com/grixate/missioncontrol/internal/reports"
	"github.com/grixate/missioncontrol/internal/skills"
	"github.com/grixate/missioncontrol/internal/suggestions"
	"github.com/grixate/missioncontrol/internal/telemetry"
	"github.com/grixate/missioncontrol/internal/usage"
	"github.com/grixate/missioncontrol/internal/workflows"
	"github.com/grixate/missioncontrol/internal/workspace"
)

const (
	sessionCookieName = "missioncontrol_session"
	maxJSONBody       = 1 << 20
	shutdownTimeout   = 5 * time.Second
)

// AgentSource is the read side of the openclaw CLI.
type AgentSource interface {
	Sessions(ctx context.Context) []openclaw.Session
	CronJobs(ctx context.Context) []openclaw.CronJob
	Agents(ctx context.Context) []openclaw.Agent
	Status(ctx context.Context) map[string]any
}

type Options struct {
	Logger   *zap.Logger
	Metrics  *telemetry.Metrics
	Registry *telemetry.Registry
	Now      func() time.Time

	Agents        AgentSource
	Activity      *activity.Service
	Usage         *usage.Service
	Suggestions   *suggestions.Service
	AgentConfig   *agentconfig.Service
	Reports       *reports.Service
	Exporter      reports.Exporter
	Workflows     *workflows.Store
	Notifications *notifications.Store
	Skills        *skills.Service
	Files         *workspace.Service
	Playground    *playground.Service

	// Optional; built from cfg.Auth and cfg.Playground when nil.
	Sessions *auth.Sessions
	Login    *ratelimit.LoginLimiter
	Throttle *ratelimit.Throttle
}

type Server struct {
	cfg      config.Config
	logger   *zap.Logger
	metrics  *telemetry.Metrics
	registry *telemetry.Registry
	now      func() time.Time

	agents        AgentSource
	activity      *activity.Service
	usage         *usage.Service
	suggestions   *suggestions.Service
	agentConfig   *agentconfig.Service
	reports       *reports.Service
	exporter      reports.Exporter
	workflows     *workflows.Store
	notifications *notifications.Store
	skills        *skills.Service
	files         *workspace.Service
	playground    *playground.Service

	authEnabled bool
	sessions    *auth.Sessions
	login       *ratelimit.LoginLimiter
	throttle    *ratelimit.Throttle
	startedAt   time.Time
}

func NewServer(cfg config.Config, opts Options) (*Server, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	missing := make([]string, 0)
	for name, ok := range map[string]bool{
		"agents":        opts.Agents != nil,
		"activity":      opts.Activity != nil,
		"usage":         opts.Usage != nil,
		"suggestions":   opts.Suggestions != nil,
		"agent config":  opts.AgentConfig != nil,
		"reports":       opts.Reports != nil,
		"workflows":     opts.Workflows != nil,
		"notifications": opts.Notifications != nil,
		"skills":        opts.Skills != nil,
		"files":         opts.Files != nil,
		"playground":    opts.Playground != nil,
	} {
		if !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("management server missing services: %s", strings.Join(missing, ", "))
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = &telemetry.Metrics{}
	}
	registry := opts.Registry
	if registry == nil {
		registry = telemetry.NewRegistry(metrics)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	sessions := opts.Sessions
	if sessions == nil {
		sessions = auth.NewSessions(cfg.Auth.SessionIdleTTL.Duration, cfg.Auth.SessionMaxTTL.Duration, now)
	}
	login := opts.Login
	if login == nil {
		login = ratelimit.NewLoginLimiter(cfg.Auth.LoginMaxFailures, cfg.Auth.LoginWindow.Duration, cfg.Auth.LoginLockout.Duration, now)
	}
	throttle := opts.Throttle
	if throttle == nil {
		throttle = ratelimit.NewThrottle(int(math.Ceil(cfg.Playground.RunsPerMinute)), cfg.Playground.Burst, now)
	}

	s := &Server{
		cfg:           cfg,
		logger:        logger,
		metrics:       metrics,
		registry:      registry,
		now:           now,
		agents:        opts.Agents,
		activity:      opts.Activity,
		usage:         opts.Usage,
		suggestions:   opts.Suggestions,
		agentConfig:   opts.AgentConfig,
		reports:       opts.Reports,
		exporter:      opts.Exporter,
		workflows:     opts.Workflows,
		notifications: opts.Notifications,
		skills:        opts.Skills,
		files:         opts.Files,
		playground:    opts.Playground,
		authEnabled:   strings.TrimSpace(cfg.Auth.PasswordHash) != "",
		sessions:      sessions,
		login:         login,
		throttle:      throttle,
		startedAt:     now(),
	}
	if !s.authEnabled {
		logger.Warn("no password configured; dashboard authentication is disabled")
	}
	return s, nil
}

// Sweepers returns the in-memory tables that need periodic eviction.
func (s *Server) Sweepers() []ratelimit.Sweeper {
	return []ratelimit.Sweeper{s.login, s.throttle, s.sessions}
}

func (s *Server) Addr() string {
	return net.JoinHostPort(s.cfg.Server.Host, fmt.Sprint(s.cfg.Server.Port))
}

func (s *Server) LocalBaseURL() string {
	host := strings.TrimSpace(s.cfg.Server.Host)
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, fmt.Sprint(s.cfg.Server.Port))
}

func (s *Server) Start(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.Addr(),
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("management server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("management server shutdown", zap.Error(err))
		}
		<-errCh
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.observe)

	r.Method(http.MethodGet, "/metrics", s.registry.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(withJSON)

		r.Get("/health", s.handleHealth)
		r.Post("/auth/login", s.handleAuthLogin)
		r.Post("/auth/logout", s.handleAuthLogout)
		r.Get("/auth/session", s.handleAuthSession)
		r.Get("/reports/shared/{token}", s.handleReportShared)
		r.Get("/reports/export", s.handleReportExport)

		r.Group(func(r chi.Router) {
			r.Use(s.requireSession)

			r.Get("/costs", s.handleCosts)
			r.Get("/config", s.handleConfigGet)
			r.Patch("/config", s.handleConfigPatch)
			r.Get("/suggestions", s.handleSuggestions)
			r.Post("/suggestions/dismiss", s.handleSuggestionDismiss)
			r.Post("/reports/generate", s.handleReportGenerate)

			r.Get("/sessions", s.handleSessions)
			r.Get("/cron", s.handleCron)
			r.Get("/agents", s.handleAgents)
			r.Get("/activity", s.handleActivity)
			r.Get("/activity/stats", s.handleActivityStats)

			r.Route("/workflows", func(r chi.Router) {
				r.Get("/", s.handleWorkflowList)
				r.Post("/", s.handleWorkflowCreate)
				r.Get("/{id}", s.handleWorkflowGet)
				r.Put("/{id}", s.handleWorkflowUpdate)
				r.Delete("/{id}", s.handleWorkflowDelete)
				r.Post("/{id}/run", s.handleWorkflowRun)
			})

			r.Route("/files", func(r chi.Router) {
				r.Get("/tree", s.handleFileTree)
				r.Get("/content", s.handleFileRead)
				r.Put("/content", s.handleFileWrite)
				r.Delete("/content", s.handleFileDelete)
				r.Post("/rename", s.handleFileRename)
				r.Post("/mkdir", s.handleFileMkdir)
				r.Post("/upload", s.handleFileUpload)
				r.Get("/download", s.handleFileDownload)
			})

			r.Get("/skills", s.handleSkills)
			r.Post("/skills/{name}/toggle", s.handleSkillToggle)

			r.Get("/notifications", s.handleNotifications)
			r.Post("/notifications/read", s.handleNotificationsRead)
			r.Delete("/notifications/{id}", s.handleNotificationDelete)

			r.Route("/playground", func(r chi.Router) {
				r.Get("/experiments", s.handleExperimentList)
				r.Post("/experiments", s.handleExperimentCreate)
				r.Get("/experiments/{id}", s.handleExperimentGet)
				r.Delete("/experiments/{id}", s.handleExperimentDelete)
				r.Post("/run", s.handlePlaygroundRun)
			})
		})
	})

	r.NotFound(s.handleUI)
	return r
}

// observe counts requests and records latency by route pattern.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := s.now()
		s.metrics.HTTPRequests.Add(1)
		s.metrics.ActiveRequests.Add(1)
		defer s.metrics.ActiveRequests.Add(-1)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		if status >= http.StatusInternalServerError {
			s.metrics.HTTPErrors.Add(1)
		}
		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		elapsed := s.now().Sub(start)
		s.registry.RequestDuration.WithLabelValues(route, fmt.Sprintf("%dxx", status/100)).Observe(elapsed.Seconds())
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Duration("duration", elapsed),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":        true,
		"startedAt": s.startedAt.UTC().Format(time.RFC3339),
		"uptime":    s.now().Sub(s.startedAt).Round(time.Second).String(),
		"auth":      s.authEnabled,
	})
}

// writeManageError maps error kinds to statuses. Unclassified errors are
// logged and hidden from the client.
func (s *Server) writeManageError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case err == nil:
		http.Error(w, "request failed", http.StatusInternalServerError)
	case errors.Is(err, apperr.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, apperr.ErrForbidden):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, apperr.ErrInvalid):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, apperr.ErrNotImplemented):
		http.Error(w, err.Error(), http.StatusNotImplemented)
	default:
		s.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func withJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

func readJSON(body io.Reader, out any) error {
	dec := json.NewDecoder(io.LimitReader(body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeRetryAfter(w http.ResponseWriter, wait time.Duration, message string) {
	seconds := int(math.Ceil(wait.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	w.Header().Set("Retry-After", fmt.Sprint(seconds))
	http.Error(w, message, http.StatusTooManyRequests)
}

// clientIP keys limiters on the connection address. Forwarding headers are
// client controlled and are ignored.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
