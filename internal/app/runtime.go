// Package app assembles the dashboard's services from config.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/grixate/missioncontrol/internal/activity"
	"github.com/grixate/missioncontrol/internal/agentconfig"
	"github.com/grixate/missioncontrol/internal/auth"
	"github.com/grixate/missioncontrol/internal/config"
	"github.com/grixate/missioncontrol/internal/management"
	"github.com/grixate/missioncontrol/internal/notifications"
	"github.com/grixate/missioncontrol/internal/openclaw"
	"github.com/grixate/missioncontrol/internal/playground"
	"github.com/grixate/missioncontrol/internal/pricing"
	"github.com/grixate/missioncontrol/internal/provider"
	"github.com/grixate/missioncontrol/internal/ratelimit"
	"github.com/grixate/missioncontrol/internal/reports"
	"github.com/grixate/missioncontrol/internal/skills"
	boltstore "github.com/grixate/missioncontrol/internal/storage/bbolt"
	"github.com/grixate/missioncontrol/internal/storage/sqlite"
	"github.com/grixate/missioncontrol/internal/suggestions"
	"github.com/grixate/missioncontrol/internal/telemetry"
	"github.com/grixate/missioncontrol/internal/usage"
	"github.com/grixate/missioncontrol/internal/workflows"
	"github.com/grixate/missioncontrol/internal/workspace"
)

const sweepInterval = time.Minute

type Runtime struct {
	Config   config.Config
	Logger   *zap.Logger
	Metrics  *telemetry.Metrics
	Registry *telemetry.Registry

	OpenClaw      *openclaw.Client
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

	closers []io.Closer
}

// BuildRuntime opens the activity log and wires every service. SQLite
// databases are opened lazily on first use.
func BuildRuntime(cfg config.Config, logger *zap.Logger) (*Runtime, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	if err := config.EnsureFilesystem(cfg); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.Auth.PasswordHash) == "" && strings.TrimSpace(cfg.Auth.Password) != "" {
		hash, err := auth.HashPassword(cfg.Auth.Password)
		if err != nil {
			return nil, fmt.Errorf("hash MISSION_CONTROL_PASSWORD: %w", err)
		}
		cfg.Auth.PasswordHash = hash
		cfg.Auth.Password = ""
	}

	metrics := &telemetry.Metrics{}
	rt := &Runtime{
		Config:   cfg,
		Logger:   logger,
		Metrics:  metrics,
		Registry: telemetry.NewRegistry(metrics),
	}

	bolt, err := boltstore.Open(config.ActivityDBPath(cfg))
	if err != nil {
		return nil, fmt.Errorf("open activity log: %w", err)
	}
	rt.closers = append(rt.closers, bolt)
	rt.Activity = activity.NewService(bolt, logger.Named("activity"))

	runner := openclaw.NewRunner(openclaw.RunnerOptions{
		Binary:   cfg.OpenClaw.Binary,
		Timeout:  cfg.OpenClaw.CLITimeout.Duration,
		CacheTTL: cfg.OpenClaw.CacheTTL.Duration,
		Metrics:  metrics,
		Logger:   logger.Named("openclaw"),
	})
	rt.OpenClaw = openclaw.NewClient(runner, pricing.NewCalculator(logger), logger.Named("openclaw"))

	usageStore := sqlite.NewUsageStore(config.DataFile(cfg, config.UsageTrackingDB))
	dismissals := sqlite.NewDismissalStore(config.DataFile(cfg, config.SuggestionsDB))
	reportStore := sqlite.NewReportStore(config.DataFile(cfg, config.SharedReportsDB))
	experiments := sqlite.NewExperimentStore(config.DataFile(cfg, config.PlaygroundDB))
	rt.closers = append(rt.closers, usageStore, dismissals, reportStore, experiments)

	rt.Usage = usage.NewService(usageStore, rt.OpenClaw, logger.Named("usage"))
	rt.Suggestions = suggestions.NewService(suggestions.ServiceOptions{
		Costs:      rt.Usage,
		Agents:     rt.OpenClaw,
		Activity:   rt.Activity,
		Dismissals: dismissals,
		Metrics:    metrics,
		Logger:     logger.Named("suggestions"),
	})

	rt.Notifications = notifications.NewStore(config.DataFile(cfg, config.NotificationsFile), logger.Named("notifications"))
	rt.AgentConfig = agentconfig.NewService(agentconfig.Options{
		Path:     config.AgentConfigPath(cfg),
		Activity: rt.Activity,
		Notifier: rt.Notifications,
		Metrics:  metrics,
		Logger:   logger.Named("agentconfig"),
		OnChange: runner.Invalidate,
	})

	rt.Reports = reports.NewService(reports.ServiceOptions{
		Store:         reportStore,
		Activity:      rt.Activity,
		Usage:         rt.Usage,
		ExpiresInDays: cfg.Reports.ExpiresInDays,
		Metrics:       metrics,
		Logger:        logger.Named("reports"),
	})
	rt.Exporter = reports.Exporter{PDF: reports.PDFRenderer{
		ChromePath: cfg.Reports.ChromePath,
		Timeout:    cfg.Reports.PDFTimeout.Duration,
	}}

	rt.Workflows = workflows.NewStore(config.DataFile(cfg, config.WorkflowsFile), logger.Named("workflows"))

	workspaceRoot := config.WorkspacePath(cfg)
	rt.Skills = skills.NewService([]skills.Root{
		{Dir: filepath.Join(workspaceRoot, "skills"), Source: skills.SourceWorkspace},
		{Dir: filepath.Join(config.OpenClawHome(), "skills"), Source: skills.SourceManaged},
	}, config.DataFile(cfg, config.DisabledSkillsFile), rt.Activity, logger.Named("skills"))

	policy, err := workspace.NewPolicy(workspaceRoot)
	if err != nil {
		_ = rt.Shutdown()
		return nil, fmt.Errorf("workspace policy: %w", err)
	}
	rt.Files = workspace.NewService(policy, rt.Activity, metrics, logger.Named("files"))

	rt.Playground = playground.NewService(playground.Options{
		Store:         experiments,
		Chat:          provider.FromConfig(cfg.Providers, &http.Client{}),
		Activity:      rt.Activity,
		Metrics:       metrics,
		Logger:        logger.Named("playground"),
		Timeout:       cfg.Playground.Timeout.Duration,
		MaxConcurrent: cfg.Playground.MaxConcurrent,
	})
	return rt, nil
}

func (r *Runtime) Server() (*management.Server, error) {
	return management.NewServer(r.Config, management.Options{
		Logger:        r.Logger.Named("http"),
		Metrics:       r.Metrics,
		Registry:      r.Registry,
		Agents:        r.OpenClaw,
		Activity:      r.Activity,
		Usage:         r.Usage,
		Suggestions:   r.Suggestions,
		AgentConfig:   r.AgentConfig,
		Reports:       r.Reports,
		Exporter:      r.Exporter,
		Workflows:     r.Workflows,
		Notifications: r.Notifications,
		Skills:        r.Skills,
		Files:         r.Files,
		Playground:    r.Playground,
	})
}

// Serve runs the HTTP server, the agent config watcher, and the limiter
// sweeper until ctx is cancelled or the server fails.
func (r *Runtime) Serve(ctx context.Context) error {
	server, err := r.Server()
	if err != nil {
		return err
	}
	r.Logger.Info("dashboard available", zap.String("url", server.LocalBaseURL()))
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start(ctx)
	})
	g.Go(func() error {
		if err := r.AgentConfig.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			r.Logger.Warn("agent config watcher disabled", zap.String("path", r.AgentConfig.Path()), zap.Error(err))
		}
		return nil
	})
	g.Go(func() error {
		ratelimit.RunSweeper(ctx, sweepInterval, server.Sweepers()...)
		return nil
	})
	return g.Wait()
}

func (r *Runtime) Shutdown() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}

// Status reports where the dashboard reads and writes. It opens nothing, so
// it is safe to call while a server holds the activity log.
type Status struct {
	ConfigPath     string `json:"configPath"`
	DataDir        string `json:"dataDir"`
	DataDirOK      bool   `json:"dataDirOk"`
	ActivityDB     string `json:"activityDb"`
	AgentConfig    string `json:"agentConfig"`
	AgentConfigOK  bool   `json:"agentConfigOk"`
	Workspace      string `json:"workspace"`
	WorkspaceOK    bool   `json:"workspaceOk"`
	UsageDB        string `json:"usageDb"`
	UsageDBOK      bool   `json:"usageDbOk"`
	OpenClawBinary string `json:"openclawBinary"`
	AuthEnabled    bool   `json:"authEnabled"`
	Listen         string `json:"listen"`
}

func BuildStatus(cfg config.Config, configPath string) Status {
	exists := func(path string) bool {
		_, err := os.Stat(path)
		return err == nil
	}
	if strings.TrimSpace(configPath) == "" {
		configPath = config.ConfigPath()
	}
	dataDir := filepath.Dir(config.DataFile(cfg, config.ActivityDB))
	usageDB := config.DataFile(cfg, config.UsageTrackingDB)
	return Status{
		ConfigPath:     configPath,
		DataDir:        dataDir,
		DataDirOK:      exists(dataDir),
		ActivityDB:     config.ActivityDBPath(cfg),
		AgentConfig:    config.AgentConfigPath(cfg),
		AgentConfigOK:  exists(config.AgentConfigPath(cfg)),
		Workspace:      config.WorkspacePath(cfg),
		WorkspaceOK:    exists(config.WorkspacePath(cfg)),
		UsageDB:        usageDB,
		UsageDBOK:      exists(usageDB),
		OpenClawBinary: cfg.OpenClaw.Binary,
		AuthEnabled:    strings.TrimSpace(cfg.Auth.PasswordHash) != "" || strings.TrimSpace(cfg.Auth.Password) != "",
		Listen:         net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
	}
}
