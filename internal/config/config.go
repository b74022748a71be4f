package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server     ServerConfig     `json:"server"`
	Auth       AuthConfig       `json:"auth"`
	OpenClaw   OpenClawConfig   `json:"openclaw"`
	Storage    StorageConfig    `json:"storage"`
	Reports    ReportsConfig    `json:"reports"`
	Playground PlaygroundConfig `json:"playground"`
	Providers  ProvidersConfig  `json:"providers"`
	Logging    LoggingConfig    `json:"logging"`
}

type ServerConfig struct {
	Host          string `json:"host"`
	Port          int    `json:"port"`
	PublicBaseURL string `json:"publicBaseUrl,omitempty"`
}

type AuthConfig struct {
	PasswordHash      string        `json:"passwordHash"`
	PasswordUpdatedAt string        `json:"passwordUpdatedAt,omitempty"`
	SessionIdleTTL    DurationValue `json:"sessionIdleTtl"`
	SessionMaxTTL     DurationValue `json:"sessionMaxTtl"`
	LoginMaxFailures  int           `json:"loginMaxFailures"`
	LoginWindow       DurationValue `json:"loginWindow"`
	LoginLockout      DurationValue `json:"loginLockout"`

	// Password is only ever read from the environment and hashed at startup.
	Password string `json:"-"`
}

type OpenClawConfig struct {
	Binary     string        `json:"binary"`
	ConfigPath string        `json:"configPath"`
	Workspace  string        `json:"workspace"`
	CLITimeout DurationValue `json:"cliTimeout"`
	CacheTTL   DurationValue `json:"cacheTtl"`
}

type StorageConfig struct {
	DataDir        string `json:"dataDir"`
	ActivityDBPath string `json:"activityDbPath,omitempty"`
}

type ReportsConfig struct {
	ExpiresInDays int           `json:"expiresInDays"`
	ChromePath    string        `json:"chromePath,omitempty"`
	PDFTimeout    DurationValue `json:"pdfTimeout"`
}

type PlaygroundConfig struct {
	Timeout       DurationValue `json:"timeout"`
	RunsPerMinute float64       `json:"runsPerMinute"`
	Burst         int           `json:"burst"`
	MaxConcurrent int           `json:"maxConcurrent"`
}

type ProvidersConfig struct {
	Anthropic  ProviderConfig `json:"anthropic"`
	OpenAI     ProviderConfig `json:"openai"`
	OpenRouter ProviderConfig `json:"openrouter"`
	Gemini     ProviderConfig `json:"gemini"`
}

type ProviderConfig struct {
	APIKey  string `json:"apiKey"`
	APIBase string `json:"apiBase,omitempty"`
}

type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

type DurationValue struct {
	time.Duration
}

func (d DurationValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *DurationValue) UnmarshalJSON(data []byte) error {
	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		parsed, parseErr := time.ParseDuration(asString)
		if parseErr != nil {
			return parseErr
		}
		d.Duration = parsed
		return nil
	}

	var asNumber int64
	if err := json.Unmarshal(data, &asNumber); err == nil {
		d.Duration = time.Duration(asNumber)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", string(data))
}

// Data files kept under Storage.DataDir.
const (
	WorkflowsFile      = "workflows.json"
	NotificationsFile  = "notifications.json"
	DisabledSkillsFile = "disabled-skills.json"
	PlaygroundDB       = "playground.db"
	SharedReportsDB    = "shared-reports.db"
	SuggestionsDB      = "suggestions.db"
	UsageTrackingDB    = "usage-tracking.db"
	ActivityDB         = "activity.db"
)

func Default() Config {
	openclaw := OpenClawHome()
	return Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 3100,
		},
		Auth: AuthConfig{
			SessionIdleTTL:   DurationValue{Duration: 24 * time.Hour},
			SessionMaxTTL:    DurationValue{Duration: 7 * 24 * time.Hour},
			LoginMaxFailures: 5,
			LoginWindow:      DurationValue{Duration: 15 * time.Minute},
			LoginLockout:     DurationValue{Duration: 15 * time.Minute},
		},
		OpenClaw: OpenClawConfig{
			Binary:     "openclaw",
			ConfigPath: filepath.Join(openclaw, "openclaw.json"),
			Workspace:  filepath.Join(openclaw, "workspace"),
			CLITimeout: DurationValue{Duration: 10 * time.Second},
			CacheTTL:   DurationValue{Duration: 5 * time.Second},
		},
		Storage: StorageConfig{
			DataDir: filepath.Join(HomeDir(), "data"),
		},
		Reports: ReportsConfig{
			ExpiresInDays: 30,
			PDFTimeout:    DurationValue{Duration: 60 * time.Second},
		},
		Playground: PlaygroundConfig{
			Timeout:       DurationValue{Duration: 90 * time.Second},
			RunsPerMinute: 10,
			Burst:         3,
			MaxConcurrent: 4,
		},
		Providers: ProvidersConfig{
			Anthropic:  ProviderConfig{APIBase: "https://api.anthropic.com/v1"},
			OpenAI:     ProviderConfig{APIBase: "https://api.openai.com/v1"},
			OpenRouter: ProviderConfig{APIBase: "https://openrouter.ai/api/v1"},
			Gemini:     ProviderConfig{APIBase: "https://generativelanguage.googleapis.com/v1beta/openai"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

func HomeDir() string {
	if override := strings.TrimSpace(os.Getenv("MISSION_CONTROL_HOME")); override != "" {
		return expandPath(override)
	}
	h, err := os.UserHomeDir()
	if err != nil {
		return ".missioncontrol"
	}
	return filepath.Join(h, ".missioncontrol")
}

func OpenClawHome() string {
	h, err := os.UserHomeDir()
	if err != nil {
		return ".openclaw"
	}
	return filepath.Join(h, ".openclaw")
}

func ConfigPath() string {
	return filepath.Join(HomeDir(), "config.json")
}

// DataFile returns the absolute path of a file under the data directory.
func DataFile(cfg Config, name string) string {
	return filepath.Join(expandPath(cfg.Storage.DataDir), name)
}

func ActivityDBPath(cfg Config) string {
	if strings.TrimSpace(cfg.Storage.ActivityDBPath) != "" {
		return expandPath(cfg.Storage.ActivityDBPath)
	}
	return DataFile(cfg, ActivityDB)
}

func WorkspacePath(cfg Config) string {
	if strings.TrimSpace(cfg.OpenClaw.Workspace) == "" {
		return filepath.Join(OpenClawHome(), "workspace")
	}
	return expandPath(cfg.OpenClaw.Workspace)
}

func AgentConfigPath(cfg Config) string {
	if strings.TrimSpace(cfg.OpenClaw.ConfigPath) == "" {
		return filepath.Join(OpenClawHome(), "openclaw.json")
	}
	return expandPath(cfg.OpenClaw.ConfigPath)
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		h, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(h, path[2:])
		}
	}
	return path
}

// LoadDotEnv loads the first .env file found in the working directory or the
// home directory. Variables already present in the environment win.
func LoadDotEnv() {
	for _, path := range []string{".env", filepath.Join(HomeDir(), ".env")} {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = ConfigPath()
	}
	path = expandPath(path)
	bytes, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(&cfg)
			return cfg, nil
		}
		return cfg, err
	}
	if err := json.Unmarshal(bytes, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	applyEnvOverrides(&cfg)
	return cfg, nil
}

func Save(path string, cfg Config) error {
	if path == "" {
		path = ConfigPath()
	}
	path = expandPath(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func Validate(cfg Config) error {
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 0 and 65535")
	}
	if strings.TrimSpace(cfg.Storage.DataDir) == "" {
		return fmt.Errorf("storage.dataDir is required")
	}
	if strings.TrimSpace(cfg.OpenClaw.Binary) == "" {
		return fmt.Errorf("openclaw.binary is required")
	}
	if cfg.Reports.ExpiresInDays <= 0 {
		return fmt.Errorf("reports.expiresInDays must be positive")
	}
	if cfg.Auth.LoginMaxFailures <= 0 {
		return fmt.Errorf("auth.loginMaxFailures must be positive")
	}
	return nil
}

// EnsureFilesystem creates the data directory.
func EnsureFilesystem(cfg Config) error {
	return os.MkdirAll(expandPath(cfg.Storage.DataDir), 0o755)
}

func applyEnvOverrides(cfg *Config) {
	env := map[string]*string{
		"MISSION_CONTROL_HOST":               &cfg.Server.Host,
		"MISSION_CONTROL_PUBLIC_BASE_URL":    &cfg.Server.PublicBaseURL,
		"MISSION_CONTROL_DATA_DIR":           &cfg.Storage.DataDir,
		"MISSION_CONTROL_PASSWORD_HASH":      &cfg.Auth.PasswordHash,
		"MISSION_CONTROL_PASSWORD":           &cfg.Auth.Password,
		"MISSION_CONTROL_OPENCLAW_BIN":       &cfg.OpenClaw.Binary,
		"MISSION_CONTROL_OPENCLAW_CONFIG":    &cfg.OpenClaw.ConfigPath,
		"MISSION_CONTROL_OPENCLAW_WORKSPACE": &cfg.OpenClaw.Workspace,
		"MISSION_CONTROL_CHROME_PATH":        &cfg.Reports.ChromePath,
		"MISSION_CONTROL_LOG_LEVEL":          &cfg.Logging.Level,
		"MISSION_CONTROL_LOG_FORMAT":         &cfg.Logging.Format,
		"MISSION_CONTROL_ANTHROPIC_API_KEY":  &cfg.Providers.Anthropic.APIKey,
		"MISSION_CONTROL_OPENAI_API_KEY":     &cfg.Providers.OpenAI.APIKey,
		"MISSION_CONTROL_OPENAI_API_BASE":    &cfg.Providers.OpenAI.APIBase,
		"MISSION_CONTROL_OPENROUTER_API_KEY": &cfg.Providers.OpenRouter.APIKey,
		"MISSION_CONTROL_GEMINI_API_KEY":     &cfg.Providers.Gemini.APIKey,
	}
	for key, target := range env {
		if value := strings.TrimSpace(os.Getenv(key)); value != "" {
			*target = value
		}
	}

	if value := strings.TrimSpace(os.Getenv("MISSION_CONTROL_PORT")); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			cfg.Server.Port = parsed
		}
	}
	if value := strings.TrimSpace(os.Getenv("MISSION_CONTROL_REPORT_EXPIRY_DAYS")); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			cfg.Reports.ExpiresInDays = parsed
		}
	}
	if value := strings.TrimSpace(os.Getenv("MISSION_CONTROL_CLI_TIMEOUT")); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil && parsed > 0 {
			cfg.OpenClaw.CLITimeout = DurationValue{Duration: parsed}
		}
	}
}
