package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grixate/missioncontrol/internal/auth"
	"github.com/grixate/missioncontrol/internal/config"
)

func writeTestConfig(t *testing.T) (string, config.Config) {
	t.Helper()
	root := t.TempDir()
	t.Setenv("MISSION_CONTROL_HOME", root)
	t.Setenv("HOME", root)
	cfg := config.Default()
	cfg.Storage.DataDir = filepath.Join(root, "data")
	cfg.OpenClaw.Binary = filepath.Join(root, "missing-openclaw")
	cfg.OpenClaw.ConfigPath = filepath.Join(root, "openclaw.json")
	cfg.OpenClaw.Workspace = filepath.Join(root, "workspace")
	cfg.Logging.Level = "error"
	path := filepath.Join(root, "config.json")
	require.NoError(t, config.Save(path, cfg))
	return path, cfg
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestHashPasswordFromArgAndStdin(t *testing.T) {
	out, err := execute(t, "", "hash-password", "correct horse")
	require.NoError(t, err)
	hash := strings.TrimSpace(out)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$"))
	assert.True(t, auth.VerifyPassword("correct horse", hash))

	out, err = execute(t, "battery staple\n", "hash-password")
	require.NoError(t, err)
	assert.True(t, auth.VerifyPassword("battery staple", strings.TrimSpace(out)))
}

func TestHashPasswordRejectsShortPassword(t *testing.T) {
	_, err := execute(t, "", "hash-password", "short")
	require.Error(t, err)
}

func TestStatusJSON(t *testing.T) {
	path, cfg := writeTestConfig(t)
	out, err := execute(t, "", "--config", path, "status", "--json")
	require.NoError(t, err)

	var st map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.Equal(t, path, st["configPath"])
	assert.Equal(t, cfg.OpenClaw.ConfigPath, st["agentConfig"])
	assert.Equal(t, false, st["agentConfigOk"])
	assert.Equal(t, false, st["authEnabled"])
}

func TestWorkflowsListEmpty(t *testing.T) {
	path, _ := writeTestConfig(t)
	out, err := execute(t, "", "--config", path, "workflows", "list")
	require.NoError(t, err)
	assert.Equal(t, "No workflows\n", out)
}

func TestConfigSetAndGet(t *testing.T) {
	path, cfg := writeTestConfig(t)
	require.NoError(t, os.WriteFile(cfg.OpenClaw.ConfigPath,
		[]byte(`{"gateway":{"port":18789},"channels":{"botToken":"sk-secret"}}`), 0o600))

	out, err := execute(t, "", "--config", path, "config", "set", "gateway.port", "19000")
	require.NoError(t, err)
	assert.Contains(t, out, "Updated gateway.port")
	assert.Contains(t, out, "Restart the gateway")

	out, err = execute(t, "", "--config", path, "config", "get", "gateway.port")
	require.NoError(t, err)
	assert.Equal(t, "19000", strings.TrimSpace(out))

	out, err = execute(t, "", "--config", path, "config", "get")
	require.NoError(t, err)
	assert.NotContains(t, out, "sk-secret")
}

func TestConfigSetRejectsUnlistedPath(t *testing.T) {
	path, cfg := writeTestConfig(t)
	require.NoError(t, os.WriteFile(cfg.OpenClaw.ConfigPath, []byte(`{}`), 0o600))
	_, err := execute(t, "", "--config", path, "config", "set", "providers.apiKey", "x")
	require.Error(t, err)
}

func TestCostsWithoutCollectorOrCLI(t *testing.T) {
	path, _ := writeTestConfig(t)
	out, err := execute(t, "", "--config", path, "costs", "--timeframe", "7d", "--json")
	require.NoError(t, err)

	var summary map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.Equal(t, "live", summary["source"])
	assert.EqualValues(t, 0, summary["totalCost"])
}

func TestCostsRejectsBadTimeframe(t *testing.T) {
	_, err := execute(t, "", "costs", "--timeframe", "weekly")
	require.Error(t, err)
}

func TestParseValue(t *testing.T) {
	assert.Equal(t, json.Number("42"), parseValue("42"))
	assert.Equal(t, true, parseValue("true"))
	assert.Equal(t, "opus", parseValue("opus"))
	assert.Equal(t, "two words", parseValue("two words"))
	assert.Equal(t, map[string]any{"a": json.Number("1")}, parseValue(`{"a":1}`))
}

func TestShareURL(t *testing.T) {
	cfg := config.Default()
	assert.Equal(t, "http://127.0.0.1:3100/reports/shared/tok", shareURL(cfg, "tok"))
	cfg.Server.PublicBaseURL = "https://mc.example.com/"
	assert.Equal(t, "https://mc.example.com/reports/shared/tok", shareURL(cfg, "tok"))
}
