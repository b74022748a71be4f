package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grixate/missioncontrol/internal/auth"
	"github.com/grixate/missioncontrol/internal/config"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	root := t.TempDir()
	t.Setenv("HOME", root)
	cfg := config.Default()
	cfg.Server.Port = 0
	cfg.Storage.DataDir = filepath.Join(root, "data")
	cfg.OpenClaw.Binary = filepath.Join(root, "missing-openclaw")
	cfg.OpenClaw.ConfigPath = filepath.Join(root, "openclaw.json")
	cfg.OpenClaw.Workspace = filepath.Join(root, "workspace")
	require.NoError(t, os.MkdirAll(cfg.OpenClaw.Workspace, 0o755))
	require.NoError(t, os.WriteFile(cfg.OpenClaw.ConfigPath, []byte(`{"agents":{}}`), 0o600))
	return cfg
}

func TestBuildRuntimeWiresServices(t *testing.T) {
	cfg := testConfig(t)
	rt, err := BuildRuntime(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Shutdown() })

	assert.NotNil(t, rt.Activity)
	assert.NotNil(t, rt.Usage)
	assert.NotNil(t, rt.Playground)
	assert.FileExists(t, config.ActivityDBPath(cfg))

	server, err := rt.Server()
	require.NoError(t, err)
	assert.NotEmpty(t, server.Addr())

	status := BuildStatus(rt.Config, "")
	assert.False(t, status.AuthEnabled)
	assert.True(t, status.AgentConfigOK)
	assert.True(t, status.DataDirOK)
	assert.False(t, status.UsageDBOK)
	assert.Equal(t, "127.0.0.1:0", status.Listen)
}

func TestBuildRuntimeHashesPlainPassword(t *testing.T) {
	cfg := testConfig(t)
	cfg.Auth.Password = "correct horse"
	rt, err := BuildRuntime(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Shutdown() })

	assert.Empty(t, rt.Config.Auth.Password)
	assert.True(t, auth.VerifyPassword("correct horse", rt.Config.Auth.PasswordHash))
	assert.True(t, BuildStatus(rt.Config, "").AuthEnabled)
}

func TestBuildRuntimeRejectsShortPassword(t *testing.T) {
	cfg := testConfig(t)
	cfg.Auth.Password = "short"
	_, err := BuildRuntime(cfg, nil)
	require.Error(t, err)
}

func TestServeStopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	rt, err := BuildRuntime(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Shutdown() })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rt.Serve(ctx) }()
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not stop after cancel")
	}
}

func TestShutdownIsIdempotent(t *testing.T) {
	rt, err := BuildRuntime(testConfig(t), nil)
	require.NoError(t, err)
	require.NoError(t, rt.Shutdown())
	require.NoError(t, rt.Shutdown())
}
