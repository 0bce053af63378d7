package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// TestRunLevelEventsReachTheConfiguredOutput proves Info and Error are written once Sync returns
func TestRunLevelEventsReachTheConfiguredOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "topofetch.log")
	require.NoError(t, Initialize(Config{Level: "info", Format: "json", Output: path}))
	t.Cleanup(InitializeDefault)

	Debug("hidden below the level")
	Info("fetch started", zap.String("dataset", "COP30"))
	Error("fetch failed", zap.String("stage", "reproject"))
	Named("region").Warn("resuming partial run")
	Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, `"msg":"fetch started"`)
	assert.Contains(t, out, `"dataset":"COP30"`)
	assert.Contains(t, out, `"msg":"fetch failed"`)
	assert.Contains(t, out, `"logger":"region"`)
	assert.NotContains(t, out, "hidden below the level")
}

func TestUnknownLevelFallsBackToInfo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "topofetch.log")
	require.NoError(t, Initialize(Config{Level: "chatty", Format: "json", Output: path}))
	t.Cleanup(InitializeDefault)

	Debug("not shown")
	Info("shown")
	Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "shown")
	assert.NotContains(t, string(data), "not shown")
}
