package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 25, cfg.MaxAttempts)
	assert.Equal(t, 100, cfg.ChunkSize)
	assert.InDelta(t, 1.2, cfg.OverheadFactor, 1e-9)
	assert.Empty(t, cfg.Ledger)
	assert.Contains(t, cfg.Environments, EnvLive)
	assert.Contains(t, cfg.Environments, EnvSandbox)
	assert.Equal(t, "_INCOMPLETE", cfg.Layout.Incomplete)
}

func TestLoadWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().MaxAttempts, cfg.MaxAttempts)
}

func TestLoadExplicitMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read")
}

func TestLoadOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "amti.yaml")
	content := `
max_attempts: 3
chunk_size: 50
ledger: /tmp/amti.db
environments:
  sandbox:
    region: us-west-2
    endpoint: http://localhost:9999
    worker_url: http://localhost/
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, 50, cfg.ChunkSize)
	assert.Equal(t, "/tmp/amti.db", cfg.Ledger)
	assert.Equal(t, "http://localhost:9999", cfg.Environments[EnvSandbox].Endpoint)
	// live was not in the file and keeps its default
	assert.Equal(t, Default().Environments[EnvLive], cfg.Environments[EnvLive])
	// fields left out of the file keep their defaults
	assert.InDelta(t, 1.2, cfg.OverheadFactor, 1e-9)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"max attempts", "max_attempts: 0\n", "max_attempts"},
		{"chunk size", "chunk_size: -1\n", "chunk_size"},
		{"chunk size above limit", "chunk_size: 101\n", "chunk_size must be between 1 and 100"},
		{"overhead", "overhead_factor: 0\n", "overhead_factor"},
		{"environment", "environments:\n  live:\n    region: us-east-1\n", "environment \"live\""},
		{"yaml", "max_attempts: [\n", "config: parse"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "amti.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			_, err := Load(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestEnv(t *testing.T) {
	cfg := Default()

	env, name, err := cfg.Env(false)
	require.NoError(t, err)
	assert.Equal(t, EnvSandbox, name)
	assert.Contains(t, env.Endpoint, "sandbox")

	env, name, err = cfg.Env(true)
	require.NoError(t, err)
	assert.Equal(t, EnvLive, name)
	assert.Equal(t, "https://mturk-requester.us-east-1.amazonaws.com", env.Endpoint)
}

func TestPreviewURL(t *testing.T) {
	env := Default().Environments[EnvSandbox]
	assert.Equal(t, "https://workersandbox.mturk.com/mturk/preview?groupId=G1", env.PreviewURL("G1"))
}
