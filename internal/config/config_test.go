package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte("source_path: /data/customers.csv\n"))
	require.NoError(t, err)

	require.Equal(t, "/data/customers.csv", cfg.SourcePath)
	require.Equal(t, "file:customers.db", cfg.DatabaseDSN)
	require.Equal(t, 1000, cfg.LoadBatchSize)
	require.Equal(t, 1000, cfg.ChunkSize)
	require.Equal(t, Duration(5*time.Second), cfg.WebhookTimeout)
	require.False(t, cfg.Debug)
}

func TestParseFullConfig(t *testing.T) {
	data := []byte(`
source_path: /srv/in.csv
database_dsn: "file:/srv/out.db"
load_batch_size: 250
chunk_size: 500
debug: true
webhook_url: https://hooks.example.com/etl
webhook_timeout: 2s
`)
	cfg, err := Parse(data)
	require.NoError(t, err)

	require.Equal(t, "/srv/in.csv", cfg.SourcePath)
	require.Equal(t, "file:/srv/out.db", cfg.DatabaseDSN)
	require.Equal(t, 250, cfg.LoadBatchSize)
	require.Equal(t, 500, cfg.ChunkSize)
	require.True(t, cfg.Debug)
	require.Equal(t, "https://hooks.example.com/etl", cfg.WebhookURL)
	require.Equal(t, Duration(2*time.Second), cfg.WebhookTimeout)
}

func TestParseDuration(t *testing.T) {
	cfg, err := Parse([]byte("webhook_timeout: 250ms\n"))
	require.NoError(t, err)
	require.Equal(t, Duration(250*time.Millisecond), cfg.WebhookTimeout)
	require.Equal(t, 250*time.Millisecond, cfg.WebhookTimeout.Std())
}

func TestParseRejectsBareNumberDuration(t *testing.T) {
	_, err := Parse([]byte("webhook_timeout: 2000000000\n"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "parse duration")
}

func TestParseRejectsInvalidYAML(t *testing.T) {
	_, err := Parse([]byte("load_batch_size: [not a number"))
	require.Error(t, err)
}

func TestLoadMissingPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, DefaultConfig(), cfg)
}

func TestLoadNonexistentFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("load_batch_size: 42\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 42, cfg.LoadBatchSize)
}
