package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "./writeupd.db", cfg.Database.Path)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 6*time.Hour, cfg.Schedule.ParseIngestInterval())
	require.Len(t, cfg.Feeds, 2)
	assert.Equal(t, "pentesterland", cfg.Feeds[0].Name)
	assert.Equal(t, "json", cfg.Feeds[0].Kind)
	assert.False(t, cfg.Alerts.Slack.Enabled)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  path: /var/lib/writeupd/writeupd.db
feeds:
  - name: disclosures
    url: https://example.com/feed.xml
    kind: rss
schedule:
  ingest_interval: 30m
server:
  port: 9090
alerts:
  slack:
    enabled: true
    webhook_url: https://hooks.slack.com/services/T/B/X
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/writeupd/writeupd.db", cfg.Database.Path)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 30*time.Minute, cfg.Schedule.ParseIngestInterval())
	require.Len(t, cfg.Feeds, 1)
	assert.Equal(t, "rss", cfg.Feeds[0].Kind)
	assert.True(t, cfg.Alerts.Slack.Enabled)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadNoPath(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Database.Path, cfg.Database.Path)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("WRITEUPD_DB_PATH", "/tmp/override.db")
	t.Setenv("WRITEUPD_PORT", "7070")
	t.Setenv("SLACK_WEBHOOK_URL", "https://hooks.slack.com/services/T/B/Y")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/override.db", cfg.Database.Path)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.True(t, cfg.Alerts.Slack.Enabled)
	assert.Equal(t, "https://hooks.slack.com/services/T/B/Y", cfg.Alerts.Slack.WebhookURL)
}

func TestParseIngestIntervalFallback(t *testing.T) {
	assert.Equal(t, 6*time.Hour, ScheduleConfig{IngestInterval: "bogus"}.ParseIngestInterval())
	assert.Equal(t, time.Hour, ScheduleConfig{IngestInterval: "1h"}.ParseIngestInterval())
}
