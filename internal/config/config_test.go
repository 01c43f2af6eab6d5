package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"APP_PORT", "LOG_LEVEL", "WHATSAPP_TOKEN", "WHATSAPP_PHONE_NUMBER_ID", "META_VERIFY_TOKEN",
	"WHATSAPP_MANAGER_ID", "GOOGLE_SHEETS_CREDENTIALS_PATH", "GOOGLE_SHEET_JOURNAL_ID",
	"ALERT_SCAN_SCHEDULE", "INSIGHT_SCAN_SCHEDULE", "TIMEZONE", "ANTHROPIC_API_KEY",
	"MONGODB_URI", "MONGODB_DB_NAME", "REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB",
	"RECENT_REPORT_LIMIT", "MAX_CONFLICT_RETRIES", "BATCH_LOCK_TTL", "RULES_CONFIG_PATH",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "mongodb://localhost:27017", cfg.MongoDB.URI)
	assert.Equal(t, "flockwatch", cfg.MongoDB.DBName)
	assert.Equal(t, "@every 30m", cfg.Monitoring.AlertSchedule)
	assert.Equal(t, "@every 60m", cfg.Monitoring.InsightSchedule)
	assert.Equal(t, 50, cfg.Monitoring.RecentReportLimit)
	assert.Equal(t, 3, cfg.Monitoring.MaxConflictRetries)
	assert.Equal(t, 10*time.Second, cfg.Monitoring.LockTTL)
	assert.False(t, cfg.Redis.Enabled())
	assert.False(t, cfg.WhatsApp.Enabled())
	assert.False(t, cfg.Sheets.Enabled())
	assert.Equal(t, DefaultRules(), cfg.Rules)
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_PORT", "9090")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("RECENT_REPORT_LIMIT", "20")
	t.Setenv("WHATSAPP_TOKEN", "token")
	t.Setenv("WHATSAPP_PHONE_NUMBER_ID", "123")
	t.Setenv("META_VERIFY_TOKEN", "verify")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.True(t, cfg.Redis.Enabled())
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, 20, cfg.Monitoring.RecentReportLimit)
	assert.True(t, cfg.WhatsApp.Enabled())
}

func TestLoad_WhatsAppRequiresVerifyToken(t *testing.T) {
	clearEnv(t)
	t.Setenv("WHATSAPP_TOKEN", "token")
	t.Setenv("WHATSAPP_PHONE_NUMBER_ID", "123")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "META_VERIFY_TOKEN")
}

func TestLoad_InvalidInteger(t *testing.T) {
	clearEnv(t)
	t.Setenv("RECENT_REPORT_LIMIT", "lots")

	_, err := Load("")
	require.Error(t, err)
}

func TestLoad_InvalidTimezone(t *testing.T) {
	clearEnv(t)
	t.Setenv("TIMEZONE", "Mars/Olympus")

	_, err := Load("")
	require.Error(t, err)
}

func TestLoadRules_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	content := []byte("alerts:\n  mortalityWarning: 8\n  feedConversionWarning: 2.5\ninsights:\n  minReportsPerBatch: 3\n")
	require.NoError(t, os.WriteFile(path, content, 0o600))

	rules, err := LoadRules(path)
	require.NoError(t, err)

	assert.Equal(t, 8.0, rules.Alerts.MortalityWarning)
	assert.Equal(t, 2.5, rules.Alerts.FeedConversionWarning)
	assert.Equal(t, 15.0, rules.Alerts.MortalityCritical)
	assert.Equal(t, 3, rules.Insights.MinReportsPerBatch)
	require.NoError(t, rules.Validate())
}

func TestLoadRules_MissingFile(t *testing.T) {
	_, err := LoadRules(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestRulesValidate(t *testing.T) {
	require.NoError(t, DefaultRules().Validate())

	rules := DefaultRules()
	rules.Alerts.MortalityCritical = 5
	require.Error(t, rules.Validate())

	rules = DefaultRules()
	rules.Insights.MortalityGood = 20
	require.Error(t, rules.Validate())

	rules = DefaultRules()
	rules.Alerts.HarvestOverdueDay = 30
	require.Error(t, rules.Validate())
}
