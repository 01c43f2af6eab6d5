package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

// Config represents the full application configuration surface.
type Config struct {
	Server     ServerConfig
	Log        LogConfig
	WhatsApp   WhatsAppConfig
	Sheets     SheetsConfig
	Monitoring MonitoringConfig
	AI         AIConfig
	MongoDB    MongoDBConfig
	Redis      RedisConfig
	Rules      Rules
}

// ServerConfig holds HTTP server related options.
type ServerConfig struct {
	Port string
}

// LogConfig selects the zap log level.
type LogConfig struct {
	Level string
}

// WhatsAppConfig contains credentials and options for the Meta WhatsApp Cloud API.
// Field commands and alert notifications are disabled when AccessToken is empty.
type WhatsAppConfig struct {
	AccessToken   string
	PhoneNumberID string
	VerifyToken   string
	BaseURL       string
	APIVersion    string
	ManagerID     string
}

// Enabled reports whether WhatsApp credentials were supplied.
func (c WhatsAppConfig) Enabled() bool {
	return c.AccessToken != "" && c.PhoneNumberID != ""
}

// SheetsConfig contains configuration for the report journal spreadsheet.
type SheetsConfig struct {
	CredentialsPath string
	SpreadsheetID   string
}

// Enabled reports whether the journal mirror is configured.
func (c SheetsConfig) Enabled() bool {
	return c.CredentialsPath != "" && c.SpreadsheetID != ""
}

// MonitoringConfig holds scan scheduling and submission settings.
type MonitoringConfig struct {
	AlertSchedule      string
	InsightSchedule    string
	WeeklyReportCron   string
	Timezone           string
	RecentReportLimit  int
	MaxConflictRetries int
	LockTTL            time.Duration
}

// AIConfig holds settings for LLM providers.
type AIConfig struct {
	AnthropicKey string
}

// MongoDBConfig holds settings for MongoDB.
type MongoDBConfig struct {
	URI    string
	DBName string
}

// RedisConfig holds settings for the alert state store and batch locks.
// Redis is optional; an empty Addr keeps alert state in memory.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Enabled reports whether a Redis address was supplied.
func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

// Load reads environment variables (optionally from the provided file) and
// materializes a Config instance.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed loading env file %s: %w", envFile, err)
			}
		}
	} else {
		// Missing .env files are fine when configuration comes from the environment.
		_ = godotenv.Load()
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: getenvWithDefault("APP_PORT", "8080"),
		},
		Log: LogConfig{
			Level: getenvWithDefault("LOG_LEVEL", "info"),
		},
		WhatsApp: WhatsAppConfig{
			AccessToken:   os.Getenv("WHATSAPP_TOKEN"),
			PhoneNumberID: os.Getenv("WHATSAPP_PHONE_NUMBER_ID"),
			VerifyToken:   os.Getenv("META_VERIFY_TOKEN"),
			BaseURL:       getenvWithDefault("WHATSAPP_BASE_URL", "https://graph.facebook.com"),
			APIVersion:    getenvWithDefault("WHATSAPP_API_VERSION", "v20.0"),
			ManagerID:     os.Getenv("WHATSAPP_MANAGER_ID"),
		},
		Sheets: SheetsConfig{
			CredentialsPath: os.Getenv("GOOGLE_SHEETS_CREDENTIALS_PATH"),
			SpreadsheetID:   os.Getenv("GOOGLE_SHEET_JOURNAL_ID"),
		},
		Monitoring: MonitoringConfig{
			AlertSchedule:    getenvWithDefault("ALERT_SCAN_SCHEDULE", "@every 30m"),
			InsightSchedule:  getenvWithDefault("INSIGHT_SCAN_SCHEDULE", "@every 60m"),
			WeeklyReportCron: getenvWithDefault("WEEKLY_REPORT_SCHEDULE", "0 20 * * 5"),
			Timezone:         getenvWithDefault("TIMEZONE", "Africa/Conakry"),
		},
		AI: AIConfig{
			AnthropicKey: os.Getenv("ANTHROPIC_API_KEY"),
		},
		MongoDB: MongoDBConfig{
			URI:    getenvWithDefault("MONGODB_URI", "mongodb://localhost:27017"),
			DBName: getenvWithDefault("MONGODB_DB_NAME", "flockwatch"),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
		},
	}

	var err error
	if cfg.Monitoring.RecentReportLimit, err = getenvInt("RECENT_REPORT_LIMIT", 50); err != nil {
		return nil, err
	}
	if cfg.Monitoring.MaxConflictRetries, err = getenvInt("MAX_CONFLICT_RETRIES", 3); err != nil {
		return nil, err
	}
	if cfg.Redis.DB, err = getenvInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	lockTTL, err := time.ParseDuration(getenvWithDefault("BATCH_LOCK_TTL", "10s"))
	if err != nil {
		return nil, fmt.Errorf("BATCH_LOCK_TTL: %w", err)
	}
	cfg.Monitoring.LockTTL = lockTTL

	rules, err := LoadRules(os.Getenv("RULES_CONFIG_PATH"))
	if err != nil {
		return nil, err
	}
	cfg.Rules = rules

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures that required configuration fields are populated.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	if c.Server.Port == "" {
		return errors.New("APP_PORT must be provided")
	}

	switch {
	case c.MongoDB.URI == "":
		return errors.New("MONGODB_URI must be provided")
	case c.MongoDB.DBName == "":
		return errors.New("MONGODB_DB_NAME must be provided")
	}

	if c.WhatsApp.Enabled() {
		if c.WhatsApp.VerifyToken == "" {
			return errors.New("META_VERIFY_TOKEN must be provided when WhatsApp is enabled")
		}
		if c.WhatsApp.BaseURL == "" {
			return errors.New("WHATSAPP_BASE_URL must not be empty")
		}
		if c.WhatsApp.APIVersion == "" {
			return errors.New("WHATSAPP_API_VERSION must not be empty")
		}
	}

	if c.Monitoring.AlertSchedule == "" {
		return errors.New("ALERT_SCAN_SCHEDULE must be provided")
	}

	if c.Monitoring.InsightSchedule == "" {
		return errors.New("INSIGHT_SCAN_SCHEDULE must be provided")
	}

	if _, err := time.LoadLocation(c.Monitoring.Timezone); err != nil {
		return fmt.Errorf("TIMEZONE %q is invalid: %w", c.Monitoring.Timezone, err)
	}

	if c.Monitoring.RecentReportLimit < 3 {
		return errors.New("RECENT_REPORT_LIMIT must be at least 3")
	}

	if c.Monitoring.MaxConflictRetries < 1 {
		return errors.New("MAX_CONFLICT_RETRIES must be at least 1")
	}

	return c.Rules.Validate()
}

// Location resolves the configured scan timezone.
func (c MonitoringConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getenvWithDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getenvInt(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return value, nil
}
