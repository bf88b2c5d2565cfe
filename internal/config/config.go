package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	JWT         JWTConfig         `yaml:"jwt"`
	Log         LogConfig         `yaml:"log"`
	SendGrid    SendGridConfig    `yaml:"sendgrid"`
	HCB         HCBConfig         `yaml:"hcb"`
	RecordStore RecordStoreConfig `yaml:"record_store"`
	Grants      GrantsConfig      `yaml:"grants"`
	SideEffects SideEffectsConfig `yaml:"side_effects"`
	Scheduler   SchedulerConfig   `yaml:"scheduler"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	ShutdownSeconds int    `yaml:"shutdown_seconds"`
}

// DatabaseConfig contains PostgreSQL connection settings
type DatabaseConfig struct {
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	User          string `yaml:"user"`
	Password      string `yaml:"password"`
	Database      string `yaml:"database"`
	SSLMode       string `yaml:"ssl_mode"`
	MaxOpenConns  int    `yaml:"max_open_conns"`
	RunMigrations bool   `yaml:"run_migrations"`
}

// JWTConfig contains access token validation settings
type JWTConfig struct {
	Secret string `yaml:"secret"`
	Issuer string `yaml:"issuer"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "text"
}

// SendGridConfig contains transactional email settings. Email is disabled when APIKey is empty.
type SendGridConfig struct {
	APIKey             string `yaml:"api_key"`
	FromEmail          string `yaml:"from_email"`
	FromName           string `yaml:"from_name"`
	ApprovedTemplateID string `yaml:"approved_template_id"`
	RejectedTemplateID string `yaml:"rejected_template_id"`
}

func (c SendGridConfig) Enabled() bool {
	return c.APIKey != ""
}

// HCBConfig contains disbursement provider settings
type HCBConfig struct {
	Type           string `yaml:"type"` // "mock" or "hcb"
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// RecordStoreConfig contains the external record store (Airtable) settings
type RecordStoreConfig struct {
	Type                string `yaml:"type"` // "noop" or "airtable"
	BaseURL             string `yaml:"base_url"`
	APIKey              string `yaml:"api_key"`
	BaseID              string `yaml:"base_id"`
	OrdersTable         string `yaml:"orders_table"`
	ShopItemsTable      string `yaml:"shop_items_table"`
	SignupsTable        string `yaml:"signups_table"`
	SubmissionsTable    string `yaml:"submissions_table"`
	ApprovedFormula     string `yaml:"approved_formula"`
	TrackPointsRedeemed bool   `yaml:"track_points_redeemed"`
	TimeoutSeconds      int    `yaml:"timeout_seconds"`
}

// GrantsConfig contains grant planning and disbursement settings
type GrantsConfig struct {
	DelayMillis  int    `yaml:"delay_millis"`
	OutputDir    string `yaml:"output_dir"`
	ApprovedOnly bool   `yaml:"approved_only"`
}

func (c GrantsConfig) Delay() time.Duration {
	return time.Duration(c.DelayMillis) * time.Millisecond
}

// SideEffectsConfig bounds best-effort work dispatched after a commit
type SideEffectsConfig struct {
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

func (c SideEffectsConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// SchedulerConfig contains cron schedule settings
type SchedulerConfig struct {
	PlanGrants       string `yaml:"plan_grants"`
	RetryOrderMirror string `yaml:"retry_order_mirror"`
}

// Load reads configuration from a YAML file. A .env file next to the working
// directory is loaded first when present; environment variables win over YAML.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.overrideWithEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// overrideWithEnv overrides config values with environment variables
func (c *Config) overrideWithEnv() {
	// Database
	if val := os.Getenv("DB_HOST"); val != "" {
		c.Database.Host = val
	}
	if val := os.Getenv("DB_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Database.Port)
	}
	if val := os.Getenv("DB_USER"); val != "" {
		c.Database.User = val
	}
	if val := os.Getenv("DB_PASSWORD"); val != "" {
		c.Database.Password = val
	}
	if val := os.Getenv("DB_NAME"); val != "" {
		c.Database.Database = val
	}
	if val := os.Getenv("DB_SSL_MODE"); val != "" {
		c.Database.SSLMode = val
	}

	// JWT
	if val := os.Getenv("JWT_SECRET"); val != "" {
		c.JWT.Secret = val
	}

	// Server
	if val := os.Getenv("SERVER_HOST"); val != "" {
		c.Server.Host = val
	}
	if val := os.Getenv("SERVER_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Server.Port)
	}

	// Log
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.Log.Level = val
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.Log.Format = val
	}

	// SendGrid
	if val := os.Getenv("SENDGRID_API_KEY"); val != "" {
		c.SendGrid.APIKey = val
	}

	// HCB
	if val := os.Getenv("HCB_API_KEY"); val != "" {
		c.HCB.APIKey = val
	}
	if val := os.Getenv("HCB_BASE_URL"); val != "" {
		c.HCB.BaseURL = val
	}

	// Record store
	if val := os.Getenv("AIRTABLE_API_KEY"); val != "" {
		c.RecordStore.APIKey = val
	}
	if val := os.Getenv("AIRTABLE_BASE_ID"); val != "" {
		c.RecordStore.BaseID = val
	}

	// Grants
	if val := os.Getenv("GRANTS_OUTPUT_DIR"); val != "" {
		c.Grants.OutputDir = val
	}
}

// Validate checks the configuration and fills in defaults
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.ShutdownSeconds == 0 {
		c.Server.ShutdownSeconds = 15
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("database user is required")
	}
	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 20
	}

	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT secret is required")
	}
	if len(c.JWT.Secret) < 32 {
		return fmt.Errorf("JWT secret must be at least 32 characters")
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}

	if c.SendGrid.Enabled() && c.SendGrid.FromEmail == "" {
		return fmt.Errorf("sendgrid from_email is required when an API key is set")
	}

	switch c.HCB.Type {
	case "":
		c.HCB.Type = "mock"
	case "mock":
	case "hcb":
		if c.HCB.BaseURL == "" {
			return fmt.Errorf("hcb base_url is required")
		}
		if c.HCB.APIKey == "" {
			return fmt.Errorf("hcb api_key is required")
		}
	default:
		return fmt.Errorf("unsupported hcb type: %s", c.HCB.Type)
	}
	if c.HCB.TimeoutSeconds == 0 {
		c.HCB.TimeoutSeconds = 30
	}

	switch c.RecordStore.Type {
	case "":
		c.RecordStore.Type = "noop"
	case "noop":
	case "airtable":
		if c.RecordStore.APIKey == "" || c.RecordStore.BaseID == "" {
			return fmt.Errorf("airtable api_key and base_id are required")
		}
		if c.RecordStore.BaseURL == "" {
			c.RecordStore.BaseURL = "https://api.airtable.com/v0"
		}
		if c.RecordStore.OrdersTable == "" {
			c.RecordStore.OrdersTable = "Shop Orders"
		}
		if c.RecordStore.ShopItemsTable == "" {
			c.RecordStore.ShopItemsTable = "Shop Items"
		}
		if c.RecordStore.SignupsTable == "" {
			c.RecordStore.SignupsTable = "Signups"
		}
		if c.RecordStore.SubmissionsTable == "" {
			c.RecordStore.SubmissionsTable = "YSWS Project Submission"
		}
		if c.RecordStore.ApprovedFormula == "" {
			c.RecordStore.ApprovedFormula = `{Status} = "Uploaded"`
		}
	default:
		return fmt.Errorf("unsupported record store type: %s", c.RecordStore.Type)
	}
	if c.RecordStore.TimeoutSeconds == 0 {
		c.RecordStore.TimeoutSeconds = 30
	}

	if c.Grants.DelayMillis == 0 {
		c.Grants.DelayMillis = 1000
	}
	if c.Grants.DelayMillis < 0 {
		return fmt.Errorf("grants delay_millis must not be negative")
	}
	if c.Grants.OutputDir == "" {
		c.Grants.OutputDir = "grants"
	}

	if c.SideEffects.TimeoutSeconds == 0 {
		c.SideEffects.TimeoutSeconds = 30
	}

	if c.Scheduler.PlanGrants == "" {
		c.Scheduler.PlanGrants = "0 0 6 * * MON" // Mondays at 6 AM UTC
	}
	if c.Scheduler.RetryOrderMirror == "" {
		c.Scheduler.RetryOrderMirror = "0 */15 * * * *" // every 15 minutes
	}

	return nil
}

// GetDatabaseConnectionString returns a PostgreSQL connection string
func (c *Config) GetDatabaseConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
		c.Database.SSLMode,
	)
}

// GetServerAddress returns the HTTP listen address
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
