package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/user/court-watch/internal/entity"
)

const (
	ScanModeDetail   = "detail"
	ScanModeCalendar = "calendar"
)

// Config holds the application configuration.
type Config struct {
	BaseURL string `mapstructure:"BASE_URL"`

	ResendAPIKey  string `mapstructure:"RESEND_API_KEY"`
	NotifyEmail   string `mapstructure:"NOTIFY_EMAIL"`
	MailFrom      string `mapstructure:"MAIL_FROM"`
	NotifyOnError bool   `mapstructure:"NOTIFY_ON_ERROR"`

	ProxyServer   string `mapstructure:"PROXY_SERVER"`
	ProxyUsername string `mapstructure:"PROXY_USERNAME"`
	ProxyPassword string `mapstructure:"PROXY_PASSWORD"`

	ExtraDelayMS           int    `mapstructure:"EXTRA_DELAY_MS"`
	TargetFacilities       string `mapstructure:"TARGET_FACILITIES"`
	ArtifactsDir           string `mapstructure:"ARTIFACTS_DIR"`
	Headless               bool   `mapstructure:"HEADLESS"`
	PageLoadTimeoutSeconds int    `mapstructure:"PAGE_LOAD_TIMEOUT_SECONDS"`
	MaxMarksPerFacility    int    `mapstructure:"MAX_MARKS_PER_FACILITY"`
	ScanMode               string `mapstructure:"SCAN_MODE"`
	NavMinIntervalMS       int    `mapstructure:"NAV_MIN_INTERVAL_MS"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`

	DatabaseURL   string `mapstructure:"DATABASE_URL"`
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	NotifyDedupHours int    `mapstructure:"NOTIFY_DEDUP_HOURS"`
	HeartbeatHours   int    `mapstructure:"HEARTBEAT_HOURS"`
	PushgatewayURL   string `mapstructure:"PUSHGATEWAY_URL"`
	ServerPort       string `mapstructure:"SERVER_PORT"`
}

var defaults = map[string]any{
	"BASE_URL":                  "https://resv.city.meguro.tokyo.jp",
	"RESEND_API_KEY":            "",
	"NOTIFY_EMAIL":              "",
	"MAIL_FROM":                 "court-watch <onboarding@resend.dev>",
	"NOTIFY_ON_ERROR":           false,
	"PROXY_SERVER":              "",
	"PROXY_USERNAME":            "",
	"PROXY_PASSWORD":            "",
	"EXTRA_DELAY_MS":            0,
	"TARGET_FACILITIES":         "",
	"ARTIFACTS_DIR":             "artifacts",
	"HEADLESS":                  true,
	"PAGE_LOAD_TIMEOUT_SECONDS": 120,
	"MAX_MARKS_PER_FACILITY":    8,
	"SCAN_MODE":                 ScanModeDetail,
	"NAV_MIN_INTERVAL_MS":       1500,
	"LOG_LEVEL":                 "info",
	"LOG_FORMAT":                "json",
	"DATABASE_URL":              "",
	"REDIS_ADDR":                "",
	"REDIS_PASSWORD":            "",
	"REDIS_DB":                  0,
	"NOTIFY_DEDUP_HOURS":        6,
	"HEARTBEAT_HOURS":           0,
	"PUSHGATEWAY_URL":           "",
	"SERVER_PORT":               "8080",
}

// Load reads configuration from the .env file in the working directory, if
// any, and from environment variables, which take precedence.
func Load() (*Config, error) {
	return LoadFile(".env")
}

// LoadFile is Load with an explicit env file path.
func LoadFile(envFile string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(envFile)
	v.SetConfigType("env")
	v.AutomaticEnv()

	// A missing file is fine: production runs are configured purely through the environment.
	_ = v.ReadInConfig()

	// Every key needs a default so that AutomaticEnv values reach Unmarshal.
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrInvalidConfig, err)
	}
	cfg.ScanMode = strings.ToLower(strings.TrimSpace(cfg.ScanMode))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values the engine cannot run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return fmt.Errorf("%w: BASE_URL is empty", entity.ErrInvalidConfig)
	}
	if c.ScanMode != ScanModeDetail && c.ScanMode != ScanModeCalendar {
		return fmt.Errorf("%w: SCAN_MODE must be %q or %q, got %q", entity.ErrInvalidConfig, ScanModeDetail, ScanModeCalendar, c.ScanMode)
	}
	if c.MaxMarksPerFacility < 1 {
		return fmt.Errorf("%w: MAX_MARKS_PER_FACILITY must be positive", entity.ErrInvalidConfig)
	}
	if c.PageLoadTimeoutSeconds < 1 {
		return fmt.Errorf("%w: PAGE_LOAD_TIMEOUT_SECONDS must be positive", entity.ErrInvalidConfig)
	}
	if c.ExtraDelayMS < 0 || c.NavMinIntervalMS < 0 {
		return fmt.Errorf("%w: delays must not be negative", entity.ErrInvalidConfig)
	}
	_, err := c.Facilities()
	return err
}

// Facilities parses TARGET_FACILITIES, formatted as "key[:pattern|pattern];...".
// A key without patterns is matched by the key itself. An empty value yields
// the default watch list.
func (c *Config) Facilities() ([]entity.Facility, error) {
	return ParseFacilities(c.TargetFacilities)
}

func ParseFacilities(raw string) ([]entity.Facility, error) {
	if strings.TrimSpace(raw) == "" {
		return entity.DefaultFacilities(), nil
	}
	var out []entity.Facility
	seen := make(map[string]bool)
	for _, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		key, patterns, hasPatterns := strings.Cut(entry, ":")
		list := []string{key}
		if hasPatterns {
			list = strings.Split(patterns, "|")
		}
		f, err := entity.NewFacility(key, list...)
		if err != nil {
			return nil, err
		}
		if seen[f.Key] {
			return nil, fmt.Errorf("%w: facility %q listed twice", entity.ErrInvalidConfig, f.Key)
		}
		seen[f.Key] = true
		out = append(out, f)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: TARGET_FACILITIES lists no facility", entity.ErrInvalidConfig)
	}
	return out, nil
}

func (c *Config) PageLoadTimeout() time.Duration {
	return time.Duration(c.PageLoadTimeoutSeconds) * time.Second
}

func (c *Config) ExtraDelay() time.Duration {
	return time.Duration(c.ExtraDelayMS) * time.Millisecond
}

func (c *Config) NavMinInterval() time.Duration {
	return time.Duration(c.NavMinIntervalMS) * time.Millisecond
}

func (c *Config) NotifyDedupTTL() time.Duration {
	return time.Duration(c.NotifyDedupHours) * time.Hour
}

func (c *Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.HeartbeatHours) * time.Hour
}

// MailConfigured reports whether notifications can be delivered at all.
func (c *Config) MailConfigured() bool {
	return c.ResendAPIKey != "" && c.NotifyEmail != ""
}
