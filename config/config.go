package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

const (
	BackendSQLite = "sqlite"
	BackendCalDAV = "caldav"
)

type Config struct {
	Backend        string
	DatabasePath   string
	CalDAVURL      string
	CalDAVUsername string
	CalDAVPassword string
	CalDAVCalendar string
	Timezone       *time.Location

	// BridgeTimeout bounds every wait on an asynchronous store callback; 0 waits forever
	BridgeTimeout  time.Duration
	HandleTTL      time.Duration
	PruneCron      string
	CalendarSource string

	LogLevel  string
	LogFormat string

	TelegramToken   string
	OwnerTelegramID int64
	WebhookURL      string
	ServerPort      string
	APIUsername     string
	APIPassword     string
	MetricsAddr     string
}

// File is the optional YAML configuration named by ICALBRIDGE_CONFIG.
// Environment variables override its values.
type File struct {
	Backend      string `yaml:"backend"`
	DatabasePath string `yaml:"database_path"`
	CalDAV       struct {
		URL      string `yaml:"url"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
		Calendar string `yaml:"calendar"`
	} `yaml:"caldav"`
	Timezone       string `yaml:"timezone"`
	BridgeTimeout  string `yaml:"bridge_timeout"`
	HandleTTL      string `yaml:"handle_ttl"`
	PruneCron      string `yaml:"prune_cron"`
	CalendarSource string `yaml:"calendar_source"`
	Log            struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Telegram struct {
		Token      string `yaml:"token"`
		OwnerID    int64  `yaml:"owner_id"`
		WebhookURL string `yaml:"webhook_url"`
	} `yaml:"telegram"`
	ServerPort string `yaml:"server_port"`
	API        struct {
		Username string `yaml:"username"`
		Password string `yaml:"password"`
	} `yaml:"api"`
	MetricsAddr string `yaml:"metrics_addr"`
}

// ReadFile parses a YAML configuration file
func ReadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return &f, nil
}

// Load reads .env (when present), the YAML file named by ICALBRIDGE_CONFIG
// (when set) and then the environment
func Load() (*Config, error) {
	_ = godotenv.Load()

	f := &File{}
	if path := os.Getenv("ICALBRIDGE_CONFIG"); path != "" {
		var err error
		if f, err = ReadFile(path); err != nil {
			return nil, err
		}
	}
	return fromFile(f)
}

func fromFile(f *File) (*Config, error) {
	cfg := &Config{
		Backend:        getEnv("BACKEND", f.Backend, BackendSQLite),
		DatabasePath:   getEnv("DATABASE_PATH", f.DatabasePath, "./data/icalbridge.db"),
		CalDAVURL:      getEnv("CALDAV_URL", f.CalDAV.URL, ""),
		CalDAVUsername: getEnv("CALDAV_USERNAME", f.CalDAV.Username, ""),
		CalDAVPassword: getEnv("CALDAV_PASSWORD", f.CalDAV.Password, ""),
		CalDAVCalendar: getEnv("CALDAV_CALENDAR", f.CalDAV.Calendar, ""),
		PruneCron:      getEnv("PRUNE_CRON", f.PruneCron, "*/5 * * * *"),
		CalendarSource: getEnv("CALENDAR_SOURCE", f.CalendarSource, ""),
		LogLevel:       getEnv("LOG_LEVEL", f.Log.Level, "info"),
		LogFormat:      getEnv("LOG_FORMAT", f.Log.Format, "text"),
		TelegramToken:  getEnv("TELEGRAM_BOT_TOKEN", f.Telegram.Token, ""),
		WebhookURL:     getEnv("WEBHOOK_URL", f.Telegram.WebhookURL, ""),
		ServerPort:     getEnv("SERVER_PORT", f.ServerPort, "8080"),
		APIUsername:    getEnv("API_USERNAME", f.API.Username, ""),
		APIPassword:    getEnv("API_PASSWORD", f.API.Password, ""),
		MetricsAddr:    getEnv("METRICS_ADDR", f.MetricsAddr, ""),
	}

	switch cfg.Backend {
	case BackendSQLite:
	case BackendCalDAV:
		if cfg.CalDAVUsername == "" || cfg.CalDAVPassword == "" {
			return nil, fmt.Errorf("CALDAV_USERNAME and CALDAV_PASSWORD are required for the caldav backend")
		}
	default:
		return nil, fmt.Errorf("invalid BACKEND %q: must be sqlite or caldav", cfg.Backend)
	}

	tzName := getEnv("TIMEZONE", f.Timezone, "Local")
	tz, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}
	cfg.Timezone = tz

	if cfg.BridgeTimeout, err = getDuration("BRIDGE_TIMEOUT", f.BridgeTimeout, 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.HandleTTL, err = getDuration("HANDLE_TTL", f.HandleTTL, 15*time.Minute); err != nil {
		return nil, err
	}
	if cfg.HandleTTL <= 0 {
		return nil, fmt.Errorf("HANDLE_TTL must be positive")
	}
	if _, err := cron.ParseStandard(cfg.PruneCron); err != nil {
		return nil, fmt.Errorf("invalid PRUNE_CRON: %w", err)
	}

	cfg.OwnerTelegramID = f.Telegram.OwnerID
	if v := os.Getenv("OWNER_TELEGRAM_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("OWNER_TELEGRAM_ID must be a number")
		}
		cfg.OwnerTelegramID = id
	}

	return cfg, nil
}

// RequireTelegram checks the settings the bot cannot run without
func (c *Config) RequireTelegram() error {
	if c.TelegramToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}
	if c.OwnerTelegramID == 0 {
		return fmt.Errorf("OWNER_TELEGRAM_ID is required and must be a number")
	}
	return nil
}

func (c *Config) IsAllowedUser(telegramID int64) bool {
	return telegramID == c.OwnerTelegramID
}

// APIAuthEnabled reports whether the REST API is served
func (c *Config) APIAuthEnabled() bool {
	return c.APIUsername != "" && c.APIPassword != ""
}

// getEnv prefers the environment, then the file value, then the default
func getEnv(key, fileVal, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	if fileVal != "" {
		return fileVal
	}
	return defaultVal
}

func getDuration(key, fileVal string, defaultVal time.Duration) (time.Duration, error) {
	v := getEnv(key, fileVal, "")
	if v == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must not be negative", key)
	}
	return d, nil
}
