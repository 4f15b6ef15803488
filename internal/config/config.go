package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// DSN builds the postgres connection string.
func (d DatabaseConfig) DSN() string {
	return "postgres://" + d.User + ":" + d.Password + "@" + d.Host + ":" + d.Port + "/" + d.Name + "?sslmode=" + d.SSLMode
}

type RedisConfig struct {
	Enabled  bool
	Address  string
	Password string
	DB       int
}

type MattermostConfig struct {
	URL          string
	BotToken     string
	CommandToken string
	// BotURL is where Mattermost reaches this service for button and dialog callbacks.
	BotURL string
}

type Config struct {
	Env         string
	Port        string
	LogLevel    string
	SentryDSN   string
	JWTSecret   string
	Locale      string
	Timezone    string
	InviteTTL   time.Duration
	SessionTTL  time.Duration
	ActionTTL   time.Duration
	TokenTTL    time.Duration
	CORSOrigins []string
	Database    DatabaseConfig
	Redis       RedisConfig
	Mattermost  MattermostConfig
}

// Load reads configs/.env (when present) and the environment.
func Load() (*Config, error) {
	if err := godotenv.Load("configs/.env"); err != nil {
		logrus.Debug("no configs/.env file found, using environment only")
	}

	cfg := &Config{
		Env:       getEnv("ENV", "development"),
		Port:      getEnv("PORT", "8080"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		SentryDSN: getEnv("SENTRY_DSN", ""),
		JWTSecret: getEnv("JWT_SECRET", ""),
		Locale:    getEnv("BOT_LOCALE", "en"),
		Timezone:  getEnv("BOT_TIMEZONE", "UTC"),
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			Name:     getEnv("DB_NAME", "attendance"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Enabled:  getEnvBool("REDIS_ENABLED", false),
			Address:  getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Mattermost: MattermostConfig{
			URL:          strings.TrimRight(getEnv("MATTERMOST_URL", "http://localhost:8065"), "/"),
			BotToken:     getEnv("MATTERMOST_BOT_TOKEN", ""),
			CommandToken: getEnv("MATTERMOST_COMMAND_TOKEN", ""),
			BotURL:       strings.TrimRight(getEnv("BOT_URL", "http://localhost:8080"), "/"),
		},
		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "http://localhost:5173")),
	}

	var err error
	if cfg.InviteTTL, err = getEnvDuration("INVITE_TTL", 48*time.Hour); err != nil {
		return nil, err
	}
	if cfg.SessionTTL, err = getEnvDuration("SESSION_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.ActionTTL, err = getEnvDuration("ACTION_TTL", 30*24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.TokenTTL, err = getEnvDuration("TOKEN_TTL", 24*time.Hour); err != nil {
		return nil, err
	}

	if cfg.JWTSecret == "" {
		if cfg.Env == "production" {
			return nil, fmt.Errorf("JWT_SECRET is required in production")
		}
		cfg.JWTSecret = "development_secret_change_me"
	}
	return cfg, nil
}

// Location resolves Timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		logrus.WithError(err).Warnf("unknown timezone %q, using UTC", c.Timezone)
		return time.UTC
	}
	return loc
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
