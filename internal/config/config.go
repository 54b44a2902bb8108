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

// Config holds every setting read from the environment.
type Config struct {
	ServerPort  string
	AppEnv      string
	LogLevel    string
	LogFile     string
	CORSOrigins []string

	AdminJWTSecret    string
	AdminPasswordHash string
	AdminTokenTTL     time.Duration

	ReaperInterval time.Duration
	RoomRetention  time.Duration
	HistoryWindow  time.Duration
	MaxGPXBytes    int64

	WSMaxMessageBytes int64
	WSRatePerSecond   float64
	WSRateBurst       int
}

// IsProduction reports whether APP_ENV is "production".
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

const devJWTSecret = "convoy-dev-secret"

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("No .env file found, relying on environment variables")
	}

	cfg := &Config{
		ServerPort:        getEnv("SERVER_PORT", "8080"),
		AppEnv:            getEnv("APP_ENV", "development"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFile:           getEnv("LOG_FILE", ""),
		CORSOrigins:       splitList(getEnv("CORS_ORIGINS", "*")),
		AdminJWTSecret:    getEnv("ADMIN_JWT_SECRET", ""),
		AdminPasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),
	}

	var err error
	if cfg.AdminTokenTTL, err = durationEnv("ADMIN_TOKEN_TTL", 72*time.Hour); err != nil {
		return nil, err
	}
	if cfg.ReaperInterval, err = durationEnv("REAPER_INTERVAL", time.Hour); err != nil {
		return nil, err
	}
	if cfg.RoomRetention, err = durationEnv("ROOM_RETENTION", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.HistoryWindow, err = durationEnv("HISTORY_WINDOW", time.Hour); err != nil {
		return nil, err
	}
	if cfg.MaxGPXBytes, err = int64Env("MAX_GPX_BYTES", 5<<20); err != nil {
		return nil, err
	}
	if cfg.WSMaxMessageBytes, err = int64Env("WS_MAX_MESSAGE_BYTES", 16<<10); err != nil {
		return nil, err
	}
	if cfg.WSRatePerSecond, err = floatEnv("WS_RATE_PER_SECOND", 20); err != nil {
		return nil, err
	}
	burst, err := int64Env("WS_RATE_BURST", 40)
	if err != nil {
		return nil, err
	}
	cfg.WSRateBurst = int(burst)

	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		logrus.Warnf("Invalid LOG_LEVEL '%s', using default 'info'", cfg.LogLevel)
		cfg.LogLevel = "info"
	}
	if cfg.AdminJWTSecret == "" {
		if cfg.IsProduction() {
			return nil, fmt.Errorf("environment variable ADMIN_JWT_SECRET must be set in production")
		}
		logrus.Warn("ADMIN_JWT_SECRET not set, using development secret")
		cfg.AdminJWTSecret = devJWTSecret
	}
	if cfg.ReaperInterval <= 0 {
		return nil, fmt.Errorf("REAPER_INTERVAL must be positive, got %s", cfg.ReaperInterval)
	}
	return cfg, nil
}

// getEnv reads an environment variable or returns the provided default
func getEnv(key, defaultValue string) string {
	if v, exists := os.LookupEnv(key); exists {
		return v
	}
	return defaultValue
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func int64Env(key string, def int64) (int64, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func floatEnv(key string, def float64) (float64, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
