package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

const (
	defaultHTTPAddr        = ":8080"
	defaultDatabaseURL     = "sportclub.db"
	defaultJWTSecret       = "change-me-jwt-secret"
	defaultJWTTTL          = "24h"
	defaultTimezone        = "UTC"
	defaultMonthlyClasses  = "12"
	defaultCancelCutoff    = "60m"
	defaultMaxRangeDays    = "62"
	defaultNotifyTimeout   = "5s"
	defaultLogLevel        = "info"
	defaultLogFormat       = "json"
	defaultBookingRate     = "1s"
	defaultBookingBurst    = "5"
	defaultRolloverCronOff = ""
)

type Config struct {
	AppEnv      string
	HTTPAddr    string
	DatabaseURL string

	JWTSecret string
	JWTTTL    time.Duration

	Location              *time.Location
	DefaultMonthlyClasses int
	CancelCutoff          time.Duration
	MaxRangeDays          int

	// RolloverCron is a robfig/cron spec; empty disables the in-process job.
	RolloverCron string

	NotifyWebhookURL string
	NotifyTimeout    time.Duration

	// BookingRateEvery and BookingRateBurst bound mutating member requests per user.
	BookingRateEvery time.Duration
	BookingRateBurst int

	LogLevel  string
	LogFormat string

	CORSAllowedOrigins []string
}

// Load reads configuration from the environment, after loading a .env file
// when one is present in the working directory.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = "dev"
	}
	cfg.AppEnv = strings.ToLower(appEnv)

	cfg.HTTPAddr = strings.TrimSpace(getEnv("HTTP_ADDR", defaultHTTPAddr))
	cfg.DatabaseURL = strings.TrimSpace(getEnv("DATABASE_URL", defaultDatabaseURL))
	cfg.JWTSecret = strings.TrimSpace(getEnv("JWT_SECRET", defaultJWTSecret))
	cfg.RolloverCron = strings.TrimSpace(getEnv("ROLLOVER_CRON", defaultRolloverCronOff))
	cfg.NotifyWebhookURL = strings.TrimSpace(getEnv("NOTIFY_WEBHOOK_URL", ""))
	cfg.LogLevel = strings.TrimSpace(getEnv("LOG_LEVEL", defaultLogLevel))
	cfg.LogFormat = strings.TrimSpace(getEnv("LOG_FORMAT", defaultLogFormat))

	var err error
	if cfg.JWTTTL, err = parseDurationEnv("JWT_TTL", defaultJWTTTL); err != nil {
		return nil, err
	}
	if cfg.CancelCutoff, err = parseDurationEnv("CANCEL_CUTOFF", defaultCancelCutoff); err != nil {
		return nil, err
	}
	if cfg.NotifyTimeout, err = parseDurationEnv("NOTIFY_TIMEOUT", defaultNotifyTimeout); err != nil {
		return nil, err
	}
	if cfg.BookingRateEvery, err = parseDurationEnv("BOOKING_RATE_EVERY", defaultBookingRate); err != nil {
		return nil, err
	}
	if cfg.DefaultMonthlyClasses, err = parseIntEnv("DEFAULT_MONTHLY_CLASSES", defaultMonthlyClasses); err != nil {
		return nil, err
	}
	if cfg.MaxRangeDays, err = parseIntEnv("MAX_RANGE_DAYS", defaultMaxRangeDays); err != nil {
		return nil, err
	}
	if cfg.BookingRateBurst, err = parseIntEnv("BOOKING_RATE_BURST", defaultBookingBurst); err != nil {
		return nil, err
	}

	tz := strings.TrimSpace(getEnv("CLUB_TIMEZONE", defaultTimezone))
	cfg.Location, err = time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid CLUB_TIMEZONE value %q: %w", tz, err)
	}

	if extra := os.Getenv("CORS_ALLOWED_ORIGINS"); extra != "" {
		for _, o := range strings.Split(extra, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, o)
			}
		}
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validateConfig(cfg *Config) error {
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL must not be empty")
	}
	if cfg.JWTTTL <= 0 {
		return fmt.Errorf("JWT_TTL must be > 0")
	}
	if cfg.CancelCutoff < 0 {
		return fmt.Errorf("CANCEL_CUTOFF must be >= 0")
	}
	if cfg.DefaultMonthlyClasses < 0 {
		return fmt.Errorf("DEFAULT_MONTHLY_CLASSES must be >= 0")
	}
	if cfg.MaxRangeDays < 1 {
		return fmt.Errorf("MAX_RANGE_DAYS must be >= 1")
	}
	if cfg.BookingRateEvery <= 0 || cfg.BookingRateBurst < 1 {
		return fmt.Errorf("BOOKING_RATE_EVERY must be > 0 and BOOKING_RATE_BURST >= 1")
	}
	if cfg.NotifyWebhookURL != "" && cfg.NotifyTimeout <= 0 {
		return fmt.Errorf("NOTIFY_TIMEOUT must be > 0 when NOTIFY_WEBHOOK_URL is set")
	}
	if isProdLike(cfg.AppEnv) && isEmptyOrDefault(cfg.JWTSecret, defaultJWTSecret) {
		return fmt.Errorf("in prod/release JWT_SECRET must be set and not default")
	}
	return nil
}

func (c *Config) IsProd() bool {
	return isProdLike(c.AppEnv)
}

func isProdLike(env string) bool {
	env = strings.ToLower(strings.TrimSpace(env))
	return env == "prod" || env == "production" || env == "release"
}

func isEmptyOrDefault(v, def string) bool {
	trimmed := strings.TrimSpace(v)
	return trimmed == "" || trimmed == def
}

func parseDurationEnv(name, fallback string) (time.Duration, error) {
	value := strings.TrimSpace(getEnv(name, fallback))
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return d, nil
}

func parseIntEnv(name, fallback string) (int, error) {
	value := strings.TrimSpace(getEnv(name, fallback))
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return n, nil
}

func getEnv(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
