package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const defaultDSN = "host=localhost user=postgres password=postgres dbname=chemtrack port=5432 sslmode=disable"

type Config struct {
	HTTPPort    string
	Env         string // "development" | "production"
	CORSOrigins string

	DatabaseDriver string // "postgres" | "sqlite"
	DatabaseDSN    string

	JWTSecret string
	JWTTTL    time.Duration

	Timezone string

	LowStock LowStockConfig
	Mail     MailConfig
}

// LowStockConfig drives the scheduled sweep and the optional notification cooldown.
type LowStockConfig struct {
	CronSchedule string
	Cooldown     time.Duration // 0 = notify on every check
	RedisURL     string        // cooldown state lives in redis when set
}

type MailConfig struct {
	Provider string // "smtp" | "sendgrid" | "" (log only)

	SMTPHost string
	SMTPPort int
	SMTPUser string
	SMTPPass string

	SendGridAPIKey  string
	SendGridBaseURL string

	From      string
	Recipient string // NOTIFICATION_EMAIL
}

// Load reads an optional env file and then the process environment.
// A missing env file is not an error.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed loading env file %s: %w", envFile, err)
		}
	} else {
		_ = godotenv.Load()
	}

	cfg := &Config{
		HTTPPort:       getEnv("HTTP_PORT", "3000"),
		Env:            getEnv("APP_ENV", "development"),
		CORSOrigins:    getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
		DatabaseDriver: getEnv("DATABASE_DRIVER", "postgres"),
		DatabaseDSN:    getEnv("DATABASE_DSN", defaultDSN),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		Timezone:       getEnv("TIMEZONE", "Local"),
		LowStock: LowStockConfig{
			CronSchedule: getEnv("LOW_STOCK_CRON", "0 9 * * *"),
			RedisURL:     os.Getenv("REDIS_URL"),
		},
		Mail: MailConfig{
			Provider:        strings.ToLower(os.Getenv("MAIL_PROVIDER")),
			SMTPHost:        getEnv("SMTP_HOST", "smtp.gmail.com"),
			SMTPUser:        os.Getenv("SMTP_USER"),
			SMTPPass:        os.Getenv("SMTP_PASS"),
			SendGridAPIKey:  os.Getenv("SENDGRID_API_KEY"),
			SendGridBaseURL: getEnv("SENDGRID_BASE_URL", "https://api.sendgrid.com"),
			From:            os.Getenv("MAIL_FROM"),
			Recipient:       os.Getenv("NOTIFICATION_EMAIL"),
		},
	}

	var err error
	if cfg.JWTTTL, err = getDuration("JWT_TTL", 7*24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.LowStock.Cooldown, err = getDuration("LOW_STOCK_COOLDOWN", 0); err != nil {
		return nil, err
	}
	if cfg.Mail.SMTPPort, err = getInt("SMTP_PORT", 587); err != nil {
		return nil, err
	}

	// Provider is inferred from credentials when not set explicitly.
	if cfg.Mail.Provider == "" {
		switch {
		case cfg.Mail.SMTPUser != "" && cfg.Mail.SMTPPass != "":
			cfg.Mail.Provider = "smtp"
		case cfg.Mail.SendGridAPIKey != "":
			cfg.Mail.Provider = "sendgrid"
		}
	}
	if cfg.Mail.From == "" {
		cfg.Mail.From = cfg.Mail.SMTPUser
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate ensures required settings are present and consistent.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if c.HTTPPort == "" {
		return errors.New("HTTP_PORT must not be empty")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET must be provided")
	}
	if len(c.JWTSecret) < 32 {
		return errors.New("JWT_SECRET must be at least 32 characters")
	}
	switch c.DatabaseDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("DATABASE_DRIVER must be postgres or sqlite, got %q", c.DatabaseDriver)
	}
	if c.DatabaseDSN == "" {
		return errors.New("DATABASE_DSN must not be empty")
	}
	if c.LowStock.CronSchedule == "" {
		return errors.New("LOW_STOCK_CRON must not be empty")
	}
	if c.LowStock.Cooldown < 0 {
		return errors.New("LOW_STOCK_COOLDOWN must not be negative")
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("TIMEZONE: %w", err)
	}

	switch c.Mail.Provider {
	case "":
	case "smtp":
		if c.Mail.SMTPUser == "" || c.Mail.SMTPPass == "" {
			return errors.New("SMTP_USER and SMTP_PASS must be provided for MAIL_PROVIDER=smtp")
		}
	case "sendgrid":
		if c.Mail.SendGridAPIKey == "" {
			return errors.New("SENDGRID_API_KEY must be provided for MAIL_PROVIDER=sendgrid")
		}
		if c.Mail.From == "" {
			return errors.New("MAIL_FROM must be provided for MAIL_PROVIDER=sendgrid")
		}
	default:
		return fmt.Errorf("unknown MAIL_PROVIDER %q", c.Mail.Provider)
	}
	return nil
}

// Location resolves Timezone; month and day boundaries are computed in it.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// Warnings lists settings that are fine for development but suspicious in production.
func (c *Config) Warnings() []string {
	var out []string
	if c.DatabaseDSN == defaultDSN {
		out = append(out, "DATABASE_DSN is using the default value, set your own postgres connection for production")
	}
	if c.CORSOrigins == "http://localhost:5173" {
		out = append(out, "CORS_ALLOWED_ORIGINS is using the default value, set your frontend domain for production")
	}
	if c.Mail.Provider == "" {
		out = append(out, "no mail provider configured, low stock alerts will only be logged")
	} else if c.Mail.Recipient == "" {
		out = append(out, "NOTIFICATION_EMAIL is empty, low stock alerts will only be logged")
	}
	return out
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func getInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}
