package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Chapa    ChapaConfig
	SMTP     SMTPConfig
	Payment  PaymentConfig
}

type ServerConfig struct {
	Port         string
	Env          string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	DSN             string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

// ChapaConfig holds credentials for the Chapa payment gateway.
type ChapaConfig struct {
	SecretKey string
	BaseURL   string
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type PaymentConfig struct {
	Currency      string
	WebhookSecret string
	// StaleAfter is how long a pending payment may sit unconfirmed before the
	// expiry sweep cancels it.
	StaleAfter    time.Duration
	SweepInterval time.Duration
	QueueSize     int
	Workers       int
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         envOr("PORT", "8080"),
			Env:          envOr("APP_ENV", "development"),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			DSN:             envOr("DATABASE_DSN", "travel:travel@tcp(localhost:3306)/tripstay?charset=utf8mb4&parseTime=True&loc=Local"),
			MaxIdleConns:    10,
			MaxOpenConns:    100,
			ConnMaxLifetime: time.Hour,
		},
		Chapa: ChapaConfig{
			SecretKey: os.Getenv("CHAPA_SECRET_KEY"),
			BaseURL:   envOr("CHAPA_BASE_URL", "https://api.chapa.co/v1"),
		},
		SMTP: SMTPConfig{
			Host:     envOr("SMTP_HOST", "localhost"),
			Port:     envOrInt("SMTP_PORT", 587),
			Username: os.Getenv("SMTP_USERNAME"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     envOr("SMTP_FROM", "bookings@tripstay.example"),
		},
		Payment: PaymentConfig{
			Currency:      "ETB",
			WebhookSecret: os.Getenv("PAYMENT_WEBHOOK_SECRET"),
			StaleAfter:    24 * time.Hour,
			SweepInterval: time.Hour,
			QueueSize:     256,
			Workers:       4,
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
