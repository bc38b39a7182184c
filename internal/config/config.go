package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Config holds every externally tunable knob of the service. Values come from
// FINTRACK_* environment variables with sensible dev defaults.
type Config struct {
	Addr   string
	PGDSN  string
	AppURL string

	AuthSecret        string
	TokenTTL          time.Duration
	RefreshTTL        time.Duration
	ResetTTL          time.Duration
	InactivityMinutes int

	SMTPHost     string
	SMTPPort     string
	SMTPUser     string
	SMTPPassword string
	SMTPFrom     string

	RateBurst  int
	RatePerSec int
}

// InactivityWindow returns the session inactivity window as a duration.
func (c Config) InactivityWindow() time.Duration {
	return time.Duration(c.InactivityMinutes) * time.Minute
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("invalid int for %s, using default: %v", key, err)
		return def
	}
	return i
}

func getDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("invalid duration for %s, using default: %v", key, err)
		return def
	}
	return d
}

// Load reads the configuration from the environment.
func Load() Config {
	return Config{
		Addr:   getenv("FINTRACK_ADDR", ":8080"),
		PGDSN:  getenv("FINTRACK_PG_DSN", ""),
		AppURL: getenv("FINTRACK_APP_URL", "http://localhost:8080"),

		AuthSecret:        getenv("FINTRACK_AUTH_SECRET", ""),
		TokenTTL:          getDuration("FINTRACK_TOKEN_TTL", 15*time.Minute),
		RefreshTTL:        getDuration("FINTRACK_REFRESH_TTL", time.Hour),
		ResetTTL:          getDuration("FINTRACK_RESET_TTL", time.Hour),
		InactivityMinutes: getInt("FINTRACK_SESSION_TIMEOUT_MINUTES", 30),

		SMTPHost:     getenv("FINTRACK_SMTP_HOST", ""),
		SMTPPort:     getenv("FINTRACK_SMTP_PORT", "587"),
		SMTPUser:     getenv("FINTRACK_SMTP_USER", ""),
		SMTPPassword: getenv("FINTRACK_SMTP_PASSWORD", ""),
		SMTPFrom:     getenv("FINTRACK_SMTP_FROM", ""),

		RateBurst:  getInt("FINTRACK_RATE_BURST", 20),
		RatePerSec: getInt("FINTRACK_RATE_PER_SEC", 10),
	}
}
