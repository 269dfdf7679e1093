package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
)

type OAuthProvider struct {
	Key         string
	Secret      string
	CallbackURL string
}

func (p OAuthProvider) Enabled() bool {
	return p.Key != "" && p.Secret != ""
}

type Config struct {
	Port            int
	DBPath          string
	SessionLifetime time.Duration
	// ResetCascade makes resetting a match also clear the slots its result filled downstream.
	ResetCascade    bool
	AdminEmails     []string
	AllowGuestLogin bool
	Discord         OAuthProvider
	Google          OAuthProvider
	LogFormat       string
	LogLevel        string
}

// Load reads configuration from environment variables, loading a .env file first if one exists.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Info("No .env file found, using environment variables")
	}

	cfg := &Config{
		DBPath:    getEnv("DB_PATH", "club_brackets.db"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		Discord: OAuthProvider{
			Key:         os.Getenv("DISCORD_KEY"),
			Secret:      os.Getenv("DISCORD_SECRET"),
			CallbackURL: os.Getenv("DISCORD_CALLBACK_URL"),
		},
		Google: OAuthProvider{
			Key:         os.Getenv("GOOGLE_KEY"),
			Secret:      os.Getenv("GOOGLE_SECRET"),
			CallbackURL: os.Getenv("GOOGLE_CALLBACK_URL"),
		},
	}

	port, err := strconv.Atoi(getEnv("PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("PORT must be between 1 and 65535, got %d", port)
	}
	cfg.Port = port

	cfg.SessionLifetime, err = time.ParseDuration(getEnv("SESSION_LIFETIME", "24h"))
	if err != nil {
		return nil, fmt.Errorf("invalid SESSION_LIFETIME: %w", err)
	}

	if cfg.ResetCascade, err = getBool("RESET_CASCADE"); err != nil {
		return nil, err
	}
	if cfg.AllowGuestLogin, err = getBool("ALLOW_GUEST_LOGIN"); err != nil {
		return nil, err
	}

	for _, email := range strings.Split(os.Getenv("ADMIN_EMAILS"), ",") {
		if email = strings.TrimSpace(strings.ToLower(email)); email != "" {
			cfg.AdminEmails = append(cfg.AdminEmails, email)
		}
	}

	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return nil, fmt.Errorf("LOG_FORMAT must be text or json, got %q", cfg.LogFormat)
	}
	if _, err := log.ParseLevel(cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	return cfg, nil
}

// IsAdminEmail reports whether logins with this email are promoted to admin.
func (c *Config) IsAdminEmail(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	for _, admin := range c.AdminEmails {
		if admin == email {
			return true
		}
	}
	return false
}

// ConfigureLogger applies the log format and level to the default logger.
func (c *Config) ConfigureLogger() {
	if c.LogFormat == "json" {
		log.SetFormatter(log.JSONFormatter)
	}
	if level, err := log.ParseLevel(c.LogLevel); err == nil {
		log.SetLevel(level)
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getBool(key string) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}
