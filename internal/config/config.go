// Package config builds the server configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

const (
	StorageFile   = "file"
	StorageSQLite = "sqlite"
)

type Config struct {
	HTTPPort string
	LogLevel string

	DataDir        string
	StorageBackend string
	SQLitePath     string

	TokenTTL   time.Duration
	BcryptCost int

	FrontendURL        string
	PublicURL          string
	CORSAllowedOrigins []string

	OAuth OAuthConfig
	AI    AIConfig
}

// OAuthConfig holds the client credentials per provider. A provider with an
// empty client id is disabled.
type OAuthConfig struct {
	GoogleClientID     string
	GoogleClientSecret string
	GitHubClientID     string
	GitHubClientSecret string
	StateSecret        string
}

// AIConfig holds vendor API keys. A vendor without a key is not registered.
type AIConfig struct {
	AnthropicAPIKey  string
	AnthropicBaseURL string
	OpenAIAPIKey     string
	OpenAIBaseURL    string
	GeminiAPIKey     string
}

// Load reads configuration from environment variables. Callers that want
// .env support load it before calling Load.
func Load() (*Config, error) {
	dataDir := getEnv("DATA_DIR", "./data")
	tokenTTL, ttlErr := getEnvDuration("TOKEN_TTL", 30*24*time.Hour)
	bcryptCost, costErr := getEnvInt("BCRYPT_COST", bcrypt.DefaultCost)
	if err := errors.Join(ttlErr, costErr); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	cfg := &Config{
		HTTPPort:       getEnv("HTTP_PORT", "5000"),
		LogLevel:       strings.ToUpper(getEnv("LOG_LEVEL", "INFO")),
		DataDir:        dataDir,
		StorageBackend: strings.ToLower(getEnv("STORAGE_BACKEND", StorageFile)),
		SQLitePath:     getEnv("SQLITE_PATH", filepath.Join(dataDir, "globalassist.db")),
		TokenTTL:       tokenTTL,
		BcryptCost:     bcryptCost,
		FrontendURL:    strings.TrimRight(getEnv("FRONTEND_URL", "http://localhost:5173"), "/"),
		PublicURL:      strings.TrimRight(getEnv("PUBLIC_URL", "http://localhost:5000"), "/"),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS",
			[]string{"http://localhost:5173", "http://localhost:3000"}),
		OAuth: OAuthConfig{
			GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
			GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
			GitHubClientID:     getEnv("GITHUB_CLIENT_ID", ""),
			GitHubClientSecret: getEnv("GITHUB_CLIENT_SECRET", ""),
			StateSecret:        getEnv("OAUTH_STATE_SECRET", ""),
		},
		AI: AIConfig{
			AnthropicAPIKey:  getEnv("ANTHROPIC_API_KEY", ""),
			AnthropicBaseURL: getEnv("ANTHROPIC_BASE_URL", ""),
			OpenAIAPIKey:     getEnv("OPENAI_API_KEY", ""),
			OpenAIBaseURL:    getEnv("OPENAI_BASE_URL", ""),
			GeminiAPIKey:     getEnv("GEMINI_API_KEY", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.HTTPPort == "" {
		return fmt.Errorf("HTTP_PORT cannot be empty")
	}
	switch c.StorageBackend {
	case StorageFile:
		if c.DataDir == "" {
			return fmt.Errorf("DATA_DIR cannot be empty")
		}
	case StorageSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH cannot be empty")
		}
	default:
		return fmt.Errorf("STORAGE_BACKEND must be %q or %q, got %q", StorageFile, StorageSQLite, c.StorageBackend)
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be > 0")
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("BCRYPT_COST must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	if (c.OAuth.GoogleClientID == "") != (c.OAuth.GoogleClientSecret == "") {
		return fmt.Errorf("GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET must be set together")
	}
	if (c.OAuth.GitHubClientID == "") != (c.OAuth.GitHubClientSecret == "") {
		return fmt.Errorf("GITHUB_CLIENT_ID and GITHUB_CLIENT_SECRET must be set together")
	}
	return nil
}

// SlogLevel maps LOG_LEVEL to a slog level; unknown values mean INFO.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SecureCookies reports whether cookies should carry the Secure flag.
func (c *Config) SecureCookies() bool {
	return strings.HasPrefix(c.PublicURL, "https://")
}

func (c *Config) GoogleEnabled() bool { return c.OAuth.GoogleClientID != "" }

func (c *Config) GitHubEnabled() bool { return c.OAuth.GitHubClientID != "" }

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// getEnvInt returns fallback only when key is unset; a value that does not
// parse is an error rather than a silent default.
func getEnvInt(key string, fallback int) (int, error) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q", key, value)
	}
	return n, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q (use Go syntax such as 720h)", key, value)
	}
	return d, nil
}

func getEnvList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
