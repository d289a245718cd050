package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Chat backend names.
const (
	ChatBackendRemote = "remote"
	ChatBackendLLM    = "llm"
)

// Config aggregates runtime configuration used across the service.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Auth     AuthConfig     `yaml:"auth"`
	LLM      LLMConfig      `yaml:"llm"`
	Chat     ChatConfig     `yaml:"chat"`
	Health   HealthConfig   `yaml:"health"`
	Postgres PostgresConfig `yaml:"postgres"`
	Valkey   ValkeyConfig   `yaml:"valkey"`
	Archive  ArchiveConfig  `yaml:"archive"`
}

// HTTPConfig controls server level behavior.
type HTTPConfig struct {
	Address        string          `yaml:"address"`
	ReadTimeout    time.Duration   `yaml:"readTimeout"`
	WriteTimeout   time.Duration   `yaml:"writeTimeout"`
	AllowedOrigins []string        `yaml:"allowedOrigins"`
	RateLimit      RateLimitConfig `yaml:"rateLimit"`
	Retry          RetryConfig     `yaml:"retry"`
}

// RateLimitConfig drives the request limiting middleware.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requestsPerMinute"`
	Burst             int  `yaml:"burst"`
}

// RetryConfig configures best-effort retries for idempotent requests.
type RetryConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxAttempts int           `yaml:"maxAttempts"`
	BaseBackoff time.Duration `yaml:"baseBackoff"`
	Exclude     []string      `yaml:"exclude"`
}

// AuthConfig holds token signing and Google sign-in settings.
type AuthConfig struct {
	Secret          string        `yaml:"secret"`
	TokenTTL        time.Duration `yaml:"tokenTtl"`
	RefreshTokenTTL time.Duration `yaml:"refreshTokenTtl"`
	Google          GoogleConfig  `yaml:"google"`
}

// GoogleConfig holds OAuth client settings.
type GoogleConfig struct {
	ClientID             string `yaml:"clientId"`
	ClientSecret         string `yaml:"clientSecret"`
	RedirectURL          string `yaml:"redirectUrl"`
	TokenEncryptionKey   string `yaml:"tokenEncryptionKey"`
	PostLoginRedirectURL string `yaml:"postLoginRedirectUrl"`
}

// LLMConfig contains OpenAI compatible API settings.
type LLMConfig struct {
	APIKey      string        `yaml:"apiKey"`
	BaseURL     string        `yaml:"baseUrl"`
	Model       string        `yaml:"model"`
	Temperature float32       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
}

// ChatConfig selects and tunes the chat relay.
type ChatConfig struct {
	Backend          string        `yaml:"backend"`
	RemoteBaseURL    string        `yaml:"remoteBaseUrl"`
	Timeout          time.Duration `yaml:"timeout"`
	MaxHistoryTokens int           `yaml:"maxHistoryTokens"`
	HistoryLimit     int           `yaml:"historyLimit"`
	HealthContext    bool          `yaml:"healthContext"`
	SystemPrompt     string        `yaml:"systemPrompt"`
	Encoding         string        `yaml:"encoding"`
}

// HealthConfig tunes metric windows and caching.
type HealthConfig struct {
	Timezone         string        `yaml:"timezone"`
	WindowDays       int           `yaml:"windowDays"`
	MaxWindowDays    int           `yaml:"maxWindowDays"`
	CacheTTL         time.Duration `yaml:"cacheTtl"`
	FetchTimeout     time.Duration `yaml:"fetchTimeout"`
	MaxIngestSamples int           `yaml:"maxIngestSamples"`
	SourcePreference []string      `yaml:"sourcePreference"`
}

// PostgresConfig contains DSN and pooling settings.
type PostgresConfig struct {
	DSN      string `yaml:"dsn"`
	MaxConns int32  `yaml:"maxConns"`
	MinConns int32  `yaml:"minConns"`
}

// ValkeyConfig contains connection information for cache storage.
type ValkeyConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Addr      string `yaml:"addr"`
	KeyPrefix string `yaml:"keyPrefix"`
}

// ArchiveConfig points at S3 compatible storage for raw ingest payloads.
type ArchiveConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Endpoint        string `yaml:"endpoint"`
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"accessKeyId"`
	SecretAccessKey string `yaml:"secretAccessKey"`
	UseSSL          bool   `yaml:"useSsl"`
}

// Location resolves the configured timezone.
func (h HealthConfig) Location() (*time.Location, error) {
	if strings.TrimSpace(h.Timezone) == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(h.Timezone)
}

// Load reads configuration from .env, a YAML file and environment variables.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := defaultConfig()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := hydrateFromFile(cfg, path); err != nil {
			return nil, err
		}
	} else if _, err := os.Stat("configs/config.yaml"); err == nil {
		if err := hydrateFromFile(cfg, "configs/config.yaml"); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func hydrateFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	envString("HTTP_ADDRESS", &cfg.HTTP.Address)
	envList("HTTP_ALLOWED_ORIGINS", &cfg.HTTP.AllowedOrigins)
	envBool("HTTP_RATE_LIMIT_ENABLED", &cfg.HTTP.RateLimit.Enabled)
	envInt("HTTP_RATE_LIMIT_RPM", &cfg.HTTP.RateLimit.RequestsPerMinute)
	envInt("HTTP_RATE_LIMIT_BURST", &cfg.HTTP.RateLimit.Burst)
	envBool("HTTP_RETRY_ENABLED", &cfg.HTTP.Retry.Enabled)
	envInt("HTTP_RETRY_MAX_ATTEMPTS", &cfg.HTTP.Retry.MaxAttempts)
	envDuration("HTTP_RETRY_BASE_BACKOFF", &cfg.HTTP.Retry.BaseBackoff)

	envString("AUTH_SECRET", &cfg.Auth.Secret)
	envDuration("AUTH_TOKEN_TTL", &cfg.Auth.TokenTTL)
	envDuration("AUTH_REFRESH_TOKEN_TTL", &cfg.Auth.RefreshTokenTTL)
	envString("GOOGLE_CLIENT_ID", &cfg.Auth.Google.ClientID)
	envString("GOOGLE_CLIENT_SECRET", &cfg.Auth.Google.ClientSecret)
	envString("GOOGLE_REDIRECT_URL", &cfg.Auth.Google.RedirectURL)
	envString("GOOGLE_TOKEN_ENCRYPTION_KEY", &cfg.Auth.Google.TokenEncryptionKey)
	envString("GOOGLE_POST_LOGIN_REDIRECT_URL", &cfg.Auth.Google.PostLoginRedirectURL)

	envString("LLM_API_KEY", &cfg.LLM.APIKey)
	envString("LLM_BASE_URL", &cfg.LLM.BaseURL)
	envString("LLM_MODEL", &cfg.LLM.Model)
	if v := os.Getenv("LLM_TEMPERATURE"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 32); err == nil {
			cfg.LLM.Temperature = float32(parsed)
		}
	}
	envDuration("LLM_TIMEOUT", &cfg.LLM.Timeout)

	envString("CHAT_BACKEND", &cfg.Chat.Backend)
	envString("CHAT_REMOTE_BASE_URL", &cfg.Chat.RemoteBaseURL)
	envDuration("CHAT_TIMEOUT", &cfg.Chat.Timeout)
	envInt("CHAT_MAX_HISTORY_TOKENS", &cfg.Chat.MaxHistoryTokens)
	envInt("CHAT_HISTORY_LIMIT", &cfg.Chat.HistoryLimit)
	envBool("CHAT_HEALTH_CONTEXT", &cfg.Chat.HealthContext)
	envString("CHAT_SYSTEM_PROMPT", &cfg.Chat.SystemPrompt)

	envString("HEALTH_TIMEZONE", &cfg.Health.Timezone)
	envInt("HEALTH_WINDOW_DAYS", &cfg.Health.WindowDays)
	envInt("HEALTH_MAX_WINDOW_DAYS", &cfg.Health.MaxWindowDays)
	envDuration("HEALTH_CACHE_TTL", &cfg.Health.CacheTTL)
	envDuration("HEALTH_FETCH_TIMEOUT", &cfg.Health.FetchTimeout)
	envInt("HEALTH_MAX_INGEST_SAMPLES", &cfg.Health.MaxIngestSamples)
	envList("HEALTH_SOURCE_PREFERENCE", &cfg.Health.SourcePreference)

	envString("POSTGRES_DSN", &cfg.Postgres.DSN)
	if v := os.Getenv("POSTGRES_MAX_CONNS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.MaxConns = int32(parsed)
		}
	}
	if v := os.Getenv("POSTGRES_MIN_CONNS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.MinConns = int32(parsed)
		}
	}

	envBool("VALKEY_ENABLED", &cfg.Valkey.Enabled)
	envString("VALKEY_ADDR", &cfg.Valkey.Addr)
	envString("VALKEY_KEY_PREFIX", &cfg.Valkey.KeyPrefix)

	envBool("ARCHIVE_ENABLED", &cfg.Archive.Enabled)
	envString("ARCHIVE_ENDPOINT", &cfg.Archive.Endpoint)
	envString("ARCHIVE_BUCKET", &cfg.Archive.Bucket)
	envString("ARCHIVE_REGION", &cfg.Archive.Region)
	envString("ARCHIVE_ACCESS_KEY_ID", &cfg.Archive.AccessKeyID)
	envString("ARCHIVE_SECRET_ACCESS_KEY", &cfg.Archive.SecretAccessKey)
	envBool("ARCHIVE_USE_SSL", &cfg.Archive.UseSSL)
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			*dst = parsed
		}
	}
}

func envBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		*dst = v == "1" || strings.EqualFold(v, "true")
	}
}

func envDuration(key string, dst *time.Duration) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			*dst = parsed
		}
	}
}

func envList(key string, dst *[]string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	var items []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	*dst = items
}

func defaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Address:        ":8080",
			ReadTimeout:    5 * time.Second,
			WriteTimeout:   60 * time.Second,
			AllowedOrigins: []string{"*"},
			RateLimit: RateLimitConfig{
				Enabled:           true,
				RequestsPerMinute: 60,
				Burst:             20,
			},
			Retry: RetryConfig{
				Enabled:     true,
				MaxAttempts: 3,
				BaseBackoff: 150 * time.Millisecond,
				Exclude: []string{
					"/chat",
					"/api/v1/chat",
					"/api/v1/health/samples",
				},
			},
		},
		Auth: AuthConfig{
			Secret:          "dev-secret-change-me",
			TokenTTL:        time.Hour,
			RefreshTokenTTL: 30 * 24 * time.Hour,
		},
		LLM: LLMConfig{
			Model:       "gpt-4o-mini",
			Temperature: 0.4,
			Timeout:     60 * time.Second,
		},
		Chat: ChatConfig{
			Backend:          ChatBackendRemote,
			RemoteBaseURL:    "http://localhost:8000",
			Timeout:          30 * time.Second,
			MaxHistoryTokens: 3000,
			HistoryLimit:     50,
			HealthContext:    true,
			SystemPrompt:     "You are a supportive health coach. Use the user's recent health metrics when they are relevant, keep answers short, and never give a medical diagnosis.",
			Encoding:         "cl100k_base",
		},
		Health: HealthConfig{
			Timezone:         "UTC",
			WindowDays:       7,
			MaxWindowDays:    90,
			CacheTTL:         5 * time.Minute,
			FetchTimeout:     5 * time.Second,
			MaxIngestSamples: 5000,
			SourcePreference: []string{"oura", "apple watch", "iphone"},
		},
		Postgres: PostgresConfig{
			MaxConns: 4,
		},
		Valkey: ValkeyConfig{
			KeyPrefix: "health",
		},
	}
}

// Validate ensures the configuration is safe to use.
func (c *Config) Validate() error {
	if c.HTTP.Address == "" {
		return errors.New("http.address cannot be empty")
	}
	if c.HTTP.RateLimit.Enabled {
		if c.HTTP.RateLimit.RequestsPerMinute <= 0 {
			return errors.New("http.rateLimit.requestsPerMinute must be positive")
		}
		if c.HTTP.RateLimit.Burst <= 0 {
			return errors.New("http.rateLimit.burst must be positive")
		}
	}
	if c.HTTP.Retry.Enabled {
		if c.HTTP.Retry.MaxAttempts <= 0 {
			return errors.New("http.retry.maxAttempts must be positive")
		}
		if c.HTTP.Retry.BaseBackoff <= 0 {
			return errors.New("http.retry.baseBackoff must be positive")
		}
	}
	if strings.TrimSpace(c.Auth.Secret) == "" {
		return errors.New("auth.secret cannot be empty")
	}
	if c.Auth.TokenTTL <= 0 || c.Auth.RefreshTokenTTL <= 0 {
		return errors.New("auth token ttls must be positive")
	}
	switch c.Chat.Backend {
	case ChatBackendRemote:
		if strings.TrimSpace(c.Chat.RemoteBaseURL) == "" {
			return errors.New("chat.remoteBaseUrl cannot be empty for the remote backend")
		}
	case ChatBackendLLM:
		if strings.TrimSpace(c.LLM.APIKey) == "" {
			return errors.New("llm.apiKey cannot be empty for the llm backend")
		}
		if strings.TrimSpace(c.LLM.Model) == "" {
			return errors.New("llm.model cannot be empty for the llm backend")
		}
	default:
		return fmt.Errorf("chat.backend must be %q or %q", ChatBackendRemote, ChatBackendLLM)
	}
	if c.Chat.MaxHistoryTokens <= 0 {
		return errors.New("chat.maxHistoryTokens must be positive")
	}
	if c.Chat.HistoryLimit <= 0 {
		return errors.New("chat.historyLimit must be positive")
	}
	if _, err := c.Health.Location(); err != nil {
		return fmt.Errorf("health.timezone: %w", err)
	}
	if c.Health.WindowDays <= 0 {
		return errors.New("health.windowDays must be positive")
	}
	if c.Health.MaxWindowDays < c.Health.WindowDays {
		return errors.New("health.maxWindowDays cannot be below health.windowDays")
	}
	if c.Health.CacheTTL < 0 {
		return errors.New("health.cacheTtl cannot be negative")
	}
	if c.Health.MaxIngestSamples <= 0 {
		return errors.New("health.maxIngestSamples must be positive")
	}
	if c.Valkey.Enabled && strings.TrimSpace(c.Valkey.Addr) == "" {
		return errors.New("valkey.addr cannot be empty when valkey is enabled")
	}
	if c.Archive.Enabled && (strings.TrimSpace(c.Archive.Endpoint) == "" || strings.TrimSpace(c.Archive.Bucket) == "") {
		return errors.New("archive.endpoint and archive.bucket are required when the archive is enabled")
	}
	return nil
}
