package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/health-insight/internal/domain/auth"
	"github.com/yanqian/health-insight/internal/domain/chat"
	"github.com/yanqian/health-insight/internal/domain/healthdata"
	"github.com/yanqian/health-insight/internal/infra/archive"
	"github.com/yanqian/health-insight/internal/infra/chatbackend"
	"github.com/yanqian/health-insight/internal/infra/chatlog"
	"github.com/yanqian/health-insight/internal/infra/config"
	"github.com/yanqian/health-insight/internal/infra/healthcache"
	"github.com/yanqian/health-insight/internal/infra/healthstore"
	"github.com/yanqian/health-insight/internal/infra/llm/chatgpt"
	"github.com/yanqian/health-insight/internal/infra/tokenizer"
	"github.com/yanqian/health-insight/internal/infra/userrepo"
	httpiface "github.com/yanqian/health-insight/internal/interface/http"
)

// providePostgresPool returns a nil pool when no DSN is configured or the
// database is unreachable; repositories then fall back to memory.
func providePostgresPool(cfg *config.Config, logger *slog.Logger) (*pgxpool.Pool, func()) {
	noop := func() {}
	dsn := strings.TrimSpace(cfg.Postgres.DSN)
	if dsn == "" {
		logger.Info("postgres dsn not set, using memory repositories")
		return nil, noop
	}
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		logger.Error("invalid postgres dsn, using memory repositories", "error", err)
		return nil, noop
	}
	if cfg.Postgres.MaxConns > 0 {
		poolConfig.MaxConns = cfg.Postgres.MaxConns
	}
	if cfg.Postgres.MinConns > 0 {
		poolConfig.MinConns = cfg.Postgres.MinConns
	}
	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		logger.Error("failed to initialize postgres pool, using memory repositories", "error", err)
		return nil, noop
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		logger.Error("postgres ping failed, using memory repositories", "error", err)
		pool.Close()
		return nil, noop
	}
	logger.Info("postgres repositories enabled")
	return pool, pool.Close
}

// provideValkeyClient returns nil when Valkey is disabled or unreachable.
func provideValkeyClient(cfg *config.Config, logger *slog.Logger) (valkey.Client, func()) {
	noop := func() {}
	if !cfg.Valkey.Enabled {
		return nil, noop
	}
	opt, err := buildValkeyOptions(cfg.Valkey.Addr)
	if err != nil {
		logger.Error("invalid valkey configuration, falling back to memory cache", "error", err)
		return nil, noop
	}
	client, err := valkey.NewClient(opt)
	if err != nil {
		logger.Error("failed to create valkey client, falling back to memory cache", "error", err)
		return nil, noop
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		logger.Error("valkey ping failed, falling back to memory cache", "error", err)
		client.Close()
		return nil, noop
	}
	logger.Info("valkey snapshot cache enabled", "addr", cfg.Valkey.Addr)
	return client, client.Close
}

func buildValkeyOptions(addr string) (valkey.ClientOption, error) {
	if strings.Contains(addr, "://") {
		return valkey.ParseURL(addr)
	}
	return valkey.ClientOption{InitAddress: []string{addr}}, nil
}

func provideAuthConfig(cfg *config.Config) auth.Config {
	google := cfg.Auth.Google
	return auth.Config{
		Secret:          cfg.Auth.Secret,
		TokenTTL:        cfg.Auth.TokenTTL,
		RefreshTokenTTL: cfg.Auth.RefreshTokenTTL,
		Google: auth.GoogleConfig{
			ClientID:             google.ClientID,
			ClientSecret:         google.ClientSecret,
			RedirectURL:          google.RedirectURL,
			TokenEncryptionKey:   google.TokenEncryptionKey,
			PostLoginRedirectURL: google.PostLoginRedirectURL,
		},
	}
}

func provideAuthRepository(pool *pgxpool.Pool) auth.Repository {
	if pool == nil {
		return userrepo.NewMemoryRepository()
	}
	return userrepo.NewPostgresRepository(pool)
}

func provideHealthConfig(cfg *config.Config) (healthdata.Config, error) {
	loc, err := cfg.Health.Location()
	if err != nil {
		return healthdata.Config{}, fmt.Errorf("load health timezone: %w", err)
	}
	return healthdata.Config{
		Location:         loc,
		WindowDays:       cfg.Health.WindowDays,
		MaxWindowDays:    cfg.Health.MaxWindowDays,
		CacheTTL:         cfg.Health.CacheTTL,
		FetchTimeout:     cfg.Health.FetchTimeout,
		MaxIngestSamples: cfg.Health.MaxIngestSamples,
		SourcePreference: cfg.Health.SourcePreference,
	}, nil
}

func provideHealthStore(pool *pgxpool.Pool) healthdata.Store {
	if pool == nil {
		return healthstore.NewMemoryStore()
	}
	return healthstore.NewPostgresStore(pool)
}

func provideSnapshotCache(cfg *config.Config, client valkey.Client) healthdata.SnapshotCache {
	if client == nil {
		return healthcache.NewMemoryCache()
	}
	return healthcache.NewValkeyCache(client, cfg.Valkey.KeyPrefix)
}

func provideArchive(cfg *config.Config, logger *slog.Logger) healthdata.Archive {
	if !cfg.Archive.Enabled {
		return nil
	}
	a := cfg.Archive
	store, err := archive.NewS3Archive(a.Endpoint, a.AccessKeyID, a.SecretAccessKey, a.Bucket, a.Region, a.UseSSL, logger)
	if err != nil {
		logger.Error("failed to init ingest archive, archiving disabled", "error", err)
		return nil
	}
	logger.Info("ingest archive enabled", "bucket", a.Bucket)
	return store
}

func provideHealthContext(svc healthdata.Service) chat.HealthContextProvider {
	return svc
}

func provideChatConfig(cfg *config.Config) chat.Config {
	return chat.Config{
		MaxHistoryTokens: cfg.Chat.MaxHistoryTokens,
		HistoryLimit:     cfg.Chat.HistoryLimit,
		HealthContext:    cfg.Chat.HealthContext,
		SystemPrompt:     cfg.Chat.SystemPrompt,
		BackendTimeout:   cfg.Chat.Timeout,
	}
}

func provideChatLog(pool *pgxpool.Pool) chat.MessageLog {
	if pool == nil {
		return chatlog.NewMemoryLog()
	}
	return chatlog.NewPostgresLog(pool)
}

func provideTokenCounter(cfg *config.Config, logger *slog.Logger) chat.TokenCounter {
	counter, err := tokenizer.New(cfg.LLM.Model, cfg.Chat.Encoding)
	if err != nil {
		logger.Warn("tiktoken unavailable, approximating token counts", "error", err)
		return tokenizer.Approximate{}
	}
	return counter
}

func provideChatBackend(cfg *config.Config, logger *slog.Logger) (chat.Backend, error) {
	switch cfg.Chat.Backend {
	case config.ChatBackendLLM:
		client, err := chatgpt.NewClient(cfg.LLM.APIKey, cfg.LLM.BaseURL, cfg.LLM.Timeout)
		if err != nil {
			return nil, err
		}
		backend, err := chatbackend.NewLLM(client, cfg.LLM.Model, cfg.LLM.Temperature)
		if err != nil {
			return nil, err
		}
		logger.Info("chat backend selected", "backend", config.ChatBackendLLM, "model", cfg.LLM.Model)
		return backend, nil
	default:
		backend, err := chatbackend.NewRemote(cfg.Chat.RemoteBaseURL, cfg.Chat.Timeout)
		if err != nil {
			return nil, err
		}
		logger.Info("chat backend selected", "backend", config.ChatBackendRemote, "baseUrl", cfg.Chat.RemoteBaseURL)
		return backend, nil
	}
}

func provideHandler(cfg *config.Config, authSvc auth.Service, healthSvc healthdata.Service, chatSvc chat.Service, logger *slog.Logger) *httpiface.Handler {
	return httpiface.NewHandler(authSvc, healthSvc, chatSvc, cfg.Auth.Google.PostLoginRedirectURL, logger)
}
