package main

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"globalassist.com/backend/internal/api"
	"globalassist.com/backend/internal/auth"
	"globalassist.com/backend/internal/catalog"
	"globalassist.com/backend/internal/config"
	"globalassist.com/backend/internal/core"
	"globalassist.com/backend/internal/store"
)

const oauthStateTTL = 10 * time.Minute

func runServe(cfg *config.Config, logger *slog.Logger) error {
	rs, err := openRecordStore(cfg, logger)
	if err != nil {
		return err
	}
	defer rs.Close()

	cat, err := catalog.Load()
	if err != nil {
		return err
	}

	ctx := context.Background()
	providers, err := buildAIProviders(ctx, cfg.AI)
	if err != nil {
		return err
	}
	llmService := core.NewLLMService(cat, logger, providers...)
	defer llmService.Close()
	if len(providers) == 0 {
		logger.Warn("no AI API keys configured, generation will serve demo content")
	}

	stateSecret, err := oauthStateSecret(cfg.OAuth.StateSecret, logger)
	if err != nil {
		return err
	}

	users := core.NewUserDirectory(rs, cfg.BcryptCost, logger)
	history := core.NewHistoryLog(rs, logger)
	apiHandler := api.NewAPIHandler(api.HandlerOptions{
		Users:          users,
		Sessions:       core.NewSessionManager(rs, cfg.TokenTTL, logger),
		History:        history,
		Generation:     core.NewGenerationService(users, history, llmService, cat, logger),
		Catalog:        cat,
		OAuthProviders: buildOAuthProviders(cfg),
		StateSigner:    auth.NewStateSigner(stateSecret, oauthStateTTL),
		FrontendURL:    cfg.FrontendURL,
		SecureCookies:  cfg.SecureCookies(),
		Logger:         logger,
	})
	router := api.NewRouter(apiHandler, cfg.CORSAllowedOrigins)

	serverAddr := fmt.Sprintf(":%s", cfg.HTTPPort)
	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second, // model calls can take a while
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", serverAddr, "storage", cfg.StorageBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("could not listen on %s: %w", serverAddr, err)
		}
	case <-quit:
	}
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("server exited gracefully")
	return nil
}

func runPruneSessions(cfg *config.Config, logger *slog.Logger) error {
	rs, err := openRecordStore(cfg, logger)
	if err != nil {
		return err
	}
	defer rs.Close()

	n, err := core.NewSessionManager(rs, cfg.TokenTTL, logger).PruneExpired()
	if err != nil {
		return fmt.Errorf("prune sessions: %w", err)
	}
	fmt.Printf("Removed %d expired session(s)\n", n)
	return nil
}

func openRecordStore(cfg *config.Config, logger *slog.Logger) (*store.RecordStore, error) {
	var (
		backend store.Backend
		err     error
	)
	switch cfg.StorageBackend {
	case config.StorageSQLite:
		if err = os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		backend, err = store.NewSQLiteBackend(cfg.SQLitePath)
	default:
		backend, err = store.NewFileBackend(cfg.DataDir)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s storage: %w", cfg.StorageBackend, err)
	}
	return store.NewRecordStore(backend, logger), nil
}

// buildAIProviders registers a provider for every vendor that has an API key.
func buildAIProviders(ctx context.Context, cfg config.AIConfig) ([]core.AIProvider, error) {
	var providers []core.AIProvider
	if cfg.AnthropicAPIKey != "" {
		providers = append(providers, core.NewAnthropicProvider(cfg.AnthropicAPIKey, cfg.AnthropicBaseURL))
	}
	if cfg.OpenAIAPIKey != "" {
		providers = append(providers, core.NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL))
	}
	if cfg.GeminiAPIKey != "" {
		gemini, err := core.NewGeminiProvider(ctx, cfg.GeminiAPIKey)
		if err != nil {
			return nil, err
		}
		providers = append(providers, gemini)
	}
	return providers, nil
}

func buildOAuthProviders(cfg *config.Config) map[string]auth.OAuthProvider {
	providers := make(map[string]auth.OAuthProvider)
	callback := func(name string) string {
		return cfg.PublicURL + "/api/auth/" + name + "/callback"
	}
	if cfg.GoogleEnabled() {
		providers[auth.ProviderGoogle] = auth.NewGoogleOAuth(cfg.OAuth.GoogleClientID, cfg.OAuth.GoogleClientSecret, callback(auth.ProviderGoogle))
	}
	if cfg.GitHubEnabled() {
		providers[auth.ProviderGitHub] = auth.NewGitHubOAuth(cfg.OAuth.GitHubClientID, cfg.OAuth.GitHubClientSecret, callback(auth.ProviderGitHub))
	}
	return providers
}

// oauthStateSecret falls back to a per-process random key, which invalidates
// in-flight OAuth logins on restart.
func oauthStateSecret(configured string, logger *slog.Logger) ([]byte, error) {
	if configured != "" {
		return []byte(configured), nil
	}
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("generate oauth state secret: %w", err)
	}
	logger.Warn("OAUTH_STATE_SECRET not set, using a random per-process secret")
	return secret, nil
}
