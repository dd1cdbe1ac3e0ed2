package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"globalassist.com/backend/internal/auth"
	"globalassist.com/backend/internal/config"
	"globalassist.com/backend/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOpenRecordStore_File(t *testing.T) {
	cfg := &config.Config{StorageBackend: config.StorageFile, DataDir: t.TempDir()}

	rs, err := openRecordStore(cfg, discardLogger())
	require.NoError(t, err)
	defer rs.Close()

	users, err := store.NewCollection[store.User](rs, store.CollectionUsers).Load()
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestOpenRecordStore_SQLite(t *testing.T) {
	cfg := &config.Config{StorageBackend: config.StorageSQLite, SQLitePath: t.TempDir() + "/nested/app.db"}

	rs, err := openRecordStore(cfg, discardLogger())
	require.NoError(t, err)
	defer rs.Close()
}

func TestBuildAIProviders(t *testing.T) {
	providers, err := buildAIProviders(context.Background(), config.AIConfig{})
	require.NoError(t, err)
	assert.Empty(t, providers)

	providers, err = buildAIProviders(context.Background(), config.AIConfig{AnthropicAPIKey: "a", OpenAIAPIKey: "o"})
	require.NoError(t, err)
	require.Len(t, providers, 2)
	assert.Equal(t, "anthropic", providers[0].Name())
	assert.Equal(t, "openai", providers[1].Name())
}

func TestBuildOAuthProviders(t *testing.T) {
	cfg := &config.Config{
		PublicURL: "http://api.test",
		OAuth:     config.OAuthConfig{GitHubClientID: "id", GitHubClientSecret: "secret"},
	}

	providers := buildOAuthProviders(cfg)
	require.Len(t, providers, 1)
	url := providers[auth.ProviderGitHub].AuthCodeURL("st")
	assert.Contains(t, url, "client_id=id")
	assert.Contains(t, url, "redirect_uri=http%3A%2F%2Fapi.test%2Fapi%2Fauth%2Fgithub%2Fcallback")
}

func TestOAuthStateSecret(t *testing.T) {
	secret, err := oauthStateSecret("configured", discardLogger())
	require.NoError(t, err)
	assert.Equal(t, []byte("configured"), secret)

	a, err := oauthStateSecret("", discardLogger())
	require.NoError(t, err)
	b, err := oauthStateSecret("", discardLogger())
	require.NoError(t, err)
	assert.Len(t, a, 32)
	assert.False(t, bytes.Equal(a, b))
}

func TestPruneSessionsCommand(t *testing.T) {
	t.Setenv("DATA_DIR", t.TempDir())
	t.Setenv("STORAGE_BACKEND", config.StorageFile)

	cmd := newRootCmd()
	cmd.SetArgs([]string{"prune-sessions", "--env-file", t.TempDir() + "/missing.env"})
	require.NoError(t, cmd.Execute())
}
