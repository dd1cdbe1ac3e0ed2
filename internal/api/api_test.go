package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"globalassist.com/backend/internal/auth"
	"globalassist.com/backend/internal/catalog"
	"globalassist.com/backend/internal/core"
	"globalassist.com/backend/internal/store"
)

const testFrontendURL = "http://frontend.test"

type stubGenerator struct{}

func (stubGenerator) Generate(_ context.Context, prompt, modelID string) (*core.GenerationResult, error) {
	return &core.GenerationResult{Code: "code for " + prompt, Explanation: "via " + modelID}, nil
}

func (stubGenerator) Explain(_ context.Context, code, modelID string) (*core.GenerationResult, error) {
	return &core.GenerationResult{Code: code, Explanation: "explained"}, nil
}

type stubOAuth struct {
	name     string
	identity *auth.Identity
}

func (p *stubOAuth) Name() string { return p.name }

func (p *stubOAuth) AuthCodeURL(state string) string {
	return "https://provider.test/authorize?state=" + url.QueryEscape(state)
}

func (p *stubOAuth) FetchIdentity(_ context.Context, code string) (*auth.Identity, error) {
	if code != "good-code" {
		return nil, assert.AnError
	}
	return p.identity, nil
}

type testServer struct {
	handler http.Handler
	rs      *store.RecordStore
	signer  *auth.StateSigner
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	backend, err := store.NewFileBackend(t.TempDir())
	require.NoError(t, err)
	rs := store.NewRecordStore(backend, logger)
	cat, err := catalog.Load()
	require.NoError(t, err)

	users := core.NewUserDirectory(rs, bcrypt.MinCost, logger)
	history := core.NewHistoryLog(rs, logger)
	signer := auth.NewStateSigner([]byte("test-secret"), time.Minute)

	h := NewAPIHandler(HandlerOptions{
		Users:      users,
		Sessions:   core.NewSessionManager(rs, time.Hour, logger),
		History:    history,
		Generation: core.NewGenerationService(users, history, stubGenerator{}, cat, logger),
		Catalog:    cat,
		OAuthProviders: map[string]auth.OAuthProvider{
			auth.ProviderGitHub: &stubOAuth{name: auth.ProviderGitHub, identity: &auth.Identity{Email: "octo@example.com", Name: "Octo"}},
		},
		StateSigner: signer,
		FrontendURL: testFrontendURL,
		Logger:      logger,
	})
	return &testServer{
		handler: NewRouter(h, []string{"http://localhost:5173"}),
		rs:      rs,
		signer:  signer,
	}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	return w
}

func (s *testServer) register(t *testing.T, email string) string {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/auth/register", "", RegisterRequest{Email: email, Password: "secret123", FullName: "Test"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp AuthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.AccessToken
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	JSON(w, http.StatusTeapot, map[string]string{"foo": "bar"})

	assert.Equal(t, http.StatusTeapot, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"foo":"bar"}`, w.Body.String())
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestRegister(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/auth/register", "", RegisterRequest{Email: "a@x.com", Password: "pw1", FullName: "Ann"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.NotContains(t, w.Body.String(), "password_hash")

	resp := decode[AuthResponse](t, w)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, resp.AccessToken, resp.RefreshToken)
	assert.Equal(t, int64(1), resp.User.ID)
	assert.Equal(t, store.TierFree, resp.User.SubscriptionTier)

	w = s.do(t, http.MethodPost, "/api/auth/register", "", RegisterRequest{Email: "a@x.com", Password: "other"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Email already registered", decode[map[string]string](t, w)["error"])

	w = s.do(t, http.MethodPost, "/api/auth/register", "", RegisterRequest{Email: "b@x.com"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLogin(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "a@x.com")

	w := s.do(t, http.MethodPost, "/api/auth/login", "", LoginRequest{Email: "a@x.com", Password: "secret123"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, decode[AuthResponse](t, w).AccessToken)

	wrongPassword := s.do(t, http.MethodPost, "/api/auth/login", "", LoginRequest{Email: "a@x.com", Password: "nope"})
	unknownEmail := s.do(t, http.MethodPost, "/api/auth/login", "", LoginRequest{Email: "z@x.com", Password: "nope"})
	assert.Equal(t, http.StatusUnauthorized, wrongPassword.Code)
	assert.Equal(t, http.StatusUnauthorized, unknownEmail.Code)
	assert.Equal(t, wrongPassword.Body.String(), unknownEmail.Body.String())
}

func TestMeAndLogout(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = s.do(t, http.MethodGet, "/api/auth/me", "bogus", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token := s.register(t, "a@x.com")
	w = s.do(t, http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "a@x.com", decode[UserResponse](t, w).User.Email)

	w = s.do(t, http.MethodPost, "/api/auth/logout", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/api/auth/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestModelsHidesRemoteNames(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodGet, "/api/ai/models", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[map[string][]map[string]any](t, w)
	assert.Len(t, resp["models"], 6)
	assert.NotContains(t, w.Body.String(), "claude-sonnet")
}

func TestGenerate(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "a@x.com")

	w := s.do(t, http.MethodPost, "/api/ai/generate", token, GenerateRequest{Prompt: "fizzbuzz"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[GenerationResponse](t, w)
	assert.True(t, resp.Success)
	assert.Equal(t, "code for fizzbuzz", resp.Code)
	assert.Equal(t, catalog.DefaultModelID, resp.ModelUsed)
	assert.Equal(t, int64(1), resp.HistoryID)

	w = s.do(t, http.MethodPost, "/api/ai/generate", token, GenerateRequest{Prompt: "x", Model: "kiwi-opus"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, true, decode[map[string]any](t, w)["upgrade_required"])

	w = s.do(t, http.MethodPost, "/api/ai/generate", token, GenerateRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/ai/generate", "", GenerateRequest{Prompt: "x"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestExplain(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "a@x.com")

	w := s.do(t, http.MethodPost, "/api/ai/explain", token, ExplainRequest{Code: "a+b"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "explained", decode[GenerationResponse](t, w).Explanation)

	w = s.do(t, http.MethodGet, "/api/history/explain", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, decode[HistoryListResponse](t, w).Total)
}

func TestHistoryLifecycle(t *testing.T) {
	s := newTestServer(t)
	ann := s.register(t, "a@x.com")
	bob := s.register(t, "b@x.com")

	for i := 0; i < 3; i++ {
		w := s.do(t, http.MethodPost, "/api/ai/generate", ann, GenerateRequest{Prompt: "p"})
		require.Equal(t, http.StatusOK, w.Code)
	}
	w := s.do(t, http.MethodPost, "/api/history", ann, CreateHistoryRequest{Type: "snippet", Title: "t", Content: "c"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, int64(4), decode[HistoryEntryResponse](t, w).History.ID)

	w = s.do(t, http.MethodGet, "/api/history/all?page=2&per_page=3", ann, nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[HistoryListResponse](t, w)
	assert.Equal(t, 4, list.Total)
	require.Len(t, list.History, 1)
	assert.Equal(t, int64(4), list.History[0].ID)

	w = s.do(t, http.MethodGet, "/api/history/all?page=4611686018427387904&per_page=4", ann, nil)
	require.Equal(t, http.StatusOK, w.Code)
	list = decode[HistoryListResponse](t, w)
	assert.Equal(t, 4, list.Total)
	assert.Empty(t, list.History)

	w = s.do(t, http.MethodGet, "/api/history/chat", ann, nil)
	assert.Equal(t, 3, decode[HistoryListResponse](t, w).Total)

	w = s.do(t, http.MethodGet, "/api/history/all", bob, nil)
	assert.Equal(t, 0, decode[HistoryListResponse](t, w).Total)

	w = s.do(t, http.MethodGet, "/api/history/2", ann, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(2), decode[HistoryEntryResponse](t, w).History.ID)

	w = s.do(t, http.MethodGet, "/api/history/2", bob, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodDelete, "/api/history/2", bob, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode[map[string]any](t, w)["deleted"])

	w = s.do(t, http.MethodDelete, "/api/history/2", ann, nil)
	assert.Equal(t, true, decode[map[string]any](t, w)["deleted"])

	w = s.do(t, http.MethodDelete, "/api/history/clear/chat", ann, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), decode[map[string]any](t, w)["deleted"])

	w = s.do(t, http.MethodGet, "/api/history/all", ann, nil)
	assert.Equal(t, 1, decode[HistoryListResponse](t, w).Total)

	w = s.do(t, http.MethodDelete, "/api/history/abc", ann, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProfile(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "a@x.com")
	s.register(t, "b@x.com")

	w := s.do(t, http.MethodPut, "/api/user/profile", token, map[string]any{"full_name": "Ann Lee", "subscription_tier": "pro"})
	require.Equal(t, http.StatusOK, w.Code)
	user := decode[UserResponse](t, w).User
	assert.Equal(t, "Ann Lee", user.FullName)
	assert.Equal(t, store.TierFree, user.SubscriptionTier)

	w = s.do(t, http.MethodPut, "/api/user/profile", token, map[string]any{"email": "b@x.com"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/user/profile", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "a@x.com", decode[UserResponse](t, w).User.Email)
}

func TestPayment(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "a@x.com")

	w := s.do(t, http.MethodGet, "/api/payment/plans", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[map[string][]catalog.Plan](t, w)["plans"], 3)

	w = s.do(t, http.MethodPost, "/api/payment/create-checkout", token, nil)
	assert.Equal(t, "demo", decode[map[string]string](t, w)["session_id"])

	w = s.do(t, http.MethodGet, "/api/payment/subscription", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	sub := decode[SubscriptionResponse](t, w)
	assert.Equal(t, store.TierFree, sub.Tier)
	assert.Equal(t, store.StatusActive, sub.Status)
}

// beginOAuth starts a login and returns the issued state and its cookie.
func (s *testServer) beginOAuth(t *testing.T, provider string) (string, *http.Cookie) {
	t.Helper()
	w := s.do(t, http.MethodGet, "/api/auth/"+provider, "", nil)
	require.Equal(t, http.StatusFound, w.Code)
	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	state := loc.Query().Get("state")
	require.NotEmpty(t, state)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, oauthStateCookie, cookies[0].Name)
	require.Equal(t, state, cookies[0].Value)
	assert.Equal(t, int(time.Minute.Seconds()), cookies[0].MaxAge)
	return state, cookies[0]
}

func (s *testServer) oauthCallback(provider, code, state string, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/auth/"+provider+"/callback?code="+code+"&state="+url.QueryEscape(state), nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func TestOAuthFlow(t *testing.T) {
	s := newTestServer(t)
	failed := testFrontendURL + "/login?error=oauth_failed"
	gh := auth.ProviderGitHub

	state, _ := s.beginOAuth(t, gh)
	assert.Equal(t, failed, s.oauthCallback(gh, "good-code", state, nil).Header().Get("Location"))

	state, cookie := s.beginOAuth(t, gh)
	assert.Equal(t, failed, s.oauthCallback(gh, "bad-code", state, cookie).Header().Get("Location"))

	wrongProvider, err := s.signer.Issue(auth.ProviderGoogle)
	require.NoError(t, err)
	rec := s.oauthCallback(gh, "good-code", wrongProvider, &http.Cookie{Name: oauthStateCookie, Value: wrongProvider})
	assert.Equal(t, failed, rec.Header().Get("Location"))

	state, cookie = s.beginOAuth(t, gh)
	rec = s.oauthCallback(gh, "good-code", state, cookie)
	require.Equal(t, http.StatusFound, rec.Code)
	location := rec.Header().Get("Location")
	require.True(t, strings.HasPrefix(location, testFrontendURL+"/auth-success?token="), location)

	token, err := url.QueryUnescape(strings.TrimPrefix(location, testFrontendURL+"/auth-success?token="))
	require.NoError(t, err)

	me := s.do(t, http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, me.Code)
	user := decode[UserResponse](t, me).User
	assert.Equal(t, "octo@example.com", user.Email)
	assert.Equal(t, auth.ProviderGitHub, user.OAuthProvider)

	// Replaying a consumed state fails.
	assert.Equal(t, failed, s.oauthCallback(gh, "good-code", state, cookie).Header().Get("Location"))

	// A second login reuses the account.
	state, cookie = s.beginOAuth(t, gh)
	rec = s.oauthCallback(gh, "good-code", state, cookie)
	require.True(t, strings.HasPrefix(rec.Header().Get("Location"), testFrontendURL+"/auth-success"))
	users, err := store.NewCollection[store.User](s.rs, store.CollectionUsers).Load()
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestOAuthNotConfigured(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/auth/google", "", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	w = s.do(t, http.MethodGet, "/api/auth/google/callback?code=x&state=y", "", nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, testFrontendURL+"/login?error=oauth_failed", w.Header().Get("Location"))
}

func TestCORS(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/auth/login", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "Authorization")

	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "http://evil.test")
	w = httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
