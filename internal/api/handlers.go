// Package api exposes the HTTP surface of the service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"globalassist.com/backend/internal/auth"
	"globalassist.com/backend/internal/catalog"
	"globalassist.com/backend/internal/core"
)

const maxRequestBodyBytes = 1 << 20

type contextKey string

const userIDKey contextKey = "userID"

// HandlerOptions carries the collaborators of APIHandler. OAuthProviders
// may be empty; a provider absent from the map answers with an error.
type HandlerOptions struct {
	Users          *core.UserDirectory
	Sessions       *core.SessionManager
	History        *core.HistoryLog
	Generation     *core.GenerationService
	Catalog        *catalog.Catalog
	OAuthProviders map[string]auth.OAuthProvider
	StateSigner    *auth.StateSigner
	FrontendURL    string
	SecureCookies  bool
	Logger         *slog.Logger
}

type APIHandler struct {
	users         *core.UserDirectory
	sessions      *core.SessionManager
	history       *core.HistoryLog
	generation    *core.GenerationService
	catalog       *catalog.Catalog
	oauth         map[string]auth.OAuthProvider
	stateSigner   *auth.StateSigner
	frontendURL   string
	secureCookies bool
	logger        *slog.Logger
}

func NewAPIHandler(opts HandlerOptions) *APIHandler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	providers := opts.OAuthProviders
	if providers == nil {
		providers = map[string]auth.OAuthProvider{}
	}
	return &APIHandler{
		users:         opts.Users,
		sessions:      opts.Sessions,
		history:       opts.History,
		generation:    opts.Generation,
		catalog:       opts.Catalog,
		oauth:         providers,
		stateSigner:   opts.StateSigner,
		frontendURL:   opts.FrontendURL,
		secureCookies: opts.SecureCookies,
		logger:        logger,
	}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// AuthMiddleware resolves the bearer token to a user id and stores it in
// the request context.
func (h *APIHandler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := auth.BearerToken(r.Header.Get("Authorization"))
		if !ok {
			Error(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		userID, err := h.sessions.Validate(token)
		if err != nil {
			if errors.Is(err, core.ErrUnauthorized) {
				Error(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}
			h.logger.Error("session validation failed", "error", err)
			Error(w, http.StatusInternalServerError, "Failed to validate session")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserIDFromContext returns the id stored by AuthMiddleware.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDKey).(int64)
	return id, ok
}

func mustUserID(r *http.Request) int64 {
	id, ok := UserIDFromContext(r.Context())
	if !ok {
		panic("api: handler mounted without AuthMiddleware")
	}
	return id
}

// writeServiceError maps core errors to status codes. Anything unknown is
// logged and reported as a 500 with fallbackMsg.
func (h *APIHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error, fallbackMsg string) {
	switch {
	case errors.Is(err, core.ErrValidation):
		Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, core.ErrDuplicateEmail):
		Error(w, http.StatusBadRequest, "Email already registered")
	case errors.Is(err, core.ErrUnauthorized):
		Error(w, http.StatusUnauthorized, "Unauthorized")
	case errors.Is(err, core.ErrNotFound):
		Error(w, http.StatusNotFound, "Not found")
	case errors.Is(err, core.ErrUpgradeRequired):
		JSON(w, http.StatusForbidden, map[string]any{
			"error":            "Upgrade to Pro to use this model",
			"upgrade_required": true,
		})
	default:
		h.logger.Error(fallbackMsg, "path", r.URL.Path, "error", err)
		Error(w, http.StatusInternalServerError, fallbackMsg)
	}
}
