package api

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
)

const oauthStateCookie = "oauth_state"

// OAuthLoginHandler redirects the browser to the provider's consent page.
// The signed state is also set as a cookie and compared on callback.
func (h *APIHandler) OAuthLoginHandler(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "provider")
	provider, ok := h.oauth[name]
	if !ok {
		Error(w, http.StatusInternalServerError, name+" OAuth not configured")
		return
	}

	state, err := h.stateSigner.Issue(name)
	if err != nil {
		h.logger.Error("failed to issue oauth state", "provider", name, "error", err)
		Error(w, http.StatusInternalServerError, "Failed to start OAuth flow")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/api/auth",
		MaxAge:   int(h.stateSigner.TTL().Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, provider.AuthCodeURL(state), http.StatusFound)
}

// OAuthCallbackHandler finishes the flow. Every failure sends the browser
// back to the login page; success hands the new session token to the
// frontend.
func (h *APIHandler) OAuthCallbackHandler(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "provider")
	provider, ok := h.oauth[name]
	if !ok {
		h.oauthFailed(w, r, name, "provider not configured")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    "",
		Path:     "/api/auth",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	q := r.URL.Query()
	code, state := q.Get("code"), q.Get("state")
	if code == "" || state == "" {
		h.oauthFailed(w, r, name, "missing code or state")
		return
	}
	cookie, err := r.Cookie(oauthStateCookie)
	if err != nil || cookie.Value != state {
		h.oauthFailed(w, r, name, "state cookie mismatch")
		return
	}
	if err := h.stateSigner.Verify(state, name); err != nil {
		h.oauthFailed(w, r, name, err.Error())
		return
	}

	identity, err := provider.FetchIdentity(r.Context(), code)
	if err != nil {
		h.oauthFailed(w, r, name, err.Error())
		return
	}

	user, err := h.users.CreateOAuthUser(identity.Email, identity.Name, name)
	if err != nil {
		h.oauthFailed(w, r, name, err.Error())
		return
	}
	token, err := h.sessions.Issue(user.ID, 0)
	if err != nil {
		h.oauthFailed(w, r, name, err.Error())
		return
	}

	h.logger.Info("oauth login", "provider", name, "user_id", user.ID)
	http.Redirect(w, r, h.frontendURL+"/auth-success?token="+url.QueryEscape(token), http.StatusFound)
}

func (h *APIHandler) oauthFailed(w http.ResponseWriter, r *http.Request, provider, reason string) {
	h.logger.Warn("oauth login failed", "provider", provider, "reason", reason)
	http.Redirect(w, r, h.frontendURL+"/login?error=oauth_failed", http.StatusFound)
}
