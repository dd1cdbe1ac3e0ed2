package api

import (
	"errors"
	"net/http"

	"globalassist.com/backend/internal/auth"
	"globalassist.com/backend/internal/core"
	"globalassist.com/backend/internal/store"
)

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse keeps the refresh_token field the web client reads; both
// tokens are the same opaque session token.
type AuthResponse struct {
	AccessToken  string           `json:"access_token"`
	RefreshToken string           `json:"refresh_token"`
	User         store.PublicUser `json:"user"`
}

type UserResponse struct {
	User store.PublicUser `json:"user"`
}

func (h *APIHandler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Email == "" || req.Password == "" {
		Error(w, http.StatusBadRequest, "Email and password required")
		return
	}

	user, err := h.users.Create(req.Email, req.Password, req.FullName)
	if err != nil {
		h.writeServiceError(w, r, err, "Failed to create user")
		return
	}
	h.respondWithSession(w, r, http.StatusCreated, user)
}

func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Email == "" || req.Password == "" {
		Error(w, http.StatusBadRequest, "Email and password required")
		return
	}

	user, err := h.users.Authenticate(req.Email, req.Password)
	if err != nil {
		if errors.Is(err, core.ErrUnauthorized) {
			Error(w, http.StatusUnauthorized, "Invalid email or password")
			return
		}
		h.writeServiceError(w, r, err, "Failed to log in")
		return
	}
	h.respondWithSession(w, r, http.StatusOK, user)
}

func (h *APIHandler) respondWithSession(w http.ResponseWriter, r *http.Request, status int, user *store.User) {
	token, err := h.sessions.Issue(user.ID, 0)
	if err != nil {
		h.writeServiceError(w, r, err, "Failed to create session")
		return
	}
	JSON(w, status, AuthResponse{
		AccessToken:  token,
		RefreshToken: token,
		User:         user.Public(),
	})
}

func (h *APIHandler) MeHandler(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.FindByID(mustUserID(r))
	if err != nil {
		h.writeServiceError(w, r, err, "Failed to load user")
		return
	}
	if user == nil {
		Error(w, http.StatusNotFound, "User not found")
		return
	}
	JSON(w, http.StatusOK, UserResponse{User: user.Public()})
}

// LogoutHandler revokes the presented token. Other sessions of the user stay valid.
func (h *APIHandler) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	token, _ := auth.BearerToken(r.Header.Get("Authorization"))
	if _, err := h.sessions.Revoke(token); err != nil {
		h.writeServiceError(w, r, err, "Failed to log out")
		return
	}
	JSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}
