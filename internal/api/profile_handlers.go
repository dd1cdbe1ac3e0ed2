package api

import (
	"net/http"

	"globalassist.com/backend/internal/core"
)

// UpdateProfileRequest ignores every field other than these two.
type UpdateProfileRequest struct {
	FullName *string `json:"full_name"`
	Email    *string `json:"email"`
}

func (h *APIHandler) GetProfileHandler(w http.ResponseWriter, r *http.Request) {
	h.MeHandler(w, r)
}

func (h *APIHandler) UpdateProfileHandler(w http.ResponseWriter, r *http.Request) {
	var req UpdateProfileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.users.Update(mustUserID(r), core.UserPatch{FullName: req.FullName, Email: req.Email})
	if err != nil {
		h.writeServiceError(w, r, err, "Failed to update profile")
		return
	}
	JSON(w, http.StatusOK, UserResponse{User: user.Public()})
}
