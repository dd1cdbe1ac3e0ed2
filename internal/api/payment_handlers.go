package api

import (
	"net/http"

	"globalassist.com/backend/internal/catalog"
)

type SubscriptionResponse struct {
	Tier   string `json:"subscription_tier"`
	Status string `json:"subscription_status"`
}

func (h *APIHandler) PlansHandler(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string][]catalog.Plan{"plans": h.catalog.Plans})
}

// CreateCheckoutHandler is a demo stub; no payment provider is wired.
func (h *APIHandler) CreateCheckoutHandler(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]string{"session_id": "demo", "url": "https://stripe.com"})
}

func (h *APIHandler) SubscriptionHandler(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.FindByID(mustUserID(r))
	if err != nil {
		h.writeServiceError(w, r, err, "Failed to load subscription")
		return
	}
	if user == nil {
		Error(w, http.StatusNotFound, "User not found")
		return
	}
	JSON(w, http.StatusOK, SubscriptionResponse{Tier: user.SubscriptionTier, Status: user.SubscriptionStatus})
}
