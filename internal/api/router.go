package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(apiHandler *APIHandler, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)
	r.Use(CORS(allowedOrigins))

	r.Route("/api", func(r chi.Router) {
		// Public routes
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			JSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})
		r.Post("/auth/register", apiHandler.RegisterHandler)
		r.Post("/auth/login", apiHandler.LoginHandler)
		r.Get("/auth/{provider}", apiHandler.OAuthLoginHandler)
		r.Get("/auth/{provider}/callback", apiHandler.OAuthCallbackHandler)
		r.Get("/ai/models", apiHandler.ModelsHandler)
		r.Get("/payment/plans", apiHandler.PlansHandler)

		// Bearer-authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(apiHandler.AuthMiddleware)

			r.Get("/auth/me", apiHandler.MeHandler)
			r.Post("/auth/logout", apiHandler.LogoutHandler)

			r.Post("/ai/generate", apiHandler.GenerateHandler)
			r.Post("/ai/explain", apiHandler.ExplainHandler)

			r.Post("/payment/create-checkout", apiHandler.CreateCheckoutHandler)
			r.Get("/payment/subscription", apiHandler.SubscriptionHandler)

			r.Get("/history/{selector}", apiHandler.GetHistoryHandler)
			r.Post("/history", apiHandler.CreateHistoryHandler)
			r.Delete("/history/clear/{type}", apiHandler.ClearHistoryHandler)
			r.Delete("/history/{id}", apiHandler.DeleteHistoryHandler)

			r.Get("/user/profile", apiHandler.GetProfileHandler)
			r.Put("/user/profile", apiHandler.UpdateProfileHandler)
		})
	})

	return r
}
