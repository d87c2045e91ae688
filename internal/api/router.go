package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/sway/internal/swayservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *swayservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Presets.
	r.Get("/presets", h.ListPresets)
	r.Put("/presets/{name}", h.SavePreset)
	r.Delete("/presets/{name}", h.DeletePreset)

	// Document.
	r.Get("/layers/{layer}/pins", h.ListPins)
	r.Put("/scene", h.ImportScene)
	r.Get("/timeline", h.Timeline)

	// Commands.
	r.Post("/apply", h.Apply)
	r.Post("/remove", h.Remove)
	r.Post("/bake", h.Bake)
	r.Get("/evaluate", h.Evaluate)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
