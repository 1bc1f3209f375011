package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/vizbase/internal/artifactservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *artifactservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Post("/verify/{group}/{name}", h.Verify)

	r.Get("/baselines", h.ListBaselines)
	r.Get("/baselines/{group}/{name}", h.GetBaseline)
	r.Get("/diffs/{group}/{name}", h.GetDiff)

	r.Get("/verifications", h.ListVerifications)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
