package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all preview routes mounted.
// sseHandler, if non-nil, is mounted at GET /events.
func NewRouter(svc Service, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(NoCache)

	r.Get("/context", h.GetContext)
	r.Get("/context/{key}", h.GetSection)
	r.Get("/sections", h.ListSections)
	r.Get("/pages", h.ListPages)
	r.Get("/search", h.Search)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
