package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/theoryandpractice/sitekit/internal/apperr"
	"github.com/theoryandpractice/sitekit/internal/index"
	"github.com/theoryandpractice/sitekit/internal/site"
	"github.com/theoryandpractice/sitekit/internal/siteservice"
)

// Service is the read side of the site service the handlers need.
type Service interface {
	Context() site.Context
	Section(key string) (any, error)
	Sections() []siteservice.SectionInfo
	Pages() []*site.Page
	GeneratedAt() time.Time
	Search(ctx context.Context, query, kind string, limit int) ([]index.SearchResult, error)
}

// Handler holds API route handlers.
type Handler struct {
	svc Service
}

// NewHandler creates a new Handler.
func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

// GetContext handles GET /context: every section keyed by name.
func (h *Handler) GetContext(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"generated_at": h.svc.GeneratedAt(),
		"context":      h.svc.Context(),
	})
}

// GetSection handles GET /context/{key}.
func (h *Handler) GetSection(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	v, err := h.svc.Section(key)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("unknown section: "+key))
		} else {
			slog.Error("get section failed", slog.String("key", key), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// ListSections handles GET /sections.
func (h *Handler) ListSections(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"sections": h.svc.Sections(),
	})
}

// ListPages handles GET /pages: page metadata after the page hooks ran.
func (h *Handler) ListPages(w http.ResponseWriter, _ *http.Request) {
	pages := h.svc.Pages()
	if pages == nil {
		pages = []*site.Page{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"pages": pages,
	})
}

// Search handles GET /search?q=&kind=&limit=.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	kind := r.URL.Query().Get("kind")

	results, err := h.svc.Search(r.Context(), q, kind, limit)
	if err != nil {
		slog.Error("search failed", slog.String("query", q), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if results == nil {
		results = []index.SearchResult{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"results": results,
	})
}
