package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"reelist/models"
	"reelist/services/catalog"
)

type catalogService interface {
	Search(ctx context.Context, f catalog.Filters, page int) (models.ResultPage, error)
	Discover(ctx context.Context, f catalog.Filters, page int) (models.ResultPage, error)
	Trending(ctx context.Context, f catalog.Filters, page int) (models.ResultPage, error)
	Similar(ctx context.Context, kind string, id int64, page int) (models.ResultPage, error)
	Details(ctx context.Context, kind string, id int64) (models.MediaDetails, error)
	Credits(ctx context.Context, kind string, id int64) ([]models.CastMember, error)
	Providers(ctx context.Context, kind string, id int64) (models.ProviderRegion, error)
	Genres(ctx context.Context, kind string) ([]models.Genre, error)
}

var _ catalogService = (*catalog.Service)(nil)

type CatalogHandler struct {
	Service catalogService
}

func NewCatalogHandler(service catalogService) *CatalogHandler {
	return &CatalogHandler{Service: service}
}

// filtersFrom reads the shared query parameters for list endpoints.
func filtersFrom(r *http.Request) catalog.Filters {
	q := r.URL.Query()
	f := catalog.Filters{
		Query:  q.Get("q"),
		Format: q.Get("format"),
		Sort:   q.Get("sort"),
	}
	if genre, err := strconv.ParseInt(q.Get("genre"), 10, 64); err == nil {
		f.GenreID = genre
	}
	if year, err := strconv.Atoi(q.Get("year")); err == nil {
		f.Year = year
	}
	if provider, err := strconv.ParseInt(q.Get("provider"), 10, 64); err == nil {
		f.ProviderID = provider
	}
	return f
}

func pageFrom(r *http.Request) int {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil {
		return 1
	}
	return page
}

func (h *CatalogHandler) Search(w http.ResponseWriter, r *http.Request) {
	f := filtersFrom(r)
	if strings.TrimSpace(f.Query) == "" {
		http.Error(w, "query parameter q is required", http.StatusBadRequest)
		return
	}

	page, err := h.Service.Search(r.Context(), f, pageFrom(r))
	if err != nil {
		writeCatalogError(w, err)
		return
	}
	writeJSON(w, page)
}

func (h *CatalogHandler) Discover(w http.ResponseWriter, r *http.Request) {
	page, err := h.Service.Discover(r.Context(), filtersFrom(r), pageFrom(r))
	if err != nil {
		writeCatalogError(w, err)
		return
	}
	writeJSON(w, page)
}

func (h *CatalogHandler) Trending(w http.ResponseWriter, r *http.Request) {
	page, err := h.Service.Trending(r.Context(), filtersFrom(r), pageFrom(r))
	if err != nil {
		writeCatalogError(w, err)
		return
	}
	writeJSON(w, page)
}

func (h *CatalogHandler) Similar(w http.ResponseWriter, r *http.Request) {
	kind, id, ok := mediaVars(w, r)
	if !ok {
		return
	}
	page, err := h.Service.Similar(r.Context(), kind, id, pageFrom(r))
	if err != nil {
		writeCatalogError(w, err)
		return
	}
	writeJSON(w, page)
}

func (h *CatalogHandler) Details(w http.ResponseWriter, r *http.Request) {
	kind, id, ok := mediaVars(w, r)
	if !ok {
		return
	}
	details, err := h.Service.Details(r.Context(), kind, id)
	if err != nil {
		writeCatalogError(w, err)
		return
	}
	writeJSON(w, details)
}

func (h *CatalogHandler) Credits(w http.ResponseWriter, r *http.Request) {
	kind, id, ok := mediaVars(w, r)
	if !ok {
		return
	}
	cast, err := h.Service.Credits(r.Context(), kind, id)
	if err != nil {
		writeCatalogError(w, err)
		return
	}
	writeJSON(w, cast)
}

func (h *CatalogHandler) Providers(w http.ResponseWriter, r *http.Request) {
	kind, id, ok := mediaVars(w, r)
	if !ok {
		return
	}
	providers, err := h.Service.Providers(r.Context(), kind, id)
	if err != nil {
		writeCatalogError(w, err)
		return
	}
	writeJSON(w, providers)
}

func (h *CatalogHandler) Genres(w http.ResponseWriter, r *http.Request) {
	kind := models.NormalizeKind(mux.Vars(r)["kind"])
	if kind == "" {
		http.Error(w, "unknown media kind", http.StatusBadRequest)
		return
	}
	genres, err := h.Service.Genres(r.Context(), kind)
	if err != nil {
		writeCatalogError(w, err)
		return
	}
	writeJSON(w, genres)
}

func mediaVars(w http.ResponseWriter, r *http.Request) (string, int64, bool) {
	vars := mux.Vars(r)
	kind := models.NormalizeKind(vars["kind"])
	if kind == "" {
		http.Error(w, "unknown media kind", http.StatusBadRequest)
		return "", 0, false
	}
	id, err := strconv.ParseInt(vars["mediaID"], 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "invalid media id", http.StatusBadRequest)
		return "", 0, false
	}
	return kind, id, true
}

func writeCatalogError(w http.ResponseWriter, err error) {
	status := http.StatusBadGateway
	switch {
	case errors.Is(err, catalog.ErrNotConfigured):
		status = http.StatusServiceUnavailable
	case errors.Is(err, catalog.ErrTitleNotFound):
		status = http.StatusNotFound
	}
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
