package api

import (
	"net/http"
	"strconv"

	"github.com/okian/painpoint/internal/domain/model"
)

// AdminHandler handles scoring configuration, rescore, sources and review.
type AdminHandler struct {
	deps AdminDependencies
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(deps AdminDependencies) *AdminHandler {
	return &AdminHandler{deps: deps}
}

// HandleGetScoring handles GET /api/v1/scoring/config.
func (h *AdminHandler) HandleGetScoring(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.deps.ScoringConfig(r.Context())
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// HandlePutScoring handles PUT /api/v1/scoring/config.
func (h *AdminHandler) HandlePutScoring(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		fail(w, err)
		return
	}
	var cfg model.ScoringConfig
	if err := decodeJSON(r, &cfg); err != nil {
		fail(w, err)
		return
	}
	out, err := h.deps.UpdateScoringConfig(r.Context(), caller, cfg)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleRescore handles POST /api/v1/scoring/rescore.
func (h *AdminHandler) HandleRescore(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		fail(w, err)
		return
	}
	res, err := h.deps.Rescore(r.Context(), caller)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleGetSources handles GET /api/v1/admin/sources.
func (h *AdminHandler) HandleGetSources(w http.ResponseWriter, r *http.Request) {
	enabled, err := h.deps.EnabledSources(r.Context())
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sourcesDTO{Enabled: nonNil(enabled), Available: nonNil(h.deps.AvailableSources())})
}

// HandlePutSources handles PUT /api/v1/admin/sources.
func (h *AdminHandler) HandlePutSources(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		fail(w, err)
		return
	}
	var req sourcesRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, err)
		return
	}
	enabled, err := h.deps.UpdateEnabledSources(r.Context(), caller, req.Enabled)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sourcesDTO{Enabled: nonNil(enabled), Available: nonNil(h.deps.AvailableSources())})
}

// HandleReview handles GET /api/v1/review?limit=&offset=.
func (h *AdminHandler) HandleReview(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	page, err := h.deps.Review(r.Context(), limit, offset)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toReviewPage(page))
}
