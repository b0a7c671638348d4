package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/okian/painpoint/internal/domain/model"
)

// OpportunityHandler handles opportunity listing and edits.
type OpportunityHandler struct {
	deps OpportunityDependencies
}

// NewOpportunityHandler creates a new opportunity handler.
func NewOpportunityHandler(deps OpportunityDependencies) *OpportunityHandler {
	return &OpportunityHandler{deps: deps}
}

// patchRequest distinguishes an absent b2b_override from an explicit null,
// which clears the override.
type patchRequest struct {
	Status             *string         `json:"status"`
	Notes              *string         `json:"notes"`
	B2BOverride        json.RawMessage `json:"b2b_override"`
	ComplexityOverride *string         `json:"complexity_override"`
}

func (p patchRequest) toPatch() (model.OpportunityPatch, error) {
	var out model.OpportunityPatch
	if p.Status != nil {
		s := model.Status(*p.Status)
		out.Status = &s
	}
	out.Notes = p.Notes
	if p.ComplexityOverride != nil {
		c := model.Complexity(*p.ComplexityOverride)
		out.ComplexityOverride = &c
	}
	if len(p.B2BOverride) > 0 {
		var v *bool
		if !bytes.Equal(p.B2BOverride, []byte("null")) {
			var b bool
			if err := json.Unmarshal(p.B2BOverride, &b); err != nil {
				return out, WrapKind("api.b2b_override", ErrBadRequest, err)
			}
			v = &b
		}
		out.B2BOverride = &v
	}
	return out, nil
}

// HandleList handles GET /api/v1/opportunities.
func (h *OpportunityHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r.URL.Query())
	if err != nil {
		fail(w, err)
		return
	}
	page, err := h.deps.ListOpportunities(r.Context(), f)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOpportunityPage(page))
}

// HandleGet handles GET /api/v1/opportunities/{id}.
func (h *OpportunityHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	o, err := h.deps.GetOpportunity(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOpportunityDTO(o))
}

// HandlePatch handles PATCH /api/v1/opportunities/{id}.
func (h *OpportunityHandler) HandlePatch(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		fail(w, err)
		return
	}
	var req patchRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, err)
		return
	}
	patch, err := req.toPatch()
	if err != nil {
		fail(w, err)
		return
	}
	o, err := h.deps.PatchOpportunity(r.Context(), caller, chi.URLParam(r, "id"), patch)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOpportunityDTO(o))
}

// HandleStats handles GET /api/v1/opportunities/stats.
func (h *OpportunityHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.deps.OpportunityStats(r.Context())
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func parseFilter(q url.Values) (model.OpportunityFilter, error) {
	const op = "api.parse_filter"
	f := model.OpportunityFilter{
		Status: model.Status(q.Get("status")),
		Query:  q.Get("q"),
		Sort:   q.Get("sort"),
	}
	ints := map[string]*int{"limit": &f.Limit, "offset": &f.Offset}
	for key, dst := range ints {
		if raw := q.Get(key); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				return f, WrapKind(op+"."+key, ErrBadRequest, err)
			}
			*dst = n
		}
	}
	for key, dst := range map[string]**int{"min_score": &f.MinScore, "max_score": &f.MaxScore} {
		if raw := q.Get(key); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				return f, WrapKind(op+"."+key, ErrBadRequest, err)
			}
			*dst = &n
		}
	}
	if raw := q.Get("validated"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return f, WrapKind(op+".validated", ErrBadRequest, err)
		}
		f.Validated = &b
	}
	var err error
	if f.Since, err = parseTime(q.Get("since")); err != nil {
		return f, err
	}
	if f.Until, err = parseTime(q.Get("until")); err != nil {
		return f, err
	}
	return f, nil
}
