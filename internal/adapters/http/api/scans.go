package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/okian/painpoint/internal/scan"
)

// ScanHandler handles the scan lifecycle endpoints.
type ScanHandler struct {
	deps ScanDependencies
}

// NewScanHandler creates a new scan handler.
func NewScanHandler(deps ScanDependencies) *ScanHandler {
	return &ScanHandler{deps: deps}
}

// HandleTrigger handles POST /api/v1/scans. An empty body scans every
// enabled source.
func (h *ScanHandler) HandleTrigger(w http.ResponseWriter, r *http.Request) {
	const op = "api.trigger_scan"
	caller, err := callerFrom(r)
	if err != nil {
		fail(w, err)
		return
	}
	var req triggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		fail(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	snap, err := h.deps.TriggerScan(r.Context(), caller, req.Sources, scan.OriginAPI)
	if err != nil {
		fail(w, err)
		return
	}
	w.Header().Set("Location", "/api/v1/scans/"+snap.ID)
	writeJSON(w, http.StatusAccepted, snap)
}

// HandleStatus handles GET /api/v1/scans/{id}.
func (h *ScanHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	snap, err := h.deps.ScanStatus(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// HandleDetail handles GET /api/v1/scans/{id}/detail.
func (h *ScanHandler) HandleDetail(w http.ResponseWriter, r *http.Request) {
	job, err := h.deps.Scan(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toScanJobDTO(job))
}

// HandleCancel handles POST /api/v1/scans/{id}/cancel.
func (h *ScanHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		fail(w, err)
		return
	}
	snap, err := h.deps.CancelScan(r.Context(), caller, chi.URLParam(r, "id"))
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// HandleList handles GET /api/v1/scans?limit=.
func (h *ScanHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_scans"
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
			return
		}
		limit = n
	}
	jobs, err := h.deps.ListScans(r.Context(), limit)
	if err != nil {
		fail(w, err)
		return
	}
	out := make([]scanJobDTO, len(jobs))
	for i := range jobs {
		out[i] = toScanJobDTO(&jobs[i])
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out})
}

// HandleStats handles GET /api/v1/scans/stats.
func (h *ScanHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.deps.ScanStats(r.Context())
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
