package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/okian/painpoint/internal/adapters/http/api"
	service "github.com/okian/painpoint/internal/app"
	"github.com/okian/painpoint/internal/domain/model"
	"github.com/okian/painpoint/internal/domain/types"
	"github.com/okian/painpoint/internal/scan"
	"github.com/rotisserie/eris"
	. "github.com/smartystreets/goconvey/convey"
)

// mockDeps records the last arguments and returns canned results.
type mockDeps struct {
	triggerErr  error
	lastCaller  scan.Caller
	lastSources []string
	lastFilter  model.OpportunityFilter
	lastPatch   model.OpportunityPatch
	opps        []model.Opportunity
	scoringErr  error
	panicOnList bool
}

func (m *mockDeps) TriggerScan(_ context.Context, c scan.Caller, names []string, _ string) (model.Snapshot, error) {
	m.lastCaller, m.lastSources = c, names
	if m.triggerErr != nil {
		return model.Snapshot{}, m.triggerErr
	}
	return model.Snapshot{ID: "scan-1", Status: model.ScanPending}, nil
}

func (m *mockDeps) ScanStatus(_ context.Context, id string) (model.Snapshot, error) {
	if id != "scan-1" {
		return model.Snapshot{}, eris.Wrapf(scan.ErrNotFound, "%s", id)
	}
	return model.Snapshot{ID: id, Status: model.ScanRunning, Progress: 50}, nil
}

func (m *mockDeps) Scan(_ context.Context, id string) (*model.ScanJob, error) {
	if id != "scan-1" {
		return nil, scan.ErrNotFound
	}
	return &model.ScanJob{ID: id, Status: model.ScanCompleted, Progress: 100, Origin: scan.OriginAPI,
		CreatedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}, nil
}

func (m *mockDeps) CancelScan(_ context.Context, c scan.Caller, id string) (model.Snapshot, error) {
	m.lastCaller = c
	if !c.IsAdmin() {
		return model.Snapshot{}, scan.ErrPermissionDenied
	}
	return model.Snapshot{ID: id, Status: model.ScanCancelled}, nil
}

func (m *mockDeps) ListScans(context.Context, int) ([]model.ScanJob, error) {
	if m.panicOnList {
		panic("boom")
	}
	return []model.ScanJob{{ID: "scan-1", Status: model.ScanCompleted}}, nil
}

func (m *mockDeps) ScanStats(context.Context) (model.ScanStats, error) {
	return model.ScanStats{Total: 4, ByStatus: map[string]int{"completed": 4}}, nil
}

func (m *mockDeps) ListOpportunities(_ context.Context, f model.OpportunityFilter) (types.Page[model.Opportunity], error) {
	m.lastFilter = f
	return types.NewPage(m.opps, len(m.opps), 50, 0), nil
}

func (m *mockDeps) GetOpportunity(_ context.Context, id string) (*model.Opportunity, error) {
	for i := range m.opps {
		if m.opps[i].ID == id {
			return &m.opps[i], nil
		}
	}
	return nil, service.ErrNotFound
}

func (m *mockDeps) PatchOpportunity(ctx context.Context, c scan.Caller, id string, p model.OpportunityPatch) (*model.Opportunity, error) {
	m.lastCaller, m.lastPatch = c, p
	return m.GetOpportunity(ctx, id)
}

func (m *mockDeps) OpportunityStats(context.Context) (model.OpportunityStats, error) {
	return model.OpportunityStats{Total: len(m.opps)}, nil
}

func (m *mockDeps) ScoringConfig(context.Context) (model.ScoringConfig, error) {
	return model.DefaultScoringConfig(), nil
}

func (m *mockDeps) UpdateScoringConfig(_ context.Context, _ scan.Caller, cfg model.ScoringConfig) (model.ScoringConfig, error) {
	if m.scoringErr != nil {
		return model.ScoringConfig{}, m.scoringErr
	}
	return cfg, nil
}

func (m *mockDeps) Rescore(_ context.Context, c scan.Caller) (service.RescoreResult, error) {
	if !c.IsAdmin() {
		return service.RescoreResult{}, scan.ErrPermissionDenied
	}
	return service.RescoreResult{Total: 3, Changed: 1}, nil
}

func (m *mockDeps) EnabledSources(context.Context) ([]string, error) {
	return []string{"hackernews"}, nil
}

func (m *mockDeps) AvailableSources() []string { return []string{"hackernews", "reddit"} }

func (m *mockDeps) UpdateEnabledSources(_ context.Context, _ scan.Caller, names []string) ([]string, error) {
	return names, nil
}

func (m *mockDeps) Review(context.Context, int, int) (types.Page[model.ReviewItem], error) {
	return types.NewPage([]model.ReviewItem{{MentionKey: "reddit:r3", Reason: model.ReviewNoTrigger}}, 1, 50, 0), nil
}

func (m *mockDeps) Ready(context.Context) error { return nil }

func (m *mockDeps) GetStats() map[string]interface{} {
	return map[string]interface{}{"started": true}
}

func newRouter(deps *mockDeps) http.Handler {
	r := chi.NewRouter()
	api.NewServer(deps, api.WithAllowedOrigins([]string{"https://app.example"})).Register(context.Background(), r)
	return r
}

func do(h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeBody(w *httptest.ResponseRecorder) map[string]any {
	var out map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return out
}

var (
	asAdmin  = map[string]string{"X-User-ID": "alice", "X-User-Role": "admin"}
	asViewer = map[string]string{"X-User-ID": "bob", "X-User-Role": "viewer"}
)

func TestServer_Operational(t *testing.T) {
	Convey("Given a router with every route registered", t, func() {
		h := newRouter(&mockDeps{})

		Convey("Then health answers", func() {
			w := do(h, http.MethodGet, "/healthz", "", nil)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decodeBody(w)["status"], ShouldEqual, "ok")

			So(do(h, http.MethodGet, "/readyz", "", nil).Code, ShouldEqual, http.StatusOK)
		})

		Convey("Then metrics are exposed after a request", func() {
			do(h, http.MethodGet, "/healthz", "", nil)
			w := do(h, http.MethodGet, "/metrics", "", nil)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "painpoint_pipeline_http_requests_total")
		})

		Convey("Then stats are JSON", func() {
			w := do(h, http.MethodGet, "/stats", "", nil)
			So(w.Code, ShouldEqual, http.StatusOK)
			body := decodeBody(w)
			So(body["started"], ShouldEqual, true)
			So(body["generatedAt"], ShouldNotBeEmpty)
			So(w.Header().Get("Cache-Control"), ShouldEqual, "no-store")
		})

		Convey("Then CORS preflight is answered for allowed origins", func() {
			req := httptest.NewRequest(http.MethodOptions, "/api/v1/scans", http.NoBody)
			req.Header.Set("Origin", "https://app.example")
			req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			So(w.Header().Get("Access-Control-Allow-Origin"), ShouldEqual, "https://app.example")
		})

		Convey("Then unknown paths are 404", func() {
			So(do(h, http.MethodGet, "/leaderboard", "", nil).Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestServer_Scans(t *testing.T) {
	Convey("Given the scan endpoints", t, func() {
		deps := &mockDeps{}
		h := newRouter(deps)

		Convey("When an admin triggers a scan for chosen sources", func() {
			w := do(h, http.MethodPost, "/api/v1/scans", `{"sources":["reddit"]}`, asAdmin)

			Convey("Then it is accepted with a polling location", func() {
				So(w.Code, ShouldEqual, http.StatusAccepted)
				So(w.Header().Get("Location"), ShouldEqual, "/api/v1/scans/scan-1")
				body := decodeBody(w)
				So(body["scan_id"], ShouldEqual, "scan-1")
				So(body["status"], ShouldEqual, "pending")
				So(deps.lastSources, ShouldResemble, []string{"reddit"})
				So(deps.lastCaller.ID, ShouldEqual, "alice")
			})
		})

		Convey("When the body is empty", func() {
			w := do(h, http.MethodPost, "/api/v1/scans", "", asAdmin)
			So(w.Code, ShouldEqual, http.StatusAccepted)
			So(deps.lastSources, ShouldBeNil)
		})

		Convey("When the caller is anonymous", func() {
			w := do(h, http.MethodPost, "/api/v1/scans", "", nil)
			So(w.Code, ShouldEqual, http.StatusUnauthorized)
		})

		Convey("When the body is malformed", func() {
			w := do(h, http.MethodPost, "/api/v1/scans", `{"sources":`, asAdmin)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decodeBody(w)["code"], ShouldEqual, "bad_request")
		})

		Convey("When the orchestrator rejects the trigger", func() {
			cases := []struct {
				err  error
				code int
				kind string
			}{
				{scan.ErrPermissionDenied, http.StatusForbidden, "permission_denied"},
				{eris.Wrap(scan.ErrScanInProgress, "scan-0"), http.StatusConflict, "scan_in_progress"},
				{scan.ErrRateLimited, http.StatusTooManyRequests, "rate_limited"},
				{eris.Wrapf(scan.ErrUnknownSource, "%q", "twitter"), http.StatusBadRequest, "bad_request"},
				{scan.ErrNoSources, http.StatusBadRequest, "bad_request"},
				{eris.New("disk on fire"), http.StatusInternalServerError, "internal_error"},
			}
			for _, c := range cases {
				deps.triggerErr = c.err
				w := do(h, http.MethodPost, "/api/v1/scans", "", asViewer)
				So(w.Code, ShouldEqual, c.code)
				So(decodeBody(w)["code"], ShouldEqual, c.kind)
			}
		})

		Convey("Then status is pollable by id", func() {
			w := do(h, http.MethodGet, "/api/v1/scans/scan-1", "", nil)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decodeBody(w)["progress"], ShouldEqual, 50.0)

			So(do(h, http.MethodGet, "/api/v1/scans/nope", "", nil).Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("Then details, history and stats are served", func() {
			w := do(h, http.MethodGet, "/api/v1/scans/scan-1/detail", "", nil)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decodeBody(w)["origin"], ShouldEqual, "api")

			w = do(h, http.MethodGet, "/api/v1/scans?limit=5", "", nil)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decodeBody(w)["items"], ShouldHaveLength, 1)

			So(do(h, http.MethodGet, "/api/v1/scans?limit=x", "", nil).Code, ShouldEqual, http.StatusBadRequest)

			w = do(h, http.MethodGet, "/api/v1/scans/stats", "", nil)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decodeBody(w)["total"], ShouldEqual, 4.0)
		})

		Convey("Then cancel requires an admin", func() {
			So(do(h, http.MethodPost, "/api/v1/scans/scan-1/cancel", "", asViewer).Code, ShouldEqual, http.StatusForbidden)
			w := do(h, http.MethodPost, "/api/v1/scans/scan-1/cancel", "", asAdmin)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decodeBody(w)["status"], ShouldEqual, "cancelled")
		})

		Convey("When a handler panics", func() {
			deps.panicOnList = true
			w := do(h, http.MethodGet, "/api/v1/scans", "", nil)
			So(w.Code, ShouldEqual, http.StatusInternalServerError)
		})
	})
}

func TestServer_Opportunities(t *testing.T) {
	Convey("Given stored opportunities", t, func() {
		deps := &mockDeps{opps: []model.Opportunity{{
			ID:              "opp-1",
			Title:           "Tracking Client Invoice",
			Score:           72,
			Rank:            1,
			CompetitorCount: model.Unknown,
			RevenueAmount:   model.Unknown,
			Complexity:      model.ComplexityMedium,
			Status:          model.StatusNew,
		}}}
		h := newRouter(deps)

		Convey("When listing with filters", func() {
			w := do(h, http.MethodGet, "/api/v1/opportunities?min_score=50&validated=true&status=new&q=invoice&sort=rank&since=2026-01-01T00:00:00Z&limit=10", "", nil)

			Convey("Then the filter reaches the service", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(*deps.lastFilter.MinScore, ShouldEqual, 50)
				So(deps.lastFilter.MaxScore, ShouldBeNil)
				So(*deps.lastFilter.Validated, ShouldBeTrue)
				So(deps.lastFilter.Status, ShouldEqual, model.StatusNew)
				So(deps.lastFilter.Query, ShouldEqual, "invoice")
				So(deps.lastFilter.Sort, ShouldEqual, "rank")
				So(deps.lastFilter.Limit, ShouldEqual, 10)
				So(deps.lastFilter.Since.Year(), ShouldEqual, 2026)
			})

			Convey("Then unknown signals render as null", func() {
				items := decodeBody(w)["items"].([]any)
				So(items, ShouldHaveLength, 1)
				first := items[0].(map[string]any)
				So(first["competitor_count"], ShouldBeNil)
				So(first["revenue_amount"], ShouldBeNil)
				So(first["complexity"], ShouldEqual, "Medium")
			})
		})

		Convey("When a filter value is malformed", func() {
			So(do(h, http.MethodGet, "/api/v1/opportunities?min_score=high", "", nil).Code, ShouldEqual, http.StatusBadRequest)
			So(do(h, http.MethodGet, "/api/v1/opportunities?validated=maybe", "", nil).Code, ShouldEqual, http.StatusBadRequest)
			So(do(h, http.MethodGet, "/api/v1/opportunities?since=yesterday", "", nil).Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("Then a single record and stats are served", func() {
			So(do(h, http.MethodGet, "/api/v1/opportunities/opp-1", "", nil).Code, ShouldEqual, http.StatusOK)
			So(do(h, http.MethodGet, "/api/v1/opportunities/missing", "", nil).Code, ShouldEqual, http.StatusNotFound)
			w := do(h, http.MethodGet, "/api/v1/opportunities/stats", "", nil)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decodeBody(w)["total"], ShouldEqual, 1.0)
		})

		Convey("When patching with a null b2b override", func() {
			w := do(h, http.MethodPatch, "/api/v1/opportunities/opp-1",
				`{"status":"researching","notes":"call three agencies","b2b_override":null}`, asAdmin)

			Convey("Then the override is cleared and the edits pass through", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(*deps.lastPatch.Status, ShouldEqual, model.StatusResearching)
				So(*deps.lastPatch.Notes, ShouldEqual, "call three agencies")
				So(deps.lastPatch.B2BOverride, ShouldNotBeNil)
				So(*deps.lastPatch.B2BOverride, ShouldBeNil)
				So(deps.lastPatch.ComplexityOverride, ShouldBeNil)
			})
		})

		Convey("When patching with a concrete override", func() {
			w := do(h, http.MethodPatch, "/api/v1/opportunities/opp-1", `{"b2b_override":true,"complexity_override":"High"}`, asAdmin)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(**deps.lastPatch.B2BOverride, ShouldBeTrue)
			So(*deps.lastPatch.ComplexityOverride, ShouldEqual, model.ComplexityHigh)
		})

		Convey("When the patch carries unknown fields", func() {
			w := do(h, http.MethodPatch, "/api/v1/opportunities/opp-1", `{"score":100}`, asAdmin)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestServer_Admin(t *testing.T) {
	Convey("Given the admin endpoints", t, func() {
		deps := &mockDeps{}
		h := newRouter(deps)

		Convey("Then the scoring config round trips", func() {
			w := do(h, http.MethodGet, "/api/v1/scoring/config", "", nil)
			So(w.Code, ShouldEqual, http.StatusOK)
			weights := decodeBody(w)["weights"].(map[string]any)
			So(weights["revenue"], ShouldEqual, 0.35)

			w = do(h, http.MethodPut, "/api/v1/scoring/config", `{"weights":{"demand":1,"revenue":0,"competition":0,"complexity":0}}`, asAdmin)
			So(w.Code, ShouldEqual, http.StatusOK)
		})

		Convey("When the service rejects the config", func() {
			deps.scoringErr = eris.Wrap(service.ErrInvalidInput, "weights must sum to 1.0")
			w := do(h, http.MethodPut, "/api/v1/scoring/config", `{"weights":{"demand":0.9}}`, asAdmin)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decodeBody(w)["message"], ShouldContainSubstring, "weights must sum to 1.0")
		})

		Convey("Then rescore is admin only", func() {
			So(do(h, http.MethodPost, "/api/v1/scoring/rescore", "", asViewer).Code, ShouldEqual, http.StatusForbidden)
			w := do(h, http.MethodPost, "/api/v1/scoring/rescore", "", asAdmin)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decodeBody(w)["total"], ShouldEqual, 3.0)
		})

		Convey("Then sources list enabled and available names", func() {
			w := do(h, http.MethodGet, "/api/v1/admin/sources", "", nil)
			So(w.Code, ShouldEqual, http.StatusOK)
			body := decodeBody(w)
			So(body["enabled"], ShouldResemble, []any{"hackernews"})
			So(body["available"], ShouldResemble, []any{"hackernews", "reddit"})

			w = do(h, http.MethodPut, "/api/v1/admin/sources", `{"enabled":["reddit"]}`, asAdmin)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decodeBody(w)["enabled"], ShouldResemble, []any{"reddit"})
		})

		Convey("Then the review queue is paged", func() {
			w := do(h, http.MethodGet, "/api/v1/review?limit=5", "", nil)
			So(w.Code, ShouldEqual, http.StatusOK)
			body := decodeBody(w)
			So(body["total"], ShouldEqual, 1.0)
			item := body["items"].([]any)[0].(map[string]any)
			So(item["reason"], ShouldEqual, "no_trigger")
		})
	})
}
