// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	service "github.com/okian/painpoint/internal/app"
	"github.com/okian/painpoint/internal/domain/model"
	"github.com/okian/painpoint/internal/domain/types"
	"github.com/okian/painpoint/internal/scan"
	"github.com/okian/painpoint/pkg/logger"
)

// ScanDependencies covers the scan lifecycle endpoints.
type ScanDependencies interface {
	TriggerScan(ctx context.Context, caller scan.Caller, names []string, origin string) (model.Snapshot, error)
	ScanStatus(ctx context.Context, id string) (model.Snapshot, error)
	Scan(ctx context.Context, id string) (*model.ScanJob, error)
	CancelScan(ctx context.Context, caller scan.Caller, id string) (model.Snapshot, error)
	ListScans(ctx context.Context, limit int) ([]model.ScanJob, error)
	ScanStats(ctx context.Context) (model.ScanStats, error)
}

// OpportunityDependencies covers the opportunity read and edit endpoints.
type OpportunityDependencies interface {
	ListOpportunities(ctx context.Context, f model.OpportunityFilter) (types.Page[model.Opportunity], error)
	GetOpportunity(ctx context.Context, id string) (*model.Opportunity, error)
	PatchOpportunity(ctx context.Context, caller scan.Caller, id string, p model.OpportunityPatch) (*model.Opportunity, error)
	OpportunityStats(ctx context.Context) (model.OpportunityStats, error)
}

// AdminDependencies covers scoring, sources and the review queue.
type AdminDependencies interface {
	ScoringConfig(ctx context.Context) (model.ScoringConfig, error)
	UpdateScoringConfig(ctx context.Context, caller scan.Caller, cfg model.ScoringConfig) (model.ScoringConfig, error)
	Rescore(ctx context.Context, caller scan.Caller) (service.RescoreResult, error)
	EnabledSources(ctx context.Context) ([]string, error)
	AvailableSources() []string
	UpdateEnabledSources(ctx context.Context, caller scan.Caller, names []string) ([]string, error)
	Review(ctx context.Context, limit, offset int) (types.Page[model.ReviewItem], error)
}

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	ScanDependencies
	OpportunityDependencies
	AdminDependencies
	ReadinessChecker
	StatsProvider
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	scanHandler        *ScanHandler
	opportunityHandler *OpportunityHandler
	adminHandler       *AdminHandler

	origins []string
	logger  logger.Logger
}

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithAllowedOrigins sets the CORS origins. Defaults to any origin.
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) {
		if len(origins) > 0 {
			s.origins = origins
		}
	}
}

// WithLogger sets the logger used for server errors.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{
		healthHandler:      NewHealthHandler(deps),
		statsHandler:       NewStatsHandler(deps),
		scanHandler:        NewScanHandler(deps),
		opportunityHandler: NewOpportunityHandler(deps),
		adminHandler:       NewAdminHandler(deps),
		origins:            []string{"*"},
		logger:             logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register attaches all HTTP routes to r.
func (s *Server) Register(_ context.Context, r chi.Router) {
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RecoverMiddleware(s.logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", headerUserID, headerUserRole},
		MaxAge:         300,
	}))
	r.Use(MetricsMiddleware)

	r.Get("/healthz", s.healthHandler.HandleHealth)
	r.Get("/readyz", s.healthHandler.HandleReady)
	r.Method(http.MethodGet, "/metrics", s.healthHandler.MetricsHandler())
	r.Get("/stats", s.statsHandler.HandleStats)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/scans", func(r chi.Router) {
			r.Post("/", s.scanHandler.HandleTrigger)
			r.Get("/", s.scanHandler.HandleList)
			r.Get("/stats", s.scanHandler.HandleStats)
			r.Get("/{id}", s.scanHandler.HandleStatus)
			r.Get("/{id}/detail", s.scanHandler.HandleDetail)
			r.Post("/{id}/cancel", s.scanHandler.HandleCancel)
		})
		r.Route("/opportunities", func(r chi.Router) {
			r.Get("/", s.opportunityHandler.HandleList)
			r.Get("/stats", s.opportunityHandler.HandleStats)
			r.Get("/{id}", s.opportunityHandler.HandleGet)
			r.Patch("/{id}", s.opportunityHandler.HandlePatch)
		})
		r.Route("/scoring", func(r chi.Router) {
			r.Get("/config", s.adminHandler.HandleGetScoring)
			r.Put("/config", s.adminHandler.HandlePutScoring)
			r.Post("/rescore", s.adminHandler.HandleRescore)
		})
		r.Get("/admin/sources", s.adminHandler.HandleGetSources)
		r.Put("/admin/sources", s.adminHandler.HandlePutSources)
		r.Get("/review", s.adminHandler.HandleReview)
	})
}

// Handler returns a router with every route registered.
func (s *Server) Handler(ctx context.Context) http.Handler {
	r := chi.NewRouter()
	s.Register(ctx, r)
	return r
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return WrapKind("api.decode", ErrBadRequest, err)
	}
	return nil
}

func parseTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, WrapKind("api.parse_time", ErrBadRequest, err)
	}
	return t, nil
}
