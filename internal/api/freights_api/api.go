// Package freights_api exposes the freight lifecycle over JSON HTTP: status
// transitions, per-viewer effective status, pending-confirmation lists and
// the participant profile lookup used by producer dashboards.
package freights_api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/cargaviva/freightcore/internal/integrations/directory"
	"github.com/cargaviva/freightcore/internal/models"
	"github.com/cargaviva/freightcore/internal/notify"
	"github.com/cargaviva/freightcore/internal/services/transitions"
	"github.com/cargaviva/freightcore/internal/storage/pgfreight"
)

type Store interface {
	CreateFreight(ctx context.Context, in pgfreight.FreightCreateInput) (*models.Freight, error)
	GetFreight(ctx context.Context, id uint64) (*models.Freight, error)
	ListFreightsByProducer(ctx context.Context, producerID uint64) ([]*models.Freight, error)
	CreateAssignment(ctx context.Context, in pgfreight.AssignmentCreateInput) (*models.FreightAssignment, error)
	ListAssignmentsByFreight(ctx context.Context, freightID uint64) ([]*models.FreightAssignment, error)
	ListHistory(ctx context.Context, freightID uint64, driverID *uint64) ([]*models.StatusHistoryEntry, error)
}

type TransitionService interface {
	RequestTransition(ctx context.Context, req transitions.TransitionRequest) error
	ConfirmReceipt(ctx context.Context, freightID, driverID, producerID uint64) error
}

type StatusResolver interface {
	Resolve(ctx context.Context, freightID uint64, viewer models.Viewer) (string, error)
}

type PendingLister interface {
	ListPending(ctx context.Context, producerID uint64) ([]models.PendingItem, error)
}

// RateLimiter caps request volume per caller; nil disables the check.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

type API struct {
	store       Store
	transitions TransitionService
	resolver    StatusResolver
	pending     PendingLister
	dir         directory.Client
	notifier    *notify.Notifier
	limiter     RateLimiter
	rateLimit   int64
}

func New(store Store, ts TransitionService, resolver StatusResolver, pending PendingLister, dir directory.Client, notifier *notify.Notifier) *API {
	return &API{
		store:       store,
		transitions: ts,
		resolver:    resolver,
		pending:     pending,
		dir:         dir,
		notifier:    notifier,
	}
}

// WithRateLimit enables per-caller request limiting, keyed by X-Caller-Id.
func (a *API) WithRateLimit(l RateLimiter, perMinute int64) *API {
	a.limiter = l
	a.rateLimit = perMinute
	return a
}

func (a *API) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if a.limiter != nil && a.rateLimit > 0 {
		r.Use(a.rateLimitMiddleware)
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/freights", a.createFreight)
		r.Get("/freights/{freightID}", a.getFreight)
		r.Post("/freights/{freightID}/assignments", a.createAssignment)
		r.Get("/freights/{freightID}/assignments", a.listAssignments)
		r.Post("/freights/{freightID}/transitions", a.requestTransition)
		r.Post("/freights/{freightID}/confirm", a.confirmReceipt)
		r.Get("/freights/{freightID}/status", a.getStatus)
		r.Get("/freights/{freightID}/history", a.listHistory)
		r.Get("/freights/{freightID}/events", a.streamEvents)
		r.Get("/freights/{freightID}/participants/{driverID}/profile", a.getParticipantProfile)

		r.Get("/producers/{producerID}/freights", a.listFreights)
		r.Get("/producers/{producerID}/pending-confirmations", a.listPendingConfirmations)
		r.Get("/producers/{producerID}/events", a.streamProducerEvents)
	})

	return r
}

func (a *API) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller := r.Header.Get("X-Caller-Id")
		if caller == "" {
			next.ServeHTTP(w, r)
			return
		}
		ok, _, err := a.limiter.Allow(r.Context(), "rl:api:"+caller, a.rateLimit, time.Minute)
		if err != nil {
			// limiter outage must not take the API down with it
			slog.Warn("rate limiter unavailable", "error", err.Error())
			next.ServeHTTP(w, r)
			return
		}
		if !ok {
			var body errorBody
			body.Error.Kind = "RateLimited"
			body.Error.Message = "too many requests"
			writeJSON(w, http.StatusTooManyRequests, body)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func pathID(r *http.Request, name string) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, name), 10, 64)
	return id, err == nil && id > 0
}

func queryID(r *http.Request, name string) (uint64, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, false
	}
	id, err := strconv.ParseUint(v, 10, 64)
	return id, err == nil && id > 0
}
