// Package api exposes the HTTP surface of the serving core: the public ad
// endpoints (/ads/*), the admin endpoints (/api/*) and the operational
// endpoints (/health, /reload, /metrics).
package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/clinicdex/adcore/internal/ads"
	"github.com/clinicdex/adcore/internal/analytics"
	"github.com/clinicdex/adcore/internal/config"
	"github.com/clinicdex/adcore/internal/db"
	"github.com/clinicdex/adcore/internal/events"
	"github.com/clinicdex/adcore/internal/macros"
	"github.com/clinicdex/adcore/internal/middleware"
	"github.com/clinicdex/adcore/internal/models"
	"github.com/clinicdex/adcore/internal/observability"
	"github.com/clinicdex/adcore/internal/rotation"
	"github.com/clinicdex/adcore/internal/sampling"
	"github.com/clinicdex/adcore/internal/settings"
)

var tracer = otel.Tracer("adcore/api")

// Server groups dependencies for HTTP handlers.
type Server struct {
	Logger      *zap.Logger
	Config      config.Config
	PG          *db.Postgres
	Redis       *db.RedisStore
	AdDataStore models.AdDataStore
	Resolver    *ads.Resolver
	Gate        *ads.Gate
	Settings    *settings.Provider
	EventStore  events.Store
	Recorder    *events.Recorder
	Analytics   analytics.Service
	Macros      *macros.Expander
	Scheduler   *rotation.Scheduler
	Metrics     observability.MetricsRegistry
	Rng         sampling.Source

	reloadMu sync.Mutex
}

// NewServer constructs a Server. Rng defaults to a time-seeded locked source
// when nil.
func NewServer(logger *zap.Logger, cfg config.Config, pg *db.Postgres, redis *db.RedisStore, store models.AdDataStore, resolver *ads.Resolver, gate *ads.Gate, provider *settings.Provider, eventStore events.Store, recorder *events.Recorder, analyticsSvc analytics.Service, expander *macros.Expander, scheduler *rotation.Scheduler, metrics observability.MetricsRegistry) *Server {
	return &Server{
		Logger:      logger,
		Config:      cfg,
		PG:          pg,
		Redis:       redis,
		AdDataStore: store,
		Resolver:    resolver,
		Gate:        gate,
		Settings:    provider,
		EventStore:  eventStore,
		Recorder:    recorder,
		Analytics:   analyticsSvc,
		Macros:      expander,
		Scheduler:   scheduler,
		Metrics:     metrics,
		Rng:         sampling.NewLockedSource(time.Now().UnixNano()),
	}
}

// Router builds the HTTP route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.WithTraceLogger(s.Logger))

	r.HandleFunc("/ads/decision", s.DecisionHandler).Methods(http.MethodGet)
	r.HandleFunc("/ads/serve", s.ServeHandler).Methods(http.MethodGet)
	r.HandleFunc("/ads/click", s.ClickHandler).Methods(http.MethodGet)
	r.HandleFunc("/ads/postback", s.PostbackHandler).Methods(http.MethodGet, http.MethodPost)

	r.HandleFunc("/api/settings", s.GetSettingsHandler).Methods(http.MethodGet)
	r.HandleFunc("/api/settings", s.UpdateSettingsHandler).Methods(http.MethodPut)
	r.HandleFunc("/api/rotation/run", s.RotationHandler).Methods(http.MethodPost)
	r.HandleFunc("/api/campaigns", s.ListCampaignsHandler).Methods(http.MethodGet)
	r.HandleFunc("/api/creatives", s.ListCreativesHandler).Methods(http.MethodGet)
	r.HandleFunc("/api/placements", s.ListPlacementsHandler).Methods(http.MethodGet)
	r.HandleFunc("/api/events", s.EventsHandler).Methods(http.MethodGet)

	r.HandleFunc("/health", s.HealthHandler).Methods(http.MethodGet)
	r.HandleFunc("/reload", s.ReloadHandler).Methods(http.MethodPost)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	return r
}

// Reload refreshes the serving configuration from Postgres in one atomic
// snapshot swap. Concurrent calls serialize; readers are never blocked.
func (s *Server) Reload() error {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	campaigns, err := s.PG.LoadCampaigns()
	if err != nil {
		return err
	}
	creatives, err := s.PG.LoadCreatives()
	if err != nil {
		return err
	}
	placements, err := s.PG.LoadPlacements()
	if err != nil {
		return err
	}
	assignments, err := s.PG.LoadAssignments()
	if err != nil {
		return err
	}
	if err := s.AdDataStore.ReloadAll(campaigns, creatives, placements, assignments); err != nil {
		return err
	}
	s.Logger.Info("serving configuration reloaded",
		zap.Int("campaigns", len(campaigns)),
		zap.Int("creatives", len(creatives)),
		zap.Int("placements", len(placements)),
		zap.Int("assignments", len(assignments)))
	return nil
}

// writeJSON serializes v with the standard headers. Encoding failures are
// logged; the status line has already been sent.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.Logger.Error("encode response", zap.Error(err))
	}
}
