package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/clinicdex/adcore/internal/middleware"
	"github.com/clinicdex/adcore/internal/settings"
)

// GetSettingsHandler handles GET /api/settings.
func (s *Server) GetSettingsHandler(w http.ResponseWriter, r *http.Request) {
	logger := middleware.LoggerFromRequest(r, s.Logger)

	start := time.Now()
	const endpoint = "/api/settings"
	const method = "GET"

	current, err := s.Settings.Get(r.Context())
	if err != nil {
		logger.Error("load settings", zap.Error(err))
		s.Metrics.IncrementRequests(endpoint, method, "500")
		s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
		http.Error(w, "settings unavailable", http.StatusInternalServerError)
		return
	}

	s.writeJSON(w, http.StatusOK, current)
	s.Metrics.IncrementRequests(endpoint, method, "200")
	s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
}

type updateSettingsRequest struct {
	AdServerPercentage int `json:"ad_server_percentage"`
}

// UpdateSettingsHandler handles PUT /api/settings. The change is persisted,
// visible locally at once and broadcast over Redis pub/sub so other
// instances drop their cached copy.
func (s *Server) UpdateSettingsHandler(w http.ResponseWriter, r *http.Request) {
	logger := middleware.LoggerFromRequest(r, s.Logger)

	start := time.Now()
	const endpoint = "/api/settings"
	const method = "PUT"

	var req updateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.Metrics.IncrementRequests(endpoint, method, "400")
		s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	if err := s.Settings.Update(r.Context(), req.AdServerPercentage); err != nil {
		if errors.Is(err, settings.ErrInvalidPercentage) {
			s.Metrics.IncrementRequests(endpoint, method, "400")
			s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		logger.Error("update settings", zap.Error(err))
		s.Metrics.IncrementRequests(endpoint, method, "500")
		s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
		http.Error(w, "update failed", http.StatusInternalServerError)
		return
	}

	if s.Redis != nil {
		if err := s.Redis.PublishSettingsUpdate(r.Context()); err != nil {
			logger.Warn("publish settings update", zap.Error(err))
		}
	}

	logger.Info("ad settings updated", zap.Int("percentage", req.AdServerPercentage))
	current, err := s.Settings.Get(r.Context())
	if err != nil {
		logger.Error("reload settings after update", zap.Error(err))
		s.Metrics.IncrementRequests(endpoint, method, "500")
		s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
		http.Error(w, "settings unavailable", http.StatusInternalServerError)
		return
	}

	s.writeJSON(w, http.StatusOK, current)
	s.Metrics.IncrementRequests(endpoint, method, "200")
	s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
}
