package api

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/clinicdex/adcore/internal/middleware"
)

// DecisionHandler handles GET /ads/decision. It answers whether this request
// should be served hosted ads, per the adServerPercentage setting. The
// response is marked uncacheable so every page load is a fresh draw and a
// settings change takes effect immediately.
func (s *Server) DecisionHandler(w http.ResponseWriter, r *http.Request) {
	logger := middleware.LoggerFromRequest(r, s.Logger)

	start := time.Now()
	const endpoint = "/ads/decision"
	const method = "GET"

	serve, err := s.Gate.Allow(r.Context())
	if err != nil {
		logger.Error("decision gate", zap.Error(err))
		s.Metrics.IncrementRequests(endpoint, method, "500")
		s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
		http.Error(w, "settings unavailable", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Cache-Control", "no-store, private")
	s.writeJSON(w, http.StatusOK, map[string]bool{"useHostedAds": serve})
	s.Metrics.IncrementRequests(endpoint, method, "200")
	s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
}
