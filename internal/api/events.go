package api

import (
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/clinicdex/adcore/internal/analytics"
	"github.com/clinicdex/adcore/internal/middleware"
)

// EventsHandler handles GET /api/events?click_id=ID: the full analytics
// trail (impression, click, conversion) for one click id, for attribution
// debugging.
func (s *Server) EventsHandler(w http.ResponseWriter, r *http.Request) {
	logger := middleware.LoggerFromRequest(r, s.Logger)

	start := time.Now()
	const endpoint = "/api/events"
	const method = "GET"

	clickID := r.URL.Query().Get("click_id")
	if clickID == "" {
		s.Metrics.IncrementRequests(endpoint, method, "400")
		s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
		http.Error(w, "click_id required", http.StatusBadRequest)
		return
	}

	events, err := s.Analytics.GetEventsByClickID(r.Context(), clickID)
	if err != nil {
		if errors.Is(err, analytics.ErrUnavailable) {
			s.Metrics.IncrementRequests(endpoint, method, "503")
			s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
			http.Error(w, "analytics unavailable", http.StatusServiceUnavailable)
			return
		}
		logger.Error("event lookup", zap.Error(err), zap.String("click_id", clickID))
		s.Metrics.IncrementRequests(endpoint, method, "500")
		s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
		http.Error(w, "lookup failed", http.StatusInternalServerError)
		return
	}
	if events == nil {
		events = []analytics.Event{}
	}

	s.writeJSON(w, http.StatusOK, events)
	s.Metrics.IncrementRequests(endpoint, method, "200")
	s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
}
