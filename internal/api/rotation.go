package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/clinicdex/adcore/internal/middleware"
	"github.com/clinicdex/adcore/internal/rotation"
)

type rotationRequest struct {
	Size                   int    `json:"size"`
	NotificationCampaignID *int64 `json:"notification_campaign_id,omitempty"`
}

// RotationHandler handles POST /api/rotation/run. The body is optional; an
// absent or zero size is clamped to the minimum batch size downstream.
func (s *Server) RotationHandler(w http.ResponseWriter, r *http.Request) {
	logger := middleware.LoggerFromRequest(r, s.Logger)

	start := time.Now()
	const endpoint = "/api/rotation/run"
	const method = "POST"

	var req rotationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.Metrics.IncrementRequests(endpoint, method, "400")
		s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	batch, err := s.Scheduler.Run(r.Context(), req.Size, req.NotificationCampaignID)
	if err != nil {
		if errors.Is(err, rotation.ErrNoListings) {
			s.Metrics.IncrementRequests(endpoint, method, "409")
			s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
			http.Error(w, "no active listings", http.StatusConflict)
			return
		}
		logger.Error("rotation run", zap.Error(err))
		s.Metrics.IncrementRequests(endpoint, method, "500")
		s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
		http.Error(w, "rotation failed", http.StatusInternalServerError)
		return
	}

	s.writeJSON(w, http.StatusOK, batch)
	s.Metrics.IncrementRequests(endpoint, method, "200")
	s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
}
