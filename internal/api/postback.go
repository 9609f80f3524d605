package api

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/clinicdex/adcore/internal/middleware"
	"github.com/clinicdex/adcore/internal/models"
)

// postbackReservedParams are consumed by the handler itself; everything else
// in the query string is preserved verbatim as conversion metadata.
var postbackReservedParams = map[string]bool{
	"secret":   true,
	"click_id": true,
	"payout":   true,
}

// PostbackHandler handles affiliate network conversion postbacks on
// /ads/postback?secret=S&click_id=ID&payout=N. The shared secret gates the
// endpoint; the click must exist; the payout is clamped to the configured
// maximum. A replayed postback answers 200 but never writes a second row.
func (s *Server) PostbackHandler(w http.ResponseWriter, r *http.Request) {
	logger := middleware.LoggerFromRequest(r, s.Logger)

	start := time.Now()
	const endpoint = "/ads/postback"
	method := r.Method

	query := r.URL.Query()

	// Fail closed when no secret is configured: an unauthenticated postback
	// endpoint silently accepting payouts is worse than a broken one.
	secret := query.Get("secret")
	if s.Config.PostbackSecret == "" ||
		subtle.ConstantTimeCompare([]byte(secret), []byte(s.Config.PostbackSecret)) != 1 {
		logger.Warn("postback rejected: bad secret")
		s.Metrics.IncrementRequests(endpoint, method, "401")
		s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	clickID := query.Get("click_id")
	if clickID == "" {
		s.Metrics.IncrementRequests(endpoint, method, "400")
		s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
		http.Error(w, "click_id required", http.StatusBadRequest)
		return
	}

	exists, err := s.EventStore.ClickExists(r.Context(), clickID)
	if err != nil {
		logger.Error("click lookup", zap.Error(err), zap.String("click_id", clickID))
		s.Metrics.IncrementRequests(endpoint, method, "500")
		s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
		http.Error(w, "lookup failed", http.StatusInternalServerError)
		return
	}
	if !exists {
		logger.Warn("postback for unknown click", zap.String("click_id", clickID))
		s.Metrics.IncrementRequests(endpoint, method, "404")
		s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
		http.Error(w, "unknown click", http.StatusNotFound)
		return
	}

	payout := decimal.Zero
	if raw := query.Get("payout"); raw != "" {
		payout, err = decimal.NewFromString(raw)
		if err != nil || payout.IsNegative() {
			s.Metrics.IncrementRequests(endpoint, method, "400")
			s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
			http.Error(w, "invalid payout", http.StatusBadRequest)
			return
		}
	}
	maxPayout := decimal.NewFromFloat(s.Config.MaxPayout)
	if payout.GreaterThan(maxPayout) {
		logger.Warn("payout clamped",
			zap.String("click_id", clickID),
			zap.String("payout", payout.String()))
		payout = maxPayout
	}

	var metadata map[string]string
	for key, values := range query {
		if postbackReservedParams[key] || len(values) == 0 {
			continue
		}
		if metadata == nil {
			metadata = make(map[string]string)
		}
		metadata[key] = values[0]
	}

	s.Recorder.RecordConversion(models.Conversion{
		ClickID:   clickID,
		Payout:    payout,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	})

	s.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	s.Metrics.IncrementRequests(endpoint, method, "200")
	s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
}
