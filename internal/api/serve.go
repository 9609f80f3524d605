package api

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/clinicdex/adcore/internal/ads"
	"github.com/clinicdex/adcore/internal/middleware"
	"github.com/clinicdex/adcore/internal/models"
)

// maxServeCount caps a single serve request. Pages that want more slots make
// more requests.
const maxServeCount = 10

// ServeHandler handles GET /ads/serve?placement=NAME&path=/page[&count=N].
// It selects creatives for the placement by weight, mints a click id per ad
// and records the impressions without blocking the response. The percentage
// gate is NOT applied here: the page draws it once via /ads/decision, and a
// second draw on serve would compound the two probabilities.
func (s *Server) ServeHandler(w http.ResponseWriter, r *http.Request) {
	_, span := tracer.Start(r.Context(), "ServeHandler",
		trace.WithAttributes(
			attribute.String("http.method", "GET"),
			attribute.String("http.route", "/ads/serve"),
		))
	defer span.End()

	logger := middleware.LoggerFromRequest(r, s.Logger)

	start := time.Now()
	const endpoint = "/ads/serve"
	const method = "GET"

	placementName := r.URL.Query().Get("placement")
	if placementName == "" {
		s.Metrics.IncrementRequests(endpoint, method, "400")
		s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
		http.Error(w, "placement required", http.StatusBadRequest)
		return
	}
	pagePath := r.URL.Query().Get("path")
	span.SetAttributes(attribute.String("placement", placementName))

	count := 1
	if raw := r.URL.Query().Get("count"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			s.Metrics.IncrementRequests(endpoint, method, "400")
			s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
			http.Error(w, "invalid count", http.StatusBadRequest)
			return
		}
		if n > maxServeCount {
			n = maxServeCount
		}
		count = n
	}

	creatives, err := s.Resolver.SelectMany(s.Rng, placementName, time.Now(), count)
	if err != nil {
		if errors.Is(err, ads.ErrUnknownPlacement) {
			s.Metrics.IncrementRequests(endpoint, method, "404")
			s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
			http.Error(w, "unknown placement", http.StatusNotFound)
			return
		}
		span.RecordError(err)
		logger.Error("select creatives", zap.Error(err))
		s.Metrics.IncrementRequests(endpoint, method, "500")
		s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
		http.Error(w, "selection failed", http.StatusInternalServerError)
		return
	}
	if len(creatives) == 0 {
		s.Metrics.IncrementNoFills()
		s.writeEmptyServe(w, r)
		s.Metrics.IncrementRequests(endpoint, method, "200")
		s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
		return
	}

	responses := make([]models.AdResponse, 0, len(creatives))
	for _, creative := range creatives {
		clickID := uuid.NewString()
		responses = append(responses, models.AdResponse{
			CreativeID:  creative.ID,
			CampaignID:  creative.CampaignID,
			Format:      creative.Format,
			AssetURL:    creative.AssetURL,
			HTML:        creative.HTML,
			AspectRatio: creative.AspectRatio,
			ClickID:     clickID,
			ClickURL:    "/ads/click?click_id=" + url.QueryEscape(clickID),
		})
		s.Recorder.RecordImpression(models.Impression{
			ClickID:    clickID,
			CreativeID: creative.ID,
			PagePath:   pagePath,
			CreatedAt:  time.Now().UTC(),
		}, placementName)
	}

	// A bare serve request answers {"ad":...}; an explicit count answers
	// {"ads":[...]}, even when only one ad fills.
	if r.URL.Query().Get("count") == "" {
		s.writeJSON(w, http.StatusOK, map[string]interface{}{"ad": responses[0]})
	} else {
		s.writeJSON(w, http.StatusOK, map[string]interface{}{"ads": responses})
	}
	s.Metrics.IncrementRequests(endpoint, method, "200")
	s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
}

// writeEmptyServe answers a serve request that fills nothing: {"ad":null}
// for a single-ad request, {"ads":[]} for a counted one.
func (s *Server) writeEmptyServe(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("count") == "" {
		s.writeJSON(w, http.StatusOK, map[string]interface{}{"ad": nil})
	} else {
		s.writeJSON(w, http.StatusOK, map[string]interface{}{"ads": []models.AdResponse{}})
	}
}
