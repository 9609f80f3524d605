package api

import (
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/clinicdex/adcore/internal/fraud"
	"github.com/clinicdex/adcore/internal/macros"
	"github.com/clinicdex/adcore/internal/middleware"
	"github.com/clinicdex/adcore/internal/models"
)

// ClickHandler handles GET /ads/click?click_id=ID. It resolves the
// destination server-side from the impression the click id was minted for,
// classifies the click for fraud, records it and redirects. Bot clicks are
// still redirected; the verdict only marks the stored row so the traffic
// never counts toward reporting.
func (s *Server) ClickHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "ClickHandler",
		trace.WithAttributes(
			attribute.String("http.method", "GET"),
			attribute.String("http.route", "/ads/click"),
		))
	defer span.End()

	logger := middleware.LoggerFromRequest(r, s.Logger)

	start := time.Now()
	const endpoint = "/ads/click"
	const method = "GET"

	clickID := r.URL.Query().Get("click_id")
	if clickID == "" {
		s.Metrics.IncrementRequests(endpoint, method, "400")
		s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
		http.Error(w, "click_id required", http.StatusBadRequest)
		return
	}
	span.SetAttributes(attribute.String("click_id", clickID))

	imp, err := s.EventStore.GetImpression(ctx, clickID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "impression lookup failed")
		logger.Error("impression lookup", zap.Error(err), zap.String("click_id", clickID))
		s.Metrics.IncrementRequests(endpoint, method, "500")
		s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
		http.Error(w, "lookup failed", http.StatusInternalServerError)
		return
	}
	if imp == nil {
		logger.Warn("unknown click id", zap.String("click_id", clickID))
		s.Metrics.IncrementRequests(endpoint, method, "404")
		s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
		http.Error(w, "unknown click", http.StatusNotFound)
		return
	}

	creative := s.AdDataStore.GetCreative(imp.CreativeID)
	if creative == nil || creative.DestinationURL == "" {
		logger.Error("no destination for click",
			zap.String("click_id", clickID),
			zap.Int("creative_id", imp.CreativeID))
		s.Metrics.IncrementRequests(endpoint, method, "404")
		s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
		http.Error(w, "unknown click", http.StatusNotFound)
		return
	}

	ip := clientIP(r)
	ua := r.UserAgent()
	verdict := fraud.Classify(ua, ip, r.Header.Get("X-Forwarded-For"), r.Header.Get("Via"))
	if !verdict.Allowed {
		span.SetAttributes(attribute.String("bot_reason", verdict.Reason))
	}

	s.Recorder.RecordClick(models.Click{
		ClickID:   clickID,
		IPAddress: ip,
		UserAgent: ua,
		IsBot:     !verdict.Allowed,
		BotReason: verdict.Reason,
		CreatedAt: time.Now().UTC(),
	}, creative)

	destination := s.Macros.Destination(creative, macros.ClickContext{
		ClickID:    clickID,
		CreativeID: creative.ID,
		CampaignID: creative.CampaignID,
		Timestamp:  time.Now().UTC(),
	})

	s.Metrics.IncrementRequests(endpoint, method, "302")
	s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
	http.Redirect(w, r, destination, http.StatusFound)
}

// clientIP extracts the peer address without the port. Proxy headers are
// inspected by the fraud classifier, not trusted for identity here.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
