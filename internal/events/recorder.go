// Package events records impressions, clicks and conversions. All writes are
// dispatched as background operations with a best-effort contract: the HTTP
// response (or redirect) never waits for a write, and a failed write is
// logged and counted, never retried or surfaced to the visitor.
package events

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/avct/uasurfer"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/clinicdex/adcore/internal/analytics"
	"github.com/clinicdex/adcore/internal/db"
	"github.com/clinicdex/adcore/internal/geoip"
	"github.com/clinicdex/adcore/internal/models"
	"github.com/clinicdex/adcore/internal/observability"
)

var centsFactor = decimal.NewFromInt(100)

// Recorder persists traffic events and mirrors them to the analytics stream.
type Recorder struct {
	store     Store
	analytics analytics.Service
	redis     *db.RedisStore
	geo       *geoip.GeoIP
	logger    *zap.Logger
	metrics   observability.MetricsRegistry
	timeout   time.Duration

	wg sync.WaitGroup
}

// NewRecorder constructs a Recorder. redis and geo may be nil; the
// corresponding enrichment is skipped.
func NewRecorder(store Store, svc analytics.Service, redis *db.RedisStore, geo *geoip.GeoIP, logger *zap.Logger, metrics observability.MetricsRegistry, timeout time.Duration) *Recorder {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Recorder{
		store:     store,
		analytics: svc,
		redis:     redis,
		geo:       geo,
		logger:    logger.Named("events"),
		metrics:   metrics,
		timeout:   timeout,
	}
}

// RecordImpression dispatches the impression write. Returns immediately.
func (r *Recorder) RecordImpression(imp models.Impression, placementName string) {
	r.metrics.IncrementEvent("impression")
	r.dispatch("impression", func(ctx context.Context) error {
		if err := r.store.InsertImpression(ctx, imp); err != nil {
			return err
		}
		if r.redis != nil {
			if err := r.redis.IncrementServe(imp.CreativeID); err != nil {
				r.logger.Warn("serve counter", zap.Error(err))
			}
		}
		r.recordAnalytics(ctx, analytics.Event{
			EventType:  "impression",
			ClickID:    imp.ClickID,
			CreativeID: int32Ptr(imp.CreativeID),
			Placement:  strPtr(placementName),
			PagePath:   strPtr(imp.PagePath),
		})
		return nil
	})
}

// RecordClick dispatches the click write with its fraud verdict. The caller
// issues the redirect without waiting; duplicate click ids collapse to one
// row inside the store.
func (r *Recorder) RecordClick(click models.Click, creative *models.Creative) {
	r.metrics.IncrementEvent("click")
	r.metrics.IncrementFraudVerdict(click.BotReason)
	r.dispatch("click", func(ctx context.Context) error {
		if err := r.store.InsertClick(ctx, click); err != nil {
			return err
		}
		ev := analytics.Event{
			EventType:  "click",
			ClickID:    click.ClickID,
			DeviceType: strPtr(deviceTypeOf(click.UserAgent)),
			Country:    strPtr(r.countryOf(click.IPAddress)),
			IsBot:      click.IsBot,
			BotReason:  strPtr(click.BotReason),
		}
		if creative != nil {
			ev.CreativeID = int32Ptr(creative.ID)
			ev.CampaignID = int32Ptr(creative.CampaignID)
			if r.redis != nil {
				if err := r.redis.IncrementClick(creative.ID); err != nil {
					r.logger.Warn("click counter", zap.Error(err))
				}
			}
		}
		r.recordAnalytics(ctx, ev)
		return nil
	})
}

// RecordConversion dispatches the conversion write. Validation (secret,
// known click, payout shape) happens in the handler before this is called.
func (r *Recorder) RecordConversion(conv models.Conversion) {
	r.metrics.IncrementEvent("conversion")
	r.dispatch("conversion", func(ctx context.Context) error {
		if err := r.store.InsertConversion(ctx, conv); err != nil {
			return err
		}
		r.recordAnalytics(ctx, analytics.Event{
			EventType:   "conversion",
			ClickID:     conv.ClickID,
			PayoutCents: conv.Payout.Mul(centsFactor).IntPart(),
		})
		return nil
	})
}

// Wait blocks until all dispatched writes have finished. Used on shutdown
// and in tests.
func (r *Recorder) Wait() {
	r.wg.Wait()
}

// dispatch runs fn on its own goroutine with a detached, bounded context.
// The context deliberately does not descend from the request: the request
// finishes (and its context is canceled) before the write completes.
func (r *Recorder) dispatch(eventType string, fn func(context.Context) error) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			r.metrics.IncrementRecordFailures(eventType)
			r.logger.Error("record "+eventType, zap.Error(err))
		}
	}()
}

// recordAnalytics mirrors an event to the analytics stream, best-effort.
func (r *Recorder) recordAnalytics(ctx context.Context, ev analytics.Event) {
	if r.analytics == nil {
		return
	}
	if err := r.analytics.RecordEvent(ctx, ev); err != nil {
		r.logger.Warn("analytics record", zap.Error(err), zap.String("event_type", ev.EventType))
	}
}

func (r *Recorder) countryOf(ipAddress string) string {
	if r.geo == nil {
		return ""
	}
	return r.geo.Country(net.ParseIP(ipAddress))
}

// deviceTypeOf maps a raw user agent to a coarse device class.
func deviceTypeOf(ua string) string {
	switch uasurfer.Parse(ua).DeviceType {
	case uasurfer.DeviceComputer:
		return "desktop"
	case uasurfer.DevicePhone:
		return "mobile"
	case uasurfer.DeviceTablet:
		return "tablet"
	default:
		return "other"
	}
}

func int32Ptr(v int) *int32 {
	x := int32(v)
	return &x
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
