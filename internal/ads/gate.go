package ads

import (
	"context"
	"sync"

	"github.com/clinicdex/adcore/internal/models"
	"github.com/clinicdex/adcore/internal/observability"
	"github.com/clinicdex/adcore/internal/sampling"
	"github.com/clinicdex/adcore/internal/settings"
)

// Gate decides per request whether a visitor is served hosted ads, driven by
// the adServerPercentage setting. 0 means never, 100 means always, anything
// in between is an independent draw on every call. The gate never caches a
// verdict: a settings change takes effect on the next request.
type Gate struct {
	settings *settings.Provider
	metrics  observability.MetricsRegistry

	mu  sync.Mutex
	rng sampling.Source
}

// NewGate creates a Gate. The rng is guarded internally, so one Gate is safe
// for concurrent handlers.
func NewGate(provider *settings.Provider, rng sampling.Source, metrics observability.MetricsRegistry) *Gate {
	return &Gate{settings: provider, metrics: metrics, rng: rng}
}

// Allow reports whether this request should be served hosted ads. Settings
// load failures fail closed (no ads) and return the error for logging.
func (g *Gate) Allow(ctx context.Context) (bool, error) {
	s, err := g.settings.Get(ctx)
	if err != nil {
		g.metrics.IncrementDecisions("error")
		return false, err
	}
	allowed := g.draw(s)
	if allowed {
		g.metrics.IncrementDecisions("serve")
	} else {
		g.metrics.IncrementDecisions("skip")
	}
	return allowed, nil
}

func (g *Gate) draw(s models.AdSettings) bool {
	switch {
	case s.AdServerPercentage <= 0:
		return false
	case s.AdServerPercentage >= 100:
		return true
	}
	g.mu.Lock()
	v := g.rng.Float64()
	g.mu.Unlock()
	return v*100 < float64(s.AdServerPercentage)
}
