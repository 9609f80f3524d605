// Package settings manages the singleton ad settings row: a TTL-bounded
// cache in front of Postgres, invalidated across instances through a Redis
// pub/sub channel when an admin updates the value.
package settings

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/clinicdex/adcore/internal/db"
	"github.com/clinicdex/adcore/internal/models"
	"github.com/clinicdex/adcore/internal/observability"
)

// ErrInvalidPercentage is returned when an update is outside 0..100.
var ErrInvalidPercentage = fmt.Errorf("ad server percentage must be between 0 and 100")

// Store is the persistence boundary for the settings row.
type Store interface {
	GetAdSettings(ctx context.Context) (models.AdSettings, error)
	UpdateAdSettings(ctx context.Context, percentage int) error
}

// Provider serves the settings row from a bounded-TTL cache. Reads on the
// decision hot path hit the cache; Postgres is consulted only when the cached
// copy expires or is invalidated.
type Provider struct {
	store   Store
	ttl     time.Duration
	logger  *zap.Logger
	metrics observability.MetricsRegistry

	mu      sync.RWMutex
	cached  models.AdSettings
	expires time.Time
}

// NewProvider creates a Provider with the given cache TTL.
func NewProvider(store Store, ttl time.Duration, logger *zap.Logger, metrics observability.MetricsRegistry) *Provider {
	return &Provider{
		store:   store,
		ttl:     ttl,
		logger:  logger.Named("settings"),
		metrics: metrics,
	}
}

// Get returns the current settings, reloading from storage when the cached
// copy has expired.
func (p *Provider) Get(ctx context.Context) (models.AdSettings, error) {
	p.mu.RLock()
	if time.Now().Before(p.expires) {
		s := p.cached
		p.mu.RUnlock()
		return s, nil
	}
	p.mu.RUnlock()

	p.mu.Lock()
	defer p.mu.Unlock()
	// Re-check: another goroutine may have refreshed while we waited.
	if time.Now().Before(p.expires) {
		return p.cached, nil
	}

	s, err := p.store.GetAdSettings(ctx)
	if err != nil {
		return models.AdSettings{}, fmt.Errorf("load ad settings: %w", err)
	}
	p.cached = s
	p.expires = time.Now().Add(p.ttl)
	p.metrics.IncrementSettingsReloads()
	return s, nil
}

// Update validates and persists a new percentage, then drops the cached copy
// so the next read observes it immediately.
func (p *Provider) Update(ctx context.Context, percentage int) error {
	if percentage < 0 || percentage > 100 {
		return ErrInvalidPercentage
	}
	if err := p.store.UpdateAdSettings(ctx, percentage); err != nil {
		return fmt.Errorf("persist ad settings: %w", err)
	}
	p.Invalidate()
	return nil
}

// Invalidate drops the cached copy.
func (p *Provider) Invalidate() {
	p.mu.Lock()
	p.expires = time.Time{}
	p.mu.Unlock()
}

// WatchInvalidations subscribes to the Redis settings channel and drops the
// cache on every message until ctx is done. Run it in its own goroutine.
func (p *Provider) WatchInvalidations(ctx context.Context, rs *db.RedisStore) {
	if rs == nil || rs.Client == nil {
		return
	}
	sub := rs.SubscribeSettingsUpdates(ctx)
	defer func() {
		_ = sub.Close()
	}()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-ch:
			if !ok {
				return
			}
			p.logger.Debug("settings invalidation received")
			p.Invalidate()
		}
	}
}
