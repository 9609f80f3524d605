// Package rotation runs featured-listing rotation batches: on each run a
// fresh set of least-recently-featured listings replaces the current
// featured set in a single transaction.
package rotation

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clinicdex/adcore/internal/models"
	"github.com/clinicdex/adcore/internal/observability"
)

// ErrNoListings is returned when no active listings exist to feature.
var ErrNoListings = errors.New("no active listings available")

// Store is the persistence boundary for a rotation run. The implementation
// must perform the whole swap atomically: select the batch, clear the old
// featured set and mark the new one, or do nothing at all.
type Store interface {
	SelectAndFeature(ctx context.Context, batch models.RotationBatch, size int) ([]int64, error)
}

// Scheduler assembles and executes rotation batches.
type Scheduler struct {
	store   Store
	logger  *zap.Logger
	metrics observability.MetricsRegistry
}

// NewScheduler creates a Scheduler over the given store.
func NewScheduler(store Store, logger *zap.Logger, metrics observability.MetricsRegistry) *Scheduler {
	return &Scheduler{store: store, logger: logger.Named("rotation"), metrics: metrics}
}

// Run executes one rotation. The requested size is clamped to the allowed
// range rather than rejected. notificationCampaignID, when non-nil, links
// the batch to an outbound notification campaign. Every member of the
// returned batch carries the same FeaturedAt instant.
func (s *Scheduler) Run(ctx context.Context, size int, notificationCampaignID *int64) (*models.RotationBatch, error) {
	requested := size
	size = models.ClampRotationBatchSize(size)
	if size != requested {
		s.logger.Info("batch size clamped",
			zap.Int("requested", requested),
			zap.Int("clamped", size))
	}

	batch := models.RotationBatch{
		ID:                     uuid.NewString(),
		FeaturedAt:             time.Now().UTC(),
		NotificationCampaignID: notificationCampaignID,
	}

	listingIDs, err := s.store.SelectAndFeature(ctx, batch, size)
	if err != nil {
		return nil, err
	}
	if len(listingIDs) == 0 {
		return nil, ErrNoListings
	}
	batch.ListingIDs = listingIDs

	s.metrics.IncrementRotationBatches()
	s.metrics.ObserveRotationBatchSize(len(listingIDs))
	s.logger.Info("rotation batch featured",
		zap.String("batch_id", batch.ID),
		zap.Int("size", len(listingIDs)))
	return &batch, nil
}
