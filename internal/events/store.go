package events

import (
	"context"

	"github.com/clinicdex/adcore/internal/models"
)

// Store is the persistence boundary for impression, click and conversion
// rows. Click and conversion inserts must be insert-if-absent keyed by
// clickId: a duplicate key is a silent no-op, never an error, and exactly one
// row survives arbitrary concurrent or replayed requests.
type Store interface {
	InsertImpression(ctx context.Context, imp models.Impression) error
	GetImpression(ctx context.Context, clickID string) (*models.Impression, error)
	InsertClick(ctx context.Context, c models.Click) error
	ClickExists(ctx context.Context, clickID string) (bool, error)
	InsertConversion(ctx context.Context, c models.Conversion) error
}
