package models

import "time"

// Rotation batch size bounds. Requested sizes outside this range are clamped,
// not rejected.
const (
	MinRotationBatchSize = 1
	MaxRotationBatchSize = 500
)

// RotationBatch groups the set of directory listings marked "featured"
// together in one scheduler run. Every member shares the single FeaturedAt
// timestamp. Batches are written once by the scheduler and never mutated.
type RotationBatch struct {
	// ID is a generated identifier shared by all members of the batch.
	ID string `json:"id"`
	// FeaturedAt is the instant the batch took effect.
	FeaturedAt time.Time `json:"featured_at"`
	// ListingIDs are the directory listings featured by this batch.
	ListingIDs []int64 `json:"listing_ids"`
	// NotificationCampaignID optionally links the batch to an outbound
	// notification campaign managed by the external email system.
	NotificationCampaignID *int64 `json:"notification_campaign_id,omitempty"`
}

// ClampRotationBatchSize bounds a requested batch size to the allowed range.
func ClampRotationBatchSize(n int) int {
	if n < MinRotationBatchSize {
		return MinRotationBatchSize
	}
	if n > MaxRotationBatchSize {
		return MaxRotationBatchSize
	}
	return n
}
