package models

import "time"

// Campaign lifecycle statuses. A campaign only serves while its status is
// active and the current time falls inside its date window.
const (
	// CampaignStatusActive means the campaign is eligible to serve.
	CampaignStatusActive = "active"
	// CampaignStatusPaused means the campaign is temporarily withheld by ad ops.
	CampaignStatusPaused = "paused"
	// CampaignStatusEnded means the campaign has finished and will never serve again.
	CampaignStatusEnded = "ended"
)

// Campaign represents an advertiser-level grouping of creatives. Delivery
// configuration (weights, destinations, formats) lives on the Creative; the
// campaign carries the lifecycle status and the date window that gate all of
// its creatives at once. Campaigns are created and mutated by the admin
// workflow; the serving core only reads them.
type Campaign struct {
	ID     int    `json:"id"`     // Unique identifier for the campaign.
	Name   string `json:"name"`   // Human-readable name (e.g., "Q4 Dental Implants Push").
	Status string `json:"status"` // One of the CampaignStatus* constants.
	// StartDate and EndDate bound the serving window. A zero StartDate means
	// "already started"; a zero EndDate means "no scheduled end".
	StartDate time.Time `json:"start_date,omitempty"`
	EndDate   time.Time `json:"end_date,omitempty"`
}

// IsLive reports whether the campaign may serve at the given instant: status
// is active and now falls inside the (possibly open-ended) date window.
func (c *Campaign) IsLive(now time.Time) bool {
	if c == nil || c.Status != CampaignStatusActive {
		return false
	}
	if !c.StartDate.IsZero() && now.Before(c.StartDate) {
		return false
	}
	if !c.EndDate.IsZero() && now.After(c.EndDate) {
		return false
	}
	return true
}

// GetCampaignByID returns the campaign matching the given ID, or nil if not found.
// This function delegates to the AdDataStore for thread-safe access.
func GetCampaignByID(store AdDataStore, id int) *Campaign {
	if store == nil {
		return nil
	}
	return store.GetCampaign(id)
}
