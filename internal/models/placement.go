package models

// Placement represents a named ad slot on the site (e.g.,
// "native-panel-bottom"). It defines the default dimensions and the creative
// formats and aspect ratios allowed to serve in that slot, giving the site
// control over what kinds of ads appear where. Placements are configured by
// the admin workflow and read-only to the serving core.
type Placement struct {
	// Name is the unique identifier used in serve requests to specify which
	// slot is being filled.
	Name string `json:"name"`
	// PageType scopes the placement to a class of pages ("listing", "article",
	// "home"). Informational; the serving core does not enforce it.
	PageType string `json:"page_type"`
	Width    int    `json:"width"`  // Default slot width in pixels.
	Height   int    `json:"height"` // Default slot height in pixels.
	// Formats lists the creative formats allowed in this slot. Empty means any.
	Formats []string `json:"formats"`
	// AspectRatios lists the accepted creative aspect ratios. Empty means any.
	AspectRatios []string `json:"aspect_ratios"`
}

// AllowsFormat reports whether the placement accepts the given creative format.
func (p *Placement) AllowsFormat(format string) bool {
	if p == nil {
		return false
	}
	if len(p.Formats) == 0 {
		return true
	}
	for _, f := range p.Formats {
		if f == format {
			return true
		}
	}
	return false
}

// AllowsAspectRatio reports whether the placement accepts the given ratio.
// Creatives without a declared ratio are accepted everywhere.
func (p *Placement) AllowsAspectRatio(ratio string) bool {
	if p == nil {
		return false
	}
	if len(p.AspectRatios) == 0 || ratio == "" {
		return true
	}
	for _, r := range p.AspectRatios {
		if r == ratio {
			return true
		}
	}
	return false
}

// CampaignPlacement assigns a Campaign to a Placement. The pair is unique;
// WeightOverride, when set, replaces the creative's own weight for selection
// within that placement.
type CampaignPlacement struct {
	CampaignID     int      `json:"campaign_id"`
	PlacementName  string   `json:"placement_name"`
	WeightOverride *float64 `json:"weight_override,omitempty"`
}
