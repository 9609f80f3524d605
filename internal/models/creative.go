package models

// Creative formats supported by the serving core. A placement declares which
// of these it accepts; a creative whose format is not in that list is never
// eligible for the placement.
const (
	FormatImage  = "image"  // static image banner
	FormatHTML   = "html"   // publisher-supplied HTML snippet
	FormatText   = "text"   // plain text ad
	FormatNative = "native" // structured native unit rendered by the page
)

// ClickIDMacro is the placeholder advertisers embed in destination URLs so
// the affiliate network can round-trip our click identifier in its postback.
const ClickIDMacro = "{clickId}"

// Creative is a single ad asset belonging to exactly one Campaign. The
// destination URL may contain the {clickId} macro, substituted at click time.
// Weight drives proportional selection; a creative with weight 0 stays in the
// candidate pool but is never drawn.
type Creative struct {
	ID         int    `json:"id"`
	CampaignID int    `json:"campaign_id"` // Owning campaign. Corresponds to Campaign.ID.
	Name       string `json:"name"`
	// Format is one of the Format* constants and dictates how the asset is
	// interpreted and rendered by the page.
	Format string `json:"format"`
	// DestinationURL is where the visitor lands after the click-tracking
	// redirect. It is resolved server-side only; clients never supply it.
	DestinationURL string `json:"destination_url"`
	// AssetURL points at the image or other static asset for image creatives.
	AssetURL string `json:"asset_url,omitempty"`
	// HTML carries the markup for html creatives.
	HTML string `json:"html,omitempty"`
	// Weight is the creative's base selection weight. Must be >= 0. A
	// campaign-placement assignment may override it per placement.
	Weight float64 `json:"weight"`
	// AspectRatio is a label like "16:9" or "1:1" matched against the
	// placement's accepted ratios.
	AspectRatio string `json:"aspect_ratio"`
	Active      bool   `json:"active"`

	// Campaign is a cached pointer to the owning Campaign to avoid repeated
	// lookups on the serve path. Populated when creatives are loaded into the
	// data store and never serialized.
	Campaign *Campaign `json:"-"`
}

// AdResponse is the shape returned to the page for a single selected ad. The
// ClickURL points at our click-tracking endpoint; the real destination is
// resolved server-side when the click arrives.
type AdResponse struct {
	CreativeID  int    `json:"creative_id"`
	CampaignID  int    `json:"campaign_id"`
	Format      string `json:"format"`
	AssetURL    string `json:"asset_url,omitempty"`
	HTML        string `json:"html,omitempty"`
	AspectRatio string `json:"aspect_ratio,omitempty"`
	// ClickID is the server-generated identifier joining this render to any
	// later click and conversion.
	ClickID  string `json:"click_id"`
	ClickURL string `json:"click_url"`
}
