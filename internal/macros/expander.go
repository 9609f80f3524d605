// Package macros expands placeholders in creative destination URLs. The one
// macro advertisers rely on is {clickId}, which lets the affiliate network
// round-trip our click identifier in its conversion postback; a few ad
// context macros are supported alongside it.
package macros

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/clinicdex/adcore/internal/models"
)

// ClickContext carries the values available for expansion at click time.
type ClickContext struct {
	ClickID       string
	CreativeID    int
	CampaignID    int
	PlacementName string
	Timestamp     time.Time
}

// Expander substitutes macros in destination URLs.
type Expander struct {
	logger *zap.Logger
}

// NewExpander creates an Expander.
func NewExpander(logger *zap.Logger) *Expander {
	return &Expander{logger: logger.Named("macros")}
}

// Expand replaces all supported macros in rawURL. Values are query-escaped.
// Unknown {placeholders} are left untouched so a typo in an advertiser URL
// degrades to a literal rather than a broken redirect.
func (e *Expander) Expand(rawURL string, ctx ClickContext) string {
	if rawURL == "" || !strings.Contains(rawURL, "{") {
		return rawURL
	}

	ts := ctx.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	replacer := strings.NewReplacer(
		models.ClickIDMacro, url.QueryEscape(ctx.ClickID),
		"{creativeId}", strconv.Itoa(ctx.CreativeID),
		"{campaignId}", strconv.Itoa(ctx.CampaignID),
		"{placement}", url.QueryEscape(ctx.PlacementName),
		"{timestamp}", strconv.FormatInt(ts.Unix(), 10),
	)
	expanded := replacer.Replace(rawURL)

	if strings.Contains(expanded, "{") {
		e.logger.Debug("destination URL contains unrecognized macros",
			zap.String("url", expanded))
	}
	return expanded
}

// Destination resolves the effective destination URL for a creative and
// expands its macros. The creative's configured URL is the only source; a
// client-supplied target is never consulted.
func (e *Expander) Destination(creative *models.Creative, ctx ClickContext) string {
	if creative == nil || creative.DestinationURL == "" {
		return ""
	}
	return e.Expand(creative.DestinationURL, ctx)
}
