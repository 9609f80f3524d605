// Package ads implements creative selection for a placement: eligibility
// filtering, weighted sampling and the percentage gate that decides whether
// a visitor sees hosted ads at all.
package ads

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/clinicdex/adcore/internal/models"
	"github.com/clinicdex/adcore/internal/sampling"
)

// ErrUnknownPlacement is returned when the requested placement name is not
// configured.
var ErrUnknownPlacement = errors.New("unknown placement")

// Candidate pairs an eligible creative with its effective selection weight
// for one placement. The assignment's weight override, when present, replaces
// the creative's own weight.
type Candidate struct {
	Creative models.Creative
	Weight   float64
}

// Resolver computes the eligible creatives for a placement and draws from
// them by weight.
type Resolver struct {
	store  models.AdDataStore
	logger *zap.Logger
}

// NewResolver creates a Resolver over the given configuration store.
func NewResolver(store models.AdDataStore, logger *zap.Logger) *Resolver {
	return &Resolver{store: store, logger: logger.Named("resolver")}
}

// Eligible returns the candidates for a placement at the given instant.
// A creative qualifies when it is active, its campaign is live, the campaign
// is assigned to the placement and the placement accepts the creative's
// format and aspect ratio. An empty result is a valid no-fill, not an error.
func (r *Resolver) Eligible(placementName string, now time.Time) ([]Candidate, error) {
	placement := r.store.GetPlacement(placementName)
	if placement == nil {
		return nil, ErrUnknownPlacement
	}

	var out []Candidate
	for _, assignment := range r.store.GetAssignments(placementName) {
		campaign := models.GetCampaignByID(r.store, assignment.CampaignID)
		if !campaign.IsLive(now) {
			continue
		}
		for _, creative := range r.store.GetCreativesByCampaign(assignment.CampaignID) {
			if !creative.Active {
				continue
			}
			if !placement.AllowsFormat(creative.Format) || !placement.AllowsAspectRatio(creative.AspectRatio) {
				continue
			}
			weight := creative.Weight
			if assignment.WeightOverride != nil {
				weight = *assignment.WeightOverride
			}
			out = append(out, Candidate{Creative: creative, Weight: weight})
		}
	}
	return out, nil
}

// SelectOne draws a single creative for the placement, or nil on no-fill.
func (r *Resolver) SelectOne(rng sampling.Source, placementName string, now time.Time) (*models.Creative, error) {
	candidates, err := r.Eligible(placementName, now)
	if err != nil {
		return nil, err
	}
	picked, ok := sampling.SelectOne(rng, candidates, candidateWeight)
	if !ok {
		return nil, nil
	}
	return &picked.Creative, nil
}

// SelectMany draws up to count distinct creatives for the placement. Fewer
// than count eligible creatives means fewer results, down to none.
func (r *Resolver) SelectMany(rng sampling.Source, placementName string, now time.Time, count int) ([]models.Creative, error) {
	candidates, err := r.Eligible(placementName, now)
	if err != nil {
		return nil, err
	}
	picked := sampling.SelectMany(rng, candidates, candidateWeight, count)
	creatives := make([]models.Creative, 0, len(picked))
	for _, c := range picked {
		creatives = append(creatives, c.Creative)
	}
	return creatives, nil
}

func candidateWeight(c Candidate) float64 {
	return c.Weight
}
