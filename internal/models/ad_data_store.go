package models

import (
	"errors"
	"sync/atomic"
)

// ErrNotFound is returned when an entity is not found in the data store.
var ErrNotFound = errors.New("entity not found")

// AdDataStore provides thread-safe access to the admin-owned serving
// configuration (campaigns, creatives, placements and their assignments)
// without global variables. The serving core treats this data as read-only;
// writes happen only on the reload path when fresh rows arrive from Postgres.
type AdDataStore interface {
	// Read operations (hot path)
	GetCampaign(campaignID int) *Campaign
	GetCreative(creativeID int) *Creative
	GetPlacement(name string) *Placement
	// GetCreativesByCampaign returns the creatives owned by a campaign.
	GetCreativesByCampaign(campaignID int) []Creative
	// GetAssignments returns the campaign-placement rows for a placement.
	GetAssignments(placementName string) []CampaignPlacement

	// Iteration methods
	GetAllCampaigns() []Campaign
	GetAllCreatives() []Creative
	GetAllPlacements() []Placement

	// Atomic bulk reload of all configuration at once.
	ReloadAll(campaigns []Campaign, creatives []Creative, placements []Placement, assignments []CampaignPlacement) error
}

// dataSnapshot is an immutable snapshot of all serving configuration.
type dataSnapshot struct {
	campaigns      []Campaign
	campaignIndex  map[int]*Campaign
	creatives      []Creative
	creativeIndex  map[int]*Creative
	byCampaign     map[int][]Creative
	placements     []Placement
	placementIndex map[string]*Placement
	assignments    map[string][]CampaignPlacement
}

// InMemoryAdDataStore implements AdDataStore with atomic snapshot swaps, so
// hot-path reads never take a lock and reloads are all-or-nothing.
type InMemoryAdDataStore struct {
	data atomic.Pointer[dataSnapshot]
}

// NewInMemoryAdDataStore creates an empty AdDataStore instance.
func NewInMemoryAdDataStore() *InMemoryAdDataStore {
	store := &InMemoryAdDataStore{}
	store.data.Store(emptySnapshot())
	return store
}

func emptySnapshot() *dataSnapshot {
	return &dataSnapshot{
		campaignIndex:  make(map[int]*Campaign),
		creativeIndex:  make(map[int]*Creative),
		byCampaign:     make(map[int][]Creative),
		placementIndex: make(map[string]*Placement),
		assignments:    make(map[string][]CampaignPlacement),
	}
}

// buildSnapshot indexes the raw slices and links each creative to its
// campaign so serve-path lookups are O(1).
func buildSnapshot(campaigns []Campaign, creatives []Creative, placements []Placement, assignments []CampaignPlacement) *dataSnapshot {
	snap := emptySnapshot()

	snap.campaigns = make([]Campaign, len(campaigns))
	copy(snap.campaigns, campaigns)
	for i := range snap.campaigns {
		snap.campaignIndex[snap.campaigns[i].ID] = &snap.campaigns[i]
	}

	snap.creatives = make([]Creative, len(creatives))
	copy(snap.creatives, creatives)
	for i := range snap.creatives {
		cr := &snap.creatives[i]
		cr.Campaign = snap.campaignIndex[cr.CampaignID]
		snap.creativeIndex[cr.ID] = cr
		snap.byCampaign[cr.CampaignID] = append(snap.byCampaign[cr.CampaignID], *cr)
	}

	snap.placements = make([]Placement, len(placements))
	copy(snap.placements, placements)
	for i := range snap.placements {
		snap.placementIndex[snap.placements[i].Name] = &snap.placements[i]
	}

	for _, a := range assignments {
		snap.assignments[a.PlacementName] = append(snap.assignments[a.PlacementName], a)
	}

	return snap
}

// GetCampaign retrieves a campaign by ID.
func (s *InMemoryAdDataStore) GetCampaign(campaignID int) *Campaign {
	return s.data.Load().campaignIndex[campaignID]
}

// GetCreative retrieves a creative by ID.
func (s *InMemoryAdDataStore) GetCreative(creativeID int) *Creative {
	return s.data.Load().creativeIndex[creativeID]
}

// GetPlacement retrieves a placement by name.
func (s *InMemoryAdDataStore) GetPlacement(name string) *Placement {
	return s.data.Load().placementIndex[name]
}

// GetCreativesByCampaign returns a copy of the creatives owned by a campaign.
func (s *InMemoryAdDataStore) GetCreativesByCampaign(campaignID int) []Creative {
	items := s.data.Load().byCampaign[campaignID]
	if items == nil {
		return nil
	}
	result := make([]Creative, len(items))
	copy(result, items)
	return result
}

// GetAssignments returns the campaign-placement rows for a placement.
func (s *InMemoryAdDataStore) GetAssignments(placementName string) []CampaignPlacement {
	items := s.data.Load().assignments[placementName]
	if items == nil {
		return nil
	}
	result := make([]CampaignPlacement, len(items))
	copy(result, items)
	return result
}

// GetAllCampaigns returns a copy of every campaign.
func (s *InMemoryAdDataStore) GetAllCampaigns() []Campaign {
	data := s.data.Load()
	result := make([]Campaign, len(data.campaigns))
	copy(result, data.campaigns)
	return result
}

// GetAllCreatives returns a copy of every creative.
func (s *InMemoryAdDataStore) GetAllCreatives() []Creative {
	data := s.data.Load()
	result := make([]Creative, len(data.creatives))
	copy(result, data.creatives)
	return result
}

// GetAllPlacements returns a copy of every placement.
func (s *InMemoryAdDataStore) GetAllPlacements() []Placement {
	data := s.data.Load()
	result := make([]Placement, len(data.placements))
	copy(result, data.placements)
	return result
}

// ReloadAll atomically replaces the entire configuration snapshot. Readers
// racing with a reload see either the old snapshot or the new one, never a mix.
func (s *InMemoryAdDataStore) ReloadAll(campaigns []Campaign, creatives []Creative, placements []Placement, assignments []CampaignPlacement) error {
	s.data.Store(buildSnapshot(campaigns, creatives, placements, assignments))
	return nil
}

// NewTestAdDataStore creates an empty store for unit tests.
func NewTestAdDataStore() *InMemoryAdDataStore {
	return NewInMemoryAdDataStore()
}
