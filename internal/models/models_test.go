package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCampaignIsLive(t *testing.T) {
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		campaign *Campaign
		want     bool
	}{
		{"nil campaign", nil, false},
		{"active no window", &Campaign{Status: CampaignStatusActive}, true},
		{"paused", &Campaign{Status: CampaignStatusPaused}, false},
		{"ended", &Campaign{Status: CampaignStatusEnded}, false},
		{"before start", &Campaign{Status: CampaignStatusActive, StartDate: now.Add(time.Hour)}, false},
		{"after end", &Campaign{Status: CampaignStatusActive, EndDate: now.Add(-time.Hour)}, false},
		{"inside window", &Campaign{
			Status:    CampaignStatusActive,
			StartDate: now.Add(-time.Hour),
			EndDate:   now.Add(time.Hour),
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.campaign.IsLive(now))
		})
	}
}

func TestPlacementAllowsFormat(t *testing.T) {
	open := &Placement{Name: "open"}
	imageOnly := &Placement{Name: "img", Formats: []string{FormatImage}}

	assert.True(t, open.AllowsFormat(FormatHTML))
	assert.True(t, imageOnly.AllowsFormat(FormatImage))
	assert.False(t, imageOnly.AllowsFormat(FormatHTML))

	var nilPlacement *Placement
	assert.False(t, nilPlacement.AllowsFormat(FormatImage))
}

func TestPlacementAllowsAspectRatio(t *testing.T) {
	wide := &Placement{Name: "wide", AspectRatios: []string{"16:9"}}

	assert.True(t, wide.AllowsAspectRatio("16:9"))
	assert.False(t, wide.AllowsAspectRatio("1:1"))
	// Creatives without a declared ratio fit anywhere.
	assert.True(t, wide.AllowsAspectRatio(""))
}

func TestClampRotationBatchSize(t *testing.T) {
	assert.Equal(t, MinRotationBatchSize, ClampRotationBatchSize(-10))
	assert.Equal(t, MinRotationBatchSize, ClampRotationBatchSize(0))
	assert.Equal(t, 25, ClampRotationBatchSize(25))
	assert.Equal(t, MaxRotationBatchSize, ClampRotationBatchSize(500))
	assert.Equal(t, MaxRotationBatchSize, ClampRotationBatchSize(501))
}

func TestAdDataStoreReloadLinksCampaigns(t *testing.T) {
	store := NewInMemoryAdDataStore()
	require.NoError(t, store.ReloadAll(
		[]Campaign{{ID: 1, Name: "c1", Status: CampaignStatusActive}},
		[]Creative{{ID: 10, CampaignID: 1, Active: true}},
		[]Placement{{Name: "sidebar"}},
		[]CampaignPlacement{{CampaignID: 1, PlacementName: "sidebar"}},
	))

	creative := store.GetCreative(10)
	require.NotNil(t, creative)
	require.NotNil(t, creative.Campaign)
	assert.Equal(t, "c1", creative.Campaign.Name)

	assert.Nil(t, store.GetCreative(999))
	assert.Nil(t, store.GetPlacement("nope"))
	assert.Len(t, store.GetAssignments("sidebar"), 1)
}

func TestAdDataStoreReloadReplacesEverything(t *testing.T) {
	store := NewInMemoryAdDataStore()
	require.NoError(t, store.ReloadAll(
		[]Campaign{{ID: 1, Status: CampaignStatusActive}},
		[]Creative{{ID: 10, CampaignID: 1}},
		nil, nil,
	))
	require.NoError(t, store.ReloadAll(
		[]Campaign{{ID: 2, Status: CampaignStatusActive}},
		[]Creative{{ID: 20, CampaignID: 2}},
		nil, nil,
	))

	assert.Nil(t, store.GetCreative(10))
	assert.NotNil(t, store.GetCreative(20))
	assert.Nil(t, store.GetCampaign(1))
}
