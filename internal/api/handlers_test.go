package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/clinicdex/adcore/internal/ads"
	"github.com/clinicdex/adcore/internal/analytics"
	"github.com/clinicdex/adcore/internal/config"
	"github.com/clinicdex/adcore/internal/events"
	"github.com/clinicdex/adcore/internal/macros"
	"github.com/clinicdex/adcore/internal/models"
	"github.com/clinicdex/adcore/internal/observability"
	"github.com/clinicdex/adcore/internal/rotation"
	"github.com/clinicdex/adcore/internal/sampling"
	"github.com/clinicdex/adcore/internal/settings"
)

const desktopUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// settingsStore is an in-memory settings.Store for handler tests.
type settingsStore struct {
	percentage int
}

func (s *settingsStore) GetAdSettings(ctx context.Context) (models.AdSettings, error) {
	return models.AdSettings{AdServerPercentage: s.percentage, UpdatedAt: time.Now()}, nil
}

func (s *settingsStore) UpdateAdSettings(ctx context.Context, percentage int) error {
	s.percentage = percentage
	return nil
}

type rotationStore struct {
	listings []int64
}

func (f *rotationStore) SelectAndFeature(ctx context.Context, batch models.RotationBatch, size int) ([]int64, error) {
	if size > len(f.listings) {
		size = len(f.listings)
	}
	return append([]int64(nil), f.listings[:size]...), nil
}

type serverFixture struct {
	srv        *Server
	eventStore *events.MemoryStore
	sink       *analytics.MockService
	metrics    *observability.MockMetricsRegistry
	settings   *settingsStore
}

func newTestServer(t *testing.T, percentage int) *serverFixture {
	t.Helper()
	logger := zaptest.NewLogger(t)
	metrics := observability.NewMockMetricsRegistry()

	store := models.NewTestAdDataStore()
	require.NoError(t, store.ReloadAll(
		[]models.Campaign{{ID: 1, Name: "implants", Status: models.CampaignStatusActive}},
		[]models.Creative{{
			ID:             10,
			CampaignID:     1,
			Format:         models.FormatImage,
			DestinationURL: "https://advertiser.example/land?cid={clickId}",
			AssetURL:       "https://cdn.example/banner.png",
			AspectRatio:    "16:9",
			Weight:         1,
			Active:         true,
		}},
		[]models.Placement{{Name: "sidebar"}, {Name: "footer"}},
		[]models.CampaignPlacement{{CampaignID: 1, PlacementName: "sidebar"}},
	))

	ss := &settingsStore{percentage: percentage}
	provider := settings.NewProvider(ss, time.Minute, logger, metrics)

	eventStore := events.NewMemoryStore()
	sink := &analytics.MockService{}
	recorder := events.NewRecorder(eventStore, sink, nil, nil, logger, metrics, time.Second)

	cfg := config.Config{PostbackSecret: "s3cret", MaxPayout: 1000}

	srv := &Server{
		Logger:      logger,
		Config:      cfg,
		AdDataStore: store,
		Resolver:    ads.NewResolver(store, logger),
		Gate:        ads.NewGate(provider, sampling.NewSource(1), metrics),
		Settings:    provider,
		EventStore:  eventStore,
		Recorder:    recorder,
		Analytics:   sink,
		Macros:      macros.NewExpander(logger),
		Scheduler:   rotation.NewScheduler(&rotationStore{listings: []int64{1, 2, 3}}, logger, metrics),
		Metrics:     metrics,
		Rng:         sampling.NewLockedSource(1),
	}
	return &serverFixture{srv: srv, eventStore: eventStore, sink: sink, metrics: metrics, settings: ss}
}

func jsonUnmarshal(rec *httptest.ResponseRecorder, v interface{}) error {
	return json.Unmarshal(rec.Body.Bytes(), v)
}

func (f *serverFixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	f := newTestServer(t, 100)
	rec := f.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestDecisionAlwaysServeIsUncacheable(t *testing.T) {
	f := newTestServer(t, 100)
	rec := f.do(httptest.NewRequest(http.MethodGet, "/ads/decision", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"useHostedAds":true}`, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Cache-Control"), "no-store")
}

func TestDecisionZeroPercent(t *testing.T) {
	f := newTestServer(t, 0)
	rec := f.do(httptest.NewRequest(http.MethodGet, "/ads/decision", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"useHostedAds":false}`, rec.Body.String())
}

type adEnvelope struct {
	Ad *models.AdResponse `json:"ad"`
}

type adsEnvelope struct {
	Ads []models.AdResponse `json:"ads"`
}

func TestServeSingleAd(t *testing.T) {
	f := newTestServer(t, 100)
	rec := f.do(httptest.NewRequest(http.MethodGet, "/ads/serve?placement=sidebar&path=/clinics/rome", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var env adEnvelope
	require.NoError(t, jsonUnmarshal(rec, &env))
	require.NotNil(t, env.Ad)
	ad := *env.Ad
	assert.Equal(t, 10, ad.CreativeID)
	assert.Equal(t, 1, ad.CampaignID)
	assert.NotEmpty(t, ad.ClickID)
	assert.Contains(t, ad.ClickURL, "/ads/click?click_id="+ad.ClickID)
	// The destination must never leak to the page.
	assert.NotContains(t, rec.Body.String(), "advertiser.example")

	f.srv.Recorder.Wait()
	imp, err := f.eventStore.GetImpression(context.Background(), ad.ClickID)
	require.NoError(t, err)
	require.NotNil(t, imp)
	assert.Equal(t, "/clinics/rome", imp.PagePath)
}

func TestServeMissingPlacement(t *testing.T) {
	f := newTestServer(t, 100)
	rec := f.do(httptest.NewRequest(http.MethodGet, "/ads/serve", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServeUnknownPlacement(t *testing.T) {
	f := newTestServer(t, 100)
	rec := f.do(httptest.NewRequest(http.MethodGet, "/ads/serve?placement=nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServeDoesNotReApplyPercentageGate(t *testing.T) {
	// The page draws the percentage once via /ads/decision; serve fills the
	// slot unconditionally. Even at 0% a direct serve call returns the ad.
	f := newTestServer(t, 0)
	rec := f.do(httptest.NewRequest(http.MethodGet, "/ads/serve?placement=sidebar", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var env adEnvelope
	require.NoError(t, jsonUnmarshal(rec, &env))
	require.NotNil(t, env.Ad)
	assert.Equal(t, 10, env.Ad.CreativeID)
}

func TestDecisionThenServeShowsConfiguredFraction(t *testing.T) {
	// Full page flow: ask /ads/decision, fill the slot only when it says so.
	// The visitor must see an ad at the configured rate, not its square.
	f := newTestServer(t, 40)

	shown := 0
	const loads = 10000
	for i := 0; i < loads; i++ {
		rec := f.do(httptest.NewRequest(http.MethodGet, "/ads/decision", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		var decision struct {
			UseHostedAds bool `json:"useHostedAds"`
		}
		require.NoError(t, jsonUnmarshal(rec, &decision))
		if !decision.UseHostedAds {
			continue
		}

		rec = f.do(httptest.NewRequest(http.MethodGet, "/ads/serve?placement=sidebar", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		var env adEnvelope
		require.NoError(t, jsonUnmarshal(rec, &env))
		require.NotNil(t, env.Ad)
		shown++
	}
	f.srv.Recorder.Wait()

	assert.InDelta(t, 0.40, float64(shown)/loads, 0.02)
}

func TestServeNoFill(t *testing.T) {
	f := newTestServer(t, 100)

	// footer exists but has no campaign assignments.
	rec := f.do(httptest.NewRequest(http.MethodGet, "/ads/serve?placement=footer", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ad":null}`, rec.Body.String())

	rec = f.do(httptest.NewRequest(http.MethodGet, "/ads/serve?placement=footer&count=3", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ads":[]}`, rec.Body.String())
}

func TestServeCountReturnsArray(t *testing.T) {
	f := newTestServer(t, 100)
	rec := f.do(httptest.NewRequest(http.MethodGet, "/ads/serve?placement=sidebar&count=3", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var env adsEnvelope
	require.NoError(t, jsonUnmarshal(rec, &env))
	// Only one eligible creative exists; count is a ceiling, not a promise.
	assert.Len(t, env.Ads, 1)
}

func TestServeInvalidCount(t *testing.T) {
	f := newTestServer(t, 100)
	rec := f.do(httptest.NewRequest(http.MethodGet, "/ads/serve?placement=sidebar&count=zero", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func serveOneAd(t *testing.T, f *serverFixture) models.AdResponse {
	t.Helper()
	rec := f.do(httptest.NewRequest(http.MethodGet, "/ads/serve?placement=sidebar&path=/p", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var env adEnvelope
	require.NoError(t, jsonUnmarshal(rec, &env))
	require.NotNil(t, env.Ad)
	f.srv.Recorder.Wait()
	return *env.Ad
}

func TestClickRedirectsWithExpandedMacro(t *testing.T) {
	f := newTestServer(t, 100)
	ad := serveOneAd(t, f)

	req := httptest.NewRequest(http.MethodGet, ad.ClickURL, nil)
	req.Header.Set("User-Agent", desktopUA)
	rec := f.do(req)

	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://advertiser.example/land?cid="+ad.ClickID, rec.Header().Get("Location"))

	f.srv.Recorder.Wait()
	click, ok := f.eventStore.Clicks[ad.ClickID]
	require.True(t, ok)
	assert.False(t, click.IsBot)
	assert.Empty(t, click.BotReason)
}

func TestClickMissingID(t *testing.T) {
	f := newTestServer(t, 100)
	rec := f.do(httptest.NewRequest(http.MethodGet, "/ads/click", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestClickUnknownID(t *testing.T) {
	f := newTestServer(t, 100)
	rec := f.do(httptest.NewRequest(http.MethodGet, "/ads/click?click_id=never-served", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestClickFromBotStillRedirectsButIsFlagged(t *testing.T) {
	f := newTestServer(t, 100)
	ad := serveOneAd(t, f)

	req := httptest.NewRequest(http.MethodGet, ad.ClickURL, nil)
	req.Header.Set("User-Agent", "curl/7.68.0")
	rec := f.do(req)

	assert.Equal(t, http.StatusFound, rec.Code)

	f.srv.Recorder.Wait()
	click := f.eventStore.Clicks[ad.ClickID]
	assert.True(t, click.IsBot)
	assert.Equal(t, "bot_ua", click.BotReason)
}

func TestClickDuplicateKeepsFirstRow(t *testing.T) {
	f := newTestServer(t, 100)
	ad := serveOneAd(t, f)

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, ad.ClickURL, nil)
		req.Header.Set("User-Agent", desktopUA)
		rec := f.do(req)
		assert.Equal(t, http.StatusFound, rec.Code)
	}
	f.srv.Recorder.Wait()
	assert.Len(t, f.eventStore.Clicks, 1)
}

func postbackURL(clickID, payout string) string {
	return "/ads/postback?secret=s3cret&click_id=" + clickID + "&payout=" + payout
}

func recordClick(t *testing.T, f *serverFixture) string {
	t.Helper()
	ad := serveOneAd(t, f)
	req := httptest.NewRequest(http.MethodGet, ad.ClickURL, nil)
	req.Header.Set("User-Agent", desktopUA)
	require.Equal(t, http.StatusFound, f.do(req).Code)
	f.srv.Recorder.Wait()
	return ad.ClickID
}

func TestPostbackRecordsConversion(t *testing.T) {
	f := newTestServer(t, 100)
	clickID := recordClick(t, f)

	rec := f.do(httptest.NewRequest(http.MethodGet, postbackURL(clickID, "12.50")+"&txn=abc", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())

	f.srv.Recorder.Wait()
	conv, ok := f.eventStore.Conversions[clickID]
	require.True(t, ok)
	assert.Equal(t, "12.5", conv.Payout.String())
	assert.Equal(t, map[string]string{"txn": "abc"}, conv.Metadata)
}

func TestPostbackBadSecret(t *testing.T) {
	f := newTestServer(t, 100)
	clickID := recordClick(t, f)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/ads/postback?secret=wrong&click_id="+clickID+"&payout=9.99", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// A rejected postback writes nothing, even for a valid click.
	f.srv.Recorder.Wait()
	assert.Empty(t, f.eventStore.Conversions)
}

func TestPostbackUnknownClick(t *testing.T) {
	f := newTestServer(t, 100)
	rec := f.do(httptest.NewRequest(http.MethodGet, postbackURL("no-such-click", "1"), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPostbackInvalidPayout(t *testing.T) {
	f := newTestServer(t, 100)
	clickID := recordClick(t, f)

	for _, payout := range []string{"abc", "-5"} {
		rec := f.do(httptest.NewRequest(http.MethodGet, postbackURL(clickID, payout), nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, "payout=%s", payout)
	}
}

func TestPostbackClampsPayout(t *testing.T) {
	f := newTestServer(t, 100)
	clickID := recordClick(t, f)

	rec := f.do(httptest.NewRequest(http.MethodGet, postbackURL(clickID, "999999"), nil))
	require.Equal(t, http.StatusOK, rec.Code)

	f.srv.Recorder.Wait()
	assert.Equal(t, "1000", f.eventStore.Conversions[clickID].Payout.String())
}

func TestPostbackReplayAnswersOKWithoutSecondRow(t *testing.T) {
	f := newTestServer(t, 100)
	clickID := recordClick(t, f)

	for i := 0; i < 2; i++ {
		rec := f.do(httptest.NewRequest(http.MethodGet, postbackURL(clickID, "5.00"), nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
	f.srv.Recorder.Wait()
	assert.Len(t, f.eventStore.Conversions, 1)
}

func TestGetSettings(t *testing.T) {
	f := newTestServer(t, 42)
	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/settings", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var s models.AdSettings
	require.NoError(t, jsonUnmarshal(rec, &s))
	assert.Equal(t, 42, s.AdServerPercentage)
}

func TestUpdateSettingsTakesEffectImmediately(t *testing.T) {
	f := newTestServer(t, 100)

	body := strings.NewReader(`{"ad_server_percentage":0}`)
	rec := f.do(httptest.NewRequest(http.MethodPut, "/api/settings", body))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, f.settings.percentage)

	// The very next decision request sees the new value.
	rec = f.do(httptest.NewRequest(http.MethodGet, "/ads/decision", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"useHostedAds":false}`, rec.Body.String())
}

func TestUpdateSettingsRejectsOutOfRange(t *testing.T) {
	f := newTestServer(t, 50)

	for _, body := range []string{`{"ad_server_percentage":-1}`, `{"ad_server_percentage":101}`, `not json`} {
		rec := f.do(httptest.NewRequest(http.MethodPut, "/api/settings", strings.NewReader(body)))
		assert.Equal(t, http.StatusBadRequest, rec.Code, "body=%s", body)
	}
	assert.Equal(t, 50, f.settings.percentage)
}

func TestRotationRun(t *testing.T) {
	f := newTestServer(t, 100)

	rec := f.do(httptest.NewRequest(http.MethodPost, "/api/rotation/run", strings.NewReader(`{"size":2}`)))
	require.Equal(t, http.StatusOK, rec.Code)

	var batch models.RotationBatch
	require.NoError(t, jsonUnmarshal(rec, &batch))
	assert.Equal(t, []int64{1, 2}, batch.ListingIDs)
	assert.NotEmpty(t, batch.ID)
}

func TestRotationRunEmptyBody(t *testing.T) {
	f := newTestServer(t, 100)

	rec := f.do(httptest.NewRequest(http.MethodPost, "/api/rotation/run", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var batch models.RotationBatch
	require.NoError(t, jsonUnmarshal(rec, &batch))
	// Size 0 clamps to the minimum, not an error.
	assert.Len(t, batch.ListingIDs, models.MinRotationBatchSize)
}

func TestListInventory(t *testing.T) {
	f := newTestServer(t, 100)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/campaigns", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var campaigns []models.Campaign
	require.NoError(t, jsonUnmarshal(rec, &campaigns))
	require.Len(t, campaigns, 1)
	assert.Equal(t, "implants", campaigns[0].Name)

	rec = f.do(httptest.NewRequest(http.MethodGet, "/api/creatives", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var creatives []models.Creative
	require.NoError(t, jsonUnmarshal(rec, &creatives))
	require.Len(t, creatives, 1)
	assert.Equal(t, 10, creatives[0].ID)

	rec = f.do(httptest.NewRequest(http.MethodGet, "/api/placements", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var placements []models.Placement
	require.NoError(t, jsonUnmarshal(rec, &placements))
	assert.Len(t, placements, 2)
}

func TestEventsByClickID(t *testing.T) {
	f := newTestServer(t, 100)
	clickID := recordClick(t, f)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/events?click_id="+clickID, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var evs []analytics.Event
	require.NoError(t, jsonUnmarshal(rec, &evs))
	require.Len(t, evs, 2)
	types := []string{evs[0].EventType, evs[1].EventType}
	assert.Contains(t, types, "impression")
	assert.Contains(t, types, "click")
}

func TestEventsMissingClickID(t *testing.T) {
	f := newTestServer(t, 100)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/events", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
