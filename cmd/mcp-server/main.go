// MCP admin sidecar: exposes the serving core's administrative operations
// (ad settings, featured rotation, inventory inspection) as Model Context
// Protocol tools over stdio, so operators can drive them from MCP clients.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/clinicdex/adcore/internal/ads"
	"github.com/clinicdex/adcore/internal/config"
	"github.com/clinicdex/adcore/internal/db"
	"github.com/clinicdex/adcore/internal/models"
	"github.com/clinicdex/adcore/internal/observability"
	"github.com/clinicdex/adcore/internal/rotation"
	"github.com/clinicdex/adcore/internal/settings"
)

type GetAdSettingsOutput struct {
	AdServerPercentage int    `json:"ad_server_percentage"`
	UpdatedAt          string `json:"updated_at"`
}

type SetAdSettingsInput struct {
	AdServerPercentage int `json:"ad_server_percentage"`
}

type SetAdSettingsOutput struct {
	AdServerPercentage int    `json:"ad_server_percentage"`
	Message            string `json:"message"`
}

type RunRotationInput struct {
	Size                   int    `json:"size"`
	NotificationCampaignID *int64 `json:"notification_campaign_id,omitempty"`
}

type RunRotationOutput struct {
	BatchID    string  `json:"batch_id"`
	FeaturedAt string  `json:"featured_at"`
	ListingIDs []int64 `json:"listing_ids"`
}

type ListEligibleInput struct {
	Placement string `json:"placement"`
}

type EligibleCreative struct {
	CreativeID   int     `json:"creative_id"`
	CampaignID   int     `json:"campaign_id"`
	CampaignName string  `json:"campaign_name"`
	Format       string  `json:"format"`
	Weight       float64 `json:"weight"`
	ServesToday  int64   `json:"serves_today"`
	ClicksToday  int64   `json:"clicks_today"`
}

type ListEligibleOutput struct {
	Placement string             `json:"placement"`
	Creatives []EligibleCreative `json:"creatives"`
}

// adminServer holds the dependencies behind the MCP tools.
type adminServer struct {
	settings  *settings.Provider
	scheduler *rotation.Scheduler
	resolver  *ads.Resolver
	redis     *db.RedisStore
	store     models.AdDataStore
	logger    *zap.Logger
}

func (s *adminServer) GetAdSettings(ctx context.Context, req *mcp.CallToolRequest, input struct{}) (*mcp.CallToolResult, GetAdSettingsOutput, error) {
	current, err := s.settings.Get(ctx)
	if err != nil {
		return nil, GetAdSettingsOutput{}, fmt.Errorf("load settings: %w", err)
	}
	return nil, GetAdSettingsOutput{
		AdServerPercentage: current.AdServerPercentage,
		UpdatedAt:          current.UpdatedAt.Format(time.RFC3339),
	}, nil
}

func (s *adminServer) SetAdSettings(ctx context.Context, req *mcp.CallToolRequest, input SetAdSettingsInput) (*mcp.CallToolResult, SetAdSettingsOutput, error) {
	if err := s.settings.Update(ctx, input.AdServerPercentage); err != nil {
		return nil, SetAdSettingsOutput{}, fmt.Errorf("update settings: %w", err)
	}
	if s.redis != nil {
		if err := s.redis.PublishSettingsUpdate(ctx); err != nil {
			s.logger.Warn("publish settings update", zap.Error(err))
		}
	}
	return nil, SetAdSettingsOutput{
		AdServerPercentage: input.AdServerPercentage,
		Message:            fmt.Sprintf("ad server percentage set to %d", input.AdServerPercentage),
	}, nil
}

func (s *adminServer) RunRotation(ctx context.Context, req *mcp.CallToolRequest, input RunRotationInput) (*mcp.CallToolResult, RunRotationOutput, error) {
	batch, err := s.scheduler.Run(ctx, input.Size, input.NotificationCampaignID)
	if err != nil {
		return nil, RunRotationOutput{}, fmt.Errorf("rotation run: %w", err)
	}
	return nil, RunRotationOutput{
		BatchID:    batch.ID,
		FeaturedAt: batch.FeaturedAt.Format(time.RFC3339),
		ListingIDs: batch.ListingIDs,
	}, nil
}

func (s *adminServer) ListEligible(ctx context.Context, req *mcp.CallToolRequest, input ListEligibleInput) (*mcp.CallToolResult, ListEligibleOutput, error) {
	candidates, err := s.resolver.Eligible(input.Placement, time.Now())
	if err != nil {
		return nil, ListEligibleOutput{}, fmt.Errorf("resolve placement: %w", err)
	}
	out := ListEligibleOutput{Placement: input.Placement}
	for _, c := range candidates {
		ec := EligibleCreative{
			CreativeID: c.Creative.ID,
			CampaignID: c.Creative.CampaignID,
			Format:     c.Creative.Format,
			Weight:     c.Weight,
		}
		if campaign := models.GetCampaignByID(s.store, c.Creative.CampaignID); campaign != nil {
			ec.CampaignName = campaign.Name
		}
		if s.redis != nil {
			ec.ServesToday, ec.ClicksToday = s.redis.GetDailyCounts(c.Creative.ID)
		}
		out.Creatives = append(out.Creatives, ec)
	}
	return nil, out, nil
}

func main() {
	// Log to stderr only; stdout carries the MCP stdio transport.
	zapCfg := zap.NewProductionConfig()
	zapCfg.OutputPaths = []string{"stderr"}
	zapCfg.ErrorOutputPaths = []string{"stderr"}

	logger, err := zapCfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger = logger.Named("adcore-mcp").With(zap.String("service", "adcore-mcp"))

	cfg := config.Load()

	pg, err := db.InitPostgres(cfg.PostgresDSN, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, cfg.DBConnMaxLifetime, cfg.DBConnMaxIdleTime)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	redisStore, err := db.InitRedis(cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, settings changes will not broadcast", zap.Error(err))
		redisStore = nil
	} else {
		defer redisStore.Close()
	}

	adDataStore := models.NewInMemoryAdDataStore()
	campaigns, err := pg.LoadCampaigns()
	if err != nil {
		logger.Fatal("load campaigns", zap.Error(err))
	}
	creatives, err := pg.LoadCreatives()
	if err != nil {
		logger.Fatal("load creatives", zap.Error(err))
	}
	placements, err := pg.LoadPlacements()
	if err != nil {
		logger.Fatal("load placements", zap.Error(err))
	}
	assignments, err := pg.LoadAssignments()
	if err != nil {
		logger.Fatal("load assignments", zap.Error(err))
	}
	if err := adDataStore.ReloadAll(campaigns, creatives, placements, assignments); err != nil {
		logger.Fatal("populate ad data store", zap.Error(err))
	}

	metrics := observability.NewNoOpRegistry()
	admin := &adminServer{
		settings:  settings.NewProvider(pg, cfg.SettingsCacheTTL, logger, metrics),
		scheduler: rotation.NewScheduler(pg, logger, metrics),
		resolver:  ads.NewResolver(adDataStore, logger),
		redis:     redisStore,
		store:     adDataStore,
		logger:    logger,
	}

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "adcore",
		Version: "1.0.0",
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_ad_settings",
		Description: "Read the current ad serving settings, including the percentage of traffic served hosted ads",
	}, admin.GetAdSettings)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "set_ad_settings",
		Description: "Set the percentage of traffic (0-100) served hosted ads; takes effect on the next request",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"ad_server_percentage": map[string]interface{}{
					"type":        "integer",
					"minimum":     0,
					"maximum":     100,
					"description": "Share of requests served hosted ads",
				},
			},
			"required": []string{"ad_server_percentage"},
		},
	}, admin.SetAdSettings)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "run_rotation",
		Description: "Feature a fresh batch of least-recently-featured directory listings",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"size": map[string]interface{}{
					"type":        "integer",
					"description": "Requested batch size, clamped to 1-500",
				},
				"notification_campaign_id": map[string]interface{}{
					"type":        "integer",
					"description": "Optional outbound notification campaign to link to the batch",
				},
			},
		},
	}, admin.RunRotation)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_eligible_creatives",
		Description: "List the creatives currently eligible to serve in a placement, with their effective weights",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"placement": map[string]interface{}{
					"type":        "string",
					"description": "Placement name",
				},
			},
			"required": []string{"placement"},
		},
	}, admin.ListEligible)

	logger.Info("MCP server running via stdio")
	if err := server.Run(context.Background(), &mcp.StdioTransport{}); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
