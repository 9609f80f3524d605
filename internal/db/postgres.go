package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/XSAM/otelsql"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/clinicdex/adcore/internal/models"
)

// Postgres wraps a postgres DB connection.
type Postgres struct {
	DB *sql.DB
}

// schemaSQL sets up the necessary tables if they don't exist. The unique
// click_id keys on clicks and conversions are what make event recording
// idempotent under duplicated and replayed requests.
const schemaSQL = `CREATE TABLE IF NOT EXISTS campaigns (
    id SERIAL PRIMARY KEY,
    name TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'active',
    start_date TIMESTAMPTZ NULL,
    end_date TIMESTAMPTZ NULL
);

CREATE TABLE IF NOT EXISTS creatives (
    id SERIAL PRIMARY KEY,
    campaign_id INT NOT NULL REFERENCES campaigns(id),
    name TEXT NOT NULL,
    format TEXT NOT NULL,
    destination_url TEXT NOT NULL,
    asset_url TEXT,
    html TEXT,
    weight DOUBLE PRECISION NOT NULL DEFAULT 1 CHECK (weight >= 0),
    aspect_ratio TEXT,
    active BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS placements (
    name TEXT PRIMARY KEY,
    page_type TEXT,
    width INT,
    height INT,
    formats TEXT[],
    aspect_ratios TEXT[]
);

CREATE TABLE IF NOT EXISTS campaign_placements (
    campaign_id INT NOT NULL REFERENCES campaigns(id),
    placement_name TEXT NOT NULL REFERENCES placements(name),
    weight_override DOUBLE PRECISION NULL,
    UNIQUE (campaign_id, placement_name)
);

CREATE TABLE IF NOT EXISTS impressions (
    click_id TEXT PRIMARY KEY,
    creative_id INT NOT NULL,
    page_path TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS clicks (
    click_id TEXT PRIMARY KEY,
    ip_address TEXT,
    user_agent TEXT,
    is_bot BOOLEAN NOT NULL DEFAULT FALSE,
    bot_reason TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS conversions (
    click_id TEXT PRIMARY KEY,
    payout NUMERIC(12,2) NOT NULL,
    metadata JSONB,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS ad_settings (
    id INT PRIMARY KEY DEFAULT 1 CHECK (id = 1),
    ad_server_percentage INT NOT NULL DEFAULT 0 CHECK (ad_server_percentage BETWEEN 0 AND 100),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS listings (
    id BIGSERIAL PRIMARY KEY,
    name TEXT NOT NULL,
    active BOOLEAN NOT NULL DEFAULT TRUE,
    featured BOOLEAN NOT NULL DEFAULT FALSE,
    last_featured_at TIMESTAMPTZ NULL
);

CREATE TABLE IF NOT EXISTS rotation_batches (
    id TEXT PRIMARY KEY,
    featured_at TIMESTAMPTZ NOT NULL,
    batch_size INT NOT NULL,
    notification_campaign_id BIGINT NULL
);

CREATE TABLE IF NOT EXISTS rotation_batch_members (
    batch_id TEXT NOT NULL REFERENCES rotation_batches(id),
    listing_id BIGINT NOT NULL,
    PRIMARY KEY (batch_id, listing_id)
);

-- Performance indexes for the serving and recording paths
CREATE INDEX IF NOT EXISTS idx_creatives_campaign_id ON creatives (campaign_id);
CREATE INDEX IF NOT EXISTS idx_creatives_active ON creatives (active) WHERE active = true;
CREATE INDEX IF NOT EXISTS idx_campaign_placements_placement ON campaign_placements (placement_name);
CREATE INDEX IF NOT EXISTS idx_impressions_created_at ON impressions (created_at);
CREATE INDEX IF NOT EXISTS idx_listings_rotation ON listings (active, last_featured_at) WHERE active = true;
`

// InitPostgres connects to Postgres with connection pooling configuration.
func InitPostgres(dsn string, maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) (*Postgres, error) {
	driverName, err := otelsql.Register("postgres",
		otelsql.WithAttributes(
			attribute.String("db.system", "postgresql"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("register otelsql: %w", err)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres open: %w", err)
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)
	db.SetConnMaxIdleTime(connMaxIdleTime)

	if err := db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	p := &Postgres{DB: db}
	if err := p.ensureSchema(); err != nil {
		return nil, err
	}
	if err := p.ensureSettingsRow(); err != nil {
		return nil, err
	}
	zap.L().Info("Connected to Postgres with connection pooling",
		zap.Int("max_open_conns", maxOpenConns),
		zap.Int("max_idle_conns", maxIdleConns),
		zap.Duration("conn_max_lifetime", connMaxLifetime))
	return p, nil
}

// Close terminates the Postgres connection.
func (p *Postgres) Close() {
	if p != nil && p.DB != nil {
		if err := p.DB.Close(); err != nil {
			zap.L().Error("postgres close", zap.Error(err))
		}
	}
}

// ensureSchema creates the required tables if they do not exist.
func (p *Postgres) ensureSchema() error {
	ctx := context.Background()
	if _, err := p.DB.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// ensureSettingsRow seeds the singleton ad_settings row.
func (p *Postgres) ensureSettingsRow() error {
	_, err := p.DB.ExecContext(context.Background(),
		`INSERT INTO ad_settings (id, ad_server_percentage) VALUES (1, 0) ON CONFLICT (id) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("seed ad_settings: %w", err)
	}
	return nil
}

// LoadCampaigns retrieves all campaigns. Lifecycle filtering happens at
// selection time so the in-memory snapshot can answer "is this live" without
// another round trip.
func (p *Postgres) LoadCampaigns() ([]models.Campaign, error) {
	rows, err := p.DB.QueryContext(context.Background(),
		`SELECT id, name, status, start_date, end_date FROM campaigns`)
	if err != nil {
		return nil, fmt.Errorf("query campaigns: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var cs []models.Campaign
	for rows.Next() {
		var c models.Campaign
		var start, end sql.NullTime
		if err := rows.Scan(&c.ID, &c.Name, &c.Status, &start, &end); err != nil {
			return nil, fmt.Errorf("scan campaign: %w", err)
		}
		if start.Valid {
			c.StartDate = start.Time
		}
		if end.Valid {
			c.EndDate = end.Time
		}
		cs = append(cs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return cs, nil
}

// LoadCreatives fetches creatives from the database.
func (p *Postgres) LoadCreatives() ([]models.Creative, error) {
	rows, err := p.DB.QueryContext(context.Background(),
		`SELECT id, campaign_id, name, format, destination_url, asset_url, html, weight, aspect_ratio, active FROM creatives`)
	if err != nil {
		return nil, fmt.Errorf("query creatives: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var cs []models.Creative
	for rows.Next() {
		var c models.Creative
		var assetURL, html, aspect sql.NullString
		if err := rows.Scan(&c.ID, &c.CampaignID, &c.Name, &c.Format, &c.DestinationURL, &assetURL, &html, &c.Weight, &aspect, &c.Active); err != nil {
			return nil, fmt.Errorf("scan creative: %w", err)
		}
		if assetURL.Valid {
			c.AssetURL = assetURL.String
		}
		if html.Valid {
			c.HTML = html.String
		}
		if aspect.Valid {
			c.AspectRatio = aspect.String
		}
		cs = append(cs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return cs, nil
}

// LoadPlacements fetches placement definitions from the database.
func (p *Postgres) LoadPlacements() ([]models.Placement, error) {
	rows, err := p.DB.QueryContext(context.Background(),
		`SELECT name, page_type, width, height, formats, aspect_ratios FROM placements`)
	if err != nil {
		return nil, fmt.Errorf("query placements: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var pls []models.Placement
	for rows.Next() {
		var pl models.Placement
		var pageType sql.NullString
		var formats, ratios []string
		if err := rows.Scan(&pl.Name, &pageType, &pl.Width, &pl.Height, pq.Array(&formats), pq.Array(&ratios)); err != nil {
			return nil, fmt.Errorf("scan placement: %w", err)
		}
		if pageType.Valid {
			pl.PageType = pageType.String
		}
		pl.Formats = formats
		pl.AspectRatios = ratios
		pls = append(pls, pl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return pls, nil
}

// LoadAssignments fetches the campaign-placement assignment rows.
func (p *Postgres) LoadAssignments() ([]models.CampaignPlacement, error) {
	rows, err := p.DB.QueryContext(context.Background(),
		`SELECT campaign_id, placement_name, weight_override FROM campaign_placements`)
	if err != nil {
		return nil, fmt.Errorf("query campaign placements: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var as []models.CampaignPlacement
	for rows.Next() {
		var a models.CampaignPlacement
		var override sql.NullFloat64
		if err := rows.Scan(&a.CampaignID, &a.PlacementName, &override); err != nil {
			return nil, fmt.Errorf("scan campaign placement: %w", err)
		}
		if override.Valid {
			v := override.Float64
			a.WeightOverride = &v
		}
		as = append(as, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return as, nil
}

// InsertImpression stores one ad render keyed by its click id.
func (p *Postgres) InsertImpression(ctx context.Context, imp models.Impression) error {
	_, err := p.DB.ExecContext(ctx,
		`INSERT INTO impressions (click_id, creative_id, page_path) VALUES ($1,$2,$3) ON CONFLICT (click_id) DO NOTHING`,
		imp.ClickID, imp.CreativeID, imp.PagePath)
	if err != nil {
		return fmt.Errorf("insert impression: %w", err)
	}
	return nil
}

// GetImpression returns the impression for a click id, or nil when unknown.
func (p *Postgres) GetImpression(ctx context.Context, clickID string) (*models.Impression, error) {
	var imp models.Impression
	err := p.DB.QueryRowContext(ctx,
		`SELECT click_id, creative_id, page_path, created_at FROM impressions WHERE click_id=$1`, clickID).
		Scan(&imp.ClickID, &imp.CreativeID, &imp.PagePath, &imp.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query impression: %w", err)
	}
	return &imp, nil
}

// InsertClick stores a click verdict keyed by click id. A duplicate click id
// is a silent no-op: the unique constraint plus ON CONFLICT DO NOTHING is the
// idempotency mechanism, so concurrent or replayed clicks leave exactly one row.
func (p *Postgres) InsertClick(ctx context.Context, c models.Click) error {
	_, err := p.DB.ExecContext(ctx,
		`INSERT INTO clicks (click_id, ip_address, user_agent, is_bot, bot_reason) VALUES ($1,$2,$3,$4,$5) ON CONFLICT (click_id) DO NOTHING`,
		c.ClickID, c.IPAddress, c.UserAgent, c.IsBot, nullIfEmpty(c.BotReason))
	if err != nil {
		return fmt.Errorf("insert click: %w", err)
	}
	return nil
}

// ClickExists reports whether a click row exists for the given id.
func (p *Postgres) ClickExists(ctx context.Context, clickID string) (bool, error) {
	var exists bool
	err := p.DB.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM clicks WHERE click_id=$1)`, clickID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query click exists: %w", err)
	}
	return exists, nil
}

// InsertConversion stores a conversion keyed by click id with the same
// insert-if-absent semantics as clicks, so a replayed postback never
// double-records revenue.
func (p *Postgres) InsertConversion(ctx context.Context, c models.Conversion) error {
	var meta interface{}
	if len(c.Metadata) > 0 {
		b, err := json.Marshal(c.Metadata)
		if err != nil {
			return fmt.Errorf("marshal conversion metadata: %w", err)
		}
		meta = b
	}
	_, err := p.DB.ExecContext(ctx,
		`INSERT INTO conversions (click_id, payout, metadata) VALUES ($1,$2,$3) ON CONFLICT (click_id) DO NOTHING`,
		c.ClickID, c.Payout.StringFixed(2), meta)
	if err != nil {
		return fmt.Errorf("insert conversion: %w", err)
	}
	return nil
}

// GetAdSettings reads the singleton settings row.
func (p *Postgres) GetAdSettings(ctx context.Context) (models.AdSettings, error) {
	var s models.AdSettings
	err := p.DB.QueryRowContext(ctx,
		`SELECT ad_server_percentage, updated_at FROM ad_settings WHERE id=1`).
		Scan(&s.AdServerPercentage, &s.UpdatedAt)
	if err != nil {
		return models.AdSettings{}, fmt.Errorf("query ad settings: %w", err)
	}
	return s, nil
}

// UpdateAdSettings upserts the singleton settings row.
func (p *Postgres) UpdateAdSettings(ctx context.Context, percentage int) error {
	_, err := p.DB.ExecContext(ctx,
		`INSERT INTO ad_settings (id, ad_server_percentage, updated_at) VALUES (1, $1, NOW())
         ON CONFLICT (id) DO UPDATE SET ad_server_percentage = EXCLUDED.ad_server_percentage, updated_at = NOW()`,
		percentage)
	if err != nil {
		return fmt.Errorf("update ad settings: %w", err)
	}
	return nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
