package analytics

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	_ "github.com/ClickHouse/clickhouse-go/v2"
)

// Event is one row of the analytics stream. Impressions, clicks and
// conversions all share the shape; fields that don't apply stay NULL.
type Event struct {
	Timestamp   time.Time `json:"timestamp"`
	EventType   string    `json:"event_type"`
	ClickID     string    `json:"click_id"`
	CreativeID  *int32    `json:"creative_id"`
	CampaignID  *int32    `json:"campaign_id"`
	Placement   *string   `json:"placement"`
	PagePath    *string   `json:"page_path"`
	DeviceType  *string   `json:"device_type"`
	Country     *string   `json:"country"`
	IsBot       bool      `json:"is_bot"`
	BotReason   *string   `json:"bot_reason"`
	PayoutCents int64     `json:"payout_cents"`
}

// Service is the interface for the analytics event stream. Implementations
// should return ErrUnavailable when the underlying storage is not configured;
// callers on the serving path treat any error as best-effort and swallow it.
type Service interface {
	RecordEvent(ctx context.Context, ev Event) error
	// GetEventsByClickID returns the full event trail for a click id,
	// ordered by timestamp. Serves the attribution debugging endpoint.
	GetEventsByClickID(ctx context.Context, id string) ([]Event, error)
}

// ErrUnavailable is returned when the analytics DB is not configured.
var ErrUnavailable = fmt.Errorf("analytics unavailable")

// Analytics wraps a ClickHouse DB connection.
type Analytics struct {
	DB *sql.DB
}

// InitClickHouse connects to ClickHouse and ensures the events table exists.
func InitClickHouse(dsn string, maxOpenConns, maxIdleConns int) (*Analytics, error) {
	db, err := sql.Open("clickhouse", dsn)
	if err != nil {
		return nil, fmt.Errorf("clickhouse open: %w", err)
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	if err := db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("clickhouse ping: %w", err)
	}
	create := `CREATE TABLE IF NOT EXISTS ad_events (
       timestamp    DateTime,
       event_type   String,
       click_id     String,
       creative_id  Nullable(Int32),
       campaign_id  Nullable(Int32),
       placement    Nullable(String),
       page_path    Nullable(String),
       device_type  Nullable(String),
       country      Nullable(String),
       is_bot       UInt8,
       bot_reason   Nullable(String),
       payout_cents Int64
   ) ENGINE=MergeTree() ORDER BY (event_type, timestamp)`
	if _, err := db.ExecContext(context.Background(), create); err != nil {
		return nil, fmt.Errorf("clickhouse create table: %w", err)
	}

	zap.L().Info("Connected to ClickHouse")
	return &Analytics{DB: db}, nil
}

// RecordEvent inserts a single event row into the ad_events table.
func (a *Analytics) RecordEvent(ctx context.Context, ev Event) error {
	if a == nil || a.DB == nil {
		return ErrUnavailable
	}
	ts := ev.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	isBot := uint8(0)
	if ev.IsBot {
		isBot = 1
	}
	stmt := `INSERT INTO ad_events (timestamp, event_type, click_id, creative_id, campaign_id, placement, page_path, device_type, country, is_bot, bot_reason, payout_cents) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := a.DB.ExecContext(ctx, stmt, ts, ev.EventType, ev.ClickID, ev.CreativeID, ev.CampaignID, ev.Placement, ev.PagePath, ev.DeviceType, ev.Country, isBot, ev.BotReason, ev.PayoutCents); err != nil {
		zap.L().Error("clickhouse insert failed", zap.Error(err), zap.String("event_type", ev.EventType))
		return fmt.Errorf("insert %s event: %w", ev.EventType, err)
	}
	return nil
}

// GetEventsByClickID returns all events for a click id ordered by timestamp.
func (a *Analytics) GetEventsByClickID(ctx context.Context, id string) ([]Event, error) {
	if a == nil || a.DB == nil {
		return nil, ErrUnavailable
	}
	query := `SELECT timestamp, event_type, click_id, creative_id, campaign_id, placement, page_path, device_type, country, is_bot, bot_reason, payout_cents FROM ad_events WHERE click_id=? ORDER BY timestamp`
	rows, err := a.DB.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			zap.L().Warn("rows close", zap.Error(err))
		}
	}()

	var events []Event
	for rows.Next() {
		var ev Event
		var isBot uint8
		if err := rows.Scan(&ev.Timestamp, &ev.EventType, &ev.ClickID, &ev.CreativeID, &ev.CampaignID, &ev.Placement, &ev.PagePath, &ev.DeviceType, &ev.Country, &isBot, &ev.BotReason, &ev.PayoutCents); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.IsBot = isBot == 1
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return events, nil
}

// Close terminates the ClickHouse connection.
func (a *Analytics) Close() {
	if a != nil && a.DB != nil {
		if err := a.DB.Close(); err != nil {
			zap.L().Error("clickhouse close", zap.Error(err))
		}
	}
}
