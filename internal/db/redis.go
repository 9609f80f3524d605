package db

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// SettingsUpdateChannel carries invalidation messages published when an admin
// updates the ad settings row, so every server instance drops its cached copy.
const SettingsUpdateChannel = "ad-settings-updates"

// RedisStore wraps a redis client and context for operations.
type RedisStore struct {
	Client *redis.Client
	Ctx    context.Context
}

// InitRedis initializes a Redis client and returns a RedisStore.
func InitRedis(addr string) (*RedisStore, error) {
	rs := &RedisStore{
		Client: redis.NewClient(&redis.Options{Addr: addr}),
		Ctx:    context.Background(),
	}

	// Add OpenTelemetry instrumentation to Redis client
	if err := redisotel.InstrumentTracing(rs.Client); err != nil {
		return nil, fmt.Errorf("failed to instrument redis tracing: %w", err)
	}

	if err := rs.Client.Ping(rs.Ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	zap.L().Info("Connected to Redis", zap.String("addr", addr))
	return rs, nil
}

// IncrementServe increments the daily serve counter for a creative.
// A 24h TTL is applied on first set.
func (r *RedisStore) IncrementServe(creativeID int) error {
	key := fmt.Sprintf("serves:creative:%d:%s", creativeID, time.Now().Format("2006-01-02"))
	val, err := r.Client.Incr(r.Ctx, key).Result()
	if err != nil {
		return err
	}
	if val == 1 {
		r.Client.Expire(r.Ctx, key, 24*time.Hour)
	}
	return nil
}

// IncrementClick increments the daily click counter for a creative.
// A 24h TTL is applied on first set.
func (r *RedisStore) IncrementClick(creativeID int) error {
	key := fmt.Sprintf("clicks:creative:%d:%s", creativeID, time.Now().Format("2006-01-02"))
	val, err := r.Client.Incr(r.Ctx, key).Result()
	if err != nil {
		return err
	}
	if val == 1 {
		r.Client.Expire(r.Ctx, key, 24*time.Hour)
	}
	return nil
}

// GetDailyCounts returns today's serve and click counters for a creative.
func (r *RedisStore) GetDailyCounts(creativeID int) (int64, int64) {
	day := time.Now().Format("2006-01-02")
	serves, _ := r.Client.Get(r.Ctx, fmt.Sprintf("serves:creative:%d:%s", creativeID, day)).Int64()
	clicks, _ := r.Client.Get(r.Ctx, fmt.Sprintf("clicks:creative:%d:%s", creativeID, day)).Int64()
	return serves, clicks
}

// PublishSettingsUpdate notifies all instances that the settings row changed.
func (r *RedisStore) PublishSettingsUpdate(ctx context.Context) error {
	return r.Client.Publish(ctx, SettingsUpdateChannel, "updated").Err()
}

// SubscribeSettingsUpdates subscribes to the settings invalidation channel.
// The caller owns the returned PubSub and must close it.
func (r *RedisStore) SubscribeSettingsUpdates(ctx context.Context) *redis.PubSub {
	return r.Client.Subscribe(ctx, SettingsUpdateChannel)
}

// Close shuts down the Redis client.
func (r *RedisStore) Close() {
	if r != nil && r.Client != nil {
		if err := r.Client.Close(); err != nil {
			zap.L().Error("redis close", zap.Error(err))
		}
	}
}
