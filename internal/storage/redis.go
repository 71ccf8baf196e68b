package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jwebster45206/stealth-engine/internal/services"
	store "github.com/jwebster45206/stealth-engine/pkg/storage"
	"github.com/redis/go-redis/v9"
)

// SnapshotTTL is how long an encounter snapshot survives without being refreshed
const SnapshotTTL = time.Hour

// RedisStorage implements the Storage interface using Redis for encounter snapshots
// and filesystem for scenario files
type RedisStorage struct {
	client  *redis.Client
	logger  *slog.Logger
	dataDir string
}

// Ensure RedisStorage implements Storage interface
var _ store.Storage = (*RedisStorage)(nil)

// NewRedisStorage creates a new Redis storage instance
func NewRedisStorage(redisURL string, dataDir string, logger *slog.Logger) (*RedisStorage, error) {
	rdb, err := services.NewRedisClient(redisURL)
	if err != nil {
		return nil, err
	}
	return NewRedisStorageFromClient(rdb, dataDir, logger), nil
}

// NewRedisStorageFromClient builds the storage around an existing client
func NewRedisStorageFromClient(rdb *redis.Client, dataDir string, logger *slog.Logger) *RedisStorage {
	if dataDir == "" {
		dataDir = "./data"
	}
	return &RedisStorage{
		client:  rdb,
		logger:  logger,
		dataDir: dataDir,
	}
}

// Health and lifecycle methods

func (r *RedisStorage) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (r *RedisStorage) Close() error {
	if err := r.client.Close(); err != nil {
		r.logger.Error("Failed to close Redis connection", "error", err)
		return err
	}
	r.logger.Info("Redis connection closed")
	return nil
}

// WaitForConnection waits for Redis to become available (used during startup)
func (r *RedisStorage) WaitForConnection(ctx context.Context) error {
	return services.WaitForConnection(ctx, r, r.logger, 30, 2*time.Second)
}

// Client exposes the Redis client for pub/sub and locking
func (r *RedisStorage) Client() *redis.Client {
	return r.client
}
