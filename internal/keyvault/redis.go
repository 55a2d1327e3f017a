package keyvault

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const redisPingTimeout = 2 * time.Second

// RedisClient is the subset of the go-redis client used by Redis.
type RedisClient interface {
	HGet(ctx context.Context, key, field string) *redis.StringCmd
	HSet(ctx context.Context, key string, values ...any) *redis.IntCmd
}

// Redis keeps all keys as fields of one hash, so several operator machines share them.
type Redis struct {
	client RedisClient
	hash   string
	logger *slog.Logger
}

// NewRedis creates a Redis backed store writing to the hash named hash.
func NewRedis(client RedisClient, hash string, log *slog.Logger) *Redis {
	return &Redis{client: client, hash: hash, logger: log}
}

// DialRedis connects to addr and checks the connection.
func DialRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return client, nil
}

// GetKey implements Store.
func (r *Redis) GetKey(ctx context.Context, name string) (string, error) {
	v, err := r.client.HGet(ctx, r.hash, name).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrKeyNotSet(name)
	}
	if err != nil {
		r.logger.Error("redis key vault error", "op", "hget", "name", name, "error", err)
		return "", fmt.Errorf("failed to retrieve key %s: %w", name, err)
	}
	return v, nil
}

// SetKey implements Store.
func (r *Redis) SetKey(ctx context.Context, name, value string) error {
	if err := r.client.HSet(ctx, r.hash, name, value).Err(); err != nil {
		r.logger.Error("redis key vault error", "op", "hset", "name", name, "error", err)
		return fmt.Errorf("failed to store key %s: %w", name, err)
	}
	return nil
}
