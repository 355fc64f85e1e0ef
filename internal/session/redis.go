package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// Redis is a Store backed by single-key Redis commands.
type Redis struct {
	client redis.UniversalClient
	prefix string
	ttls   TTLs
}

// NewRedis wraps an existing client.
func NewRedis(client redis.UniversalClient, prefix string, ttls TTLs) *Redis {
	return &Redis{client: client, prefix: prefix, ttls: ttls}
}

// OpenRedis connects using cfg and verifies the connection.
func OpenRedis(ctx context.Context, cfg Config, ttls TTLs) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("session redis ping: %w", err)
	}
	return NewRedis(client, cfg.KeyPrefix, ttls), nil
}

func (r *Redis) key(scope Scope, actor int64) string {
	return r.prefix + ":" + string(scope) + ":" + strconv.FormatInt(actor, 10)
}

// Put stores value with the scope's TTL.
func (r *Redis) Put(ctx context.Context, scope Scope, actor int64, value string) error {
	if err := r.client.Set(ctx, r.key(scope, actor), value, r.ttls.of(scope)).Err(); err != nil {
		return fmt.Errorf("session put: %w", err)
	}
	return nil
}

// Get reads the value without consuming it.
func (r *Redis) Get(ctx context.Context, scope Scope, actor int64) (string, bool, error) {
	v, err := r.client.Get(ctx, r.key(scope, actor)).Result()
	return result(v, err, "get")
}

// Take uses GETDEL so two concurrent consumers cannot both see the value.
func (r *Redis) Take(ctx context.Context, scope Scope, actor int64) (string, bool, error) {
	v, err := r.client.GetDel(ctx, r.key(scope, actor)).Result()
	return result(v, err, "take")
}

// Delete removes the entry.
func (r *Redis) Delete(ctx context.Context, scope Scope, actor int64) error {
	if err := r.client.Del(ctx, r.key(scope, actor)).Err(); err != nil {
		return fmt.Errorf("session delete: %w", err)
	}
	return nil
}

// Close releases the underlying client.
func (r *Redis) Close() error {
	return r.client.Close()
}

func result(v string, err error, op string) (string, bool, error) {
	switch {
	case err == nil:
		return v, true, nil
	case errors.Is(err, redis.Nil):
		return "", false, nil
	default:
		return "", false, fmt.Errorf("session %s: %w", op, err)
	}
}
