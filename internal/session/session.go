// Package session keeps short-lived per-actor state: pending captcha answers,
// armed broadcasts and admin field edits. Each owning component uses its own
// scope, so entries of different flows never collide.
package session

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Scope namespaces entries by owning component.
type Scope string

// Store is implemented by the memory and Redis backends. All operations act on
// a single key and are atomic with respect to each other.
type Store interface {
	// Put sets the value, replacing any previous one.
	Put(ctx context.Context, scope Scope, actor int64, value string) error
	// Get reads the value without consuming it.
	Get(ctx context.Context, scope Scope, actor int64) (string, bool, error)
	// Take reads and deletes the value in one step.
	Take(ctx context.Context, scope Scope, actor int64) (string, bool, error)
	// Delete removes the value if present.
	Delete(ctx context.Context, scope Scope, actor int64) error
}

// TTLs maps a scope to its entry lifetime; zero or missing means no expiry.
type TTLs map[Scope]time.Duration

func (t TTLs) of(scope Scope) time.Duration {
	if t == nil {
		return 0
	}
	if d := t[scope]; d > 0 {
		return d
	}
	return 0
}

const (
	// BackendMemory keeps sessions in process memory.
	BackendMemory = "memory"
	// BackendRedis keeps sessions in Redis so they survive restarts.
	BackendRedis = "redis"
)

// Config selects and configures the backend.
type Config struct {
	Backend       string        `yaml:"backend" envconfig:"SESSION_BACKEND"`
	RedisAddr     string        `yaml:"redis_addr" envconfig:"REDIS_ADDR"`
	RedisPassword string        `yaml:"redis_password" envconfig:"REDIS_PASSWORD"`
	RedisDB       int           `yaml:"redis_db" envconfig:"REDIS_DB"`
	KeyPrefix     string        `yaml:"key_prefix" envconfig:"SESSION_KEY_PREFIX"`
	ChallengeTTL  time.Duration `yaml:"challenge_ttl" envconfig:"SESSION_CHALLENGE_TTL"`
	AdminTTL      time.Duration `yaml:"admin_ttl" envconfig:"SESSION_ADMIN_TTL"`
}

// Normalize validates the backend choice and fills defaults.
func (c *Config) Normalize() error {
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
	if c.Backend == "" {
		c.Backend = BackendMemory
	}
	switch c.Backend {
	case BackendMemory:
	case BackendRedis:
		if strings.TrimSpace(c.RedisAddr) == "" {
			return fmt.Errorf("session.redis_addr is required when session.backend is 'redis'")
		}
	default:
		return fmt.Errorf("invalid session.backend %q; allowed: memory, redis", c.Backend)
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = "membergate:session"
	}
	if c.ChallengeTTL < 0 || c.AdminTTL < 0 {
		return fmt.Errorf("session ttls must be >= 0")
	}
	return nil
}
