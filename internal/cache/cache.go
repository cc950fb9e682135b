// Package cache keeps short-lived availability snapshots per league in Redis, so the
// league list and live pages do not re-count registrations on every request.
// Writes that change occupancy invalidate the league's entry.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned by Get when no snapshot is cached.
var ErrMiss = errors.New("cache miss")

// Availability is the cached view of a league's capacity.
type Availability struct {
	LeagueID       uuid.UUID `json:"league_id"`
	Capacity       int       `json:"capacity"`
	Occupancy      int       `json:"occupancy"`
	SpotsRemaining int       `json:"spots_remaining"`
	Bucket         string    `json:"bucket"`
	Waitlisted     int       `json:"waitlisted"`
	ComputedAt     time.Time `json:"computed_at"`
}

// AvailabilityCache stores availability snapshots.
type AvailabilityCache interface {
	Get(ctx context.Context, leagueID uuid.UUID) (Availability, error)
	Set(ctx context.Context, a Availability) error
	Invalidate(ctx context.Context, leagueID uuid.UUID) error
}

func key(leagueID uuid.UUID) string {
	return "league:avail:" + leagueID.String()
}

// Redis is an AvailabilityCache backed by a Redis client.
type Redis struct {
	Client *redis.Client
	TTL    time.Duration
}

// NewRedis connects a client; the connection is established lazily on first use.
func NewRedis(addr, password string, db int, ttl time.Duration) *Redis {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	return &Redis{Client: rdb, TTL: ttl}
}

// Get implements AvailabilityCache.
func (c *Redis) Get(ctx context.Context, leagueID uuid.UUID) (Availability, error) {
	raw, err := c.Client.Get(ctx, key(leagueID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Availability{}, ErrMiss
		}
		return Availability{}, fmt.Errorf("redis get: %w", err)
	}
	var a Availability
	if err := json.Unmarshal(raw, &a); err != nil {
		return Availability{}, fmt.Errorf("decode cached availability: %w", err)
	}
	return a, nil
}

// Set implements AvailabilityCache.
func (c *Redis) Set(ctx context.Context, a Availability) error {
	raw, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode availability: %w", err)
	}
	return c.Client.Set(ctx, key(a.LeagueID), raw, c.TTL).Err()
}

// Invalidate implements AvailabilityCache.
func (c *Redis) Invalidate(ctx context.Context, leagueID uuid.UUID) error {
	return c.Client.Del(ctx, key(leagueID)).Err()
}

// Close releases the client's connections.
func (c *Redis) Close() error {
	return c.Client.Close()
}

// Noop is an AvailabilityCache that never stores anything.
type Noop struct{}

func (Noop) Get(context.Context, uuid.UUID) (Availability, error) { return Availability{}, ErrMiss }
func (Noop) Set(context.Context, Availability) error              { return nil }
func (Noop) Invalidate(context.Context, uuid.UUID) error          { return nil }
