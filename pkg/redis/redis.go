package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/myanride/dispatch/pkg/config"
)

// Client wraps the Redis client
type Client struct {
	*redis.Client
}

// NewRedisClient creates a new Redis client
func NewRedisClient(cfg *config.RedisConfig) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("unable to connect to redis: %w", err)
	}

	return &Client{Client: client}, nil
}

// Wrap wraps an existing go-redis client (used by tests with redismock)
func Wrap(client *redis.Client) *Client {
	return &Client{Client: client}
}

// SetWithExpiration sets a key-value pair with expiration
func (c *Client) SetWithExpiration(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return c.Set(ctx, key, value, expiration).Err()
}

// Delete deletes a key
func (c *Client) Delete(ctx context.Context, keys ...string) error {
	return c.Del(ctx, keys...).Err()
}

// GeoAddMember adds or updates a member of a geospatial index
func (c *Client) GeoAddMember(ctx context.Context, key, member string, latitude, longitude float64) error {
	return c.GeoAdd(ctx, key, &redis.GeoLocation{
		Name:      member,
		Latitude:  latitude,
		Longitude: longitude,
	}).Err()
}

// GeoRemoveMember removes a member from a geospatial index
func (c *Client) GeoRemoveMember(ctx context.Context, key, member string) error {
	return c.ZRem(ctx, key, member).Err()
}

// GeoSearchRadius queries members of a geospatial index within radiusMeters of
// the given point, nearest first, with distances attached. Redis GEOSEARCH uses
// geodesic (ellipsoidal-earth) distance.
func (c *Client) GeoSearchRadius(ctx context.Context, key string, latitude, longitude, radiusMeters float64) ([]redis.GeoLocation, error) {
	return c.GeoSearchLocation(ctx, key, &redis.GeoSearchLocationQuery{
		GeoSearchQuery: redis.GeoSearchQuery{
			Latitude:   latitude,
			Longitude:  longitude,
			Radius:     radiusMeters,
			RadiusUnit: "m",
			Sort:       "ASC",
		},
		WithCoord: true,
		WithDist:  true,
	}).Result()
}

// Close closes the Redis client
func (c *Client) Close() error {
	return c.Client.Close()
}
