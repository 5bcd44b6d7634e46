package matching

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/myanride/dispatch/pkg/logger"
	"github.com/myanride/dispatch/pkg/models"
	"github.com/myanride/dispatch/pkg/redis"
)

const (
	driverGeoKey         = "drivers:geo"
	driverLocationPrefix = "driver:location:"
)

type presencePayload struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Heading   float64   `json:"heading"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RedisGeoStore keeps the live driver index in a Redis geo set plus a
// per-driver presence key. The presence key carries the heading and expires
// after locationTTL, so a driver that stops reporting falls out of matching
// even though the geo member lingers until the next explicit removal.
type RedisGeoStore struct {
	client      *redis.Client
	locationTTL time.Duration
}

func NewRedisGeoStore(client *redis.Client, locationTTL time.Duration) *RedisGeoStore {
	return &RedisGeoStore{client: client, locationTTL: locationTTL}
}

func presenceKey(driverID uuid.UUID) string {
	return driverLocationPrefix + driverID.String()
}

func (s *RedisGeoStore) UpdateLocation(ctx context.Context, driverID uuid.UUID, loc models.Location, heading float64) error {
	if err := s.client.GeoAddMember(ctx, driverGeoKey, driverID.String(), loc.Latitude, loc.Longitude); err != nil {
		return fmt.Errorf("failed to index driver location: %w", err)
	}

	payload, err := json.Marshal(presencePayload{
		Latitude:  loc.Latitude,
		Longitude: loc.Longitude,
		Heading:   heading,
		UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal driver presence: %w", err)
	}
	if err := s.client.SetWithExpiration(ctx, presenceKey(driverID), string(payload), s.locationTTL); err != nil {
		return fmt.Errorf("failed to store driver presence: %w", err)
	}
	return nil
}

func (s *RedisGeoStore) RemoveDriver(ctx context.Context, driverID uuid.UUID) error {
	if err := s.client.GeoRemoveMember(ctx, driverGeoKey, driverID.String()); err != nil {
		return fmt.Errorf("failed to remove driver from geo index: %w", err)
	}
	if err := s.client.Delete(ctx, presenceKey(driverID)); err != nil {
		return fmt.Errorf("failed to remove driver presence: %w", err)
	}
	return nil
}

// QueryWithinRadius returns drivers inside the radius ordered nearest first.
// Members without a live presence key are skipped.
func (s *RedisGeoStore) QueryWithinRadius(ctx context.Context, center models.Location, radiusMeters float64) ([]GeoResult, error) {
	locations, err := s.client.GeoSearchRadius(ctx, driverGeoKey, center.Latitude, center.Longitude, radiusMeters)
	if err != nil {
		return nil, fmt.Errorf("failed to query driver geo index: %w", err)
	}
	if len(locations) == 0 {
		return nil, nil
	}

	type member struct {
		id   uuid.UUID
		lat  float64
		lng  float64
		dist float64
	}
	members := make([]member, 0, len(locations))
	keys := make([]string, 0, len(locations))
	for _, loc := range locations {
		id, err := uuid.Parse(loc.Name)
		if err != nil {
			logger.Get().Warn("Skipping malformed geo member", zap.String("member", loc.Name))
			continue
		}
		members = append(members, member{id: id, lat: loc.Latitude, lng: loc.Longitude, dist: loc.Dist})
		keys = append(keys, presenceKey(id))
	}
	if len(keys) == 0 {
		return nil, nil
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load driver presence: %w", err)
	}

	results := make([]GeoResult, 0, len(members))
	for i, m := range members {
		raw, ok := values[i].(string)
		if !ok {
			// presence expired, driver is stale
			continue
		}
		var presence presencePayload
		if err := json.Unmarshal([]byte(raw), &presence); err != nil {
			logger.Get().Warn("Skipping driver with malformed presence",
				zap.String("driver_id", m.id.String()))
			continue
		}
		results = append(results, GeoResult{
			DriverID:       m.id,
			Location:       models.Location{Latitude: m.lat, Longitude: m.lng},
			Heading:        presence.Heading,
			DistanceMeters: m.dist,
		})
	}
	return results, nil
}
