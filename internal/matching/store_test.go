package matching

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/myanride/dispatch/pkg/models"
	"github.com/myanride/dispatch/pkg/redis"
)

func TestRedisGeoStore_UpdateLocation(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewRedisGeoStore(redis.Wrap(db), 5*time.Minute)
	driverID := uuid.New()

	mock.ExpectGeoAdd(driverGeoKey, &goredis.GeoLocation{
		Name:      driverID.String(),
		Latitude:  16.8409,
		Longitude: 96.1735,
	}).SetVal(1)
	mock.Regexp().ExpectSet(presenceKey(driverID), `.*"heading":90.*`, 5*time.Minute).SetVal("OK")

	err := store.UpdateLocation(context.Background(), driverID,
		models.Location{Latitude: 16.8409, Longitude: 96.1735}, 90)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisGeoStore_RemoveDriver(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewRedisGeoStore(redis.Wrap(db), 5*time.Minute)
	driverID := uuid.New()

	mock.ExpectZRem(driverGeoKey, driverID.String()).SetVal(1)
	mock.ExpectDel(presenceKey(driverID)).SetVal(1)

	err := store.RemoveDriver(context.Background(), driverID)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisGeoStore_QueryWithinRadius(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewRedisGeoStore(redis.Wrap(db), 5*time.Minute)

	near := uuid.New()
	stale := uuid.New()

	query := &goredis.GeoSearchLocationQuery{
		GeoSearchQuery: goredis.GeoSearchQuery{
			Latitude:   16.7983,
			Longitude:  96.1497,
			Radius:     800,
			RadiusUnit: "m",
			Sort:       "ASC",
		},
		WithCoord: true,
		WithDist:  true,
	}
	mock.ExpectGeoSearchLocation(driverGeoKey, query).SetVal([]goredis.GeoLocation{
		{Name: near.String(), Latitude: 16.7990, Longitude: 96.1500, Dist: 85.3},
		{Name: stale.String(), Latitude: 16.8050, Longitude: 96.1550, Dist: 910.0},
	})

	presence, err := json.Marshal(presencePayload{
		Latitude: 16.7990, Longitude: 96.1500, Heading: 45, UpdatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	// the second driver's presence key has expired
	mock.ExpectMGet(presenceKey(near), presenceKey(stale)).SetVal([]interface{}{string(presence), nil})

	results, err := store.QueryWithinRadius(context.Background(),
		models.Location{Latitude: 16.7983, Longitude: 96.1497}, 800)

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, near, results[0].DriverID)
	assert.Equal(t, 85.3, results[0].DistanceMeters)
	assert.Equal(t, float64(45), results[0].Heading)
	assert.NoError(t, mock.ExpectationsWereMet())
}
