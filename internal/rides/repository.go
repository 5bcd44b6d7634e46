package rides

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/myanride/dispatch/internal/dispatch"
)

// ErrRideNotFound means the ride id has no row
var ErrRideNotFound = errors.New("ride not found")

// Repository persists rides and fare quotes. It also implements the
// dispatcher's ride store.
type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

func (r *Repository) CreateRide(ctx context.Context, ride *Ride) error {
	query := `
		INSERT INTO ride_requests
			(id, rider_id, pickup_lat, pickup_lng, dropoff_lat, dropoff_lng,
			 pickup_township, dropoff_township, vehicle_class, seats, state)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		ride.ID, ride.RiderID,
		ride.Pickup.Latitude, ride.Pickup.Longitude,
		ride.Dropoff.Latitude, ride.Dropoff.Longitude,
		ride.PickupTownship, ride.DropoffTownship,
		ride.VehicleClass, ride.Seats, ride.State,
	).Scan(&ride.CreatedAt, &ride.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create ride: %w", err)
	}
	return nil
}

func (r *Repository) GetRide(ctx context.Context, rideID uuid.UUID) (*Ride, error) {
	query := `
		SELECT id, rider_id, pickup_lat, pickup_lng, dropoff_lat, dropoff_lng,
		       COALESCE(pickup_township, ''), COALESCE(dropoff_township, ''),
		       COALESCE(vehicle_class, ''), seats, state, assigned_driver,
		       created_at, updated_at
		FROM ride_requests
		WHERE id = $1
	`
	var ride Ride
	err := r.db.QueryRow(ctx, query, rideID).Scan(
		&ride.ID, &ride.RiderID,
		&ride.Pickup.Latitude, &ride.Pickup.Longitude,
		&ride.Dropoff.Latitude, &ride.Dropoff.Longitude,
		&ride.PickupTownship, &ride.DropoffTownship,
		&ride.VehicleClass, &ride.Seats, &ride.State, &ride.AssignedDriver,
		&ride.CreatedAt, &ride.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRideNotFound
		}
		return nil, fmt.Errorf("failed to load ride: %w", err)
	}
	return &ride, nil
}

// UpdateRideState moves a ride from one state to another. The transition is
// compare-and-set; a ride no longer in the expected state is left untouched.
func (r *Repository) UpdateRideState(ctx context.Context, rideID uuid.UUID, from, to dispatch.RideState) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE ride_requests
		SET state = $3, updated_at = NOW()
		WHERE id = $1 AND state = $2
	`, rideID, from, to)
	if err != nil {
		return fmt.Errorf("failed to update ride state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("ride %s is not in state %s", rideID, from)
	}
	return nil
}

// AssignDriver finalizes a ride onto a driver
func (r *Repository) AssignDriver(ctx context.Context, rideID, driverID uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE ride_requests
		SET state = $3, assigned_driver = $2, updated_at = NOW()
		WHERE id = $1 AND state = $4
	`, rideID, driverID, dispatch.StateAssigned, dispatch.StateOffered)
	if err != nil {
		return fmt.Errorf("failed to assign driver: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("ride %s is not in state %s", rideID, dispatch.StateOffered)
	}
	return nil
}

// ListRidesByRider returns a rider's rides newest first
func (r *Repository) ListRidesByRider(ctx context.Context, riderID uuid.UUID, limit int) ([]Ride, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
		SELECT id, rider_id, pickup_lat, pickup_lng, dropoff_lat, dropoff_lng,
		       COALESCE(pickup_township, ''), COALESCE(dropoff_township, ''),
		       COALESCE(vehicle_class, ''), seats, state, assigned_driver,
		       created_at, updated_at
		FROM ride_requests
		WHERE rider_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, riderID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list rides: %w", err)
	}
	defer rows.Close()

	var rides []Ride
	for rows.Next() {
		var ride Ride
		if err := rows.Scan(
			&ride.ID, &ride.RiderID,
			&ride.Pickup.Latitude, &ride.Pickup.Longitude,
			&ride.Dropoff.Latitude, &ride.Dropoff.Longitude,
			&ride.PickupTownship, &ride.DropoffTownship,
			&ride.VehicleClass, &ride.Seats, &ride.State, &ride.AssignedDriver,
			&ride.CreatedAt, &ride.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan ride: %w", err)
		}
		rides = append(rides, ride)
	}
	return rides, rows.Err()
}

// SaveQuote archives a fare quote for later reconciliation
func (r *Repository) SaveQuote(ctx context.Context, quote *FareQuote) error {
	query := `
		INSERT INTO fare_quotes
			(id, vehicle_class, currency, distance_km, duration_minutes,
			 base_fare, distance_charge, time_charge, booking_fee,
			 multiplier, applied_rule, surge_multiplier, township_charge,
			 total, class_fares)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING quoted_at
	`
	classFares, err := json.Marshal(quote.ClassFares)
	if err != nil {
		return fmt.Errorf("failed to encode class fares: %w", err)
	}
	b := quote.Breakdown
	err = r.db.QueryRow(ctx, query,
		quote.ID, b.VehicleClass, b.Currency,
		quote.DistanceKm, quote.DurationMinutes,
		b.BaseFare, b.DistanceCharge, b.TimeCharge, b.BookingFee,
		b.Multiplier, b.AppliedRule, b.SurgeMultiplier,
		quote.TownshipCharge, quote.Total, classFares,
	).Scan(&quote.QuotedAt)
	if err != nil {
		return fmt.Errorf("failed to save quote: %w", err)
	}
	return nil
}
