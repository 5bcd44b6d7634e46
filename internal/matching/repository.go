package matching

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository loads driver rows from Postgres
type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// GetDriverIDByUserID resolves the driver row owned by a user account
func (r *Repository) GetDriverIDByUserID(ctx context.Context, userID uuid.UUID) (uuid.UUID, error) {
	var driverID uuid.UUID
	err := r.db.QueryRow(ctx, `SELECT id FROM drivers WHERE user_id = $1`, userID).Scan(&driverID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to resolve driver for user: %w", err)
	}
	return driverID, nil
}

// GetSnapshots loads the drivers with the given ids. Drivers missing from the
// table are silently absent from the result.
func (r *Repository) GetSnapshots(ctx context.Context, ids []uuid.UUID) ([]DriverSnapshot, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `
		SELECT id, user_id, name, COALESCE(image_url, ''),
		       status, approval, vip,
		       vehicle_class, fuel_type, pet_friendly, capacity,
		       rating, total_rides, created_at
		FROM drivers
		WHERE id = ANY($1)
	`
	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query drivers: %w", err)
	}
	defer rows.Close()

	snapshots := make([]DriverSnapshot, 0, len(ids))
	for rows.Next() {
		var d DriverSnapshot
		if err := rows.Scan(
			&d.DriverID, &d.UserID, &d.Name, &d.ImageURL,
			&d.Status, &d.Approval, &d.VIP,
			&d.VehicleClass, &d.FuelType, &d.PetFriendly, &d.Capacity,
			&d.Rating, &d.TotalRides, &d.AccountCreated,
		); err != nil {
			return nil, fmt.Errorf("failed to scan driver: %w", err)
		}
		snapshots = append(snapshots, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read drivers: %w", err)
	}
	return snapshots, nil
}
