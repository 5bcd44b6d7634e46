package matching

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/myanride/dispatch/pkg/models"
)

// GeoStore indexes live driver locations and answers radius queries
type GeoStore interface {
	UpdateLocation(ctx context.Context, driverID uuid.UUID, loc models.Location, heading float64) error
	RemoveDriver(ctx context.Context, driverID uuid.UUID) error
	QueryWithinRadius(ctx context.Context, center models.Location, radiusMeters float64) ([]GeoResult, error)
}

// DriverRepository loads driver rows for snapshot assembly
type DriverRepository interface {
	GetSnapshots(ctx context.Context, ids []uuid.UUID) ([]DriverSnapshot, error)
}

// PenaltyChecker reports whether a driver is currently suppressed from matching
type PenaltyChecker interface {
	IsPenalized(driverID uuid.UUID, now time.Time) bool
	PenaltyUntil(driverID uuid.UUID) (time.Time, bool)
}
