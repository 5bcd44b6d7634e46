package matching

import (
	"time"

	"github.com/google/uuid"

	"github.com/myanride/dispatch/pkg/models"
)

// DriverStatus is a driver's availability state
type DriverStatus string

const (
	StatusOnline  DriverStatus = "ONLINE"
	StatusOffline DriverStatus = "OFFLINE"
	StatusOnTrip  DriverStatus = "ON_TRIP"
)

// ApprovalStatus is a driver's onboarding state
type ApprovalStatus string

const (
	ApprovalApproved ApprovalStatus = "APPROVED"
	ApprovalPending  ApprovalStatus = "PENDING"
	ApprovalRejected ApprovalStatus = "REJECTED"
)

// PlusVehicleClass is the premium vehicle tier ranked ahead of other classes
// within the VIP tier.
const PlusVehicleClass = "PLUS"

// DriverSnapshot is a read-only projection of one driver produced per query.
// It is never persisted by the matcher.
type DriverSnapshot struct {
	DriverID       uuid.UUID        `json:"driver_id"`
	UserID         uuid.UUID        `json:"user_id"`
	Name           string           `json:"name"`
	ImageURL       string           `json:"image_url,omitempty"`
	Status         DriverStatus     `json:"status"`
	Approval       ApprovalStatus   `json:"approval"`
	VIP            bool             `json:"vip"`
	VehicleClass   string           `json:"vehicle_class"`
	FuelType       string           `json:"fuel_type"`
	PetFriendly    bool             `json:"pet_friendly"`
	Capacity       int              `json:"capacity"`
	Rating         float64          `json:"rating"`
	AccountCreated time.Time        `json:"account_created"`
	TotalRides     int              `json:"total_rides"`
	PenaltyUntil   *time.Time       `json:"penalty_until,omitempty"`
	Location       *models.Location `json:"location,omitempty"`
	Heading        float64          `json:"heading"`

	// DistanceMeters is informational (logging); it is not a ranking key.
	DistanceMeters float64 `json:"distance_meters"`
}

// Filters are the rider-preference filters of one ride request. Each field is
// applied only when set.
type Filters struct {
	VehicleClass *string     `json:"vehicle_class,omitempty"`
	FuelType     *string     `json:"fuel_type,omitempty"`
	PetFriendly  *bool       `json:"pet_friendly,omitempty"`
	MinCapacity  *int        `json:"min_capacity,omitempty"`
	Exclude      []uuid.UUID `json:"-"`
}

// GeoResult is one row of a geodesic radius query
type GeoResult struct {
	DriverID       uuid.UUID
	Location       models.Location
	Heading        float64
	DistanceMeters float64
}
