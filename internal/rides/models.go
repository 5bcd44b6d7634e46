package rides

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/myanride/dispatch/internal/dispatch"
	"github.com/myanride/dispatch/internal/pricing"
	"github.com/myanride/dispatch/pkg/models"
)

// CreateRideRequest is the rider-facing request body
type CreateRideRequest struct {
	Pickup          models.Location `json:"pickup" binding:"required"`
	Dropoff         models.Location `json:"dropoff" binding:"required"`
	PickupTownship  string          `json:"pickup_township"`
	DropoffTownship string          `json:"dropoff_township"`
	VehicleClass    string          `json:"vehicle_class"`
	FuelType        string          `json:"fuel_type"`
	PetFriendly     *bool           `json:"pet_friendly"`
	Seats           int             `json:"seats"`
}

// Ride is the persisted ride row
type Ride struct {
	ID              uuid.UUID          `json:"id"`
	RiderID         uuid.UUID          `json:"rider_id"`
	Pickup          models.Location    `json:"pickup"`
	Dropoff         models.Location    `json:"dropoff"`
	PickupTownship  string             `json:"pickup_township,omitempty"`
	DropoffTownship string             `json:"dropoff_township,omitempty"`
	VehicleClass    string             `json:"vehicle_class,omitempty"`
	Seats           int                `json:"seats,omitempty"`
	State           dispatch.RideState `json:"state"`
	AssignedDriver  *uuid.UUID         `json:"assigned_driver,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

// QuoteRequest asks for a fare estimate ahead of booking
type QuoteRequest struct {
	DistanceKm      float64 `json:"distance_km" binding:"required,gt=0"`
	DurationMinutes float64 `json:"duration_minutes" binding:"gte=0"`
	VehicleClass    string  `json:"vehicle_class"`
	PickupTownship  string  `json:"pickup_township"`
	DropoffTownship string  `json:"dropoff_township"`
}

// FareQuote is a fare estimate: the metered breakdown plus any fixed
// township surcharge.
type FareQuote struct {
	ID        uuid.UUID             `json:"id"`
	Breakdown pricing.FareBreakdown `json:"breakdown"`
	// ClassFares maps every configured vehicle class to its total for the
	// same trip, township surcharge included. The requested class is also in
	// the map and matches Total.
	ClassFares      map[string]decimal.Decimal `json:"class_fares"`
	TownshipCharge  decimal.Decimal            `json:"township_charge"`
	Total           decimal.Decimal            `json:"total"`
	DistanceKm      float64                    `json:"distance_km"`
	DurationMinutes float64                    `json:"duration_minutes"`
	QuotedAt        time.Time                  `json:"quoted_at"`
}
