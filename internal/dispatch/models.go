package dispatch

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/myanride/dispatch/internal/matching"
	"github.com/myanride/dispatch/pkg/models"
)

// RideState is one node of the ride lifecycle. Terminal states are ASSIGNED,
// UNMATCHED and CANCELLED.
type RideState string

const (
	StateCreated   RideState = "CREATED"
	StateSearching RideState = "SEARCHING"
	StateOffered   RideState = "OFFERED"
	StateAssigned  RideState = "ASSIGNED"
	StateUnmatched RideState = "UNMATCHED"
	StateCancelled RideState = "CANCELLED"
)

// IsTerminal reports whether no further transitions are possible
func (s RideState) IsTerminal() bool {
	return s == StateAssigned || s == StateUnmatched || s == StateCancelled
}

var (
	// ErrNoActiveDispatch means no dispatch session is running for the ride
	ErrNoActiveDispatch = errors.New("no active dispatch for ride")
	// ErrStaleResponse means a driver responded to an offer that is no longer
	// outstanding for them
	ErrStaleResponse = errors.New("offer is no longer outstanding for this driver")
	// ErrAlreadyTerminal means the ride has already reached a terminal state
	ErrAlreadyTerminal = errors.New("ride is already in a terminal state")
)

// RideRequest is the dispatcher's view of one ride
type RideRequest struct {
	ID              uuid.UUID        `json:"id"`
	RiderID         uuid.UUID        `json:"rider_id"`
	Pickup          models.Location  `json:"pickup"`
	Dropoff         models.Location  `json:"dropoff"`
	PickupTownship  string           `json:"pickup_township,omitempty"`
	DropoffTownship string           `json:"dropoff_township,omitempty"`
	VehicleClass    string           `json:"vehicle_class,omitempty"`
	Filters         matching.Filters `json:"filters"`
	State           RideState        `json:"state"`
	AssignedDriver  *uuid.UUID       `json:"assigned_driver,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
}

// Offer is one outstanding proposal of a ride to a driver
type Offer struct {
	RideID    uuid.UUID               `json:"ride_id"`
	Driver    matching.DriverSnapshot `json:"driver"`
	Round     int                     `json:"round"`
	ExpiresAt time.Time               `json:"expires_at"`
}

// Outcome reports how a dispatch session ended
type Outcome struct {
	RideID         uuid.UUID  `json:"ride_id"`
	State          RideState  `json:"state"`
	AssignedDriver *uuid.UUID `json:"assigned_driver,omitempty"`
	RoundsUsed     int        `json:"rounds_used"`
	OffersMade     int        `json:"offers_made"`
}
