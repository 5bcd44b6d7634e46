package rides

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/myanride/dispatch/internal/dispatch"
	"github.com/myanride/dispatch/internal/matching"
	"github.com/myanride/dispatch/internal/pricing"
	"github.com/myanride/dispatch/pkg/common"
	"github.com/myanride/dispatch/pkg/logger"
)

// ErrNotRideOwner means a rider tried to act on someone else's ride
var ErrNotRideOwner = errors.New("ride belongs to another rider")

// minSeatsForCapacityFilter is the seat count from which the capacity filter
// kicks in. Smaller parties fit any vehicle.
const minSeatsForCapacityFilter = 5

// RideRepository is the persistence surface the service needs
type RideRepository interface {
	CreateRide(ctx context.Context, ride *Ride) error
	GetRide(ctx context.Context, rideID uuid.UUID) (*Ride, error)
	ListRidesByRider(ctx context.Context, riderID uuid.UUID, limit int) ([]Ride, error)
	SaveQuote(ctx context.Context, quote *FareQuote) error
}

// Dispatcher runs the driver search for a ride
type Dispatcher interface {
	Start(ctx context.Context, ride dispatch.RideRequest) error
	Accept(ctx context.Context, rideID, driverID uuid.UUID) error
	Decline(ctx context.Context, rideID, driverID uuid.UUID) error
	Cancel(ctx context.Context, rideID uuid.UUID) error
}

// FareCalculator computes metered fare breakdowns
type FareCalculator interface {
	CalculateFare(distanceKm, durationMinutes float64, vehicleClass string, at time.Time) pricing.FareBreakdown
	VehicleClasses() []string
}

// TownshipCharger resolves fixed township surcharges
type TownshipCharger interface {
	GetTownshipCharge(origin, dest string) decimal.Decimal
}

// Service owns the rider- and driver-facing ride operations
type Service struct {
	repo       RideRepository
	dispatcher Dispatcher
	fares      FareCalculator
	townships  TownshipCharger
	now        func() time.Time
}

func NewService(repo RideRepository, dispatcher Dispatcher, fares FareCalculator, townships TownshipCharger) *Service {
	return &Service{
		repo:       repo,
		dispatcher: dispatcher,
		fares:      fares,
		townships:  townships,
		now:        time.Now,
	}
}

// CreateRide persists a new ride and starts dispatching it
func (s *Service) CreateRide(ctx context.Context, riderID uuid.UUID, req CreateRideRequest) (*Ride, error) {
	ride := &Ride{
		ID:              uuid.New(),
		RiderID:         riderID,
		Pickup:          req.Pickup,
		Dropoff:         req.Dropoff,
		PickupTownship:  strings.TrimSpace(req.PickupTownship),
		DropoffTownship: strings.TrimSpace(req.DropoffTownship),
		VehicleClass:    strings.ToUpper(strings.TrimSpace(req.VehicleClass)),
		Seats:           req.Seats,
		State:           dispatch.StateCreated,
	}
	if err := s.repo.CreateRide(ctx, ride); err != nil {
		return nil, err
	}

	if err := s.dispatcher.Start(ctx, dispatch.RideRequest{
		ID:              ride.ID,
		RiderID:         ride.RiderID,
		Pickup:          ride.Pickup,
		Dropoff:         ride.Dropoff,
		PickupTownship:  ride.PickupTownship,
		DropoffTownship: ride.DropoffTownship,
		VehicleClass:    ride.VehicleClass,
		Filters:         s.buildFilters(req, ride.VehicleClass),
		State:           ride.State,
		CreatedAt:       ride.CreatedAt,
	}); err != nil {
		return nil, fmt.Errorf("failed to start dispatch: %w", err)
	}
	ride.State = dispatch.StateSearching
	return ride, nil
}

func (s *Service) buildFilters(req CreateRideRequest, vehicleClass string) matching.Filters {
	var filters matching.Filters
	if vehicleClass != "" {
		class := vehicleClass
		filters.VehicleClass = &class
	}
	if fuel := strings.ToUpper(strings.TrimSpace(req.FuelType)); fuel != "" {
		filters.FuelType = &fuel
	}
	if req.PetFriendly != nil && *req.PetFriendly {
		pets := true
		filters.PetFriendly = &pets
	}
	if req.Seats >= minSeatsForCapacityFilter {
		seats := req.Seats
		filters.MinCapacity = &seats
	}
	return filters
}

// AcceptOffer resolves an outstanding offer in the driver's favor. An accept
// that arrives after the ride was already assigned to the same driver is a
// no-op.
func (s *Service) AcceptOffer(ctx context.Context, rideID, driverID uuid.UUID) error {
	err := s.dispatcher.Accept(ctx, rideID, driverID)
	if err == nil {
		return nil
	}
	if errors.Is(err, dispatch.ErrStaleResponse) {
		return common.NewConflictError("Offer is no longer active").CausedBy(err)
	}
	if !errors.Is(err, dispatch.ErrNoActiveDispatch) {
		return err
	}

	ride, lookupErr := s.repo.GetRide(ctx, rideID)
	if lookupErr != nil {
		return rideLookupError(lookupErr)
	}
	if ride.State == dispatch.StateAssigned && ride.AssignedDriver != nil && *ride.AssignedDriver == driverID {
		return nil
	}
	if ride.State.IsTerminal() {
		return common.NewConflictError("Ride is already finalized").CausedBy(dispatch.ErrAlreadyTerminal)
	}
	return common.NewConflictError("Offer is no longer active").CausedBy(err)
}

// DeclineOffer rejects an outstanding offer. Declines that arrive after the
// search moved on are ignored.
func (s *Service) DeclineOffer(ctx context.Context, rideID, driverID uuid.UUID) error {
	err := s.dispatcher.Decline(ctx, rideID, driverID)
	if errors.Is(err, dispatch.ErrStaleResponse) {
		return nil
	}
	if !errors.Is(err, dispatch.ErrNoActiveDispatch) {
		return err
	}

	if _, lookupErr := s.repo.GetRide(ctx, rideID); lookupErr != nil {
		return rideLookupError(lookupErr)
	}
	return nil
}

// CancelRide ends the search on the rider's behalf. Cancelling an already
// cancelled ride is a no-op; cancelling an assigned or unmatched ride fails.
func (s *Service) CancelRide(ctx context.Context, rideID, riderID uuid.UUID) error {
	ride, err := s.repo.GetRide(ctx, rideID)
	if err != nil {
		return rideLookupError(err)
	}
	if ride.RiderID != riderID {
		return common.NewForbiddenError("Ride belongs to another rider").CausedBy(ErrNotRideOwner)
	}

	err = s.dispatcher.Cancel(ctx, rideID)
	if !errors.Is(err, dispatch.ErrNoActiveDispatch) {
		return err
	}

	ride, err = s.repo.GetRide(ctx, rideID)
	if err != nil {
		return rideLookupError(err)
	}
	if ride.State == dispatch.StateCancelled {
		return nil
	}
	return common.NewConflictError("Ride can no longer be cancelled").CausedBy(dispatch.ErrAlreadyTerminal)
}

// GetRide returns one ride, restricted to its rider or assigned driver
// checks at the handler level.
func (s *Service) GetRide(ctx context.Context, rideID uuid.UUID) (*Ride, error) {
	ride, err := s.repo.GetRide(ctx, rideID)
	if err != nil {
		return nil, rideLookupError(err)
	}
	return ride, nil
}

// rideLookupError maps a missing ride onto the HTTP error taxonomy and
// passes every other repository failure through untouched.
func rideLookupError(err error) error {
	if errors.Is(err, ErrRideNotFound) {
		return common.NewNotFoundError("Ride not found").CausedBy(err)
	}
	return err
}

// ListRides returns a rider's ride history
func (s *Service) ListRides(ctx context.Context, riderID uuid.UUID, limit int) ([]Ride, error) {
	return s.repo.ListRidesByRider(ctx, riderID, limit)
}

// Quote computes a fare estimate and archives it. A failed archive write
// does not fail the quote.
func (s *Service) Quote(ctx context.Context, req QuoteRequest) (*FareQuote, error) {
	class := strings.ToUpper(strings.TrimSpace(req.VehicleClass))
	at := s.now()
	breakdown := s.fares.CalculateFare(req.DistanceKm, req.DurationMinutes, class, at)
	townshipCharge := s.townships.GetTownshipCharge(req.PickupTownship, req.DropoffTownship)

	classFares := map[string]decimal.Decimal{
		class: breakdown.TotalFare.Add(townshipCharge),
	}
	for _, other := range s.fares.VehicleClasses() {
		if _, ok := classFares[other]; ok {
			continue
		}
		fare := s.fares.CalculateFare(req.DistanceKm, req.DurationMinutes, other, at)
		classFares[other] = fare.TotalFare.Add(townshipCharge)
	}

	quote := &FareQuote{
		ID:              uuid.New(),
		Breakdown:       breakdown,
		ClassFares:      classFares,
		TownshipCharge:  townshipCharge,
		Total:           breakdown.TotalFare.Add(townshipCharge),
		DistanceKm:      req.DistanceKm,
		DurationMinutes: req.DurationMinutes,
		QuotedAt:        s.now(),
	}
	if err := s.repo.SaveQuote(ctx, quote); err != nil {
		logger.Get().Warn("Failed to archive fare quote",
			zap.String("quote_id", quote.ID.String()), zap.Error(err))
	}
	return quote, nil
}
