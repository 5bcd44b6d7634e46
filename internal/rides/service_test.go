package rides

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/myanride/dispatch/internal/dispatch"
	"github.com/myanride/dispatch/internal/pricing"
	"github.com/myanride/dispatch/pkg/common"
	"github.com/myanride/dispatch/pkg/models"
)

type fakeRepo struct {
	rides  map[uuid.UUID]*Ride
	quotes []*FareQuote
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{rides: make(map[uuid.UUID]*Ride)}
}

func (f *fakeRepo) CreateRide(ctx context.Context, ride *Ride) error {
	ride.CreatedAt = time.Now()
	copied := *ride
	f.rides[ride.ID] = &copied
	return nil
}

func (f *fakeRepo) GetRide(ctx context.Context, rideID uuid.UUID) (*Ride, error) {
	ride, ok := f.rides[rideID]
	if !ok {
		return nil, ErrRideNotFound
	}
	copied := *ride
	return &copied, nil
}

func (f *fakeRepo) ListRidesByRider(ctx context.Context, riderID uuid.UUID, limit int) ([]Ride, error) {
	var out []Ride
	for _, ride := range f.rides {
		if ride.RiderID == riderID {
			out = append(out, *ride)
		}
	}
	return out, nil
}

func (f *fakeRepo) SaveQuote(ctx context.Context, quote *FareQuote) error {
	f.quotes = append(f.quotes, quote)
	return nil
}

type fakeDispatcher struct {
	started    []dispatch.RideRequest
	acceptErr  error
	declineErr error
	cancelErr  error
}

func (f *fakeDispatcher) Start(ctx context.Context, ride dispatch.RideRequest) error {
	f.started = append(f.started, ride)
	return nil
}

func (f *fakeDispatcher) Accept(ctx context.Context, rideID, driverID uuid.UUID) error {
	return f.acceptErr
}

func (f *fakeDispatcher) Decline(ctx context.Context, rideID, driverID uuid.UUID) error {
	return f.declineErr
}

func (f *fakeDispatcher) Cancel(ctx context.Context, rideID uuid.UUID) error {
	return f.cancelErr
}

type staticFares struct{}

func (staticFares) CalculateFare(distanceKm, durationMinutes float64, vehicleClass string, at time.Time) pricing.FareBreakdown {
	total := decimal.NewFromInt(11500)
	if vehicleClass == "PLUS" {
		total = decimal.NewFromInt(15000)
	}
	return pricing.FareBreakdown{
		VehicleClass: vehicleClass,
		Currency:     "MMK",
		TotalFare:    total,
	}
}

func (staticFares) VehicleClasses() []string {
	return []string{"PLUS", "STANDARD"}
}

type staticTownships struct {
	charge decimal.Decimal
}

func (s staticTownships) GetTownshipCharge(origin, dest string) decimal.Decimal {
	return s.charge
}

func newTestService(repo *fakeRepo, dispatcher *fakeDispatcher, townshipCharge decimal.Decimal) *Service {
	return NewService(repo, dispatcher, staticFares{}, staticTownships{charge: townshipCharge})
}

func createReq() CreateRideRequest {
	return CreateRideRequest{
		Pickup:  models.Location{Latitude: 16.7983, Longitude: 96.1497},
		Dropoff: models.Location{Latitude: 16.8661, Longitude: 96.1951},
	}
}

func TestCreateRide_StartsDispatch(t *testing.T) {
	repo := newFakeRepo()
	dispatcher := &fakeDispatcher{}
	svc := newTestService(repo, dispatcher, decimal.Zero)

	ride, err := svc.CreateRide(context.Background(), uuid.New(), createReq())

	require.NoError(t, err)
	require.Len(t, dispatcher.started, 1)
	assert.Equal(t, ride.ID, dispatcher.started[0].ID)
	assert.Equal(t, dispatch.StateCreated, dispatcher.started[0].State)
	assert.Equal(t, dispatch.StateSearching, ride.State)
}

func TestCreateRide_FilterAssembly(t *testing.T) {
	repo := newFakeRepo()
	dispatcher := &fakeDispatcher{}
	svc := newTestService(repo, dispatcher, decimal.Zero)

	pets := true
	req := createReq()
	req.VehicleClass = " plus "
	req.FuelType = "ev"
	req.PetFriendly = &pets
	req.Seats = 6

	_, err := svc.CreateRide(context.Background(), uuid.New(), req)
	require.NoError(t, err)

	filters := dispatcher.started[0].Filters
	require.NotNil(t, filters.VehicleClass)
	assert.Equal(t, "PLUS", *filters.VehicleClass)
	require.NotNil(t, filters.FuelType)
	assert.Equal(t, "EV", *filters.FuelType)
	require.NotNil(t, filters.PetFriendly)
	assert.True(t, *filters.PetFriendly)
	require.NotNil(t, filters.MinCapacity)
	assert.Equal(t, 6, *filters.MinCapacity)
}

func TestCreateRide_SmallPartySkipsCapacityFilter(t *testing.T) {
	repo := newFakeRepo()
	dispatcher := &fakeDispatcher{}
	svc := newTestService(repo, dispatcher, decimal.Zero)

	req := createReq()
	req.Seats = 4

	_, err := svc.CreateRide(context.Background(), uuid.New(), req)
	require.NoError(t, err)
	assert.Nil(t, dispatcher.started[0].Filters.MinCapacity)
	assert.Nil(t, dispatcher.started[0].Filters.VehicleClass)
}

func TestAcceptOffer_IdempotentAfterAssignmentToSameDriver(t *testing.T) {
	repo := newFakeRepo()
	driverID := uuid.New()
	rideID := uuid.New()
	repo.rides[rideID] = &Ride{ID: rideID, State: dispatch.StateAssigned, AssignedDriver: &driverID}

	dispatcher := &fakeDispatcher{acceptErr: dispatch.ErrNoActiveDispatch}
	svc := newTestService(repo, dispatcher, decimal.Zero)

	assert.NoError(t, svc.AcceptOffer(context.Background(), rideID, driverID))
}

func TestAcceptOffer_ConflictWhenAssignedToAnotherDriver(t *testing.T) {
	repo := newFakeRepo()
	winner := uuid.New()
	rideID := uuid.New()
	repo.rides[rideID] = &Ride{ID: rideID, State: dispatch.StateAssigned, AssignedDriver: &winner}

	dispatcher := &fakeDispatcher{acceptErr: dispatch.ErrNoActiveDispatch}
	svc := newTestService(repo, dispatcher, decimal.Zero)

	err := svc.AcceptOffer(context.Background(), rideID, uuid.New())
	assert.ErrorIs(t, err, dispatch.ErrAlreadyTerminal)
}

func TestAcceptOffer_UnknownRide(t *testing.T) {
	dispatcher := &fakeDispatcher{acceptErr: dispatch.ErrNoActiveDispatch}
	svc := newTestService(newFakeRepo(), dispatcher, decimal.Zero)

	err := svc.AcceptOffer(context.Background(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, ErrRideNotFound)
}

func TestDeclineOffer_StaleDeclineIsNoOp(t *testing.T) {
	dispatcher := &fakeDispatcher{declineErr: dispatch.ErrStaleResponse}
	svc := newTestService(newFakeRepo(), dispatcher, decimal.Zero)

	assert.NoError(t, svc.DeclineOffer(context.Background(), uuid.New(), uuid.New()))
}

func TestDeclineOffer_AfterTerminalIsNoOp(t *testing.T) {
	repo := newFakeRepo()
	rideID := uuid.New()
	repo.rides[rideID] = &Ride{ID: rideID, State: dispatch.StateUnmatched}

	dispatcher := &fakeDispatcher{declineErr: dispatch.ErrNoActiveDispatch}
	svc := newTestService(repo, dispatcher, decimal.Zero)

	assert.NoError(t, svc.DeclineOffer(context.Background(), rideID, uuid.New()))
}

func TestCancelRide_OwnershipEnforced(t *testing.T) {
	repo := newFakeRepo()
	rideID := uuid.New()
	owner := uuid.New()
	repo.rides[rideID] = &Ride{ID: rideID, RiderID: owner, State: dispatch.StateSearching}

	svc := newTestService(repo, &fakeDispatcher{}, decimal.Zero)

	err := svc.CancelRide(context.Background(), rideID, uuid.New())
	assert.ErrorIs(t, err, ErrNotRideOwner)
}

func TestCancelRide_IdempotentWhenAlreadyCancelled(t *testing.T) {
	repo := newFakeRepo()
	rideID := uuid.New()
	owner := uuid.New()
	repo.rides[rideID] = &Ride{ID: rideID, RiderID: owner, State: dispatch.StateCancelled}

	dispatcher := &fakeDispatcher{cancelErr: dispatch.ErrNoActiveDispatch}
	svc := newTestService(repo, dispatcher, decimal.Zero)

	assert.NoError(t, svc.CancelRide(context.Background(), rideID, owner))
}

func TestCancelRide_ConflictAfterAssignment(t *testing.T) {
	repo := newFakeRepo()
	rideID := uuid.New()
	owner := uuid.New()
	driverID := uuid.New()
	repo.rides[rideID] = &Ride{ID: rideID, RiderID: owner, State: dispatch.StateAssigned, AssignedDriver: &driverID}

	dispatcher := &fakeDispatcher{cancelErr: dispatch.ErrNoActiveDispatch}
	svc := newTestService(repo, dispatcher, decimal.Zero)

	err := svc.CancelRide(context.Background(), rideID, owner)
	assert.ErrorIs(t, err, dispatch.ErrAlreadyTerminal)
}

func TestServiceErrors_CarryHTTPStatus(t *testing.T) {
	repo := newFakeRepo()
	rideID := uuid.New()
	owner := uuid.New()
	driverID := uuid.New()
	repo.rides[rideID] = &Ride{ID: rideID, RiderID: owner, State: dispatch.StateAssigned, AssignedDriver: &driverID}

	dispatcher := &fakeDispatcher{cancelErr: dispatch.ErrNoActiveDispatch, acceptErr: dispatch.ErrNoActiveDispatch}
	svc := newTestService(repo, dispatcher, decimal.Zero)

	cases := []struct {
		name string
		err  error
		code int
	}{
		{"forbidden cancel", svc.CancelRide(context.Background(), rideID, uuid.New()), http.StatusForbidden},
		{"terminal cancel", svc.CancelRide(context.Background(), rideID, owner), http.StatusConflict},
		{"terminal accept", svc.AcceptOffer(context.Background(), rideID, uuid.New()), http.StatusConflict},
		{"unknown ride", svc.AcceptOffer(context.Background(), uuid.New(), uuid.New()), http.StatusNotFound},
	}
	for _, tc := range cases {
		var appErr *common.AppError
		require.ErrorAs(t, tc.err, &appErr, tc.name)
		assert.Equal(t, tc.code, appErr.Code, tc.name)
	}
}

func TestQuote_AddsTownshipCharge(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, &fakeDispatcher{}, decimal.NewFromInt(800))

	quote, err := svc.Quote(context.Background(), QuoteRequest{
		DistanceKm:      10,
		DurationMinutes: 20,
		VehicleClass:    "standard",
		PickupTownship:  "Yangon",
		DropoffTownship: "Thanlyin",
	})

	require.NoError(t, err)
	assert.True(t, quote.TownshipCharge.Equal(decimal.NewFromInt(800)))
	assert.True(t, quote.Total.Equal(decimal.NewFromInt(12300)))
	require.Len(t, repo.quotes, 1)
}

func TestQuote_FaresEveryConfiguredClass(t *testing.T) {
	svc := newTestService(newFakeRepo(), &fakeDispatcher{}, decimal.NewFromInt(800))

	quote, err := svc.Quote(context.Background(), QuoteRequest{
		DistanceKm:      10,
		DurationMinutes: 20,
		VehicleClass:    "standard",
		PickupTownship:  "Yangon",
		DropoffTownship: "Thanlyin",
	})

	require.NoError(t, err)
	require.Len(t, quote.ClassFares, 2)
	assert.True(t, quote.ClassFares["STANDARD"].Equal(quote.Total))
	assert.True(t, quote.ClassFares["PLUS"].Equal(decimal.NewFromInt(15800)))
}
