package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/myanride/dispatch/internal/configcache"
	"github.com/myanride/dispatch/internal/matching"
	"github.com/myanride/dispatch/pkg/config"
	"github.com/myanride/dispatch/pkg/logger"
	"github.com/myanride/dispatch/pkg/models"
)

// CandidateFinder answers ranked radius queries for one search round
type CandidateFinder interface {
	FindNearbyDrivers(ctx context.Context, pickup models.Location, radiusMeters float64, limit int, filters matching.Filters) ([]matching.DriverSnapshot, error)
}

// PenaltyRecorder records offers that expired without a response
type PenaltyRecorder interface {
	RecordNonResponse(driverID uuid.UUID)
}

// RoundsProvider supplies the escalation schedule
type RoundsProvider interface {
	GetDispatchRounds() []configcache.DispatchRound
}

// Notifier delivers dispatch events to drivers and riders. Deliveries are
// fire-and-forget; a failed delivery never blocks a transition.
type Notifier interface {
	NotifyOffer(ctx context.Context, offer Offer)
	NotifyOfferRevoked(ctx context.Context, rideID, driverID uuid.UUID, reason string)
	NotifyTerminal(ctx context.Context, outcome Outcome)
}

// RideStore persists ride state transitions
type RideStore interface {
	UpdateRideState(ctx context.Context, rideID uuid.UUID, from, to RideState) error
	AssignDriver(ctx context.Context, rideID, driverID uuid.UUID) error
}

type eventKind int

const (
	eventAccept eventKind = iota
	eventDecline
	eventCancel
)

type event struct {
	kind     eventKind
	driverID uuid.UUID
	resp     chan error
}

// sessionHandle is the caller-facing side of one session. done is closed
// when the session goroutine exits, so a caller racing session teardown
// never blocks on a channel nobody reads.
type sessionHandle struct {
	ch   chan event
	done chan struct{}
}

// Coordinator runs one dispatch session per ride. All transitions of a ride
// go through its session goroutine, so concurrent accepts, declines and
// cancellations resolve in a single place exactly once.
type Coordinator struct {
	finder    CandidateFinder
	penalties PenaltyRecorder
	rounds    RoundsProvider
	notifier  Notifier
	store     RideStore
	cfg       config.DispatchConfig
	metrics   *Metrics

	mu       sync.Mutex
	sessions map[uuid.UUID]*sessionHandle

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewCoordinator(finder CandidateFinder, penalties PenaltyRecorder, rounds RoundsProvider, notifier Notifier, store RideStore, cfg config.DispatchConfig) *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		finder:    finder,
		penalties: penalties,
		rounds:    rounds,
		notifier:  notifier,
		store:     store,
		cfg:       cfg,
		metrics:   NewMetrics(),
		sessions:  make(map[uuid.UUID]*sessionHandle),
		baseCtx:   ctx,
		cancel:    cancel,
	}
}

// Start begins dispatching a ride. The ride must be in CREATED state. The
// search itself runs in a background session goroutine.
func (c *Coordinator) Start(ctx context.Context, ride RideRequest) error {
	if ride.State != StateCreated {
		return fmt.Errorf("ride %s is not dispatchable in state %s", ride.ID, ride.State)
	}

	c.mu.Lock()
	if _, running := c.sessions[ride.ID]; running {
		c.mu.Unlock()
		return fmt.Errorf("dispatch already running for ride %s", ride.ID)
	}
	handle := &sessionHandle{ch: make(chan event), done: make(chan struct{})}
	c.sessions[ride.ID] = handle
	c.mu.Unlock()

	if err := c.store.UpdateRideState(ctx, ride.ID, StateCreated, StateSearching); err != nil {
		c.dropSession(ride.ID)
		close(handle.done)
		return fmt.Errorf("failed to start dispatch: %w", err)
	}
	ride.State = StateSearching

	c.wg.Add(1)
	go c.run(ride, handle)
	return nil
}

// Accept resolves an outstanding offer in the driver's favor
func (c *Coordinator) Accept(ctx context.Context, rideID, driverID uuid.UUID) error {
	return c.send(ctx, rideID, event{kind: eventAccept, driverID: driverID, resp: make(chan error, 1)})
}

// Decline rejects an outstanding offer. Declining carries no penalty.
func (c *Coordinator) Decline(ctx context.Context, rideID, driverID uuid.UUID) error {
	return c.send(ctx, rideID, event{kind: eventDecline, driverID: driverID, resp: make(chan error, 1)})
}

// Cancel ends the search on behalf of the rider
func (c *Coordinator) Cancel(ctx context.Context, rideID uuid.UUID) error {
	return c.send(ctx, rideID, event{kind: eventCancel, resp: make(chan error, 1)})
}

// Shutdown stops accepting new work and waits for running sessions
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.cancel()
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Coordinator) send(ctx context.Context, rideID uuid.UUID, ev event) error {
	c.mu.Lock()
	handle, ok := c.sessions[rideID]
	c.mu.Unlock()
	if !ok {
		return ErrNoActiveDispatch
	}

	select {
	case handle.ch <- ev:
	case <-handle.done:
		return ErrNoActiveDispatch
	case <-ctx.Done():
		return ctx.Err()
	case <-c.baseCtx.Done():
		return ErrNoActiveDispatch
	}

	select {
	case err := <-ev.resp:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Coordinator) dropSession(rideID uuid.UUID) {
	c.mu.Lock()
	delete(c.sessions, rideID)
	c.mu.Unlock()
}

// session bookkeeping for one ride
type session struct {
	ride         RideRequest
	ch           chan event
	declined     map[uuid.UUID]struct{}
	unresponsive []uuid.UUID
	offersMade   int
	roundsUsed   int
}

func (c *Coordinator) run(ride RideRequest, handle *sessionHandle) {
	defer c.wg.Done()
	defer close(handle.done)
	defer c.dropSession(ride.ID)

	log := logger.Get().With(zap.String("ride_id", ride.ID.String()))
	s := &session{
		ride:     ride,
		ch:       handle.ch,
		declined: make(map[uuid.UUID]struct{}),
	}

	rounds := c.rounds.GetDispatchRounds()
	for i, round := range rounds {
		if i > 0 {
			c.metrics.EscalationsTotal.Inc()
		}
		s.roundsUsed = i + 1
		log.Info("Starting dispatch round",
			zap.Int("round", round.RoundIndex),
			zap.Float64("radius_meters", round.RadiusMeters))

		if c.drainPending(s) {
			return
		}

		candidates, err := c.fetchCandidates(s, round.RadiusMeters)
		if err != nil {
			log.Error("Candidate query failed after retry, escalating", zap.Error(err))
			continue
		}

		for _, candidate := range candidates {
			if _, seen := s.declined[candidate.DriverID]; seen {
				continue
			}
			if c.drainPending(s) {
				return
			}
			done := c.offerAndWait(s, candidate, round, log)
			if done {
				return
			}
		}
	}

	c.finishUnmatched(s, log)
}

// fetchCandidates runs the radius query, retrying once on store failure
func (c *Coordinator) fetchCandidates(s *session, radiusMeters float64) ([]matching.DriverSnapshot, error) {
	filters := s.ride.Filters
	exclude := make([]uuid.UUID, 0, len(filters.Exclude)+len(s.declined)+len(s.unresponsive))
	exclude = append(exclude, filters.Exclude...)
	for id := range s.declined {
		exclude = append(exclude, id)
	}
	exclude = append(exclude, s.unresponsive...)
	filters.Exclude = exclude

	candidates, err := c.finder.FindNearbyDrivers(c.baseCtx, s.ride.Pickup, radiusMeters, c.cfg.DefaultLimit, filters)
	if err == nil {
		return candidates, nil
	}

	select {
	case <-time.After(c.cfg.StoreRetryDelay):
	case <-c.baseCtx.Done():
		return nil, c.baseCtx.Err()
	}
	return c.finder.FindNearbyDrivers(c.baseCtx, s.ride.Pickup, radiusMeters, c.cfg.DefaultLimit, filters)
}

// drainPending handles events that arrive while no offer is outstanding.
// Returns true when the session reached a terminal state.
func (c *Coordinator) drainPending(s *session) bool {
	for {
		select {
		case ev := <-s.ch:
			switch ev.kind {
			case eventCancel:
				c.finishCancelled(s, nil)
				ev.resp <- nil
				return true
			default:
				ev.resp <- ErrStaleResponse
			}
		case <-c.baseCtx.Done():
			return true
		default:
			return false
		}
	}
}

// offerAndWait makes one offer and blocks until it resolves. Returns true
// when the session reached a terminal state.
func (c *Coordinator) offerAndWait(s *session, candidate matching.DriverSnapshot, round configcache.DispatchRound, log *zap.Logger) bool {
	if err := c.store.UpdateRideState(c.baseCtx, s.ride.ID, s.ride.State, StateOffered); err != nil {
		log.Error("Failed to persist OFFERED state", zap.Error(err))
	}
	s.ride.State = StateOffered
	s.offersMade++
	c.metrics.OffersTotal.Inc()

	offer := Offer{
		RideID:    s.ride.ID,
		Driver:    candidate,
		Round:     round.RoundIndex,
		ExpiresAt: time.Now().Add(round.Interval),
	}
	c.notifier.NotifyOffer(c.baseCtx, offer)
	log.Info("Offer sent",
		zap.String("driver_id", candidate.DriverID.String()),
		zap.Int("round", round.RoundIndex))

	timer := time.NewTimer(round.Interval)
	defer timer.Stop()

	for {
		select {
		case ev := <-s.ch:
			switch ev.kind {
			case eventAccept:
				if ev.driverID != candidate.DriverID {
					ev.resp <- ErrStaleResponse
					continue
				}
				c.finishAssigned(s, candidate.DriverID, log)
				ev.resp <- nil
				return true

			case eventDecline:
				if ev.driverID != candidate.DriverID {
					ev.resp <- ErrStaleResponse
					continue
				}
				s.declined[candidate.DriverID] = struct{}{}
				c.backToSearching(s, log)
				ev.resp <- nil
				log.Info("Offer declined", zap.String("driver_id", candidate.DriverID.String()))
				return false

			case eventCancel:
				c.finishCancelled(s, &candidate.DriverID)
				ev.resp <- nil
				return true
			}

		case <-timer.C:
			c.penalties.RecordNonResponse(candidate.DriverID)
			c.metrics.PenaltiesTotal.Inc()
			s.unresponsive = append(s.unresponsive, candidate.DriverID)
			c.notifier.NotifyOfferRevoked(c.baseCtx, s.ride.ID, candidate.DriverID, "expired")
			c.backToSearching(s, log)
			log.Info("Offer expired", zap.String("driver_id", candidate.DriverID.String()))
			return false

		case <-c.baseCtx.Done():
			return true
		}
	}
}

func (c *Coordinator) backToSearching(s *session, log *zap.Logger) {
	if err := c.store.UpdateRideState(c.baseCtx, s.ride.ID, StateOffered, StateSearching); err != nil {
		log.Error("Failed to persist SEARCHING state", zap.Error(err))
	}
	s.ride.State = StateSearching
}

func (c *Coordinator) finishAssigned(s *session, driverID uuid.UUID, log *zap.Logger) {
	if err := c.store.AssignDriver(context.Background(), s.ride.ID, driverID); err != nil {
		log.Error("Failed to persist assignment", zap.Error(err))
	}
	s.ride.State = StateAssigned
	s.ride.AssignedDriver = &driverID
	c.metrics.AssignmentsTotal.Inc()

	// drivers that were offered this ride earlier and never answered
	for _, id := range s.unresponsive {
		c.notifier.NotifyOfferRevoked(context.Background(), s.ride.ID, id, "ride_assigned")
	}
	c.notifyTerminal(s)
	log.Info("Ride assigned", zap.String("driver_id", driverID.String()))
}

func (c *Coordinator) finishCancelled(s *session, outstanding *uuid.UUID) {
	if err := c.store.UpdateRideState(context.Background(), s.ride.ID, s.ride.State, StateCancelled); err != nil {
		logger.Get().Error("Failed to persist CANCELLED state",
			zap.String("ride_id", s.ride.ID.String()), zap.Error(err))
	}
	s.ride.State = StateCancelled
	c.metrics.CancellationsTotal.Inc()

	if outstanding != nil {
		c.notifier.NotifyOfferRevoked(context.Background(), s.ride.ID, *outstanding, "ride_cancelled")
	}
	for _, id := range s.unresponsive {
		c.notifier.NotifyOfferRevoked(context.Background(), s.ride.ID, id, "ride_cancelled")
	}
	c.notifyTerminal(s)
}

func (c *Coordinator) finishUnmatched(s *session, log *zap.Logger) {
	if err := c.store.UpdateRideState(context.Background(), s.ride.ID, s.ride.State, StateUnmatched); err != nil {
		log.Error("Failed to persist UNMATCHED state", zap.Error(err))
	}
	s.ride.State = StateUnmatched
	c.metrics.UnmatchedTotal.Inc()

	for _, id := range s.unresponsive {
		c.notifier.NotifyOfferRevoked(context.Background(), s.ride.ID, id, "search_ended")
	}
	c.notifyTerminal(s)
	log.Info("Ride unmatched",
		zap.Int("rounds_used", s.roundsUsed),
		zap.Int("offers_made", s.offersMade))
}

func (c *Coordinator) notifyTerminal(s *session) {
	c.notifier.NotifyTerminal(context.Background(), Outcome{
		RideID:         s.ride.ID,
		State:          s.ride.State,
		AssignedDriver: s.ride.AssignedDriver,
		RoundsUsed:     s.roundsUsed,
		OffersMade:     s.offersMade,
	})
}
