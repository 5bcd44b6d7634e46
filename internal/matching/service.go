package matching

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/myanride/dispatch/pkg/config"
	"github.com/myanride/dispatch/pkg/logger"
	"github.com/myanride/dispatch/pkg/models"
)

// Service answers candidate queries for the dispatcher and ingests driver
// location reports.
type Service struct {
	store     GeoStore
	drivers   DriverRepository
	penalties PenaltyChecker
	cfg       config.DispatchConfig
	now       func() time.Time
}

func NewService(store GeoStore, drivers DriverRepository, penalties PenaltyChecker, cfg config.DispatchConfig) *Service {
	return &Service{
		store:     store,
		drivers:   drivers,
		penalties: penalties,
		cfg:       cfg,
		now:       time.Now,
	}
}

// FindNearbyDrivers returns up to limit eligible drivers around pickup,
// ordered by offer priority. radiusMeters and limit fall back to configured
// defaults when non-positive. The returned snapshots are per-query copies.
func (s *Service) FindNearbyDrivers(ctx context.Context, pickup models.Location, radiusMeters float64, limit int, filters Filters) ([]DriverSnapshot, error) {
	if radiusMeters <= 0 {
		radiusMeters = float64(s.cfg.DefaultRadiusMeters)
	}
	if limit <= 0 {
		limit = s.cfg.DefaultLimit
	}

	geoResults, err := s.store.QueryWithinRadius(ctx, pickup, radiusMeters)
	if err != nil {
		return nil, fmt.Errorf("failed to query nearby drivers: %w", err)
	}
	if len(geoResults) == 0 {
		return nil, nil
	}

	ids := make([]uuid.UUID, len(geoResults))
	byID := make(map[uuid.UUID]*GeoResult, len(geoResults))
	for i := range geoResults {
		ids[i] = geoResults[i].DriverID
		byID[geoResults[i].DriverID] = &geoResults[i]
	}

	rows, err := s.drivers.GetSnapshots(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load driver snapshots: %w", err)
	}

	// Reassemble in radius-query order (nearest first) so ties after ranking
	// keep that order.
	rowByID := make(map[uuid.UUID]*DriverSnapshot, len(rows))
	for i := range rows {
		rowByID[rows[i].DriverID] = &rows[i]
	}

	now := s.now()
	preds := buildPredicates(filters, s.penalties, now)

	candidates := make([]DriverSnapshot, 0, len(geoResults))
	for _, id := range ids {
		row, ok := rowByID[id]
		if !ok {
			continue
		}
		snapshot := *row
		geo := byID[id]
		snapshot.Location = &models.Location{Latitude: geo.Location.Latitude, Longitude: geo.Location.Longitude}
		snapshot.Heading = geo.Heading
		snapshot.DistanceMeters = geo.DistanceMeters
		if until, ok := s.penaltyUntil(id); ok {
			u := until
			snapshot.PenaltyUntil = &u
		}
		if !matchesAll(&snapshot, preds) {
			continue
		}
		candidates = append(candidates, snapshot)
	}

	RankCandidates(candidates)
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	logger.Get().Debug("Matched nearby drivers",
		zap.Float64("radius_meters", radiusMeters),
		zap.Int("limit", limit),
		zap.Int("candidates", len(candidates)))
	return candidates, nil
}

func (s *Service) penaltyUntil(driverID uuid.UUID) (time.Time, bool) {
	if s.penalties == nil {
		return time.Time{}, false
	}
	return s.penalties.PenaltyUntil(driverID)
}

// UpdateDriverLocation records a driver location report into the live index
func (s *Service) UpdateDriverLocation(ctx context.Context, driverID uuid.UUID, loc models.Location, heading float64) error {
	return s.store.UpdateLocation(ctx, driverID, loc, heading)
}

// SetDriverOffline removes a driver from the live index
func (s *Service) SetDriverOffline(ctx context.Context, driverID uuid.UUID) error {
	return s.store.RemoveDriver(ctx, driverID)
}
