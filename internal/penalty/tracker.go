package penalty

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/myanride/dispatch/pkg/logger"
)

// Tracker records driver non-responsiveness and exposes a temporary exclusion
// window. Offers resolving concurrently across ride requests may target the
// same driver, so each driver's record is updated under its own lock.
type Tracker struct {
	threshold int
	duration  time.Duration

	mu      sync.Mutex
	records map[uuid.UUID]*record

	now func() time.Time
}

type record struct {
	mu           sync.Mutex
	nonResponses int
	penaltyUntil time.Time
}

// NewTracker creates a tracker that penalizes a driver for duration after
// threshold consecutive non-responses.
func NewTracker(threshold int, duration time.Duration) *Tracker {
	if threshold < 1 {
		threshold = 1
	}
	return &Tracker{
		threshold: threshold,
		duration:  duration,
		records:   make(map[uuid.UUID]*record),
		now:       time.Now,
	}
}

func (t *Tracker) recordFor(driverID uuid.UUID) *record {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.records[driverID]
	if !ok {
		r = &record{}
		t.records[driverID] = r
	}
	return r
}

// RecordNonResponse increments the driver's non-response counter and, once the
// threshold is reached, sets the penalty window. penaltyUntil only ever moves
// forward: a later penalty is never shortened by an earlier computation.
func (t *Tracker) RecordNonResponse(driverID uuid.UUID) {
	r := t.recordFor(driverID)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.nonResponses++
	if r.nonResponses < t.threshold {
		return
	}

	until := t.now().Add(t.duration)
	if until.After(r.penaltyUntil) {
		r.penaltyUntil = until
	}
	r.nonResponses = 0

	logger.Warn("driver penalized for non-responsiveness",
		zap.String("driver_id", driverID.String()),
		zap.Time("penalty_until", r.penaltyUntil),
	)
}

// IsPenalized reports whether the driver is excluded from matching at now.
func (t *Tracker) IsPenalized(driverID uuid.UUID, now time.Time) bool {
	t.mu.Lock()
	r, ok := t.records[driverID]
	t.mu.Unlock()
	if !ok {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.penaltyUntil.After(now)
}

// PenaltyUntil returns the driver's penalty expiry, if any.
func (t *Tracker) PenaltyUntil(driverID uuid.UUID) (time.Time, bool) {
	t.mu.Lock()
	r, ok := t.records[driverID]
	t.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.penaltyUntil.IsZero() {
		return time.Time{}, false
	}
	return r.penaltyUntil, true
}
