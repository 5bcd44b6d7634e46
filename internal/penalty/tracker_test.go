package penalty

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordNonResponse_BelowThreshold(t *testing.T) {
	tracker := NewTracker(3, 10*time.Minute)
	driverID := uuid.New()

	tracker.RecordNonResponse(driverID)
	tracker.RecordNonResponse(driverID)

	assert.False(t, tracker.IsPenalized(driverID, time.Now()))
	_, ok := tracker.PenaltyUntil(driverID)
	assert.False(t, ok)
}

func TestRecordNonResponse_ThresholdReached(t *testing.T) {
	tracker := NewTracker(3, 10*time.Minute)
	driverID := uuid.New()

	for i := 0; i < 3; i++ {
		tracker.RecordNonResponse(driverID)
	}

	now := time.Now()
	assert.True(t, tracker.IsPenalized(driverID, now))

	until, ok := tracker.PenaltyUntil(driverID)
	require.True(t, ok)
	assert.WithinDuration(t, now.Add(10*time.Minute), until, time.Second)
}

func TestRecordNonResponse_PenaltyExpires(t *testing.T) {
	tracker := NewTracker(1, 10*time.Minute)
	driverID := uuid.New()

	tracker.RecordNonResponse(driverID)

	until, ok := tracker.PenaltyUntil(driverID)
	require.True(t, ok)

	assert.True(t, tracker.IsPenalized(driverID, until.Add(-time.Second)))
	assert.False(t, tracker.IsPenalized(driverID, until))
	assert.False(t, tracker.IsPenalized(driverID, until.Add(time.Hour)))
}

func TestRecordNonResponse_PenaltyUntilMonotonic(t *testing.T) {
	tracker := NewTracker(1, 10*time.Minute)
	driverID := uuid.New()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tracker.now = func() time.Time { return base }
	tracker.RecordNonResponse(driverID)

	first, ok := tracker.PenaltyUntil(driverID)
	require.True(t, ok)

	// A non-response computed from an earlier clock must not shorten the window.
	tracker.now = func() time.Time { return base.Add(-5 * time.Minute) }
	tracker.RecordNonResponse(driverID)

	second, ok := tracker.PenaltyUntil(driverID)
	require.True(t, ok)
	assert.False(t, second.Before(first), "penaltyUntil moved backwards")

	// A later clock extends it.
	tracker.now = func() time.Time { return base.Add(5 * time.Minute) }
	tracker.RecordNonResponse(driverID)

	third, ok := tracker.PenaltyUntil(driverID)
	require.True(t, ok)
	assert.True(t, third.After(first))
}

func TestRecordNonResponse_ConcurrentUpdatesNotLost(t *testing.T) {
	const workers = 16
	tracker := NewTracker(workers*2+1, 10*time.Minute)
	driverID := uuid.New()

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tracker.RecordNonResponse(driverID)
			tracker.RecordNonResponse(driverID)
		}()
	}
	wg.Wait()

	// Threshold is one above the total number of recorded non-responses, so a
	// lost update would keep the next call below the threshold.
	assert.False(t, tracker.IsPenalized(driverID, time.Now()))
	tracker.RecordNonResponse(driverID)
	assert.True(t, tracker.IsPenalized(driverID, time.Now()))
}

func TestIsPenalized_UnknownDriver(t *testing.T) {
	tracker := NewTracker(3, 10*time.Minute)
	assert.False(t, tracker.IsPenalized(uuid.New(), time.Now()))
}
