package matching

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func day(offset int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, offset)
}

func snapshot(name string, vip bool, class string, rating float64, created time.Time, totalRides int) DriverSnapshot {
	return DriverSnapshot{
		DriverID:       uuid.New(),
		Name:           name,
		Status:         StatusOnline,
		Approval:       ApprovalApproved,
		VIP:            vip,
		VehicleClass:   class,
		Rating:         rating,
		AccountCreated: created,
		TotalRides:     totalRides,
	}
}

func names(drivers []DriverSnapshot) []string {
	out := make([]string, len(drivers))
	for i, d := range drivers {
		out[i] = d.Name
	}
	return out
}

func TestRankCandidates_VIPFirst(t *testing.T) {
	drivers := []DriverSnapshot{
		snapshot("regular-high-rating", false, "STANDARD", 5.0, day(0), 900),
		snapshot("vip-low-rating", true, "STANDARD", 3.1, day(10), 5),
	}

	RankCandidates(drivers)

	assert.Equal(t, []string{"vip-low-rating", "regular-high-rating"}, names(drivers))
}

func TestRankCandidates_PlusClassOnlyWithinVIPTier(t *testing.T) {
	drivers := []DriverSnapshot{
		snapshot("vip-standard", true, "STANDARD", 4.9, day(0), 100),
		snapshot("vip-plus", true, PlusVehicleClass, 4.0, day(5), 10),
		snapshot("regular-plus", false, PlusVehicleClass, 4.9, day(0), 100),
		snapshot("regular-standard", false, "STANDARD", 5.0, day(0), 100),
	}

	RankCandidates(drivers)

	// A premium vehicle class only boosts VIP drivers. Among non-VIPs the
	// plus driver loses to the higher-rated standard one.
	assert.Equal(t, []string{"vip-plus", "vip-standard", "regular-standard", "regular-plus"}, names(drivers))
}

func TestRankCandidates_RatingThenSeniorityThenRides(t *testing.T) {
	drivers := []DriverSnapshot{
		snapshot("younger-account", false, "STANDARD", 4.5, day(30), 500),
		snapshot("fewer-rides", false, "STANDARD", 4.5, day(0), 200),
		snapshot("more-rides", false, "STANDARD", 4.5, day(0), 300),
		snapshot("higher-rating", false, "STANDARD", 4.8, day(60), 1),
	}

	RankCandidates(drivers)

	assert.Equal(t, []string{"higher-rating", "more-rides", "fewer-rides", "younger-account"}, names(drivers))
}

func TestRankCandidates_StableOnFullTie(t *testing.T) {
	drivers := []DriverSnapshot{
		snapshot("nearest", false, "STANDARD", 4.5, day(0), 100),
		snapshot("middle", false, "STANDARD", 4.5, day(0), 100),
		snapshot("farthest", false, "STANDARD", 4.5, day(0), 100),
	}

	RankCandidates(drivers)

	// Drivers equal on every key keep their input (nearest first) order.
	assert.Equal(t, []string{"nearest", "middle", "farthest"}, names(drivers))
}
