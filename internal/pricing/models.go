package pricing

import (
	"time"

	"github.com/shopspring/decimal"
)

// BandPolicy selects how a distance-band override applies.
type BandPolicy string

const (
	// BandPolicySegment re-rates only the portion of distance inside the band.
	BandPolicySegment BandPolicy = "segment"
	// BandPolicyWhole lets the first band containing the trip distance re-rate
	// the entire distance.
	BandPolicyWhole BandPolicy = "whole"
)

// Config is the pricing configuration for one vehicle class.
// Vehicle classes are stored as uppercase codes.
type Config struct {
	VehicleClass    string             `json:"vehicle_class" db:"vehicle_class"`
	BaseFare        decimal.Decimal    `json:"base_fare" db:"base_fare"`
	PerKmRate       decimal.Decimal    `json:"per_km_rate" db:"per_km_rate"`
	TimeRate        decimal.Decimal    `json:"time_rate" db:"time_rate"` // per minute
	BookingFee      decimal.Decimal    `json:"booking_fee" db:"booking_fee"`
	SurgeMultiplier decimal.Decimal    `json:"surge_multiplier" db:"surge_multiplier"`
	Currency        string             `json:"currency" db:"currency"`
	BandPolicy      BandPolicy         `json:"band_policy" db:"band_policy"`
	TimeWindows     []TimeWindowRule   `json:"time_windows" db:"time_windows"`
	DistanceBands   []DistanceBandRule `json:"distance_bands" db:"distance_bands"`
	SpecialDays     []SpecialDayRule   `json:"special_days" db:"special_days"`
	UpdatedAt       time.Time          `json:"updated_at" db:"updated_at"`
}

// TimeWindowRule applies a multiplier during a daily time window.
// StartTime/EndTime are "HH:MM"; the end is exclusive, and "23:59" or "24:00"
// both close the window at midnight. A window with StartTime after EndTime
// wraps past midnight. An empty DaysOfWeek matches every day (0=Sunday,
// 6=Saturday).
type TimeWindowRule struct {
	Name       string          `json:"name"`
	DaysOfWeek []int           `json:"days_of_week,omitempty"`
	StartTime  string          `json:"start_time"`
	EndTime    string          `json:"end_time"`
	Multiplier decimal.Decimal `json:"multiplier"`
}

// SpecialDayRule applies a multiplier on a specific date. Date is either
// "2006-01-02" for a one-off day or "01-02" for a yearly recurring day.
type SpecialDayRule struct {
	Name       string          `json:"name"`
	Date       string          `json:"date"`
	Multiplier decimal.Decimal `json:"multiplier"`
}

// DistanceBandRule overrides the per-km rate for distance within
// [FromKm, ToKm). A zero ToKm leaves the band unbounded above.
type DistanceBandRule struct {
	FromKm    decimal.Decimal `json:"from_km"`
	ToKm      decimal.Decimal `json:"to_km"`
	PerKmRate decimal.Decimal `json:"per_km_rate"`
}

// FareBreakdown is the result of a fare computation.
type FareBreakdown struct {
	VehicleClass    string          `json:"vehicle_class"`
	Currency        string          `json:"currency"`
	BaseFare        decimal.Decimal `json:"base_fare"`
	DistanceCharge  decimal.Decimal `json:"distance_charge"`
	TimeCharge      decimal.Decimal `json:"time_charge"`
	BookingFee      decimal.Decimal `json:"booking_fee"`
	Multiplier      decimal.Decimal `json:"multiplier"`
	AppliedRule     string          `json:"applied_rule,omitempty"`
	SurgeMultiplier decimal.Decimal `json:"surge_multiplier"`
	TotalFare       decimal.Decimal `json:"total_fare"`
}

// TownshipRule is a fixed surcharge for rides entering or leaving a township.
// Names are matched case-insensitively after trimming.
type TownshipRule struct {
	Township  string          `json:"township" db:"township"`
	Surcharge decimal.Decimal `json:"surcharge" db:"surcharge"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// DefaultVehicleClass is the fallback class when a requested class has no
// configuration of its own.
const DefaultVehicleClass = "STANDARD"

// DefaultConfig returns the built-in pricing used when neither the requested
// class nor STANDARD is configured.
func DefaultConfig(vehicleClass string) Config {
	return Config{
		VehicleClass:    vehicleClass,
		BaseFare:        decimal.NewFromInt(1500),
		PerKmRate:       decimal.NewFromInt(1000),
		TimeRate:        decimal.Zero,
		BookingFee:      decimal.Zero,
		SurgeMultiplier: decimal.NewFromInt(1),
		Currency:        "MMK",
		BandPolicy:      BandPolicySegment,
	}
}

// currencyExponents maps currency codes to the number of decimal places of
// their smallest unit. Unlisted currencies use two.
var currencyExponents = map[string]int32{
	"MMK": 0,
	"USD": 2,
	"THB": 2,
	"SGD": 2,
}

func currencyExponent(currency string) int32 {
	if exp, ok := currencyExponents[currency]; ok {
		return exp
	}
	return 2
}
