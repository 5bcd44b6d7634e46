package pricing

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ConfigProvider resolves the effective pricing configuration for a vehicle
// class. Implementations must always return a usable config (fallback chain:
// requested class, STANDARD, built-in defaults) and never fail.
type ConfigProvider interface {
	GetConfig(vehicleClass string) Config
	VehicleClasses() []string
}

// Engine computes fare breakdowns from trip distance, duration and time of
// day using the cached pricing configuration.
type Engine struct {
	configs ConfigProvider
}

// NewEngine creates a pricing engine
func NewEngine(configs ConfigProvider) *Engine {
	return &Engine{configs: configs}
}

// VehicleClasses lists the classes with configured pricing, so callers can
// quote every class in one pass.
func (e *Engine) VehicleClasses() []string {
	return e.configs.VehicleClasses()
}

// CalculateFare computes the fare for one vehicle class at the given time.
// Missing configuration never fails the computation; the provider resolves it
// through the fallback chain.
func (e *Engine) CalculateFare(distanceKm, durationMinutes float64, vehicleClass string, at time.Time) FareBreakdown {
	cfg := e.configs.GetConfig(vehicleClass)

	distance := decimal.NewFromFloat(distanceKm)
	duration := decimal.NewFromFloat(durationMinutes)

	distanceCharge := distanceContribution(cfg, distance)
	timeCharge := cfg.TimeRate.Mul(duration)
	linear := cfg.BaseFare.Add(distanceCharge).Add(timeCharge)

	multiplier, rule := selectMultiplier(cfg, at)

	surge := cfg.SurgeMultiplier
	if surge.IsZero() {
		surge = decimal.NewFromInt(1)
	}

	total := linear.Mul(multiplier).Mul(surge).Add(cfg.BookingFee)
	total = total.Round(currencyExponent(cfg.Currency))

	return FareBreakdown{
		VehicleClass:    strings.ToUpper(strings.TrimSpace(vehicleClass)),
		Currency:        cfg.Currency,
		BaseFare:        cfg.BaseFare,
		DistanceCharge:  distanceCharge,
		TimeCharge:      timeCharge,
		BookingFee:      cfg.BookingFee,
		Multiplier:      multiplier,
		AppliedRule:     rule,
		SurgeMultiplier: surge,
		TotalFare:       total,
	}
}

// distanceContribution computes the per-km part of the fare, honouring the
// configured distance-band overrides and band policy.
func distanceContribution(cfg Config, distance decimal.Decimal) decimal.Decimal {
	if distance.Sign() <= 0 {
		return decimal.Zero
	}

	if len(cfg.DistanceBands) == 0 {
		return cfg.PerKmRate.Mul(distance)
	}

	if cfg.BandPolicy == BandPolicyWhole {
		for _, band := range cfg.DistanceBands {
			if bandContains(band, distance) {
				return band.PerKmRate.Mul(distance)
			}
		}
		return cfg.PerKmRate.Mul(distance)
	}

	// Segment policy: each band re-rates only the stretch of distance inside
	// its range. Bands are evaluated in configured order; a stretch already
	// claimed by an earlier band is not re-rated by a later one. Distance not
	// covered by any band is charged at the base per-km rate.
	total := decimal.Zero
	covered := decimal.Zero
	var claimed []kmRange

	for _, band := range cfg.DistanceBands {
		lo, hi := bandBounds(band, distance)
		if hi.LessThanOrEqual(lo) {
			continue
		}
		for _, seg := range subtractClaimed(kmRange{lo, hi}, claimed) {
			length := seg.hi.Sub(seg.lo)
			total = total.Add(band.PerKmRate.Mul(length))
			covered = covered.Add(length)
			claimed = append(claimed, seg)
		}
	}

	if covered.GreaterThan(distance) {
		covered = distance
	}
	remainder := distance.Sub(covered)
	if remainder.Sign() > 0 {
		total = total.Add(cfg.PerKmRate.Mul(remainder))
	}
	return total
}

func bandContains(band DistanceBandRule, distance decimal.Decimal) bool {
	if distance.LessThan(band.FromKm) {
		return false
	}
	return band.ToKm.IsZero() || distance.LessThan(band.ToKm)
}

// bandBounds clips the band range to [0, distance].
func bandBounds(band DistanceBandRule, distance decimal.Decimal) (lo, hi decimal.Decimal) {
	lo = band.FromKm
	hi = band.ToKm
	if hi.IsZero() || hi.GreaterThan(distance) {
		hi = distance
	}
	if lo.Sign() < 0 {
		lo = decimal.Zero
	}
	return lo, hi
}

// kmRange is a half-open [lo, hi) stretch of the trip distance.
type kmRange struct {
	lo, hi decimal.Decimal
}

// subtractClaimed removes every claimed stretch from r. Earlier bands win
// overlaps, so a claimed stretch strictly inside r splits it in two and a
// range fully inside a claimed stretch collapses to nothing.
func subtractClaimed(r kmRange, claimed []kmRange) []kmRange {
	segments := []kmRange{r}
	for _, c := range claimed {
		next := segments[:0:0]
		for _, seg := range segments {
			if c.hi.LessThanOrEqual(seg.lo) || c.lo.GreaterThanOrEqual(seg.hi) {
				next = append(next, seg)
				continue
			}
			if c.lo.GreaterThan(seg.lo) {
				next = append(next, kmRange{seg.lo, c.lo})
			}
			if c.hi.LessThan(seg.hi) {
				next = append(next, kmRange{c.hi, seg.hi})
			}
		}
		segments = next
	}
	return segments
}

// selectMultiplier chooses exactly one time/day multiplier: special-day rules
// are evaluated before time windows, each list in configured order, first
// match wins. No match means multiplier 1.0.
func selectMultiplier(cfg Config, at time.Time) (decimal.Decimal, string) {
	for _, rule := range cfg.SpecialDays {
		if specialDayMatches(rule, at) {
			return rule.Multiplier, rule.Name
		}
	}
	for _, rule := range cfg.TimeWindows {
		if timeWindowMatches(rule, at) {
			return rule.Multiplier, rule.Name
		}
	}
	return decimal.NewFromInt(1), ""
}

func specialDayMatches(rule SpecialDayRule, at time.Time) bool {
	switch len(rule.Date) {
	case 5: // "01-02": yearly recurring
		return at.Format("01-02") == rule.Date
	case 10: // "2006-01-02": one-off
		return at.Format("2006-01-02") == rule.Date
	default:
		return false
	}
}

func timeWindowMatches(rule TimeWindowRule, at time.Time) bool {
	if len(rule.DaysOfWeek) > 0 {
		day := int(at.Weekday())
		found := false
		for _, d := range rule.DaysOfWeek {
			if d == day {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	start, okStart := parseMinutes(rule.StartTime)
	end, okEnd := parseMinutes(rule.EndTime)
	if !okStart || !okEnd {
		return false
	}
	// "23:59" and "24:00" both mean end of day, so the last minute is covered.
	if end == endOfDayMinutes-1 || end == endOfDayMinutes {
		end = endOfDayMinutes
	}

	minute := at.Hour()*60 + at.Minute()
	if start <= end {
		return minute >= start && minute < end
	}
	// Window wraps past midnight.
	return minute >= start || minute < end
}

const endOfDayMinutes = 24 * 60

// parseMinutes parses "HH:MM" into minutes since midnight. "24:00" is
// accepted as an exclusive end-of-day bound.
func parseMinutes(s string) (int, bool) {
	if s == "24:00" {
		return endOfDayMinutes, true
	}
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, false
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, false
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, false
	}
	return hour*60 + minute, true
}
