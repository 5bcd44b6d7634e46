package matching

import (
	"time"

	"github.com/google/uuid"
)

// Predicate accepts or rejects one driver snapshot. A candidate set is the
// drivers passing every predicate in the chain.
type Predicate func(d *DriverSnapshot) bool

func onlinePredicate() Predicate {
	return func(d *DriverSnapshot) bool { return d.Status == StatusOnline }
}

func approvedPredicate() Predicate {
	return func(d *DriverSnapshot) bool { return d.Approval == ApprovalApproved }
}

func notPenalizedPredicate(checker PenaltyChecker, now time.Time) Predicate {
	return func(d *DriverSnapshot) bool {
		if checker != nil && checker.IsPenalized(d.DriverID, now) {
			return false
		}
		if d.PenaltyUntil != nil && now.Before(*d.PenaltyUntil) {
			return false
		}
		return true
	}
}

func vehicleClassPredicate(class string) Predicate {
	return func(d *DriverSnapshot) bool { return d.VehicleClass == class }
}

func fuelTypePredicate(fuel string) Predicate {
	return func(d *DriverSnapshot) bool { return d.FuelType == fuel }
}

func petFriendlyPredicate(want bool) Predicate {
	return func(d *DriverSnapshot) bool { return d.PetFriendly == want }
}

func minCapacityPredicate(seats int) Predicate {
	return func(d *DriverSnapshot) bool { return d.Capacity >= seats }
}

func excludedPredicate(ids []uuid.UUID) Predicate {
	excluded := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		excluded[id] = struct{}{}
	}
	return func(d *DriverSnapshot) bool {
		_, found := excluded[d.DriverID]
		return !found
	}
}

// buildPredicates composes the base eligibility chain with the rider's
// optional filters.
func buildPredicates(filters Filters, checker PenaltyChecker, now time.Time) []Predicate {
	preds := []Predicate{
		onlinePredicate(),
		approvedPredicate(),
		notPenalizedPredicate(checker, now),
	}
	if filters.VehicleClass != nil {
		preds = append(preds, vehicleClassPredicate(*filters.VehicleClass))
	}
	if filters.FuelType != nil {
		preds = append(preds, fuelTypePredicate(*filters.FuelType))
	}
	if filters.PetFriendly != nil {
		preds = append(preds, petFriendlyPredicate(*filters.PetFriendly))
	}
	if filters.MinCapacity != nil {
		preds = append(preds, minCapacityPredicate(*filters.MinCapacity))
	}
	if len(filters.Exclude) > 0 {
		preds = append(preds, excludedPredicate(filters.Exclude))
	}
	return preds
}

func matchesAll(d *DriverSnapshot, preds []Predicate) bool {
	for _, p := range preds {
		if !p(d) {
			return false
		}
	}
	return true
}
