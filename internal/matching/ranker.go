package matching

import "sort"

// RankCandidates orders drivers by the offer-priority rules: VIP drivers
// first, then within the VIP tier drivers of the premium vehicle class, then
// higher rating, then older accounts, then more completed rides. The sort is
// stable so drivers equal on every key keep their radius-query order.
func RankCandidates(drivers []DriverSnapshot) {
	sort.SliceStable(drivers, func(i, j int) bool {
		a, b := &drivers[i], &drivers[j]

		if a.VIP != b.VIP {
			return a.VIP
		}
		if a.VIP && b.VIP {
			aPlus := a.VehicleClass == PlusVehicleClass
			bPlus := b.VehicleClass == PlusVehicleClass
			if aPlus != bPlus {
				return aPlus
			}
		}
		if a.Rating != b.Rating {
			return a.Rating > b.Rating
		}
		if !a.AccountCreated.Equal(b.AccountCreated) {
			return a.AccountCreated.Before(b.AccountCreated)
		}
		if a.TotalRides != b.TotalRides {
			return a.TotalRides > b.TotalRides
		}
		return false
	})
}
