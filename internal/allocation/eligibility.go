package allocation

import "github.com/labtrace/lims/pkg/types"

// FilterEligible returns the technicians that may legally accept a new order:
// available, under capacity, and either matching the required specialization,
// holding the general fallback, or unconstrained when no specialization is
// required.
//
// The required specialization arrives as a string from the catalog boundary.
// An empty or unrecognized value drops the constraint instead of failing, so
// a missing catalog category can never block assignment.
func FilterEligible(technicians []*types.Technician, requiredSpecialization string) []*types.Technician {
	required, constrained := types.ParseSpecialization(requiredSpecialization)

	eligible := make([]*types.Technician, 0, len(technicians))
	for _, t := range technicians {
		if !CanAcceptMore(t) {
			continue
		}
		if constrained && !t.HasSpecialization(required) && !t.HasSpecialization(types.SpecGeneral) {
			continue
		}
		eligible = append(eligible, t)
	}

	return eligible
}
