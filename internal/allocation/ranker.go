package allocation

import (
	"sort"

	"github.com/labtrace/lims/pkg/types"
)

// Rank orders eligible technicians by the allocation policy: least loaded
// first, then highest performance score. Load-balancing deliberately wins over
// raw performance so no technician is starved while a high scorer is
// overloaded. Remaining ties break on technician ID ascending, which makes the
// result deterministic regardless of input ordering.
func Rank(eligible []*types.Technician) []*types.Technician {
	ranked := make([]*types.Technician, len(eligible))
	copy(ranked, eligible)

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].CurrentLoad != ranked[j].CurrentLoad {
			return ranked[i].CurrentLoad < ranked[j].CurrentLoad
		}
		if ranked[i].PerformanceScore != ranked[j].PerformanceScore {
			return ranked[i].PerformanceScore > ranked[j].PerformanceScore
		}
		return ranked[i].ID < ranked[j].ID
	})

	return ranked
}

// SelectBest returns the top-ranked technician, or nil when none is available.
// A nil result is a valid outcome, not an error; callers queue or escalate.
func SelectBest(eligible []*types.Technician) *types.Technician {
	if len(eligible) == 0 {
		return nil
	}
	return Rank(eligible)[0]
}
