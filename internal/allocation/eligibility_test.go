package allocation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/labtrace/lims/pkg/types"
)

func makeTechnician(id string, specs []types.Specialization, available bool, load, cap int) *types.Technician {
	return &types.Technician{
		ID:                  id,
		Name:                "Tech " + id,
		Specializations:     specs,
		IsAvailable:         available,
		CurrentLoad:         load,
		MaxConcurrentOrders: cap,
		PerformanceScore:    50,
	}
}

func TestFilterEligible_SpecializationMatch(t *testing.T) {
	technicians := []*types.Technician{
		makeTechnician("tech-1", []types.Specialization{types.SpecHematology}, true, 0, 3),
		makeTechnician("tech-2", []types.Specialization{types.SpecMicrobiology}, true, 0, 3),
	}

	eligible := FilterEligible(technicians, "hematology")

	assert.Len(t, eligible, 1)
	assert.Equal(t, "tech-1", eligible[0].ID)
}

func TestFilterEligible_GeneralFallback(t *testing.T) {
	technicians := []*types.Technician{
		makeTechnician("tech-1", []types.Specialization{types.SpecMicrobiology}, true, 0, 3),
		makeTechnician("tech-2", []types.Specialization{types.SpecGeneral}, true, 0, 3),
	}

	eligible := FilterEligible(technicians, "hematology")

	assert.Len(t, eligible, 1)
	assert.Equal(t, "tech-2", eligible[0].ID)
}

func TestFilterEligible_AtCapacityExcluded(t *testing.T) {
	// Qualified but fully loaded: must not appear in the eligible set.
	technicians := []*types.Technician{
		makeTechnician("tech-1", []types.Specialization{types.SpecHematology}, true, 2, 2),
	}

	eligible := FilterEligible(technicians, "hematology")

	assert.Empty(t, eligible)
}

func TestFilterEligible_UnavailableExcluded(t *testing.T) {
	technicians := []*types.Technician{
		makeTechnician("tech-1", []types.Specialization{types.SpecHematology}, false, 0, 3),
	}

	eligible := FilterEligible(technicians, "hematology")

	assert.Empty(t, eligible)
}

func TestFilterEligible_EmptySetIsGeneralPurpose(t *testing.T) {
	// No listed specializations means general-purpose: the technician matches
	// any constrained request, the same as an explicit general entry.
	technicians := []*types.Technician{
		makeTechnician("tech-empty", nil, true, 0, 5),
		makeTechnician("tech-other", []types.Specialization{types.SpecMicrobiology}, true, 0, 5),
	}

	eligible := FilterEligible(technicians, "hematology")

	assert.Len(t, eligible, 1)
	assert.Equal(t, "tech-empty", eligible[0].ID)
}

func TestFilterEligible_NoConstraint(t *testing.T) {
	technicians := []*types.Technician{
		makeTechnician("tech-1", []types.Specialization{types.SpecHematology}, true, 0, 3),
		makeTechnician("tech-2", []types.Specialization{types.SpecMicrobiology}, true, 0, 3),
		makeTechnician("tech-3", nil, true, 0, 3),
	}

	eligible := FilterEligible(technicians, "")

	assert.Len(t, eligible, 3)
}

func TestFilterEligible_UnknownSpecializationFailsOpen(t *testing.T) {
	// An unrecognized category must drop the constraint, not block assignment.
	technicians := []*types.Technician{
		makeTechnician("tech-1", []types.Specialization{types.SpecHematology}, true, 0, 3),
		makeTechnician("tech-2", []types.Specialization{types.SpecMicrobiology}, true, 0, 3),
	}

	eligible := FilterEligible(technicians, "basket_weaving")

	assert.Len(t, eligible, 2)
}

func TestFilterEligible_NormalizesInput(t *testing.T) {
	technicians := []*types.Technician{
		makeTechnician("tech-1", []types.Specialization{types.SpecHematology}, true, 0, 3),
		makeTechnician("tech-2", []types.Specialization{types.SpecMicrobiology}, true, 0, 3),
	}

	eligible := FilterEligible(technicians, "  HEMATOLOGY ")

	assert.Len(t, eligible, 1)
	assert.Equal(t, "tech-1", eligible[0].ID)
}

func TestCanAcceptMore(t *testing.T) {
	testCases := []struct {
		name     string
		tech     *types.Technician
		expected bool
	}{
		{
			name:     "available with headroom",
			tech:     makeTechnician("tech-1", nil, true, 1, 3),
			expected: true,
		},
		{
			name:     "at capacity",
			tech:     makeTechnician("tech-2", nil, true, 3, 3),
			expected: false,
		},
		{
			name:     "switched off regardless of load",
			tech:     makeTechnician("tech-3", nil, false, 0, 3),
			expected: false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, CanAcceptMore(tc.tech))
		})
	}
}
