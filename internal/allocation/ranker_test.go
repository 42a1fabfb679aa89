package allocation

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/labtrace/lims/pkg/types"
)

func scoredTechnician(id string, load int, score float64) *types.Technician {
	return &types.Technician{
		ID:                  id,
		IsAvailable:         true,
		CurrentLoad:         load,
		MaxConcurrentOrders: 10,
		PerformanceScore:    score,
	}
}

func TestRank_LeastLoadedFirst(t *testing.T) {
	eligible := []*types.Technician{
		scoredTechnician("tech-a", 3, 99),
		scoredTechnician("tech-b", 1, 10),
	}

	ranked := Rank(eligible)

	// Load-balancing wins over raw performance.
	assert.Equal(t, "tech-b", ranked[0].ID)
	assert.Equal(t, "tech-a", ranked[1].ID)
}

func TestRank_ScoreBreaksLoadTie(t *testing.T) {
	eligible := []*types.Technician{
		scoredTechnician("tech-b", 1, 70),
		scoredTechnician("tech-c", 1, 90),
	}

	best := SelectBest(eligible)

	assert.NotNil(t, best)
	assert.Equal(t, "tech-c", best.ID)
}

func TestRank_IDBreaksFullTie(t *testing.T) {
	eligible := []*types.Technician{
		scoredTechnician("tech-z", 2, 80),
		scoredTechnician("tech-a", 2, 80),
	}

	best := SelectBest(eligible)

	assert.Equal(t, "tech-a", best.ID)
}

func TestRank_DeterministicUnderPermutation(t *testing.T) {
	base := []*types.Technician{
		scoredTechnician("tech-a", 2, 80),
		scoredTechnician("tech-b", 1, 70),
		scoredTechnician("tech-c", 1, 90),
		scoredTechnician("tech-d", 0, 10),
		scoredTechnician("tech-e", 2, 80),
	}

	expected := SelectBest(base).ID

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 20; i++ {
		shuffled := make([]*types.Technician, len(base))
		copy(shuffled, base)
		rng.Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})

		assert.Equal(t, expected, SelectBest(shuffled).ID)
	}
}

func TestRank_DoesNotMutateInput(t *testing.T) {
	eligible := []*types.Technician{
		scoredTechnician("tech-b", 3, 70),
		scoredTechnician("tech-a", 1, 90),
	}

	Rank(eligible)

	assert.Equal(t, "tech-b", eligible[0].ID)
}

func TestSelectBest_EmptySet(t *testing.T) {
	assert.Nil(t, SelectBest(nil))
	assert.Nil(t, SelectBest([]*types.Technician{}))
}
