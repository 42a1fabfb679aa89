package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasSpecialization(t *testing.T) {
	tech := &Technician{Specializations: []Specialization{SpecHematology, SpecUrinalysis}}

	assert.True(t, tech.HasSpecialization(SpecHematology))
	assert.False(t, tech.HasSpecialization(SpecMicrobiology))
}

func TestHasSpecialization_EmptySetMatchesEverything(t *testing.T) {
	tech := &Technician{}

	assert.True(t, tech.HasSpecialization(SpecHematology))
	assert.True(t, tech.HasSpecialization(SpecMolecularDiagnostics))
}

func TestParseSpecialization(t *testing.T) {
	spec, ok := ParseSpecialization("  HEMATOLOGY ")
	assert.True(t, ok)
	assert.Equal(t, SpecHematology, spec)

	_, ok = ParseSpecialization("basket_weaving")
	assert.False(t, ok)
}
