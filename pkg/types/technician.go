package types

import (
	"strings"
	"time"
)

// Technician represents a lab technician able to process test orders
type Technician struct {
	ID                  string           `json:"id" db:"id"`
	Name                string           `json:"name" db:"name"`
	Specializations     []Specialization `json:"specializations" db:"specializations"`
	IsAvailable         bool             `json:"is_available" db:"is_available"`
	MaxConcurrentOrders int              `json:"max_concurrent_orders" db:"max_concurrent_orders"`
	CurrentLoad         int              `json:"current_load" db:"current_load"`
	PerformanceScore    float64          `json:"performance_score" db:"performance_score"`
	CreatedAt           time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time        `json:"updated_at" db:"updated_at"`
}

// HasSpecialization reports whether the technician is qualified for the given
// category. An empty specialization set means the technician is general-purpose
// and matches every category.
func (t *Technician) HasSpecialization(s Specialization) bool {
	if len(t.Specializations) == 0 {
		return true
	}
	for _, have := range t.Specializations {
		if have == s {
			return true
		}
	}
	return false
}

// Specialization represents a technician's qualified test category
type Specialization string

const (
	SpecHematology           Specialization = "hematology"
	SpecBiochemistry         Specialization = "biochemistry"
	SpecMicrobiology         Specialization = "microbiology"
	SpecImmunology           Specialization = "immunology"
	SpecPathology            Specialization = "pathology"
	SpecUrinalysis           Specialization = "urinalysis"
	SpecEndocrinology        Specialization = "endocrinology"
	SpecToxicology           Specialization = "toxicology"
	SpecMolecularDiagnostics Specialization = "molecular_diagnostics"
	SpecGeneral              Specialization = "general"
)

var knownSpecializations = map[Specialization]bool{
	SpecHematology:           true,
	SpecBiochemistry:         true,
	SpecMicrobiology:         true,
	SpecImmunology:           true,
	SpecPathology:            true,
	SpecUrinalysis:           true,
	SpecEndocrinology:        true,
	SpecToxicology:           true,
	SpecMolecularDiagnostics: true,
	SpecGeneral:              true,
}

// IsValid reports whether s is a member of the closed specialization set.
func (s Specialization) IsValid() bool {
	return knownSpecializations[s]
}

// ParseSpecialization normalizes a caller-supplied category string. The second
// return value is false when the string is not a known specialization; callers
// at the catalog boundary treat that as "no constraint" rather than an error.
func ParseSpecialization(s string) (Specialization, bool) {
	spec := Specialization(strings.ToLower(strings.TrimSpace(s)))
	return spec, spec.IsValid()
}

// TechnicianFilters represents filters for technician queries
type TechnicianFilters struct {
	Specialization Specialization `json:"specialization,omitempty"`
	IsAvailable    *bool          `json:"is_available,omitempty"`
	Limit          int            `json:"limit,omitempty"`
	Offset         int            `json:"offset,omitempty"`
}
