package types

import "time"

// TestCatalogEntry describes a diagnostic test definition from the lab catalog.
// Entries are read-only to the order engine.
type TestCatalogEntry struct {
	ID                      string         `json:"id" db:"id"`
	Name                    string         `json:"name" db:"name"`
	Category                Specialization `json:"category" db:"category"`
	ExpectedDurationMinutes int            `json:"expected_duration_minutes" db:"expected_duration_minutes"`
	CreatedAt               time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt               time.Time      `json:"updated_at" db:"updated_at"`
}
