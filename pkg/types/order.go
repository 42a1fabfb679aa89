package types

import "time"

// LabOrder represents a diagnostic test order moving through the lab workflow
type LabOrder struct {
	ID                   string      `json:"id" db:"id"`
	PatientID            string      `json:"patient_id" db:"patient_id"`
	OrderingPartyID      string      `json:"ordering_party_id" db:"ordering_party_id"`
	TestID               string      `json:"test_id" db:"test_id"`
	AssignedTechnicianID *string     `json:"assigned_technician_id,omitempty" db:"assigned_technician_id"`
	Status               OrderStatus `json:"status" db:"status"`
	Priority             Priority    `json:"priority" db:"priority"`
	RequestedAt          time.Time   `json:"requested_at" db:"requested_at"`
	SampleCollectedAt    *time.Time  `json:"sample_collected_at,omitempty" db:"sample_collected_at"`
	StartedAt            *time.Time  `json:"started_at,omitempty" db:"started_at"`
	CompletedAt          *time.Time  `json:"completed_at,omitempty" db:"completed_at"`
	VerifiedAt           *time.Time  `json:"verified_at,omitempty" db:"verified_at"`
	IsCritical           bool        `json:"is_critical" db:"is_critical"`
	LoadReleased         bool        `json:"load_released" db:"load_released"`
	CreatedAt            time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time   `json:"updated_at" db:"updated_at"`
}

// OrderStatus represents order lifecycle status values
type OrderStatus string

const (
	StatusRequested       OrderStatus = "requested"
	StatusSampleCollected OrderStatus = "sample_collected"
	StatusInProgress      OrderStatus = "in_progress"
	StatusCompleted       OrderStatus = "completed"
	StatusVerified        OrderStatus = "verified"
	StatusCancelled       OrderStatus = "cancelled"
)

// Allowed state transitions. The workflow is strictly linear; cancellation is
// only reachable before processing starts.
var allowedTransitions = map[OrderStatus]map[OrderStatus]bool{
	StatusRequested:       {StatusSampleCollected: true, StatusCancelled: true},
	StatusSampleCollected: {StatusInProgress: true, StatusCancelled: true},
	StatusInProgress:      {StatusCompleted: true},
	StatusCompleted:       {StatusVerified: true},
	StatusVerified:        {},
	StatusCancelled:       {},
}

// CanTransition reports whether from -> to is a legal lifecycle edge.
func CanTransition(from, to OrderStatus) bool {
	next := allowedTransitions[from]
	return next != nil && next[to]
}

// IsTerminal reports whether a status permits no further transitions.
func (s OrderStatus) IsTerminal() bool {
	return s == StatusVerified || s == StatusCancelled
}

// IsValid reports whether s is a known status value.
func (s OrderStatus) IsValid() bool {
	_, ok := allowedTransitions[s]
	return ok
}

// Priority represents order urgency values
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityStat   Priority = "stat"
)

// IsValid reports whether p is a known priority value.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityStat:
		return true
	}
	return false
}

// OrderFilters represents filters for order queries
type OrderFilters struct {
	PatientID    string      `json:"patient_id,omitempty"`
	TechnicianID string      `json:"technician_id,omitempty"`
	Status       OrderStatus `json:"status,omitempty"`
	Priority     Priority    `json:"priority,omitempty"`
	FromDate     time.Time   `json:"from_date,omitempty"`
	ToDate       time.Time   `json:"to_date,omitempty"`
	Limit        int         `json:"limit,omitempty"`
	Offset       int         `json:"offset,omitempty"`
}
