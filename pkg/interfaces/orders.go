package interfaces

import (
	"time"

	"github.com/labtrace/lims/pkg/types"
)

// OrderService defines the caller-facing interface of the order engine.
//
// Precondition enforced at the HTTP boundary, not re-derived here: AssignBest
// requires the caller's role to be lab_manager, doctor or admin. Transition
// operations are open to any authenticated role.
type OrderService interface {
	// Order management
	CreateOrder(order *types.LabOrder, userID string) (*types.LabOrder, error)
	GetOrder(orderID string) (*types.LabOrder, error)
	GetOrders(filters *types.OrderFilters) ([]*types.LabOrder, error)

	// Lifecycle
	AssignBest(orderID, userID string) (*types.Technician, error)
	TransitionOrder(orderID string, target types.OrderStatus, userID string) (*types.LabOrder, error)
	CancelOrder(orderID, userID string) (*types.LabOrder, error)

	// Read-side views
	ListOverdue(now time.Time) ([]*types.LabOrder, error)
	FindEligibleTechnicians(specialization string, includeLoadDetail bool) ([]*types.Technician, error)

	// Service management
	Start(addr string) error
	Stop() error
}

// OrderRepository defines the interface for order persistence.
//
// UpdateStatus and AssignTechnician are conditional writes: they only take
// effect when the stored status still equals expected, and report a
// ConcurrentModification error otherwise. Both commit their side effects
// (timestamp stamping, load release or increment) in a single transaction.
type OrderRepository interface {
	CreateOrder(order *types.LabOrder) error
	GetOrderByID(id string) (*types.LabOrder, error)
	GetOrders(filters *types.OrderFilters) ([]*types.LabOrder, error)
	GetActiveOrders(limit, offset int) ([]*types.LabOrder, error)

	// AssignTechnician binds a technician to an order still in the expected
	// status and increments the technician's load in the same transaction.
	AssignTechnician(orderID, technicianID string, expected types.OrderStatus) error

	// UpdateStatus moves the order to target, stamps the transition timestamp
	// and, when target is terminal and a technician is bound, releases that
	// technician's load exactly once.
	UpdateStatus(orderID string, expected, target types.OrderStatus, at time.Time) (*types.LabOrder, error)
}

// TechnicianRepository defines the interface for technician persistence.
// Load mutations are single-statement conditional updates so that concurrent
// callers against the same technician serialize in the store.
type TechnicianRepository interface {
	CreateTechnician(tech *types.Technician) error
	GetTechnicianByID(id string) (*types.Technician, error)
	GetTechnicians(filters *types.TechnicianFilters) ([]*types.Technician, error)

	IncrementLoad(id string) (*types.Technician, error)
	DecrementLoad(id string) (*types.Technician, error)
	SetAvailability(id string, available bool) error
}

// CatalogService resolves a test identifier to its catalog definition.
// Unresolvable tests return a NotFound error; callers in the order engine
// treat that fail-open (no specialization constraint, never overdue).
type CatalogService interface {
	Resolve(testID string) (*types.TestCatalogEntry, error)
}

// CatalogRepository defines the interface for catalog persistence
type CatalogRepository interface {
	GetEntryByID(id string) (*types.TestCatalogEntry, error)
	GetEntries(limit, offset int) ([]*types.TestCatalogEntry, error)
}
