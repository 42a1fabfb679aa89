package allocation

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/labtrace/lims/pkg/interfaces"
	"github.com/labtrace/lims/pkg/logger"
	"github.com/labtrace/lims/pkg/types"
)

// Registry manages technician records and their workload bookkeeping.
// All load mutations go through the repository's conditional updates.
type Registry struct {
	repository interfaces.TechnicianRepository
	logger     *logger.Logger
}

// NewRegistry creates a new technician registry
func NewRegistry(repo interfaces.TechnicianRepository, log *logger.Logger) *Registry {
	return &Registry{
		repository: repo,
		logger:     log,
	}
}

// CanAcceptMore reports whether the technician may take on another order.
func CanAcceptMore(t *types.Technician) bool {
	return t.IsAvailable && t.CurrentLoad < t.MaxConcurrentOrders
}

// RegisterTechnician creates a new technician record
func (r *Registry) RegisterTechnician(tech *types.Technician) (*types.Technician, error) {
	if err := r.validateTechnician(tech); err != nil {
		return nil, types.NewValidationError(err.Error(), nil)
	}

	if tech.ID == "" {
		tech.ID = uuid.New().String()
	}
	tech.CurrentLoad = 0
	tech.CreatedAt = time.Now()
	tech.UpdatedAt = time.Now()

	if err := r.repository.CreateTechnician(tech); err != nil {
		return nil, fmt.Errorf("failed to register technician: %w", err)
	}

	r.logger.Infof("Registered technician %s with %d specializations", tech.ID, len(tech.Specializations))
	return tech, nil
}

// GetTechnician retrieves a technician by ID
func (r *Registry) GetTechnician(id string) (*types.Technician, error) {
	return r.repository.GetTechnicianByID(id)
}

// ListTechnicians retrieves technicians based on filters
func (r *Registry) ListTechnicians(filters *types.TechnicianFilters) ([]*types.Technician, error) {
	return r.repository.GetTechnicians(filters)
}

// IncrementLoad increments the technician's load, failing with
// CapacityExceeded at the cap.
func (r *Registry) IncrementLoad(id string) (*types.Technician, error) {
	tech, err := r.repository.IncrementLoad(id)
	if err != nil {
		return nil, err
	}

	r.logger.WithTechnicianID(id).Infof("Load incremented to %d/%d", tech.CurrentLoad, tech.MaxConcurrentOrders)
	return tech, nil
}

// DecrementLoad decrements the technician's load, clamping at zero.
func (r *Registry) DecrementLoad(id string) (*types.Technician, error) {
	tech, err := r.repository.DecrementLoad(id)
	if err != nil {
		return nil, err
	}

	r.logger.WithTechnicianID(id).Infof("Load decremented to %d/%d", tech.CurrentLoad, tech.MaxConcurrentOrders)
	return tech, nil
}

// SetAvailability flips the administrative availability switch
func (r *Registry) SetAvailability(id string, available bool) error {
	return r.repository.SetAvailability(id, available)
}

// validateTechnician validates technician data
func (r *Registry) validateTechnician(tech *types.Technician) error {
	if tech.Name == "" {
		return fmt.Errorf("technician name is required")
	}

	if tech.MaxConcurrentOrders < 1 {
		return fmt.Errorf("max concurrent orders must be at least 1")
	}

	if tech.PerformanceScore < 0 || tech.PerformanceScore > 100 {
		return fmt.Errorf("performance score must be between 0 and 100")
	}

	for _, s := range tech.Specializations {
		if !s.IsValid() {
			return fmt.Errorf("unknown specialization: %s", s)
		}
	}

	return nil
}
