package allocation

import (
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/labtrace/lims/pkg/database"
	"github.com/labtrace/lims/pkg/interfaces"
	"github.com/labtrace/lims/pkg/logger"
	"github.com/labtrace/lims/pkg/types"
)

const technicianColumns = `id, name, specializations, is_available, max_concurrent_orders,
	   current_load, performance_score, created_at, updated_at`

// Repository implements the TechnicianRepository interface
type Repository struct {
	db     *database.DB
	logger *logger.Logger
}

// NewRepository creates a new technician repository
func NewRepository(db *database.DB, log *logger.Logger) interfaces.TechnicianRepository {
	return &Repository{
		db:     db,
		logger: log,
	}
}

// CreateTechnician creates a new technician
func (r *Repository) CreateTechnician(tech *types.Technician) error {
	query := `
		INSERT INTO technicians (
			id, name, specializations, is_available, max_concurrent_orders,
			current_load, performance_score
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	specs := make([]string, 0, len(tech.Specializations))
	for _, s := range tech.Specializations {
		specs = append(specs, string(s))
	}

	_, err := r.db.Exec(query,
		tech.ID,
		tech.Name,
		pq.Array(specs),
		tech.IsAvailable,
		tech.MaxConcurrentOrders,
		tech.CurrentLoad,
		tech.PerformanceScore,
	)

	if err != nil {
		r.logger.Errorf("Failed to create technician: %v", err)
		return fmt.Errorf("failed to create technician: %w", err)
	}

	r.logger.Infof("Created technician %s", tech.ID)
	return nil
}

// GetTechnicianByID retrieves a technician by ID
func (r *Repository) GetTechnicianByID(id string) (*types.Technician, error) {
	query := `SELECT ` + technicianColumns + ` FROM technicians WHERE id = $1`

	tech, err := scanTechnician(r.db.QueryRow(query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, types.NewNotFoundError("technician", id)
		}
		r.logger.Errorf("Failed to get technician %s: %v", id, err)
		return nil, fmt.Errorf("failed to get technician: %w", err)
	}

	return tech, nil
}

// GetTechnicians retrieves technicians based on filters
func (r *Repository) GetTechnicians(filters *types.TechnicianFilters) ([]*types.Technician, error) {
	query := `SELECT ` + technicianColumns + ` FROM technicians WHERE 1=1`

	args := []interface{}{}
	argIndex := 1

	if filters != nil {
		if filters.Specialization != "" {
			// An empty specialization set is general-purpose and matches any category.
			query += fmt.Sprintf(" AND ($%d = ANY(specializations) OR 'general' = ANY(specializations) OR cardinality(specializations) = 0)", argIndex)
			args = append(args, string(filters.Specialization))
			argIndex++
		}

		if filters.IsAvailable != nil {
			query += fmt.Sprintf(" AND is_available = $%d", argIndex)
			args = append(args, *filters.IsAvailable)
			argIndex++
		}
	}

	query += " ORDER BY id ASC"

	if filters != nil && filters.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIndex)
		args = append(args, filters.Limit)
		argIndex++
	}

	if filters != nil && filters.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIndex)
		args = append(args, filters.Offset)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		r.logger.Errorf("Failed to get technicians: %v", err)
		return nil, fmt.Errorf("failed to get technicians: %w", err)
	}
	defer rows.Close()

	var technicians []*types.Technician
	for rows.Next() {
		tech, err := scanTechnician(rows)
		if err != nil {
			r.logger.Errorf("Failed to scan technician: %v", err)
			return nil, fmt.Errorf("failed to scan technician: %w", err)
		}
		technicians = append(technicians, tech)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating technicians: %w", err)
	}

	return technicians, nil
}

// IncrementLoad atomically increments the technician's load. The availability
// and capacity checks live in the WHERE clause so two concurrent callers
// against the same near-full technician cannot both succeed.
func (r *Repository) IncrementLoad(id string) (*types.Technician, error) {
	query := `
		UPDATE technicians
		SET current_load = current_load + 1, updated_at = NOW()
		WHERE id = $1 AND is_available AND current_load < max_concurrent_orders
		RETURNING ` + technicianColumns

	tech, err := scanTechnician(r.db.QueryRow(query, id))
	if err == nil {
		return tech, nil
	}
	if err != sql.ErrNoRows {
		r.logger.Errorf("Failed to increment load for technician %s: %v", id, err)
		return nil, fmt.Errorf("failed to increment load: %w", err)
	}

	// No row updated: missing, toggled off, or at capacity.
	current, lookupErr := r.GetTechnicianByID(id)
	if lookupErr != nil {
		return nil, lookupErr
	}
	if !current.IsAvailable {
		return nil, types.NewNotEligibleError(id, "technician is unavailable")
	}
	return nil, types.NewCapacityExceededError(id)
}

// DecrementLoad atomically decrements the technician's load, clamping at zero.
// Decrementing an already-zero load is a successful no-op.
func (r *Repository) DecrementLoad(id string) (*types.Technician, error) {
	query := `
		UPDATE technicians
		SET current_load = GREATEST(current_load - 1, 0), updated_at = NOW()
		WHERE id = $1
		RETURNING ` + technicianColumns

	tech, err := scanTechnician(r.db.QueryRow(query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, types.NewNotFoundError("technician", id)
		}
		r.logger.Errorf("Failed to decrement load for technician %s: %v", id, err)
		return nil, fmt.Errorf("failed to decrement load: %w", err)
	}

	return tech, nil
}

// SetAvailability updates the operator-controlled availability switch. It does
// not touch current_load.
func (r *Repository) SetAvailability(id string, available bool) error {
	query := `UPDATE technicians SET is_available = $1, updated_at = NOW() WHERE id = $2`

	result, err := r.db.Exec(query, available, id)
	if err != nil {
		r.logger.Errorf("Failed to set availability for technician %s: %v", id, err)
		return fmt.Errorf("failed to set availability: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return types.NewNotFoundError("technician", id)
	}

	r.logger.Infof("Set technician %s availability to %t", id, available)
	return nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTechnician(row rowScanner) (*types.Technician, error) {
	tech := &types.Technician{}
	var specs pq.StringArray

	err := row.Scan(
		&tech.ID,
		&tech.Name,
		&specs,
		&tech.IsAvailable,
		&tech.MaxConcurrentOrders,
		&tech.CurrentLoad,
		&tech.PerformanceScore,
		&tech.CreatedAt,
		&tech.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	tech.Specializations = make([]types.Specialization, 0, len(specs))
	for _, s := range specs {
		tech.Specializations = append(tech.Specializations, types.Specialization(s))
	}

	return tech, nil
}
