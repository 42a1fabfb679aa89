package orders

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/labtrace/lims/pkg/database"
	"github.com/labtrace/lims/pkg/interfaces"
	"github.com/labtrace/lims/pkg/logger"
	"github.com/labtrace/lims/pkg/types"
)

const orderColumns = `id, patient_id, ordering_party_id, test_id, assigned_technician_id,
	   status, priority, requested_at, sample_collected_at, started_at,
	   completed_at, verified_at, is_critical, load_released, created_at, updated_at`

// Repository implements the OrderRepository interface
type Repository struct {
	db     *database.DB
	logger *logger.Logger
}

// NewRepository creates a new order repository
func NewRepository(db *database.DB, log *logger.Logger) interfaces.OrderRepository {
	return &Repository{
		db:     db,
		logger: log,
	}
}

// CreateOrder creates a new lab order
func (r *Repository) CreateOrder(order *types.LabOrder) error {
	query := `
		INSERT INTO lab_orders (
			id, patient_id, ordering_party_id, test_id, status, priority,
			requested_at, is_critical
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.Exec(query,
		order.ID,
		order.PatientID,
		order.OrderingPartyID,
		order.TestID,
		order.Status,
		order.Priority,
		order.RequestedAt,
		order.IsCritical,
	)

	if err != nil {
		r.logger.Errorf("Failed to create order: %v", err)
		return fmt.Errorf("failed to create order: %w", err)
	}

	r.logger.Infof("Created order %s for patient %s", order.ID, order.PatientID)
	return nil
}

// GetOrderByID retrieves an order by ID
func (r *Repository) GetOrderByID(id string) (*types.LabOrder, error) {
	query := `SELECT ` + orderColumns + ` FROM lab_orders WHERE id = $1`

	order, err := scanOrder(r.db.QueryRow(query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, types.NewNotFoundError("order", id)
		}
		r.logger.Errorf("Failed to get order %s: %v", id, err)
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	return order, nil
}

// GetOrders retrieves orders based on filters
func (r *Repository) GetOrders(filters *types.OrderFilters) ([]*types.LabOrder, error) {
	query := `SELECT ` + orderColumns + ` FROM lab_orders WHERE 1=1`

	args := []interface{}{}
	argIndex := 1

	if filters != nil {
		if filters.PatientID != "" {
			query += fmt.Sprintf(" AND patient_id = $%d", argIndex)
			args = append(args, filters.PatientID)
			argIndex++
		}

		if filters.TechnicianID != "" {
			query += fmt.Sprintf(" AND assigned_technician_id = $%d", argIndex)
			args = append(args, filters.TechnicianID)
			argIndex++
		}

		if filters.Status != "" {
			query += fmt.Sprintf(" AND status = $%d", argIndex)
			args = append(args, string(filters.Status))
			argIndex++
		}

		if filters.Priority != "" {
			query += fmt.Sprintf(" AND priority = $%d", argIndex)
			args = append(args, string(filters.Priority))
			argIndex++
		}

		if !filters.FromDate.IsZero() {
			query += fmt.Sprintf(" AND requested_at >= $%d", argIndex)
			args = append(args, filters.FromDate)
			argIndex++
		}

		if !filters.ToDate.IsZero() {
			query += fmt.Sprintf(" AND requested_at <= $%d", argIndex)
			args = append(args, filters.ToDate)
			argIndex++
		}
	}

	query += " ORDER BY requested_at ASC"

	if filters != nil && filters.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIndex)
		args = append(args, filters.Limit)
		argIndex++
	}

	if filters != nil && filters.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIndex)
		args = append(args, filters.Offset)
	}

	return r.queryOrders(query, args...)
}

// GetActiveOrders retrieves orders in a non-terminal status
func (r *Repository) GetActiveOrders(limit, offset int) ([]*types.LabOrder, error) {
	query := `SELECT ` + orderColumns + `
		FROM lab_orders
		WHERE status NOT IN ('completed', 'verified', 'cancelled')
		ORDER BY requested_at ASC`

	args := []interface{}{}
	argIndex := 1

	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIndex)
		args = append(args, limit)
		argIndex++
	}

	if offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIndex)
		args = append(args, offset)
	}

	return r.queryOrders(query, args...)
}

// AssignTechnician binds a technician to an order and increments the
// technician's load in a single transaction. The order row is locked and its
// status re-checked so a racing transition surfaces as ConcurrentModification;
// the load increment keeps its capacity check in the WHERE clause.
func (r *Repository) AssignTechnician(orderID, technicianID string, expected types.OrderStatus) error {
	ctx := context.Background()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var status types.OrderStatus
	var assigned *string
	err = tx.QueryRow(`SELECT status, assigned_technician_id FROM lab_orders WHERE id = $1 FOR UPDATE`, orderID).
		Scan(&status, &assigned)
	if err != nil {
		if err == sql.ErrNoRows {
			return types.NewNotFoundError("order", orderID)
		}
		return fmt.Errorf("failed to lock order: %w", err)
	}

	if status != expected {
		return types.NewConcurrentModificationError("order", orderID)
	}
	if assigned != nil {
		return types.NewConcurrentModificationError("order", orderID)
	}

	result, err := tx.Exec(`
		UPDATE technicians
		SET current_load = current_load + 1, updated_at = NOW()
		WHERE id = $1 AND is_available AND current_load < max_concurrent_orders`,
		technicianID)
	if err != nil {
		return fmt.Errorf("failed to increment technician load: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		// The technician changed under us: gone, toggled off, or filled up.
		var exists bool
		if err := tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM technicians WHERE id = $1)`, technicianID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check technician: %w", err)
		}
		if !exists {
			return types.NewNotFoundError("technician", technicianID)
		}
		return types.NewCapacityExceededError(technicianID)
	}

	if _, err := tx.Exec(`
		UPDATE lab_orders
		SET assigned_technician_id = $1, updated_at = NOW()
		WHERE id = $2`,
		technicianID, orderID); err != nil {
		return fmt.Errorf("failed to assign technician: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit assignment: %w", err)
	}

	r.logger.WithOrderID(orderID).Infof("Assigned technician %s", technicianID)
	return nil
}

// UpdateStatus moves the order from expected to target, stamps the transition
// timestamp and, on entering a terminal state with a technician still bound,
// releases that technician's load exactly once. The whole step commits in one
// transaction: status, timestamp and load release cannot diverge.
func (r *Repository) UpdateStatus(orderID string, expected, target types.OrderStatus, at time.Time) (*types.LabOrder, error) {
	ctx := context.Background()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var status types.OrderStatus
	var assigned *string
	var loadReleased bool
	err = tx.QueryRow(`
		SELECT status, assigned_technician_id, load_released
		FROM lab_orders WHERE id = $1 FOR UPDATE`, orderID).
		Scan(&status, &assigned, &loadReleased)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, types.NewNotFoundError("order", orderID)
		}
		return nil, fmt.Errorf("failed to lock order: %w", err)
	}

	if status != expected {
		return nil, types.NewConcurrentModificationError("order", orderID)
	}

	releaseLoad := target.IsTerminal() && assigned != nil && !loadReleased

	query := `UPDATE lab_orders SET status = $1, updated_at = NOW()`
	args := []interface{}{string(target)}
	argIndex := 2

	if column := timestampColumn(target); column != "" {
		query += fmt.Sprintf(", %s = $%d", column, argIndex)
		args = append(args, at)
		argIndex++
	}

	if releaseLoad {
		query += ", load_released = true"
	}

	query += fmt.Sprintf(" WHERE id = $%d", argIndex)
	args = append(args, orderID)

	if _, err := tx.Exec(query, args...); err != nil {
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}

	if releaseLoad {
		if _, err := tx.Exec(`
			UPDATE technicians
			SET current_load = GREATEST(current_load - 1, 0), updated_at = NOW()
			WHERE id = $1`, *assigned); err != nil {
			return nil, fmt.Errorf("failed to release technician load: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit status update: %w", err)
	}

	r.logger.WithOrderID(orderID).Infof("Status %s -> %s", expected, target)
	return r.GetOrderByID(orderID)
}

// timestampColumn maps a target status to the column stamped on entry.
func timestampColumn(target types.OrderStatus) string {
	switch target {
	case types.StatusSampleCollected:
		return "sample_collected_at"
	case types.StatusInProgress:
		return "started_at"
	case types.StatusCompleted:
		return "completed_at"
	case types.StatusVerified:
		return "verified_at"
	}
	return ""
}

func (r *Repository) queryOrders(query string, args ...interface{}) ([]*types.LabOrder, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		r.logger.Errorf("Failed to get orders: %v", err)
		return nil, fmt.Errorf("failed to get orders: %w", err)
	}
	defer rows.Close()

	var orders []*types.LabOrder
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			r.logger.Errorf("Failed to scan order: %v", err)
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}

	return orders, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row rowScanner) (*types.LabOrder, error) {
	order := &types.LabOrder{}
	err := row.Scan(
		&order.ID,
		&order.PatientID,
		&order.OrderingPartyID,
		&order.TestID,
		&order.AssignedTechnicianID,
		&order.Status,
		&order.Priority,
		&order.RequestedAt,
		&order.SampleCollectedAt,
		&order.StartedAt,
		&order.CompletedAt,
		&order.VerifiedAt,
		&order.IsCritical,
		&order.LoadReleased,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return order, nil
}
