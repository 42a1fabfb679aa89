package catalog

import (
	"database/sql"
	"fmt"

	"github.com/labtrace/lims/pkg/database"
	"github.com/labtrace/lims/pkg/interfaces"
	"github.com/labtrace/lims/pkg/logger"
	"github.com/labtrace/lims/pkg/types"
)

// Repository implements the CatalogRepository interface
type Repository struct {
	db     *database.DB
	logger *logger.Logger
}

// NewRepository creates a new catalog repository
func NewRepository(db *database.DB, log *logger.Logger) interfaces.CatalogRepository {
	return &Repository{
		db:     db,
		logger: log,
	}
}

// GetEntryByID retrieves a catalog entry by test ID
func (r *Repository) GetEntryByID(id string) (*types.TestCatalogEntry, error) {
	query := `
		SELECT id, name, category, expected_duration_minutes, created_at, updated_at
		FROM test_catalog
		WHERE id = $1`

	entry := &types.TestCatalogEntry{}
	err := r.db.QueryRow(query, id).Scan(
		&entry.ID,
		&entry.Name,
		&entry.Category,
		&entry.ExpectedDurationMinutes,
		&entry.CreatedAt,
		&entry.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, types.NewNotFoundError("test catalog entry", id)
		}
		r.logger.Errorf("Failed to get catalog entry %s: %v", id, err)
		return nil, fmt.Errorf("failed to get catalog entry: %w", err)
	}

	return entry, nil
}

// GetEntries retrieves catalog entries with pagination
func (r *Repository) GetEntries(limit, offset int) ([]*types.TestCatalogEntry, error) {
	query := `
		SELECT id, name, category, expected_duration_minutes, created_at, updated_at
		FROM test_catalog
		ORDER BY id ASC`

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

	rows, err := r.db.Query(query, args...)
	if err != nil {
		r.logger.Errorf("Failed to get catalog entries: %v", err)
		return nil, fmt.Errorf("failed to get catalog entries: %w", err)
	}
	defer rows.Close()

	var entries []*types.TestCatalogEntry
	for rows.Next() {
		entry := &types.TestCatalogEntry{}
		err := rows.Scan(
			&entry.ID,
			&entry.Name,
			&entry.Category,
			&entry.ExpectedDurationMinutes,
			&entry.CreatedAt,
			&entry.UpdatedAt,
		)
		if err != nil {
			r.logger.Errorf("Failed to scan catalog entry: %v", err)
			return nil, fmt.Errorf("failed to scan catalog entry: %w", err)
		}
		entries = append(entries, entry)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating catalog entries: %w", err)
	}

	return entries, nil
}
