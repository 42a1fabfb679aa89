package database

import (
	"context"
	"fmt"
)

// CreateSchema creates the database schema for the order engine
func (db *DB) CreateSchema(ctx context.Context) error {
	db.logger.Info("Creating database schema...")

	// Create extension for UUID generation
	if _, err := db.ExecContext(ctx, `CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`); err != nil {
		return fmt.Errorf("failed to create extension: %w", err)
	}

	// Create tables
	tables := []string{
		createTechniciansTable,
		createTestCatalogTable,
		createLabOrdersTable,
	}

	for _, table := range tables {
		if _, err := db.ExecContext(ctx, table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	// Create indexes
	indexes := []string{
		createTechniciansIndexes,
		createLabOrdersIndexes,
	}

	for _, index := range indexes {
		if _, err := db.ExecContext(ctx, index); err != nil {
			return fmt.Errorf("failed to create indexes: %w", err)
		}
	}

	db.logger.Info("Database schema created successfully")
	return nil
}

// SQL DDL statements for table creation
const (
	createTechniciansTable = `
		CREATE TABLE IF NOT EXISTS technicians (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			name VARCHAR(255) NOT NULL,
			specializations TEXT[] NOT NULL DEFAULT '{}',
			is_available BOOLEAN NOT NULL DEFAULT true,
			max_concurrent_orders INTEGER NOT NULL CHECK (max_concurrent_orders >= 1),
			current_load INTEGER NOT NULL DEFAULT 0
				CHECK (current_load >= 0 AND current_load <= max_concurrent_orders),
			performance_score NUMERIC(5,2) NOT NULL DEFAULT 0
				CHECK (performance_score >= 0 AND performance_score <= 100),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`

	createTestCatalogTable = `
		CREATE TABLE IF NOT EXISTS test_catalog (
			id VARCHAR(64) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			category VARCHAR(50) NOT NULL,
			expected_duration_minutes INTEGER NOT NULL CHECK (expected_duration_minutes > 0),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`

	createLabOrdersTable = `
		CREATE TABLE IF NOT EXISTS lab_orders (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			patient_id VARCHAR(64) NOT NULL,
			ordering_party_id VARCHAR(64) NOT NULL,
			test_id VARCHAR(64) NOT NULL,
			assigned_technician_id UUID REFERENCES technicians(id),
			status VARCHAR(30) NOT NULL DEFAULT 'requested',
			priority VARCHAR(10) NOT NULL DEFAULT 'normal',
			requested_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			sample_collected_at TIMESTAMPTZ,
			started_at TIMESTAMPTZ,
			completed_at TIMESTAMPTZ,
			verified_at TIMESTAMPTZ,
			is_critical BOOLEAN NOT NULL DEFAULT false,
			load_released BOOLEAN NOT NULL DEFAULT false,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`

	createTechniciansIndexes = `
		CREATE INDEX IF NOT EXISTS idx_technicians_available ON technicians(is_available);
		CREATE INDEX IF NOT EXISTS idx_technicians_specializations ON technicians USING GIN(specializations);`

	createLabOrdersIndexes = `
		CREATE INDEX IF NOT EXISTS idx_lab_orders_patient ON lab_orders(patient_id);
		CREATE INDEX IF NOT EXISTS idx_lab_orders_technician ON lab_orders(assigned_technician_id);
		CREATE INDEX IF NOT EXISTS idx_lab_orders_status ON lab_orders(status);
		CREATE INDEX IF NOT EXISTS idx_lab_orders_requested_at ON lab_orders(requested_at);`
)
