package repository

import (
	"context"

	"github.com/pharmstock/pharmstock-backend/pkg/database"
	"github.com/pharmstock/pharmstock-backend/pkg/errors"
)

// ReferenceRepository answers existence lookups for the descriptive entities
// owned elsewhere (warehouses, suppliers, departments). The movement
// processor only needs to know a referenced id is real before it mutates
// anything.
type ReferenceRepository struct {
	db *database.DB
}

// NewReferenceRepository creates a new reference repository
func NewReferenceRepository(db *database.DB) *ReferenceRepository {
	return &ReferenceRepository{db: db}
}

func (r *ReferenceRepository) exists(ctx context.Context, table, id string) (bool, error) {
	var found bool
	query := `SELECT EXISTS (SELECT 1 FROM ` + table + ` WHERE id = $1 AND is_active = true)`
	if err := r.db.GetContext(ctx, &found, query, id); err != nil {
		return false, err
	}
	return found, nil
}

// RequireWarehouse fails with NotFound unless the warehouse exists
func (r *ReferenceRepository) RequireWarehouse(ctx context.Context, id string) error {
	found, err := r.exists(ctx, "warehouses", id)
	if err != nil {
		return err
	}
	if !found {
		return errors.NotFound("warehouse")
	}
	return nil
}

// RequireSupplier fails with NotFound unless the supplier exists
func (r *ReferenceRepository) RequireSupplier(ctx context.Context, id string) error {
	found, err := r.exists(ctx, "suppliers", id)
	if err != nil {
		return err
	}
	if !found {
		return errors.NotFound("supplier")
	}
	return nil
}

// RequireDepartment fails with NotFound unless the department exists
func (r *ReferenceRepository) RequireDepartment(ctx context.Context, id string) error {
	found, err := r.exists(ctx, "departments", id)
	if err != nil {
		return err
	}
	if !found {
		return errors.NotFound("department")
	}
	return nil
}
