package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pharmstock/pharmstock-backend/pkg/database"
	"github.com/pharmstock/pharmstock-backend/pkg/errors"
	"github.com/shopspring/decimal"
)

// InventoryLot represents one physical batch of a product in a warehouse.
// The identity key is (product_id, warehouse_id, lot_number, expiry_date):
// a receipt matching an existing key accumulates quantity in place, any other
// combination creates a new lot. Lots are never deleted; a drained lot stays
// at quantity zero as history.
type InventoryLot struct {
	ID          string          `db:"id" json:"id"`
	ProductID   string          `db:"product_id" json:"product_id"`
	WarehouseID string          `db:"warehouse_id" json:"warehouse_id"`
	LotNumber   string          `db:"lot_number" json:"lot_number"`
	ExpiryDate  *time.Time      `db:"expiry_date" json:"expiry_date,omitempty"`
	Quantity    int             `db:"quantity" json:"quantity"`
	UnitCost    decimal.Decimal `db:"unit_cost" json:"unit_cost"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

// LotRepository handles inventory lot persistence
type LotRepository struct {
	db *database.DB
}

// NewLotRepository creates a new lot repository
func NewLotRepository(db *database.DB) *LotRepository {
	return &LotRepository{db: db}
}

// fefoOrder sorts allocation candidates the way the allocation engine
// consumes them: dated lots before undated ones, soonest expiry first,
// then creation order and id as deterministic tie-breaks.
const fefoOrder = `ORDER BY (expiry_date IS NULL), expiry_date, created_at, id`

// GetByID gets a lot by ID
func (r *LotRepository) GetByID(ctx context.Context, id string) (*InventoryLot, error) {
	var lot InventoryLot
	query := `SELECT * FROM inventory_lots WHERE id = $1`
	if err := r.db.GetContext(ctx, &lot, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("lot")
		}
		return nil, err
	}
	return &lot, nil
}

// ListByProduct lists lots for a product across warehouses, FEFO-ordered
func (r *LotRepository) ListByProduct(ctx context.Context, productID string) ([]*InventoryLot, error) {
	var lots []*InventoryLot
	query := `SELECT * FROM inventory_lots WHERE product_id = $1 ` + fefoOrder
	if err := r.db.SelectContext(ctx, &lots, query, productID); err != nil {
		return nil, err
	}
	return lots, nil
}

// ListAllocatable returns the allocation candidates for a product in a
// warehouse: every lot still holding stock, in FEFO order.
func (r *LotRepository) ListAllocatable(ctx context.Context, productID, warehouseID string) ([]*InventoryLot, error) {
	var lots []*InventoryLot
	query := `
		SELECT * FROM inventory_lots
		WHERE product_id = $1 AND warehouse_id = $2 AND quantity > 0
		` + fefoOrder
	if err := r.db.SelectContext(ctx, &lots, query, productID, warehouseID); err != nil {
		return nil, err
	}
	return lots, nil
}

// AvailableStock sums the available quantity for a product in a warehouse
func (r *LotRepository) AvailableStock(ctx context.Context, productID, warehouseID string) (int, error) {
	var total sql.NullInt64
	query := `
		SELECT SUM(quantity) FROM inventory_lots
		WHERE product_id = $1 AND warehouse_id = $2 AND quantity > 0
	`
	if err := r.db.GetContext(ctx, &total, query, productID, warehouseID); err != nil {
		return 0, err
	}
	if !total.Valid {
		return 0, nil
	}
	return int(total.Int64), nil
}

// ListExpiring returns lots holding stock whose expiry date falls within the
// window (including already expired lots). Lots without an expiry date never
// expire and are excluded.
func (r *LotRepository) ListExpiring(ctx context.Context, withinDays int) ([]*InventoryLot, error) {
	var lots []*InventoryLot
	query := `
		SELECT * FROM inventory_lots
		WHERE quantity > 0 AND expiry_date IS NOT NULL
		AND expiry_date <= NOW() + INTERVAL '1 day' * $1
		ORDER BY expiry_date
	`
	if err := r.db.SelectContext(ctx, &lots, query, withinDays); err != nil {
		return nil, err
	}
	return lots, nil
}

// ListAllocatableTx is the transaction-scoped variant of ListAllocatable,
// used to re-read fresh candidates after a conditional decrement lost a race.
func (r *LotRepository) ListAllocatableTx(ctx context.Context, tx *sqlx.Tx, productID, warehouseID string) ([]*InventoryLot, error) {
	var lots []*InventoryLot
	query := `
		SELECT * FROM inventory_lots
		WHERE product_id = $1 AND warehouse_id = $2 AND quantity > 0
		` + fefoOrder
	if err := tx.SelectContext(ctx, &lots, query, productID, warehouseID); err != nil {
		return nil, err
	}
	return lots, nil
}

// GetByIDTx gets a lot by ID inside a transaction
func (r *LotRepository) GetByIDTx(ctx context.Context, tx *sqlx.Tx, id string) (*InventoryLot, error) {
	var lot InventoryLot
	query := `SELECT * FROM inventory_lots WHERE id = $1`
	if err := tx.GetContext(ctx, &lot, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("lot")
		}
		return nil, err
	}
	return &lot, nil
}

// FindByIdentityTx locates a lot by its identity key inside a transaction,
// locking the row so a concurrent receipt cannot accumulate into it at the
// same time. Returns nil without error when no lot matches.
func (r *LotRepository) FindByIdentityTx(ctx context.Context, tx *sqlx.Tx, productID, warehouseID, lotNumber string, expiryDate *time.Time) (*InventoryLot, error) {
	var lot InventoryLot
	query := `
		SELECT * FROM inventory_lots
		WHERE product_id = $1 AND warehouse_id = $2 AND lot_number = $3
		AND expiry_date IS NOT DISTINCT FROM $4
		FOR UPDATE
	`
	err := tx.GetContext(ctx, &lot, query, productID, warehouseID, lotNumber, expiryDate)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &lot, nil
}

// CreateTx inserts a new lot inside a transaction
func (r *LotRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, lot *InventoryLot) error {
	if lot.ID == "" {
		lot.ID = uuid.New().String()
	}

	query := `
		INSERT INTO inventory_lots (id, product_id, warehouse_id, lot_number, expiry_date, quantity, unit_cost)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`

	err := tx.QueryRowxContext(ctx, query,
		lot.ID, lot.ProductID, lot.WarehouseID, lot.LotNumber, lot.ExpiryDate,
		lot.Quantity, lot.UnitCost,
	).Scan(&lot.CreatedAt, &lot.UpdatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

// IncrementTx adds quantity to an existing lot inside a transaction
func (r *LotRepository) IncrementTx(ctx context.Context, tx *sqlx.Tx, lotID string, quantity int) error {
	query := `
		UPDATE inventory_lots
		SET quantity = quantity + $2, updated_at = NOW()
		WHERE id = $1
	`
	result, err := tx.ExecContext(ctx, query, lotID, quantity)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("lot")
	}
	return nil
}

// DecrementTx removes quantity from a lot, but only if the lot still holds at
// least that much. Zero rows affected means a concurrent movement got there
// first; the caller re-reads fresh lot state and re-plans instead of assuming
// success. This is what keeps quantity from ever going negative.
func (r *LotRepository) DecrementTx(ctx context.Context, tx *sqlx.Tx, lotID string, quantity int) error {
	query := `
		UPDATE inventory_lots
		SET quantity = quantity - $2, updated_at = NOW()
		WHERE id = $1 AND quantity >= $2
	`
	result, err := tx.ExecContext(ctx, query, lotID, quantity)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.Conflict("lot stock changed concurrently")
	}
	return nil
}
