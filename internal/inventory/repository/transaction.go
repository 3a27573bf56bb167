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

// Transaction types
const (
	TypeInbound    = "INBOUND"
	TypeOutbound   = "OUTBOUND"
	TypeTransfer   = "TRANSFER"
	TypeAdjustment = "ADJUSTMENT"
)

// Transaction statuses
const (
	StatusCompleted = "COMPLETED"
)

// Transaction is one ledger entry: a stock movement recorded at creation and
// never edited afterwards. Historical stock and period totals are computed by
// summing these rows, which only works because they are append-only.
type Transaction struct {
	ID                string    `db:"id" json:"id"`
	Type              string    `db:"type" json:"type"`
	Status            string    `db:"status" json:"status"`
	TransactionDate   time.Time `db:"transaction_date" json:"transaction_date"`
	SourceWarehouseID *string   `db:"source_warehouse_id" json:"source_warehouse_id,omitempty"`
	DestWarehouseID   *string   `db:"dest_warehouse_id" json:"dest_warehouse_id,omitempty"`
	SupplierID        *string   `db:"supplier_id" json:"supplier_id,omitempty"`
	DepartmentID      *string   `db:"department_id" json:"department_id,omitempty"`
	UserID            string    `db:"user_id" json:"user_id"`
	Notes             *string   `db:"notes" json:"notes,omitempty"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
}

// TransactionDetail is one line of a ledger entry, tied to the specific lot
// it drew from or added to. An outbound movement spanning three lots produces
// three detail rows under one transaction.
type TransactionDetail struct {
	ID             string          `db:"id" json:"id"`
	TransactionID  string          `db:"transaction_id" json:"transaction_id"`
	ProductID      string          `db:"product_id" json:"product_id"`
	InventoryLotID *string         `db:"inventory_lot_id" json:"inventory_lot_id,omitempty"`
	Quantity       int             `db:"quantity" json:"quantity"`
	UnitPrice      decimal.Decimal `db:"unit_price" json:"unit_price"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}

// ValidateRouting checks the type-conditioned routing fields before the
// transaction is persisted. A violating transaction is rejected outright.
func (t *Transaction) ValidateRouting() error {
	switch t.Type {
	case TypeInbound:
		if t.DestWarehouseID == nil || t.SupplierID == nil {
			return errors.Validation(map[string]string{
				"routing": "inbound transactions require a destination warehouse and a supplier",
			})
		}
		if t.SourceWarehouseID != nil {
			return errors.Validation(map[string]string{
				"source_warehouse_id": "inbound transactions must not carry a source warehouse",
			})
		}
	case TypeOutbound:
		if t.SourceWarehouseID == nil || t.DepartmentID == nil {
			return errors.Validation(map[string]string{
				"routing": "outbound transactions require a source warehouse and a department",
			})
		}
		if t.DestWarehouseID != nil {
			return errors.Validation(map[string]string{
				"dest_warehouse_id": "outbound transactions must not carry a destination warehouse",
			})
		}
	case TypeTransfer:
		if t.SourceWarehouseID == nil || t.DestWarehouseID == nil {
			return errors.Validation(map[string]string{
				"routing": "transfers require both a source and a destination warehouse",
			})
		}
		if *t.SourceWarehouseID == *t.DestWarehouseID {
			return errors.Validation(map[string]string{
				"routing": "transfer source and destination warehouses must differ",
			})
		}
	case TypeAdjustment:
		// no routing constraint
	default:
		return errors.Validation(map[string]string{
			"type": "must be one of: INBOUND, OUTBOUND, TRANSFER, ADJUSTMENT",
		})
	}
	return nil
}

// TransactionRepository handles the append-only stock ledger
type TransactionRepository struct {
	db *database.DB
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db *database.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// CreateTx appends a ledger entry inside a movement transaction. The routing
// invariant is checked here so no violating entry can ever be persisted.
func (r *TransactionRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, t *Transaction) error {
	if err := t.ValidateRouting(); err != nil {
		return err
	}

	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.Status == "" {
		t.Status = StatusCompleted
	}
	if t.TransactionDate.IsZero() {
		t.TransactionDate = time.Now().UTC()
	}

	query := `
		INSERT INTO transactions (
			id, type, status, transaction_date, source_warehouse_id,
			dest_warehouse_id, supplier_id, department_id, user_id, notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at
	`

	err := tx.QueryRowxContext(ctx, query,
		t.ID, t.Type, t.Status, t.TransactionDate, t.SourceWarehouseID,
		t.DestWarehouseID, t.SupplierID, t.DepartmentID, t.UserID, t.Notes,
	).Scan(&t.CreatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

// CreateDetailTx appends one detail row inside a movement transaction
func (r *TransactionRepository) CreateDetailTx(ctx context.Context, tx *sqlx.Tx, d *TransactionDetail) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}

	query := `
		INSERT INTO transaction_details (id, transaction_id, product_id, inventory_lot_id, quantity, unit_price)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`

	err := tx.QueryRowxContext(ctx, query,
		d.ID, d.TransactionID, d.ProductID, d.InventoryLotID, d.Quantity, d.UnitPrice,
	).Scan(&d.CreatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

// GetByID gets a transaction with its details
func (r *TransactionRepository) GetByID(ctx context.Context, id string) (*Transaction, []*TransactionDetail, error) {
	var t Transaction
	if err := r.db.GetContext(ctx, &t, `SELECT * FROM transactions WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, errors.NotFound("transaction")
		}
		return nil, nil, err
	}

	var details []*TransactionDetail
	query := `SELECT * FROM transaction_details WHERE transaction_id = $1 ORDER BY created_at, id`
	if err := r.db.SelectContext(ctx, &details, query, id); err != nil {
		return nil, nil, err
	}

	return &t, details, nil
}

// ListByProduct lists ledger entries touching a product, newest first
func (r *TransactionRepository) ListByProduct(ctx context.Context, productID string, limit int) ([]*Transaction, error) {
	var transactions []*Transaction
	query := `
		SELECT t.* FROM transactions t
		WHERE EXISTS (
			SELECT 1 FROM transaction_details d
			WHERE d.transaction_id = t.id AND d.product_id = $1
		)
		ORDER BY t.transaction_date DESC, t.created_at DESC
		LIMIT $2
	`
	if err := r.db.SelectContext(ctx, &transactions, query, productID, limit); err != nil {
		return nil, err
	}
	return transactions, nil
}

// SumQuantityByType sums moved quantity for a product over a window, filtered
// by movement type and status. This is the ledger-side half of reconciliation:
// inbound minus outbound over a window must equal the net lot change.
func (r *TransactionRepository) SumQuantityByType(ctx context.Context, productID, txType string, from, to time.Time) (int, error) {
	var total sql.NullInt64
	query := `
		SELECT SUM(d.quantity)
		FROM transaction_details d
		JOIN transactions t ON t.id = d.transaction_id
		WHERE d.product_id = $1 AND t.type = $2 AND t.status = $3
		AND t.transaction_date >= $4 AND t.transaction_date < $5
	`
	if err := r.db.GetContext(ctx, &total, query, productID, txType, StatusCompleted, from, to); err != nil {
		return 0, err
	}
	if !total.Valid {
		return 0, nil
	}
	return int(total.Int64), nil
}
