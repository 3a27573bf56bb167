package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// ProductFixture represents test product data
type ProductFixture struct {
	ID           string
	SKU          string
	Name         string
	Unit         string
	MinimumStock int
	CurrentStock int
	IsActive     bool
}

// WarehouseFixture represents test warehouse data
type WarehouseFixture struct {
	ID       string
	Name     string
	IsActive bool
}

// SupplierFixture represents test supplier data
type SupplierFixture struct {
	ID       string
	Name     string
	IsActive bool
}

// DepartmentFixture represents test department data
type DepartmentFixture struct {
	ID       string
	Name     string
	IsActive bool
}

// LotFixture represents test inventory lot data
type LotFixture struct {
	ID          string
	ProductID   string
	WarehouseID string
	LotNumber   string
	ExpiryDate  *time.Time
	Quantity    int
	UnitCost    decimal.Decimal
}

// FixtureFactory creates test fixtures with sensible defaults
type FixtureFactory struct {
	sequence int
}

// NewFixtureFactory creates a new fixture factory
func NewFixtureFactory() *FixtureFactory {
	return &FixtureFactory{sequence: 0}
}

// nextSeq returns the next sequence number for unique values
func (f *FixtureFactory) nextSeq() int {
	f.sequence++
	return f.sequence
}

// Product creates a product fixture with defaults
func (f *FixtureFactory) Product(opts ...func(*ProductFixture)) ProductFixture {
	seq := f.nextSeq()
	p := ProductFixture{
		ID:           uuid.New().String(),
		SKU:          fmt.Sprintf("SKU-%04d", seq),
		Name:         fmt.Sprintf("Test Product %d", seq),
		Unit:         "box",
		MinimumStock: 10,
		CurrentStock: 0,
		IsActive:     true,
	}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// Warehouse creates a warehouse fixture with defaults
func (f *FixtureFactory) Warehouse(opts ...func(*WarehouseFixture)) WarehouseFixture {
	seq := f.nextSeq()
	w := WarehouseFixture{
		ID:       uuid.New().String(),
		Name:     fmt.Sprintf("Warehouse %d", seq),
		IsActive: true,
	}
	for _, opt := range opts {
		opt(&w)
	}
	return w
}

// Supplier creates a supplier fixture with defaults
func (f *FixtureFactory) Supplier(opts ...func(*SupplierFixture)) SupplierFixture {
	seq := f.nextSeq()
	s := SupplierFixture{
		ID:       uuid.New().String(),
		Name:     fmt.Sprintf("Supplier %d", seq),
		IsActive: true,
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// Department creates a department fixture with defaults
func (f *FixtureFactory) Department(opts ...func(*DepartmentFixture)) DepartmentFixture {
	seq := f.nextSeq()
	d := DepartmentFixture{
		ID:       uuid.New().String(),
		Name:     fmt.Sprintf("Department %d", seq),
		IsActive: true,
	}
	for _, opt := range opts {
		opt(&d)
	}
	return d
}

// Lot creates a lot fixture with defaults. Expiry defaults to 90 days out.
func (f *FixtureFactory) Lot(productID, warehouseID string, opts ...func(*LotFixture)) LotFixture {
	seq := f.nextSeq()
	expiry := time.Now().UTC().AddDate(0, 0, 90)
	l := LotFixture{
		ID:          uuid.New().String(),
		ProductID:   productID,
		WarehouseID: warehouseID,
		LotNumber:   fmt.Sprintf("LOT-TEST-%04d", seq),
		ExpiryDate:  &expiry,
		Quantity:    100,
		UnitCost:    decimal.NewFromFloat(2.50),
	}
	for _, opt := range opts {
		opt(&l)
	}
	return l
}

// InsertProduct persists a product fixture
func InsertProduct(t *testing.T, ctx context.Context, db *sqlx.DB, p ProductFixture) {
	t.Helper()
	_, err := db.ExecContext(ctx, `
		INSERT INTO products (id, sku, name, unit, minimum_stock, current_stock, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, p.ID, p.SKU, p.Name, p.Unit, p.MinimumStock, p.CurrentStock, p.IsActive)
	if err != nil {
		t.Fatalf("failed to insert product fixture: %v", err)
	}
}

// InsertWarehouse persists a warehouse fixture
func InsertWarehouse(t *testing.T, ctx context.Context, db *sqlx.DB, w WarehouseFixture) {
	t.Helper()
	_, err := db.ExecContext(ctx, `INSERT INTO warehouses (id, name, is_active) VALUES ($1, $2, $3)`, w.ID, w.Name, w.IsActive)
	if err != nil {
		t.Fatalf("failed to insert warehouse fixture: %v", err)
	}
}

// InsertSupplier persists a supplier fixture
func InsertSupplier(t *testing.T, ctx context.Context, db *sqlx.DB, s SupplierFixture) {
	t.Helper()
	_, err := db.ExecContext(ctx, `INSERT INTO suppliers (id, name, is_active) VALUES ($1, $2, $3)`, s.ID, s.Name, s.IsActive)
	if err != nil {
		t.Fatalf("failed to insert supplier fixture: %v", err)
	}
}

// InsertDepartment persists a department fixture
func InsertDepartment(t *testing.T, ctx context.Context, db *sqlx.DB, d DepartmentFixture) {
	t.Helper()
	_, err := db.ExecContext(ctx, `INSERT INTO departments (id, name, is_active) VALUES ($1, $2, $3)`, d.ID, d.Name, d.IsActive)
	if err != nil {
		t.Fatalf("failed to insert department fixture: %v", err)
	}
}

// InsertLot persists a lot fixture
func InsertLot(t *testing.T, ctx context.Context, db *sqlx.DB, l LotFixture) {
	t.Helper()
	_, err := db.ExecContext(ctx, `
		INSERT INTO inventory_lots (id, product_id, warehouse_id, lot_number, expiry_date, quantity, unit_cost)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, l.ID, l.ProductID, l.WarehouseID, l.LotNumber, l.ExpiryDate, l.Quantity, l.UnitCost)
	if err != nil {
		t.Fatalf("failed to insert lot fixture: %v", err)
	}
}
