package testutil

import (
	"context"
	"sync"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/pharmstock/pharmstock-backend/pkg/database"
	"github.com/pharmstock/pharmstock-backend/pkg/logger"
)

var (
	// Global test container (shared across all integration tests)
	globalContainer *PostgresContainer
	globalDB        *sqlx.DB
	containerOnce   sync.Once
	containerErr    error
)

// inventorySchema is the full inventory schema applied to the test database.
// Kept in one place so repository tests and service tests run against the
// same shape the migrations produce.
const inventorySchema = `
CREATE TABLE IF NOT EXISTS products (
	id UUID PRIMARY KEY,
	sku TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL,
	unit TEXT NOT NULL DEFAULT 'unit',
	minimum_stock INTEGER NOT NULL DEFAULT 0,
	current_stock INTEGER NOT NULL DEFAULT 0,
	is_active BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS warehouses (
	id UUID PRIMARY KEY,
	name TEXT NOT NULL,
	is_active BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS suppliers (
	id UUID PRIMARY KEY,
	name TEXT NOT NULL,
	is_active BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS departments (
	id UUID PRIMARY KEY,
	name TEXT NOT NULL,
	is_active BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS inventory_lots (
	id UUID PRIMARY KEY,
	product_id UUID NOT NULL REFERENCES products(id),
	warehouse_id UUID NOT NULL REFERENCES warehouses(id),
	lot_number TEXT NOT NULL,
	expiry_date DATE,
	quantity INTEGER NOT NULL DEFAULT 0,
	unit_cost NUMERIC(12,4) NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	CONSTRAINT quantity_non_negative CHECK (quantity >= 0),
	CONSTRAINT lot_identity UNIQUE NULLS NOT DISTINCT (product_id, warehouse_id, lot_number, expiry_date)
);

CREATE TABLE IF NOT EXISTS transactions (
	id UUID PRIMARY KEY,
	type TEXT NOT NULL,
	status TEXT NOT NULL,
	transaction_date TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	source_warehouse_id UUID REFERENCES warehouses(id),
	dest_warehouse_id UUID REFERENCES warehouses(id),
	supplier_id UUID REFERENCES suppliers(id),
	department_id UUID REFERENCES departments(id),
	user_id TEXT NOT NULL,
	notes TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS transaction_details (
	id UUID PRIMARY KEY,
	transaction_id UUID NOT NULL REFERENCES transactions(id),
	product_id UUID NOT NULL REFERENCES products(id),
	inventory_lot_id UUID REFERENCES inventory_lots(id),
	quantity INTEGER NOT NULL CHECK (quantity >= 1),
	unit_price NUMERIC(12,4) NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS alerts (
	id UUID PRIMARY KEY,
	alert_type TEXT NOT NULL,
	severity TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'ACTIVE',
	product_id UUID NOT NULL,
	product_name TEXT NOT NULL,
	warehouse_id UUID,
	inventory_lot_id UUID,
	lot_number TEXT,
	message TEXT NOT NULL,
	expiry_date DATE,
	days_until_expiry INTEGER,
	current_stock INTEGER,
	minimum_stock INTEGER,
	acknowledged_by TEXT,
	acknowledged_at TIMESTAMPTZ,
	resolved_by TEXT,
	resolved_at TIMESTAMPTZ,
	notes TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS issue_documents (
	id UUID PRIMARY KEY,
	code TEXT NOT NULL UNIQUE,
	warehouse_id UUID NOT NULL REFERENCES warehouses(id),
	department_id UUID NOT NULL REFERENCES departments(id),
	issue_date TIMESTAMPTZ NOT NULL,
	transaction_id UUID NOT NULL REFERENCES transactions(id),
	total_amount NUMERIC(14,4) NOT NULL DEFAULT 0,
	notes TEXT,
	created_by TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS document_sequences (
	seq_date DATE PRIMARY KEY,
	last_seq INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS user_cache (
	user_id TEXT PRIMARY KEY,
	first_name TEXT NOT NULL,
	last_name TEXT NOT NULL,
	email TEXT,
	role_name TEXT,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// IntegrationSuite provides a base for integration tests with real PostgreSQL
type IntegrationSuite struct {
	Container *PostgresContainer
	RawDB     *sqlx.DB
	DB        *database.DB
	Fixtures  *FixtureFactory
	Logger    *logger.Logger
}

// NewIntegrationSuite creates a new integration test suite backed by a shared
// PostgreSQL container with the inventory schema applied.
//
// Usage:
//
//	func TestMain(m *testing.M) {
//	    ctx := context.Background()
//	    suite, err := testutil.NewIntegrationSuite(ctx)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    code := m.Run()
//	    os.Exit(code)
//	}
func NewIntegrationSuite(ctx context.Context) (*IntegrationSuite, error) {
	container, db, err := getOrCreateContainer(ctx)
	if err != nil {
		return nil, err
	}

	log := logger.New("test", "test")
	wrappedDB, err := database.NewWithDSN(container.DSN, log)
	if err != nil {
		return nil, err
	}

	if _, err := db.ExecContext(ctx, inventorySchema); err != nil {
		return nil, err
	}

	return &IntegrationSuite{
		Container: container,
		RawDB:     db,
		DB:        wrappedDB,
		Fixtures:  NewFixtureFactory(),
		Logger:    log,
	}, nil
}

// getOrCreateContainer returns the shared test container
func getOrCreateContainer(ctx context.Context) (*PostgresContainer, *sqlx.DB, error) {
	containerOnce.Do(func() {
		globalContainer, containerErr = NewPostgresContainer(ctx, DefaultPostgresConfig())
		if containerErr != nil {
			return
		}
		globalDB, containerErr = globalContainer.Connect(ctx)
	})

	return globalContainer, globalDB, containerErr
}

// Reset truncates all inventory tables so each test starts clean
func (s *IntegrationSuite) Reset(t *testing.T, ctx context.Context) {
	t.Helper()
	_, err := s.RawDB.ExecContext(ctx, `
		TRUNCATE user_cache, document_sequences, issue_documents, alerts,
			transaction_details, transactions, inventory_lots,
			departments, suppliers, warehouses, products CASCADE
	`)
	if err != nil {
		t.Fatalf("failed to reset test database: %v", err)
	}
}

// Cleanup terminates the container resources owned by the suite
func (s *IntegrationSuite) Cleanup(ctx context.Context) {
	if s.DB != nil {
		s.DB.Close()
	}
}
