package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmstock/pharmstock-backend/internal/inventory/repository"
	"github.com/pharmstock/pharmstock-backend/pkg/database"
	"github.com/pharmstock/pharmstock-backend/pkg/logger"
	"github.com/pharmstock/pharmstock-backend/pkg/testutil"
)

func newTestInventoryService(mockDB *testutil.MockDB) *InventoryService {
	log := logger.New("test", "test")
	db := database.Wrap(mockDB.DB, log)
	lotRepo := repository.NewLotRepository(db)
	return NewInventoryService(
		repository.NewProductRepository(db),
		lotRepo,
		repository.NewTransactionRepository(db),
		repository.NewIssueRepository(db),
		repository.NewUserCacheRepository(db),
		NewAllocationEngine(lotRepo, log),
		log,
	)
}

func expectTransactionWithDetails(mockDB *testutil.MockDB, id, userID string) {
	now := time.Now().UTC()
	dest := "w-1"
	supplier := "s-1"
	mockDB.ExpectQuery(`SELECT * FROM transactions WHERE id = $1`).
		WithArgs(id).
		WillReturnRows(testutil.MockRows(
			"id", "type", "status", "transaction_date", "source_warehouse_id",
			"dest_warehouse_id", "supplier_id", "department_id", "user_id", "notes", "created_at",
		).AddRow(id, repository.TypeInbound, repository.StatusCompleted, now, nil, dest, supplier, nil, userID, nil, now))

	mockDB.ExpectQuery(`SELECT * FROM transaction_details WHERE transaction_id = $1`).
		WithArgs(id).
		WillReturnRows(testutil.MockRows(
			"id", "transaction_id", "product_id", "inventory_lot_id", "quantity", "unit_price", "created_at",
		).AddRow("d-1", id, "p-1", "lot-1", 5, "1.25", now))
}

func TestGetTransaction_ResolvesPerformedByName(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()
	svc := newTestInventoryService(mockDB)

	expectTransactionWithDetails(mockDB, "tx-1", "user-7")
	mockDB.ExpectQuery(`SELECT user_id, first_name, last_name, email, role_name FROM user_cache WHERE user_id = $1`).
		WithArgs("user-7").
		WillReturnRows(testutil.MockRows("user_id", "first_name", "last_name", "email", "role_name").
			AddRow("user-7", "Ada", "Lovelace", nil, nil))

	view, err := svc.GetTransaction(context.Background(), "tx-1")
	require.NoError(t, err)
	require.NotNil(t, view.PerformedByName)
	assert.Equal(t, "Ada Lovelace", *view.PerformedByName)
	assert.Len(t, view.Details, 1)
	mockDB.ExpectationsWereMet(t)
}

func TestGetTransaction_ColdCacheLeavesNameUnset(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()
	svc := newTestInventoryService(mockDB)

	expectTransactionWithDetails(mockDB, "tx-2", "user-9")
	mockDB.ExpectQuery(`SELECT user_id, first_name, last_name, email, role_name FROM user_cache WHERE user_id = $1`).
		WithArgs("user-9").
		WillReturnRows(testutil.MockRows("user_id", "first_name", "last_name", "email", "role_name"))

	view, err := svc.GetTransaction(context.Background(), "tx-2")
	require.NoError(t, err)
	assert.Nil(t, view.PerformedByName)
	mockDB.ExpectationsWereMet(t)
}
