package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmstock/pharmstock-backend/pkg/database"
	"github.com/pharmstock/pharmstock-backend/pkg/errors"
	"github.com/pharmstock/pharmstock-backend/pkg/logger"
	"github.com/pharmstock/pharmstock-backend/pkg/testutil"
)

func newTestLotRepo(t *testing.T) (*LotRepository, *testutil.MockDB) {
	mockDB := testutil.NewMockDB(t)
	log := logger.New("test", "test")
	return NewLotRepository(database.Wrap(mockDB.DB, log)), mockDB
}

func TestDecrementTx_ConflictWhenStockChanged(t *testing.T) {
	repo, mockDB := newTestLotRepo(t)
	defer mockDB.Close()

	mockDB.ExpectBegin()
	mockDB.ExpectExec(`UPDATE inventory_lots`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	tx, err := mockDB.DB.Beginx()
	require.NoError(t, err)

	err = repo.DecrementTx(context.Background(), tx, "lot-1", 5)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConflict))
}

func TestDecrementTx_AppliesWhenStockSuffices(t *testing.T) {
	repo, mockDB := newTestLotRepo(t)
	defer mockDB.Close()

	mockDB.ExpectBegin()
	mockDB.ExpectExec(`UPDATE inventory_lots`).
		WithArgs("lot-1", 5).
		WillReturnResult(sqlmock.NewResult(0, 1))

	tx, err := mockDB.DB.Beginx()
	require.NoError(t, err)

	err = repo.DecrementTx(context.Background(), tx, "lot-1", 5)
	assert.NoError(t, err)
	mockDB.ExpectationsWereMet(t)
}

func TestIncrementTx_NotFoundForUnknownLot(t *testing.T) {
	repo, mockDB := newTestLotRepo(t)
	defer mockDB.Close()

	mockDB.ExpectBegin()
	mockDB.ExpectExec(`UPDATE inventory_lots`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	tx, err := mockDB.DB.Beginx()
	require.NoError(t, err)

	err = repo.IncrementTx(context.Background(), tx, "missing", 5)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestFindByIdentityTx_NilWhenAbsent(t *testing.T) {
	repo, mockDB := newTestLotRepo(t)
	defer mockDB.Close()

	mockDB.ExpectBegin()
	mockDB.ExpectQuery(`SELECT * FROM inventory_lots`).
		WillReturnRows(testutil.MockRows(
			"id", "product_id", "warehouse_id", "lot_number",
			"expiry_date", "quantity", "unit_cost", "created_at", "updated_at",
		))

	tx, err := mockDB.DB.Beginx()
	require.NoError(t, err)

	lot, err := repo.FindByIdentityTx(context.Background(), tx, "p1", "w1", "LOT-1", nil)
	require.NoError(t, err)
	assert.Nil(t, lot)
}

func TestAvailableStock_ZeroWhenNoLots(t *testing.T) {
	repo, mockDB := newTestLotRepo(t)
	defer mockDB.Close()

	mockDB.ExpectQuery(`SELECT SUM(quantity) FROM inventory_lots`).
		WillReturnRows(testutil.MockRows("sum").AddRow(nil))

	total, err := repo.AvailableStock(context.Background(), "p1", "w1")
	require.NoError(t, err)
	assert.Equal(t, 0, total)
}
