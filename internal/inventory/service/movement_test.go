package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmstock/pharmstock-backend/internal/inventory/repository"
	"github.com/pharmstock/pharmstock-backend/pkg/database"
	"github.com/pharmstock/pharmstock-backend/pkg/errors"
	"github.com/pharmstock/pharmstock-backend/pkg/logger"
	"github.com/pharmstock/pharmstock-backend/pkg/testutil"
)

func testTime() time.Time {
	return time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
}

func newTestMovementService(t *testing.T) (*MovementService, *testutil.MockDB) {
	mockDB := testutil.NewMockDB(t)
	log := logger.New("test", "test")
	db := database.Wrap(mockDB.DB, log)

	productRepo := repository.NewProductRepository(db)
	lotRepo := repository.NewLotRepository(db)
	txRepo := repository.NewTransactionRepository(db)
	issueRepo := repository.NewIssueRepository(db)
	refRepo := repository.NewReferenceRepository(db)
	engine := NewAllocationEngine(lotRepo, log)

	svc := NewMovementService(db, productRepo, lotRepo, txRepo, issueRepo, refRepo, engine, nil, log)
	return svc, mockDB
}

func TestProcessReceipt_RejectsMissingSupplier(t *testing.T) {
	svc, mockDB := newTestMovementService(t)
	defer mockDB.Close()

	req := &ReceiptRequest{
		WarehouseID: uuid.New().String(),
		Lines: []ReceiptLine{
			{ProductID: uuid.New().String(), Quantity: 10},
		},
	}

	_, err := svc.ProcessReceipt(context.Background(), req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrValidation))
}

func TestProcessReceipt_RejectsZeroQuantityLine(t *testing.T) {
	svc, mockDB := newTestMovementService(t)
	defer mockDB.Close()

	req := &ReceiptRequest{
		WarehouseID: uuid.New().String(),
		SupplierID:  uuid.New().String(),
		Lines: []ReceiptLine{
			{ProductID: uuid.New().String(), Quantity: 0},
		},
	}

	_, err := svc.ProcessReceipt(context.Background(), req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrValidation))
}

func TestProcessIssue_RejectsEmptyLines(t *testing.T) {
	svc, mockDB := newTestMovementService(t)
	defer mockDB.Close()

	req := &IssueRequest{
		WarehouseID:  uuid.New().String(),
		DepartmentID: uuid.New().String(),
	}

	_, err := svc.ProcessIssue(context.Background(), req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrValidation))
}

func TestProcessIssue_RejectsManualAllocationMismatch(t *testing.T) {
	svc, mockDB := newTestMovementService(t)
	defer mockDB.Close()

	req := &IssueRequest{
		WarehouseID:  uuid.New().String(),
		DepartmentID: uuid.New().String(),
		Lines: []IssueLine{
			{
				ProductID: uuid.New().String(),
				Quantity:  10,
				Allocations: []ManualAllocation{
					{LotID: uuid.New().String(), Quantity: 4},
				},
			},
		},
	}

	_, err := svc.ProcessIssue(context.Background(), req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrValidation))

	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "allocated quantity must equal line quantity", appErr.Details["lines[0].allocations"])
}

func TestProcessIssue_AggregatesShortagesBeforeAnyWrite(t *testing.T) {
	svc, mockDB := newTestMovementService(t)
	defer mockDB.Close()

	warehouseID := uuid.New().String()
	departmentID := uuid.New().String()
	productID := uuid.New().String()

	mockDB.ExpectQuery(`SELECT EXISTS (SELECT 1 FROM warehouses WHERE id = $1 AND is_active = true)`).
		WithArgs(warehouseID).
		WillReturnRows(testutil.MockRows("exists").AddRow(true))
	mockDB.ExpectQuery(`SELECT EXISTS (SELECT 1 FROM departments WHERE id = $1 AND is_active = true)`).
		WithArgs(departmentID).
		WillReturnRows(testutil.MockRows("exists").AddRow(true))
	mockDB.ExpectQuery(`SELECT * FROM products WHERE id IN`).
		WillReturnRows(testutil.
			MockRows("id", "sku", "name", "unit", "minimum_stock", "current_stock", "is_active", "created_at", "updated_at").
			AddRow(productID, "SKU-1", "Amoxicillin 500mg", "box", 10, 3, true, testTime(), testTime()))
	mockDB.ExpectQuery(`SELECT SUM(quantity) FROM inventory_lots`).
		WillReturnRows(testutil.MockRows("sum").AddRow(3))

	req := &IssueRequest{
		WarehouseID:  warehouseID,
		DepartmentID: departmentID,
		Lines: []IssueLine{
			{ProductID: productID, Quantity: 10},
		},
	}

	_, err := svc.ProcessIssue(context.Background(), req)
	require.Error(t, err)

	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "INSUFFICIENT_STOCK", appErr.Code)
	require.Len(t, appErr.Shortages, 1)
	assert.Equal(t, productID, appErr.Shortages[0].ProductID)
	assert.Equal(t, 10, appErr.Shortages[0].Requested)
	assert.Equal(t, 3, appErr.Shortages[0].Available)
	assert.Equal(t, 7, appErr.Shortages[0].Shortage)

	// the shortage aborts before any transaction opens
	mockDB.ExpectationsWereMet(t)
}

func TestProcessAdjustment_RejectsZeroDelta(t *testing.T) {
	svc, mockDB := newTestMovementService(t)
	defer mockDB.Close()

	req := &AdjustmentRequest{LotID: uuid.New().String(), Delta: 0}

	_, err := svc.ProcessAdjustment(context.Background(), req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrValidation))
}

func TestGenerateLotNumber_Format(t *testing.T) {
	a := generateLotNumber()
	b := generateLotNumber()

	assert.True(t, strings.HasPrefix(a, "LOT-"))
	assert.NotEqual(t, a, b, "generated lot numbers must be unique")
	assert.Len(t, strings.Split(a, "-"), 3)
}
