package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmstock/pharmstock-backend/internal/inventory/repository"
	"github.com/pharmstock/pharmstock-backend/pkg/errors"
	"github.com/pharmstock/pharmstock-backend/pkg/testutil"
)

type integrationEnv struct {
	suite     *testutil.IntegrationSuite
	movements *MovementService
	inventory *InventoryService
	scanner   *AlertScanner
	lotRepo   *repository.LotRepository
	alertRepo *repository.AlertRepository
	txRepo    *repository.TransactionRepository
	product   testutil.ProductFixture
	warehouse testutil.WarehouseFixture
	supplier  testutil.SupplierFixture
	dept      testutil.DepartmentFixture
}

func newIntegrationEnv(t *testing.T, ctx context.Context) *integrationEnv {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test requires docker")
	}

	suite, err := testutil.NewIntegrationSuite(ctx)
	require.NoError(t, err)
	suite.Reset(t, ctx)

	productRepo := repository.NewProductRepository(suite.DB)
	lotRepo := repository.NewLotRepository(suite.DB)
	txRepo := repository.NewTransactionRepository(suite.DB)
	issueRepo := repository.NewIssueRepository(suite.DB)
	refRepo := repository.NewReferenceRepository(suite.DB)
	alertRepo := repository.NewAlertRepository(suite.DB)
	userCacheRepo := repository.NewUserCacheRepository(suite.DB)
	engine := NewAllocationEngine(lotRepo, suite.Logger)

	env := &integrationEnv{
		suite:     suite,
		movements: NewMovementService(suite.DB, productRepo, lotRepo, txRepo, issueRepo, refRepo, engine, nil, suite.Logger),
		inventory: NewInventoryService(productRepo, lotRepo, txRepo, issueRepo, userCacheRepo, engine, suite.Logger),
		scanner:   NewAlertScanner(productRepo, lotRepo, alertRepo, nil, 30, suite.Logger),
		lotRepo:   lotRepo,
		alertRepo: alertRepo,
		txRepo:    txRepo,
	}

	env.product = suite.Fixtures.Product(func(p *testutil.ProductFixture) { p.MinimumStock = 20 })
	env.warehouse = suite.Fixtures.Warehouse()
	env.supplier = suite.Fixtures.Supplier()
	env.dept = suite.Fixtures.Department()

	testutil.InsertProduct(t, ctx, suite.RawDB, env.product)
	testutil.InsertWarehouse(t, ctx, suite.RawDB, env.warehouse)
	testutil.InsertSupplier(t, ctx, suite.RawDB, env.supplier)
	testutil.InsertDepartment(t, ctx, suite.RawDB, env.dept)

	return env
}

func (e *integrationEnv) receive(t *testing.T, ctx context.Context, lotNumber string, expiry *time.Time, qty int) *MovementResult {
	t.Helper()
	result, err := e.movements.ProcessReceipt(ctx, &ReceiptRequest{
		WarehouseID: e.warehouse.ID,
		SupplierID:  e.supplier.ID,
		Lines: []ReceiptLine{{
			ProductID:  e.product.ID,
			Quantity:   qty,
			UnitCost:   decimal.NewFromFloat(1.25),
			LotNumber:  lotNumber,
			ExpiryDate: expiry,
		}},
	})
	require.NoError(t, err)
	return result
}

func TestMovementLifecycle(t *testing.T) {
	ctx := context.Background()
	env := newIntegrationEnv(t, ctx)

	soon := time.Now().UTC().AddDate(0, 0, 40).Truncate(24 * time.Hour)
	later := time.Now().UTC().AddDate(0, 0, 200).Truncate(24 * time.Hour)

	// receive two lots, the later-expiring one first
	env.receive(t, ctx, "LOT-B", &later, 50)
	env.receive(t, ctx, "LOT-A", &soon, 30)

	// a receipt into the same identity key accumulates, not duplicates
	env.receive(t, ctx, "LOT-A", &soon, 10)
	lots, err := env.lotRepo.ListAllocatable(ctx, env.product.ID, env.warehouse.ID)
	require.NoError(t, err)
	require.Len(t, lots, 2)
	assert.Equal(t, "LOT-A", lots[0].LotNumber, "soonest expiry must come first")
	assert.Equal(t, 40, lots[0].Quantity)

	// issue drains the soonest-expiring lot first and spills into the next
	result, err := env.movements.ProcessIssue(ctx, &IssueRequest{
		WarehouseID:  env.warehouse.ID,
		DepartmentID: env.dept.ID,
		Lines:        []IssueLine{{ProductID: env.product.ID, Quantity: 60}},
	})
	require.NoError(t, err)
	require.Len(t, result.Lines, 1)
	require.Len(t, result.Lines[0].Allocations, 2)
	assert.Equal(t, "LOT-A", result.Lines[0].Allocations[0].LotNumber)
	assert.Equal(t, 40, result.Lines[0].Allocations[0].PickQuantity)
	assert.Equal(t, "LOT-B", result.Lines[0].Allocations[1].LotNumber)
	assert.Equal(t, 20, result.Lines[0].Allocations[1].PickQuantity)
	assert.Regexp(t, `^ISS-\d{8}-\d{4,}$`, result.DocumentCode)

	// the drained lot stays as history at quantity zero
	lots, err = env.lotRepo.ListByProduct(ctx, env.product.ID)
	require.NoError(t, err)
	require.Len(t, lots, 2)
	assert.Equal(t, 0, lots[0].Quantity)
	assert.Equal(t, 30, lots[1].Quantity)

	// the ledger recorded one detail row per pick
	_, details, err := env.txRepo.GetByID(ctx, result.TransactionID)
	require.NoError(t, err)
	assert.Len(t, details, 2)
}

func TestIssueRejectsAggregatedShortage(t *testing.T) {
	ctx := context.Background()
	env := newIntegrationEnv(t, ctx)

	expiry := time.Now().UTC().AddDate(0, 0, 90).Truncate(24 * time.Hour)
	env.receive(t, ctx, "LOT-ONLY", &expiry, 5)

	_, err := env.movements.ProcessIssue(ctx, &IssueRequest{
		WarehouseID:  env.warehouse.ID,
		DepartmentID: env.dept.ID,
		Lines:        []IssueLine{{ProductID: env.product.ID, Quantity: 12}},
	})
	require.Error(t, err)

	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	require.Len(t, appErr.Shortages, 1)
	assert.Equal(t, 12, appErr.Shortages[0].Requested)
	assert.Equal(t, 5, appErr.Shortages[0].Available)
	assert.Equal(t, 7, appErr.Shortages[0].Shortage)

	// zero side effects: the lot is untouched
	lots, err := env.lotRepo.ListAllocatable(ctx, env.product.ID, env.warehouse.ID)
	require.NoError(t, err)
	require.Len(t, lots, 1)
	assert.Equal(t, 5, lots[0].Quantity)
}

func TestAlertScanDetectsAndAutoResolves(t *testing.T) {
	ctx := context.Background()
	env := newIntegrationEnv(t, ctx)

	// stock below minimum triggers a LOW_STOCK alert
	expiry := time.Now().UTC().AddDate(0, 0, 5).Truncate(24 * time.Hour)
	env.receive(t, ctx, "LOT-SHORT", &expiry, 8)

	summary := env.scanner.ScanAll(ctx)
	assert.Empty(t, summary.Errors)
	assert.Equal(t, 1, summary.LowStock)
	assert.Equal(t, 1, summary.ExpiringSoon, "5 days to expiry falls inside the window")

	lowStock, err := env.alertRepo.FindActive(ctx, repository.AlertLowStock, env.product.ID, nil)
	require.NoError(t, err)
	require.NotNil(t, lowStock)
	assert.Equal(t, repository.SeverityHigh, lowStock.Severity, "8 of 20 is within the 50% band")

	// a second scan refreshes in place instead of duplicating
	env.scanner.ScanAll(ctx)
	count, err := env.alertRepo.CountActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	// replenishing above the minimum clears the stock alert on the next scan
	farOut := time.Now().UTC().AddDate(1, 0, 0).Truncate(24 * time.Hour)
	env.receive(t, ctx, "LOT-REFILL", &farOut, 50)

	summary = env.scanner.ScanAll(ctx)
	assert.GreaterOrEqual(t, summary.Resolved, 1)

	resolved, err := env.alertRepo.GetByID(ctx, lowStock.ID)
	require.NoError(t, err)
	assert.Equal(t, repository.AlertStatusResolved, resolved.Status)
	require.NotNil(t, resolved.Notes)
	assert.Contains(t, *resolved.Notes, "[auto-resolved")
	require.NotNil(t, resolved.ResolvedAt)
}

func TestScanFlagsProductWithNoStock(t *testing.T) {
	ctx := context.Background()
	env := newIntegrationEnv(t, ctx)

	// no receipt yet: the product sits at zero stock
	summary := env.scanner.ScanAll(ctx)
	assert.Empty(t, summary.Errors)
	assert.Equal(t, 1, summary.OutOfStock)
	assert.Equal(t, 0, summary.LowStock, "zero stock is out-of-stock, not low")

	alert, err := env.alertRepo.FindActive(ctx, repository.AlertOutOfStock, env.product.ID, nil)
	require.NoError(t, err)
	require.NotNil(t, alert)
	assert.Equal(t, repository.SeverityCritical, alert.Severity)

	count, err := env.alertRepo.CountActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count, "exactly one alert for the empty product")
}

func TestScanFlagsExpiredLotAndAutoResolvesOnDrain(t *testing.T) {
	ctx := context.Background()
	env := newIntegrationEnv(t, ctx)

	// stock above minimum so only the expiry condition fires
	past := time.Now().UTC().AddDate(0, 0, -3).Truncate(24 * time.Hour)
	env.receive(t, ctx, "LOT-STALE", &past, 25)

	lots, err := env.lotRepo.ListAllocatable(ctx, env.product.ID, env.warehouse.ID)
	require.NoError(t, err)
	require.Len(t, lots, 1)
	lotID := lots[0].ID

	summary := env.scanner.ScanAll(ctx)
	assert.Empty(t, summary.Errors)
	assert.Equal(t, 1, summary.Expired)
	assert.Equal(t, 0, summary.ExpiringSoon)

	expired, err := env.alertRepo.FindActive(ctx, repository.AlertExpired, env.product.ID, &lotID)
	require.NoError(t, err)
	require.NotNil(t, expired)
	assert.Equal(t, repository.SeverityCritical, expired.Severity)
	require.NotNil(t, expired.DaysUntilExpiry)
	assert.Equal(t, -3, *expired.DaysUntilExpiry)

	// writing off the stale lot clears the condition on the next scan
	_, err = env.movements.ProcessAdjustment(ctx, &AdjustmentRequest{LotID: lotID, Delta: -25})
	require.NoError(t, err)

	summary = env.scanner.ScanAll(ctx)
	assert.GreaterOrEqual(t, summary.Resolved, 1)

	resolved, err := env.alertRepo.GetByID(ctx, expired.ID)
	require.NoError(t, err)
	assert.Equal(t, repository.AlertStatusResolved, resolved.Status)
}

func TestLedgerReconcilesWithLotQuantities(t *testing.T) {
	ctx := context.Background()
	env := newIntegrationEnv(t, ctx)

	expiry := time.Now().UTC().AddDate(0, 1, 0).Truncate(24 * time.Hour)
	later := time.Now().UTC().AddDate(0, 6, 0).Truncate(24 * time.Hour)
	env.receive(t, ctx, "LOT-1", &expiry, 30)
	env.receive(t, ctx, "LOT-2", &later, 50)

	_, err := env.movements.ProcessIssue(ctx, &IssueRequest{
		WarehouseID:  env.warehouse.ID,
		DepartmentID: env.dept.ID,
		Lines:        []IssueLine{{ProductID: env.product.ID, Quantity: 60}},
	})
	require.NoError(t, err)

	from := time.Now().UTC().Add(-time.Hour)
	to := time.Now().UTC().Add(time.Hour)
	totals, err := env.inventory.GetMovementTotals(ctx, env.product.ID, from, to)
	require.NoError(t, err)
	assert.Equal(t, 80, totals.Inbound)
	assert.Equal(t, 60, totals.Outbound)
	assert.Equal(t, 20, totals.Net)

	// the ledger's net movement must match what the lots actually hold
	lots, err := env.lotRepo.ListByProduct(ctx, env.product.ID)
	require.NoError(t, err)
	held := 0
	for _, lot := range lots {
		held += lot.Quantity
	}
	assert.Equal(t, totals.Net, held)
}
