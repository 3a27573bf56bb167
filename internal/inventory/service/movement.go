package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/pharmstock/pharmstock-backend/internal/inventory/events"
	"github.com/pharmstock/pharmstock-backend/internal/inventory/repository"
	"github.com/pharmstock/pharmstock-backend/pkg/actor"
	"github.com/pharmstock/pharmstock-backend/pkg/database"
	"github.com/pharmstock/pharmstock-backend/pkg/errors"
	"github.com/pharmstock/pharmstock-backend/pkg/httputil"
	"github.com/pharmstock/pharmstock-backend/pkg/logger"
	"github.com/pharmstock/pharmstock-backend/pkg/messaging"
)

// decrementRetries bounds how many times an issue re-plans a line after a
// conditional lot decrement loses to a concurrent movement.
const decrementRetries = 3

// ReceiptLine is one product entry on a receipt
type ReceiptLine struct {
	ProductID  string          `json:"product_id" validate:"required,uuid4"`
	Quantity   int             `json:"quantity" validate:"required,min=1"`
	UnitCost   decimal.Decimal `json:"unit_cost"`
	LotNumber  string          `json:"lot_number,omitempty"`
	ExpiryDate *time.Time      `json:"expiry_date,omitempty"`
}

// ReceiptRequest records incoming stock from a supplier into a warehouse
type ReceiptRequest struct {
	WarehouseID string        `json:"warehouse_id" validate:"required,uuid4"`
	SupplierID  string        `json:"supplier_id" validate:"required,uuid4"`
	Notes       *string       `json:"notes,omitempty"`
	Lines       []ReceiptLine `json:"lines" validate:"required,min=1,dive"`
}

// ManualAllocation pins part of an issue line to a specific lot, overriding
// FEFO for that line.
type ManualAllocation struct {
	LotID    string `json:"lot_id" validate:"required,uuid4"`
	Quantity int    `json:"quantity" validate:"required,min=1"`
}

// IssueLine is one product entry on an issue. When Allocations is empty the
// engine plans the lots; otherwise the named lots are used as given.
type IssueLine struct {
	ProductID   string             `json:"product_id" validate:"required,uuid4"`
	Quantity    int                `json:"quantity" validate:"required,min=1"`
	Allocations []ManualAllocation `json:"allocations,omitempty" validate:"omitempty,dive"`
}

// IssueRequest dispenses stock from a warehouse to a department
type IssueRequest struct {
	WarehouseID  string      `json:"warehouse_id" validate:"required,uuid4"`
	DepartmentID string      `json:"department_id" validate:"required,uuid4"`
	IssueDate    *time.Time  `json:"issue_date,omitempty"`
	Notes        *string     `json:"notes,omitempty"`
	Lines        []IssueLine `json:"lines" validate:"required,min=1,dive"`
}

// AdjustmentRequest corrects the quantity of a single lot (stocktake, damage,
// loss). Delta may be negative but cannot drive the lot below zero.
type AdjustmentRequest struct {
	LotID  string  `json:"lot_id" validate:"required,uuid4"`
	Delta  int     `json:"delta" validate:"required"`
	Reason *string `json:"reason,omitempty"`
}

// MovementLineResult reports which lots one request line was applied to
type MovementLineResult struct {
	ProductID   string          `json:"product_id"`
	Quantity    int             `json:"quantity"`
	Allocations []LotAllocation `json:"allocations"`
}

// MovementResult is the outcome of a processed movement
type MovementResult struct {
	TransactionID string               `json:"transaction_id"`
	DocumentCode  string               `json:"document_code,omitempty"`
	Lines         []MovementLineResult `json:"lines"`
}

// MovementService processes stock movements. Every movement is a single
// database transaction covering the lot changes, the product stock update and
// the ledger entry: either all of it lands or none does.
type MovementService struct {
	db          *database.DB
	productRepo *repository.ProductRepository
	lotRepo     *repository.LotRepository
	txRepo      *repository.TransactionRepository
	issueRepo   *repository.IssueRepository
	refRepo     *repository.ReferenceRepository
	engine      *AllocationEngine
	publisher   *events.InventoryEventPublisher
	logger      *logger.Logger
}

// NewMovementService creates a new movement service
func NewMovementService(
	db *database.DB,
	productRepo *repository.ProductRepository,
	lotRepo *repository.LotRepository,
	txRepo *repository.TransactionRepository,
	issueRepo *repository.IssueRepository,
	refRepo *repository.ReferenceRepository,
	engine *AllocationEngine,
	publisher *events.InventoryEventPublisher,
	log *logger.Logger,
) *MovementService {
	return &MovementService{
		db:          db,
		productRepo: productRepo,
		lotRepo:     lotRepo,
		txRepo:      txRepo,
		issueRepo:   issueRepo,
		refRepo:     refRepo,
		engine:      engine,
		publisher:   publisher,
		logger:      log,
	}
}

// generateLotNumber builds a lot number for receipts that arrive without one
func generateLotNumber() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:8])
	return fmt.Sprintf("LOT-%s-%s", time.Now().UTC().Format("20060102"), suffix)
}

// ProcessReceipt records incoming stock. A receipt never checks sufficiency;
// it only adds. Lines matching an existing lot identity key
// (product, warehouse, lot number, expiry) accumulate into that lot, anything
// else becomes a new lot.
func (s *MovementService) ProcessReceipt(ctx context.Context, req *ReceiptRequest) (*MovementResult, error) {
	if err := httputil.Validate(req); err != nil {
		return nil, err
	}
	for i, line := range req.Lines {
		if line.UnitCost.IsNegative() {
			return nil, errors.Validation(map[string]string{
				fmt.Sprintf("lines[%d].unit_cost", i): "must not be negative",
			})
		}
	}

	if err := s.refRepo.RequireWarehouse(ctx, req.WarehouseID); err != nil {
		return nil, err
	}
	if err := s.refRepo.RequireSupplier(ctx, req.SupplierID); err != nil {
		return nil, err
	}
	products, err := s.requireProducts(ctx, req.Lines)
	if err != nil {
		return nil, err
	}

	act := actor.FromContextOrSystem(ctx)
	result := &MovementResult{}
	totalQuantity := 0

	err = s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		txn := &repository.Transaction{
			Type:            repository.TypeInbound,
			DestWarehouseID: &req.WarehouseID,
			SupplierID:      &req.SupplierID,
			UserID:          act.ID,
			Notes:           req.Notes,
		}
		if err := s.txRepo.CreateTx(ctx, tx, txn); err != nil {
			return err
		}

		for _, line := range req.Lines {
			lotNumber := line.LotNumber
			if lotNumber == "" {
				lotNumber = generateLotNumber()
			}

			lot, err := s.lotRepo.FindByIdentityTx(ctx, tx, line.ProductID, req.WarehouseID, lotNumber, line.ExpiryDate)
			if err != nil {
				return err
			}
			if lot != nil {
				if err := s.lotRepo.IncrementTx(ctx, tx, lot.ID, line.Quantity); err != nil {
					return err
				}
			} else {
				lot = &repository.InventoryLot{
					ProductID:   line.ProductID,
					WarehouseID: req.WarehouseID,
					LotNumber:   lotNumber,
					ExpiryDate:  line.ExpiryDate,
					Quantity:    line.Quantity,
					UnitCost:    line.UnitCost,
				}
				if err := s.lotRepo.CreateTx(ctx, tx, lot); err != nil {
					return err
				}
			}

			if err := s.productRepo.AdjustCurrentStockTx(ctx, tx, line.ProductID, line.Quantity); err != nil {
				return err
			}

			detail := &repository.TransactionDetail{
				TransactionID:  txn.ID,
				ProductID:      line.ProductID,
				InventoryLotID: &lot.ID,
				Quantity:       line.Quantity,
				UnitPrice:      line.UnitCost,
			}
			if err := s.txRepo.CreateDetailTx(ctx, tx, detail); err != nil {
				return err
			}

			result.Lines = append(result.Lines, MovementLineResult{
				ProductID: line.ProductID,
				Quantity:  line.Quantity,
				Allocations: []LotAllocation{{
					LotID:        lot.ID,
					LotNumber:    lotNumber,
					ExpiryDate:   line.ExpiryDate,
					PickQuantity: line.Quantity,
				}},
			})
			totalQuantity += line.Quantity
		}

		result.TransactionID = txn.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("transaction_id", result.TransactionID).
		Str("warehouse_id", req.WarehouseID).
		Int("lines", len(req.Lines)).
		Int("total_quantity", totalQuantity).
		Msg("receipt processed")

	s.publisher.PublishStockReceived(ctx, &messaging.StockMovementEvent{
		TransactionID: result.TransactionID,
		Type:          repository.TypeInbound,
		WarehouseID:   req.WarehouseID,
		ProductCount:  len(products),
		TotalQuantity: totalQuantity,
		PerformedBy:   act.ID,
	})

	return result, nil
}

// ProcessIssue dispenses stock. Shortages across all lines are collected
// up front and reported together, so the caller sees every insufficient
// product in one response instead of fixing them one at a time. The issue
// itself is all-or-nothing.
func (s *MovementService) ProcessIssue(ctx context.Context, req *IssueRequest) (*MovementResult, error) {
	if err := httputil.Validate(req); err != nil {
		return nil, err
	}
	for i, line := range req.Lines {
		if len(line.Allocations) > 0 {
			manual := 0
			for _, a := range line.Allocations {
				manual += a.Quantity
			}
			if manual != line.Quantity {
				return nil, errors.Validation(map[string]string{
					fmt.Sprintf("lines[%d].allocations", i): "allocated quantity must equal line quantity",
				})
			}
		}
	}

	if err := s.refRepo.RequireWarehouse(ctx, req.WarehouseID); err != nil {
		return nil, err
	}
	if err := s.refRepo.RequireDepartment(ctx, req.DepartmentID); err != nil {
		return nil, err
	}
	products, err := s.requireIssueProducts(ctx, req.Lines)
	if err != nil {
		return nil, err
	}

	if err := s.checkAvailability(ctx, req, products); err != nil {
		return nil, err
	}

	act := actor.FromContextOrSystem(ctx)
	result := &MovementResult{}
	totalQuantity := 0
	issueDate := time.Now().UTC()
	if req.IssueDate != nil {
		issueDate = req.IssueDate.UTC()
	}

	err = s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		txn := &repository.Transaction{
			Type:              repository.TypeOutbound,
			TransactionDate:   issueDate,
			SourceWarehouseID: &req.WarehouseID,
			DepartmentID:      &req.DepartmentID,
			UserID:            act.ID,
			Notes:             req.Notes,
		}
		if err := s.txRepo.CreateTx(ctx, tx, txn); err != nil {
			return err
		}

		totalAmount := decimal.Zero

		for _, line := range req.Lines {
			product := products[line.ProductID]

			var picks []executedPick
			var err error
			if len(line.Allocations) > 0 {
				picks, err = s.drainManual(ctx, tx, line, req.WarehouseID)
			} else {
				picks, err = s.drainFEFO(ctx, tx, line.ProductID, req.WarehouseID, line.Quantity, product.Name)
			}
			if err != nil {
				return err
			}

			lineResult := MovementLineResult{ProductID: line.ProductID, Quantity: line.Quantity}
			for _, pick := range picks {
				detail := &repository.TransactionDetail{
					TransactionID:  txn.ID,
					ProductID:      line.ProductID,
					InventoryLotID: &pick.lot.ID,
					Quantity:       pick.quantity,
					UnitPrice:      pick.lot.UnitCost,
				}
				if err := s.txRepo.CreateDetailTx(ctx, tx, detail); err != nil {
					return err
				}

				totalAmount = totalAmount.Add(pick.lot.UnitCost.Mul(decimal.NewFromInt(int64(pick.quantity))))
				lineResult.Allocations = append(lineResult.Allocations, LotAllocation{
					LotID:        pick.lot.ID,
					LotNumber:    pick.lot.LotNumber,
					ExpiryDate:   pick.lot.ExpiryDate,
					PickQuantity: pick.quantity,
				})
			}

			if err := s.productRepo.AdjustCurrentStockTx(ctx, tx, line.ProductID, -line.Quantity); err != nil {
				return err
			}

			result.Lines = append(result.Lines, lineResult)
			totalQuantity += line.Quantity
		}

		code, err := s.issueRepo.NextDocumentCodeTx(ctx, tx, issueDate)
		if err != nil {
			return err
		}

		doc := &repository.IssueDocument{
			Code:          code,
			WarehouseID:   req.WarehouseID,
			DepartmentID:  req.DepartmentID,
			IssueDate:     issueDate,
			TransactionID: txn.ID,
			TotalAmount:   totalAmount,
			Notes:         req.Notes,
			CreatedBy:     act.ID,
		}
		if err := s.issueRepo.CreateTx(ctx, tx, doc); err != nil {
			return err
		}

		result.TransactionID = txn.ID
		result.DocumentCode = code
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("transaction_id", result.TransactionID).
		Str("document_code", result.DocumentCode).
		Str("warehouse_id", req.WarehouseID).
		Str("department_id", req.DepartmentID).
		Int("total_quantity", totalQuantity).
		Msg("issue processed")

	s.publisher.PublishStockIssued(ctx, &messaging.StockMovementEvent{
		TransactionID: result.TransactionID,
		Type:          repository.TypeOutbound,
		WarehouseID:   req.WarehouseID,
		ProductCount:  len(products),
		TotalQuantity: totalQuantity,
		PerformedBy:   act.ID,
		DocumentCode:  result.DocumentCode,
	})

	return result, nil
}

// ProcessAdjustment corrects a single lot's quantity and records the
// correction in the ledger.
func (s *MovementService) ProcessAdjustment(ctx context.Context, req *AdjustmentRequest) (*MovementResult, error) {
	if err := httputil.Validate(req); err != nil {
		return nil, err
	}
	if req.Delta == 0 {
		return nil, errors.Validation(map[string]string{"delta": "must not be zero"})
	}

	act := actor.FromContextOrSystem(ctx)
	result := &MovementResult{}
	var lot *repository.InventoryLot

	err := s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		var err error
		lot, err = s.lotRepo.GetByIDTx(ctx, tx, req.LotID)
		if err != nil {
			return err
		}

		if req.Delta > 0 {
			err = s.lotRepo.IncrementTx(ctx, tx, lot.ID, req.Delta)
		} else {
			err = s.lotRepo.DecrementTx(ctx, tx, lot.ID, -req.Delta)
		}
		if err != nil {
			return err
		}

		if err := s.productRepo.AdjustCurrentStockTx(ctx, tx, lot.ProductID, req.Delta); err != nil {
			return err
		}

		txn := &repository.Transaction{
			Type:   repository.TypeAdjustment,
			UserID: act.ID,
			Notes:  req.Reason,
		}
		if err := s.txRepo.CreateTx(ctx, tx, txn); err != nil {
			return err
		}

		quantity := req.Delta
		if quantity < 0 {
			quantity = -quantity
		}
		detail := &repository.TransactionDetail{
			TransactionID:  txn.ID,
			ProductID:      lot.ProductID,
			InventoryLotID: &lot.ID,
			Quantity:       quantity,
			UnitPrice:      lot.UnitCost,
		}
		if err := s.txRepo.CreateDetailTx(ctx, tx, detail); err != nil {
			return err
		}

		result.TransactionID = txn.ID
		result.Lines = []MovementLineResult{{
			ProductID: lot.ProductID,
			Quantity:  quantity,
			Allocations: []LotAllocation{{
				LotID:        lot.ID,
				LotNumber:    lot.LotNumber,
				ExpiryDate:   lot.ExpiryDate,
				PickQuantity: quantity,
			}},
		}}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("transaction_id", result.TransactionID).
		Str("lot_id", req.LotID).
		Int("delta", req.Delta).
		Msg("adjustment processed")

	s.publisher.PublishStockAdjusted(ctx, &messaging.StockMovementEvent{
		TransactionID: result.TransactionID,
		Type:          repository.TypeAdjustment,
		WarehouseID:   lot.WarehouseID,
		ProductCount:  1,
		TotalQuantity: req.Delta,
		PerformedBy:   act.ID,
	})

	return result, nil
}

// executedPick is a decrement that has already been applied inside the
// current transaction.
type executedPick struct {
	lot      *repository.InventoryLot
	quantity int
}

// drainFEFO plans and applies FEFO picks for one issue line. When a
// conditional decrement reports the lot changed underneath us, the already
// applied picks are kept and the remainder is re-planned from fresh
// candidates, a bounded number of times.
func (s *MovementService) drainFEFO(ctx context.Context, tx *sqlx.Tx, productID, warehouseID string, required int, productName string) ([]executedPick, error) {
	var executed []executedPick
	remaining := required

	for attempt := 0; attempt <= decrementRetries; attempt++ {
		lots, err := s.lotRepo.ListAllocatableTx(ctx, tx, productID, warehouseID)
		if err != nil {
			return nil, err
		}

		plan := planFEFO(lots, remaining)
		if plannedQuantity(plan) < remaining {
			return nil, s.shortage(productID, productName, required, required-remaining+plannedQuantity(plan))
		}

		conflicted := false
		for _, pick := range plan {
			err := s.lotRepo.DecrementTx(ctx, tx, pick.LotID, pick.PickQuantity)
			if errors.Is(err, errors.ErrConflict) {
				s.logger.Warn().
					Str("product_id", productID).
					Str("lot_id", pick.LotID).
					Int("attempt", attempt+1).
					Msg("lot changed during allocation, re-planning")
				conflicted = true
				break
			}
			if err != nil {
				return nil, err
			}

			lot := findLot(lots, pick.LotID)
			executed = append(executed, executedPick{lot: lot, quantity: pick.PickQuantity})
			remaining -= pick.PickQuantity
		}

		if !conflicted {
			return executed, nil
		}
	}

	return nil, errors.Conflict("stock allocation kept failing against concurrent movements, retry the issue")
}

// drainManual applies caller-pinned allocations for one issue line. Manual
// picks name exact lots, so a conflict is surfaced instead of re-planned.
func (s *MovementService) drainManual(ctx context.Context, tx *sqlx.Tx, line IssueLine, warehouseID string) ([]executedPick, error) {
	var executed []executedPick

	for _, alloc := range line.Allocations {
		lot, err := s.lotRepo.GetByIDTx(ctx, tx, alloc.LotID)
		if err != nil {
			return nil, err
		}
		if lot.ProductID != line.ProductID || lot.WarehouseID != warehouseID {
			return nil, errors.BadRequest(fmt.Sprintf("lot %s does not hold this product in the requested warehouse", lot.LotNumber))
		}
		if lot.Quantity < alloc.Quantity {
			return nil, errors.Conflict(fmt.Sprintf("lot %s holds %d units, %d requested", lot.LotNumber, lot.Quantity, alloc.Quantity))
		}

		if err := s.lotRepo.DecrementTx(ctx, tx, lot.ID, alloc.Quantity); err != nil {
			return nil, err
		}
		executed = append(executed, executedPick{lot: lot, quantity: alloc.Quantity})
	}

	return executed, nil
}

// checkAvailability aggregates requested quantities per product and compares
// them against available stock, reporting every shortage at once.
func (s *MovementService) checkAvailability(ctx context.Context, req *IssueRequest, products map[string]*repository.Product) error {
	requested := make(map[string]int)
	order := make([]string, 0, len(req.Lines))
	for _, line := range req.Lines {
		if _, seen := requested[line.ProductID]; !seen {
			order = append(order, line.ProductID)
		}
		requested[line.ProductID] += line.Quantity
	}

	var shortages []errors.StockShortage
	for _, productID := range order {
		available, err := s.lotRepo.AvailableStock(ctx, productID, req.WarehouseID)
		if err != nil {
			return err
		}
		if available < requested[productID] {
			shortages = append(shortages, errors.StockShortage{
				ProductID:   productID,
				ProductName: products[productID].Name,
				Requested:   requested[productID],
				Available:   available,
				Shortage:    requested[productID] - available,
			})
		}
	}

	if len(shortages) > 0 {
		return errors.InsufficientStock(shortages)
	}
	return nil
}

func (s *MovementService) shortage(productID, productName string, requested, available int) error {
	return errors.InsufficientStock([]errors.StockShortage{{
		ProductID:   productID,
		ProductName: productName,
		Requested:   requested,
		Available:   available,
		Shortage:    requested - available,
	}})
}

func (s *MovementService) requireProducts(ctx context.Context, lines []ReceiptLine) (map[string]*repository.Product, error) {
	ids := make([]string, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}
	return s.lookupProducts(ctx, ids)
}

func (s *MovementService) requireIssueProducts(ctx context.Context, lines []IssueLine) (map[string]*repository.Product, error) {
	ids := make([]string, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}
	return s.lookupProducts(ctx, ids)
}

// lookupProducts resolves the referenced products and rejects the request if
// any is missing or inactive.
func (s *MovementService) lookupProducts(ctx context.Context, ids []string) (map[string]*repository.Product, error) {
	products, err := s.productRepo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	for _, id := range ids {
		product, ok := products[id]
		if !ok {
			return nil, errors.NotFound("product")
		}
		if !product.IsActive {
			return nil, errors.BadRequest(fmt.Sprintf("product %s is inactive", product.SKU))
		}
	}
	return products, nil
}

// findLot locates a lot in an already fetched candidate list
func findLot(lots []*repository.InventoryLot, id string) *repository.InventoryLot {
	for _, lot := range lots {
		if lot.ID == id {
			return lot
		}
	}
	return nil
}
