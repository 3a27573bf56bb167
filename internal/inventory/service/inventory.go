package service

import (
	"context"
	"time"

	"github.com/pharmstock/pharmstock-backend/internal/inventory/repository"
	"github.com/pharmstock/pharmstock-backend/pkg/logger"
)

// InventoryService serves the read side: stock positions, lot listings and
// ledger history. All writes go through MovementService.
type InventoryService struct {
	productRepo   *repository.ProductRepository
	lotRepo       *repository.LotRepository
	txRepo        *repository.TransactionRepository
	issueRepo     *repository.IssueRepository
	userCacheRepo *repository.UserCacheRepository
	engine        *AllocationEngine
	logger        *logger.Logger
}

// NewInventoryService creates a new inventory service
func NewInventoryService(
	productRepo *repository.ProductRepository,
	lotRepo *repository.LotRepository,
	txRepo *repository.TransactionRepository,
	issueRepo *repository.IssueRepository,
	userCacheRepo *repository.UserCacheRepository,
	engine *AllocationEngine,
	log *logger.Logger,
) *InventoryService {
	return &InventoryService{
		productRepo:   productRepo,
		lotRepo:       lotRepo,
		txRepo:        txRepo,
		issueRepo:     issueRepo,
		userCacheRepo: userCacheRepo,
		engine:        engine,
		logger:        log,
	}
}

// ProductStock is a product with its lots in FEFO order
type ProductStock struct {
	*repository.Product
	Lots          []*repository.InventoryLot `json:"lots"`
	NearestExpiry *time.Time                 `json:"nearest_expiry,omitempty"`
}

// GetProductStock returns a product with its lots across warehouses
func (s *InventoryService) GetProductStock(ctx context.Context, productID string) (*ProductStock, error) {
	product, err := s.productRepo.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}

	lots, err := s.lotRepo.ListByProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	stock := &ProductStock{Product: product, Lots: lots}
	for _, lot := range lots {
		if lot.Quantity > 0 && lot.ExpiryDate != nil {
			stock.NearestExpiry = lot.ExpiryDate
			break
		}
	}
	return stock, nil
}

// AvailableStock returns the allocatable quantity for a product in a warehouse
func (s *InventoryService) AvailableStock(ctx context.Context, productID, warehouseID string) (int, error) {
	return s.lotRepo.AvailableStock(ctx, productID, warehouseID)
}

// SuggestAllocations previews the FEFO plan for a quantity without touching
// stock
func (s *InventoryService) SuggestAllocations(ctx context.Context, productID, warehouseID string, required int) ([]LotAllocation, error) {
	return s.engine.SuggestAllocations(ctx, productID, warehouseID, required)
}

// TransactionView is a ledger entry with its detail lines, enriched with the
// cached display name of the user who performed it.
type TransactionView struct {
	*repository.Transaction
	Details         []*repository.TransactionDetail `json:"details"`
	PerformedByName *string                         `json:"performed_by_name,omitempty"`
}

// GetTransaction returns one ledger entry with its detail lines. Name
// enrichment is best effort: a cold user cache leaves the name unset, it
// never fails the read.
func (s *InventoryService) GetTransaction(ctx context.Context, id string) (*TransactionView, error) {
	txn, details, err := s.txRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	view := &TransactionView{Transaction: txn, Details: details}
	cached, err := s.userCacheRepo.Get(ctx, txn.UserID)
	if err != nil {
		s.logger.Warn().Err(err).Str("user_id", txn.UserID).Msg("user cache lookup failed")
	} else if cached != nil {
		name := cached.FullName()
		view.PerformedByName = &name
	}
	return view, nil
}

// MovementTotals is the ledger-side sum of a product's movements over a
// window. Against the lot store it reconciles: inbound minus outbound must
// equal the net change in lot quantities over the same window.
type MovementTotals struct {
	ProductID string    `json:"product_id"`
	From      time.Time `json:"from"`
	To        time.Time `json:"to"`
	Inbound   int       `json:"inbound"`
	Outbound  int       `json:"outbound"`
	Net       int       `json:"net"`
}

// GetMovementTotals sums inbound and outbound ledger quantities for a product
// over [from, to). A zero to defaults to now, a zero from to 30 days before
// to.
func (s *InventoryService) GetMovementTotals(ctx context.Context, productID string, from, to time.Time) (*MovementTotals, error) {
	if to.IsZero() {
		to = time.Now().UTC()
	}
	if from.IsZero() {
		from = to.AddDate(0, 0, -30)
	}

	inbound, err := s.txRepo.SumQuantityByType(ctx, productID, repository.TypeInbound, from, to)
	if err != nil {
		return nil, err
	}
	outbound, err := s.txRepo.SumQuantityByType(ctx, productID, repository.TypeOutbound, from, to)
	if err != nil {
		return nil, err
	}

	return &MovementTotals{
		ProductID: productID,
		From:      from,
		To:        to,
		Inbound:   inbound,
		Outbound:  outbound,
		Net:       inbound - outbound,
	}, nil
}

// ListTransactionsByProduct returns the recent ledger history for a product
func (s *InventoryService) ListTransactionsByProduct(ctx context.Context, productID string, limit int) ([]*repository.Transaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.txRepo.ListByProduct(ctx, productID, limit)
}

// GetIssueDocument returns an issue document by its code
func (s *InventoryService) GetIssueDocument(ctx context.Context, code string) (*repository.IssueDocument, error) {
	return s.issueRepo.GetByCode(ctx, code)
}
