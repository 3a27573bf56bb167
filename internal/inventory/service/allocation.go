package service

import (
	"context"
	"time"

	"github.com/pharmstock/pharmstock-backend/internal/inventory/repository"
	"github.com/pharmstock/pharmstock-backend/pkg/logger"
)

// LotAllocation is one pick in an allocation plan: take PickQuantity units
// from the given lot.
type LotAllocation struct {
	LotID        string     `json:"lot_id"`
	LotNumber    string     `json:"lot_number"`
	ExpiryDate   *time.Time `json:"expiry_date,omitempty"`
	PickQuantity int        `json:"pick_quantity"`
}

// AllocationEngine plans which lots an issue should draw from. Allocation is
// first-expired-first-out: lots closest to expiry are drained first so stock
// is consumed before it expires.
type AllocationEngine struct {
	lotRepo *repository.LotRepository
	logger  *logger.Logger
}

// NewAllocationEngine creates a new allocation engine
func NewAllocationEngine(lotRepo *repository.LotRepository, log *logger.Logger) *AllocationEngine {
	return &AllocationEngine{
		lotRepo: lotRepo,
		logger:  log,
	}
}

// SuggestAllocations plans a FEFO allocation for the requested quantity from
// the product's lots in a warehouse. The plan is best-effort: when available
// stock cannot cover the request the returned picks sum to less than required,
// and the caller decides whether that is a failure. The engine itself never
// signals insufficiency.
func (e *AllocationEngine) SuggestAllocations(ctx context.Context, productID, warehouseID string, required int) ([]LotAllocation, error) {
	lots, err := e.lotRepo.ListAllocatable(ctx, productID, warehouseID)
	if err != nil {
		return nil, err
	}

	return planFEFO(lots, required), nil
}

// planFEFO walks candidate lots in the order the repository returns them
// (expiry ascending, undated lots last) and greedily drains each lot before
// moving to the next. Zero picks are never emitted; a lot is either skipped
// or contributes at least one unit.
func planFEFO(lots []*repository.InventoryLot, required int) []LotAllocation {
	allocations := make([]LotAllocation, 0, len(lots))
	remaining := required

	for _, lot := range lots {
		if remaining <= 0 {
			break
		}
		if lot.Quantity <= 0 {
			continue
		}

		pick := lot.Quantity
		if pick > remaining {
			pick = remaining
		}

		allocations = append(allocations, LotAllocation{
			LotID:        lot.ID,
			LotNumber:    lot.LotNumber,
			ExpiryDate:   lot.ExpiryDate,
			PickQuantity: pick,
		})
		remaining -= pick
	}

	return allocations
}

// plannedQuantity sums the picks in a plan
func plannedQuantity(allocations []LotAllocation) int {
	total := 0
	for _, a := range allocations {
		total += a.PickQuantity
	}
	return total
}
