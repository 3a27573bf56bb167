package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmstock/pharmstock-backend/internal/inventory/repository"
)

func datePtr(year int, month time.Month, day int) *time.Time {
	d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return &d
}

func lot(id string, expiry *time.Time, quantity int) *repository.InventoryLot {
	return &repository.InventoryLot{
		ID:         id,
		LotNumber:  "LN-" + id,
		ExpiryDate: expiry,
		Quantity:   quantity,
	}
}

func TestPlanFEFO_DrainsInOrder(t *testing.T) {
	lots := []*repository.InventoryLot{
		lot("a", datePtr(2026, 3, 1), 30),
		lot("b", datePtr(2026, 6, 1), 50),
		lot("c", nil, 40),
	}

	plan := planFEFO(lots, 60)

	require.Len(t, plan, 2)
	assert.Equal(t, "a", plan[0].LotID)
	assert.Equal(t, 30, plan[0].PickQuantity)
	assert.Equal(t, "b", plan[1].LotID)
	assert.Equal(t, 30, plan[1].PickQuantity)
	assert.Equal(t, 60, plannedQuantity(plan))
}

func TestPlanFEFO_ExactSingleLot(t *testing.T) {
	lots := []*repository.InventoryLot{
		lot("a", datePtr(2026, 3, 1), 30),
		lot("b", datePtr(2026, 6, 1), 50),
	}

	plan := planFEFO(lots, 30)

	require.Len(t, plan, 1)
	assert.Equal(t, "a", plan[0].LotID)
	assert.Equal(t, 30, plan[0].PickQuantity)
}

func TestPlanFEFO_SpillsIntoUndatedLot(t *testing.T) {
	lots := []*repository.InventoryLot{
		lot("dated", datePtr(2026, 3, 1), 10),
		lot("undated", nil, 100),
	}

	plan := planFEFO(lots, 25)

	require.Len(t, plan, 2)
	assert.Equal(t, "dated", plan[0].LotID)
	assert.Equal(t, 10, plan[0].PickQuantity)
	assert.Equal(t, "undated", plan[1].LotID)
	assert.Equal(t, 15, plan[1].PickQuantity)
}

func TestPlanFEFO_BestEffortOnShortfall(t *testing.T) {
	lots := []*repository.InventoryLot{
		lot("a", datePtr(2026, 3, 1), 5),
		lot("b", datePtr(2026, 4, 1), 7),
	}

	plan := planFEFO(lots, 100)

	require.Len(t, plan, 2)
	assert.Equal(t, 12, plannedQuantity(plan))
}

func TestPlanFEFO_SkipsDrainedLots(t *testing.T) {
	lots := []*repository.InventoryLot{
		lot("empty", datePtr(2026, 1, 1), 0),
		lot("full", datePtr(2026, 2, 1), 20),
	}

	plan := planFEFO(lots, 10)

	require.Len(t, plan, 1)
	assert.Equal(t, "full", plan[0].LotID)
}

func TestPlanFEFO_NoCandidates(t *testing.T) {
	plan := planFEFO(nil, 10)
	assert.Empty(t, plan)
}

func TestPlanFEFO_ZeroRequired(t *testing.T) {
	lots := []*repository.InventoryLot{
		lot("a", datePtr(2026, 3, 1), 5),
	}

	plan := planFEFO(lots, 0)
	assert.Empty(t, plan)
}
