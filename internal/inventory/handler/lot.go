package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pharmstock/pharmstock-backend/internal/inventory/service"
	"github.com/pharmstock/pharmstock-backend/pkg/errors"
	"github.com/pharmstock/pharmstock-backend/pkg/httputil"
	"github.com/pharmstock/pharmstock-backend/pkg/logger"
)

// LotHandler handles stock position and allocation preview endpoints
type LotHandler struct {
	inventory *service.InventoryService
	logger    *logger.Logger
}

// NewLotHandler creates a new lot handler
func NewLotHandler(inventory *service.InventoryService, log *logger.Logger) *LotHandler {
	return &LotHandler{
		inventory: inventory,
		logger:    log,
	}
}

// GetProductStock returns a product with its lots in FEFO order
func (h *LotHandler) GetProductStock(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productID")

	stock, err := h.inventory.GetProductStock(r.Context(), productID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, stock)
}

// GetAvailability returns the allocatable quantity for a product in a
// warehouse
func (h *LotHandler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productID")
	warehouseID := r.URL.Query().Get("warehouse_id")
	if warehouseID == "" {
		httputil.Error(w, errors.BadRequest("warehouse_id query parameter is required"))
		return
	}

	available, err := h.inventory.AvailableStock(r.Context(), productID, warehouseID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]interface{}{
		"product_id":   productID,
		"warehouse_id": warehouseID,
		"available":    available,
	})
}

// SuggestAllocations previews the FEFO plan for a requested quantity
func (h *LotHandler) SuggestAllocations(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productID")
	warehouseID := r.URL.Query().Get("warehouse_id")
	if warehouseID == "" {
		httputil.Error(w, errors.BadRequest("warehouse_id query parameter is required"))
		return
	}

	quantity, err := strconv.Atoi(r.URL.Query().Get("quantity"))
	if err != nil || quantity < 1 {
		httputil.Error(w, errors.BadRequest("quantity must be a positive integer"))
		return
	}

	allocations, err := h.inventory.SuggestAllocations(r.Context(), productID, warehouseID, quantity)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, allocations)
}
