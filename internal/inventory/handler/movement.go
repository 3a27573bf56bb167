package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pharmstock/pharmstock-backend/internal/inventory/service"
	"github.com/pharmstock/pharmstock-backend/pkg/errors"
	"github.com/pharmstock/pharmstock-backend/pkg/httputil"
	"github.com/pharmstock/pharmstock-backend/pkg/logger"
)

// MovementHandler handles stock movement endpoints
type MovementHandler struct {
	movements *service.MovementService
	inventory *service.InventoryService
	logger    *logger.Logger
}

// NewMovementHandler creates a new movement handler
func NewMovementHandler(movements *service.MovementService, inventory *service.InventoryService, log *logger.Logger) *MovementHandler {
	return &MovementHandler{
		movements: movements,
		inventory: inventory,
		logger:    log,
	}
}

// Receipt processes a stock receipt
func (h *MovementHandler) Receipt(w http.ResponseWriter, r *http.Request) {
	var req service.ReceiptRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	result, err := h.movements.ProcessReceipt(r.Context(), &req)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, result)
}

// Issue processes a stock issue
func (h *MovementHandler) Issue(w http.ResponseWriter, r *http.Request) {
	var req service.IssueRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	result, err := h.movements.ProcessIssue(r.Context(), &req)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, result)
}

// Adjustment processes a lot quantity correction
func (h *MovementHandler) Adjustment(w http.ResponseWriter, r *http.Request) {
	var req service.AdjustmentRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	result, err := h.movements.ProcessAdjustment(r.Context(), &req)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, result)
}

// GetTransaction returns one ledger entry with its details
func (h *MovementHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	view, err := h.inventory.GetTransaction(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, view)
}

// ListTransactions lists recent ledger entries for a product
func (h *MovementHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productID")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	transactions, err := h.inventory.ListTransactionsByProduct(r.Context(), productID, limit)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, transactions)
}

// GetMovementTotals sums a product's ledger movements over a date window
func (h *MovementHandler) GetMovementTotals(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productID")

	from, err := parseDateParam(r, "from")
	if err != nil {
		httputil.Error(w, err)
		return
	}
	to, err := parseDateParam(r, "to")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	totals, err := h.inventory.GetMovementTotals(r.Context(), productID, from, to)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, totals)
}

// parseDateParam reads an optional YYYY-MM-DD query parameter; absent means
// the zero time.
func parseDateParam(r *http.Request, name string) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, nil
	}
	parsed, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, errors.BadRequest(name + " must be a date in YYYY-MM-DD format")
	}
	return parsed, nil
}

// GetIssueDocument returns an issue document by code
func (h *MovementHandler) GetIssueDocument(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	doc, err := h.inventory.GetIssueDocument(r.Context(), code)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, doc)
}
