package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pharmstock/pharmstock-backend/internal/inventory/service"
	"github.com/pharmstock/pharmstock-backend/pkg/actor"
	"github.com/pharmstock/pharmstock-backend/pkg/httputil"
	"github.com/pharmstock/pharmstock-backend/pkg/logger"
)

// AlertHandler handles alert endpoints
type AlertHandler struct {
	alerts  *service.AlertService
	scanner *service.AlertScanner
	logger  *logger.Logger
}

// NewAlertHandler creates a new alert handler
func NewAlertHandler(alerts *service.AlertService, scanner *service.AlertScanner, log *logger.Logger) *AlertHandler {
	return &AlertHandler{
		alerts:  alerts,
		scanner: scanner,
		logger:  log,
	}
}

// List lists alerts with optional status, type and severity filters
func (h *AlertHandler) List(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	status := r.URL.Query().Get("status")
	alertType := r.URL.Query().Get("type")
	severity := r.URL.Query().Get("severity")

	alerts, meta, err := h.alerts.List(r.Context(), status, alertType, severity, page, perPage)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, alerts, meta)
}

// Get returns one alert
func (h *AlertHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	alert, err := h.alerts.Get(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, alert)
}

// Acknowledge acknowledges an alert
func (h *AlertHandler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	act := actor.FromContextOrSystem(r.Context())

	if err := h.alerts.Acknowledge(r.Context(), id, act.ID); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}

// Resolve resolves an alert manually
func (h *AlertHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	act := actor.FromContextOrSystem(r.Context())

	if err := h.alerts.Resolve(r.Context(), id, act.ID); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}

// Delete removes an alert
func (h *AlertHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.alerts.Delete(r.Context(), id); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}

// CountActive returns the number of active alerts
func (h *AlertHandler) CountActive(w http.ResponseWriter, r *http.Request) {
	count, err := h.alerts.CountActive(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]int64{"count": count})
}

// TriggerScan runs a full alert scan on demand
func (h *AlertHandler) TriggerScan(w http.ResponseWriter, r *http.Request) {
	summary := h.scanner.ScanAll(r.Context())
	httputil.JSON(w, http.StatusOK, summary)
}
