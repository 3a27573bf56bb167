package service

import (
	"context"
	"fmt"
	"time"

	"github.com/pharmstock/pharmstock-backend/internal/inventory/events"
	"github.com/pharmstock/pharmstock-backend/internal/inventory/repository"
	"github.com/pharmstock/pharmstock-backend/pkg/logger"
)

// ScanError records a single item failure inside a scan; the sweep continues
// past it.
type ScanError struct {
	Stage   string `json:"stage"`
	Target  string `json:"target"`
	Message string `json:"message"`
}

// ScanSummary reports what one full scan pass found and resolved
type ScanSummary struct {
	LowStock     int         `json:"low_stock"`
	OutOfStock   int         `json:"out_of_stock"`
	ExpiringSoon int         `json:"expiring_soon"`
	Expired      int         `json:"expired"`
	Resolved     int         `json:"resolved"`
	TotalAlerts  int         `json:"total_alerts"`
	Errors       []ScanError `json:"errors,omitempty"`
}

// AlertScanner detects stock and expiry conditions and maintains the alert
// set: at most one ACTIVE alert per (type, product, lot) key, refreshed in
// place while the condition holds and auto-resolved once it clears.
type AlertScanner struct {
	productRepo        *repository.ProductRepository
	lotRepo            *repository.LotRepository
	alertRepo          *repository.AlertRepository
	publisher          *events.InventoryEventPublisher
	expiringWindowDays int
	logger             *logger.Logger
}

// NewAlertScanner creates a new alert scanner
func NewAlertScanner(
	productRepo *repository.ProductRepository,
	lotRepo *repository.LotRepository,
	alertRepo *repository.AlertRepository,
	publisher *events.InventoryEventPublisher,
	expiringWindowDays int,
	log *logger.Logger,
) *AlertScanner {
	return &AlertScanner{
		productRepo:        productRepo,
		lotRepo:            lotRepo,
		alertRepo:          alertRepo,
		publisher:          publisher,
		expiringWindowDays: expiringWindowDays,
		logger:             log,
	}
}

// ScanAll runs the full alert pass: stock levels, expiry, then the
// auto-resolve sweep. Item failures are recorded and skipped, never fatal, so
// one bad row cannot block alerting for everything else.
func (s *AlertScanner) ScanAll(ctx context.Context) *ScanSummary {
	start := time.Now()
	summary := &ScanSummary{}

	s.scanStockLevels(ctx, summary)
	s.scanExpiry(ctx, summary)
	s.resolveCleared(ctx, summary)

	summary.TotalAlerts = summary.LowStock + summary.OutOfStock + summary.ExpiringSoon + summary.Expired

	s.logger.Info().
		Int("low_stock", summary.LowStock).
		Int("out_of_stock", summary.OutOfStock).
		Int("expiring_soon", summary.ExpiringSoon).
		Int("expired", summary.Expired).
		Int("resolved", summary.Resolved).
		Int("errors", len(summary.Errors)).
		Dur("duration", time.Since(start)).
		Msg("alert scan completed")

	return summary
}

// scanStockLevels raises OUT_OF_STOCK and LOW_STOCK alerts for active
// products below their minimum.
func (s *AlertScanner) scanStockLevels(ctx context.Context, summary *ScanSummary) {
	products, err := s.productRepo.GetAllActive(ctx)
	if err != nil {
		s.recordError(summary, "stock_scan", "", err)
		return
	}

	for _, p := range products {
		if p.MinimumStock <= 0 && p.CurrentStock > 0 {
			continue
		}

		var alertType, severity, message string
		switch {
		case p.CurrentStock <= 0:
			alertType = repository.AlertOutOfStock
			severity = repository.SeverityCritical
			message = fmt.Sprintf("%s is out of stock", p.Name)
		case p.CurrentStock < p.MinimumStock:
			alertType = repository.AlertLowStock
			severity = stockAlertSeverity(p.CurrentStock, p.MinimumStock)
			message = fmt.Sprintf("%s is below minimum stock (%d of %d)", p.Name, p.CurrentStock, p.MinimumStock)
		default:
			continue
		}

		currentStock := p.CurrentStock
		minimumStock := p.MinimumStock
		alert := &repository.Alert{
			AlertType:    alertType,
			Severity:     severity,
			ProductID:    p.ID,
			ProductName:  p.Name,
			Message:      message,
			CurrentStock: &currentStock,
			MinimumStock: &minimumStock,
		}

		if err := s.upsertAlert(ctx, alert); err != nil {
			s.recordError(summary, "stock_scan", p.ID, err)
			continue
		}

		if alertType == repository.AlertOutOfStock {
			summary.OutOfStock++
		} else {
			summary.LowStock++
		}
	}
}

// scanExpiry raises EXPIRED and EXPIRING_SOON alerts for lots still holding
// stock. Lots without an expiry date never appear here.
func (s *AlertScanner) scanExpiry(ctx context.Context, summary *ScanSummary) {
	lots, err := s.lotRepo.ListExpiring(ctx, s.expiringWindowDays)
	if err != nil {
		s.recordError(summary, "expiry_scan", "", err)
		return
	}
	if len(lots) == 0 {
		return
	}

	productIDs := make([]string, 0, len(lots))
	for _, lot := range lots {
		productIDs = append(productIDs, lot.ProductID)
	}
	products, err := s.productRepo.GetByIDs(ctx, productIDs)
	if err != nil {
		s.recordError(summary, "expiry_scan", "", err)
		return
	}

	now := time.Now().UTC()
	for _, lot := range lots {
		days := daysUntilExpiry(*lot.ExpiryDate, now)
		alertType, severity := expiryAlertSeverity(days)
		if alertType == "" {
			continue
		}

		productName := lot.ProductID
		if p, ok := products[lot.ProductID]; ok {
			productName = p.Name
		}

		var message string
		if alertType == repository.AlertExpired {
			message = fmt.Sprintf("%s lot %s expired on %s", productName, lot.LotNumber, lot.ExpiryDate.Format("2006-01-02"))
		} else {
			message = fmt.Sprintf("%s lot %s expires in %d days", productName, lot.LotNumber, days)
		}

		lotID := lot.ID
		lotNumber := lot.LotNumber
		daysCopy := days
		alert := &repository.Alert{
			AlertType:       alertType,
			Severity:        severity,
			ProductID:       lot.ProductID,
			ProductName:     productName,
			WarehouseID:     &lot.WarehouseID,
			InventoryLotID:  &lotID,
			LotNumber:       &lotNumber,
			Message:         message,
			ExpiryDate:      lot.ExpiryDate,
			DaysUntilExpiry: &daysCopy,
		}

		if err := s.upsertAlert(ctx, alert); err != nil {
			s.recordError(summary, "expiry_scan", lot.ID, err)
			continue
		}

		if alertType == repository.AlertExpired {
			summary.Expired++
		} else {
			summary.ExpiringSoon++
		}
	}
}

// resolveCleared sweeps ACTIVE alerts and auto-resolves those whose
// condition no longer holds.
func (s *AlertScanner) resolveCleared(ctx context.Context, summary *ScanSummary) {
	alerts, err := s.alertRepo.ListActive(ctx)
	if err != nil {
		s.recordError(summary, "resolve_sweep", "", err)
		return
	}

	for _, alert := range alerts {
		cleared, err := s.isCleared(ctx, alert)
		if err != nil {
			s.recordError(summary, "resolve_sweep", alert.ID, err)
			continue
		}
		if !cleared {
			continue
		}

		if err := s.alertRepo.AutoResolve(ctx, alert.ID); err != nil {
			s.recordError(summary, "resolve_sweep", alert.ID, err)
			continue
		}

		summary.Resolved++
		s.publisher.PublishAlertResolved(ctx, alert)
	}
}

// isCleared decides whether an alert's triggering condition has gone away
func (s *AlertScanner) isCleared(ctx context.Context, alert *repository.Alert) (bool, error) {
	switch alert.AlertType {
	case repository.AlertLowStock, repository.AlertOutOfStock:
		product, err := s.productRepo.GetByID(ctx, alert.ProductID)
		if err != nil {
			return false, err
		}
		return product.CurrentStock >= product.MinimumStock && product.CurrentStock > 0, nil

	case repository.AlertExpiringSoon, repository.AlertExpired:
		if alert.InventoryLotID == nil {
			return false, nil
		}
		lot, err := s.lotRepo.GetByID(ctx, *alert.InventoryLotID)
		if err != nil {
			return false, err
		}
		return lot.Quantity == 0, nil
	}

	return false, nil
}

// upsertAlert enforces the dedup key: an ongoing ACTIVE alert for the same
// condition is refreshed in place, otherwise a new alert is created and
// published.
func (s *AlertScanner) upsertAlert(ctx context.Context, alert *repository.Alert) error {
	existing, err := s.alertRepo.FindActive(ctx, alert.AlertType, alert.ProductID, alert.InventoryLotID)
	if err != nil {
		return err
	}

	if existing != nil {
		existing.Severity = alert.Severity
		existing.Message = alert.Message
		existing.ExpiryDate = alert.ExpiryDate
		existing.DaysUntilExpiry = alert.DaysUntilExpiry
		existing.CurrentStock = alert.CurrentStock
		existing.MinimumStock = alert.MinimumStock
		return s.alertRepo.UpdateActive(ctx, existing)
	}

	if err := s.alertRepo.Create(ctx, alert); err != nil {
		return err
	}
	s.publisher.PublishAlertGenerated(ctx, alert)
	return nil
}

func (s *AlertScanner) recordError(summary *ScanSummary, stage, target string, err error) {
	s.logger.Error().Err(err).Str("stage", stage).Str("target", target).Msg("alert scan item failed")
	summary.Errors = append(summary.Errors, ScanError{
		Stage:   stage,
		Target:  target,
		Message: err.Error(),
	})
}

// stockAlertSeverity bands a LOW_STOCK alert by how far current stock has
// fallen relative to the minimum. Integer arithmetic keeps the band edges
// exact: at or below 25% is CRITICAL, 50% HIGH, 75% MEDIUM, above that LOW.
func stockAlertSeverity(current, minimum int) string {
	switch {
	case 4*current <= minimum:
		return repository.SeverityCritical
	case 2*current <= minimum:
		return repository.SeverityHigh
	case 4*current <= 3*minimum:
		return repository.SeverityMedium
	default:
		return repository.SeverityLow
	}
}

// expiryAlertSeverity maps days-until-expiry to an alert type and severity.
// Past expiry is EXPIRED/CRITICAL; within 7, 15 and 30 days is EXPIRING_SOON
// at HIGH, MEDIUM and LOW. Beyond 30 days no alert is raised.
func expiryAlertSeverity(days int) (alertType, severity string) {
	switch {
	case days < 0:
		return repository.AlertExpired, repository.SeverityCritical
	case days <= 7:
		return repository.AlertExpiringSoon, repository.SeverityHigh
	case days <= 15:
		return repository.AlertExpiringSoon, repository.SeverityMedium
	case days <= 30:
		return repository.AlertExpiringSoon, repository.SeverityLow
	default:
		return "", ""
	}
}

// daysUntilExpiry counts whole calendar days from now to the expiry date,
// negative once the date has passed. Both sides are truncated to dates so the
// count does not shift with the time of day the scan runs.
func daysUntilExpiry(expiry, now time.Time) int {
	expiryDay := time.Date(expiry.Year(), expiry.Month(), expiry.Day(), 0, 0, 0, 0, time.UTC)
	nowDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return int(expiryDay.Sub(nowDay).Hours() / 24)
}
