package service

import (
	"context"

	"github.com/pharmstock/pharmstock-backend/internal/inventory/repository"
	"github.com/pharmstock/pharmstock-backend/pkg/httputil"
	"github.com/pharmstock/pharmstock-backend/pkg/logger"
)

// AlertService handles the alert lifecycle outside the scanner: listing,
// acknowledgement, manual resolution and administrative deletion.
type AlertService struct {
	alertRepo *repository.AlertRepository
	logger    *logger.Logger
}

// NewAlertService creates a new alert service
func NewAlertService(alertRepo *repository.AlertRepository, log *logger.Logger) *AlertService {
	return &AlertService{
		alertRepo: alertRepo,
		logger:    log,
	}
}

// List lists alerts filtered by status, type and severity. The returned meta
// carries the page values actually queried, so callers cannot echo back a page
// the clamping rewrote.
func (s *AlertService) List(ctx context.Context, status, alertType, severity string, page, perPage int) ([]*repository.Alert, *httputil.Meta, error) {
	page, perPage = normalizePagination(page, perPage)

	alerts, total, err := s.alertRepo.List(ctx, status, alertType, severity, page, perPage)
	if err != nil {
		return nil, nil, err
	}
	return alerts, paginationMeta(page, perPage, total), nil
}

func normalizePagination(page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}
	return page, perPage
}

func paginationMeta(page, perPage int, total int64) *httputil.Meta {
	totalPages := int(total) / perPage
	if int(total)%perPage > 0 {
		totalPages++
	}
	return &httputil.Meta{
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: totalPages,
	}
}

// Get returns one alert
func (s *AlertService) Get(ctx context.Context, id string) (*repository.Alert, error) {
	return s.alertRepo.GetByID(ctx, id)
}

// Acknowledge marks an active alert as seen by a user
func (s *AlertService) Acknowledge(ctx context.Context, id, userID string) error {
	if err := s.alertRepo.Acknowledge(ctx, id, userID); err != nil {
		return err
	}
	s.logger.Info().Str("alert_id", id).Str("user_id", userID).Msg("alert acknowledged")
	return nil
}

// Resolve closes an alert by manual action
func (s *AlertService) Resolve(ctx context.Context, id, userID string) error {
	if err := s.alertRepo.Resolve(ctx, id, userID); err != nil {
		return err
	}
	s.logger.Info().Str("alert_id", id).Str("user_id", userID).Msg("alert resolved")
	return nil
}

// Delete removes an alert entirely. Administrative; the scanner never deletes.
func (s *AlertService) Delete(ctx context.Context, id string) error {
	return s.alertRepo.Delete(ctx, id)
}

// CountActive returns the number of ACTIVE alerts
func (s *AlertService) CountActive(ctx context.Context) (int64, error) {
	return s.alertRepo.CountActive(ctx)
}
