package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pharmstock/pharmstock-backend/pkg/database"
	"github.com/pharmstock/pharmstock-backend/pkg/errors"
)

// Alert types
const (
	AlertLowStock     = "LOW_STOCK"
	AlertOutOfStock   = "OUT_OF_STOCK"
	AlertExpiringSoon = "EXPIRING_SOON"
	AlertExpired      = "EXPIRED"
)

// Alert severities
const (
	SeverityLow      = "LOW"
	SeverityMedium   = "MEDIUM"
	SeverityHigh     = "HIGH"
	SeverityCritical = "CRITICAL"
)

// Alert statuses. ACTIVE is the only non-terminal state: an alert moves to
// ACKNOWLEDGED or RESOLVED by manual action, or to RESOLVED by the scanner
// when the underlying condition clears.
const (
	AlertStatusActive       = "ACTIVE"
	AlertStatusAcknowledged = "ACKNOWLEDGED"
	AlertStatusResolved     = "RESOLVED"
)

// Alert represents an operational alert raised by the scanner. The dedup key
// is (alert_type, product_id, inventory_lot_id, status=ACTIVE): at most one
// ACTIVE alert may exist per key at a time.
type Alert struct {
	ID              string     `db:"id" json:"id"`
	AlertType       string     `db:"alert_type" json:"alert_type"`
	Severity        string     `db:"severity" json:"severity"`
	Status          string     `db:"status" json:"status"`
	ProductID       string     `db:"product_id" json:"product_id"`
	ProductName     string     `db:"product_name" json:"product_name"`
	WarehouseID     *string    `db:"warehouse_id" json:"warehouse_id,omitempty"`
	InventoryLotID  *string    `db:"inventory_lot_id" json:"inventory_lot_id,omitempty"`
	LotNumber       *string    `db:"lot_number" json:"lot_number,omitempty"`
	Message         string     `db:"message" json:"message"`
	ExpiryDate      *time.Time `db:"expiry_date" json:"expiry_date,omitempty"`
	DaysUntilExpiry *int       `db:"days_until_expiry" json:"days_until_expiry,omitempty"`
	CurrentStock    *int       `db:"current_stock" json:"current_stock,omitempty"`
	MinimumStock    *int       `db:"minimum_stock" json:"minimum_stock,omitempty"`
	AcknowledgedBy  *string    `db:"acknowledged_by" json:"acknowledged_by,omitempty"`
	AcknowledgedAt  *time.Time `db:"acknowledged_at" json:"acknowledged_at,omitempty"`
	ResolvedBy      *string    `db:"resolved_by" json:"resolved_by,omitempty"`
	ResolvedAt      *time.Time `db:"resolved_at" json:"resolved_at,omitempty"`
	Notes           *string    `db:"notes" json:"notes,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// AlertRepository handles alert persistence
type AlertRepository struct {
	db *database.DB
}

// NewAlertRepository creates a new alert repository
func NewAlertRepository(db *database.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

// Create creates a new alert in ACTIVE status
func (r *AlertRepository) Create(ctx context.Context, alert *Alert) error {
	if alert.ID == "" {
		alert.ID = uuid.New().String()
	}
	if alert.Status == "" {
		alert.Status = AlertStatusActive
	}

	query := `
		INSERT INTO alerts (
			id, alert_type, severity, status, product_id, product_name,
			warehouse_id, inventory_lot_id, lot_number, message, expiry_date,
			days_until_expiry, current_stock, minimum_stock, notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		alert.ID, alert.AlertType, alert.Severity, alert.Status, alert.ProductID,
		alert.ProductName, alert.WarehouseID, alert.InventoryLotID, alert.LotNumber,
		alert.Message, alert.ExpiryDate, alert.DaysUntilExpiry, alert.CurrentStock,
		alert.MinimumStock, alert.Notes,
	).Scan(&alert.CreatedAt, &alert.UpdatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

// GetByID gets an alert by ID
func (r *AlertRepository) GetByID(ctx context.Context, id string) (*Alert, error) {
	var alert Alert
	query := `SELECT * FROM alerts WHERE id = $1`
	if err := r.db.GetContext(ctx, &alert, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("alert")
		}
		return nil, err
	}
	return &alert, nil
}

// FindActive looks up the ACTIVE alert matching the dedup key, or nil if the
// condition has no ongoing alert. lotID is nil for product-level alerts.
func (r *AlertRepository) FindActive(ctx context.Context, alertType, productID string, lotID *string) (*Alert, error) {
	var alert Alert
	query := `
		SELECT * FROM alerts
		WHERE alert_type = $1 AND product_id = $2
		AND inventory_lot_id IS NOT DISTINCT FROM $3
		AND status = $4
	`
	err := r.db.GetContext(ctx, &alert, query, alertType, productID, lotID, AlertStatusActive)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &alert, nil
}

// UpdateActive refreshes the mutable fields of an ongoing alert in place.
// Identity and lifecycle fields are untouched; this is what the scanner calls
// when a later pass re-detects the same condition.
func (r *AlertRepository) UpdateActive(ctx context.Context, alert *Alert) error {
	query := `
		UPDATE alerts
		SET severity = $2, message = $3, expiry_date = $4, days_until_expiry = $5,
			current_stock = $6, minimum_stock = $7, updated_at = NOW()
		WHERE id = $1 AND status = $8
	`
	result, err := r.db.ExecContext(ctx, query,
		alert.ID, alert.Severity, alert.Message, alert.ExpiryDate,
		alert.DaysUntilExpiry, alert.CurrentStock, alert.MinimumStock,
		AlertStatusActive,
	)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("active alert")
	}
	return nil
}

// Acknowledge moves an ACTIVE alert to ACKNOWLEDGED
func (r *AlertRepository) Acknowledge(ctx context.Context, id, userID string) error {
	query := `
		UPDATE alerts
		SET status = $3, acknowledged_by = $2, acknowledged_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = $4
	`
	result, err := r.db.ExecContext(ctx, query, id, userID, AlertStatusAcknowledged, AlertStatusActive)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("active alert")
	}
	return nil
}

// Resolve moves an alert to RESOLVED by manual action. Works from ACTIVE or
// ACKNOWLEDGED; a direct resolve does not require prior acknowledgement.
func (r *AlertRepository) Resolve(ctx context.Context, id, userID string) error {
	query := `
		UPDATE alerts
		SET status = $3, resolved_by = $2, resolved_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status != $3
	`
	result, err := r.db.ExecContext(ctx, query, id, userID, AlertStatusResolved)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("unresolved alert")
	}
	return nil
}

// AutoResolve is the scanner's resolve: it stamps the resolution and appends
// a machine-readable marker to notes so auto-resolutions stay auditable.
func (r *AlertRepository) AutoResolve(ctx context.Context, id string) error {
	marker := fmt.Sprintf("[auto-resolved %s]", time.Now().UTC().Format(time.RFC3339))
	query := `
		UPDATE alerts
		SET status = $3, resolved_by = $2, resolved_at = NOW(), updated_at = NOW(),
			notes = TRIM(COALESCE(notes, '') || ' ' || $4)
		WHERE id = $1 AND status = $5
	`
	result, err := r.db.ExecContext(ctx, query, id, "system", AlertStatusResolved, marker, AlertStatusActive)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("active alert")
	}
	return nil
}

// ListActive lists all ACTIVE alerts for the auto-resolve sweep
func (r *AlertRepository) ListActive(ctx context.Context) ([]*Alert, error) {
	var alerts []*Alert
	query := `SELECT * FROM alerts WHERE status = $1 ORDER BY created_at`
	if err := r.db.SelectContext(ctx, &alerts, query, AlertStatusActive); err != nil {
		return nil, err
	}
	return alerts, nil
}

// List lists alerts with filtering and pagination
func (r *AlertRepository) List(ctx context.Context, status, alertType, severity string, page, perPage int) ([]*Alert, int64, error) {
	where := ` WHERE 1=1`
	args := []interface{}{}

	if status != "" {
		args = append(args, status)
		where += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	if alertType != "" {
		args = append(args, alertType)
		where += fmt.Sprintf(` AND alert_type = $%d`, len(args))
	}
	if severity != "" {
		args = append(args, severity)
		where += fmt.Sprintf(` AND severity = $%d`, len(args))
	}

	var total int64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM alerts`+where, args...); err != nil {
		return nil, 0, err
	}

	query := `SELECT * FROM alerts` + where + `
		ORDER BY CASE severity
			WHEN 'CRITICAL' THEN 0
			WHEN 'HIGH' THEN 1
			WHEN 'MEDIUM' THEN 2
			ELSE 3
		END, created_at DESC`

	args = append(args, perPage, (page-1)*perPage)
	query += fmt.Sprintf(` LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	var alerts []*Alert
	if err := r.db.SelectContext(ctx, &alerts, query, args...); err != nil {
		return nil, 0, err
	}

	return alerts, total, nil
}

// Delete removes an alert. The scanner never calls this; deletion is a
// separate administrative operation.
func (r *AlertRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM alerts WHERE id = $1`, id)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("alert")
	}
	return nil
}

// CountActive counts ACTIVE alerts (dashboard/health surface)
func (r *AlertRepository) CountActive(ctx context.Context) (int64, error) {
	var count int64
	query := `SELECT COUNT(*) FROM alerts WHERE status = $1`
	if err := r.db.GetContext(ctx, &count, query, AlertStatusActive); err != nil {
		return 0, err
	}
	return count, nil
}
