package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pharmstock/pharmstock-backend/pkg/database"
	"github.com/pharmstock/pharmstock-backend/pkg/errors"
	"github.com/shopspring/decimal"
)

// IssueDocument is the human-facing record of an outbound movement, carrying
// the date-scoped sequential code handed to the requesting department.
type IssueDocument struct {
	ID            string          `db:"id" json:"id"`
	Code          string          `db:"code" json:"code"`
	WarehouseID   string          `db:"warehouse_id" json:"warehouse_id"`
	DepartmentID  string          `db:"department_id" json:"department_id"`
	IssueDate     time.Time       `db:"issue_date" json:"issue_date"`
	TransactionID string          `db:"transaction_id" json:"transaction_id"`
	TotalAmount   decimal.Decimal `db:"total_amount" json:"total_amount"`
	Notes         *string         `db:"notes" json:"notes,omitempty"`
	CreatedBy     string          `db:"created_by" json:"created_by"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}

// IssueRepository handles issue documents and their per-day code sequence
type IssueRepository struct {
	db *database.DB
}

// NewIssueRepository creates a new issue repository
func NewIssueRepository(db *database.DB) *IssueRepository {
	return &IssueRepository{db: db}
}

// NextDocumentCodeTx reserves the next document code for the given day using
// an atomic per-day counter row. Unlike a count query, the upsert-increment
// cannot hand the same sequence number to two concurrent issues.
func (r *IssueRepository) NextDocumentCodeTx(ctx context.Context, tx *sqlx.Tx, issueDate time.Time) (string, error) {
	day := issueDate.UTC().Truncate(24 * time.Hour)

	var seq int
	query := `
		INSERT INTO document_sequences (seq_date, last_seq)
		VALUES ($1, 1)
		ON CONFLICT (seq_date) DO UPDATE SET last_seq = document_sequences.last_seq + 1
		RETURNING last_seq
	`
	if err := tx.QueryRowxContext(ctx, query, day).Scan(&seq); err != nil {
		return "", err
	}

	return fmt.Sprintf("ISS-%s-%04d", day.Format("20060102"), seq), nil
}

// CreateTx inserts an issue document inside the movement transaction
func (r *IssueRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, doc *IssueDocument) error {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}

	query := `
		INSERT INTO issue_documents (
			id, code, warehouse_id, department_id, issue_date,
			transaction_id, total_amount, notes, created_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`

	err := tx.QueryRowxContext(ctx, query,
		doc.ID, doc.Code, doc.WarehouseID, doc.DepartmentID, doc.IssueDate,
		doc.TransactionID, doc.TotalAmount, doc.Notes, doc.CreatedBy,
	).Scan(&doc.CreatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

// GetByCode gets an issue document by its code
func (r *IssueRepository) GetByCode(ctx context.Context, code string) (*IssueDocument, error) {
	var doc IssueDocument
	query := `SELECT * FROM issue_documents WHERE code = $1`
	if err := r.db.GetContext(ctx, &doc, query, code); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("issue document")
		}
		return nil, err
	}
	return &doc, nil
}
