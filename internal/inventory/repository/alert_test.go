package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmstock/pharmstock-backend/pkg/database"
	"github.com/pharmstock/pharmstock-backend/pkg/errors"
	"github.com/pharmstock/pharmstock-backend/pkg/logger"
	"github.com/pharmstock/pharmstock-backend/pkg/testutil"
)

func newTestAlertRepo(t *testing.T) (*AlertRepository, *testutil.MockDB) {
	mockDB := testutil.NewMockDB(t)
	log := logger.New("test", "test")
	return NewAlertRepository(database.Wrap(mockDB.DB, log)), mockDB
}

func TestFindActive_NilWhenNoOngoingAlert(t *testing.T) {
	repo, mockDB := newTestAlertRepo(t)
	defer mockDB.Close()

	mockDB.ExpectQuery(`SELECT * FROM alerts`).
		WillReturnRows(testutil.MockRows("id", "alert_type", "severity", "status", "product_id", "product_name", "message", "created_at", "updated_at"))

	alert, err := repo.FindActive(context.Background(), AlertLowStock, "p1", nil)
	require.NoError(t, err)
	assert.Nil(t, alert)
}

func TestAutoResolve_NotFoundWhenAlreadyResolved(t *testing.T) {
	repo, mockDB := newTestAlertRepo(t)
	defer mockDB.Close()

	mockDB.ExpectExec(`UPDATE alerts`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.AutoResolve(context.Background(), "alert-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestAcknowledge_OnlyActiveAlerts(t *testing.T) {
	repo, mockDB := newTestAlertRepo(t)
	defer mockDB.Close()

	mockDB.ExpectExec(`UPDATE alerts`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Acknowledge(context.Background(), "alert-1", "user-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}
