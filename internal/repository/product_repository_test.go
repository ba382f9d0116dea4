package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cantapp/canteen-core/internal/model"
)

func TestAvailableStockCountsOnlyLiveHolds(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	// Availability must subtract only ACTIVE holds that have not passed
	// their expiry: the query carries both predicates, so an overdue
	// hold frees stock even before the sweeper flips it to EXPIRED.
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT p\.stock - COALESCE.+status = \?.+expires_at > UTC_TIMESTAMP\(\).+FROM products p WHERE p\.id = \?`).
		WithArgs(model.ReservationActive, uint64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"available"}).AddRow(5))
	mock.ExpectRollback()

	tx, err := db.Begin()
	require.NoError(t, err)

	repo := NewProductRepository(db)
	available, err := repo.AvailableStockTx(context.Background(), tx, 42)
	require.NoError(t, err)
	assert.Equal(t, 5, available)

	_ = tx.Rollback()
	assert.NoError(t, mock.ExpectationsWereMet())
}
