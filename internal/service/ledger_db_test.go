package service

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cantapp/canteen-core/internal/repository"
)

// The debit must land on the wallet of whoever placed the order.  A
// guardian buying for a student spends guardian funds; only the wallet
// keyed by the buyer id may be loaded and updated.
func TestDebitChargesBuyerWallet(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	const buyerID = uint64(77)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM wallets WHERE user_id = \?`).
		WithArgs(buyerID).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "user_id", "balance", "daily_spend_limit", "allowed_days",
			"can_purchase_alone", "version", "created_at", "updated_at",
		}).AddRow(10, buyerID, "50.00", "0.00", "", true, 3, now, now))
	mock.ExpectQuery(`SELECT amount FROM daily_spends WHERE wallet_id = \? AND date = \?`).
		WithArgs(uint64(10), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"amount"}))
	mock.ExpectExec(`UPDATE wallets SET balance = \?`).
		WithArgs(sqlmock.AnyArg(), uint64(10), uint64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO daily_spends`).
		WithArgs(uint64(10), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO transactions`).
		WillReturnResult(sqlmock.NewResult(5, 1))
	mock.ExpectRollback()

	tx, err := db.Begin()
	require.NoError(t, err)

	svc := NewLedgerService(
		repository.NewWalletRepository(db),
		repository.NewLedgerRepository(db),
		zap.NewNop())
	txn, err := svc.DebitTx(context.Background(), tx, buyerID, 9,
		decimal.RequireFromString("7.50"), "order abc")
	require.NoError(t, err)

	assert.Equal(t, uint64(10), txn.WalletID)
	assert.Equal(t, "-7.50", txn.Amount.StringFixed(2))
	assert.Equal(t, "42.50", txn.RunningBalance.StringFixed(2))

	_ = tx.Rollback()
	assert.NoError(t, mock.ExpectationsWereMet())
}
