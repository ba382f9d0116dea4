package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cantapp/canteen-core/internal/model"
)

// WalletRepository accesses wallets and their per-day spend counters.
type WalletRepository struct {
	DB *sql.DB
}

func NewWalletRepository(db *sql.DB) *WalletRepository {
	return &WalletRepository{DB: db}
}

const walletColumns = `id, user_id, balance, daily_spend_limit, allowed_days,
	can_purchase_alone, version, created_at, updated_at`

func scanWallet(row interface{ Scan(...any) error }) (*model.Wallet, error) {
	var w model.Wallet
	var days string
	err := row.Scan(&w.ID, &w.UserID, &w.Balance, &w.DailySpendLimit, &days,
		&w.CanPurchaseAlone, &w.Version, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}
	w.AllowedDays = model.ParseAllowedDays(days)
	return &w, nil
}

// GetByUserTx loads a student's wallet inside the caller's transaction.
func (r *WalletRepository) GetByUserTx(ctx context.Context, tx *sql.Tx, userID uint64) (*model.Wallet, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+walletColumns+` FROM wallets WHERE user_id = ?`, userID)
	return scanWallet(row)
}

// GetByUser loads a wallet outside any transaction, for read endpoints.
func (r *WalletRepository) GetByUser(ctx context.Context, userID uint64) (*model.Wallet, error) {
	row := r.DB.QueryRowContext(ctx,
		`SELECT `+walletColumns+` FROM wallets WHERE user_id = ?`, userID)
	return scanWallet(row)
}

// UpdateBalanceVersionTx writes a new balance under optimistic locking.
// The version predicate makes concurrent mutations lose cleanly instead
// of silently overwriting each other.
func (r *WalletRepository) UpdateBalanceVersionTx(ctx context.Context, tx *sql.Tx, walletID uint64, version uint64, newBalance decimal.Decimal) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE wallets SET balance = ?, version = version + 1, updated_at = UTC_TIMESTAMP()
		 WHERE id = ? AND version = ?`,
		newBalance, walletID, version)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrVersionConflict
	}
	return nil
}

// SpentTodayTx returns the wallet's accumulated spend for the given UTC
// calendar day, zero when no row exists yet.
func (r *WalletRepository) SpentTodayTx(ctx context.Context, tx *sql.Tx, walletID uint64, day time.Time) (decimal.Decimal, error) {
	var amount decimal.Decimal
	err := tx.QueryRowContext(ctx,
		`SELECT amount FROM daily_spends WHERE wallet_id = ? AND date = ?`,
		walletID, day.UTC().Format("2006-01-02")).Scan(&amount)
	if err == sql.ErrNoRows {
		return decimal.Zero, nil
	}
	return amount, err
}

// UpsertDailySpendTx adds amount to the wallet's counter for the day,
// creating the row on the first spend.  The unique (wallet_id, date)
// key turns concurrent first spends into plain increments.
func (r *WalletRepository) UpsertDailySpendTx(ctx context.Context, tx *sql.Tx, walletID uint64, day time.Time, amount decimal.Decimal) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO daily_spends (wallet_id, date, amount)
		 VALUES (?, ?, ?)
		 ON DUPLICATE KEY UPDATE amount = amount + VALUES(amount)`,
		walletID, day.UTC().Format("2006-01-02"), amount)
	return err
}

// SetCanPurchaseAloneTx flips the guardian safety switch.
func (r *WalletRepository) SetCanPurchaseAloneTx(ctx context.Context, tx *sql.Tx, walletID uint64, allowed bool) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE wallets SET can_purchase_alone = ?, updated_at = UTC_TIMESTAMP() WHERE id = ?`,
		allowed, walletID)
	return err
}

// UpdateControlsTx replaces the parental controls in one statement.
func (r *WalletRepository) UpdateControlsTx(ctx context.Context, tx *sql.Tx, walletID uint64, limit decimal.Decimal, allowedDays []int) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE wallets SET daily_spend_limit = ?, allowed_days = ?, updated_at = UTC_TIMESTAMP()
		 WHERE id = ?`,
		limit, model.FormatAllowedDays(allowedDays), walletID)
	return err
}
