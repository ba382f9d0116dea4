package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"

	"github.com/cantapp/canteen-core/internal/model"
)

// LedgerRepository persists the append-only transaction ledger.  Every
// balance change has exactly one ledger row; rows are never updated
// after completion and never deleted.
type LedgerRepository struct {
	DB *sql.DB
}

func NewLedgerRepository(db *sql.DB) *LedgerRepository {
	return &LedgerRepository{DB: db}
}

// InsertTx appends one ledger entry.  A duplicate external id (payment
// provider reference) maps to ErrConflict so webhook retries are safe.
func (r *LedgerRepository) InsertTx(ctx context.Context, tx *sql.Tx, t *model.Transaction) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO transactions (wallet_id, order_id, external_id, amount, running_balance,
		                           type, status, description, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, UTC_TIMESTAMP())`,
		t.WalletID, t.OrderID, t.ExternalID, t.Amount, t.RunningBalance,
		t.Type, t.Status, t.Description)
	if err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) && me.Number == 1062 {
			return ErrConflict
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = uint64(id)
	return nil
}

// GetPendingByExternalTx loads a PENDING recharge intent by its provider
// reference, locking the row so a concurrent webhook delivery for the
// same payment blocks instead of double-crediting.
func (r *LedgerRepository) GetPendingByExternalTx(ctx context.Context, tx *sql.Tx, externalID string) (*model.Transaction, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT id, wallet_id, order_id, external_id, amount, running_balance, type, status, description, created_at
		 FROM transactions WHERE external_id = ? AND status = ? FOR UPDATE`,
		externalID, model.TransactionPending)
	var t model.Transaction
	err := row.Scan(&t.ID, &t.WalletID, &t.OrderID, &t.ExternalID, &t.Amount,
		&t.RunningBalance, &t.Type, &t.Status, &t.Description, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// CompleteTx finalizes a pending entry with the balance it produced.
func (r *LedgerRepository) CompleteTx(ctx context.Context, tx *sql.Tx, id uint64, runningBalance decimal.Decimal) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE transactions SET status = ?, running_balance = ?
		 WHERE id = ? AND status = ?`,
		model.TransactionCompleted, runningBalance, id, model.TransactionPending)
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

// ListByWallet pages through a wallet's history, newest first.
func (r *LedgerRepository) ListByWallet(ctx context.Context, walletID uint64, limit, offset int) ([]model.Transaction, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id, wallet_id, order_id, external_id, amount, running_balance, type, status, description, created_at
		 FROM transactions WHERE wallet_id = ?
		 ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		walletID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Transaction
	for rows.Next() {
		var t model.Transaction
		if err := rows.Scan(&t.ID, &t.WalletID, &t.OrderID, &t.ExternalID, &t.Amount,
			&t.RunningBalance, &t.Type, &t.Status, &t.Description, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
