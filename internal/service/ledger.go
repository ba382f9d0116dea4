package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cantapp/canteen-core/internal/model"
	"github.com/cantapp/canteen-core/internal/repository"
)

// Ledger errors.
var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrDailyLimitExceeded  = errors.New("daily spend limit exceeded")
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrWalletNotFound      = errors.New("wallet not found")
)

// LedgerService mutates wallet balances and appends the corresponding
// immutable ledger rows.  Debits and credits always run inside the
// caller's transaction so the balance write and the ledger row commit or
// roll back together.
type LedgerService struct {
	wallets *repository.WalletRepository
	ledger  *repository.LedgerRepository
	log     *zap.Logger
}

func NewLedgerService(w *repository.WalletRepository, l *repository.LedgerRepository, log *zap.Logger) *LedgerService {
	return &LedgerService{wallets: w, ledger: l, log: log}
}

// validateDebit applies the balance and daily-limit rules to a proposed
// purchase.  amount is the positive purchase total, spentToday the
// wallet's accumulated spend for the current UTC day.  A zero limit
// means unlimited.  Returns the resulting balance on success.
func validateDebit(w *model.Wallet, amount, spentToday decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	newBalance := w.Balance.Sub(amount)
	if newBalance.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: balance %s, need %s",
			ErrInsufficientBalance, w.Balance.StringFixed(2), amount.StringFixed(2))
	}
	if !w.DailySpendLimit.IsZero() && spentToday.Add(amount).GreaterThan(w.DailySpendLimit) {
		return decimal.Zero, fmt.Errorf("%w: limit %s, spent %s, attempted %s",
			ErrDailyLimitExceeded, w.DailySpendLimit.StringFixed(2),
			spentToday.StringFixed(2), amount.StringFixed(2))
	}
	return newBalance, nil
}

// DebitTx charges the buyer's wallet for an order: validates balance
// and daily limit, writes the new balance under optimistic locking,
// bumps the daily counter and appends a COMPLETED purchase row.  The
// money always leaves the account of whoever placed the order, so a
// guardian buying for a student spends guardian funds; the student's
// wallet only supplies the purchase-window gates, checked upstream.
// amount is the positive order total; the ledger stores it negated.
func (s *LedgerService) DebitTx(ctx context.Context, tx *sql.Tx, buyerID uint64, orderID uint64, amount decimal.Decimal, description string) (*model.Transaction, error) {
	w, err := s.wallets.GetByUserTx(ctx, tx, buyerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, err
	}

	today := time.Now().UTC()
	spent, err := s.wallets.SpentTodayTx(ctx, tx, w.ID, today)
	if err != nil {
		return nil, err
	}

	newBalance, err := validateDebit(w, amount, spent)
	if err != nil {
		return nil, err
	}

	if err := s.wallets.UpdateBalanceVersionTx(ctx, tx, w.ID, w.Version, newBalance); err != nil {
		return nil, err
	}
	if err := s.wallets.UpsertDailySpendTx(ctx, tx, w.ID, today, amount); err != nil {
		return nil, err
	}

	t := &model.Transaction{
		WalletID:       w.ID,
		OrderID:        &orderID,
		Amount:         amount.Neg(),
		RunningBalance: newBalance,
		Type:           model.TransactionPurchase,
		Status:         model.TransactionCompleted,
		Description:    description,
	}
	if err := s.ledger.InsertTx(ctx, tx, t); err != nil {
		return nil, err
	}
	s.log.Info("wallet debited",
		zap.Uint64("wallet_id", w.ID),
		zap.Uint64("order_id", orderID),
		zap.String("amount", amount.StringFixed(2)),
		zap.String("balance", newBalance.StringFixed(2)))
	return t, nil
}

// CreditTx adds funds to a wallet and appends a COMPLETED recharge row.
func (s *LedgerService) CreditTx(ctx context.Context, tx *sql.Tx, studentID uint64, amount decimal.Decimal, externalID *string, description string) (*model.Transaction, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	w, err := s.wallets.GetByUserTx(ctx, tx, studentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, err
	}

	newBalance := w.Balance.Add(amount)
	if err := s.wallets.UpdateBalanceVersionTx(ctx, tx, w.ID, w.Version, newBalance); err != nil {
		return nil, err
	}

	t := &model.Transaction{
		WalletID:       w.ID,
		ExternalID:     externalID,
		Amount:         amount,
		RunningBalance: newBalance,
		Type:           model.TransactionRecharge,
		Status:         model.TransactionCompleted,
		Description:    description,
	}
	if err := s.ledger.InsertTx(ctx, tx, t); err != nil {
		return nil, err
	}
	s.log.Info("wallet credited",
		zap.Uint64("wallet_id", w.ID),
		zap.String("amount", amount.StringFixed(2)),
		zap.String("balance", newBalance.StringFixed(2)))
	return t, nil
}

// CreatePendingRechargeTx records a recharge intent before the payment
// provider confirms.  The amount is held in the ledger as PENDING and
// only lands on the balance when ConfirmPendingTx runs.
func (s *LedgerService) CreatePendingRechargeTx(ctx context.Context, tx *sql.Tx, studentID uint64, amount decimal.Decimal, externalID string, description string) (*model.Transaction, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	w, err := s.wallets.GetByUserTx(ctx, tx, studentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, err
	}

	t := &model.Transaction{
		WalletID:       w.ID,
		ExternalID:     &externalID,
		Amount:         amount,
		RunningBalance: w.Balance,
		Type:           model.TransactionRecharge,
		Status:         model.TransactionPending,
		Description:    description,
	}
	if err := s.ledger.InsertTx(ctx, tx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// ConfirmPendingTx completes a pending recharge identified by the
// provider reference: credits the balance and finalizes the ledger row.
// A reference with no pending row returns sql.ErrNoRows, which webhook
// handling treats as already-processed.
func (s *LedgerService) ConfirmPendingTx(ctx context.Context, tx *sql.Tx, externalID string) (*model.Transaction, error) {
	t, err := s.ledger.GetPendingByExternalTx(ctx, tx, externalID)
	if err != nil {
		return nil, err
	}

	row := tx.QueryRowContext(ctx,
		`SELECT id, balance, version FROM wallets WHERE id = ?`, t.WalletID)
	var (
		walletID uint64
		balance  decimal.Decimal
		version  uint64
	)
	if err := row.Scan(&walletID, &balance, &version); err != nil {
		return nil, err
	}

	newBalance := balance.Add(t.Amount)
	if err := s.wallets.UpdateBalanceVersionTx(ctx, tx, walletID, version, newBalance); err != nil {
		return nil, err
	}
	if err := s.ledger.CompleteTx(ctx, tx, t.ID, newBalance); err != nil {
		return nil, err
	}
	t.Status = model.TransactionCompleted
	t.RunningBalance = newBalance
	s.log.Info("recharge confirmed",
		zap.Uint64("wallet_id", walletID),
		zap.String("external_id", externalID),
		zap.String("amount", t.Amount.StringFixed(2)))
	return t, nil
}

// History returns a wallet's ledger page for the owner or a linked
// guardian.
func (s *LedgerService) History(ctx context.Context, studentID uint64, limit, offset int) ([]model.Transaction, error) {
	w, err := s.wallets.GetByUser(ctx, studentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, err
	}
	return s.ledger.ListByWallet(ctx, w.ID, limit, offset)
}
