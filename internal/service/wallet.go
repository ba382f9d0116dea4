package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cantapp/canteen-core/internal/database"
	"github.com/cantapp/canteen-core/internal/model"
	"github.com/cantapp/canteen-core/internal/repository"
)

// WalletService exposes the guardian-facing wallet surface: balance
// reads, parental controls, the safety switch and recharges.  Guardian
// authorization is checked against the guardian_students link table on
// every call.
type WalletService struct {
	db           *sql.DB
	wallets      *repository.WalletRepository
	restrictions *repository.RestrictionRepository
	users        *repository.UserRepository
	ledger       *LedgerService
	audit        *AuditService
	log          *zap.Logger
}

func NewWalletService(db *sql.DB, w *repository.WalletRepository, r *repository.RestrictionRepository, u *repository.UserRepository, l *LedgerService, a *AuditService, log *zap.Logger) *WalletService {
	return &WalletService{db: db, wallets: w, restrictions: r, users: u, ledger: l, audit: a, log: log}
}

// authorize allows the student themselves or a linked guardian.
func (s *WalletService) authorize(ctx context.Context, callerID, studentID uint64) error {
	if callerID == studentID {
		return nil
	}
	linked, err := s.restrictions.GuardianLinked(ctx, callerID, studentID)
	if err != nil {
		return err
	}
	if !linked {
		return ErrNotLinked
	}
	return nil
}

// Get returns a student's wallet for the owner or a linked guardian.
func (s *WalletService) Get(ctx context.Context, callerID, studentID uint64) (*model.Wallet, error) {
	if err := s.authorize(ctx, callerID, studentID); err != nil {
		return nil, err
	}
	w, err := s.wallets.GetByUser(ctx, studentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrWalletNotFound
	}
	return w, err
}

// SetControls updates the daily limit and allowed purchase days.
// Guardian only.
func (s *WalletService) SetControls(ctx context.Context, guardianID, schoolID, studentID uint64, limit decimal.Decimal, allowedDays []int) error {
	linked, err := s.restrictions.GuardianLinked(ctx, guardianID, studentID)
	if err != nil {
		return err
	}
	if !linked {
		return ErrNotLinked
	}
	if limit.IsNegative() {
		return ErrInvalidAmount
	}

	tx, err := database.BeginSerializable(ctx, s.db)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	w, err := s.wallets.GetByUserTx(ctx, tx, studentID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrWalletNotFound
	}
	if err != nil {
		return err
	}
	if err := s.wallets.UpdateControlsTx(ctx, tx, w.ID, limit, allowedDays); err != nil {
		return err
	}
	gid := guardianID
	if _, err := s.audit.AppendTx(ctx, tx, schoolID, &gid, "WALLET_CONTROLS_SET", "wallet", &w.ID, map[string]any{
		"daily_spend_limit": limit.StringFixed(2),
		"allowed_days":      allowedDays,
	}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// SetSafetySwitch toggles whether the student may purchase on their own.
// Guardian only.
func (s *WalletService) SetSafetySwitch(ctx context.Context, guardianID, schoolID, studentID uint64, allowed bool) error {
	linked, err := s.restrictions.GuardianLinked(ctx, guardianID, studentID)
	if err != nil {
		return err
	}
	if !linked {
		return ErrNotLinked
	}

	tx, err := database.BeginSerializable(ctx, s.db)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	w, err := s.wallets.GetByUserTx(ctx, tx, studentID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrWalletNotFound
	}
	if err != nil {
		return err
	}
	if err := s.wallets.SetCanPurchaseAloneTx(ctx, tx, w.ID, allowed); err != nil {
		return err
	}
	gid := guardianID
	if _, err := s.audit.AppendTx(ctx, tx, schoolID, &gid, "WALLET_SAFETY_SWITCH", "wallet", &w.ID, map[string]any{
		"can_purchase_alone": allowed,
	}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// DirectRecharge credits a wallet immediately, without a payment
// provider round trip.  Guardians must be linked to the student; school
// admins may recharge any student, but only within their own school.
func (s *WalletService) DirectRecharge(ctx context.Context, callerID uint64, callerRole string, schoolID, studentID uint64, amount decimal.Decimal) (*model.Transaction, error) {
	student, err := s.users.GetByID(ctx, studentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, err
	}
	if student.SchoolID != schoolID {
		return nil, repository.ErrForbidden
	}
	if callerRole != model.RoleSchoolAdmin {
		linked, err := s.restrictions.GuardianLinked(ctx, callerID, studentID)
		if err != nil {
			return nil, err
		}
		if !linked {
			return nil, ErrNotLinked
		}
	}

	tx, err := database.BeginSerializable(ctx, s.db)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	t, err := s.ledger.CreditTx(ctx, tx, studentID, amount, nil, "direct recharge")
	if err != nil {
		return nil, err
	}
	cid := callerID
	if _, err := s.audit.AppendTx(ctx, tx, schoolID, &cid, "WALLET_RECHARGE", "transaction", &t.ID, map[string]any{
		"student_id": studentID,
		"amount":     amount.StringFixed(2),
	}); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return t, nil
}

// CreateRechargeIntent opens a PENDING recharge for a payment provider
// session and returns the ledger row carrying the provider reference.
// The webhook completes it when the payment confirms.
func (s *WalletService) CreateRechargeIntent(ctx context.Context, guardianID, schoolID, studentID uint64, amount decimal.Decimal) (*model.Transaction, error) {
	if err := s.authorize(ctx, guardianID, studentID); err != nil {
		return nil, err
	}

	tx, err := database.BeginSerializable(ctx, s.db)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	externalID := uuid.NewString()
	t, err := s.ledger.CreatePendingRechargeTx(ctx, tx, studentID, amount, externalID, "wallet recharge")
	if err != nil {
		return nil, err
	}
	gid := guardianID
	if _, err := s.audit.AppendTx(ctx, tx, schoolID, &gid, "RECHARGE_INTENT", "transaction", &t.ID, map[string]any{
		"student_id":  studentID,
		"external_id": externalID,
		"amount":      amount.StringFixed(2),
	}); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return t, nil
}

// ConfirmRecharge completes a pending recharge from a verified webhook
// delivery.  A reference with no pending row means the webhook was
// already processed; that is reported as alreadyDone so the handler can
// acknowledge the retry without re-crediting.
func (s *WalletService) ConfirmRecharge(ctx context.Context, externalID string) (t *model.Transaction, alreadyDone bool, err error) {
	tx, err := database.BeginSerializable(ctx, s.db)
	if err != nil {
		return nil, false, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	t, err = s.ledger.ConfirmPendingTx(ctx, tx, externalID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, true, nil
	}
	if err != nil {
		return nil, false, err
	}

	schoolID, err := schoolIDForWallet(ctx, tx, t.WalletID)
	if err != nil {
		return nil, false, err
	}
	if _, err := s.audit.AppendTx(ctx, tx, schoolID, nil, "RECHARGE_CONFIRMED", "transaction", &t.ID, map[string]any{
		"external_id": externalID,
		"amount":      t.Amount.StringFixed(2),
	}); err != nil {
		return nil, false, err
	}
	if err := tx.Commit(); err != nil {
		return nil, false, err
	}
	committed = true
	return t, false, nil
}

// schoolIDForWallet resolves the tenant of a wallet for audit scoping.
// A lookup failure aborts the confirmation; appending to the wrong
// school's chain would corrupt it.
func schoolIDForWallet(ctx context.Context, tx *sql.Tx, walletID uint64) (uint64, error) {
	var schoolID uint64
	err := tx.QueryRowContext(ctx,
		`SELECT u.school_id FROM wallets w JOIN users u ON u.id = w.user_id WHERE w.id = ?`,
		walletID).Scan(&schoolID)
	return schoolID, err
}
