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

	"github.com/cantapp/canteen-core/internal/model"
	"github.com/cantapp/canteen-core/internal/repository"
)

func newWalletServiceForTest(t *testing.T) (*WalletService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	wallets := repository.NewWalletRepository(db)
	restrictions := repository.NewRestrictionRepository(db)
	users := repository.NewUserRepository(db)
	ledger := NewLedgerService(wallets, repository.NewLedgerRepository(db), zap.NewNop())
	audit := NewAuditService(repository.NewAuditLogRepository(db), "test-secret", zap.NewNop())
	return NewWalletService(db, wallets, restrictions, users, ledger, audit, zap.NewNop()), mock
}

// A school admin can only credit students of their own school.  The
// student's tenant is checked before any money moves; no transaction is
// even opened for a cross-school attempt.
func TestDirectRechargeRejectsCrossSchoolAdmin(t *testing.T) {
	svc, mock := newWalletServiceForTest(t)

	mock.ExpectQuery(`FROM users WHERE id = \?`).
		WithArgs(uint64(8)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "school_id", "canteen_id", "email", "password_hash", "name", "role", "created_at",
		}).AddRow(8, 2, nil, "kid@school-b.example", "x", "Kid", model.RoleStudent, time.Now()))

	_, err := svc.DirectRecharge(context.Background(), 99, model.RoleSchoolAdmin,
		1, 8, decimal.RequireFromString("10.00"))
	assert.ErrorIs(t, err, repository.ErrForbidden)
	assert.NoError(t, mock.ExpectationsWereMet())
}
