package service

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cantapp/canteen-core/internal/repository"
)

func newGuardianServiceForTest(t *testing.T) (*GuardianService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	restrictions := repository.NewRestrictionRepository(db)
	audit := NewAuditService(repository.NewAuditLogRepository(db), "test-secret", zap.NewNop())
	return NewGuardianService(db, restrictions, audit, zap.NewNop()), mock
}

// A restriction and the audit entry recording it commit together: one
// transaction carries the insert, the chain-head read and the audit
// append.
func TestBlockProductAuditsInSameTransaction(t *testing.T) {
	svc, mock := newGuardianServiceForTest(t)

	mock.ExpectQuery(`SELECT 1 FROM guardian_students`).
		WithArgs(uint64(5), uint64(8)).
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO product_restrictions`).
		WithArgs(uint64(8), uint64(42)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(`SELECT log_hash FROM audit_logs WHERE school_id = \?`).
		WithArgs(uint64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"log_hash"}))
	mock.ExpectExec(`INSERT INTO audit_logs`).
		WithArgs(uint64(1), uint64(5), "RESTRICTION_ADDED", "student", uint64(8),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := svc.BlockProduct(context.Background(), 5, 1, 8, 42)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// Blocking an already blocked product rolls the whole transaction back
// and surfaces the conflict; no audit entry is written for a mutation
// that did not happen.
func TestBlockProductDuplicateRollsBack(t *testing.T) {
	svc, mock := newGuardianServiceForTest(t)

	mock.ExpectQuery(`SELECT 1 FROM guardian_students`).
		WithArgs(uint64(5), uint64(8)).
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO product_restrictions`).
		WithArgs(uint64(8), uint64(42)).
		WillReturnError(&mysql.MySQLError{Number: 1062})
	mock.ExpectRollback()

	err := svc.BlockProduct(context.Background(), 5, 1, 8, 42)
	assert.ErrorIs(t, err, repository.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}
