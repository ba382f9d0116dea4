package service

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	"github.com/cantapp/canteen-core/internal/database"
	"github.com/cantapp/canteen-core/internal/model"
	"github.com/cantapp/canteen-core/internal/repository"
)

// GuardianService manages the purchase blocklists a guardian keeps for
// their students.  Each mutation and its audit entry run in one
// serializable transaction, so a restriction can never exist without
// the entry that records who set it.
type GuardianService struct {
	restrictions *repository.RestrictionRepository
	audit        *AuditService
	db           *sql.DB
	log          *zap.Logger
}

func NewGuardianService(db *sql.DB, r *repository.RestrictionRepository, a *AuditService, log *zap.Logger) *GuardianService {
	return &GuardianService{restrictions: r, audit: a, db: db, log: log}
}

func (s *GuardianService) requireLink(ctx context.Context, guardianID, studentID uint64) error {
	linked, err := s.restrictions.GuardianLinked(ctx, guardianID, studentID)
	if err != nil {
		return err
	}
	if !linked {
		return ErrNotLinked
	}
	return nil
}

// mutate wraps one blocklist change and its audit append in a single
// transaction.  A duplicate insert surfaces as ErrConflict to the
// caller and rolls everything back.
func (s *GuardianService) mutate(ctx context.Context, guardianID, schoolID, studentID uint64, action string, meta map[string]any, change func(tx *sql.Tx) error) error {
	if err := s.requireLink(ctx, guardianID, studentID); err != nil {
		return err
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

	if err := change(tx); err != nil {
		return err
	}
	gid := guardianID
	sid := studentID
	if _, err := s.audit.AppendTx(ctx, tx, schoolID, &gid, action, "student", &sid, meta); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// BlockProduct blocks one product for a student.  Blocking an already
// blocked product returns ErrConflict.
func (s *GuardianService) BlockProduct(ctx context.Context, guardianID, schoolID, studentID, productID uint64) error {
	return s.mutate(ctx, guardianID, schoolID, studentID, "RESTRICTION_ADDED",
		map[string]any{"product_id": productID},
		func(tx *sql.Tx) error {
			return s.restrictions.AddProductRestrictionTx(ctx, tx, studentID, productID)
		})
}

// UnblockProduct lifts a product block.
func (s *GuardianService) UnblockProduct(ctx context.Context, guardianID, schoolID, studentID, productID uint64) error {
	return s.mutate(ctx, guardianID, schoolID, studentID, "RESTRICTION_REMOVED",
		map[string]any{"product_id": productID},
		func(tx *sql.Tx) error {
			return s.restrictions.RemoveProductRestrictionTx(ctx, tx, studentID, productID)
		})
}

// BlockCategory blocks a whole category for a student.  Duplicates
// return ErrConflict.
func (s *GuardianService) BlockCategory(ctx context.Context, guardianID, schoolID, studentID uint64, category string) error {
	return s.mutate(ctx, guardianID, schoolID, studentID, "RESTRICTION_ADDED",
		map[string]any{"category": category},
		func(tx *sql.Tx) error {
			return s.restrictions.AddCategoryRestrictionTx(ctx, tx, studentID, category)
		})
}

// UnblockCategory lifts a category block.
func (s *GuardianService) UnblockCategory(ctx context.Context, guardianID, schoolID, studentID uint64, category string) error {
	return s.mutate(ctx, guardianID, schoolID, studentID, "RESTRICTION_REMOVED",
		map[string]any{"category": category},
		func(tx *sql.Tx) error {
			return s.restrictions.RemoveCategoryRestrictionTx(ctx, tx, studentID, category)
		})
}

// ListRestrictions returns both blocklists for one student.
func (s *GuardianService) ListRestrictions(ctx context.Context, guardianID, studentID uint64) ([]model.ProductRestriction, []model.CategoryRestriction, error) {
	if err := s.requireLink(ctx, guardianID, studentID); err != nil {
		return nil, nil, err
	}
	return s.restrictions.ListRestrictions(ctx, studentID)
}
