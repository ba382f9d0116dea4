package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"

	"github.com/cantapp/canteen-core/internal/model"
)

// RestrictionRepository manages the per-student purchase blocklists a
// guardian maintains, plus the guardian-student links that authorize
// managing them.
type RestrictionRepository struct {
	DB *sql.DB
}

func NewRestrictionRepository(db *sql.DB) *RestrictionRepository {
	return &RestrictionRepository{DB: db}
}

// ProductRestrictionsTx returns the product ids blocked for a student.
func (r *RestrictionRepository) ProductRestrictionsTx(ctx context.Context, tx *sql.Tx, userID uint64) (map[uint64]bool, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT product_id FROM product_restrictions WHERE user_id = ?`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[uint64]bool{}
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = true
	}
	return out, rows.Err()
}

// CategoryRestrictionsTx returns the category labels blocked for a student.
func (r *RestrictionRepository) CategoryRestrictionsTx(ctx context.Context, tx *sql.Tx, userID uint64) (map[string]bool, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT category FROM category_restrictions WHERE user_id = ?`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]bool{}
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		out[c] = true
	}
	return out, rows.Err()
}

// AddProductRestrictionTx blocks one product for a student inside the
// caller's transaction, so the block and its audit entry commit
// together.  Duplicates map to ErrConflict.
func (r *RestrictionRepository) AddProductRestrictionTx(ctx context.Context, tx *sql.Tx, userID, productID uint64) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO product_restrictions (user_id, product_id, created_at)
		 VALUES (?, ?, UTC_TIMESTAMP())`,
		userID, productID)
	var me *mysql.MySQLError
	if errors.As(err, &me) && me.Number == 1062 {
		return ErrConflict
	}
	return err
}

// RemoveProductRestrictionTx lifts a product block.
func (r *RestrictionRepository) RemoveProductRestrictionTx(ctx context.Context, tx *sql.Tx, userID, productID uint64) error {
	_, err := tx.ExecContext(ctx,
		`DELETE FROM product_restrictions WHERE user_id = ? AND product_id = ?`,
		userID, productID)
	return err
}

// AddCategoryRestrictionTx blocks a whole category for a student.
// Duplicates map to ErrConflict.
func (r *RestrictionRepository) AddCategoryRestrictionTx(ctx context.Context, tx *sql.Tx, userID uint64, category string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO category_restrictions (user_id, category, created_at)
		 VALUES (?, ?, UTC_TIMESTAMP())`,
		userID, category)
	var me *mysql.MySQLError
	if errors.As(err, &me) && me.Number == 1062 {
		return ErrConflict
	}
	return err
}

// RemoveCategoryRestrictionTx lifts a category block.
func (r *RestrictionRepository) RemoveCategoryRestrictionTx(ctx context.Context, tx *sql.Tx, userID uint64, category string) error {
	_, err := tx.ExecContext(ctx,
		`DELETE FROM category_restrictions WHERE user_id = ? AND category = ?`,
		userID, category)
	return err
}

// GuardianLinked reports whether the guardian is linked to the student.
// Guardian-only endpoints gate on this before touching wallet controls
// or restrictions.
func (r *RestrictionRepository) GuardianLinked(ctx context.Context, guardianID, studentID uint64) (bool, error) {
	var one int
	err := r.DB.QueryRowContext(ctx,
		`SELECT 1 FROM guardian_students WHERE guardian_id = ? AND student_id = ?`,
		guardianID, studentID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ListRestrictions returns both blocklists for the guardian dashboard.
func (r *RestrictionRepository) ListRestrictions(ctx context.Context, userID uint64) ([]model.ProductRestriction, []model.CategoryRestriction, error) {
	prows, err := r.DB.QueryContext(ctx,
		`SELECT id, user_id, product_id, created_at FROM product_restrictions WHERE user_id = ?`, userID)
	if err != nil {
		return nil, nil, err
	}
	defer prows.Close()

	var products []model.ProductRestriction
	for prows.Next() {
		var pr model.ProductRestriction
		if err := prows.Scan(&pr.ID, &pr.UserID, &pr.ProductID, &pr.CreatedAt); err != nil {
			return nil, nil, err
		}
		products = append(products, pr)
	}
	if err := prows.Err(); err != nil {
		return nil, nil, err
	}

	crows, err := r.DB.QueryContext(ctx,
		`SELECT id, user_id, category, created_at FROM category_restrictions WHERE user_id = ?`, userID)
	if err != nil {
		return nil, nil, err
	}
	defer crows.Close()

	var categories []model.CategoryRestriction
	for crows.Next() {
		var cr model.CategoryRestriction
		if err := crows.Scan(&cr.ID, &cr.UserID, &cr.Category, &cr.CreatedAt); err != nil {
			return nil, nil, err
		}
		categories = append(categories, cr)
	}
	return products, categories, crows.Err()
}
