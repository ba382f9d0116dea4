package repository

import (
	"context"
	"database/sql"

	"github.com/cantapp/canteen-core/internal/model"
)

// UserRepository reads accounts for authentication and scoping.
type UserRepository struct {
	DB *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{DB: db}
}

// GetByEmail looks up an account by email for login.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	row := r.DB.QueryRowContext(ctx,
		`SELECT id, school_id, canteen_id, email, password_hash, name, role, created_at
		 FROM users WHERE email = ?`, email)
	var u model.User
	err := row.Scan(&u.ID, &u.SchoolID, &u.CanteenID, &u.Email, &u.PasswordHash,
		&u.Name, &u.Role, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByID loads one account.
func (r *UserRepository) GetByID(ctx context.Context, id uint64) (*model.User, error) {
	row := r.DB.QueryRowContext(ctx,
		`SELECT id, school_id, canteen_id, email, password_hash, name, role, created_at
		 FROM users WHERE id = ?`, id)
	var u model.User
	err := row.Scan(&u.ID, &u.SchoolID, &u.CanteenID, &u.Email, &u.PasswordHash,
		&u.Name, &u.Role, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetTx loads one account inside the caller's transaction, as checkout
// does when resolving the student being purchased for.
func (r *UserRepository) GetTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.User, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT id, school_id, canteen_id, email, password_hash, name, role, created_at
		 FROM users WHERE id = ?`, id)
	var u model.User
	err := row.Scan(&u.ID, &u.SchoolID, &u.CanteenID, &u.Email, &u.PasswordHash,
		&u.Name, &u.Role, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}
