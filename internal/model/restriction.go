package model

import "time"

// ProductRestriction blocks a specific product for a specific student.
// Restrictions are authored by guardians and evaluated at checkout.
type ProductRestriction struct {
	ID        uint64    // product_restrictions.id
	UserID    uint64    // product_restrictions.user_id (the student)
	ProductID uint64    // product_restrictions.product_id
	CreatedAt time.Time // product_restrictions.created_at
}

// CategoryRestriction blocks an entire product category for a student.
type CategoryRestriction struct {
	ID        uint64    // category_restrictions.id
	UserID    uint64    // category_restrictions.user_id (the student)
	Category  string    // category_restrictions.category
	CreatedAt time.Time // category_restrictions.created_at
}
