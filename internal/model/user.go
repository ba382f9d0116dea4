package model

import "time"

// User roles.  Canteen staff carry a canteen id in their token so order
// fulfilment endpoints can scope queries without extra lookups.
const (
	RoleGuardian    = "GUARDIAN"
	RoleStudent     = "STUDENT"
	RoleStaff       = "STAFF"
	RoleSchoolAdmin = "SCHOOL_ADMIN"
)

// User is the minimal account shape the commerce core needs: identity,
// tenant scoping and credentials.  Full profile management lives outside
// this service.
type User struct {
	ID           uint64    // users.id
	SchoolID     uint64    // users.school_id
	CanteenID    *uint64   // users.canteen_id (nullable, staff only)
	Email        string    // users.email
	PasswordHash string    // users.password_hash
	Name         string    // users.name
	Role         string    // users.role
	CreatedAt    time.Time // users.created_at
}
