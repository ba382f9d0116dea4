package model

import "time"

// Stock reservation status values.
const (
	ReservationActive    = "ACTIVE"
	ReservationCompleted = "COMPLETED"
	ReservationExpired   = "EXPIRED"
)

// StockReservation is a temporary hold against a component product's
// stock.  Reservations never touch the physical stock column; they only
// reduce the derived available quantity.  A reservation left ACTIVE past
// ExpiresAt is ignored by availability queries and eventually flipped to
// EXPIRED by the sweeper.
type StockReservation struct {
	ID        uint64    // stock_reservations.id
	ProductID uint64    // stock_reservations.product_id
	CanteenID uint64    // stock_reservations.canteen_id
	OrderID   *uint64   // stock_reservations.order_id (nullable)
	Quantity  int       // stock_reservations.quantity
	Status    string    // stock_reservations.status
	Reason    string    // stock_reservations.reason
	ExpiresAt time.Time // stock_reservations.expires_at
	CreatedAt time.Time // stock_reservations.created_at
}
