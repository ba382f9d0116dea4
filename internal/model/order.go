package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order status values.  PENDING exists only inside the checkout
// transaction; committed orders are always PAID or later.
const (
	OrderStatusPending   = "PENDING"
	OrderStatusPaid      = "PAID"
	OrderStatusDelivered = "DELIVERED"
	OrderStatusCancelled = "CANCELLED"
)

// Order records a purchase made by a buyer on behalf of a student.  The
// buyer and the student may be the same user.  OrderHash is the
// human-traceable reference printed on receipts and encoded in QR codes.
// IdempotencyKey is the optional client-supplied token that makes a
// retried checkout return the original order instead of charging twice.
type Order struct {
	ID             uint64          // orders.id
	SchoolID       uint64          // orders.school_id
	BuyerID        uint64          // orders.buyer_id
	StudentID      uint64          // orders.student_id
	CanteenID      uint64          // orders.canteen_id
	TotalAmount    decimal.Decimal // orders.total_amount
	Status         string          // orders.status
	OrderHash      string          // orders.order_hash
	IdempotencyKey *string         // orders.idempotency_key (nullable, unique)
	DeliveredAt    *time.Time      // orders.delivered_at (nullable)
	CreatedAt      time.Time       // orders.created_at
	UpdatedAt      time.Time       // orders.updated_at
}

// OrderItem is one line of an order.  UnitPrice is captured at purchase
// time and never recomputed from the product afterwards.
type OrderItem struct {
	ID        uint64          // order_items.id
	OrderID   uint64          // order_items.order_id
	ProductID uint64          // order_items.product_id
	Quantity  int             // order_items.quantity
	UnitPrice decimal.Decimal // order_items.unit_price
}

// OrderItemInput is the client-facing shape of a requested line item.
type OrderItemInput struct {
	ProductID uint64 `json:"product_id"`
	Quantity  int    `json:"quantity"`
}
