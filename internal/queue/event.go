// Package queue defines message payloads exchanged over the message broker
// plus the publisher and background consumer for order notifications.
package queue

import "time"

// OrderPaidEvent is published after a checkout commits.  It carries
// enough information for downstream consumers to notify guardians or
// feed dashboards without querying the primary database.
type OrderPaidEvent struct {
	OrderID   uint64    `json:"order_id"`
	OrderHash string    `json:"order_hash"`
	SchoolID  uint64    `json:"school_id"`
	StudentID uint64    `json:"student_id"`
	CanteenID uint64    `json:"canteen_id"`
	Total     string    `json:"total"`
	PaidAt    time.Time `json:"paid_at"`
}
