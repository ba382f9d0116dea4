package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/cantapp/canteen-core/internal/model"
)

// StockReservationRepository manages temporary holds against product
// stock.  Reservations are the only mechanism that claims availability
// before delivery; physical stock is untouched until fulfilment.
type StockReservationRepository struct {
	DB *sql.DB
}

func NewStockReservationRepository(db *sql.DB) *StockReservationRepository {
	return &StockReservationRepository{DB: db}
}

// CreateTx inserts one ACTIVE hold and returns its id.  Callers create
// holds one product at a time so that each subsequent availability check
// inside the same transaction observes the holds created before it.
func (r *StockReservationRepository) CreateTx(ctx context.Context, tx *sql.Tx, sr *model.StockReservation) (uint64, error) {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO stock_reservations (product_id, canteen_id, order_id, quantity, status, reason, expires_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, UTC_TIMESTAMP())`,
		sr.ProductID, sr.CanteenID, sr.OrderID, sr.Quantity, model.ReservationActive, sr.Reason, sr.ExpiresAt.UTC())
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	sr.ID = uint64(id)
	return sr.ID, nil
}

// AttachOrderTx stamps the given holds with the order they back.  Holds
// are created before the order row exists, so the id is filled in once
// the order insert returns.
func (r *StockReservationRepository) AttachOrderTx(ctx context.Context, tx *sql.Tx, ids []uint64, orderID uint64) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, 0, len(ids)+1)
	args = append(args, orderID)
	for _, id := range ids {
		args = append(args, id)
	}
	_, err := tx.ExecContext(ctx,
		`UPDATE stock_reservations SET order_id = ? WHERE id IN (`+placeholders+`)`, args...)
	return err
}

// CompleteTx flips the named holds from ACTIVE to COMPLETED.  Targeting
// ids rather than product ids guarantees a delivery can never consume a
// hold that belongs to a different order.
func (r *StockReservationRepository) CompleteTx(ctx context.Context, tx *sql.Tx, ids []uint64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, 0, len(ids)+2)
	args = append(args, model.ReservationCompleted)
	for _, id := range ids {
		args = append(args, id)
	}
	args = append(args, model.ReservationActive)
	res, err := tx.ExecContext(ctx,
		`UPDATE stock_reservations SET status = ? WHERE id IN (`+placeholders+`) AND status = ?`, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ExpireOverdue flips every ACTIVE hold whose expiry has passed to
// EXPIRED and returns the number of rows touched.  The statement is a
// single idempotent UPDATE, so concurrent sweeper replicas cannot
// double-release stock.
func (r *StockReservationRepository) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE stock_reservations SET status = ?
		 WHERE status = ? AND expires_at < ?`,
		model.ReservationExpired, model.ReservationActive, now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
