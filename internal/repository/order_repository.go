package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"

	"github.com/cantapp/canteen-core/internal/model"
)

// OrderRepository persists orders and their line items.
type OrderRepository struct {
	DB *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{DB: db}
}

const orderColumns = `id, school_id, buyer_id, student_id, canteen_id, total_amount, status,
	order_hash, idempotency_key, delivered_at, created_at, updated_at`

func scanOrder(row interface{ Scan(...any) error }) (*model.Order, error) {
	var o model.Order
	err := row.Scan(&o.ID, &o.SchoolID, &o.BuyerID, &o.StudentID, &o.CanteenID,
		&o.TotalAmount, &o.Status, &o.OrderHash, &o.IdempotencyKey,
		&o.DeliveredAt, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// GetByIdempotencyKey returns the prior order created under this key for
// this buyer, or nil when the key has never been used.  The buyer scope
// keeps one client's key from replaying another's order.
func (r *OrderRepository) GetByIdempotencyKey(ctx context.Context, buyerID uint64, key string) (*model.Order, error) {
	row := r.DB.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE buyer_id = ? AND idempotency_key = ?`,
		buyerID, key)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return o, err
}

// CreateTx inserts the order header and its items.  A duplicate
// idempotency key surfaces as ErrConflict so the orchestrator can fall
// back to returning the winner of the race.
func (r *OrderRepository) CreateTx(ctx context.Context, tx *sql.Tx, o *model.Order, items []model.OrderItem) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO orders (school_id, buyer_id, student_id, canteen_id, total_amount, status,
		                     order_hash, idempotency_key, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, UTC_TIMESTAMP(), UTC_TIMESTAMP())`,
		o.SchoolID, o.BuyerID, o.StudentID, o.CanteenID, o.TotalAmount, o.Status,
		o.OrderHash, o.IdempotencyKey)
	if err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) && me.Number == 1062 {
			return ErrConflict
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	o.ID = uint64(id)

	for i := range items {
		items[i].OrderID = o.ID
		ir, err := tx.ExecContext(ctx,
			`INSERT INTO order_items (order_id, product_id, quantity, unit_price)
			 VALUES (?, ?, ?, ?)`,
			items[i].OrderID, items[i].ProductID, items[i].Quantity, items[i].UnitPrice)
		if err != nil {
			return err
		}
		iid, err := ir.LastInsertId()
		if err != nil {
			return err
		}
		items[i].ID = uint64(iid)
	}
	return nil
}

// UpdateStatusTx moves an order between states with a guard on the
// expected current status.  Zero rows affected means the order advanced
// concurrently.
func (r *OrderRepository) UpdateStatusTx(ctx context.Context, tx *sql.Tx, orderID uint64, from, to string) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE orders SET status = ?, updated_at = UTC_TIMESTAMP() WHERE id = ? AND status = ?`,
		to, orderID, from)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrVersionConflict
	}
	return nil
}

// MarkDeliveredTx stamps the delivery time alongside the status flip.
func (r *OrderRepository) MarkDeliveredTx(ctx context.Context, tx *sql.Tx, orderID uint64) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE orders SET status = ?, delivered_at = UTC_TIMESTAMP(), updated_at = UTC_TIMESTAMP()
		 WHERE id = ? AND status = ?`,
		model.OrderStatusDelivered, orderID, model.OrderStatusPaid)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrVersionConflict
	}
	return nil
}

// GetForDeliveryTx loads a PAID order for fulfilment, verifying that it
// belongs to the staff member's canteen.  Wrong-canteen access maps to
// ErrForbidden rather than a not-found so the caller can distinguish the
// two in its responses.
func (r *OrderRepository) GetForDeliveryTx(ctx context.Context, tx *sql.Tx, orderID, canteenID uint64) (*model.Order, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = ?`, orderID)
	o, err := scanOrder(row)
	if err != nil {
		return nil, err
	}
	if o.CanteenID != canteenID {
		return nil, ErrForbidden
	}
	return o, nil
}

// ItemsTx loads the line items for one order.
func (r *OrderRepository) ItemsTx(ctx context.Context, tx *sql.Tx, orderID uint64) ([]model.OrderItem, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT id, order_id, product_id, quantity, unit_price FROM order_items WHERE order_id = ?`,
		orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.OrderItem
	for rows.Next() {
		var it model.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.UnitPrice); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// GetByHash resolves an order from its pickup hash, scoped to a canteen.
// Used by the staff QR-scan flow.
func (r *OrderRepository) GetByHash(ctx context.Context, canteenID uint64, hash string) (*model.Order, error) {
	row := r.DB.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE canteen_id = ? AND order_hash = ?`,
		canteenID, hash)
	return scanOrder(row)
}

// ListByCanteenStatus returns the most recent orders of a canteen in one
// status, newest first, for the staff order board.
func (r *OrderRepository) ListByCanteenStatus(ctx context.Context, canteenID uint64, status string, limit int) ([]model.Order, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders
		 WHERE canteen_id = ? AND status = ?
		 ORDER BY created_at DESC LIMIT ?`,
		canteenID, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}
