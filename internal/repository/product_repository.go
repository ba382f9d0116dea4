package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/cantapp/canteen-core/internal/model"
)

// ProductRepository accesses products, kit compositions and inventory
// movement logs.  All methods that participate in checkout take an
// explicit *sql.Tx so the orchestrator controls transaction boundaries.
type ProductRepository struct {
	DB *sql.DB
}

func NewProductRepository(db *sql.DB) *ProductRepository {
	return &ProductRepository{DB: db}
}

// GetManyTx loads the given products within the caller's transaction,
// scoped to one canteen.  Soft-deleted rows are excluded.  The result
// map is keyed by product id; absent keys mean the product does not
// exist in that canteen.
func (r *ProductRepository) GetManyTx(ctx context.Context, tx *sql.Tx, canteenID uint64, ids []uint64) (map[uint64]*model.Product, error) {
	if len(ids) == 0 {
		return map[uint64]*model.Product{}, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	query := `SELECT id, school_id, canteen_id, name, category, price, sale_price,
	                 stock, min_stock, is_available, is_kit, version, created_at, updated_at
	          FROM products
	          WHERE canteen_id = ? AND deleted_at IS NULL AND id IN (` + placeholders + `)`

	args := make([]any, 0, len(ids)+1)
	args = append(args, canteenID)
	for _, id := range ids {
		args = append(args, id)
	}

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[uint64]*model.Product, len(ids))
	for rows.Next() {
		var p model.Product
		if err := rows.Scan(&p.ID, &p.SchoolID, &p.CanteenID, &p.Name, &p.Category,
			&p.Price, &p.SalePrice, &p.Stock, &p.MinStock, &p.IsAvailable,
			&p.IsKit, &p.Version, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out[p.ID] = &p
	}
	return out, rows.Err()
}

// KitComponentsTx returns the component rows for the given kit products.
// Products that are not kits simply produce no rows.
func (r *ProductRepository) KitComponentsTx(ctx context.Context, tx *sql.Tx, kitIDs []uint64) ([]model.KitComponent, error) {
	if len(kitIDs) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(kitIDs)), ",")
	query := `SELECT id, kit_id, component_id, quantity
	          FROM kit_components
	          WHERE kit_id IN (` + placeholders + `)`

	args := make([]any, 0, len(kitIDs))
	for _, id := range kitIDs {
		args = append(args, id)
	}

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.KitComponent
	for rows.Next() {
		var kc model.KitComponent
		if err := rows.Scan(&kc.ID, &kc.KitID, &kc.ComponentID, &kc.Quantity); err != nil {
			return nil, err
		}
		out = append(out, kc)
	}
	return out, rows.Err()
}

// AvailableStockTx computes the canonical availability of one product:
// physical stock minus the sum of its live reservation holds.  A hold is
// live while it is ACTIVE and not yet past its expiry, so rows the
// sweeper has not flipped yet still never free stock early.
func (r *ProductRepository) AvailableStockTx(ctx context.Context, tx *sql.Tx, productID uint64) (int, error) {
	query := `SELECT p.stock - COALESCE((
	              SELECT SUM(sr.quantity) FROM stock_reservations sr
	              WHERE sr.product_id = p.id
	                AND sr.status = ?
	                AND sr.expires_at > UTC_TIMESTAMP()
	          ), 0)
	          FROM products p WHERE p.id = ?`

	var available int
	err := tx.QueryRowContext(ctx, query, model.ReservationActive, productID).Scan(&available)
	return available, err
}

// BumpVersionTx increments a product's optimistic-lock counter.  The
// reservation path bumps it for every touched component so a stale
// admin stock edit loses its conditional update.
func (r *ProductRepository) BumpVersionTx(ctx context.Context, tx *sql.Tx, productID uint64) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE products SET version = version + 1 WHERE id = ?`, productID)
	return err
}

// DecrementStockTx moves physical stock down by qty under optimistic
// locking and records the movement in inventory_logs.  Delivery is the
// only caller; reservations never touch the stock column.
func (r *ProductRepository) DecrementStockTx(ctx context.Context, tx *sql.Tx, productID uint64, version uint64, qty int, reason string) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE products SET stock = stock - ?, version = version + 1, updated_at = UTC_TIMESTAMP()
		 WHERE id = ? AND version = ? AND stock >= ?`,
		qty, productID, version, qty)
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
	_, err = tx.ExecContext(ctx,
		`INSERT INTO inventory_logs (product_id, canteen_id, delta, reason, created_at)
		 SELECT id, canteen_id, ?, ?, UTC_TIMESTAMP() FROM products WHERE id = ?`,
		-qty, reason, productID)
	return err
}

// InsertInventoryLogTx records a manual inventory movement (restock,
// correction) outside the delivery path.
func (r *ProductRepository) InsertInventoryLogTx(ctx context.Context, tx *sql.Tx, l *model.InventoryLog) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO inventory_logs (product_id, canteen_id, delta, reason, created_at)
		 VALUES (?, ?, ?, ?, UTC_TIMESTAMP())`,
		l.ProductID, l.CanteenID, l.Change, l.Reason)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	l.ID = uint64(id)
	return nil
}
