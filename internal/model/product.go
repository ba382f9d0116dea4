package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product mirrors the products table.  Products belong to exactly one
// canteen inside one school.  Stock is the physical unit count on hand;
// the sellable quantity is always derived by subtracting active
// reservations, never stored.  A kit product is a composite whose stock
// lives entirely on its components.
//
// Fields:
//  ID          – primary key identifier.
//  SchoolID    – owning tenant.
//  CanteenID   – canteen that sells and fulfils the product.
//  Name        – display name.
//  Category    – free-form category label used by category restrictions.
//  Price       – list price.
//  SalePrice   – optional discounted price; wins over Price when present.
//  Stock       – physical units on hand (always zero for kits).
//  MinStock    – alert threshold for low-stock reporting.
//  IsAvailable – menu availability flag.
//  IsKit       – composite flag; kit stock is tracked on components only.
//  Version     – optimistic-lock counter, bumped on every stock-affecting write.
//  DeletedAt   – soft-delete marker; non-nil rows are invisible to commerce.
type Product struct {
	ID          uint64           // products.id
	SchoolID    uint64           // products.school_id
	CanteenID   uint64           // products.canteen_id
	Name        string           // products.name
	Category    string           // products.category
	Price       decimal.Decimal  // products.price
	SalePrice   *decimal.Decimal // products.sale_price (nullable)
	Stock       int              // products.stock
	MinStock    int              // products.min_stock
	IsAvailable bool             // products.is_available
	IsKit       bool             // products.is_kit
	Version     uint64           // products.version
	DeletedAt   *time.Time       // products.deleted_at (nullable)
	CreatedAt   time.Time        // products.created_at
	UpdatedAt   time.Time        // products.updated_at
}

// EffectivePrice returns the sale price when one is set, otherwise the
// list price.  Order items capture this value at purchase time.
func (p *Product) EffectivePrice() decimal.Decimal {
	if p.SalePrice != nil {
		return *p.SalePrice
	}
	return p.Price
}

// KitComponent links a kit product to one of its simple components.
// Quantity is the number of component units consumed per one kit unit.
// Components are always simple products; nesting kits is not allowed.
type KitComponent struct {
	ID          uint64 // kit_components.id
	KitID       uint64 // kit_components.kit_id
	ComponentID uint64 // kit_components.component_id
	Quantity    int    // kit_components.quantity
}

// InventoryLog is an append-only record of a physical stock movement.
// Delivery finalization writes one row per component with a negative
// change; restocking paths write positive rows.
type InventoryLog struct {
	ID        uint64    // inventory_logs.id
	ProductID uint64    // inventory_logs.product_id
	CanteenID uint64    // inventory_logs.canteen_id
	Change    int       // inventory_logs.delta (signed)
	Reason    string    // inventory_logs.reason
	CreatedAt time.Time // inventory_logs.created_at
}
