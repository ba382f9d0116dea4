package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/cantapp/canteen-core/internal/model"
	"github.com/cantapp/canteen-core/internal/repository"
)

// Stock engine errors.
var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrProductNotFound   = errors.New("product not found")
	ErrProductGone       = errors.New("product unavailable")
	ErrNestedKit         = errors.New("kit contains another kit")
)

// StockService reserves and releases component stock.  It never opens a
// transaction of its own; every method takes the orchestrator's *sql.Tx
// so reservation checks and inserts share one consistent snapshot.
type StockService struct {
	products     *repository.ProductRepository
	reservations *repository.StockReservationRepository
	ttl          time.Duration
	log          *zap.Logger
}

func NewStockService(p *repository.ProductRepository, r *repository.StockReservationRepository, ttl time.Duration, log *zap.Logger) *StockService {
	return &StockService{products: p, reservations: r, ttl: ttl, log: log}
}

// componentNeed is one exploded demand line: how many units of a simple
// product the purchase consumes once kits are flattened.
type componentNeed struct {
	ProductID uint64
	Quantity  int
}

// explodeItems flattens requested items into per-component demand.
// Simple products contribute their own quantity; kit products contribute
// componentQty x purchasedQty against each component.  Demand for the
// same component across lines is merged.  The result is sorted by
// product id so reservation order is deterministic across concurrent
// checkouts, which keeps serializable transactions from deadlocking on
// each other more than necessary.
func explodeItems(items []model.OrderItemInput, products map[uint64]*model.Product, components []model.KitComponent) ([]componentNeed, error) {
	byKit := map[uint64][]model.KitComponent{}
	for _, kc := range components {
		byKit[kc.KitID] = append(byKit[kc.KitID], kc)
	}

	need := map[uint64]int{}
	for _, it := range items {
		p, ok := products[it.ProductID]
		if !ok {
			return nil, fmt.Errorf("%w: %d", ErrProductNotFound, it.ProductID)
		}
		if !p.IsKit {
			need[p.ID] += it.Quantity
			continue
		}
		kcs := byKit[p.ID]
		if len(kcs) == 0 {
			return nil, fmt.Errorf("%w: kit %d has no components", ErrProductGone, p.ID)
		}
		for _, kc := range kcs {
			if comp, ok := products[kc.ComponentID]; ok && comp.IsKit {
				return nil, fmt.Errorf("%w: %d", ErrNestedKit, kc.ComponentID)
			}
			need[kc.ComponentID] += kc.Quantity * it.Quantity
		}
	}

	out := make([]componentNeed, 0, len(need))
	for id, qty := range need {
		out = append(out, componentNeed{ProductID: id, Quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

// checkAvailable validates one demand line against a derived
// availability figure.
func checkAvailable(available, wanted int) error {
	if wanted > available {
		return fmt.Errorf("%w: want %d, have %d", ErrInsufficientStock, wanted, available)
	}
	return nil
}

// ReserveTx explodes the requested items and places one ACTIVE hold per
// component inside the caller's transaction.  Checks and inserts run
// sequentially per component, so each check observes the holds this same
// call already created; a basket that needs the same component through
// two kits cannot oversell it.  Returns the ids of the created holds.
func (s *StockService) ReserveTx(ctx context.Context, tx *sql.Tx, canteenID uint64, items []model.OrderItemInput, reason string) ([]uint64, error) {
	ids := make([]uint64, 0, len(items)*2)
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}

	products, err := s.products.GetManyTx(ctx, tx, canteenID, ids)
	if err != nil {
		return nil, err
	}
	var kitIDs []uint64
	for _, it := range items {
		p, ok := products[it.ProductID]
		if !ok {
			return nil, fmt.Errorf("%w: %d", ErrProductNotFound, it.ProductID)
		}
		if !p.IsAvailable {
			return nil, fmt.Errorf("%w: %d", ErrProductGone, it.ProductID)
		}
		if p.IsKit {
			kitIDs = append(kitIDs, p.ID)
		}
	}

	components, err := s.products.KitComponentsTx(ctx, tx, kitIDs)
	if err != nil {
		return nil, err
	}
	// Components may not be in the requested set; load the missing ones
	// so availability and the nested-kit guard can see them.
	var missing []uint64
	for _, kc := range components {
		if _, ok := products[kc.ComponentID]; !ok {
			missing = append(missing, kc.ComponentID)
		}
	}
	if len(missing) > 0 {
		extra, err := s.products.GetManyTx(ctx, tx, canteenID, missing)
		if err != nil {
			return nil, err
		}
		for id, p := range extra {
			products[id] = p
		}
	}

	needs, err := explodeItems(items, products, components)
	if err != nil {
		return nil, err
	}

	expires := time.Now().UTC().Add(s.ttl)
	holdIDs := make([]uint64, 0, len(needs))
	for _, n := range needs {
		available, err := s.products.AvailableStockTx(ctx, tx, n.ProductID)
		if err != nil {
			return nil, err
		}
		if err := checkAvailable(available, n.Quantity); err != nil {
			s.log.Info("reservation rejected",
				zap.Uint64("product_id", n.ProductID),
				zap.Int("wanted", n.Quantity),
				zap.Int("available", available))
			return nil, fmt.Errorf("product %d: %w", n.ProductID, err)
		}
		id, err := s.reservations.CreateTx(ctx, tx, &model.StockReservation{
			ProductID: n.ProductID,
			CanteenID: canteenID,
			Quantity:  n.Quantity,
			Reason:    reason,
			ExpiresAt: expires,
		})
		if err != nil {
			return nil, err
		}
		if err := s.products.BumpVersionTx(ctx, tx, n.ProductID); err != nil {
			return nil, err
		}
		holdIDs = append(holdIDs, id)
	}
	return holdIDs, nil
}

// AttachOrderTx links freshly created holds to their order row.
func (s *StockService) AttachOrderTx(ctx context.Context, tx *sql.Tx, holdIDs []uint64, orderID uint64) error {
	return s.reservations.AttachOrderTx(ctx, tx, holdIDs, orderID)
}

// CompleteHoldsTx flips exactly the named holds to COMPLETED once the
// order they back is paid.  Completing by id rather than by product id
// keeps a concurrent order's ACTIVE holds untouched.
func (s *StockService) CompleteHoldsTx(ctx context.Context, tx *sql.Tx, holdIDs []uint64) error {
	n, err := s.reservations.CompleteTx(ctx, tx, holdIDs)
	if err != nil {
		return err
	}
	if n != int64(len(holdIDs)) {
		return repository.ErrVersionConflict
	}
	return nil
}

// FinalizeDeliveryTx turns the virtual claim made at checkout into a
// physical inventory movement.  It re-applies the kit explosion over the
// order's stored line items and decrements each component's stock under
// optimistic locking, writing one inventory log row per movement.  This
// is the only path that mutates the stock column.
func (s *StockService) FinalizeDeliveryTx(ctx context.Context, tx *sql.Tx, order *model.Order, items []model.OrderItem) error {
	if len(items) == 0 {
		return fmt.Errorf("%w: order %d has no items", ErrProductNotFound, order.ID)
	}

	inputs := make([]model.OrderItemInput, 0, len(items))
	ids := make([]uint64, 0, len(items))
	for _, it := range items {
		inputs = append(inputs, model.OrderItemInput{ProductID: it.ProductID, Quantity: it.Quantity})
		ids = append(ids, it.ProductID)
	}

	products, err := s.products.GetManyTx(ctx, tx, order.CanteenID, ids)
	if err != nil {
		return err
	}
	var kitIDs []uint64
	for _, it := range items {
		p, ok := products[it.ProductID]
		if !ok {
			return fmt.Errorf("%w: %d", ErrProductNotFound, it.ProductID)
		}
		if p.IsKit {
			kitIDs = append(kitIDs, p.ID)
		}
	}
	components, err := s.products.KitComponentsTx(ctx, tx, kitIDs)
	if err != nil {
		return err
	}
	var missing []uint64
	for _, kc := range components {
		if _, ok := products[kc.ComponentID]; !ok {
			missing = append(missing, kc.ComponentID)
		}
	}
	if len(missing) > 0 {
		extra, err := s.products.GetManyTx(ctx, tx, order.CanteenID, missing)
		if err != nil {
			return err
		}
		for id, p := range extra {
			products[id] = p
		}
	}

	needs, err := explodeItems(inputs, products, components)
	if err != nil {
		return err
	}

	reason := fmt.Sprintf("delivery order %d", order.ID)
	for _, n := range needs {
		p, ok := products[n.ProductID]
		if !ok {
			return fmt.Errorf("%w: %d", ErrProductNotFound, n.ProductID)
		}
		if err := s.products.DecrementStockTx(ctx, tx, p.ID, p.Version, n.Quantity, reason); err != nil {
			return err
		}
	}
	return nil
}
