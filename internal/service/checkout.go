package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cantapp/canteen-core/internal/database"
	"github.com/cantapp/canteen-core/internal/model"
	"github.com/cantapp/canteen-core/internal/queue"
	"github.com/cantapp/canteen-core/internal/repository"
)

// Checkout errors.
var (
	ErrNotLinked          = errors.New("guardian is not linked to student")
	ErrPurchaseNotAllowed = errors.New("student may not purchase alone")
	ErrDayNotAllowed      = errors.New("purchases not allowed today")
	ErrRestrictedItem     = errors.New("item is restricted for this student")
	ErrEmptyOrder         = errors.New("order has no items")
	ErrBadQuantity        = errors.New("quantity must be positive")
	ErrOrderNotFound      = errors.New("order not found")
	ErrOrderNotPaid       = errors.New("order is not awaiting delivery")
)

// checkoutTimeout bounds the serializable transaction; a checkout that
// cannot finish in this window is aborted and retried by the client.
const checkoutTimeout = 15 * time.Second

// OrderEventPublisher sends post-commit order notifications.  Publishing
// is best effort; a broker outage never fails a committed checkout.
type OrderEventPublisher interface {
	PublishOrderPaid(ctx context.Context, evt queue.OrderPaidEvent) error
}

// CheckoutInput is everything the orchestrator needs from the request
// and the caller's token claims.
type CheckoutInput struct {
	BuyerID        uint64
	SchoolID       uint64
	StudentID      uint64
	CanteenID      uint64
	Items          []model.OrderItemInput
	IdempotencyKey string
}

// CheckoutService runs the purchase flow end to end.  It owns exactly
// one serializable transaction per checkout; the stock, ledger and audit
// services all operate inside it and never open their own.
type CheckoutService struct {
	db           *sql.DB
	orders       *repository.OrderRepository
	products     *repository.ProductRepository
	restrictions *repository.RestrictionRepository
	wallets      *repository.WalletRepository
	users        *repository.UserRepository
	stock        *StockService
	ledger       *LedgerService
	audit        *AuditService
	publisher    OrderEventPublisher
	log          *zap.Logger
}

func NewCheckoutService(
	db *sql.DB,
	orders *repository.OrderRepository,
	products *repository.ProductRepository,
	restrictions *repository.RestrictionRepository,
	wallets *repository.WalletRepository,
	users *repository.UserRepository,
	stock *StockService,
	ledger *LedgerService,
	audit *AuditService,
	publisher OrderEventPublisher,
	log *zap.Logger,
) *CheckoutService {
	return &CheckoutService{
		db: db, orders: orders, products: products, restrictions: restrictions,
		wallets: wallets, users: users, stock: stock, ledger: ledger,
		audit: audit, publisher: publisher, log: log,
	}
}

// checkPurchaseWindow applies the wallet's temporal and autonomy gates.
// Guardians may buy any day their controls allow; a student buying for
// themselves additionally needs the safety switch on.
func checkPurchaseWindow(w *model.Wallet, now time.Time, buyerIsStudent bool) error {
	if buyerIsStudent && !w.CanPurchaseAlone {
		return ErrPurchaseNotAllowed
	}
	if len(w.AllowedDays) > 0 && !w.AllowsDay(now.UTC().Weekday()) {
		return ErrDayNotAllowed
	}
	return nil
}

// evaluateRestrictions rejects the purchase if any requested product, or
// any component of a requested kit, is blocked for the student either
// directly or through its category.
func evaluateRestrictions(
	items []model.OrderItemInput,
	products map[uint64]*model.Product,
	components []model.KitComponent,
	blockedProducts map[uint64]bool,
	blockedCategories map[string]bool,
) error {
	byKit := map[uint64][]model.KitComponent{}
	for _, kc := range components {
		byKit[kc.KitID] = append(byKit[kc.KitID], kc)
	}
	check := func(id uint64) error {
		if blockedProducts[id] {
			return fmt.Errorf("%w: product %d", ErrRestrictedItem, id)
		}
		if p, ok := products[id]; ok && blockedCategories[p.Category] {
			return fmt.Errorf("%w: category %s", ErrRestrictedItem, p.Category)
		}
		return nil
	}
	for _, it := range items {
		if err := check(it.ProductID); err != nil {
			return err
		}
		for _, kc := range byKit[it.ProductID] {
			if err := check(kc.ComponentID); err != nil {
				return err
			}
		}
	}
	return nil
}

// orderTotal prices the requested lines at their effective price and
// returns the line items plus the order total.  Kits are priced as a
// unit; component prices never enter the total.
func orderTotal(items []model.OrderItemInput, products map[uint64]*model.Product) ([]model.OrderItem, decimal.Decimal, error) {
	if len(items) == 0 {
		return nil, decimal.Zero, ErrEmptyOrder
	}
	total := decimal.Zero
	lines := make([]model.OrderItem, 0, len(items))
	for _, it := range items {
		if it.Quantity <= 0 {
			return nil, decimal.Zero, fmt.Errorf("%w: product %d", ErrBadQuantity, it.ProductID)
		}
		p, ok := products[it.ProductID]
		if !ok {
			return nil, decimal.Zero, fmt.Errorf("%w: %d", ErrProductNotFound, it.ProductID)
		}
		unit := p.EffectivePrice()
		lines = append(lines, model.OrderItem{
			ProductID: p.ID,
			Quantity:  it.Quantity,
			UnitPrice: unit,
		})
		total = total.Add(unit.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return lines, total, nil
}

// Checkout runs the full purchase flow.  The returned bool is true when
// a new order was created and false when the idempotency key resolved to
// a previously committed order.
func (s *CheckoutService) Checkout(ctx context.Context, in CheckoutInput) (*model.Order, bool, error) {
	// Idempotency first: a retried request short-circuits before any
	// state is touched.
	if in.IdempotencyKey != "" {
		prior, err := s.orders.GetByIdempotencyKey(ctx, in.BuyerID, in.IdempotencyKey)
		if err != nil {
			return nil, false, err
		}
		if prior != nil {
			return prior, false, nil
		}
	}

	ctx, cancel := context.WithTimeout(ctx, checkoutTimeout)
	defer cancel()

	tx, err := database.BeginSerializable(ctx, s.db)
	if err != nil {
		return nil, false, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	// Resolve the student and authorize the buyer.
	student, err := s.users.GetTx(ctx, tx, in.StudentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, ErrWalletNotFound
	}
	if err != nil {
		return nil, false, err
	}
	if student.SchoolID != in.SchoolID {
		return nil, false, repository.ErrForbidden
	}
	buyerIsStudent := in.BuyerID == in.StudentID
	if !buyerIsStudent {
		linked, err := s.restrictions.GuardianLinked(ctx, in.BuyerID, in.StudentID)
		if err != nil {
			return nil, false, err
		}
		if !linked {
			return nil, false, ErrNotLinked
		}
	}

	wallet, err := s.wallets.GetByUserTx(ctx, tx, in.StudentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, ErrWalletNotFound
	}
	if err != nil {
		return nil, false, err
	}
	if err := checkPurchaseWindow(wallet, time.Now(), buyerIsStudent); err != nil {
		return nil, false, err
	}

	// Load products and kit composition for pricing and restrictions.
	ids := make([]uint64, 0, len(in.Items))
	for _, it := range in.Items {
		ids = append(ids, it.ProductID)
	}
	products, err := s.products.GetManyTx(ctx, tx, in.CanteenID, ids)
	if err != nil {
		return nil, false, err
	}
	var kitIDs []uint64
	for _, p := range products {
		if p.IsKit {
			kitIDs = append(kitIDs, p.ID)
		}
	}
	components, err := s.products.KitComponentsTx(ctx, tx, kitIDs)
	if err != nil {
		return nil, false, err
	}
	var componentIDs []uint64
	for _, kc := range components {
		if _, ok := products[kc.ComponentID]; !ok {
			componentIDs = append(componentIDs, kc.ComponentID)
		}
	}
	if len(componentIDs) > 0 {
		extra, err := s.products.GetManyTx(ctx, tx, in.CanteenID, componentIDs)
		if err != nil {
			return nil, false, err
		}
		for id, p := range extra {
			products[id] = p
		}
	}

	blockedProducts, err := s.restrictions.ProductRestrictionsTx(ctx, tx, in.StudentID)
	if err != nil {
		return nil, false, err
	}
	blockedCategories, err := s.restrictions.CategoryRestrictionsTx(ctx, tx, in.StudentID)
	if err != nil {
		return nil, false, err
	}
	if err := evaluateRestrictions(in.Items, products, components, blockedProducts, blockedCategories); err != nil {
		return nil, false, err
	}

	lines, total, err := orderTotal(in.Items, products)
	if err != nil {
		return nil, false, err
	}

	// Reserve component stock, then persist the order against the holds.
	holdIDs, err := s.stock.ReserveTx(ctx, tx, in.CanteenID, in.Items, "checkout")
	if err != nil {
		return nil, false, err
	}

	order := &model.Order{
		SchoolID:    in.SchoolID,
		BuyerID:     in.BuyerID,
		StudentID:   in.StudentID,
		CanteenID:   in.CanteenID,
		TotalAmount: total,
		Status:      model.OrderStatusPending,
		OrderHash:   uuid.NewString(),
	}
	if in.IdempotencyKey != "" {
		key := in.IdempotencyKey
		order.IdempotencyKey = &key
	}
	if err := s.orders.CreateTx(ctx, tx, order, lines); err != nil {
		if errors.Is(err, repository.ErrConflict) && in.IdempotencyKey != "" {
			// Lost the idempotency race; the winner's order is the result.
			_ = tx.Rollback()
			committed = true
			prior, lerr := s.orders.GetByIdempotencyKey(context.WithoutCancel(ctx), in.BuyerID, in.IdempotencyKey)
			if lerr != nil {
				return nil, false, lerr
			}
			if prior == nil {
				return nil, false, err
			}
			return prior, false, nil
		}
		return nil, false, err
	}
	if err := s.stock.AttachOrderTx(ctx, tx, holdIDs, order.ID); err != nil {
		return nil, false, err
	}

	// Charge the buyer's wallet and flip the order to PAID.  The gates
	// above ran on the student's wallet; the money comes from whoever
	// is buying.
	desc := fmt.Sprintf("order %s", order.OrderHash)
	txn, err := s.ledger.DebitTx(ctx, tx, in.BuyerID, order.ID, total, desc)
	if err != nil {
		return nil, false, err
	}
	if err := s.orders.UpdateStatusTx(ctx, tx, order.ID, model.OrderStatusPending, model.OrderStatusPaid); err != nil {
		return nil, false, err
	}
	order.Status = model.OrderStatusPaid

	// The paid order now owns its claim; complete exactly the holds
	// created above so a concurrent checkout's holds stay untouched.
	if err := s.stock.CompleteHoldsTx(ctx, tx, holdIDs); err != nil {
		return nil, false, err
	}

	buyerID := in.BuyerID
	if _, err := s.audit.AppendTx(ctx, tx, in.SchoolID, &buyerID, "ORDER_PROCESS_COMPLETED", "order", &order.ID, map[string]any{
		"student_id": in.StudentID,
		"canteen_id": in.CanteenID,
		"total":      total.StringFixed(2),
		"ledger_id":  txn.ID,
	}); err != nil {
		return nil, false, err
	}

	if err := tx.Commit(); err != nil {
		return nil, false, err
	}
	committed = true

	s.log.Info("checkout committed",
		zap.Uint64("order_id", order.ID),
		zap.Uint64("buyer_id", in.BuyerID),
		zap.Uint64("student_id", in.StudentID),
		zap.String("total", total.StringFixed(2)))

	if s.publisher != nil {
		evt := queue.OrderPaidEvent{
			OrderID:   order.ID,
			OrderHash: order.OrderHash,
			SchoolID:  order.SchoolID,
			StudentID: order.StudentID,
			CanteenID: order.CanteenID,
			Total:     total.StringFixed(2),
			PaidAt:    time.Now().UTC(),
		}
		if err := s.publisher.PublishOrderPaid(context.WithoutCancel(ctx), evt); err != nil {
			s.log.Warn("order event publish failed", zap.Uint64("order_id", order.ID), zap.Error(err))
		}
	}
	return order, true, nil
}

// DeliverOrder finalizes a PAID order handed over at the counter:
// completes its holds, decrements physical stock and stamps delivery,
// all in one serializable transaction.
func (s *CheckoutService) DeliverOrder(ctx context.Context, staffID, canteenID, orderID uint64) (*model.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, checkoutTimeout)
	defer cancel()

	tx, err := database.BeginSerializable(ctx, s.db)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	order, err := s.orders.GetForDeliveryTx(ctx, tx, orderID, canteenID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	if order.Status != model.OrderStatusPaid {
		return nil, fmt.Errorf("%w: status %s", ErrOrderNotPaid, order.Status)
	}

	items, err := s.orders.ItemsTx(ctx, tx, order.ID)
	if err != nil {
		return nil, err
	}
	if err := s.stock.FinalizeDeliveryTx(ctx, tx, order, items); err != nil {
		return nil, err
	}
	if err := s.orders.MarkDeliveredTx(ctx, tx, order.ID); err != nil {
		return nil, err
	}
	order.Status = model.OrderStatusDelivered

	staff := staffID
	if _, err := s.audit.AppendTx(ctx, tx, order.SchoolID, &staff, "ORDER_DELIVERED", "order", &order.ID, map[string]any{
		"canteen_id": canteenID,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true

	s.log.Info("order delivered",
		zap.Uint64("order_id", order.ID),
		zap.Uint64("staff_id", staffID))
	return order, nil
}

// FindByHash resolves an order for the staff QR-scan flow.
func (s *CheckoutService) FindByHash(ctx context.Context, canteenID uint64, hash string) (*model.Order, error) {
	o, err := s.orders.GetByHash(ctx, canteenID, hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	return o, err
}
