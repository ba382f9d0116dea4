package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/cantapp/canteen-core/internal/model"
	"github.com/cantapp/canteen-core/internal/service"
)

// CheckoutHandler exposes the purchase endpoint.  Authentication and
// role validation happen in middleware; the handler translates the
// request into a CheckoutInput and maps service errors to status codes.
type CheckoutHandler struct {
	Checkout *service.CheckoutService
}

func NewCheckoutHandler(s *service.CheckoutService) *CheckoutHandler {
	if s == nil {
		panic("nil service passed to NewCheckoutHandler")
	}
	return &CheckoutHandler{Checkout: s}
}

type checkoutReq struct {
	StudentID uint64                 `json:"student_id"`
	CanteenID uint64                 `json:"canteen_id"`
	Items     []model.OrderItemInput `json:"items"`
}

type orderResp struct {
	ID          uint64     `json:"id"`
	Status      string     `json:"status"`
	OrderHash   string     `json:"order_hash"`
	TotalAmount string     `json:"total_amount"`
	StudentID   uint64     `json:"student_id"`
	CanteenID   uint64     `json:"canteen_id"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func toOrderResp(o *model.Order) orderResp {
	return orderResp{
		ID:          o.ID,
		Status:      o.Status,
		OrderHash:   o.OrderHash,
		TotalAmount: o.TotalAmount.StringFixed(2),
		StudentID:   o.StudentID,
		CanteenID:   o.CanteenID,
		DeliveredAt: o.DeliveredAt,
		CreatedAt:   o.CreatedAt,
	}
}

// Create handles POST /v1/orders.  A guardian buys for a linked student;
// a student buys for themselves when their wallet allows it.  An
// Idempotency-Key header makes retries of the same purchase safe: the
// original order is returned with 200 instead of creating a second one.
func (h *CheckoutHandler) Create(c echo.Context) error {
	buyerID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	schoolID, err := getSchoolID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req checkoutReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.StudentID == 0 || req.CanteenID == 0 || len(req.Items) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "student_id, canteen_id and items are required"})
	}

	order, created, err := h.Checkout.Checkout(c.Request().Context(), service.CheckoutInput{
		BuyerID:        buyerID,
		SchoolID:       schoolID,
		StudentID:      req.StudentID,
		CanteenID:      req.CanteenID,
		Items:          req.Items,
		IdempotencyKey: strings.TrimSpace(c.Request().Header.Get("Idempotency-Key")),
	})
	if err != nil {
		return writeServiceError(c, err)
	}
	status := http.StatusCreated
	if !created {
		status = http.StatusOK
	}
	return c.JSON(status, toOrderResp(order))
}
