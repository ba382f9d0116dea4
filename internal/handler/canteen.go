package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/cantapp/canteen-core/internal/model"
	"github.com/cantapp/canteen-core/internal/repository"
	"github.com/cantapp/canteen-core/internal/service"
)

// CanteenHandler serves the staff counter flow: the order board, QR-scan
// lookup and delivery finalization.  All routes require the STAFF role
// and a canteen_id claim; every query is scoped to that canteen.
type CanteenHandler struct {
	Checkout *service.CheckoutService
	Orders   *repository.OrderRepository
}

func NewCanteenHandler(checkout *service.CheckoutService, orders *repository.OrderRepository) *CanteenHandler {
	if checkout == nil || orders == nil {
		panic("nil dependency passed to NewCanteenHandler")
	}
	return &CanteenHandler{Checkout: checkout, Orders: orders}
}

// ListOrders handles GET /v1/canteen/orders?status=PAID&limit=50.
func (h *CanteenHandler) ListOrders(c echo.Context) error {
	canteenID, err := getCanteenID(c)
	if err != nil {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "no canteen assigned"})
	}
	status := strings.ToUpper(strings.TrimSpace(c.QueryParam("status")))
	if status == "" {
		status = model.OrderStatusPaid
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	orders, err := h.Orders.ListByCanteenStatus(c.Request().Context(), canteenID, status, limit)
	if err != nil {
		return writeServiceError(c, err)
	}
	out := make([]orderResp, 0, len(orders))
	for i := range orders {
		out = append(out, toOrderResp(&orders[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"orders": out})
}

// Scan handles GET /v1/canteen/orders/scan/:hash, resolving a pickup QR
// code to the order it identifies.
func (h *CanteenHandler) Scan(c echo.Context) error {
	canteenID, err := getCanteenID(c)
	if err != nil {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "no canteen assigned"})
	}
	hash := strings.TrimSpace(c.Param("hash"))
	if hash == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "hash is required"})
	}
	order, err := h.Checkout.FindByHash(c.Request().Context(), canteenID, hash)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, toOrderResp(order))
}

// Deliver handles POST /v1/canteen/orders/:id/deliver.  Completes the
// order's stock holds, decrements physical stock and stamps delivery.
func (h *CanteenHandler) Deliver(c echo.Context) error {
	staffID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	canteenID, err := getCanteenID(c)
	if err != nil {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "no canteen assigned"})
	}
	orderID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || orderID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid order id"})
	}

	order, err := h.Checkout.DeliverOrder(c.Request().Context(), staffID, canteenID, orderID)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, toOrderResp(order))
}
