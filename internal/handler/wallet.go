package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/cantapp/canteen-core/internal/model"
	"github.com/cantapp/canteen-core/internal/service"
)

// WalletHandler serves wallet reads, parental controls and recharges.
type WalletHandler struct {
	Wallets *service.WalletService
	Ledger  *service.LedgerService
}

func NewWalletHandler(w *service.WalletService, l *service.LedgerService) *WalletHandler {
	if w == nil || l == nil {
		panic("nil dependency passed to NewWalletHandler")
	}
	return &WalletHandler{Wallets: w, Ledger: l}
}

type walletResp struct {
	ID               uint64 `json:"id"`
	UserID           uint64 `json:"user_id"`
	Balance          string `json:"balance"`
	DailySpendLimit  string `json:"daily_spend_limit"`
	AllowedDays      []int  `json:"allowed_days"`
	CanPurchaseAlone bool   `json:"can_purchase_alone"`
}

func toWalletResp(w *model.Wallet) walletResp {
	days := w.AllowedDays
	if days == nil {
		days = []int{}
	}
	return walletResp{
		ID:               w.ID,
		UserID:           w.UserID,
		Balance:          w.Balance.StringFixed(2),
		DailySpendLimit:  w.DailySpendLimit.StringFixed(2),
		AllowedDays:      days,
		CanPurchaseAlone: w.CanPurchaseAlone,
	}
}

func studentParam(c echo.Context) (uint64, error) {
	return strconv.ParseUint(c.Param("studentId"), 10, 64)
}

// Get handles GET /v1/students/:studentId/wallet.
func (h *WalletHandler) Get(c echo.Context) error {
	callerID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	studentID, err := studentParam(c)
	if err != nil || studentID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid student id"})
	}
	w, err := h.Wallets.Get(c.Request().Context(), callerID, studentID)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, toWalletResp(w))
}

type controlsReq struct {
	DailySpendLimit string `json:"daily_spend_limit"`
	AllowedDays     []int  `json:"allowed_days"`
}

// SetControls handles PUT /v1/students/:studentId/wallet/controls.
// Guardian only.
func (h *WalletHandler) SetControls(c echo.Context) error {
	guardianID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	schoolID, err := getSchoolID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	studentID, err := studentParam(c)
	if err != nil || studentID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid student id"})
	}
	var req controlsReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	limit, err := decimal.NewFromString(req.DailySpendLimit)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid daily_spend_limit"})
	}
	for _, d := range req.AllowedDays {
		if d < 0 || d > 6 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "allowed_days must be 0-6"})
		}
	}
	if err := h.Wallets.SetControls(c.Request().Context(), guardianID, schoolID, studentID, limit, req.AllowedDays); err != nil {
		return writeServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

type safetyReq struct {
	CanPurchaseAlone bool `json:"can_purchase_alone"`
}

// SetSafetySwitch handles PUT /v1/students/:studentId/wallet/safety.
// Guardian only.
func (h *WalletHandler) SetSafetySwitch(c echo.Context) error {
	guardianID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	schoolID, err := getSchoolID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	studentID, err := studentParam(c)
	if err != nil || studentID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid student id"})
	}
	var req safetyReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := h.Wallets.SetSafetySwitch(c.Request().Context(), guardianID, schoolID, studentID, req.CanPurchaseAlone); err != nil {
		return writeServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

type rechargeReq struct {
	Amount string `json:"amount"`
}

// CreateRechargeIntent handles POST /v1/students/:studentId/wallet/recharges.
// Opens a PENDING ledger entry and returns the provider reference the
// payment session should carry.
func (h *WalletHandler) CreateRechargeIntent(c echo.Context) error {
	callerID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	schoolID, err := getSchoolID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	studentID, err := studentParam(c)
	if err != nil || studentID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid student id"})
	}
	var req rechargeReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid amount"})
	}
	t, err := h.Wallets.CreateRechargeIntent(c.Request().Context(), callerID, schoolID, studentID, amount)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"transaction_id": t.ID,
		"external_id":    t.ExternalID,
		"amount":         t.Amount.StringFixed(2),
		"status":         t.Status,
	})
}

// DirectRecharge handles POST /v1/students/:studentId/wallet/recharges/direct.
// Credits the wallet immediately; linked guardians and school admins only.
func (h *WalletHandler) DirectRecharge(c echo.Context) error {
	callerID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	schoolID, err := getSchoolID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	role, _ := c.Get("role").(string)
	studentID, err := studentParam(c)
	if err != nil || studentID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid student id"})
	}
	var req rechargeReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid amount"})
	}
	t, err := h.Wallets.DirectRecharge(c.Request().Context(), callerID, role, schoolID, studentID, amount)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"transaction_id": t.ID,
		"amount":         t.Amount.StringFixed(2),
		"balance":        t.RunningBalance.StringFixed(2),
		"status":         t.Status,
	})
}

type transactionResp struct {
	ID             uint64  `json:"id"`
	OrderID        *uint64 `json:"order_id,omitempty"`
	Amount         string  `json:"amount"`
	RunningBalance string  `json:"running_balance"`
	Type           string  `json:"type"`
	Status         string  `json:"status"`
	Description    string  `json:"description"`
	CreatedAt      string  `json:"created_at"`
}

// History handles GET /v1/students/:studentId/wallet/transactions.
func (h *WalletHandler) History(c echo.Context) error {
	callerID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	studentID, err := studentParam(c)
	if err != nil || studentID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid student id"})
	}
	// Owner or linked guardian only; Get performs the link check.
	if _, err := h.Wallets.Get(c.Request().Context(), callerID, studentID); err != nil {
		return writeServiceError(c, err)
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	txns, err := h.Ledger.History(c.Request().Context(), studentID, limit, offset)
	if err != nil {
		return writeServiceError(c, err)
	}
	out := make([]transactionResp, 0, len(txns))
	for _, t := range txns {
		out = append(out, transactionResp{
			ID:             t.ID,
			OrderID:        t.OrderID,
			Amount:         t.Amount.StringFixed(2),
			RunningBalance: t.RunningBalance.StringFixed(2),
			Type:           t.Type,
			Status:         t.Status,
			Description:    t.Description,
			CreatedAt:      t.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"transactions": out})
}
