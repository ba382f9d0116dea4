package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/cantapp/canteen-core/internal/service"
)

// WebhookHandler receives payment provider confirmations.  The signature
// is an HMAC-SHA256 over the raw request body, sent hex-encoded in the
// X-Signature header; verification runs before the body is parsed.
type WebhookHandler struct {
	Wallets *service.WalletService
	Secret  []byte
	Log     *zap.Logger
}

func NewWebhookHandler(w *service.WalletService, secret string, log *zap.Logger) *WebhookHandler {
	if w == nil {
		panic("nil service passed to NewWebhookHandler")
	}
	return &WebhookHandler{Wallets: w, Secret: []byte(secret), Log: log}
}

type paymentEvent struct {
	Event      string `json:"event"`
	ExternalID string `json:"external_id"`
}

// PaymentConfirmed handles POST /v1/webhooks/payments.  Replayed
// deliveries for an already-confirmed payment are acknowledged with 200
// without touching the balance again.
func (h *WebhookHandler) PaymentConfirmed(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, 1<<20))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unreadable body"})
	}

	sig := c.Request().Header.Get("X-Signature")
	mac := hmac.New(sha256.New, h.Secret)
	mac.Write(body)
	want := hex.EncodeToString(mac.Sum(nil))
	if sig == "" || !hmac.Equal([]byte(sig), []byte(want)) {
		h.Log.Warn("webhook signature rejected", zap.String("remote", c.RealIP()))
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid signature"})
	}

	var ev paymentEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if ev.Event != "payment.confirmed" || ev.ExternalID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unsupported event"})
	}

	t, alreadyDone, err := h.Wallets.ConfirmRecharge(c.Request().Context(), ev.ExternalID)
	if err != nil {
		return writeServiceError(c, err)
	}
	if alreadyDone {
		return c.JSON(http.StatusOK, echo.Map{"status": "already processed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"status":         "confirmed",
		"transaction_id": t.ID,
	})
}
