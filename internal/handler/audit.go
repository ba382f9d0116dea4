package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/cantapp/canteen-core/internal/service"
)

// AuditHandler exposes the tamper-evident log to school admins.
type AuditHandler struct {
	Audit *service.AuditService
}

func NewAuditHandler(a *service.AuditService) *AuditHandler {
	if a == nil {
		panic("nil service passed to NewAuditHandler")
	}
	return &AuditHandler{Audit: a}
}

type auditEntryResp struct {
	ID           uint64          `json:"id"`
	UserID       *uint64         `json:"user_id,omitempty"`
	Action       string          `json:"action"`
	Entity       string          `json:"entity"`
	EntityID     *uint64         `json:"entity_id,omitempty"`
	Meta         json.RawMessage `json:"meta"`
	LogHash      string          `json:"log_hash"`
	PreviousHash *string         `json:"previous_hash,omitempty"`
	CreatedAt    string          `json:"created_at"`
}

// List handles GET /v1/audit/logs, newest first.
func (h *AuditHandler) List(c echo.Context) error {
	schoolID, err := getSchoolID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))

	entries, err := h.Audit.List(c.Request().Context(), schoolID, limit, offset)
	if err != nil {
		return writeServiceError(c, err)
	}
	out := make([]auditEntryResp, 0, len(entries))
	for _, e := range entries {
		out = append(out, auditEntryResp{
			ID:           e.ID,
			UserID:       e.UserID,
			Action:       e.Action,
			Entity:       e.Entity,
			EntityID:     e.EntityID,
			Meta:         json.RawMessage(e.Meta),
			LogHash:      e.LogHash,
			PreviousHash: e.PreviousHash,
			CreatedAt:    e.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"entries": out})
}

// Verify handles POST /v1/audit/verify.  Walks the school's whole chain
// and reports every violation found; an intact chain returns ok=true.
func (h *AuditHandler) Verify(c echo.Context) error {
	schoolID, err := getSchoolID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	total, violations, err := h.Audit.VerifyChain(c.Request().Context(), schoolID)
	if err != nil {
		return writeServiceError(c, err)
	}
	if violations == nil {
		violations = []service.ChainViolation{}
	}
	return c.JSON(http.StatusOK, echo.Map{
		"ok":         len(violations) == 0,
		"total_logs": total,
		"violations": violations,
	})
}
