package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/cantapp/canteen-core/internal/service"
)

// GuardianHandler serves the restriction blocklists guardians keep for
// their students.
type GuardianHandler struct {
	Guardians *service.GuardianService
}

func NewGuardianHandler(g *service.GuardianService) *GuardianHandler {
	if g == nil {
		panic("nil service passed to NewGuardianHandler")
	}
	return &GuardianHandler{Guardians: g}
}

type restrictionReq struct {
	ProductID uint64 `json:"product_id,omitempty"`
	Category  string `json:"category,omitempty"`
}

// Add handles POST /v1/students/:studentId/restrictions.  The body
// names either a product_id or a category.
func (h *GuardianHandler) Add(c echo.Context) error {
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
	var req restrictionReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Category = strings.TrimSpace(req.Category)

	ctx := c.Request().Context()
	switch {
	case req.ProductID != 0:
		err = h.Guardians.BlockProduct(ctx, guardianID, schoolID, studentID, req.ProductID)
	case req.Category != "":
		err = h.Guardians.BlockCategory(ctx, guardianID, schoolID, studentID, req.Category)
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "product_id or category is required"})
	}
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// RemoveProduct handles DELETE /v1/students/:studentId/restrictions/products/:productId.
func (h *GuardianHandler) RemoveProduct(c echo.Context) error {
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
	productID, err := strconv.ParseUint(c.Param("productId"), 10, 64)
	if err != nil || productID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid product id"})
	}
	if err := h.Guardians.UnblockProduct(c.Request().Context(), guardianID, schoolID, studentID, productID); err != nil {
		return writeServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// RemoveCategory handles DELETE /v1/students/:studentId/restrictions/categories/:category.
func (h *GuardianHandler) RemoveCategory(c echo.Context) error {
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
	category := strings.TrimSpace(c.Param("category"))
	if category == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid category"})
	}
	if err := h.Guardians.UnblockCategory(c.Request().Context(), guardianID, schoolID, studentID, category); err != nil {
		return writeServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// List handles GET /v1/students/:studentId/restrictions.
func (h *GuardianHandler) List(c echo.Context) error {
	guardianID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	studentID, err := studentParam(c)
	if err != nil || studentID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid student id"})
	}
	products, categories, err := h.Guardians.ListRestrictions(c.Request().Context(), guardianID, studentID)
	if err != nil {
		return writeServiceError(c, err)
	}
	productIDs := make([]uint64, 0, len(products))
	for _, p := range products {
		productIDs = append(productIDs, p.ProductID)
	}
	categoryNames := make([]string, 0, len(categories))
	for _, cr := range categories {
		categoryNames = append(categoryNames, cr.Category)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"products":   productIDs,
		"categories": categoryNames,
	})
}
