package handler // handler defines http handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-sql-driver/mysql"
	"github.com/labstack/echo/v4"

	"github.com/cantapp/canteen-core/internal/repository"
	"github.com/cantapp/canteen-core/internal/service"
)

// getUserID extracts the user_id from echo.Context and converts it to uint64
func getUserID(c echo.Context) (uint64, error) {
	return claimUint(c, "user_id")
}

// getSchoolID extracts the school_id claim.
func getSchoolID(c echo.Context) (uint64, error) {
	return claimUint(c, "school_id")
}

// getCanteenID extracts the canteen_id claim (staff tokens only).
func getCanteenID(c echo.Context) (uint64, error) {
	return claimUint(c, "canteen_id")
}

func claimUint(c echo.Context, key string) (uint64, error) {
	v := c.Get(key)
	switch t := v.(type) {
	case uint64:
		return t, nil
	case int:
		return uint64(t), nil
	case int64:
		return uint64(t), nil
	case float64:
		return uint64(t), nil
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, errors.New("invalid " + key + " in context")
}

// writeServiceError maps domain errors to HTTP responses.  Rejected
// purchases (bad input, shortfalls, exhausted limits) are 400, parental
// and tenancy gates 403, missing rows 404 and concurrency losses 409.
// MySQL deadlock (1213) and lock-wait timeout (1205) also map to 409 so
// clients know the request is retryable.
func writeServiceError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, service.ErrEmptyOrder),
		errors.Is(err, service.ErrBadQuantity),
		errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrNestedKit),
		errors.Is(err, service.ErrInsufficientStock),
		errors.Is(err, service.ErrInsufficientBalance),
		errors.Is(err, service.ErrDailyLimitExceeded),
		errors.Is(err, service.ErrProductGone):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, service.ErrPurchaseNotAllowed),
		errors.Is(err, service.ErrDayNotAllowed),
		errors.Is(err, service.ErrRestrictedItem):
		return c.JSON(http.StatusForbidden, echo.Map{"error": err.Error()})
	case errors.Is(err, service.ErrNotLinked),
		errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, service.ErrProductNotFound),
		errors.Is(err, service.ErrWalletNotFound),
		errors.Is(err, service.ErrOrderNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	case errors.Is(err, repository.ErrVersionConflict),
		errors.Is(err, repository.ErrConflict),
		errors.Is(err, service.ErrOrderNotPaid):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) && (me.Number == 1213 || me.Number == 1205) {
		return c.JSON(http.StatusConflict, echo.Map{"error": "conflict, please retry"})
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}
