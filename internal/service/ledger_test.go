package service

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cantapp/canteen-core/internal/model"
)

func wallet(balance, limit string) *model.Wallet {
	return &model.Wallet{
		Balance:         decimal.RequireFromString(balance),
		DailySpendLimit: decimal.RequireFromString(limit),
	}
}

func TestValidateDebitHappyPath(t *testing.T) {
	// Balance 10.00, no daily limit, spending 7.50 leaves 2.50.
	w := wallet("10.00", "0")

	got, err := validateDebit(w, decimal.RequireFromString("7.50"), decimal.Zero)
	require.NoError(t, err)
	assert.True(t, got.Equal(decimal.RequireFromString("2.50")), "got %s", got)
}

func TestValidateDebitExactBalance(t *testing.T) {
	w := wallet("7.50", "0")

	got, err := validateDebit(w, decimal.RequireFromString("7.50"), decimal.Zero)
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}

func TestValidateDebitInsufficientBalance(t *testing.T) {
	w := wallet("5.00", "0")

	_, err := validateDebit(w, decimal.RequireFromString("5.01"), decimal.Zero)
	assert.ErrorIs(t, err, ErrInsufficientBalance)
}

func TestValidateDebitDailyLimit(t *testing.T) {
	// Balance 50, limit 20, already spent 15 today: a 10.00 purchase
	// would push the day to 25 and must be rejected even though the
	// balance covers it.
	w := wallet("50.00", "20.00")

	_, err := validateDebit(w, decimal.RequireFromString("10.00"), decimal.RequireFromString("15.00"))
	assert.ErrorIs(t, err, ErrDailyLimitExceeded)
}

func TestValidateDebitDailyLimitBoundary(t *testing.T) {
	// Spending exactly up to the limit is allowed.
	w := wallet("50.00", "20.00")

	got, err := validateDebit(w, decimal.RequireFromString("5.00"), decimal.RequireFromString("15.00"))
	require.NoError(t, err)
	assert.True(t, got.Equal(decimal.RequireFromString("45.00")))
}

func TestValidateDebitZeroLimitMeansUnlimited(t *testing.T) {
	w := wallet("100.00", "0")

	_, err := validateDebit(w, decimal.RequireFromString("60.00"), decimal.RequireFromString("500.00"))
	assert.NoError(t, err)
}

func TestValidateDebitRejectsNonPositiveAmount(t *testing.T) {
	w := wallet("10.00", "0")

	_, err := validateDebit(w, decimal.Zero, decimal.Zero)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = validateDebit(w, decimal.RequireFromString("-1.00"), decimal.Zero)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}
