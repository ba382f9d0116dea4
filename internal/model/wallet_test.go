package model

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestParseAllowedDays(t *testing.T) {
	assert.Equal(t, []int{1, 2, 3, 4, 5}, ParseAllowedDays("1,2,3,4,5"))
	assert.Equal(t, []int{0, 6}, ParseAllowedDays(" 0 , 6 "))
	assert.Empty(t, ParseAllowedDays(""))
	// Trailing comma and out-of-range values are skipped.
	assert.Equal(t, []int{1}, ParseAllowedDays("1,"))
	assert.Equal(t, []int{2}, ParseAllowedDays("2,7,-1,x"))
}

func TestFormatAllowedDaysRoundTrip(t *testing.T) {
	days := []int{1, 3, 5}
	assert.Equal(t, days, ParseAllowedDays(FormatAllowedDays(days)))
	assert.Equal(t, "", FormatAllowedDays(nil))
}

func TestWalletAllowsDay(t *testing.T) {
	w := &Wallet{AllowedDays: []int{1, 2, 3, 4, 5}}
	assert.True(t, w.AllowsDay(time.Monday))
	assert.False(t, w.AllowsDay(time.Sunday))
	assert.False(t, w.AllowsDay(time.Saturday))
}

func TestEffectivePrice(t *testing.T) {
	list := decimal.RequireFromString("2.50")
	sale := decimal.RequireFromString("1.99")

	p := &Product{Price: list}
	assert.True(t, p.EffectivePrice().Equal(list))

	p.SalePrice = &sale
	assert.True(t, p.EffectivePrice().Equal(sale))
}
