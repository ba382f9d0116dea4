package service

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cantapp/canteen-core/internal/model"
)

func TestCheckPurchaseWindowStudentNeedsSafetySwitch(t *testing.T) {
	w := &model.Wallet{CanPurchaseAlone: false}

	err := checkPurchaseWindow(w, time.Now(), true)
	assert.ErrorIs(t, err, ErrPurchaseNotAllowed)

	// The same wallet poses no obstacle to a guardian purchase.
	assert.NoError(t, checkPurchaseWindow(w, time.Now(), false))
}

func TestCheckPurchaseWindowAllowedDays(t *testing.T) {
	// Monday 2026-08-31 UTC.
	monday := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	require.Equal(t, time.Monday, monday.Weekday())

	weekdaysOnly := &model.Wallet{
		CanPurchaseAlone: true,
		AllowedDays:      []int{1, 2, 3, 4, 5},
	}
	assert.NoError(t, checkPurchaseWindow(weekdaysOnly, monday, true))

	sunday := monday.AddDate(0, 0, -1)
	assert.ErrorIs(t, checkPurchaseWindow(weekdaysOnly, sunday, true), ErrDayNotAllowed)
}

func TestCheckPurchaseWindowNoDaysConfiguredMeansAnyDay(t *testing.T) {
	w := &model.Wallet{CanPurchaseAlone: true}
	assert.NoError(t, checkPurchaseWindow(w, time.Now(), true))
}

func TestEvaluateRestrictionsDirectProduct(t *testing.T) {
	products := map[uint64]*model.Product{1: simpleProduct(1, "2.00")}
	items := []model.OrderItemInput{{ProductID: 1, Quantity: 1}}

	err := evaluateRestrictions(items, products, nil, map[uint64]bool{1: true}, nil)
	assert.ErrorIs(t, err, ErrRestrictedItem)
}

func TestEvaluateRestrictionsCategory(t *testing.T) {
	p := simpleProduct(1, "2.00")
	p.Category = "sweets"
	products := map[uint64]*model.Product{1: p}
	items := []model.OrderItemInput{{ProductID: 1, Quantity: 1}}

	err := evaluateRestrictions(items, products, nil, nil, map[string]bool{"sweets": true})
	assert.ErrorIs(t, err, ErrRestrictedItem)
}

func TestEvaluateRestrictionsReachesKitComponents(t *testing.T) {
	// A restriction on a component blocks the kit that contains it.
	soda := simpleProduct(2, "1.00")
	soda.Category = "drinks"
	products := map[uint64]*model.Product{
		2:  soda,
		10: kitProduct(10, "4.00"),
	}
	components := []model.KitComponent{{KitID: 10, ComponentID: 2, Quantity: 1}}
	items := []model.OrderItemInput{{ProductID: 10, Quantity: 1}}

	err := evaluateRestrictions(items, products, components, map[uint64]bool{2: true}, nil)
	assert.ErrorIs(t, err, ErrRestrictedItem)

	err = evaluateRestrictions(items, products, components, nil, map[string]bool{"drinks": true})
	assert.ErrorIs(t, err, ErrRestrictedItem)
}

func TestEvaluateRestrictionsCleanBasket(t *testing.T) {
	products := map[uint64]*model.Product{1: simpleProduct(1, "2.00")}
	items := []model.OrderItemInput{{ProductID: 1, Quantity: 2}}

	assert.NoError(t, evaluateRestrictions(items, products, nil,
		map[uint64]bool{9: true}, map[string]bool{"sweets": true}))
}

func TestOrderTotalUsesEffectivePrice(t *testing.T) {
	sale := decimal.RequireFromString("1.75")
	p1 := simpleProduct(1, "2.00")
	p1.SalePrice = &sale
	p2 := simpleProduct(2, "1.50")
	products := map[uint64]*model.Product{1: p1, 2: p2}

	items := []model.OrderItemInput{
		{ProductID: 1, Quantity: 2}, // 2 x 1.75 sale price
		{ProductID: 2, Quantity: 3}, // 3 x 1.50
	}
	lines, total, err := orderTotal(items, products)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.True(t, total.Equal(decimal.RequireFromString("8.00")), "got %s", total)
	assert.True(t, lines[0].UnitPrice.Equal(sale))
}

func TestOrderTotalEmptyAndBadQuantity(t *testing.T) {
	products := map[uint64]*model.Product{1: simpleProduct(1, "2.00")}

	_, _, err := orderTotal(nil, products)
	assert.ErrorIs(t, err, ErrEmptyOrder)

	_, _, err = orderTotal([]model.OrderItemInput{{ProductID: 1, Quantity: 0}}, products)
	assert.ErrorIs(t, err, ErrBadQuantity)

	_, _, err = orderTotal([]model.OrderItemInput{{ProductID: 1, Quantity: -2}}, products)
	assert.ErrorIs(t, err, ErrBadQuantity)
}

func TestOrderTotalUnknownProduct(t *testing.T) {
	_, _, err := orderTotal([]model.OrderItemInput{{ProductID: 42, Quantity: 1}},
		map[uint64]*model.Product{})
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestOrderTotalDecimalPrecision(t *testing.T) {
	// 3 x 0.10 must be exactly 0.30, no float drift.
	products := map[uint64]*model.Product{1: simpleProduct(1, "0.10")}
	_, total, err := orderTotal([]model.OrderItemInput{{ProductID: 1, Quantity: 3}}, products)
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.RequireFromString("0.30")), "got %s", total)
}
