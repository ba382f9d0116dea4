package service

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cantapp/canteen-core/internal/model"
)

func simpleProduct(id uint64, price string) *model.Product {
	return &model.Product{
		ID:          id,
		Price:       decimal.RequireFromString(price),
		IsAvailable: true,
	}
}

func kitProduct(id uint64, price string) *model.Product {
	p := simpleProduct(id, price)
	p.IsKit = true
	return p
}

func TestExplodeItemsSimpleProducts(t *testing.T) {
	products := map[uint64]*model.Product{
		1: simpleProduct(1, "2.00"),
		2: simpleProduct(2, "1.50"),
	}
	items := []model.OrderItemInput{
		{ProductID: 1, Quantity: 2},
		{ProductID: 2, Quantity: 1},
	}

	needs, err := explodeItems(items, products, nil)
	require.NoError(t, err)
	require.Len(t, needs, 2)
	assert.Equal(t, componentNeed{ProductID: 1, Quantity: 2}, needs[0])
	assert.Equal(t, componentNeed{ProductID: 2, Quantity: 1}, needs[1])
}

func TestExplodeItemsKitMultipliesComponents(t *testing.T) {
	// Kit 10 = 2x product 1 + 1x product 2.  Buying 3 kits needs
	// 6 of product 1 and 3 of product 2.
	products := map[uint64]*model.Product{
		1:  simpleProduct(1, "2.00"),
		2:  simpleProduct(2, "1.50"),
		10: kitProduct(10, "4.50"),
	}
	components := []model.KitComponent{
		{KitID: 10, ComponentID: 1, Quantity: 2},
		{KitID: 10, ComponentID: 2, Quantity: 1},
	}
	items := []model.OrderItemInput{{ProductID: 10, Quantity: 3}}

	needs, err := explodeItems(items, products, components)
	require.NoError(t, err)
	require.Len(t, needs, 2)
	assert.Equal(t, componentNeed{ProductID: 1, Quantity: 6}, needs[0])
	assert.Equal(t, componentNeed{ProductID: 2, Quantity: 3}, needs[1])
}

func TestExplodeItemsMergesKitAndDirectDemand(t *testing.T) {
	// Buying the kit and its component directly accumulates demand on
	// the shared component.
	products := map[uint64]*model.Product{
		1:  simpleProduct(1, "2.00"),
		10: kitProduct(10, "4.50"),
	}
	components := []model.KitComponent{
		{KitID: 10, ComponentID: 1, Quantity: 2},
	}
	items := []model.OrderItemInput{
		{ProductID: 10, Quantity: 1},
		{ProductID: 1, Quantity: 1},
	}

	needs, err := explodeItems(items, products, components)
	require.NoError(t, err)
	require.Len(t, needs, 1)
	assert.Equal(t, componentNeed{ProductID: 1, Quantity: 3}, needs[0])
}

func TestExplodeItemsRejectsNestedKit(t *testing.T) {
	products := map[uint64]*model.Product{
		10: kitProduct(10, "4.50"),
		11: kitProduct(11, "9.00"),
	}
	components := []model.KitComponent{
		{KitID: 11, ComponentID: 10, Quantity: 1},
	}
	items := []model.OrderItemInput{{ProductID: 11, Quantity: 1}}

	_, err := explodeItems(items, products, components)
	assert.ErrorIs(t, err, ErrNestedKit)
}

func TestExplodeItemsRejectsEmptyKit(t *testing.T) {
	products := map[uint64]*model.Product{10: kitProduct(10, "4.50")}
	items := []model.OrderItemInput{{ProductID: 10, Quantity: 1}}

	_, err := explodeItems(items, products, nil)
	assert.ErrorIs(t, err, ErrProductGone)
}

func TestExplodeItemsUnknownProduct(t *testing.T) {
	_, err := explodeItems([]model.OrderItemInput{{ProductID: 99, Quantity: 1}},
		map[uint64]*model.Product{}, nil)
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestCheckAvailable(t *testing.T) {
	assert.NoError(t, checkAvailable(5, 5))
	assert.NoError(t, checkAvailable(5, 3))
	assert.ErrorIs(t, checkAvailable(2, 3), ErrInsufficientStock)
	assert.ErrorIs(t, checkAvailable(0, 1), ErrInsufficientStock)
}

func TestSequentialReservationsExhaustStock(t *testing.T) {
	// Stock of 5 with two orders of 3: the first hold passes, the
	// second sees availability already reduced and fails.
	available := 5
	wanted := 3

	require.NoError(t, checkAvailable(available, wanted))
	available -= wanted // hold created inside the same transaction

	assert.ErrorIs(t, checkAvailable(available, wanted), ErrInsufficientStock)
}
