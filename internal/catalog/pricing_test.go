package catalog

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func menu() map[int64]Item {
	return map[int64]Item{
		1: {ID: 1, Title: "Meatball Sandwich (Kofte)", Category: "Mains", UnitPrice: decimal.RequireFromString("8.50"), Active: true},
		2: {ID: 2, Title: "Gourmet Burgers", Category: "Mains", UnitPrice: decimal.RequireFromString("9.99"), Active: true},
		3: {ID: 3, Title: "Halloumi", Category: "Mains", UnitPrice: decimal.RequireFromString("7.50"), Active: false},
	}
}

func TestPriceSingleLine(t *testing.T) {
	lines := Price([]CartEntry{{ItemID: 1, Qty: 2}}, menu(), DropUnknown)

	require.Len(t, lines, 1)
	assert.Equal(t, 2, lines[0].Quantity)
	assert.True(t, lines[0].UnitPrice.Equal(decimal.RequireFromString("8.50")))
	assert.True(t, lines[0].LineTotal.Equal(decimal.RequireFromString("17.00")))
	assert.True(t, Total(lines).Equal(decimal.RequireFromString("17.00")))
}

func TestPriceIgnoresClaimedPrice(t *testing.T) {
	cheap := decimal.RequireFromString("0.01")
	lines := Price([]CartEntry{
		{ItemID: 1, Qty: 1, ClaimedPrice: &cheap},
		{ItemID: 2, Qty: 3, ClaimedPrice: &cheap},
	}, menu(), DropUnknown)

	require.Len(t, lines, 2)
	// 8.50 + 3*9.99
	assert.Equal(t, "38.47", Total(lines).StringFixed(2))
}

func TestPriceDropsUnknownAndInactive(t *testing.T) {
	lines := Price([]CartEntry{{ItemID: 99, Qty: 1}, {ItemID: 3, Qty: 1}, {ItemID: 2, Qty: 1}}, menu(), DropUnknown)

	require.Len(t, lines, 1)
	assert.Equal(t, int64(2), lines[0].CatalogItemID)
}

func TestPriceOnlyUnknownIsEmpty(t *testing.T) {
	lines := Price([]CartEntry{{ItemID: 99, Qty: 1}, {ItemID: 3, Qty: 4}}, menu(), DropUnknown)
	assert.Empty(t, lines)
	assert.True(t, Total(lines).IsZero())
}

func TestPriceZeroUnknownKeepsLine(t *testing.T) {
	lines := Price([]CartEntry{{ItemID: 99, Qty: 2}, {ItemID: 1, Qty: 1}}, menu(), ZeroUnknown)

	require.Len(t, lines, 2)
	assert.Equal(t, int64(99), lines[0].CatalogItemID)
	assert.True(t, lines[0].LineTotal.IsZero())
	assert.Equal(t, "8.50", Total(lines).StringFixed(2))
}

func TestPriceKeepsDuplicateLinesInOrder(t *testing.T) {
	lines := Price([]CartEntry{{ItemID: 2, Qty: 1}, {ItemID: 1, Qty: 1}, {ItemID: 2, Qty: 2}}, menu(), DropUnknown)

	require.Len(t, lines, 3)
	assert.Equal(t, []int64{2, 1, 2}, []int64{lines[0].CatalogItemID, lines[1].CatalogItemID, lines[2].CatalogItemID})
}

func TestNormalizeCoercesQuantity(t *testing.T) {
	got := Normalize([]CartEntry{{ItemID: 1}, {ItemID: 2, Qty: -4}, {ItemID: 0, Qty: 3}, {ItemID: 3, Qty: 5}})

	require.Len(t, got, 3)
	assert.Equal(t, 1, got[0].Qty)
	assert.Equal(t, 1, got[1].Qty)
	assert.Equal(t, 5, got[2].Qty)
}

func TestCartEntryLooseJSON(t *testing.T) {
	var entries []CartEntry
	err := json.Unmarshal([]byte(`[
		{"id": 1, "qty": 2},
		{"id": "2", "qty": "3", "price": 4.5},
		{"id": 3, "qty": "lots", "price": "free"},
		{"id": 4}
	]`), &entries)
	require.NoError(t, err)
	require.Len(t, entries, 4)

	assert.Equal(t, int64(1), entries[0].ItemID)
	assert.Equal(t, 2, entries[0].Quantity())
	assert.Equal(t, int64(2), entries[1].ItemID)
	assert.Equal(t, 3, entries[1].Quantity())
	require.NotNil(t, entries[1].ClaimedPrice)
	assert.Equal(t, "4.5", entries[1].ClaimedPrice.String())
	assert.Equal(t, 1, entries[2].Quantity())
	assert.Nil(t, entries[2].ClaimedPrice)
	assert.Equal(t, 1, entries[3].Quantity())
}

func TestIDsDistinct(t *testing.T) {
	assert.Equal(t, []int64{2, 1}, IDs([]CartEntry{{ItemID: 2}, {ItemID: 1}, {ItemID: 2}}))
}

func TestMinorUnits(t *testing.T) {
	assert.Equal(t, int64(850), MinorUnits(decimal.RequireFromString("8.50")))
	assert.Equal(t, int64(999), MinorUnits(decimal.RequireFromString("9.99")))
	assert.Equal(t, int64(1), MinorUnits(decimal.RequireFromString("0.005")))
}
