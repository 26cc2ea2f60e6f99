package catalog

import "github.com/shopspring/decimal"

// Line is a priced cart line. Orders keep it as a snapshot, so later catalog
// edits never reach historical orders.
type Line struct {
	CatalogItemID int64           `json:"id"`
	Title         string          `json:"title"`
	Category      string          `json:"category"`
	UnitPrice     decimal.Decimal `json:"unitPrice"`
	Quantity      int             `json:"qty"`
	LineTotal     decimal.Decimal `json:"lineTotal"`

	// Description goes to the payment page only; it is not part of the snapshot.
	Description string `json:"-"`
}

// UnknownPolicy decides what happens to cart entries whose id is not an active catalog item.
type UnknownPolicy int

const (
	// DropUnknown silently removes the entry.
	DropUnknown UnknownPolicy = iota
	// ZeroUnknown keeps the entry with a zero price. Test orders used to behave like this.
	ZeroUnknown
)

// Price resolves entries against the active items. Prices always come from items.
func Price(entries []CartEntry, items map[int64]Item, policy UnknownPolicy) []Line {
	lines := make([]Line, 0, len(entries))
	for _, e := range entries {
		qty := e.Quantity()
		it, ok := items[e.ItemID]
		if !ok || !it.Active {
			if policy != ZeroUnknown {
				continue
			}
			lines = append(lines, Line{
				CatalogItemID: e.ItemID,
				UnitPrice:     decimal.Zero,
				Quantity:      qty,
				LineTotal:     decimal.Zero,
			})
			continue
		}
		unit := it.UnitPrice.Round(2)
		lines = append(lines, Line{
			CatalogItemID: it.ID,
			Title:         it.Title,
			Category:      it.Category,
			UnitPrice:     unit,
			Quantity:      qty,
			LineTotal:     unit.Mul(decimal.NewFromInt(int64(qty))),
			Description:   it.Description,
		})
	}
	return lines
}

// Total sums the line totals.
func Total(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.LineTotal)
	}
	return total.Round(2)
}

// MinorUnits converts an amount to the smallest currency unit (pence, cents).
func MinorUnits(d decimal.Decimal) int64 {
	return d.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
