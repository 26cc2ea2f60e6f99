package catalog

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// MaxQuantity is the largest quantity one cart line may carry, the
// processor's own per-line limit.
const MaxQuantity = 999999

// CartEntry is one client selection. Qty below 1 (or missing, or junk) means 1.
// ClaimedPrice is whatever the client said the item costs; it is never used for money.
type CartEntry struct {
	ItemID       int64            `json:"id"`
	Qty          int              `json:"qty"`
	ClaimedPrice *decimal.Decimal `json:"price,omitempty"`
}

// UnmarshalJSON accepts numbers or numeric strings for id and qty and
// tolerates an unparsable price, since the browser cart sends loosely typed values.
func (e *CartEntry) UnmarshalJSON(b []byte) error {
	var raw struct {
		ID    json.RawMessage `json:"id"`
		Qty   json.RawMessage `json:"qty"`
		Price json.RawMessage `json:"price"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	e.ItemID = looseInt(raw.ID)
	e.Qty = int(looseInt(raw.Qty))
	e.ClaimedPrice = nil
	if s := looseString(raw.Price); s != "" {
		if d, err := decimal.NewFromString(s); err == nil {
			e.ClaimedPrice = &d
		}
	}
	return nil
}

// Quantity is the coerced quantity, always >= 1.
func (e CartEntry) Quantity() int {
	if e.Qty < 1 {
		return 1
	}
	return e.Qty
}

// Normalize drops entries without a usable catalog id and coerces quantities.
// Order is preserved; duplicate ids stay separate lines.
func Normalize(entries []CartEntry) []CartEntry {
	out := make([]CartEntry, 0, len(entries))
	for _, e := range entries {
		if e.ItemID <= 0 {
			continue
		}
		e.Qty = e.Quantity()
		out = append(out, e)
	}
	return out
}

// IDs returns the distinct catalog ids referenced by entries.
func IDs(entries []CartEntry) []int64 {
	seen := make(map[int64]struct{}, len(entries))
	ids := make([]int64, 0, len(entries))
	for _, e := range entries {
		if _, ok := seen[e.ItemID]; ok {
			continue
		}
		seen[e.ItemID] = struct{}{}
		ids = append(ids, e.ItemID)
	}
	return ids
}

func looseString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return strings.TrimSpace(s)
	}
	return string(raw)
}

func looseInt(raw json.RawMessage) int64 {
	s := looseString(raw)
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	if f > math.MaxInt32 {
		return 0
	}
	return int64(math.Floor(f))
}
