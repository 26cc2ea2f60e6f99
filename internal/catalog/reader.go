package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

type Item struct {
	ID          int64           `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Category    string          `json:"category"`
	UnitPrice   decimal.Decimal `json:"price"`
	Image       string          `json:"image,omitempty"`
	Active      bool            `json:"active"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// Querier is satisfied by *pgxpool.Pool and pgx.Tx, so lookups can join
// the caller's transaction.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Reader reads menu_items. The catalog is owned elsewhere; nothing here writes.
type Reader struct{}

const itemColumns = `id, title, COALESCE(description, ''), category, price::text, COALESCE(image, ''), is_active, created_at`

// ActiveItems looks up ids in one query. Unknown and inactive ids are simply absent.
func (Reader) ActiveItems(ctx context.Context, q Querier, ids []int64) (map[int64]Item, error) {
	out := make(map[int64]Item, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := q.Query(ctx, `SELECT `+itemColumns+` FROM menu_items
		WHERE is_active = TRUE AND id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	items, err := scanItems(rows)
	if err != nil {
		return nil, err
	}
	for _, it := range items {
		out[it.ID] = it
	}
	return out, nil
}

// ListActive returns the sellable menu, newest first, optionally for one category.
// "All" and "" mean every category.
func (Reader) ListActive(ctx context.Context, q Querier, category string) ([]Item, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if category == "" || category == "All" {
		rows, err = q.Query(ctx, `SELECT `+itemColumns+` FROM menu_items
			WHERE is_active = TRUE ORDER BY created_at DESC`)
	} else {
		rows, err = q.Query(ctx, `SELECT `+itemColumns+` FROM menu_items
			WHERE is_active = TRUE AND category = $1 ORDER BY created_at DESC`, category)
	}
	if err != nil {
		return nil, err
	}
	return scanItems(rows)
}

func scanItems(rows pgx.Rows) ([]Item, error) {
	defer rows.Close()
	var out []Item
	for rows.Next() {
		var (
			it    Item
			price string
		)
		if err := rows.Scan(&it.ID, &it.Title, &it.Description, &it.Category, &price, &it.Image, &it.Active, &it.CreatedAt); err != nil {
			return nil, err
		}
		p, err := decimal.NewFromString(price)
		if err != nil {
			return nil, fmt.Errorf("menu item %d price %q: %w", it.ID, price, err)
		}
		it.UnitPrice = p
		out = append(out, it)
	}
	return out, rows.Err()
}
