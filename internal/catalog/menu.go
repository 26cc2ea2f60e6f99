package catalog

import (
	"context"
	"strings"
	"time"

	"github.com/ariefcatur/go-catering-orders/internal/apperr"
)

// Menu serves the public menu from the catalog store.
type Menu struct {
	DB      Querier
	Reader  Reader
	Timeout time.Duration
}

func (m Menu) List(ctx context.Context, category string) ([]Item, error) {
	if m.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.Timeout)
		defer cancel()
	}
	items, err := m.Reader.ListActive(ctx, m.DB, strings.TrimSpace(category))
	if err != nil {
		return nil, apperr.Upstream("menu unavailable", err)
	}
	if items == nil {
		items = []Item{}
	}
	return items, nil
}
