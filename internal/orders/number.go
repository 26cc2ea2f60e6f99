package orders

import (
	"fmt"
	"math/rand/v2"
	"regexp"
	"time"
)

// OrderNumberPattern matches numbers produced by NewOrderNumber.
var OrderNumberPattern = regexp.MustCompile(`^ORD-\d{8}-\d{6}-\d{3}$`)

// NewOrderNumber builds ORD-YYYYMMDD-HHMMSS-NNN in UTC. Uniqueness is left to
// the orders.order_number constraint; the ledger retries on collision.
func NewOrderNumber(now time.Time, suffix int) string {
	now = now.UTC()
	return fmt.Sprintf("ORD-%s-%s-%03d", now.Format("20060102"), now.Format("150405"), suffix%1000)
}

// OrderNumberGenerator returns a NumberFn reading the given clock.
func OrderNumberGenerator(now func() time.Time) func() string {
	return func() string {
		return NewOrderNumber(now(), rand.IntN(1000))
	}
}
