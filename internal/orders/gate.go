package orders

import (
	"context"

	"github.com/ariefcatur/go-catering-orders/internal/apperr"
)

// adminNext is the part of the state machine an administrator may drive.
// pending_payment -> paid belongs to payment confirmation only.
var adminNext = map[Status]map[Status]bool{
	StatusPendingPayment: {StatusCancelled: true},
	StatusPaid:           {StatusAccepted: true, StatusRejected: true},
}

// AdminGuard allows the admin edges and same-status re-saves.
func AdminGuard(from, to Status) error {
	if from == to || adminNext[from][to] {
		return nil
	}
	return apperr.Validation("cannot move order from " + string(from) + " to " + string(to))
}

// Updater is the ledger operation the gate wraps.
type Updater interface {
	Update(ctx context.Context, id string, p Patch, guard Guard) (Order, Status, error)
}

// Gate applies admin patches. Callers must have authenticated the admin already.
type Gate struct {
	Ledger Updater
}

// Update applies p and reports the status the order had before.
func (g Gate) Update(ctx context.Context, id string, p Patch) (Order, Status, error) {
	return g.Ledger.Update(ctx, id, p, AdminGuard)
}
