package orders

type Status string

const (
	StatusPendingPayment Status = "pending_payment"
	StatusPaid           Status = "paid"
	StatusAccepted       Status = "accepted"
	StatusRejected       Status = "rejected"
	StatusCancelled      Status = "cancelled"
)

// validNext lists the edges an existing order may move along.
// Creation edges (-> pending_payment, -> paid) are not transitions.
// cancelled -> paid is only taken by a verified payment, never by an admin.
var validNext = map[Status]map[Status]bool{
	StatusPendingPayment: {StatusPaid: true, StatusCancelled: true},
	StatusPaid:           {StatusAccepted: true, StatusRejected: true},
	StatusAccepted:       {},
	StatusRejected:       {},
	StatusCancelled:      {StatusPaid: true},
}

func (s Status) Valid() bool {
	_, ok := validNext[s]
	return ok
}

// CanTransition reports whether from -> to is allowed. Re-saving the same status is always allowed.
func CanTransition(from, to Status) bool {
	if from == to {
		return from.Valid()
	}
	return validNext[from][to]
}

// Payable reports whether a verified payment moves an order in status s to paid.
func Payable(s Status) bool {
	return s != StatusPaid && validNext[s][StatusPaid]
}

// ParseStatus accepts one of the known status values.
func ParseStatus(s string) (Status, bool) {
	st := Status(s)
	return st, st.Valid()
}
