package httpx

import "github.com/ariefcatur/go-catering-orders/internal/payment"

func paidSession(id string) payment.SessionStatus {
	return payment.SessionStatus{ID: id, PaymentStatus: payment.PaymentStatusPaid, PaymentReference: "pi_" + id}
}
