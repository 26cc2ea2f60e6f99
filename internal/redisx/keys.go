package redisx

import "time"

const (
	// Checkout idempotency: idem:checkout:{Idempotency-Key} -> response body, or "inflight"
	KeyIdemCheckout = "idem:checkout:%s"

	// Order read cache: order:{order_id} -> order JSON
	KeyOrder = "order:%s"

	// Menu cache per category: menu:{category} -> items JSON
	KeyMenu = "menu:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLIdemLock    = 30 * time.Second
	TTLOrderCache  = 5 * time.Minute
	TTLMenuCache   = 60 * time.Second
	TTLDedup       = 48 * time.Hour
)
