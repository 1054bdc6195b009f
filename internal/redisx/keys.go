package redisx

import "time"

const (
	// Idempotency fast-path for order relay: idem:relay:order:{idempotency_key} -> order_id.
	// The DB unique constraint stays authoritative.
	KeyIdemOrderReceive = "idem:relay:order:%s"

	// Cached order status: order_status:{order_id} -> {"status": "..."}
	KeyOrderStatus = "order_status:%s"

	// Dedup event processing in the callback dispatcher: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)
