package redisx

import "time"

const (
	// idem:draw:{user_id}:{client_key} -> order_id
	KeyIdemDraw = "idem:draw:%s"

	// order:{order_id} -> order JSON
	KeyOrder = "order:%s"

	// blindbox:{box_id} -> box JSON with prizes
	KeyBlindBox = "blindbox:%s"

	// dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLOrderCache  = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)
