package redisx

import "time"

const (
	// Rendered GET /store/{id} body: store_view:{store_id} -> json
	KeyStoreView = "store_view:%d"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLStoreView = 5 * time.Minute
	TTLDedup     = 48 * time.Hour
)
