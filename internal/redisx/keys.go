package redisx

import "time"

const (
	// Cache status booking: booking_status:{booking_id} -> {"status": "...", "updated_at": "..."}
	KeyBookingStatus = "booking_status:%s"

	// Dedup event processing: dedup:{service}:{id} (id = event_id or booking_id:phase)
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)
