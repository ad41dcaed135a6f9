package redisx

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Dedup remembers processed event ids per consuming service. A nil *Dedup
// never reports a duplicate.
type Dedup struct {
	rdb     *redis.Client
	service string
}

func NewDedup(rdb *redis.Client, service string) *Dedup {
	return &Dedup{rdb: rdb, service: service}
}

func (d *Dedup) key(id string) string { return fmt.Sprintf(KeyDedup, d.service, id) }

func (d *Dedup) Seen(ctx context.Context, id string) (bool, error) {
	if d == nil {
		return false, nil
	}
	return Exists(ctx, d.rdb, d.key(id))
}

// Mark is called only after the event was fully handled; a crash in between
// means the event is processed again, which handlers must tolerate.
func (d *Dedup) Mark(ctx context.Context, id string) error {
	if d == nil {
		return nil
	}
	return d.rdb.Set(ctx, d.key(id), "1", TTLDedup).Err()
}
