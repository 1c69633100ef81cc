package postgres

import (
	"context"
	"fmt"
	"strconv"

	"github.com/ariefcatur/go-shop-api/internal/shop"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EventRecorder appends consumed shop events to shop_events.
type EventRecorder struct{ DB *pgxpool.Pool }

// Record inserts env and reports whether it was new. Replays of an already
// recorded event_id are ignored.
func (r *EventRecorder) Record(ctx context.Context, env shop.Envelope) (bool, error) {
	storeID, err := strconv.ParseInt(env.CorrelationID, 10, 64)
	if err != nil {
		return false, fmt.Errorf("event %s: bad correlation id %q", env.EventID, env.CorrelationID)
	}
	ct, err := r.DB.Exec(ctx, `
		INSERT INTO shop_events(event_id, event_type, store_id, producer, occurred_at, payload)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (event_id) DO NOTHING`,
		env.EventID, env.EventType, storeID, env.Producer, env.OccurredAt, []byte(env.Payload))
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}
