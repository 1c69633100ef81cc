package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// orders.product_id is the last product touched, deliberately not a foreign key.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS shops (
		id      BIGINT PRIMARY KEY,
		name    VARCHAR(50) NOT NULL,
		address VARCHAR(70) NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		id       BIGINT PRIMARY KEY,
		shop_id  BIGINT NOT NULL REFERENCES shops(id) ON DELETE CASCADE,
		name     VARCHAR(30) NOT NULL,
		price    NUMERIC(12,2) NOT NULL,
		quantity INT NOT NULL CHECK (quantity >= 0)
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id          BIGINT PRIMARY KEY,
		shop_id     BIGINT NOT NULL REFERENCES shops(id) ON DELETE CASCADE,
		product_id  BIGINT NOT NULL,
		price       NUMERIC(12,2) NOT NULL,
		total_price NUMERIC(14,2) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS line_items (
		id         BIGSERIAL PRIMARY KEY,
		order_id   BIGINT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		product_id BIGINT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
		name       VARCHAR(30) NOT NULL,
		price      NUMERIC(12,2) NOT NULL,
		quantity   INT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS line_items_order_idx ON line_items(order_id)`,
	`CREATE INDEX IF NOT EXISTS line_items_product_idx ON line_items(product_id)`,
	`CREATE TABLE IF NOT EXISTS shop_events (
		event_id    UUID PRIMARY KEY,
		event_type  TEXT NOT NULL,
		store_id    BIGINT NOT NULL,
		producer    TEXT NOT NULL,
		occurred_at TIMESTAMPTZ NOT NULL,
		payload     JSONB NOT NULL,
		recorded_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// Migrate creates the tables if they do not exist.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
