package store

import (
	"context"
	"fmt"
)

const ddlOrders = `
CREATE TABLE IF NOT EXISTS orders (
    id          BIGSERIAL    PRIMARY KEY,
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now(),
    user_id     TEXT         NOT NULL,
    user_name   TEXT         NOT NULL DEFAULT '',
    payment     TEXT         NOT NULL DEFAULT 'unspecified',
    raw_text    TEXT         NOT NULL DEFAULT '',
    is_staff    BOOLEAN      NOT NULL DEFAULT false
);

CREATE INDEX IF NOT EXISTS idx_orders_user_created
    ON orders (user_id, created_at DESC);

CREATE INDEX IF NOT EXISTS idx_orders_created
    ON orders (created_at);

CREATE TABLE IF NOT EXISTS order_items (
    id          BIGSERIAL    PRIMARY KEY,
    order_id    BIGINT       NOT NULL REFERENCES orders (id) ON DELETE CASCADE,
    item_name   TEXT         NOT NULL,
    base_price  INTEGER      NOT NULL,
    quantity    INTEGER      NOT NULL DEFAULT 1,
    addons      JSONB        NOT NULL DEFAULT '[]',
    price       INTEGER      NOT NULL,
    is_staff    BOOLEAN      NOT NULL DEFAULT false
);

CREATE INDEX IF NOT EXISTS idx_order_items_order
    ON order_items (order_id);
`

const ddlActions = `
CREATE TABLE IF NOT EXISTS actions_log (
    id          BIGSERIAL    PRIMARY KEY,
    at          TIMESTAMPTZ  NOT NULL DEFAULT now(),
    kind        TEXT         NOT NULL,
    order_id    BIGINT       NOT NULL,
    payment     TEXT         NOT NULL DEFAULT 'unspecified',
    item_name   TEXT         NOT NULL DEFAULT '',
    user_id     TEXT         NOT NULL,
    user_name   TEXT         NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_actions_log_at
    ON actions_log (at);
`

// Migrate creates the tables and indexes when they do not exist. It is
// idempotent.
func Migrate(ctx context.Context, db DB) error {
	for _, ddl := range []struct {
		name string
		sql  string
	}{
		{"orders", ddlOrders},
		{"actions_log", ddlActions},
	} {
		if _, err := db.Exec(ctx, ddl.sql); err != nil {
			return fmt.Errorf("store: migrate %s: %w", ddl.name, err)
		}
	}
	return nil
}
