package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/orderbot/internal/order"
)

// DB is the subset of [pgxpool.Pool] the store needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// querier is satisfied by both DB and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

var (
	_ Store = (*Postgres)(nil)
	_ DB    = (*pgxpool.Pool)(nil)
)

// Postgres is the PostgreSQL-backed [Store]. Safe for concurrent use.
type Postgres struct {
	db    DB
	close func()
}

// PostgresConfig configures [NewPostgres].
type PostgresConfig struct {
	DSN string

	// MaxConns caps the pool size. Zero keeps the pgx default.
	MaxConns int32

	// LockTimeout is set as lock_timeout on every connection so that a
	// blocked write fails with a retryable error instead of hanging.
	// Zero leaves the server default.
	LockTimeout time.Duration
}

// NewPostgres connects, pings and migrates.
func NewPostgres(ctx context.Context, cfg PostgresConfig) (*Postgres, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("store: parse dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}
	if cfg.LockTimeout > 0 {
		if pcfg.ConnConfig.RuntimeParams == nil {
			pcfg.ConnConfig.RuntimeParams = make(map[string]string)
		}
		pcfg.ConnConfig.RuntimeParams["lock_timeout"] = fmt.Sprintf("%dms", cfg.LockTimeout.Milliseconds())
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("store: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &Postgres{db: pool, close: pool.Close}, nil
}

// NewPostgresWithDB wraps an existing connection without migrating.
func NewPostgresWithDB(db DB) *Postgres {
	return &Postgres{db: db, close: func() {}}
}

// Close releases the pool.
func (s *Postgres) Close() { s.close() }

// Ping checks connectivity.
func (s *Postgres) Ping(ctx context.Context) error {
	var one int
	if err := s.db.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
		return wrap("ping", err)
	}
	return nil
}

// AddOrder implements [Store].
func (s *Postgres) AddOrder(ctx context.Context, lines []order.LineItem, userID, userName, rawText string, isStaff bool) (int64, error) {
	if len(lines) == 0 {
		return 0, fmt.Errorf("store: add order: no lines")
	}
	payment := lines[0].Payment

	var id int64
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		const qOrder = `
			INSERT INTO orders (user_id, user_name, payment, raw_text, is_staff)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id`
		if err := tx.QueryRow(ctx, qOrder, userID, userName, string(payment), rawText, isStaff).Scan(&id); err != nil {
			return err
		}

		batch := &pgx.Batch{}
		for _, l := range lines {
			batch.Queue(`
				INSERT INTO order_items (order_id, item_name, base_price, quantity, addons, price, is_staff)
				VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				id, l.ItemName, l.BasePrice, l.Quantity, nonNilAddons(l.Addons), l.RowTotal(), isStaff)
			batch.Queue(`
				INSERT INTO actions_log (kind, order_id, payment, item_name, user_id, user_name)
				VALUES ($1, $2, $3, $4, $5, $6)`,
				string(ActionAdd), id, string(l.Payment), l.ItemName, userID, userName)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return 0, wrap("add order", err)
	}
	return id, nil
}

// ListOrders implements [Store].
func (s *Postgres) ListOrders(ctx context.Context, userID string, offset, limit int) (Page, error) {
	var page Page
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM orders WHERE user_id = $1`, userID).Scan(&page.Total); err != nil {
		return Page{}, wrap("list orders", err)
	}

	const q = `
		SELECT id, created_at, user_id, user_name, payment, raw_text, is_staff
		FROM   orders
		WHERE  user_id = $1
		ORDER  BY created_at DESC, id DESC
		LIMIT  $2 OFFSET $3`
	orders, err := queryOrders(ctx, s.db, q, userID, limit, offset)
	if err != nil {
		return Page{}, wrap("list orders", err)
	}
	page.Orders = orders
	return page, nil
}

// DeleteOrder implements [Store].
func (s *Postgres) DeleteOrder(ctx context.Context, orderID int64, userID, userName string) (Order, error) {
	var deleted Order
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		const q = `
			SELECT id, created_at, user_id, user_name, payment, raw_text, is_staff
			FROM   orders
			WHERE  id = $1 AND user_id = $2
			FOR UPDATE`
		orders, err := queryOrders(ctx, tx, q, orderID, userID)
		if err != nil {
			return err
		}
		if len(orders) == 0 {
			return ErrNotFound
		}
		deleted = orders[0]
		return deleteAndLog(ctx, tx, orders, ActionDelete, userID, userName)
	})
	if err != nil {
		return Order{}, wrap("delete order", err)
	}
	return deleted, nil
}

// DeleteOrdersOn implements [Store].
func (s *Postgres) DeleteOrdersOn(ctx context.Context, userID, userName string, day time.Time) (int, error) {
	start, end := dayBounds(day)
	var n int
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		const q = `
			SELECT id, created_at, user_id, user_name, payment, raw_text, is_staff
			FROM   orders
			WHERE  user_id = $1 AND created_at >= $2 AND created_at < $3
			ORDER  BY id
			FOR UPDATE`
		orders, err := queryOrders(ctx, tx, q, userID, start, end)
		if err != nil {
			return err
		}
		n = len(orders)
		if n == 0 {
			return nil
		}
		return deleteAndLog(ctx, tx, orders, ActionClearDay, userID, userName)
	})
	if err != nil {
		return 0, wrap("clear day", err)
	}
	return n, nil
}

// Orders implements [Store].
func (s *Postgres) Orders(ctx context.Context, r Range) ([]Order, error) {
	where, args := rangeClause("created_at", r)
	q := "SELECT id, created_at, user_id, user_name, payment, raw_text, is_staff\n" +
		"FROM   orders" + where + "\n" +
		"ORDER  BY created_at, id"
	orders, err := queryOrders(ctx, s.db, q, args...)
	if err != nil {
		return nil, wrap("orders", err)
	}
	return orders, nil
}

// Actions implements [Store].
func (s *Postgres) Actions(ctx context.Context, r Range) ([]Action, error) {
	where, args := rangeClause("at", r)
	q := "SELECT id, at, kind, order_id, payment, item_name, user_id, user_name\n" +
		"FROM   actions_log" + where + "\n" +
		"ORDER  BY at, id"
	rows, err := s.db.Query(ctx, q, args...)
	if err != nil {
		return nil, wrap("actions", err)
	}
	actions, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Action, error) {
		var (
			a             Action
			kind, payment string
		)
		err := row.Scan(&a.ID, &a.At, &kind, &a.OrderID, &payment, &a.ItemName, &a.UserID, &a.UserName)
		a.Kind = ActionKind(kind)
		a.Payment = order.ParsePaymentType(payment)
		return a, err
	})
	if err != nil {
		return nil, wrap("actions", err)
	}
	return actions, nil
}

// rangeClause renders an optional WHERE clause for r on column.
func rangeClause(column string, r Range) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if !r.From.IsZero() {
		args = append(args, r.From)
		conds = append(conds, fmt.Sprintf("%s >= $%d", column, len(args)))
	}
	if !r.To.IsZero() {
		args = append(args, r.To)
		conds = append(conds, fmt.Sprintf("%s < $%d", column, len(args)))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return "\nWHERE  " + strings.Join(conds, " AND "), args
}

// queryOrders runs an order header query and attaches the items.
func queryOrders(ctx context.Context, q querier, sql string, args ...any) ([]Order, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	orders, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Order, error) {
		var (
			o       Order
			payment string
		)
		err := row.Scan(&o.ID, &o.CreatedAt, &o.UserID, &o.UserName, &payment, &o.RawText, &o.IsStaff)
		o.Payment = order.ParsePaymentType(payment)
		return o, err
	})
	if err != nil || len(orders) == 0 {
		return orders, err
	}

	ids := make([]int64, len(orders))
	byID := make(map[int64]*Order, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
		byID[orders[i].ID] = &orders[i]
	}

	const qItems = `
		SELECT id, order_id, item_name, base_price, quantity, addons, price, is_staff
		FROM   order_items
		WHERE  order_id = ANY($1)
		ORDER  BY id`
	itemRows, err := q.Query(ctx, qItems, ids)
	if err != nil {
		return nil, err
	}
	defer itemRows.Close()
	for itemRows.Next() {
		var (
			it      Item
			orderID int64
		)
		if err := itemRows.Scan(&it.ID, &orderID, &it.Name, &it.BasePrice, &it.Quantity, &it.Addons, &it.Price, &it.IsStaff); err != nil {
			return nil, err
		}
		if o := byID[orderID]; o != nil {
			o.Items = append(o.Items, it)
		}
	}
	return orders, itemRows.Err()
}

// deleteAndLog deletes orders (items cascade) and writes one action per
// item.
func deleteAndLog(ctx context.Context, tx pgx.Tx, orders []Order, kind ActionKind, userID, userName string) error {
	ids := make([]int64, len(orders))
	batch := &pgx.Batch{}
	for i, o := range orders {
		ids[i] = o.ID
		for _, it := range o.Items {
			batch.Queue(`
				INSERT INTO actions_log (kind, order_id, payment, item_name, user_id, user_name)
				VALUES ($1, $2, $3, $4, $5, $6)`,
				string(kind), o.ID, string(o.Payment), it.Name, userID, userName)
		}
	}
	batch.Queue(`DELETE FROM orders WHERE id = ANY($1)`, ids)
	return tx.SendBatch(ctx, batch).Close()
}

func nonNilAddons(a []order.Addon) []order.Addon {
	if a == nil {
		return []order.Addon{}
	}
	return a
}
