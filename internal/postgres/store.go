package postgres

import (
	"context"
	"errors"

	"github.com/ariefcatur/go-shop-api/internal/shop"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// Store is the pgx implementation of shop.Store. Row locks taken by the
// *ForUpdate lookups serialize concurrent purchases of the same product.
type Store struct{ DB *pgxpool.Pool }

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx shop.Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, &txn{tx: tx}); err != nil {
		return err
	}
	return mapErr(tx.Commit(ctx))
}

var tableEntity = map[string]string{
	"shops":    shop.EntityStore,
	"products": shop.EntityProduct,
	"orders":   shop.EntityOrder,
}

func mapErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return shop.Conflict(tableEntity[pgErr.TableName], 0)
	}
	return err
}

type txn struct{ tx pgx.Tx }

func (t *txn) Shop(ctx context.Context, id int64) (shop.Shop, error) {
	var sh shop.Shop
	err := t.tx.QueryRow(ctx, `SELECT id, name, address FROM shops WHERE id=$1`, id).
		Scan(&sh.ID, &sh.Name, &sh.Address)
	if errors.Is(err, pgx.ErrNoRows) {
		return shop.Shop{}, shop.NotFound(shop.EntityStore, id)
	}
	return sh, err
}

func (t *txn) InsertShop(ctx context.Context, sh shop.Shop) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO shops(id, name, address) VALUES ($1,$2,$3)`, sh.ID, sh.Name, sh.Address)
	return mapErr(err)
}

func (t *txn) DeleteShop(ctx context.Context, id int64) error {
	// products before orders, the same lock order as a purchase
	if _, err := t.tx.Exec(ctx, `SELECT id FROM products WHERE shop_id=$1 ORDER BY id FOR UPDATE`, id); err != nil {
		return err
	}
	// items of this shop's products may sit in other shops' orders
	if _, err := t.tx.Exec(ctx, `
		UPDATE orders o SET total_price = o.total_price - s.amount
		FROM (
			SELECT li.order_id, SUM(li.price * li.quantity) AS amount
			FROM line_items li JOIN products p ON p.id = li.product_id
			WHERE p.shop_id = $1
			GROUP BY li.order_id
		) s
		WHERE o.id = s.order_id AND o.shop_id <> $1`, id); err != nil {
		return err
	}
	ct, err := t.tx.Exec(ctx, `DELETE FROM shops WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return shop.NotFound(shop.EntityStore, id)
	}
	return nil
}

func (t *txn) ProductForUpdate(ctx context.Context, id int64) (shop.Product, error) {
	var p shop.Product
	err := t.tx.QueryRow(ctx, `SELECT id, shop_id, name, price, quantity FROM products WHERE id=$1 FOR UPDATE`, id).
		Scan(&p.ID, &p.ShopID, &p.Name, &p.Price, &p.Quantity)
	if errors.Is(err, pgx.ErrNoRows) {
		return shop.Product{}, shop.NotFound(shop.EntityProduct, id)
	}
	return p, err
}

func (t *txn) ProductsByShop(ctx context.Context, shopID int64) ([]shop.Product, error) {
	rows, err := t.tx.Query(ctx, `SELECT id, shop_id, name, price, quantity FROM products WHERE shop_id=$1 ORDER BY id`, shopID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []shop.Product
	for rows.Next() {
		var p shop.Product
		if err := rows.Scan(&p.ID, &p.ShopID, &p.Name, &p.Price, &p.Quantity); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (t *txn) InsertProduct(ctx context.Context, p shop.Product) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO products(id, shop_id, name, price, quantity)
		VALUES ($1,$2,$3,$4,$5)`, p.ID, p.ShopID, p.Name, p.Price, p.Quantity)
	return mapErr(err)
}

func (t *txn) UpdateProduct(ctx context.Context, p shop.Product) error {
	ct, err := t.tx.Exec(ctx, `UPDATE products SET shop_id=$2, quantity=$3 WHERE id=$1`, p.ID, p.ShopID, p.Quantity)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return shop.NotFound(shop.EntityProduct, p.ID)
	}
	return nil
}

func (t *txn) DeleteProduct(ctx context.Context, id int64) error {
	if _, err := t.tx.Exec(ctx, `
		UPDATE orders o SET total_price = o.total_price - s.amount
		FROM (
			SELECT order_id, SUM(price * quantity) AS amount
			FROM line_items WHERE product_id = $1
			GROUP BY order_id
		) s
		WHERE o.id = s.order_id`, id); err != nil {
		return err
	}
	_, err := t.tx.Exec(ctx, `DELETE FROM products WHERE id=$1`, id)
	return err
}

func (t *txn) OrderForUpdate(ctx context.Context, id int64) (shop.Order, error) {
	var o shop.Order
	err := t.tx.QueryRow(ctx, `SELECT id, shop_id, product_id, price, total_price FROM orders WHERE id=$1 FOR UPDATE`, id).
		Scan(&o.ID, &o.ShopID, &o.ProductID, &o.Price, &o.TotalPrice)
	if errors.Is(err, pgx.ErrNoRows) {
		return shop.Order{}, shop.NotFound(shop.EntityOrder, id)
	}
	if err != nil {
		return shop.Order{}, err
	}
	orders := []shop.Order{o}
	if err := t.loadItems(ctx, orders); err != nil {
		return shop.Order{}, err
	}
	return orders[0], nil
}

func (t *txn) Orders(ctx context.Context) ([]shop.Order, error) {
	return t.queryOrders(ctx, `SELECT id, shop_id, product_id, price, total_price FROM orders ORDER BY id`)
}

func (t *txn) OrdersByShop(ctx context.Context, shopID int64) ([]shop.Order, error) {
	return t.queryOrders(ctx, `SELECT id, shop_id, product_id, price, total_price FROM orders WHERE shop_id=$1 ORDER BY id`, shopID)
}

func (t *txn) queryOrders(ctx context.Context, sql string, args ...any) ([]shop.Order, error) {
	rows, err := t.tx.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	var out []shop.Order
	for rows.Next() {
		var o shop.Order
		if err := rows.Scan(&o.ID, &o.ShopID, &o.ProductID, &o.Price, &o.TotalPrice); err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := t.loadItems(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// loadItems fills Items of every order in place with a single query.
func (t *txn) loadItems(ctx context.Context, orders []shop.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(orders))
	idx := make(map[int64]int, len(orders))
	for i, o := range orders {
		ids = append(ids, o.ID)
		idx[o.ID] = i
	}
	rows, err := t.tx.Query(ctx, `
		SELECT id, order_id, product_id, name, price, quantity
		FROM line_items WHERE order_id = ANY($1) ORDER BY id`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var li shop.LineItem
		if err := rows.Scan(&li.ID, &li.OrderID, &li.ProductID, &li.Name, &li.Price, &li.Quantity); err != nil {
			return err
		}
		o := &orders[idx[li.OrderID]]
		o.Items = append(o.Items, li)
	}
	return rows.Err()
}

func (t *txn) InsertOrder(ctx context.Context, o shop.Order) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO orders(id, shop_id, product_id, price, total_price)
		VALUES ($1,$2,$3,$4,$5)`, o.ID, o.ShopID, o.ProductID, o.Price, o.TotalPrice)
	return mapErr(err)
}

func (t *txn) UpdateOrder(ctx context.Context, o shop.Order) error {
	ct, err := t.tx.Exec(ctx, `UPDATE orders SET product_id=$2, price=$3, total_price=$4 WHERE id=$1`,
		o.ID, o.ProductID, o.Price, o.TotalPrice)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return shop.NotFound(shop.EntityOrder, o.ID)
	}
	return nil
}

func (t *txn) DeleteOrder(ctx context.Context, id int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM orders WHERE id=$1`, id)
	return err
}

func (t *txn) InsertLineItem(ctx context.Context, li *shop.LineItem) error {
	return t.tx.QueryRow(ctx, `
		INSERT INTO line_items(order_id, product_id, name, price, quantity)
		VALUES ($1,$2,$3,$4,$5) RETURNING id`,
		li.OrderID, li.ProductID, li.Name, li.Price, li.Quantity).Scan(&li.ID)
}

func (t *txn) UpdateLineItem(ctx context.Context, li shop.LineItem) error {
	_, err := t.tx.Exec(ctx, `UPDATE line_items SET quantity=$2 WHERE id=$1`, li.ID, li.Quantity)
	return err
}
