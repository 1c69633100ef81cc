package shop

import "context"

// Store hands out one transaction per request. fn's changes are committed
// only if it returns nil.
type Store interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the unit of work every Service operation runs in. Lookups return an
// error matching ErrNotFound for missing rows; inserts return one matching
// ErrConflict on a duplicate id.
type Tx interface {
	Shop(ctx context.Context, id int64) (Shop, error)
	InsertShop(ctx context.Context, s Shop) error
	// DeleteShop removes the shop, its orders (with their items) and its
	// products (with their items, adjusting the totals of foreign orders).
	DeleteShop(ctx context.Context, id int64) error

	// ProductForUpdate locks the product row until the transaction ends.
	ProductForUpdate(ctx context.Context, id int64) (Product, error)
	ProductsByShop(ctx context.Context, shopID int64) ([]Product, error)
	InsertProduct(ctx context.Context, p Product) error
	UpdateProduct(ctx context.Context, p Product) error
	// DeleteProduct removes the product and its line items, subtracting
	// their amounts from the owning orders' totals.
	DeleteProduct(ctx context.Context, id int64) error

	// OrderForUpdate locks the order row and loads its items.
	OrderForUpdate(ctx context.Context, id int64) (Order, error)
	Orders(ctx context.Context) ([]Order, error)
	OrdersByShop(ctx context.Context, shopID int64) ([]Order, error)
	InsertOrder(ctx context.Context, o Order) error
	UpdateOrder(ctx context.Context, o Order) error
	DeleteOrder(ctx context.Context, id int64) error

	// InsertLineItem assigns li.ID.
	InsertLineItem(ctx context.Context, li *LineItem) error
	UpdateLineItem(ctx context.Context, li LineItem) error
}
