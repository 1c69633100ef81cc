// Package memory implements an in-process shop.Store.
package memory

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/ariefcatur/go-shop-api/internal/shop"
)

type state struct {
	shops      map[int64]shop.Shop
	products   map[int64]shop.Product
	orders     map[int64]shop.Order // Items left empty; see items
	items      map[int64]shop.LineItem
	nextItemID int64
}

func (s *state) clone() *state {
	return &state{
		shops:      maps.Clone(s.shops),
		products:   maps.Clone(s.products),
		orders:     maps.Clone(s.orders),
		items:      maps.Clone(s.items),
		nextItemID: s.nextItemID,
	}
}

// Store serializes transactions with a single mutex. Each transaction works
// on a copy of the state that replaces the original on commit.
type Store struct {
	mu sync.Mutex
	st *state
}

func New() *Store {
	return &Store{st: &state{
		shops:    make(map[int64]shop.Shop),
		products: make(map[int64]shop.Product),
		orders:   make(map[int64]shop.Order),
		items:    make(map[int64]shop.LineItem),
	}}
}

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx shop.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	t := &tx{st: s.st.clone()}
	if err := fn(ctx, t); err != nil {
		return err
	}
	s.st = t.st
	return nil
}

type tx struct{ st *state }

func (t *tx) Shop(_ context.Context, id int64) (shop.Shop, error) {
	sh, ok := t.st.shops[id]
	if !ok {
		return shop.Shop{}, shop.NotFound(shop.EntityStore, id)
	}
	return sh, nil
}

func (t *tx) InsertShop(_ context.Context, sh shop.Shop) error {
	if _, ok := t.st.shops[sh.ID]; ok {
		return shop.Conflict(shop.EntityStore, sh.ID)
	}
	t.st.shops[sh.ID] = sh
	return nil
}

func (t *tx) DeleteShop(ctx context.Context, id int64) error {
	for pid, p := range t.st.products {
		if p.ShopID == id {
			if err := t.DeleteProduct(ctx, pid); err != nil {
				return err
			}
		}
	}
	for oid, o := range t.st.orders {
		if o.ShopID == id {
			if err := t.DeleteOrder(ctx, oid); err != nil {
				return err
			}
		}
	}
	delete(t.st.shops, id)
	return nil
}

func (t *tx) ProductForUpdate(_ context.Context, id int64) (shop.Product, error) {
	p, ok := t.st.products[id]
	if !ok {
		return shop.Product{}, shop.NotFound(shop.EntityProduct, id)
	}
	return p, nil
}

func (t *tx) ProductsByShop(_ context.Context, shopID int64) ([]shop.Product, error) {
	var out []shop.Product
	for _, p := range t.st.products {
		if p.ShopID == shopID {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, func(a, b shop.Product) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (t *tx) InsertProduct(_ context.Context, p shop.Product) error {
	if _, ok := t.st.products[p.ID]; ok {
		return shop.Conflict(shop.EntityProduct, p.ID)
	}
	t.st.products[p.ID] = p
	return nil
}

func (t *tx) UpdateProduct(_ context.Context, p shop.Product) error {
	if _, ok := t.st.products[p.ID]; !ok {
		return shop.NotFound(shop.EntityProduct, p.ID)
	}
	t.st.products[p.ID] = p
	return nil
}

func (t *tx) DeleteProduct(_ context.Context, id int64) error {
	for iid, li := range t.st.items {
		if li.ProductID != id {
			continue
		}
		if o, ok := t.st.orders[li.OrderID]; ok {
			o.TotalPrice = o.TotalPrice.Sub(li.Amount())
			t.st.orders[o.ID] = o
		}
		delete(t.st.items, iid)
	}
	delete(t.st.products, id)
	return nil
}

func (t *tx) OrderForUpdate(_ context.Context, id int64) (shop.Order, error) {
	o, ok := t.st.orders[id]
	if !ok {
		return shop.Order{}, shop.NotFound(shop.EntityOrder, id)
	}
	return t.withItems(o), nil
}

func (t *tx) withItems(o shop.Order) shop.Order {
	o.Items = nil
	for _, li := range t.st.items {
		if li.OrderID == o.ID {
			o.Items = append(o.Items, li)
		}
	}
	slices.SortFunc(o.Items, func(a, b shop.LineItem) int { return cmp.Compare(a.ID, b.ID) })
	return o
}

func (t *tx) Orders(_ context.Context) ([]shop.Order, error) {
	return t.ordersWhere(func(shop.Order) bool { return true }), nil
}

func (t *tx) OrdersByShop(_ context.Context, shopID int64) ([]shop.Order, error) {
	return t.ordersWhere(func(o shop.Order) bool { return o.ShopID == shopID }), nil
}

func (t *tx) ordersWhere(keep func(shop.Order) bool) []shop.Order {
	var out []shop.Order
	for _, o := range t.st.orders {
		if keep(o) {
			out = append(out, t.withItems(o))
		}
	}
	slices.SortFunc(out, func(a, b shop.Order) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

func (t *tx) InsertOrder(_ context.Context, o shop.Order) error {
	if _, ok := t.st.orders[o.ID]; ok {
		return shop.Conflict(shop.EntityOrder, o.ID)
	}
	o.Items = nil
	t.st.orders[o.ID] = o
	return nil
}

func (t *tx) UpdateOrder(_ context.Context, o shop.Order) error {
	if _, ok := t.st.orders[o.ID]; !ok {
		return shop.NotFound(shop.EntityOrder, o.ID)
	}
	o.Items = nil
	t.st.orders[o.ID] = o
	return nil
}

func (t *tx) DeleteOrder(_ context.Context, id int64) error {
	for iid, li := range t.st.items {
		if li.OrderID == id {
			delete(t.st.items, iid)
		}
	}
	delete(t.st.orders, id)
	return nil
}

func (t *tx) InsertLineItem(_ context.Context, li *shop.LineItem) error {
	t.st.nextItemID++
	li.ID = t.st.nextItemID
	t.st.items[li.ID] = *li
	return nil
}

func (t *tx) UpdateLineItem(_ context.Context, li shop.LineItem) error {
	if _, ok := t.st.items[li.ID]; !ok {
		return shop.ErrNotFound
	}
	t.st.items[li.ID] = li
	return nil
}
