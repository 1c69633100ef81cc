package shop

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Service implements the shop, inventory and order operations. Every method
// runs in a single Store transaction.
type Service struct {
	Store Store
}

func (s *Service) AddStore(ctx context.Context, sh Shop) error {
	if strings.TrimSpace(sh.Name) == "" {
		return fmt.Errorf("%w: store name is required", ErrInvalid)
	}
	return s.Store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.InsertShop(ctx, sh)
	})
}

// RegisterProduct creates the product in shopID, moves it there from another
// shop (overwriting its quantity) or tops up its quantity.
func (s *Service) RegisterProduct(ctx context.Context, shopID int64, in ProductInput) (RegisterResult, error) {
	if in.Quantity < 0 {
		return RegisterResult{}, fmt.Errorf("%w: quantity must not be negative", ErrInvalid)
	}
	res, err := s.registerOnce(ctx, shopID, in)
	if errors.Is(err, ErrConflict) {
		// created concurrently; the second attempt sees the row
		res, err = s.registerOnce(ctx, shopID, in)
	}
	return res, err
}

func (s *Service) registerOnce(ctx context.Context, shopID int64, in ProductInput) (RegisterResult, error) {
	var res RegisterResult
	err := s.Store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := tx.Shop(ctx, shopID); err != nil {
			return err
		}
		p, err := tx.ProductForUpdate(ctx, in.ProductID)
		switch {
		case errors.Is(err, ErrNotFound):
			if err := validateNewProduct(in); err != nil {
				return err
			}
			p = Product{ID: in.ProductID, ShopID: shopID, Name: in.Name, Price: *in.Price, Quantity: in.Quantity}
			if err := tx.InsertProduct(ctx, p); err != nil {
				return err
			}
			res = RegisterResult{Outcome: RegisterCreated, Product: p}
			return nil
		case err != nil:
			return err
		case p.ShopID != shopID:
			res = RegisterResult{Outcome: RegisterReassigned, PreviousShopID: p.ShopID}
			p.ShopID = shopID
			p.Quantity = in.Quantity
		default:
			res = RegisterResult{Outcome: RegisterQuantityUpdated}
			p.Quantity += in.Quantity
		}
		if err := tx.UpdateProduct(ctx, p); err != nil {
			return err
		}
		res.Product = p
		return nil
	})
	return res, err
}

func validateNewProduct(in ProductInput) error {
	switch {
	case strings.TrimSpace(in.Name) == "":
		return fmt.Errorf("%w: product name is required", ErrInvalid)
	case in.Price == nil:
		return fmt.Errorf("%w: product price is required", ErrInvalid)
	case in.Price.IsNegative():
		return fmt.Errorf("%w: product price must not be negative", ErrInvalid)
	}
	return nil
}

// debit takes amount units off p. A zero-stock product is rejected even for
// a zero amount.
func debit(p *Product, amount int) error {
	if p.Quantity < amount || p.Quantity == 0 {
		return ErrInsufficientStock
	}
	p.Quantity -= amount
	return nil
}

// Buy places a new order or merges the purchase into an existing one.
// Insufficient stock is not an error: it yields BuyOutOfStock and writes nothing.
func (s *Service) Buy(ctx context.Context, shopID int64, in BuyInput) (BuyResult, error) {
	if in.Quantity < 0 {
		return BuyResult{}, fmt.Errorf("%w: quantity must not be negative", ErrInvalid)
	}
	res, err := s.buyOnce(ctx, shopID, in)
	if errors.Is(err, ErrConflict) {
		// order inserted by a concurrent purchase; retry on the update path
		res, err = s.buyOnce(ctx, shopID, in)
	}
	return res, err
}

func (s *Service) buyOnce(ctx context.Context, shopID int64, in BuyInput) (BuyResult, error) {
	var res BuyResult
	err := s.Store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := tx.Shop(ctx, shopID); err != nil {
			return err
		}
		p, err := tx.ProductForUpdate(ctx, in.ProductID)
		if err != nil {
			return err
		}
		o, err := tx.OrderForUpdate(ctx, in.OrderID)
		exists := err == nil
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}

		res.Product = p
		if err := debit(&p, in.Quantity); err != nil {
			res.Outcome = BuyOutOfStock
			return nil
		}

		unit := p.Price
		amount := unit.Mul(decimal.NewFromInt(int64(in.Quantity)))
		if exists {
			if i := o.ItemFor(p.ID); i >= 0 {
				o.Items[i].Quantity += in.Quantity
				if err := tx.UpdateLineItem(ctx, o.Items[i]); err != nil {
					return err
				}
				o.Price = o.Price.Add(unit)
				res.Outcome = BuyMerged
			} else {
				li := LineItem{OrderID: o.ID, ProductID: p.ID, Name: p.Name, Price: unit, Quantity: in.Quantity}
				if err := tx.InsertLineItem(ctx, &li); err != nil {
					return err
				}
				o.Items = append(o.Items, li)
				res.Outcome = BuyAppended
			}
			o.TotalPrice = o.TotalPrice.Add(amount)
			o.ProductID = p.ID
			if err := tx.UpdateOrder(ctx, o); err != nil {
				return err
			}
		} else {
			o = Order{ID: in.OrderID, ShopID: p.ShopID, ProductID: p.ID, Price: unit, TotalPrice: amount}
			if err := tx.InsertOrder(ctx, o); err != nil {
				return err
			}
			li := LineItem{OrderID: o.ID, ProductID: p.ID, Name: p.Name, Price: unit, Quantity: in.Quantity}
			if err := tx.InsertLineItem(ctx, &li); err != nil {
				return err
			}
			o.Items = []LineItem{li}
			res.Outcome = BuyPlaced
		}

		if err := tx.UpdateProduct(ctx, p); err != nil {
			return err
		}
		res.Order = o
		res.Product = p
		return nil
	})
	return res, err
}

func (s *Service) Orders(ctx context.Context) ([]Order, error) {
	var out []Order
	err := s.Store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		out, err = tx.Orders(ctx)
		return err
	})
	return out, err
}

func (s *Service) StoreOrders(ctx context.Context, shopID int64) ([]Order, error) {
	var out []Order
	err := s.Store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := tx.Shop(ctx, shopID); err != nil {
			return err
		}
		var err error
		out, err = tx.OrdersByShop(ctx, shopID)
		return err
	})
	return out, err
}

func (s *Service) StoreView(ctx context.Context, shopID int64) (StoreView, error) {
	var v StoreView
	err := s.Store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		sh, err := tx.Shop(ctx, shopID)
		if err != nil {
			return err
		}
		ps, err := tx.ProductsByShop(ctx, shopID)
		if err != nil {
			return err
		}
		v = StoreView{Shop: sh, Products: ps}
		return nil
	})
	return v, err
}

func (s *Service) DeleteStore(ctx context.Context, shopID int64) error {
	return s.Store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := tx.Shop(ctx, shopID); err != nil {
			return err
		}
		return tx.DeleteShop(ctx, shopID)
	})
}

// DeleteOrder removes the order and its line items. The store must exist; the
// order is not required to belong to it.
func (s *Service) DeleteOrder(ctx context.Context, shopID, orderID int64) (Order, error) {
	var o Order
	err := s.Store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := tx.Shop(ctx, shopID); err != nil {
			return err
		}
		var err error
		if o, err = tx.OrderForUpdate(ctx, orderID); err != nil {
			return err
		}
		return tx.DeleteOrder(ctx, orderID)
	})
	return o, err
}

// DeleteProduct removes the product and its line items. Like DeleteOrder it
// only requires the store to exist.
func (s *Service) DeleteProduct(ctx context.Context, shopID, productID int64) (Product, error) {
	var p Product
	err := s.Store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := tx.Shop(ctx, shopID); err != nil {
			return err
		}
		var err error
		if p, err = tx.ProductForUpdate(ctx, productID); err != nil {
			return err
		}
		return tx.DeleteProduct(ctx, productID)
	})
	return p, err
}
