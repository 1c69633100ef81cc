package shop

import "github.com/shopspring/decimal"

type Shop struct {
	ID      int64
	Name    string
	Address string
}

type Product struct {
	ID       int64
	ShopID   int64
	Name     string
	Price    decimal.Decimal
	Quantity int
}

// Order keeps a running total that is only ever adjusted incrementally.
// ProductID is the last product touched by a purchase, not a key over Items.
type Order struct {
	ID         int64
	ShopID     int64
	ProductID  int64
	Price      decimal.Decimal
	TotalPrice decimal.Decimal
	Items      []LineItem
}

type LineItem struct {
	ID        int64
	OrderID   int64
	ProductID int64
	Name      string
	Price     decimal.Decimal
	Quantity  int
}

// Amount is price * quantity.
func (li LineItem) Amount() decimal.Decimal {
	return li.Price.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// ItemFor returns the index of the line item referencing productID, or -1.
func (o *Order) ItemFor(productID int64) int {
	for i, it := range o.Items {
		if it.ProductID == productID {
			return i
		}
	}
	return -1
}

// ProductInput is the payload of a product registration. Name and Price are
// only read when the product does not exist yet.
type ProductInput struct {
	ProductID int64
	Name      string
	Price     *decimal.Decimal
	Quantity  int
}

// BuyInput is the payload of a purchase.
type BuyInput struct {
	ProductID int64
	OrderID   int64
	Quantity  int
}
