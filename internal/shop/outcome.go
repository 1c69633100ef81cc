package shop

type RegisterOutcome string

const (
	RegisterCreated         RegisterOutcome = "CREATED"
	RegisterReassigned      RegisterOutcome = "REASSIGNED"
	RegisterQuantityUpdated RegisterOutcome = "QUANTITY_UPDATED"
)

type BuyOutcome string

const (
	BuyPlaced     BuyOutcome = "PLACED"
	BuyMerged     BuyOutcome = "MERGED"
	BuyAppended   BuyOutcome = "APPENDED"
	BuyOutOfStock BuyOutcome = "OUT_OF_STOCK"
)

// Updated reports whether the purchase changed an existing order.
func (o BuyOutcome) Updated() bool {
	return o == BuyMerged || o == BuyAppended
}

type RegisterResult struct {
	Outcome RegisterOutcome
	Product Product
	// PreviousShopID is set when the product was reassigned.
	PreviousShopID int64
}

// BuyResult carries the order and product as committed. On BuyOutOfStock
// Order is the zero value and Product is untouched.
type BuyResult struct {
	Outcome BuyOutcome
	Order   Order
	Product Product
}

type StoreView struct {
	Shop     Shop
	Products []Product
}
