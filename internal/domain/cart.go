package domain

import "github.com/shopspring/decimal"

// ProductSnapshot is frozen when the product is added to a cart and is never
// refreshed from the catalog afterwards.
type ProductSnapshot struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	ImageURL string          `json:"imageUrl,omitempty"`
	Category string          `json:"category,omitempty"`
}

type CartEntry struct {
	Product  ProductSnapshot `json:"product"`
	Quantity int             `json:"quantity"`
}

func (e CartEntry) Subtotal() decimal.Decimal {
	return e.Product.Price.Mul(decimal.NewFromInt(int64(e.Quantity)))
}
