package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Condition string

const (
	ConditionNew      Condition = "new"
	ConditionUsed     Condition = "used"
	ConditionDiscount Condition = "discount"
)

func (c Condition) Valid() bool {
	switch c {
	case ConditionNew, ConditionUsed, ConditionDiscount:
		return true
	}
	return false
}

type Product struct {
	ID            string           `json:"id"`
	Name          string           `json:"name"`
	Description   string           `json:"description"`
	Price         decimal.Decimal  `json:"price"`
	OriginalPrice *decimal.Decimal `json:"original_price,omitempty"`
	CategoryID    string           `json:"category_id"`
	CategoryName  string           `json:"category_name,omitempty"`
	Condition     Condition        `json:"condition"`
	Images        []ProductImage   `json:"images"`
	CreatedAt     time.Time        `json:"created_at"`
}

type ProductImage struct {
	ID        string    `json:"id"`
	ProductID string    `json:"product_id"`
	ImageURL  string    `json:"image_url"`
	IsPrimary bool      `json:"is_primary"`
	CreatedAt time.Time `json:"created_at"`
}

type Category struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Icon      string    `json:"icon,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// PrimaryImage returns the image flagged primary, falling back to the first one.
func (p *Product) PrimaryImage() string {
	for _, img := range p.Images {
		if img.IsPrimary {
			return img.ImageURL
		}
	}
	if len(p.Images) > 0 {
		return p.Images[0].ImageURL
	}
	return ""
}

// Snapshot captures the fields the cart keeps for a product at add time.
func (p *Product) Snapshot() ProductSnapshot {
	return ProductSnapshot{
		ID:       p.ID,
		Name:     p.Name,
		Price:    p.Price,
		ImageURL: p.PrimaryImage(),
		Category: p.CategoryName,
	}
}
