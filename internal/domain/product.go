package domain

import "time"

type Product struct {
	ID          string    `json:"id"`
	SellerID    string    `json:"sellerId"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Category    string    `json:"category,omitempty"`
	Price       int64     `json:"price"`
	OfferPrice  *int64    `json:"offerPrice,omitempty"`
	ImageURLs   []string  `json:"image,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// UnitPrice is the price charged per unit: the seller's offer price when one
// is set, the base price otherwise.
func (p Product) UnitPrice() int64 {
	if p.OfferPrice != nil && *p.OfferPrice > 0 {
		return *p.OfferPrice
	}
	return p.Price
}
