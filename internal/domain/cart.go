package domain

import "time"

// CartLine is one requested product in a cart or checkout request. Duplicate
// product ids are kept as separate lines.
type CartLine struct {
	ProductID string `json:"product"`
	Quantity  int    `json:"quantity"`
}

// Cart is the per-buyer cart held by the cart store.
type Cart struct {
	BuyerID   string     `json:"buyerId"`
	Lines     []CartLine `json:"items"`
	UpdatedAt time.Time  `json:"updatedAt,omitempty"`
}

func (c Cart) Empty() bool {
	return len(c.Lines) == 0
}
