package domain

import (
	"fmt"
	"strings"
	"time"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "Pending"
	OrderStatusPlaced    OrderStatus = "Placed"
	OrderStatusConfirmed OrderStatus = "Confirmed"
)

type PaymentMethod string

const (
	PaymentCOD    PaymentMethod = "COD"
	PaymentEsewa  PaymentMethod = "ESEWA"
	PaymentStripe PaymentMethod = "STRIPE"
)

// ParsePaymentMethod accepts the method name in any case.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch m := PaymentMethod(strings.ToUpper(strings.TrimSpace(s))); m {
	case PaymentCOD, PaymentEsewa, PaymentStripe:
		return m, nil
	default:
		return "", fmt.Errorf("unknown payment method %q", s)
	}
}

// InitialStatus is the status an order starts in. Cash on delivery needs no
// external confirmation.
func (m PaymentMethod) InitialStatus() OrderStatus {
	if m == PaymentCOD {
		return OrderStatusPlaced
	}
	return OrderStatusPending
}

// PricedLine is a cart line resolved against the catalog.
type PricedLine struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unitPrice"`
	Quantity  int    `json:"quantity"`
	Subtotal  int64  `json:"subtotal"`
}

type PriceSummary struct {
	Lines     []PricedLine `json:"lines"`
	Subtotal  int64        `json:"subtotal"`
	TaxAmount int64        `json:"taxAmount"`
	Total     int64        `json:"total"`
}

type Order struct {
	ID                string        `json:"id"`
	BuyerID           string        `json:"userId"`
	AddressID         string        `json:"addressId,omitempty"`
	Address           Address       `json:"address"`
	Lines             []PricedLine  `json:"items"`
	Subtotal          int64         `json:"subtotal"`
	TaxAmount         int64         `json:"taxAmount"`
	Amount            int64         `json:"amount"`
	Currency          string        `json:"currency"`
	PaymentMethod     PaymentMethod `json:"paymentType"`
	Status            OrderStatus   `json:"status"`
	PaymentReference  string        `json:"paymentId,omitempty"`
	PaymentVerifiedAt *time.Time    `json:"paymentVerifiedAt,omitempty"`
	CreatedAt         time.Time     `json:"date"`
	UpdatedAt         time.Time     `json:"updatedAt"`
}
