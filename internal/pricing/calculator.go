// Package pricing turns cart lines into a priced summary with the store's
// fixed 2% charge.
package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"storefront/internal/domain"
)

// Tax is charged at TaxNumerator/TaxDenominator of the subtotal, rounded down.
const (
	TaxNumerator   = 2
	TaxDenominator = 100
)

// Catalog resolves product ids to authoritative catalog entries. Ids with no
// entry are simply absent from the result.
type Catalog interface {
	GetByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error)
}

type Calculator struct {
	catalog Catalog
}

func New(catalog Catalog) *Calculator {
	return &Calculator{catalog: catalog}
}

// Price validates every line and prices the cart. Any invalid line rejects
// the whole cart. Quantities are checked for all lines before the catalog is
// consulted.
func (c *Calculator) Price(ctx context.Context, lines []domain.CartLine) (domain.PriceSummary, error) {
	if len(lines) == 0 {
		return domain.PriceSummary{}, domain.Invalid(domain.ErrEmptyCart, "No items in cart")
	}
	ids := make([]string, 0, len(lines))
	seen := make(map[string]struct{}, len(lines))
	for _, l := range lines {
		if l.Quantity < 1 {
			return domain.PriceSummary{}, invalidQuantity(l.ProductID)
		}
		if _, ok := seen[l.ProductID]; !ok {
			seen[l.ProductID] = struct{}{}
			ids = append(ids, l.ProductID)
		}
	}

	products, err := c.catalog.GetByIDs(ctx, ids)
	if err != nil {
		return domain.PriceSummary{}, fmt.Errorf("pricing: load products: %w", err)
	}

	summary := domain.PriceSummary{Lines: make([]domain.PricedLine, 0, len(lines))}
	for _, l := range lines {
		p, ok := products[l.ProductID]
		if !ok {
			return domain.PriceSummary{}, domain.Missing(domain.ErrProductNotFound, "Product not found: %s", l.ProductID)
		}
		unit := p.UnitPrice()
		line := domain.PricedLine{
			ProductID: l.ProductID,
			Name:      p.Name,
			UnitPrice: unit,
			Quantity:  l.Quantity,
			Subtotal:  unit * int64(l.Quantity),
		}
		summary.Lines = append(summary.Lines, line)
		summary.Subtotal += line.Subtotal
	}
	summary.TaxAmount = Tax(summary.Subtotal)
	summary.Total = summary.Subtotal + summary.TaxAmount
	return summary, nil
}

// Tax returns floor(subtotal * 0.02) without floating point.
func Tax(subtotal int64) int64 {
	if subtotal <= 0 {
		return 0
	}
	return subtotal * TaxNumerator / TaxDenominator
}

// Quantity converts a JSON number from a request into a line quantity. Values
// that are not whole positive numbers are rejected the same way as zero.
func Quantity(productID string, n json.Number) (int, error) {
	v, err := n.Int64()
	if err != nil {
		f, ferr := n.Float64()
		if ferr != nil || f != math.Trunc(f) || f > math.MaxInt32 {
			return 0, invalidQuantity(productID)
		}
		v = int64(f)
	}
	if v < 1 || v > math.MaxInt32 {
		return 0, invalidQuantity(productID)
	}
	return int(v), nil
}

func invalidQuantity(productID string) error {
	return domain.Invalid(domain.ErrInvalidQuantity,
		"Invalid quantity for product %s. Quantity must be a positive whole number.", productID)
}
