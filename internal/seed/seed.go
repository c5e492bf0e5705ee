package seed

import (
	"context"
	"fmt"
	"log/slog"

	"storefront/internal/db"
	"storefront/internal/domain"
	productrepo "storefront/internal/repository/product"
)

const (
	DemoSellerID  = "demo-seller"
	DemoBuyerID   = "demo-buyer"
	DemoAddressID = "00000000-0000-4000-8000-0000000000a1"
)

func offer(v int64) *int64 { return &v }

var demoProducts = []domain.Product{
	{
		ID:          "00000000-0000-4000-8000-000000000001",
		Name:        "Wireless Headphones",
		Description: "Over-ear, noise cancelling",
		Category:    "Audio",
		Price:       500,
	},
	{
		ID:          "00000000-0000-4000-8000-000000000002",
		Name:        "Smart Watch",
		Description: "Heart rate and sleep tracking",
		Category:    "Wearables",
		Price:       900,
		OfferPrice:  offer(750),
	},
	{
		ID:          "00000000-0000-4000-8000-000000000003",
		Name:        "Bluetooth Speaker",
		Description: "Portable, water resistant",
		Category:    "Audio",
		Price:       1200,
		OfferPrice:  offer(999),
	},
}

// Apply inserts demo catalogue and address data for manual testing. It is
// idempotent via ON CONFLICT.
func Apply(ctx context.Context, pool db.DBTX, logger *slog.Logger) error {
	products := productrepo.NewPostgres(pool, logger)
	for _, p := range demoProducts {
		p.SellerID = DemoSellerID
		if _, err := products.Upsert(ctx, p); err != nil {
			return fmt.Errorf("upsert product %s: %w", p.Name, err)
		}
	}

	if err := upsertAddress(ctx, pool, domain.Address{
		ID:       DemoAddressID,
		UserID:   DemoBuyerID,
		FullName: "Demo Buyer",
		Phone:    "9800000000",
		Pincode:  "44600",
		Area:     "Thamel",
		City:     "Kathmandu",
		State:    "Bagmati",
	}); err != nil {
		return fmt.Errorf("upsert address: %w", err)
	}
	return nil
}

func upsertAddress(ctx context.Context, pool db.DBTX, a domain.Address) error {
	const q = `
INSERT INTO addresses (id, user_id, full_name, phone, pincode, area, city, state)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (id) DO UPDATE
SET user_id = EXCLUDED.user_id,
    full_name = EXCLUDED.full_name,
    phone = EXCLUDED.phone,
    pincode = EXCLUDED.pincode,
    area = EXCLUDED.area,
    city = EXCLUDED.city,
    state = EXCLUDED.state
`
	_, err := pool.Exec(ctx, q, a.ID, a.UserID, a.FullName, a.Phone, a.Pincode, a.Area, a.City, a.State)
	return err
}
