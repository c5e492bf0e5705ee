package cart

import (
	"context"
	"errors"
	"strings"

	"storefront/internal/domain"
	cartrepo "storefront/internal/repository/cart"
)

type Service struct {
	repo        cartrepo.Repository
	productRepo productRepo
}

type productRepo interface {
	GetByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error)
}

func New(repo cartrepo.Repository, productRepo productRepo) *Service {
	return &Service{repo: repo, productRepo: productRepo}
}

func (s *Service) Get(ctx context.Context, buyerID string) (domain.Cart, error) {
	if strings.TrimSpace(buyerID) == "" {
		return domain.Cart{}, &domain.AuthError{Message: "Not authorized", Err: domain.ErrUnauthenticated}
	}
	return s.repo.Get(ctx, buyerID)
}

// Replace overwrites the buyer's cart. Every line needs a positive quantity
// and a product that exists in the catalogue.
func (s *Service) Replace(ctx context.Context, buyerID string, lines []domain.CartLine) (domain.Cart, error) {
	if strings.TrimSpace(buyerID) == "" {
		return domain.Cart{}, &domain.AuthError{Message: "Not authorized", Err: domain.ErrUnauthenticated}
	}
	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		if strings.TrimSpace(l.ProductID) == "" {
			return domain.Cart{}, domain.Invalid(domain.ErrProductNotFound, "Product ID is required")
		}
		if l.Quantity <= 0 {
			return domain.Cart{}, domain.Invalid(domain.ErrInvalidQuantity, "Invalid quantity for product %s", l.ProductID)
		}
		ids = append(ids, l.ProductID)
	}
	if len(ids) > 0 && s.productRepo != nil {
		found, err := s.productRepo.GetByIDs(ctx, ids)
		if err != nil {
			return domain.Cart{}, err
		}
		for _, id := range ids {
			if _, ok := found[id]; !ok {
				return domain.Cart{}, domain.Missing(domain.ErrProductNotFound, "Product not found: %s", id)
			}
		}
	}
	return s.repo.Replace(ctx, buyerID, lines)
}

func (s *Service) Clear(ctx context.Context, buyerID string) error {
	if strings.TrimSpace(buyerID) == "" {
		return errors.New("buyer id required")
	}
	_, err := s.repo.Clear(ctx, buyerID)
	return err
}
