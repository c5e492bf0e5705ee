package product

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/domain"
)

type stubRepo struct {
	products  []domain.Product
	deleted   []string
	deleteErr error
}

func (s *stubRepo) List(context.Context) ([]domain.Product, error) { return s.products, nil }

func (s *stubRepo) GetByID(_ context.Context, id string) (*domain.Product, error) {
	for i := range s.products {
		if s.products[i].ID == id {
			return &s.products[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *stubRepo) GetByIDs(context.Context, []string) (map[string]domain.Product, error) {
	return nil, nil
}

func (s *stubRepo) Upsert(_ context.Context, p domain.Product) (*domain.Product, error) {
	return &p, nil
}

func (s *stubRepo) Delete(_ context.Context, id string) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.deleted = append(s.deleted, id)
	return nil
}

func TestList(t *testing.T) {
	svc := New(&stubRepo{products: []domain.Product{{ID: "P1"}, {ID: "P2"}}})

	got, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestGet_NotFoundIsTyped(t *testing.T) {
	svc := New(&stubRepo{})

	_, err := svc.Get(context.Background(), "nope")
	var nf *domain.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "Product not found", nf.Message)
}

func TestDelete(t *testing.T) {
	repo := &stubRepo{}
	svc := New(repo)

	require.NoError(t, svc.Delete(context.Background(), "P1"))
	assert.Equal(t, []string{"P1"}, repo.deleted)
}

func TestDelete_Errors(t *testing.T) {
	svc := New(&stubRepo{})
	err := svc.Delete(context.Background(), "")
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Product ID is required", verr.Message)

	svc = New(&stubRepo{deleteErr: domain.ErrNotFound})
	err = svc.Delete(context.Background(), "P1")
	assert.True(t, errors.Is(err, domain.ErrProductNotFound))
	assert.Equal(t, "Product not found", err.Error())
}
