package mocks

import (
	"context"

	"github.com/ridloal/storefront-checkout-service/internal/catalog/domain"
	"github.com/stretchr/testify/mock"
)

type MockCatalogRepository struct {
	mock.Mock
}

func (m *MockCatalogRepository) GetProductByID(ctx context.Context, id string) (*domain.Product, error) {
	args := m.Called(ctx, id)
	if p := args.Get(0); p != nil {
		return p.(*domain.Product), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCatalogRepository) GetInventory(ctx context.Context, productID string) (*domain.Inventory, error) {
	args := m.Called(ctx, productID)
	if inv := args.Get(0); inv != nil {
		return inv.(*domain.Inventory), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCatalogRepository) DecrementInventory(ctx context.Context, productID string, qty int) (int, error) {
	args := m.Called(ctx, productID, qty)
	return args.Int(0), args.Error(1)
}

func (m *MockCatalogRepository) IncrementInventory(ctx context.Context, productID string, qty int) error {
	args := m.Called(ctx, productID, qty)
	return args.Error(0)
}
