package mocks

import (
	"context"

	"github.com/ridloal/storefront-checkout-service/internal/coupon/domain"
	"github.com/stretchr/testify/mock"
)

type MockCouponRepository struct {
	mock.Mock
}

func (m *MockCouponRepository) GetCouponByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	args := m.Called(ctx, code)
	if c := args.Get(0); c != nil {
		return c.(*domain.Coupon), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCouponRepository) IncrementUsage(ctx context.Context, couponID string) error {
	args := m.Called(ctx, couponID)
	return args.Error(0)
}

func (m *MockCouponRepository) DecrementUsage(ctx context.Context, couponID string) error {
	args := m.Called(ctx, couponID)
	return args.Error(0)
}
