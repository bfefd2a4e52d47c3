package mocks

import (
	"context"
	"time"

	couponService "github.com/ridloal/storefront-checkout-service/internal/coupon/service"
	"github.com/stretchr/testify/mock"
)

type MockCouponRedeemer struct {
	mock.Mock
}

func (m *MockCouponRedeemer) ValidateCode(ctx context.Context, code string, orderTotal float64, now time.Time) (*couponService.Validation, error) {
	args := m.Called(ctx, code, orderTotal, now)
	if v := args.Get(0); v != nil {
		return v.(*couponService.Validation), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCouponRedeemer) Redeem(ctx context.Context, couponID string) error {
	args := m.Called(ctx, couponID)
	return args.Error(0)
}

func (m *MockCouponRedeemer) Release(ctx context.Context, couponID string) error {
	args := m.Called(ctx, couponID)
	return args.Error(0)
}
